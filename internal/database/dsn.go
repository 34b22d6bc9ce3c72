package database

import (
	"fmt"
	"strings"

	"github.com/rickgao/inkwell/internal/config"
)

// BuildDSN builds a modernc.org/sqlite data source name from config.
func BuildDSN(cfg config.StorageConfig) string {
	journal := strings.ToUpper(cfg.JournalMode)
	if journal == "" {
		journal = config.DefaultJournalMode
	}

	busy := cfg.BusyTimeout.Milliseconds()
	if busy <= 0 {
		busy = config.DefaultBusyTimeout.Milliseconds()
	}

	return fmt.Sprintf(
		"%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(%s)&_pragma=foreign_keys(1)",
		cfg.Path,
		busy,
		journal,
	)
}
