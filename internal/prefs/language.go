package prefs

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// appLanguages are the UI translations the editor ships with.
var appLanguages = []language.Tag{
	language.AmericanEnglish,
	language.BritishEnglish,
	language.German,
	language.French,
	language.Spanish,
	language.Italian,
	language.BrazilianPortuguese,
	language.Russian,
	language.Japanese,
	language.SimplifiedChinese,
}

var appMatcher = language.NewMatcher(appLanguages)

// Language describes a selectable UI language.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// SupportedLanguages lists the UI languages, each named in its own language.
func SupportedLanguages() []Language {
	out := make([]Language, 0, len(appLanguages))
	for _, tag := range appLanguages {
		out = append(out, Language{
			Code: tag.String(),
			Name: display.Self.Name(tag),
		})
	}
	return out
}

// CanonicalTag parses a BCP 47 tag, also accepting the underscore form
// used by dictionary files (en_US), and returns its canonical string.
func CanonicalTag(s string) (string, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "-")
	if s == "" {
		return "", fmt.Errorf("empty language tag: %w", ErrInvalidValue)
	}
	tag, err := language.Parse(s)
	if err != nil {
		return "", fmt.Errorf("language tag %q: %w", s, ErrInvalidValue)
	}
	return tag.String(), nil
}

// MatchLanguage returns the supported UI language closest to s.
// It fails when s does not match any supported language.
func MatchLanguage(s string) (string, error) {
	canon, err := CanonicalTag(s)
	if err != nil {
		return "", err
	}
	_, idx, conf := appMatcher.Match(language.Make(canon))
	if conf == language.No {
		return "", fmt.Errorf("language %q is not supported: %w", s, ErrInvalidValue)
	}
	return appLanguages[idx].String(), nil
}

// SupportedLanguages lists the UI languages.
func (s *Store) SupportedLanguages() []Language {
	return SupportedLanguages()
}
