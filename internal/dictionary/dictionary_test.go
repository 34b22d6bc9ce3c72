package dictionary

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
)

func writeDict(t *testing.T, dir, name, aff, dic string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, name), 0o755); err != nil {
		t.Fatal(err)
	}
	if aff != "" {
		if err := os.WriteFile(filepath.Join(dir, name, name+".aff"), []byte(aff), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if dic != "" {
		if err := os.WriteFile(filepath.Join(dir, name, name+".dic"), []byte(dic), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCanonicalLang(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"en-US", "en-US"},
		{"en_US", "en-US"},
		{"en_us", "en-US"},
		{"de", "de"},
		{" pt_br ", "pt-BR"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CanonicalLang(tt.in); got != tt.want {
			t.Errorf("CanonicalLang(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeDict(t, dir, "en-US", "SET UTF-8", "1\nhello")
	writeDict(t, dir, "de_DE", "SET ISO8859-1", "1\nhallo")
	l := NewLoader(dir, nil)

	tests := []struct {
		name    string
		kind    string
		lang    string
		want    string
		wantErr error
	}{
		{"hyphenated", KindAff, "en-US", "SET UTF-8", nil},
		{"underscore input", KindDic, "en_US", "1\nhello", nil},
		{"underscore on disk", KindDic, "de-DE", "1\nhallo", nil},
		{"missing", KindAff, "fr", "", ErrDictionaryNotFound},
		{"empty lang", KindAff, "", "", ErrDictionaryNotFound},
		{"bad kind", "txt", "en-US", "", ErrInvalidKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.Load(tt.kind, tt.lang)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Load error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Load = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad_Cached(t *testing.T) {
	dir := t.TempDir()
	writeDict(t, dir, "en-US", "v1", "words")
	l := NewLoader(dir, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Load(KindAff, "en-US"); err != nil {
				t.Errorf("Load failed: %v", err)
			}
		}()
	}
	wg.Wait()

	writeDict(t, dir, "en-US", "v2", "")
	if got, _ := l.Load(KindAff, "en-US"); got != "v1" {
		t.Errorf("cached Load = %q, want %q", got, "v1")
	}

	l.Purge()
	if got, _ := l.Load(KindAff, "en-US"); got != "v2" {
		t.Errorf("Load after Purge = %q, want %q", got, "v2")
	}
}

func TestLanguages(t *testing.T) {
	dir := t.TempDir()
	writeDict(t, dir, "fr", "a", "d")
	writeDict(t, dir, "en_US", "a", "d")
	writeDict(t, dir, "it", "a", "") // incomplete
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := NewLoader(dir, nil).Languages()
	if err != nil {
		t.Fatalf("Languages failed: %v", err)
	}
	want := []string{"en-US", "fr"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Languages = %v, want %v", got, want)
	}

	got, err = NewLoader(filepath.Join(dir, "missing"), nil).Languages()
	if err != nil || len(got) != 0 {
		t.Errorf("Languages on missing dir = (%v, %v), want ([], nil)", got, err)
	}
}
