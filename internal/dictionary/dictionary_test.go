package dictionary

import (
	"context"
	"strings"
	"testing"
)

// fakeSource records persisted word sets in memory.
type fakeSource struct {
	words map[string][]string
}

func (f *fakeSource) ReplaceWords(_ context.Context, locale string, words []string) (int, error) {
	if f.words == nil {
		f.words = make(map[string][]string)
	}
	f.words[locale] = append([]string(nil), words...)
	return len(words), nil
}

func (f *fakeSource) WordsForLocale(_ context.Context, locale string) ([]string, error) {
	return f.words[locale], nil
}

func (f *fakeSource) Locales(_ context.Context) ([]string, error) {
	locales := make([]string, 0, len(f.words))
	for l := range f.words {
		locales = append(locales, l)
	}
	return locales, nil
}

func TestLoadAndContains(t *testing.T) {
	s := New(nil)
	n, err := s.Load(context.Background(), "en", strings.NewReader("Apple\n\n  elephant  \nTRUCK\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 3 {
		t.Fatalf("loaded %d words, want 3", n)
	}
	if s.Size("en") != 3 {
		t.Errorf("Size = %d, want 3", s.Size("en"))
	}

	for _, w := range []string{"apple", "Apple", " TRUCK ", "elephant"} {
		if !s.Contains(w, "en") {
			t.Errorf("Contains(%q, en) = false, want true", w)
		}
	}
	if s.Contains("apple", "de") {
		t.Error("Contains leaked across locales")
	}
	if s.Contains("pear", "en") {
		t.Error("Contains reported an absent word")
	}
}

func TestLoadReplacesPreviousSet(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	if _, err := s.Load(ctx, "en", strings.NewReader("apple\n")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := s.Load(ctx, "en", strings.NewReader("pear\n")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Contains("apple", "en") {
		t.Error("stale word survived a reload")
	}
	if !s.Contains("pear", "en") {
		t.Error("reloaded word missing")
	}
}

func TestLoadPersistsThroughSource(t *testing.T) {
	src := &fakeSource{}
	s := New(src)
	ctx := context.Background()
	if _, err := s.Load(ctx, "en", strings.NewReader("apple\nbanana\n")); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(src.words["en"]) != 2 {
		t.Fatalf("persisted %d words, want 2", len(src.words["en"]))
	}

	// a fresh service warms up from the same source
	restored := New(src)
	if err := restored.WarmUp(ctx); err != nil {
		t.Fatalf("WarmUp: %v", err)
	}
	if !restored.Contains("banana", "en") {
		t.Error("warmed-up service is missing a persisted word")
	}
	if restored.Size("en") != 2 {
		t.Errorf("Size = %d, want 2", restored.Size("en"))
	}
}
