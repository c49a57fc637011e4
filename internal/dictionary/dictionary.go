// Package dictionary keeps per-locale word sets in memory for O(1) lookups.
// Loads replace a locale's set atomically under a writer lock; gameplay
// lookups only take the read lock.
package dictionary

import (
	"bufio"
	"context"
	"io"
	"log"
	"strings"
	"sync"
)

// WordSource persists dictionaries between restarts.
type WordSource interface {
	ReplaceWords(ctx context.Context, locale string, words []string) (int, error)
	WordsForLocale(ctx context.Context, locale string) ([]string, error)
	Locales(ctx context.Context) ([]string, error)
}

// Service answers case-insensitive membership checks per locale.
type Service struct {
	mu      sync.RWMutex
	locales map[string]map[string]struct{}
	source  WordSource
}

// New creates an empty dictionary service. source may be nil for a purely
// in-memory dictionary (tests).
func New(source WordSource) *Service {
	return &Service{
		locales: make(map[string]map[string]struct{}),
		source:  source,
	}
}

// Contains reports whether word is in the locale's dictionary.
func (s *Service) Contains(word, locale string) bool {
	word = strings.ToLower(strings.TrimSpace(word))
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.locales[locale][word]
	return ok
}

// Size returns the number of entries loaded for the locale.
func (s *Service) Size(locale string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.locales[locale])
}

// Load replaces the locale's set with the lines of r, persisting through the
// word source when one is configured. Blank lines are skipped; words are
// lowercased. It returns the number of entries loaded.
func (s *Service) Load(ctx context.Context, locale string, r io.Reader) (int, error) {
	set := make(map[string]struct{})
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		word := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if word == "" {
			continue
		}
		set[word] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}

	if s.source != nil {
		words := make([]string, 0, len(set))
		for w := range set {
			words = append(words, w)
		}
		if _, err := s.source.ReplaceWords(ctx, locale, words); err != nil {
			return 0, err
		}
	}

	s.swap(locale, set)
	return len(set), nil
}

// WarmUp restores every persisted locale into memory. Called once at boot.
func (s *Service) WarmUp(ctx context.Context) error {
	if s.source == nil {
		return nil
	}
	locales, err := s.source.Locales(ctx)
	if err != nil {
		return err
	}
	for _, locale := range locales {
		words, err := s.source.WordsForLocale(ctx, locale)
		if err != nil {
			return err
		}
		set := make(map[string]struct{}, len(words))
		for _, w := range words {
			set[strings.ToLower(w)] = struct{}{}
		}
		s.swap(locale, set)
		log.Printf("[DICT] loaded %d words for locale %s", len(set), locale)
	}
	return nil
}

func (s *Service) swap(locale string, set map[string]struct{}) {
	s.mu.Lock()
	s.locales[locale] = set
	s.mu.Unlock()
}
