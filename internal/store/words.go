package store

import (
	"context"
	"time"

	"github.com/lib/pq"
)

// bulkLoadTimeout covers a full dictionary replacement (~100k rows).
const bulkLoadTimeout = 2 * time.Minute

// ReplaceWords swaps the locale's dictionary rows for the given word list in
// one transaction, so readers never observe a half-loaded locale.
func (s *Store) ReplaceWords(ctx context.Context, locale string, words []string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, bulkLoadTimeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, translate(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM word WHERE locale = $1`, locale); err != nil {
		return 0, translate(err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("word", "word", "locale"))
	if err != nil {
		return 0, translate(err)
	}
	for _, w := range words {
		if _, err := stmt.ExecContext(ctx, w, locale); err != nil {
			stmt.Close()
			return 0, translate(err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, translate(err)
	}
	if err := stmt.Close(); err != nil {
		return 0, translate(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, translate(err)
	}
	return len(words), nil
}

// WordsForLocale returns every dictionary entry of the locale, used to warm
// the in-memory dictionary at boot.
func (s *Store) WordsForLocale(ctx context.Context, locale string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, bulkLoadTimeout)
	defer cancel()

	var words []string
	if err := s.db.SelectContext(ctx, &words,
		`SELECT word FROM word WHERE locale = $1`, locale); err != nil {
		return nil, translate(err)
	}
	return words, nil
}

// Locales lists every locale present in the word table.
func (s *Store) Locales(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var locales []string
	if err := s.db.SelectContext(ctx, &locales,
		`SELECT DISTINCT locale FROM word ORDER BY locale`); err != nil {
		return nil, translate(err)
	}
	return locales, nil
}
