package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"NewsPipeline/internal/domain"
)

const sourceColumns = "id, name, url, lang, category, kind, options, trust_score, fetch_interval_minutes, " +
	"enabled, last_fetched_at, last_error, error_count, quarantine_until, created_at"

func scanSource(row rowScanner) (domain.Source, error) {
	var (
		s          domain.Source
		kind       string
		options    string
		lastFetch  sql.NullTime
		quarantine sql.NullTime
	)
	err := row.Scan(&s.ID, &s.Name, &s.URL, &s.Lang, &s.Category, &kind, &options, &s.TrustScore,
		&s.FetchIntervalMinutes, &s.Enabled, &lastFetch, &s.LastError, &s.ErrorCount, &quarantine, &s.CreatedAt)
	if err != nil {
		return domain.Source{}, err
	}
	s.Kind = domain.SourceKind(kind)
	s.Options = decodeMap(options)
	s.LastFetchedAt = timePtr(lastFetch)
	s.QuarantineUntil = timePtr(quarantine)
	s.CreatedAt = s.CreatedAt.UTC()
	return s, nil
}

// ListSources returns every source ordered by id.
func (s *SQLStore) ListSources(ctx context.Context) ([]domain.Source, error) {
	rows, err := s.query(ctx, s.sb.Select(sourceColumns).From("sources").OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var out []domain.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// GetSource loads one source.
func (s *SQLStore) GetSource(ctx context.Context, id int64) (domain.Source, error) {
	row, err := s.queryRow(ctx, s.sb.Select(sourceColumns).From("sources").Where(sq.Eq{"id": id}))
	if err != nil {
		return domain.Source{}, err
	}
	src, err := scanSource(row)
	if isNoRows(err) {
		return domain.Source{}, fmt.Errorf("source %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Source{}, fmt.Errorf("scan source: %w", err)
	}
	return src, nil
}

// CreateSource inserts a source; a duplicate URL returns domain.ErrDuplicate.
func (s *SQLStore) CreateSource(ctx context.Context, src domain.Source) (int64, error) {
	if src.CreatedAt.IsZero() {
		src.CreatedAt = time.Now().UTC()
	}
	if src.Kind == "" {
		src.Kind = domain.SourceKindRSS
	}

	id, err := s.insertReturningID(ctx, s.sb.Insert("sources").
		Columns("name", "url", "lang", "category", "kind", "options", "trust_score", "fetch_interval_minutes",
			"enabled", "last_fetched_at", "last_error", "error_count", "quarantine_until", "created_at").
		Values(src.Name, src.URL, src.Lang, src.Category, string(src.Kind), encodeMap(src.Options), src.TrustScore,
			src.FetchIntervalMinutes, src.Enabled, nullTime(src.LastFetchedAt), src.LastError, src.ErrorCount,
			nullTime(src.QuarantineUntil), src.CreatedAt.UTC()))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("source %s: %w", src.URL, domain.ErrDuplicate)
		}
		return 0, fmt.Errorf("insert source: %w", err)
	}
	return id, nil
}

// RecordSourceFetch updates the fetch-state columns in one statement. The
// error count is incremented in SQL so a concurrent trust or enabled update
// is never overwritten.
func (s *SQLStore) RecordSourceFetch(ctx context.Context, id int64, outcome domain.FetchOutcome) (domain.Source, error) {
	q := s.sb.Update("sources").
		Set("last_fetched_at", outcome.At.UTC()).
		Where(sq.Eq{"id": id})
	if outcome.Error == "" {
		q = q.Set("error_count", 0).
			Set("last_error", "").
			Set("quarantine_until", nil)
	} else {
		q = q.Set("error_count", sq.Expr("error_count + 1")).
			Set("last_error", outcome.Error).
			Set("quarantine_until", sq.Expr("CASE WHEN error_count + 1 >= ? THEN ? ELSE quarantine_until END",
				domain.QuarantineThreshold, outcome.QuarantineUntil.UTC()))
	}

	res, err := s.exec(ctx, q)
	if err != nil {
		return domain.Source{}, fmt.Errorf("record fetch of source %d: %w", id, err)
	}
	if affected(res) == 0 {
		return domain.Source{}, fmt.Errorf("source %d: %w", id, domain.ErrNotFound)
	}
	return s.GetSource(ctx, id)
}

// UpdateSourceTrust writes the trust score column only.
func (s *SQLStore) UpdateSourceTrust(ctx context.Context, id int64, score float64) error {
	return s.updateSourceColumn(ctx, id, "trust_score", score)
}

// SetSourceEnabled writes the enabled column only.
func (s *SQLStore) SetSourceEnabled(ctx context.Context, id int64, enabled bool) error {
	return s.updateSourceColumn(ctx, id, "enabled", enabled)
}

func (s *SQLStore) updateSourceColumn(ctx context.Context, id int64, column string, value any) error {
	res, err := s.exec(ctx, s.sb.Update("sources").Set(column, value).Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("update %s of source %d: %w", column, id, err)
	}
	if affected(res) == 0 {
		return fmt.Errorf("source %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// InsertTrustChange appends a trust audit row.
func (s *SQLStore) InsertTrustChange(ctx context.Context, change domain.TrustChange) error {
	_, err := s.exec(ctx, s.sb.Insert("source_trust_history").
		Columns("source_id", "old_score", "new_score", "reason", "changed_at").
		Values(change.SourceID, change.OldScore, change.NewScore, change.Reason, change.ChangedAt.UTC()))
	if err != nil {
		return fmt.Errorf("insert trust change: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
