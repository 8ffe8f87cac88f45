package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"NewsPipeline/internal/domain"
)

const rawItemColumns = "id, source_id, url, canonical_url, url_hash, title, summary, body, author, image_url, " +
	"published_at, fetched_at, lang, status, fact_check_score"

func scanRawItem(row rowScanner) (domain.RawItem, error) {
	var (
		item   domain.RawItem
		status string
		score  sql.NullFloat64
	)
	err := row.Scan(&item.ID, &item.SourceID, &item.URL, &item.CanonicalURL, &item.URLHash, &item.Title,
		&item.Summary, &item.Body, &item.Author, &item.ImageURL, &item.PublishedAt, &item.FetchedAt,
		&item.Lang, &status, &score)
	if err != nil {
		return domain.RawItem{}, err
	}
	item.Status = domain.RawItemStatus(status)
	item.PublishedAt = item.PublishedAt.UTC()
	item.FetchedAt = item.FetchedAt.UTC()
	if score.Valid {
		v := score.Float64
		item.FactCheckScore = &v
	}
	return item, nil
}

func (s *SQLStore) selectRawItems(ctx context.Context, b sq.SelectBuilder) ([]domain.RawItem, error) {
	rows, err := s.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query raw items: %w", err)
	}
	defer rows.Close()

	var out []domain.RawItem
	for rows.Next() {
		item, err := scanRawItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan raw item: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// InsertRawItem stores the item unless its URL hash is already known. For a
// known hash it returns the existing id with inserted=false.
func (s *SQLStore) InsertRawItem(ctx context.Context, item domain.RawItem) (int64, bool, error) {
	if item.Status == "" {
		item.Status = domain.RawItemNew
	}

	row, err := s.queryRow(ctx, s.sb.Insert("raw_items").
		Columns("source_id", "url", "canonical_url", "url_hash", "title", "title_key", "summary", "body",
			"author", "image_url", "published_at", "fetched_at", "lang", "status").
		Values(item.SourceID, item.URL, item.CanonicalURL, item.URLHash, item.Title, domain.NormalizeTitle(item.Title),
			item.Summary, item.Body, item.Author, item.ImageURL, item.PublishedAt.UTC(), item.FetchedAt.UTC(),
			item.Lang, string(item.Status)).
		Suffix("ON CONFLICT (url_hash) DO NOTHING RETURNING id"))
	if err != nil {
		return 0, false, err
	}

	var id int64
	err = row.Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !isNoRows(err) {
		return 0, false, fmt.Errorf("insert raw item: %w", err)
	}

	existing, err := s.queryRow(ctx, s.sb.Select("id").From("raw_items").Where(sq.Eq{"url_hash": item.URLHash}))
	if err != nil {
		return 0, false, err
	}
	if err := existing.Scan(&id); err != nil {
		return 0, false, fmt.Errorf("lookup raw item by hash: %w", err)
	}
	return id, false, nil
}

// GetRawItem loads one item.
func (s *SQLStore) GetRawItem(ctx context.Context, id int64) (domain.RawItem, error) {
	row, err := s.queryRow(ctx, s.sb.Select(rawItemColumns).From("raw_items").Where(sq.Eq{"id": id}))
	if err != nil {
		return domain.RawItem{}, err
	}
	item, err := scanRawItem(row)
	if isNoRows(err) {
		return domain.RawItem{}, fmt.Errorf("raw item %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.RawItem{}, fmt.Errorf("scan raw item: %w", err)
	}
	return item, nil
}

func (s *SQLStore) UpdateRawItemStatus(ctx context.Context, id int64, status domain.RawItemStatus) error {
	return s.updateRawItem(ctx, id, s.sb.Update("raw_items").Set("status", string(status)))
}

func (s *SQLStore) SetFactCheckScore(ctx context.Context, id int64, score float64) error {
	return s.updateRawItem(ctx, id, s.sb.Update("raw_items").Set("fact_check_score", score))
}

func (s *SQLStore) updateRawItem(ctx context.Context, id int64, b sq.UpdateBuilder) error {
	res, err := s.exec(ctx, b.Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("update raw item %d: %w", id, err)
	}
	if affected(res) == 0 {
		return fmt.Errorf("raw item %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// FindRecentMatches looks up items fetched since the instant that share the
// canonical URL or the normalized title.
func (s *SQLStore) FindRecentMatches(ctx context.Context, canonicalURL, title string, since time.Time, excludeID int64) ([]domain.RawItem, error) {
	match := sq.Or{}
	if canonicalURL != "" {
		match = append(match, sq.Eq{"canonical_url": canonicalURL})
	}
	if title != "" {
		match = append(match, sq.Eq{"title_key": title})
	}
	if len(match) == 0 {
		return nil, nil
	}

	return s.selectRawItems(ctx, s.sb.Select(rawItemColumns).From("raw_items").
		Where(sq.NotEq{"id": excludeID}).
		Where(sq.GtOrEq{"fetched_at": since.UTC()}).
		Where(match).
		OrderBy("id"))
}

// ListRecentRawItems returns items published in [from, to] by other sources.
func (s *SQLStore) ListRecentRawItems(ctx context.Context, from, to time.Time, excludeSourceID int64) ([]domain.RawItem, error) {
	return s.selectRawItems(ctx, s.sb.Select(rawItemColumns).From("raw_items").
		Where(sq.NotEq{"source_id": excludeSourceID}).
		Where(sq.GtOrEq{"published_at": from.UTC()}).
		Where(sq.LtOrEq{"published_at": to.UTC()}).
		OrderBy("id"))
}

func (s *SQLStore) DeleteRawItem(ctx context.Context, id int64) error {
	if _, err := s.exec(ctx, s.sb.Delete("raw_items").Where(sq.Eq{"id": id})); err != nil {
		return fmt.Errorf("delete raw item %d: %w", id, err)
	}
	return nil
}

// PurgeRawItems deletes items fetched before the cutoff.
func (s *SQLStore) PurgeRawItems(ctx context.Context, before time.Time) (int, error) {
	res, err := s.exec(ctx, s.sb.Delete("raw_items").Where(sq.Lt{"fetched_at": before.UTC()}))
	if err != nil {
		return 0, fmt.Errorf("purge raw items: %w", err)
	}
	return affected(res), nil
}

func (s *SQLStore) InsertFactCheck(ctx context.Context, result domain.FactCheckResult) (int64, error) {
	id, err := s.insertReturningID(ctx, s.sb.Insert("fact_checks").
		Columns("raw_item_id", "score", "sources_confirmed", "source_component", "cross_ref_component",
			"content_component", "computed_at").
		Values(result.RawItemID, result.Score, result.SourcesConfirmed, result.SourceComponent,
			result.CrossRefComponent, result.ContentComponent, result.ComputedAt.UTC()))
	if err != nil {
		return 0, fmt.Errorf("insert fact check: %w", err)
	}
	return id, nil
}

// RecentScoresForSource returns the newest scores of the source's items.
func (s *SQLStore) RecentScoresForSource(ctx context.Context, sourceID int64, since time.Time, limit int) ([]float64, error) {
	b := s.sb.Select("fc.score").
		From("fact_checks fc").
		Join("raw_items ri ON ri.id = fc.raw_item_id").
		Where(sq.Eq{"ri.source_id": sourceID}).
		Where(sq.GtOrEq{"fc.computed_at": since.UTC()}).
		OrderBy("fc.computed_at DESC", "fc.id DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	rows, err := s.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query fact check scores: %w", err)
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		scores = append(scores, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return scores, nil
}
