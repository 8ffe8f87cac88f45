package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"NewsPipeline/internal/domain"
)

const draftColumns = "id, raw_item_id, lang, title, lead, body, category, tags, risk_flags, seo_title, " +
	"seo_description, seo_keywords, slug, status, gate_reason, scheduled_at, published_at, primary_url, " +
	"created_by, edited_by, created_at, updated_at"

func scanDraft(row rowScanner) (domain.Draft, error) {
	var (
		d         domain.Draft
		rawItemID sql.NullInt64
		tags      string
		flags     string
		keywords  string
		status    string
		scheduled sql.NullTime
		published sql.NullTime
	)
	err := row.Scan(&d.ID, &rawItemID, &d.Lang, &d.Title, &d.Lead, &d.Body, &d.Category, &tags, &flags,
		&d.SEOTitle, &d.SEODescription, &keywords, &d.Slug, &status, &d.GateReason, &scheduled, &published,
		&d.PrimaryURL, &d.CreatedBy, &d.EditedBy, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return domain.Draft{}, err
	}
	if rawItemID.Valid {
		id := rawItemID.Int64
		d.RawItemID = &id
	}
	d.Tags = decodeList(tags)
	d.RiskFlags = decodeList(flags)
	d.SEOKeywords = decodeList(keywords)
	d.Status = domain.DraftStatus(status)
	d.ScheduledAt = timePtr(scheduled)
	d.PublishedAt = timePtr(published)
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return d, nil
}

func (s *SQLStore) selectDrafts(ctx context.Context, b sq.SelectBuilder) ([]domain.Draft, error) {
	rows, err := s.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query drafts: %w", err)
	}
	defer rows.Close()

	var out []domain.Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (s *SQLStore) getDraft(ctx context.Context, where sq.Sqlizer, label string) (domain.Draft, error) {
	row, err := s.queryRow(ctx, s.sb.Select(draftColumns).From("drafts").Where(where))
	if err != nil {
		return domain.Draft{}, err
	}
	d, err := scanDraft(row)
	if isNoRows(err) {
		return domain.Draft{}, fmt.Errorf("draft %s: %w", label, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Draft{}, fmt.Errorf("scan draft: %w", err)
	}
	return d, nil
}

// CreateDraft inserts a draft. A second draft for the same item and language
// is rejected with domain.ErrDuplicate.
func (s *SQLStore) CreateDraft(ctx context.Context, d domain.Draft) (int64, error) {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	var rawItemID sql.NullInt64
	if d.RawItemID != nil {
		rawItemID = sql.NullInt64{Int64: *d.RawItemID, Valid: true}
	}

	id, err := s.insertReturningID(ctx, s.sb.Insert("drafts").
		Columns("raw_item_id", "lang", "title", "lead", "body", "category", "tags", "risk_flags", "seo_title",
			"seo_description", "seo_keywords", "slug", "status", "gate_reason", "scheduled_at", "published_at",
			"primary_url", "created_by", "edited_by", "created_at", "updated_at").
		Values(rawItemID, d.Lang, d.Title, d.Lead, d.Body, d.Category, encodeList(d.Tags), encodeList(d.RiskFlags),
			d.SEOTitle, d.SEODescription, encodeList(d.SEOKeywords), d.Slug, string(d.Status), d.GateReason,
			nullTime(d.ScheduledAt), nullTime(d.PublishedAt), d.PrimaryURL, d.CreatedBy, d.EditedBy,
			d.CreatedAt.UTC(), d.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("draft for item %d/%s: %w", rawItemID.Int64, d.Lang, domain.ErrDuplicate)
		}
		return 0, fmt.Errorf("insert draft: %w", err)
	}
	return id, nil
}

func (s *SQLStore) GetDraft(ctx context.Context, id int64) (domain.Draft, error) {
	return s.getDraft(ctx, sq.Eq{"id": id}, fmt.Sprint(id))
}

func (s *SQLStore) FindDraft(ctx context.Context, rawItemID int64, lang string) (domain.Draft, error) {
	return s.getDraft(ctx, sq.Eq{"raw_item_id": rawItemID, "lang": lang}, fmt.Sprintf("for item %d/%s", rawItemID, lang))
}

// UpdateDraft overwrites the editable columns of a draft.
func (s *SQLStore) UpdateDraft(ctx context.Context, d domain.Draft) error {
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now().UTC()
	}
	res, err := s.exec(ctx, s.sb.Update("drafts").
		Set("title", d.Title).
		Set("lead", d.Lead).
		Set("body", d.Body).
		Set("category", d.Category).
		Set("tags", encodeList(d.Tags)).
		Set("risk_flags", encodeList(d.RiskFlags)).
		Set("seo_title", d.SEOTitle).
		Set("seo_description", d.SEODescription).
		Set("seo_keywords", encodeList(d.SEOKeywords)).
		Set("slug", d.Slug).
		Set("status", string(d.Status)).
		Set("gate_reason", d.GateReason).
		Set("scheduled_at", nullTime(d.ScheduledAt)).
		Set("published_at", nullTime(d.PublishedAt)).
		Set("primary_url", d.PrimaryURL).
		Set("edited_by", d.EditedBy).
		Set("updated_at", d.UpdatedAt.UTC()).
		Where(sq.Eq{"id": d.ID}))
	if err != nil {
		return fmt.Errorf("update draft %d: %w", d.ID, err)
	}
	if affected(res) == 0 {
		return fmt.Errorf("draft %d: %w", d.ID, domain.ErrNotFound)
	}
	return nil
}

// ClaimDraftForPublish is a compare-and-set on the status column, so at most
// one publish run holds a draft.
func (s *SQLStore) ClaimDraftForPublish(ctx context.Context, id int64, from []domain.DraftStatus, now time.Time) (domain.Draft, bool, error) {
	statuses := make([]string, len(from))
	for i, st := range from {
		statuses[i] = string(st)
	}
	res, err := s.exec(ctx, s.sb.Update("drafts").
		Set("status", string(domain.DraftPublishing)).
		Set("updated_at", now.UTC()).
		Where(sq.Eq{"id": id, "status": statuses}))
	if err != nil {
		return domain.Draft{}, false, fmt.Errorf("claim draft %d: %w", id, err)
	}
	claimed := affected(res) == 1

	d, err := s.GetDraft(ctx, id)
	if err != nil {
		return domain.Draft{}, false, err
	}
	return d, claimed, nil
}

// ReleaseStalePublishing fails drafts whose publish run never finished.
func (s *SQLStore) ReleaseStalePublishing(ctx context.Context, updatedBefore, now time.Time) (int, error) {
	res, err := s.exec(ctx, s.sb.Update("drafts").
		Set("status", string(domain.DraftPublishFailed)).
		Set("updated_at", now.UTC()).
		Where(sq.Eq{"status": string(domain.DraftPublishing)}).
		Where(sq.Lt{"updated_at": updatedBefore.UTC()}))
	if err != nil {
		return 0, fmt.Errorf("release stale publishing drafts: %w", err)
	}
	return affected(res), nil
}

func (s *SQLStore) ListDrafts(ctx context.Context, status domain.DraftStatus, before time.Time, limit int) ([]domain.Draft, error) {
	b := s.sb.Select(draftColumns).From("drafts").Where(sq.Eq{"status": string(status)}).OrderBy("created_at", "id")
	if !before.IsZero() {
		b = b.Where(sq.LtOrEq{"created_at": before.UTC()})
	}
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return s.selectDrafts(ctx, b)
}

func (s *SQLStore) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]domain.Draft, error) {
	b := s.sb.Select(draftColumns).From("drafts").
		Where(sq.Eq{"status": string(domain.DraftScheduled)}).
		Where(sq.LtOrEq{"scheduled_at": now.UTC()}).
		OrderBy("scheduled_at", "id")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return s.selectDrafts(ctx, b)
}

func (s *SQLStore) InsertPublishRecord(ctx context.Context, r domain.PublishRecord) error {
	_, err := s.exec(ctx, s.sb.Insert("publish_records").
		Columns("draft_id", "channel", "success", "url", "error", "published_at").
		Values(r.DraftID, r.Channel, r.Success, r.URL, r.Error, r.PublishedAt.UTC()))
	if err != nil {
		return fmt.Errorf("insert publish record: %w", err)
	}
	return nil
}

func (s *SQLStore) ListPublishRecords(ctx context.Context, draftID int64) ([]domain.PublishRecord, error) {
	rows, err := s.query(ctx, s.sb.Select("id, draft_id, channel, success, url, error, published_at").
		From("publish_records").Where(sq.Eq{"draft_id": draftID}).OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("query publish records: %w", err)
	}
	defer rows.Close()

	var out []domain.PublishRecord
	for rows.Next() {
		var r domain.PublishRecord
		if err := rows.Scan(&r.ID, &r.DraftID, &r.Channel, &r.Success, &r.URL, &r.Error, &r.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan publish record: %w", err)
		}
		r.PublishedAt = r.PublishedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}
