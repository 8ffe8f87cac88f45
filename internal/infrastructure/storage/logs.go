package storage

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"NewsPipeline/internal/domain"
)

func (s *SQLStore) InsertLog(ctx context.Context, entry domain.LogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := s.exec(ctx, s.sb.Insert("logs").
		Columns("level", "message", "attrs", "created_at").
		Values(int(entry.Level), entry.Message, encodeMap(entry.Attrs), entry.CreatedAt.UTC()))
	if err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

func (s *SQLStore) PurgeLogs(ctx context.Context, before time.Time) (int, error) {
	res, err := s.exec(ctx, s.sb.Delete("logs").Where(sq.Lt{"created_at": before.UTC()}))
	if err != nil {
		return 0, fmt.Errorf("purge logs: %w", err)
	}
	return affected(res), nil
}
