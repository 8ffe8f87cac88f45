package domain

import "time"

const (
	// QuarantineThreshold is the consecutive error count that puts a source on hold.
	QuarantineThreshold = 5
	// QuarantinePeriod is how long a failing source is excluded from fetching.
	QuarantinePeriod = 30 * time.Minute
)

// SourceKind selects the feed strategy used to read a source.
type SourceKind string

const (
	SourceKindRSS  SourceKind = "rss"
	SourceKindHTML SourceKind = "html"
)

// Source is a configured external feed with a trust weighting.
type Source struct {
	ID                   int64
	Name                 string
	URL                  string
	Lang                 string
	Category             string
	Kind                 SourceKind
	Options              map[string]string
	TrustScore           float64
	FetchIntervalMinutes int
	Enabled              bool
	LastFetchedAt        *time.Time
	LastError            string
	ErrorCount           int
	QuarantineUntil      *time.Time
	CreatedAt            time.Time
}

// IsQuarantined reports whether the source is on hold at the given instant.
func (s Source) IsQuarantined(now time.Time) bool {
	return s.QuarantineUntil != nil && now.Before(*s.QuarantineUntil)
}

// IdleFor returns the time since the last fetch attempt. Never-fetched sources
// are treated as idle forever.
func (s Source) IdleFor(now time.Time) time.Duration {
	if s.LastFetchedAt == nil {
		return time.Duration(1<<63 - 1)
	}
	return now.Sub(*s.LastFetchedAt)
}

// IsDue reports whether the source should be fetched now.
func (s Source) IsDue(now time.Time) bool {
	if !s.Enabled || s.IsQuarantined(now) {
		return false
	}
	interval := time.Duration(s.FetchIntervalMinutes) * time.Minute
	return s.IdleFor(now) >= interval
}

// FetchOutcome is one fetch attempt as applied to a source row. Stores
// apply it in a single update so concurrent writers of other columns are
// not overwritten.
type FetchOutcome struct {
	At time.Time
	// Error is empty on success, which resets the error state.
	Error string
	// QuarantineUntil is set when the incremented error count reaches QuarantineThreshold.
	QuarantineUntil time.Time
}

// Apply returns the source as the stores persist it after the outcome.
func (o FetchOutcome) Apply(s Source) Source {
	at := o.At
	s.LastFetchedAt = &at
	if o.Error == "" {
		s.ErrorCount = 0
		s.LastError = ""
		s.QuarantineUntil = nil
		return s
	}
	s.ErrorCount++
	s.LastError = o.Error
	if s.ErrorCount >= QuarantineThreshold {
		until := o.QuarantineUntil
		s.QuarantineUntil = &until
	}
	return s
}

// TrustChange is the audit row written whenever a source trust score moves.
type TrustChange struct {
	SourceID  int64
	OldScore  float64
	NewScore  float64
	Reason    string
	ChangedAt time.Time
}

// Clamp01 bounds a score to the closed unit interval.
func Clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
