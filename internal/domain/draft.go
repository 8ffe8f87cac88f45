package domain

import (
	"fmt"
	"time"
)

// DraftStatus is the state of a draft in the editorial workflow.
type DraftStatus string

const (
	DraftAIDraft       DraftStatus = "ai_draft"
	DraftPendingOK     DraftStatus = "pending_ok"
	DraftAutoReady     DraftStatus = "auto_ready"
	DraftApproved      DraftStatus = "approved"
	DraftScheduled     DraftStatus = "scheduled"
	// DraftPublishing marks a draft claimed by one publish run.
	DraftPublishing    DraftStatus = "publishing"
	DraftPublished     DraftStatus = "published"
	DraftPublishFailed DraftStatus = "publish_failed"
	DraftRejected      DraftStatus = "rejected"
	DraftUnpublished   DraftStatus = "unpublished"
)

var draftTransitions = map[DraftStatus][]DraftStatus{
	DraftAIDraft:       {DraftPendingOK, DraftAutoReady, DraftRejected},
	DraftPendingOK:     {DraftApproved, DraftRejected},
	DraftAutoReady:     {DraftPublishing, DraftScheduled, DraftApproved, DraftRejected},
	DraftApproved:      {DraftPublishing, DraftScheduled, DraftRejected},
	DraftScheduled:     {DraftPublishing, DraftScheduled, DraftRejected},
	DraftPublishFailed: {DraftPublishing, DraftScheduled, DraftRejected},
	DraftPublishing:    {DraftPublished, DraftPublishFailed},
	DraftPublished:     {DraftUnpublished},
	DraftUnpublished:   {DraftApproved, DraftRejected},
}

// PublishableStatuses lists the statuses a publish run may claim a draft from.
var PublishableStatuses = []DraftStatus{DraftApproved, DraftAutoReady, DraftScheduled, DraftPublishFailed}

// CanTransition reports whether the workflow allows moving from one status to another.
func CanTransition(from, to DraftStatus) bool {
	for _, next := range draftTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsPublishable reports whether a draft in this status may be sent to channels.
func (s DraftStatus) IsPublishable() bool {
	for _, p := range PublishableStatuses {
		if s == p {
			return true
		}
	}
	return false
}

// Draft is a per-language, AI-generated candidate article tied to a raw item.
type Draft struct {
	ID             int64
	RawItemID      *int64
	Lang           string
	Title          string
	Lead           string
	Body           string
	Category       string
	Tags           []string
	RiskFlags      []string
	SEOTitle       string
	SEODescription string
	SEOKeywords    []string
	Slug           string
	Status         DraftStatus
	GateReason     string
	ScheduledAt    *time.Time
	PublishedAt    *time.Time
	PrimaryURL     string
	CreatedBy      string
	EditedBy       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Transition moves the draft to the next status or returns ErrInvalidTransition.
func (d *Draft) Transition(to DraftStatus, now time.Time) error {
	if !CanTransition(d.Status, to) {
		return fmt.Errorf("draft %d %s -> %s: %w", d.ID, d.Status, to, ErrInvalidTransition)
	}
	d.Status = to
	d.UpdatedAt = now
	return nil
}

// Validate checks the status invariants that must hold before a draft is persisted.
func (d Draft) Validate() error {
	switch d.Status {
	case DraftPendingOK:
		if d.GateReason == "" {
			return fmt.Errorf("draft in %s requires a gate reason", d.Status)
		}
	case DraftPublished:
		if d.PublishedAt == nil {
			return fmt.Errorf("draft in %s requires published_at", d.Status)
		}
	case DraftScheduled:
		if d.ScheduledAt == nil {
			return fmt.Errorf("draft in %s requires scheduled_at", d.Status)
		}
	}
	return nil
}

// PublishRecord stores the per-channel outcome of a publish attempt.
type PublishRecord struct {
	ID          int64
	DraftID     int64
	Channel     string
	Success     bool
	URL         string
	Error       string
	PublishedAt time.Time
}
