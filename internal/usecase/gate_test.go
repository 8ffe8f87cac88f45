package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"NewsPipeline/internal/domain"
)

func TestDetermineStatus(t *testing.T) {
	t.Parallel()

	policy := GatePolicy{
		CategoriesRequireApproval: []string{"politik"},
		FactCheckThreshold:        0.6,
		SourceTrustThreshold:      0.7,
	}
	clean := GateInput{Category: "lokales", FactCheckScore: 0.8, SourceTrust: 0.95, AutoPublishEnabled: true}

	tests := []struct {
		name       string
		mutate     func(*GateInput)
		wantStatus domain.DraftStatus
		wantReason string
	}{
		{"all clear", func(*GateInput) {}, domain.DraftAutoReady, ""},
		{"category outranks everything", func(in *GateInput) { in.Category = "Politik"; in.FactCheckScore = 0.9 },
			domain.DraftPendingOK, "category_requires_review"},
		{"low score", func(in *GateInput) { in.FactCheckScore = 0.59 }, domain.DraftPendingOK, "low_fact_check_score"},
		{"score at threshold passes", func(in *GateInput) { in.FactCheckScore = 0.6 }, domain.DraftAutoReady, ""},
		{"low trust", func(in *GateInput) { in.SourceTrust = 0.5 }, domain.DraftPendingOK, "low_source_trust"},
		{"sensitive", func(in *GateInput) { in.Sensitive = true }, domain.DraftPendingOK, "sensitive_topic"},
		{"auto publish off", func(in *GateInput) { in.AutoPublishEnabled = false }, domain.DraftPendingOK, "auto_publish_disabled"},
		{"all reasons in priority order", func(in *GateInput) {
			*in = GateInput{Category: "politik", FactCheckScore: 0.1, SourceTrust: 0.1, Sensitive: true}
		}, domain.DraftPendingOK,
			"category_requires_review,low_fact_check_score,low_source_trust,sensitive_topic,auto_publish_disabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := clean
			tt.mutate(&in)

			status, reason := DetermineStatus(policy, in)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantReason, reason)

			again, againReason := DetermineStatus(policy, in)
			assert.Equal(t, status, again)
			assert.Equal(t, reason, againReason)
		})
	}
}
