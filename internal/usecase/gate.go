package usecase

import (
	"strings"

	"NewsPipeline/internal/config"
	"NewsPipeline/internal/domain"
)

// Gate reasons in priority order.
const (
	ReasonCategoryRequiresReview = "category_requires_review"
	ReasonLowFactCheckScore      = "low_fact_check_score"
	ReasonLowSourceTrust         = "low_source_trust"
	ReasonSensitiveTopic         = "sensitive_topic"
	ReasonAutoPublishDisabled    = "auto_publish_disabled"
)

// GatePolicy holds the configured thresholds of the gate.
type GatePolicy struct {
	CategoriesRequireApproval []string
	FactCheckThreshold        float64
	SourceTrustThreshold      float64
}

// GatePolicyFromConfig copies the gate settings out of the pipeline config.
func GatePolicyFromConfig(cfg config.PipelineConfig) GatePolicy {
	return GatePolicy{
		CategoriesRequireApproval: cfg.CategoriesRequireApproval,
		FactCheckThreshold:        cfg.FactCheckThreshold,
		SourceTrustThreshold:      cfg.SourceTrustThreshold,
	}
}

// GateInput is everything the gate looks at for one draft.
type GateInput struct {
	Category           string
	FactCheckScore     float64
	SourceTrust        float64
	Sensitive          bool
	AutoPublishEnabled bool
}

// DetermineStatus evaluates every rule. Any triggered rule sends the draft to
// pending_ok with the triggered reasons joined by commas in priority order;
// otherwise the draft is auto_ready with an empty reason.
func DetermineStatus(policy GatePolicy, in GateInput) (domain.DraftStatus, string) {
	var reasons []string

	category := strings.ToLower(strings.TrimSpace(in.Category))
	for _, c := range policy.CategoriesRequireApproval {
		if category != "" && strings.EqualFold(c, category) {
			reasons = append(reasons, ReasonCategoryRequiresReview)
			break
		}
	}
	if in.FactCheckScore < policy.FactCheckThreshold {
		reasons = append(reasons, ReasonLowFactCheckScore)
	}
	if in.SourceTrust < policy.SourceTrustThreshold {
		reasons = append(reasons, ReasonLowSourceTrust)
	}
	if in.Sensitive {
		reasons = append(reasons, ReasonSensitiveTopic)
	}
	if !in.AutoPublishEnabled {
		reasons = append(reasons, ReasonAutoPublishDisabled)
	}

	if len(reasons) == 0 {
		return domain.DraftAutoReady, ""
	}
	return domain.DraftPendingOK, strings.Join(reasons, ",")
}
