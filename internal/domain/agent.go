package domain

// TaskID identifies one entry of the closed analysis catalog.
type TaskID string

// Agent identifiers exposed to clients. The scoring, guide, candidate and
// review tasks are internal to the pipeline and never requested directly.
const (
	TaskPraiser TaskID = "praiser"
	TaskCritic  TaskID = "critic"
	TaskCrowd   TaskID = "crowd"
	TaskMenu    TaskID = "menu"
	TaskSmoking TaskID = "smoking"
	TaskDate    TaskID = "date"
	TaskSake    TaskID = "sake"
	TaskInsta   TaskID = "insta"
	TaskRedFlag TaskID = "red_flag"
	TaskBudget  TaskID = "budget"
	TaskBizRisk TaskID = "biz_risk"
	TaskFamily  TaskID = "family"

	TaskScore          TaskID = "score"
	TaskGuide          TaskID = "guide"
	TaskCandidates     TaskID = "candidates"
	TaskReviewAnalysis TaskID = "review_analysis"
)

// RiskLevel grades how risky a shop is for the concern an agent covers.
type RiskLevel string

const (
	RiskSafe    RiskLevel = "safe"
	RiskCaution RiskLevel = "caution"
	RiskDanger  RiskLevel = "danger"
)

// Valid reports whether r is one of the three known levels.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskSafe, RiskCaution, RiskDanger:
		return true
	default:
		return false
	}
}

// Summaries used by degraded results. Clients recognize degraded results by
// these exact strings, so they are part of the wire contract.
const (
	SummaryNoClient = "AI接続エラー"
	SummaryBusy     = "混雑中..."
	SummaryFailed   = "調査失敗"
	SummaryEmpty    = "情報なし"
)

// ScoreNotApplicable is the score an agent reports when its concern does
// not apply to the shop. Clients hide it.
const ScoreNotApplicable = -1

// AgentResult is the outcome of running one agent against one shop. Exactly
// one logical result exists per (shop, agent) pair; a newer run replaces it.
type AgentResult struct {
	AgentType TaskID   `json:"agentType"`
	AgentName string   `json:"agentName"`
	Icon      string   `json:"icon"`
	Summary   string   `json:"summary"`
	Details   []string `json:"details"`
	// Score is 0..100, or ScoreNotApplicable.
	Score     *int      `json:"score,omitempty"`
	RiskLevel RiskLevel `json:"riskLevel,omitempty"`
}

// IsDegraded reports whether the result was synthesized after a failure
// rather than produced by the model.
func (r AgentResult) IsDegraded() bool {
	switch r.Summary {
	case SummaryNoClient, SummaryBusy, SummaryFailed:
		return true
	default:
		return false
	}
}
