package moderation

import "time"

// ContentInput 触发数据
type ContentInput struct {
	Content   string `json:"content" validate:"required"`
	ContentID string `json:"contentId,omitempty"`
}

// Analysis analyzeContent 的输出
type Analysis struct {
	Content           string   `json:"content" validate:"required"`
	AIAnalysisScore   float64  `json:"aiAnalysisScore" validate:"gte=0,lte=1"`
	FlaggedCategories []string `json:"flaggedCategories,omitempty"`
}

// ReviewRequest moderateContent 挂起时的数据，展示给审核人员
type ReviewRequest struct {
	Content           string   `json:"content"`
	AIScore           float64  `json:"aiScore"`
	FlaggedCategories []string `json:"flaggedCategories,omitempty"`
	Message           string   `json:"message"`
}

const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
	DecisionModify  = "modify"
)

// Decision 审核人员的决定，resume 的输入
type Decision struct {
	ModeratorDecision string `json:"moderatorDecision" validate:"required"`
	ModeratorNotes    string `json:"moderatorNotes,omitempty"`
	ModifiedContent   string `json:"modifiedContent,omitempty"`
}

const (
	ResultApproved = "approved"
	ResultRejected = "rejected"
	ResultModified = "modified"
)

// ModerationResult moderateContent 的输出
type ModerationResult struct {
	ModerationResult string `json:"moderationResult" validate:"required,oneof=approved rejected modified"`
	ModeratedContent string `json:"moderatedContent,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

// AuditLog 审计日志
type AuditLog struct {
	OriginalContent  string    `json:"originalContent"`
	ModerationResult string    `json:"moderationResult" validate:"required"`
	AIScore          float64   `json:"aiScore"`
	Timestamp        time.Time `json:"timestamp"`
}

const (
	StatePublished = "published"
	StateModified  = "modified"
	StateRejected  = "rejected"
	StateError     = "error"
)

// Outcome applyModeration 的输出
type Outcome struct {
	FinalStatus string   `json:"finalStatus" validate:"required"`
	State       string   `json:"state" validate:"required"`
	Content     string   `json:"content,omitempty"`
	AuditLog    AuditLog `json:"auditLog"`
}
