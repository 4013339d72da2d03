package archive

import (
	"context"
)

// Repo 应用层记录的存储，运行状态本身不落库
type Repo interface {
	CreateModerationAudit(ctx context.Context, audit *ModerationAuditPo) (*ModerationAuditPo, error)
	QueryModerationAudit(ctx context.Context, param *QueryModerationAuditParams) ([]*ModerationAuditPo, error)
	CountModerationAudit(ctx context.Context, param *QueryModerationAuditParams) (int64, error)
	CreateQuizSet(ctx context.Context, quizSet *QuizSetPo) (*QuizSetPo, error)
	QueryQuizSet(ctx context.Context, param *QueryQuizSetParams) ([]*QuizSetPo, error)
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}
