package archive

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ModerationAuditPo 审核结束后的审计记录
type ModerationAuditPo struct {
	ID              int64   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	RunID           string  `gorm:"column:run_id;index" json:"run_id"`
	ContentID       string  `gorm:"column:content_id;index" json:"content_id"`
	OriginalContent string  `gorm:"column:original_content" json:"original_content"`
	FinalContent    string  `gorm:"column:final_content" json:"final_content"`
	FinalStatus     string  `gorm:"column:final_status" json:"final_status"`
	Action          string  `gorm:"column:action" json:"action"`
	RiskScore       float64 `gorm:"column:risk_score" json:"risk_score"`
	Flags           []byte  `gorm:"column:flags" json:"flags"` // json 数组
	ModeratorNotes  string  `gorm:"column:moderator_notes" json:"moderator_notes"`
	ModeratedAt     int64   `gorm:"column:moderated_at" json:"moderated_at"`
	CreatedAt       int64   `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       int64   `gorm:"column:updated_at" json:"updated_at"`
}

func (ModerationAuditPo) TableName() string {
	return "moderation_audit"
}

// QuizSetPo 整合之后的问题集
type QuizSetPo struct {
	ID          int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	RunID       string `gorm:"column:run_id;index" json:"run_id"`
	Title       string `gorm:"column:title" json:"title"`
	Description string `gorm:"column:description" json:"description"`
	Items       []byte `gorm:"column:items" json:"items"` // json 数组
	ItemCount   int64  `gorm:"column:item_count" json:"item_count"`
	Summary     string `gorm:"column:summary" json:"summary"`
	CreatedAt   int64  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   int64  `gorm:"column:updated_at" json:"updated_at"`
}

func (QuizSetPo) TableName() string {
	return "quiz_set"
}

type Pager struct {
	IsNoLimit *bool `json:"is_no_limit"`
	Page      int64 `json:"page"`
	Size      int64 `json:"size"`
}

type QueryModerationAuditParams struct {
	RunID         *string  `json:"run_id"`
	ContentID     *string  `json:"content_id"`
	FinalStatusIn []string `json:"final_status_in"`
	OrderbyIDAsc  *bool    `json:"orderby_id_asc"`
	Page          *Pager   `json:"page"`
}

type QueryQuizSetParams struct {
	RunID        *string `json:"run_id"`
	OrderbyIDAsc *bool   `json:"orderby_id_asc"`
	Page         *Pager  `json:"page"`
}

type gormRepo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) Repo {
	return &gormRepo{db: db}
}

const MemoryDSN = ":memory:"

// OpenSQLite 打开 sqlite 并建表，dsn 可以是文件路径或者 ":memory:"
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "open sqlite failed, dsn: %s", dsn)
	}
	if dsn == MemoryDSN {
		// 每个连接都是独立的内存库，只能保留一个连接
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.WithMessage(err, "get sql.DB failed")
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&ModerationAuditPo{}, &QuizSetPo{}); err != nil {
		return errors.WithMessage(err, "AutoMigrate failed")
	}
	return nil
}

func (r *gormRepo) CreateModerationAudit(ctx context.Context, audit *ModerationAuditPo) (*ModerationAuditPo, error) {
	if audit == nil {
		return nil, errors.New("nil ModerationAuditPo")
	}
	audit.CreatedAt = time.Now().Unix()
	audit.UpdatedAt = time.Now().Unix()
	if err := r.GetDBWithContext(ctx).Create(audit).Error; err != nil {
		return nil, errors.WithMessage(err, "CreateModerationAudit failed")
	}
	return audit, nil
}

func (r *gormRepo) CreateQuizSet(ctx context.Context, quizSet *QuizSetPo) (*QuizSetPo, error) {
	if quizSet == nil {
		return nil, errors.New("nil QuizSetPo")
	}
	quizSet.CreatedAt = time.Now().Unix()
	quizSet.UpdatedAt = time.Now().Unix()
	if err := r.GetDBWithContext(ctx).Create(quizSet).Error; err != nil {
		return nil, errors.WithMessage(err, "CreateQuizSet failed")
	}
	return quizSet, nil
}

func applyPage(db *gorm.DB, orderbyIDAsc *bool, page *Pager) (*gorm.DB, error) {
	if orderbyIDAsc != nil {
		if *orderbyIDAsc {
			db = db.Order("id asc")
		} else {
			db = db.Order("id desc")
		}
	}
	if page == nil {
		return nil, errors.New("page is nil")
	}
	if page.IsNoLimit != nil && *page.IsNoLimit {
		// 不分页
		return db, nil
	}
	if page.Page == 0 {
		page.Page = 1
	}
	if page.Size == 0 {
		page.Size = 10
	}
	return db.Offset(int(page.Page-1) * int(page.Size)).Limit(int(page.Size)), nil
}

func buildQueryModerationAuditParams(db *gorm.DB, isCount bool, param *QueryModerationAuditParams) (*gorm.DB, error) {
	if param == nil {
		return nil, errors.New("nil QueryModerationAuditParams")
	}
	if param.RunID != nil {
		db = db.Where("run_id = ?", *param.RunID)
	}
	if param.ContentID != nil {
		db = db.Where("content_id = ?", *param.ContentID)
	}
	if len(param.FinalStatusIn) != 0 {
		db = db.Where("final_status IN ?", param.FinalStatusIn)
	}
	if isCount {
		return db, nil
	}
	return applyPage(db, param.OrderbyIDAsc, param.Page)
}

func (r *gormRepo) QueryModerationAudit(ctx context.Context, param *QueryModerationAuditParams) ([]*ModerationAuditPo, error) {
	db := r.GetDBWithContext(ctx).Model(&ModerationAuditPo{})
	db, err := buildQueryModerationAuditParams(db, false, param)
	if err != nil {
		return nil, errors.WithMessage(err, "buildQueryModerationAuditParams failed")
	}
	pos := make([]*ModerationAuditPo, 0)
	if err := db.Find(&pos).Error; err != nil {
		return nil, errors.WithMessage(err, "QueryModerationAudit failed")
	}
	return pos, nil
}

func (r *gormRepo) CountModerationAudit(ctx context.Context, param *QueryModerationAuditParams) (int64, error) {
	db := r.GetDBWithContext(ctx).Model(&ModerationAuditPo{})
	db, err := buildQueryModerationAuditParams(db, true, param)
	if err != nil {
		return 0, errors.WithMessage(err, "buildQueryModerationAuditParams failed")
	}
	var count int64
	if err := db.Count(&count).Error; err != nil {
		return 0, errors.WithMessage(err, "CountModerationAudit failed")
	}
	return count, nil
}

func (r *gormRepo) QueryQuizSet(ctx context.Context, param *QueryQuizSetParams) ([]*QuizSetPo, error) {
	if param == nil {
		return nil, errors.New("nil QueryQuizSetParams")
	}
	db := r.GetDBWithContext(ctx).Model(&QuizSetPo{})
	if param.RunID != nil {
		db = db.Where("run_id = ?", *param.RunID)
	}
	db, err := applyPage(db, param.OrderbyIDAsc, param.Page)
	if err != nil {
		return nil, errors.WithMessage(err, "QueryQuizSet failed")
	}
	pos := make([]*QuizSetPo, 0)
	if err := db.Find(&pos).Error; err != nil {
		return nil, errors.WithMessage(err, "QueryQuizSet failed")
	}
	return pos, nil
}

type contextKey string

const (
	transactionContextKey contextKey = "transaction"
)

func (r *gormRepo) GetDBWithContext(ctx context.Context) *gorm.DB {
	tx := ctx.Value(transactionContextKey)
	if tx == nil {
		return r.db.WithContext(ctx)
	}
	return tx.(*gorm.DB)
}

// Transaction 嵌套调用时复用外层事务
func (r *gormRepo) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(transactionContextKey) != nil {
		return fn(ctx)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, transactionContextKey, tx))
	})
}
