package biz

import (
	"context"
	"time"

	"adtrack-service/internal/constants"
	adtrackErrors "adtrack-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// Batch 账户批次领域对象
type Batch struct {
	BatchID       string
	Name          string
	Timezone      string
	CurrencyClass string
	Year          int
	Readiness     int // 0-10 成熟度评分，分配规划的优先级依据
	Status        string
	TotalAccounts int
	LiveAccounts  int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BatchRepo 批次数据层接口（定义在 biz 层）
type BatchRepo interface {
	GetBatch(ctx context.Context, batchID string) (*Batch, error)
	GetBatchByName(ctx context.Context, name string) (*Batch, error)
	CreateBatch(ctx context.Context, batch *Batch) error
	// DeleteBatch 删除批次；批次下仍有账户时返回冲突
	DeleteBatch(ctx context.Context, batchID string) error
}

// BatchUseCase 批次业务逻辑
type BatchUseCase struct {
	repo BatchRepo
	log  *log.Helper
}

// NewBatchUseCase 创建批次 UseCase
func NewBatchUseCase(repo BatchRepo, logger log.Logger) *BatchUseCase {
	return &BatchUseCase{
		repo: repo,
		log:  log.NewHelper(logger),
	}
}

// CreateBatch 创建批次
func (uc *BatchUseCase) CreateBatch(ctx context.Context, batch *Batch) (*Batch, error) {
	if batch.Readiness < 0 || batch.Readiness > constants.ReadinessMax {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeBatchReadinessInvalid)
	}
	if batch.Status == "" {
		batch.Status = constants.StatusActive
	}

	existing, err := uc.repo.GetBatchByName(ctx, batch.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeBatchConflict)
	}

	if err := uc.repo.CreateBatch(ctx, batch); err != nil {
		return nil, err
	}
	return batch, nil
}

// GetBatch 获取批次
func (uc *BatchUseCase) GetBatch(ctx context.Context, batchID string) (*Batch, error) {
	batch, err := uc.repo.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeBatchNotFound)
	}
	return batch, nil
}

// DeleteBatch 删除批次（仅当批次下没有账户）
func (uc *BatchUseCase) DeleteBatch(ctx context.Context, batchID string) error {
	return uc.repo.DeleteBatch(ctx, batchID)
}
