package biz

import (
	"context"
	"fmt"
	"time"

	"adtrack-service/internal/constants"
	adtrackErrors "adtrack-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

// Account 投放账户领域对象
// InvoiceProviderID / CustomerID 是当前归属指针，nil 表示未归属
type Account struct {
	AccountID         string
	ExternalID        string
	Name              string
	Currency          string
	Status            string
	BatchID           string
	InvoiceProviderID *string
	CustomerID        *string
	TotalSpend        decimal.Decimal
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsActive 账户是否活跃
func (a *Account) IsActive() bool {
	return a.Status == constants.StatusActive
}

// AccountRepo 账户数据层接口（定义在 biz 层）
type AccountRepo interface {
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	GetAccountByExternalID(ctx context.Context, externalID string) (*Account, error)
	CreateAccount(ctx context.Context, account *Account) error
	ListAccountsByBatch(ctx context.Context, batchID string) ([]*Account, error)
	// BulkUpdateStatus 单事务内批量改状态，返回波及的批次/主体/客户集合
	BulkUpdateStatus(ctx context.Context, accountIDs []string, status string) (*TouchedEntities, error)
}

// AccountUseCase 账户业务逻辑
type AccountUseCase struct {
	repo     AccountRepo
	batches  BatchRepo
	sync     *CountSyncUseCase
	activity *ActivityRecorder
	log      *log.Helper
}

// NewAccountUseCase 创建账户 UseCase
func NewAccountUseCase(repo AccountRepo, batches BatchRepo, sync *CountSyncUseCase, activity *ActivityRecorder, logger log.Logger) *AccountUseCase {
	return &AccountUseCase{
		repo:     repo,
		batches:  batches,
		sync:     sync,
		activity: activity,
		log:      log.NewHelper(logger),
	}
}

// CreateAccount 创建账户
// 账户创建后 batch_id 不可变；外部ID重复返回冲突
func (uc *AccountUseCase) CreateAccount(ctx context.Context, account *Account, actorID string) (*Account, error) {
	if account.Status == "" {
		account.Status = constants.StatusActive
	}
	if account.Status != constants.StatusActive && account.Status != constants.StatusInactive {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeAccountStatusInvalid)
	}

	batch, err := uc.batches.GetBatch(ctx, account.BatchID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeBatchNotFound)
	}

	existing, err := uc.repo.GetAccountByExternalID(ctx, account.ExternalID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeAccountConflict)
	}

	account.TotalSpend = decimal.Zero
	if err := uc.repo.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	// 创建后刷新批次计数
	if err := uc.sync.SyncBatchCounts(ctx, account.BatchID); err != nil {
		uc.log.Warnf("sync batch counts after create failed: batch_id=%s, error=%v", account.BatchID, err)
	}

	uc.activity.Record(ctx, &ActivityEvent{
		ActorID:     actorID,
		Action:      constants.ActionCreate,
		EntityType:  constants.EntityTypeAccount,
		EntityID:    account.AccountID,
		NewValue:    account.Status,
		Description: fmt.Sprintf("account %s created in batch %s", account.ExternalID, account.BatchID),
	})

	return account, nil
}

// GetAccount 获取账户
func (uc *AccountUseCase) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	account, err := uc.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeAccountNotFound)
	}
	return account, nil
}

// BulkSetStatus 批量修改账户状态
// 单事务写入；之后对波及的批次/开票主体/客户各同步一次计数（集合语义）
func (uc *AccountUseCase) BulkSetStatus(ctx context.Context, accountIDs []string, status, actorID string) (int, error) {
	if status != constants.StatusActive && status != constants.StatusInactive {
		return 0, pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeAccountStatusInvalid)
	}
	if len(accountIDs) == 0 {
		return 0, nil
	}

	touched, err := uc.repo.BulkUpdateStatus(ctx, accountIDs, status)
	if err != nil {
		return 0, err
	}

	uc.sync.SyncTouched(ctx, touched)

	uc.activity.Record(ctx, &ActivityEvent{
		ActorID:     actorID,
		Action:      constants.ActionStatusChange,
		EntityType:  constants.EntityTypeAccount,
		EntityID:    fmt.Sprintf("%d accounts", len(accountIDs)),
		NewValue:    status,
		Description: fmt.Sprintf("bulk status change to %s for %d accounts", status, len(accountIDs)),
	})

	return len(accountIDs), nil
}
