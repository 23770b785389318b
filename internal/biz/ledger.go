package biz

import (
	"context"
	"fmt"
	"time"

	"adtrack-service/internal/constants"
	adtrackErrors "adtrack-service/internal/errors"
	"adtrack-service/internal/metrics"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// IntervalState 归属区间状态（显式建模，避免 nil 判断散落各处）
type IntervalState struct {
	Open    bool
	EndedAt time.Time // Open 为 false 时有效
}

// AssignmentInterval 归属区间领域对象
// 每次 link/unlink/reassign 产生一条区间；除关区间三元组外不再修改
type AssignmentInterval struct {
	AssignmentID string
	AccountID    string
	TargetType   string
	TargetID     string
	StartedAt    time.Time
	StartedBy    string
	Reason       string
	EndedAt      *time.Time
	EndedBy      *string
	EndReason    *string
}

// State 返回区间的显式状态
func (i *AssignmentInterval) State() IntervalState {
	if i.EndedAt == nil {
		return IntervalState{Open: true}
	}
	return IntervalState{Open: false, EndedAt: *i.EndedAt}
}

// AssignOutcome 分配事务的结果
type AssignOutcome struct {
	LinkedCount     int            // 实际写入新区间的账户数
	SkippedCount    int            // 因目标未变而幂等跳过的账户数
	LinkedByReason  map[string]int // 按实际写入的 reason 细分的账户数（空 reason 在事务内推导为 initial/reassign）
	PreviousTargets []string       // 被关闭区间指向的旧目标（去重），用于计数同步
}

// UnassignOutcome 解绑事务的结果
type UnassignOutcome struct {
	PreviousTarget string // 被关闭区间指向的目标；本就未归属时为空
}

// LedgerRepo 归属台账数据层接口（定义在 biz 层）
// Assign/Unassign 的"先关后开"必须与账户当前指针更新在同一事务内完成；
// N 个账户的批量操作仍是一个事务，部分失败整体回滚
type LedgerRepo interface {
	// Assign 将一组账户分配到目标；目标已是当前归属的账户幂等跳过（不写历史行）
	// reason 为空时按账户逐个推导 initial/reassign；migration 由调用方显式指定
	Assign(ctx context.Context, accountIDs []string, targetType, targetID, actorID, reason string) (*AssignOutcome, error)
	// Unassign 关闭账户在该目标类型下的开区间并清空指针；本就未归属时无操作
	Unassign(ctx context.Context, accountID, targetType, actorID string) (*UnassignOutcome, error)
	// GetOpenInterval 读取当前开区间；无开区间时返回 nil
	GetOpenInterval(ctx context.Context, accountID, targetType string) (*AssignmentInterval, error)
	// ListIntervals 按开始时间升序返回账户在该目标类型下的全部区间
	ListIntervals(ctx context.Context, accountID, targetType string) ([]*AssignmentInterval, error)
}

// AssignmentLedgerUseCase 归属台账业务逻辑
// 维护账户与开票主体/客户的当前及历史归属关系
type AssignmentLedgerUseCase struct {
	repo      LedgerRepo
	accounts  AccountRepo
	providers InvoiceProviderRepo
	customers CustomerRepo
	sync      *CountSyncUseCase
	activity  *ActivityRecorder
	log       *log.Helper
	metrics   *metrics.TrackMetrics
}

// NewAssignmentLedgerUseCase 创建归属台账 UseCase
func NewAssignmentLedgerUseCase(
	repo LedgerRepo,
	accounts AccountRepo,
	providers InvoiceProviderRepo,
	customers CustomerRepo,
	sync *CountSyncUseCase,
	activity *ActivityRecorder,
	logger log.Logger,
) *AssignmentLedgerUseCase {
	return &AssignmentLedgerUseCase{
		repo:      repo,
		accounts:  accounts,
		providers: providers,
		customers: customers,
		sync:      sync,
		activity:  activity,
		log:       log.NewHelper(logger),
		metrics:   metrics.GetMetrics(),
	}
}

// AssignInvoiceProvider 将账户分配到开票主体
func (uc *AssignmentLedgerUseCase) AssignInvoiceProvider(ctx context.Context, accountID, providerID, actorID, reason string) error {
	return uc.assign(ctx, []string{accountID}, constants.TargetTypeInvoiceProvider, providerID, actorID, reason, constants.ActionAssign)
}

// UnassignInvoiceProvider 解除账户与开票主体的归属
func (uc *AssignmentLedgerUseCase) UnassignInvoiceProvider(ctx context.Context, accountID, actorID string) error {
	return uc.unassign(ctx, accountID, constants.TargetTypeInvoiceProvider, actorID)
}

// BulkReassignInvoiceProvider 批量改绑开票主体（单事务）
func (uc *AssignmentLedgerUseCase) BulkReassignInvoiceProvider(ctx context.Context, accountIDs []string, providerID, actorID, reason string) error {
	return uc.assign(ctx, accountIDs, constants.TargetTypeInvoiceProvider, providerID, actorID, reason, constants.ActionBulkReassign)
}

// AssignCustomer 将账户分配到客户
func (uc *AssignmentLedgerUseCase) AssignCustomer(ctx context.Context, accountID, customerID, actorID, reason string) error {
	return uc.assign(ctx, []string{accountID}, constants.TargetTypeCustomer, customerID, actorID, reason, constants.ActionAssign)
}

// UnassignCustomer 解除账户与客户的归属
func (uc *AssignmentLedgerUseCase) UnassignCustomer(ctx context.Context, accountID, actorID string) error {
	return uc.unassign(ctx, accountID, constants.TargetTypeCustomer, actorID)
}

// BulkReassignCustomer 批量改绑客户（单事务）
func (uc *AssignmentLedgerUseCase) BulkReassignCustomer(ctx context.Context, accountIDs []string, customerID, actorID, reason string) error {
	return uc.assign(ctx, accountIDs, constants.TargetTypeCustomer, customerID, actorID, reason, constants.ActionBulkReassign)
}

// GetCurrentAssignment 读取账户当前开区间（无归属时返回 nil）
func (uc *AssignmentLedgerUseCase) GetCurrentAssignment(ctx context.Context, accountID, targetType string) (*AssignmentInterval, error) {
	return uc.repo.GetOpenInterval(ctx, accountID, targetType)
}

// ListHistory 读取账户的归属历史
func (uc *AssignmentLedgerUseCase) ListHistory(ctx context.Context, accountID, targetType string) ([]*AssignmentInterval, error) {
	return uc.repo.ListIntervals(ctx, accountID, targetType)
}

func (uc *AssignmentLedgerUseCase) assign(ctx context.Context, accountIDs []string, targetType, targetID, actorID, reason, action string) error {
	if reason != "" && reason != constants.ReasonInitial && reason != constants.ReasonReassign && reason != constants.ReasonMigration {
		return pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeAssignReasonInvalid)
	}

	// 目标存在性检查
	switch targetType {
	case constants.TargetTypeInvoiceProvider:
		provider, err := uc.providers.GetInvoiceProvider(ctx, targetID)
		if err != nil {
			return err
		}
		if provider == nil {
			return pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeAssignTargetNotFound)
		}
	case constants.TargetTypeCustomer:
		customer, err := uc.customers.GetCustomer(ctx, targetID)
		if err != nil {
			return err
		}
		if customer == nil {
			return pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeAssignTargetNotFound)
		}
	}

	outcome, err := uc.repo.Assign(ctx, accountIDs, targetType, targetID, actorID, reason)
	if err != nil {
		return err
	}

	// 全部幂等跳过时无需同步计数，也不写活动日志
	if outcome.LinkedCount == 0 {
		return nil
	}

	if uc.metrics != nil {
		// 按事务内实际落库的 reason 计数；空 reason 已被逐账户推导为 initial/reassign
		for rowReason, count := range outcome.LinkedByReason {
			uc.metrics.AssignTotal.WithLabelValues(targetType, rowReason).Add(float64(count))
		}
	}

	touched := &TouchedEntities{}
	switch targetType {
	case constants.TargetTypeInvoiceProvider:
		touched.InvoiceProviderIDs = append(outcome.PreviousTargets, targetID)
	case constants.TargetTypeCustomer:
		touched.CustomerIDs = append(outcome.PreviousTargets, targetID)
	}
	uc.sync.SyncTouched(ctx, touched)

	uc.activity.Record(ctx, &ActivityEvent{
		ActorID:     actorID,
		Action:      action,
		EntityType:  targetTypeEntity(targetType),
		EntityID:    targetID,
		NewValue:    targetID,
		Description: fmt.Sprintf("%s: %d account(s) linked to %s %s (%d skipped)", action, outcome.LinkedCount, targetType, targetID, outcome.SkippedCount),
	})

	return nil
}

func (uc *AssignmentLedgerUseCase) unassign(ctx context.Context, accountID, targetType, actorID string) error {
	account, err := uc.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeAccountNotFound)
	}

	outcome, err := uc.repo.Unassign(ctx, accountID, targetType, actorID)
	if err != nil {
		return err
	}

	if outcome.PreviousTarget == "" {
		// 本就未归属，无操作
		return nil
	}

	if uc.metrics != nil {
		uc.metrics.UnassignTotal.WithLabelValues(targetType).Inc()
	}

	touched := &TouchedEntities{}
	switch targetType {
	case constants.TargetTypeInvoiceProvider:
		touched.InvoiceProviderIDs = []string{outcome.PreviousTarget}
	case constants.TargetTypeCustomer:
		touched.CustomerIDs = []string{outcome.PreviousTarget}
	}
	uc.sync.SyncTouched(ctx, touched)

	uc.activity.Record(ctx, &ActivityEvent{
		ActorID:     actorID,
		Action:      constants.ActionUnassign,
		EntityType:  constants.EntityTypeAccount,
		EntityID:    accountID,
		OldValue:    outcome.PreviousTarget,
		Description: fmt.Sprintf("account %s unlinked from %s %s", accountID, targetType, outcome.PreviousTarget),
	})

	return nil
}

func targetTypeEntity(targetType string) string {
	if targetType == constants.TargetTypeCustomer {
		return constants.EntityTypeCustomer
	}
	return constants.EntityTypeInvoiceProvider
}
