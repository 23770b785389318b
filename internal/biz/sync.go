package biz

import (
	"context"
	"time"

	"adtrack-service/internal/constants"
	"adtrack-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// TouchedEntities 一次变更波及的实体集合
// 批量操作波及的是集合而不是单个ID：例如批量解绑 50 个账户可能波及 50 个开票主体，
// 每个主体同步一次，而不是每个账户同步一次
type TouchedEntities struct {
	BatchIDs           []string
	InvoiceProviderIDs []string
	CustomerIDs        []string
}

// Merge 合并另一组波及实体（去重）
func (t *TouchedEntities) Merge(other *TouchedEntities) {
	if other == nil {
		return
	}
	t.BatchIDs = mergeIDs(t.BatchIDs, other.BatchIDs)
	t.InvoiceProviderIDs = mergeIDs(t.InvoiceProviderIDs, other.InvoiceProviderIDs)
	t.CustomerIDs = mergeIDs(t.CustomerIDs, other.CustomerIDs)
}

func mergeIDs(dst, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, id := range dst {
		seen[id] = true
	}
	for _, id := range src {
		if id != "" && !seen[id] {
			seen[id] = true
			dst = append(dst, id)
		}
	}
	return dst
}

// StatsRepo 计数同步数据层接口（定义在 biz 层）
// 各方法从源数据（账户表按状态分组、消耗记录求和）重算缓存计数并整体覆盖；
// 目标实体已被并发删除时静默跳过（返回 nil），不算错误
type StatsRepo interface {
	SyncBatchCounts(ctx context.Context, batchID string) error
	SyncInvoiceProviderCounts(ctx context.Context, providerID string) error
	SyncCustomerCounts(ctx context.Context, customerID string) error
	ListBatchIDs(ctx context.Context) ([]string, error)
	ListInvoiceProviderIDs(ctx context.Context) ([]string, error)
	ListCustomerIDs(ctx context.Context) ([]string, error)
}

// CountSyncUseCase 计数同步业务逻辑
// 变更后总是从源数据重算，从不在原值上增减，避免计数漂移
type CountSyncUseCase struct {
	repo    StatsRepo
	log     *log.Helper
	metrics *metrics.TrackMetrics
}

// NewCountSyncUseCase 创建计数同步 UseCase
func NewCountSyncUseCase(repo StatsRepo, logger log.Logger) *CountSyncUseCase {
	return &CountSyncUseCase{
		repo:    repo,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// SyncBatchCounts 重算批次的账户总数/活跃数
func (uc *CountSyncUseCase) SyncBatchCounts(ctx context.Context, batchID string) error {
	return uc.observe(constants.EntityTypeBatch, func() error {
		return uc.repo.SyncBatchCounts(ctx, batchID)
	})
}

// SyncInvoiceProviderCounts 重算开票主体的关联数/活跃数
func (uc *CountSyncUseCase) SyncInvoiceProviderCounts(ctx context.Context, providerID string) error {
	return uc.observe(constants.EntityTypeInvoiceProvider, func() error {
		return uc.repo.SyncInvoiceProviderCounts(ctx, providerID)
	})
}

// SyncCustomerCounts 重算客户的账户数与累计消耗
func (uc *CountSyncUseCase) SyncCustomerCounts(ctx context.Context, customerID string) error {
	return uc.observe(constants.EntityTypeCustomer, func() error {
		return uc.repo.SyncCustomerCounts(ctx, customerID)
	})
}

// SyncTouched 同步一次变更波及的全部实体
// 单个实体同步失败不阻断其余实体（计数可由 cron 全量重算兜底），只记日志
func (uc *CountSyncUseCase) SyncTouched(ctx context.Context, touched *TouchedEntities) {
	if touched == nil {
		return
	}
	for _, id := range touched.BatchIDs {
		if err := uc.SyncBatchCounts(ctx, id); err != nil {
			uc.log.Warnf("sync batch counts failed: batch_id=%s, error=%v", id, err)
		}
	}
	for _, id := range touched.InvoiceProviderIDs {
		if err := uc.SyncInvoiceProviderCounts(ctx, id); err != nil {
			uc.log.Warnf("sync invoice provider counts failed: provider_id=%s, error=%v", id, err)
		}
	}
	for _, id := range touched.CustomerIDs {
		if err := uc.SyncCustomerCounts(ctx, id); err != nil {
			uc.log.Warnf("sync customer counts failed: customer_id=%s, error=%v", id, err)
		}
	}
}

// SyncAll 全量重算所有实体的缓存计数（cron 兜底）
func (uc *CountSyncUseCase) SyncAll(ctx context.Context) (int, error) {
	synced := 0

	batchIDs, err := uc.repo.ListBatchIDs(ctx)
	if err != nil {
		return synced, err
	}
	providerIDs, err := uc.repo.ListInvoiceProviderIDs(ctx)
	if err != nil {
		return synced, err
	}
	customerIDs, err := uc.repo.ListCustomerIDs(ctx)
	if err != nil {
		return synced, err
	}

	uc.SyncTouched(ctx, &TouchedEntities{
		BatchIDs:           batchIDs,
		InvoiceProviderIDs: providerIDs,
		CustomerIDs:        customerIDs,
	})
	synced = len(batchIDs) + len(providerIDs) + len(customerIDs)
	return synced, nil
}

func (uc *CountSyncUseCase) observe(entityType string, fn func() error) error {
	start := time.Now()
	err := fn()
	if uc.metrics != nil {
		uc.metrics.CountSyncDuration.WithLabelValues(entityType).Observe(time.Since(start).Seconds())
		result := constants.ResultSuccess
		if err != nil {
			result = constants.ResultFailed
		}
		uc.metrics.CountSyncTotal.WithLabelValues(entityType, result).Inc()
	}
	return err
}
