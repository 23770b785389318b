package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adtrack-service/internal/biz"
	"adtrack-service/internal/constants"
	"adtrack-service/internal/data/model"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// statsRepo 计数同步数据访问
// 所有计数从源数据（账户表、消耗记录表）重算后整体覆盖缓存列，从不增量修改
type statsRepo struct {
	data *Data
	log  *log.Helper
}

// NewStatsRepo 创建计数同步 repo（返回 biz.StatsRepo 接口）
func NewStatsRepo(data *Data, logger log.Logger) biz.StatsRepo {
	return &statsRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// SyncBatchCounts 重算批次的账户总数/活跃数
// 批次已被并发删除时静默跳过
func (r *statsRepo) SyncBatchCounts(ctx context.Context, batchID string) error {
	err := r.data.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		First(&model.Batch{}).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}

	total, live, err := r.countAccounts(ctx, "batch_id = ?", batchID)
	if err != nil {
		return err
	}

	if err := r.data.db.WithContext(ctx).Model(&model.Batch{}).
		Where("batch_id = ?", batchID).
		Updates(map[string]interface{}{
			"total_accounts": total,
			"live_accounts":  live,
		}).Error; err != nil {
		return pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}

	r.cacheCounts(fmt.Sprintf("%s%s", constants.RedisKeyBatchCounts, batchID), total, live)
	return nil
}

// SyncInvoiceProviderCounts 重算开票主体的关联数/活跃数
// 主体已被并发删除时静默跳过
func (r *statsRepo) SyncInvoiceProviderCounts(ctx context.Context, providerID string) error {
	err := r.data.db.WithContext(ctx).
		Where("invoice_provider_id = ?", providerID).
		First(&model.InvoiceProvider{}).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}

	total, live, err := r.countAccounts(ctx, "invoice_provider_id = ?", providerID)
	if err != nil {
		return err
	}

	if err := r.data.db.WithContext(ctx).Model(&model.InvoiceProvider{}).
		Where("invoice_provider_id = ?", providerID).
		Updates(map[string]interface{}{
			"linked_accounts": total,
			"active_accounts": live,
		}).Error; err != nil {
		return pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}

	r.cacheCounts(fmt.Sprintf("%s%s", constants.RedisKeyProviderCounts, providerID), total, live)
	return nil
}

// SyncCustomerCounts 重算客户的账户数与累计消耗
// 累计消耗从账户表的 total_spend 求和（该列本身由对账从消耗记录重算）
func (r *statsRepo) SyncCustomerCounts(ctx context.Context, customerID string) error {
	err := r.data.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		First(&model.Customer{}).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}

	total, live, err := r.countAccounts(ctx, "customer_id = ?", customerID)
	if err != nil {
		return err
	}

	var spend struct {
		Total decimal.Decimal
	}
	if err := r.data.db.WithContext(ctx).Model(&model.Account{}).
		Where("customer_id = ?", customerID).
		Select("COALESCE(SUM(total_spend), 0) as total").
		Scan(&spend).Error; err != nil {
		return pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}

	if err := r.data.db.WithContext(ctx).Model(&model.Customer{}).
		Where("customer_id = ?", customerID).
		Updates(map[string]interface{}{
			"total_accounts":  total,
			"active_accounts": live,
			"total_spend":     spend.Total,
		}).Error; err != nil {
		return pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}

	r.cacheCounts(fmt.Sprintf("%s%s", constants.RedisKeyCustomerCounts, customerID), total, live)
	return nil
}

// ListBatchIDs 全量批次ID（cron 兜底重算用）
func (r *statsRepo) ListBatchIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.data.db.WithContext(ctx).
		Model(&model.Batch{}).
		Pluck("batch_id", &ids).Error; err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	return ids, nil
}

// ListInvoiceProviderIDs 全量开票主体ID
func (r *statsRepo) ListInvoiceProviderIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.data.db.WithContext(ctx).
		Model(&model.InvoiceProvider{}).
		Pluck("invoice_provider_id", &ids).Error; err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	return ids, nil
}

// ListCustomerIDs 全量客户ID
func (r *statsRepo) ListCustomerIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.data.db.WithContext(ctx).
		Model(&model.Customer{}).
		Pluck("customer_id", &ids).Error; err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	return ids, nil
}

// countAccounts 按条件统计账户总数与活跃数
func (r *statsRepo) countAccounts(ctx context.Context, condition string, arg interface{}) (int64, int64, error) {
	var total, live int64
	if err := r.data.db.WithContext(ctx).Model(&model.Account{}).
		Where(condition, arg).
		Count(&total).Error; err != nil {
		return 0, 0, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	if err := r.data.db.WithContext(ctx).Model(&model.Account{}).
		Where(condition, arg).
		Where("status = ?", constants.StatusActive).
		Count(&live).Error; err != nil {
		return 0, 0, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	return total, live, nil
}

// cacheCounts 缓存计数；失败不影响主流程，只记日志
func (r *statsRepo) cacheCounts(key string, total, live int64) {
	cacheCtx, cacheCancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cacheCancel()
	value := fmt.Sprintf("%d:%d", total, live)
	if err := r.data.rdb.Set(cacheCtx, key, value, r.data.cacheTTL).Err(); err != nil {
		r.log.Warnf("failed to update counts cache: key=%s, error=%v", key, err)
	}
}
