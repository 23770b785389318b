package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adtrack-service/internal/biz"
	"adtrack-service/internal/constants"
	"adtrack-service/internal/data/model"
	adtrackErrors "adtrack-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// spendRepo 消耗数据访问
type spendRepo struct {
	data *Data
	log  *log.Helper
}

// NewSpendRepo 创建消耗 repo（返回 biz.SpendRepo 接口）
func NewSpendRepo(data *Data, logger log.Logger) biz.SpendRepo {
	return &spendRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// AppendSnapshot 追加一条快照，并以账户当前归属指针盖章
// 快照一经写入不再修改；归属以"读取时刻"为准，后续改绑不回溯
func (r *spendRepo) AppendSnapshot(ctx context.Context, snapshot *biz.SpendSnapshot) error {
	var account model.Account
	err := r.data.db.WithContext(ctx).
		Where("account_id = ?", snapshot.AccountID).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeAccountNotFound)
	}
	if err != nil {
		return pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}

	if snapshot.SnapshotID == "" {
		snapshot.SnapshotID = uuid.New().String()
	}
	snapshot.InvoiceProviderID = account.InvoiceProviderID
	snapshot.CustomerID = account.CustomerID

	m := &model.SpendSnapshot{
		SnapshotID:        snapshot.SnapshotID,
		AccountID:         snapshot.AccountID,
		SpendDate:         snapshot.SpendDate,
		CumulativeAmount:  snapshot.CumulativeAmount,
		ObservedAt:        snapshot.ObservedAt,
		InvoiceProviderID: account.InvoiceProviderID,
		CustomerID:        account.CustomerID,
	}
	if err := r.data.db.WithContext(ctx).Create(m).Error; err != nil {
		return pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	return nil
}

// ListSnapshots 按 observed_at 升序返回账户某天的全部快照
// observed_at 相同时按 snapshot_id 打平，保证重复对账时顺序稳定
func (r *spendRepo) ListSnapshots(ctx context.Context, accountID, date string) ([]*biz.SpendSnapshot, error) {
	var snapshots []*model.SpendSnapshot
	if err := r.data.db.WithContext(ctx).
		Where("account_id = ? AND spend_date = ?", accountID, date).
		Order("observed_at ASC, snapshot_id ASC").
		Find(&snapshots).Error; err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}

	result := make([]*biz.SpendSnapshot, 0, len(snapshots))
	for _, s := range snapshots {
		result = append(result, &biz.SpendSnapshot{
			SnapshotID:        s.SnapshotID,
			AccountID:         s.AccountID,
			SpendDate:         s.SpendDate,
			CumulativeAmount:  s.CumulativeAmount,
			ObservedAt:        s.ObservedAt,
			InvoiceProviderID: s.InvoiceProviderID,
			CustomerID:        s.CustomerID,
		})
	}
	return result, nil
}

// ReplaceSpendRecords 单事务内整组替换某账户某天的消耗记录
// 账户全量累计消耗从所有日期的消耗记录重新求和后覆盖，不做增量累加
func (r *spendRepo) ReplaceSpendRecords(ctx context.Context, accountID, date string, records []*biz.SpendRecord) (decimal.Decimal, error) {
	total := decimal.Zero

	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_id = ?", accountID).
			First(&model.Account{}).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeAccountNotFound)
			}
			return err
		}

		if err := tx.Where("account_id = ? AND spend_date = ?", accountID, date).
			Delete(&model.SpendRecord{}).Error; err != nil {
			return err
		}

		for _, record := range records {
			if record.SpendRecordID == "" {
				record.SpendRecordID = uuid.New().String()
			}
			m := &model.SpendRecord{
				SpendRecordID:     record.SpendRecordID,
				AccountID:         record.AccountID,
				SpendDate:         record.SpendDate,
				Amount:            record.Amount,
				PeriodStart:       record.PeriodStart,
				PeriodEnd:         record.PeriodEnd,
				InvoiceProviderID: record.InvoiceProviderID,
				CustomerID:        record.CustomerID,
			}
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}

		var result struct {
			Total decimal.Decimal
		}
		if err := tx.Model(&model.SpendRecord{}).
			Where("account_id = ?", accountID).
			Select("COALESCE(SUM(amount), 0) as total").
			Scan(&result).Error; err != nil {
			return err
		}
		total = result.Total

		return tx.Model(&model.Account{}).
			Where("account_id = ?", accountID).
			Update("total_spend", total).Error
	})
	if err != nil {
		return decimal.Zero, err
	}

	// 事务提交后刷新缓存；失败不影响主流程，只记日志
	cacheCtx, cacheCancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cacheCancel()
	cacheKey := fmt.Sprintf("%s%s", constants.RedisKeyAccountSpend, accountID)
	if err := r.data.rdb.Set(cacheCtx, cacheKey, total.String(), r.data.cacheTTL).Err(); err != nil {
		r.log.Warnf("failed to update account spend cache: account_id=%s, error=%v", accountID, err)
	}

	return total, nil
}

// ListAccountIDsWithSnapshots 返回某天存在快照的全部账户ID
func (r *spendRepo) ListAccountIDsWithSnapshots(ctx context.Context, date string) ([]string, error) {
	var accountIDs []string
	if err := r.data.db.WithContext(ctx).
		Model(&model.SpendSnapshot{}).
		Where("spend_date = ?", date).
		Distinct("account_id").
		Pluck("account_id", &accountIDs).Error; err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	return accountIDs, nil
}
