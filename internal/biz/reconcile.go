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
	"github.com/shopspring/decimal"
)

// SpendSnapshot 消耗快照领域对象
// 某时刻读到的当天累计消耗，归属指针为读取时刻账户的当前归属
type SpendSnapshot struct {
	SnapshotID        string
	AccountID         string
	SpendDate         string // 2024-11-02
	CumulativeAmount  decimal.Decimal
	ObservedAt        time.Time
	InvoiceProviderID *string
	CustomerID        *string
}

// SpendRecord 消耗记录领域对象（派生数据）
// 金额恒为正、区间不重叠，归属取自快照而非账户当前指针
type SpendRecord struct {
	SpendRecordID     string
	AccountID         string
	SpendDate         string
	Amount            decimal.Decimal
	PeriodStart       time.Time
	PeriodEnd         time.Time
	InvoiceProviderID *string
	CustomerID        *string
}

// ReconcileResult 对账结果
type ReconcileResult struct {
	RecordsWritten   int
	SkippedSnapshots int
	TotalForAccount  decimal.Decimal // 对账后账户的全量累计消耗
}

// SpendRepo 消耗数据层接口（定义在 biz 层）
type SpendRepo interface {
	// AppendSnapshot 追加一条快照，并以账户当前归属指针盖章；账户不存在返回错误
	AppendSnapshot(ctx context.Context, snapshot *SpendSnapshot) error
	// ListSnapshots 按 observed_at 升序返回账户某天的全部快照（同一时刻按 snapshot_id 打平，顺序稳定）
	ListSnapshots(ctx context.Context, accountID, date string) ([]*SpendSnapshot, error)
	// ReplaceSpendRecords 单事务内删除该账户该天的全部旧记录、写入新记录，
	// 并把账户全量累计消耗重算为所有日期消耗记录之和（刷新缓存而非增量累加）
	ReplaceSpendRecords(ctx context.Context, accountID, date string, records []*SpendRecord) (decimal.Decimal, error)
	// ListAccountIDsWithSnapshots 返回某天存在快照的全部账户ID
	ListAccountIDsWithSnapshots(ctx context.Context, date string) ([]string, error)
}

// ReconcileLocker 对账互斥锁接口（同一账户同一天的对账互斥）
type ReconcileLocker interface {
	// Lock 获取锁；返回释放函数
	Lock(ctx context.Context, key string) (func(), error)
}

// SpendReconcileUseCase 消耗对账业务逻辑
// 把某账户某天的累计快照序列转换为互不重叠、可归属的消耗增量记录，幂等
type SpendReconcileUseCase struct {
	repo     SpendRepo
	accounts AccountRepo
	sync     *CountSyncUseCase
	activity *ActivityRecorder
	locker   ReconcileLocker
	log      *log.Helper
	metrics  *metrics.TrackMetrics
}

// NewSpendReconcileUseCase 创建消耗对账 UseCase
func NewSpendReconcileUseCase(
	repo SpendRepo,
	accounts AccountRepo,
	sync *CountSyncUseCase,
	activity *ActivityRecorder,
	locker ReconcileLocker,
	logger log.Logger,
) *SpendReconcileUseCase {
	return &SpendReconcileUseCase{
		repo:     repo,
		accounts: accounts,
		sync:     sync,
		activity: activity,
		locker:   locker,
		log:      log.NewHelper(logger),
		metrics:  metrics.GetMetrics(),
	}
}

// Reconcile 对某账户某天的快照做一次完整对账
// 重复调用且快照未变时产出完全一致（整组删除重写，不做合并）
func (uc *SpendReconcileUseCase) Reconcile(ctx context.Context, accountID, date string) (*ReconcileResult, error) {
	start := time.Now()
	result, err := uc.reconcile(ctx, accountID, date)
	if uc.metrics != nil {
		uc.metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
		label := constants.ResultSuccess
		if err != nil {
			label = constants.ResultFailed
		}
		uc.metrics.ReconcileTotal.WithLabelValues(label).Inc()
		if result != nil {
			uc.metrics.ReconcileRecordsTotal.Add(float64(result.RecordsWritten))
			uc.metrics.SnapshotSkippedTotal.Add(float64(result.SkippedSnapshots))
		}
	}
	return result, err
}

func (uc *SpendReconcileUseCase) reconcile(ctx context.Context, accountID, date string) (*ReconcileResult, error) {
	dayStart, err := time.ParseInLocation(constants.TimeFormatDate, date, time.UTC)
	if err != nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeSnapshotDateInvalid)
	}

	if uc.locker != nil {
		lockKey := fmt.Sprintf("%s%s:%s", constants.RedisKeyReconcileLock, accountID, date)
		unlock, err := uc.locker.Lock(ctx, lockKey)
		if err != nil {
			return nil, pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeReconcileLockFailed)
		}
		defer unlock()
	}

	account, err := uc.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeAccountNotFound)
	}

	snapshots, err := uc.repo.ListSnapshots(ctx, accountID, date)
	if err != nil {
		return nil, err
	}
	// 零快照是"没有可做的事"，但要让运营方察觉导入缺失，所以不静默成功
	if len(snapshots) == 0 {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeNoSnapshots)
	}

	records, skipped := buildSpendRecords(accountID, date, dayStart, snapshots)

	total, err := uc.repo.ReplaceSpendRecords(ctx, accountID, date, records)
	if err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, adtrackErrors.ErrCodeReconcileFailed)
	}

	// 消耗变化波及客户的累计消耗缓存
	if account.CustomerID != nil {
		if err := uc.sync.SyncCustomerCounts(ctx, *account.CustomerID); err != nil {
			uc.log.Warnf("sync customer counts after reconcile failed: customer_id=%s, error=%v", *account.CustomerID, err)
		}
	}

	return &ReconcileResult{
		RecordsWritten:   len(records),
		SkippedSnapshots: skipped,
		TotalForAccount:  total,
	}, nil
}

// ImportSnapshot 导入一条快照并立即对账该账户该天
func (uc *SpendReconcileUseCase) ImportSnapshot(ctx context.Context, snapshot *SpendSnapshot, source string) (*ReconcileResult, error) {
	if _, err := time.ParseInLocation(constants.TimeFormatDate, snapshot.SpendDate, time.UTC); err != nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeSnapshotDateInvalid)
	}
	if snapshot.CumulativeAmount.IsNegative() {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeSnapshotAmountInvalid)
	}
	if snapshot.ObservedAt.IsZero() {
		snapshot.ObservedAt = time.Now().UTC()
	}

	if err := uc.repo.AppendSnapshot(ctx, snapshot); err != nil {
		return nil, err
	}
	if uc.metrics != nil {
		uc.metrics.SnapshotImportedTotal.WithLabelValues(source).Inc()
	}

	return uc.Reconcile(ctx, snapshot.AccountID, snapshot.SpendDate)
}

// ReconcileDay 对某天所有有快照的账户做一次对账（cron 调用）
// 单个账户失败不阻断其余账户
func (uc *SpendReconcileUseCase) ReconcileDay(ctx context.Context, date string) (processed, failed int, err error) {
	accountIDs, err := uc.repo.ListAccountIDsWithSnapshots(ctx, date)
	if err != nil {
		return 0, 0, err
	}
	for _, accountID := range accountIDs {
		if _, rerr := uc.Reconcile(ctx, accountID, date); rerr != nil {
			failed++
			uc.log.Warnf("reconcile failed: account_id=%s, date=%s, error=%v", accountID, date, rerr)
			continue
		}
		processed++
	}
	return processed, failed, nil
}

// buildSpendRecords 由快照序列推导消耗记录（纯函数，确定性）
// 累计值回退或重复（外部导入的数据质量问题）静默跳过，不产生负数或零记录；
// previousCumulative 只在产出正增量时前进，保证 [100, 90, 250] 推导出 100 与 150
func buildSpendRecords(accountID, date string, dayStart time.Time, snapshots []*SpendSnapshot) ([]*SpendRecord, int) {
	records := make([]*SpendRecord, 0, len(snapshots))
	skipped := 0

	// 同一 observed_at 只保留序列里的最后一条，
	// 否则会派生出 period_end 相同的两条记录，违反派生表的唯一键
	collapsed := make([]*SpendSnapshot, 0, len(snapshots))
	for _, snap := range snapshots {
		if n := len(collapsed); n > 0 && collapsed[n-1].ObservedAt.Equal(snap.ObservedAt) {
			collapsed[n-1] = snap
			skipped++
			continue
		}
		collapsed = append(collapsed, snap)
	}

	previous := decimal.Zero
	for i, snap := range collapsed {
		delta := snap.CumulativeAmount.Sub(previous)
		if !delta.IsPositive() {
			if i > 0 || !snap.CumulativeAmount.IsZero() {
				skipped++
			}
			continue
		}

		periodStart := dayStart
		if i > 0 {
			periodStart = collapsed[i-1].ObservedAt
		}
		records = append(records, &SpendRecord{
			AccountID:         accountID,
			SpendDate:         date,
			Amount:            delta,
			PeriodStart:       periodStart,
			PeriodEnd:         snap.ObservedAt,
			InvoiceProviderID: snap.InvoiceProviderID,
			CustomerID:        snap.CustomerID,
		})
		previous = snap.CumulativeAmount
	}

	return records, skipped
}
