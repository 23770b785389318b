package biz

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memAccountRepo 账户内存实现
type memAccountRepo struct {
	accounts map[string]*Account
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{accounts: make(map[string]*Account)}
}

func (r *memAccountRepo) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	return r.accounts[accountID], nil
}

func (r *memAccountRepo) GetAccountByExternalID(ctx context.Context, externalID string) (*Account, error) {
	for _, a := range r.accounts {
		if a.ExternalID == externalID {
			return a, nil
		}
	}
	return nil, nil
}

func (r *memAccountRepo) CreateAccount(ctx context.Context, account *Account) error {
	r.accounts[account.AccountID] = account
	return nil
}

func (r *memAccountRepo) ListAccountsByBatch(ctx context.Context, batchID string) ([]*Account, error) {
	var result []*Account
	for _, a := range r.accounts {
		if a.BatchID == batchID {
			result = append(result, a)
		}
	}
	return result, nil
}

func (r *memAccountRepo) BulkUpdateStatus(ctx context.Context, accountIDs []string, status string) (*TouchedEntities, error) {
	touched := &TouchedEntities{}
	for _, id := range accountIDs {
		a := r.accounts[id]
		if a == nil {
			continue
		}
		a.Status = status
		touched.Merge(&TouchedEntities{BatchIDs: []string{a.BatchID}})
	}
	return touched, nil
}

// memSpendRepo 消耗内存实现
type memSpendRepo struct {
	snapshots map[string][]*SpendSnapshot // accountID:date
	records   map[string][]*SpendRecord   // accountID:date
}

func newMemSpendRepo() *memSpendRepo {
	return &memSpendRepo{
		snapshots: make(map[string][]*SpendSnapshot),
		records:   make(map[string][]*SpendRecord),
	}
}

func spendKey(accountID, date string) string {
	return accountID + ":" + date
}

func (r *memSpendRepo) AppendSnapshot(ctx context.Context, snapshot *SpendSnapshot) error {
	key := spendKey(snapshot.AccountID, snapshot.SpendDate)
	r.snapshots[key] = append(r.snapshots[key], snapshot)
	return nil
}

func (r *memSpendRepo) ListSnapshots(ctx context.Context, accountID, date string) ([]*SpendSnapshot, error) {
	return r.snapshots[spendKey(accountID, date)], nil
}

func (r *memSpendRepo) ReplaceSpendRecords(ctx context.Context, accountID, date string, records []*SpendRecord) (decimal.Decimal, error) {
	r.records[spendKey(accountID, date)] = records
	total := decimal.Zero
	for key, recs := range r.records {
		if !strings.HasPrefix(key, accountID+":") {
			continue
		}
		for _, rec := range recs {
			total = total.Add(rec.Amount)
		}
	}
	return total, nil
}

func (r *memSpendRepo) ListAccountIDsWithSnapshots(ctx context.Context, date string) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, snaps := range r.snapshots {
		for _, s := range snaps {
			if s.SpendDate == date && !seen[s.AccountID] {
				seen[s.AccountID] = true
				ids = append(ids, s.AccountID)
			}
		}
	}
	return ids, nil
}

// noopLocker 测试用锁
type noopLocker struct {
	locked int
}

func (l *noopLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.locked++
	return func() {}, nil
}

func newReconcileUseCase(accounts *memAccountRepo, spend *memSpendRepo) *SpendReconcileUseCase {
	return NewSpendReconcileUseCase(
		spend,
		accounts,
		NewCountSyncUseCase(&recordingStatsRepo{}, log.DefaultLogger),
		NewActivityRecorder(nil, log.DefaultLogger),
		&noopLocker{},
		log.DefaultLogger,
	)
}

func snap(accountID, date string, amount string, observedAt time.Time) *SpendSnapshot {
	return &SpendSnapshot{
		AccountID:        accountID,
		SpendDate:        date,
		CumulativeAmount: decimal.RequireFromString(amount),
		ObservedAt:       observedAt,
	}
}

func TestBuildSpendRecords(t *testing.T) {
	dayStart := time.Date(2024, 11, 2, 0, 0, 0, 0, time.UTC)
	t10 := dayStart.Add(10 * time.Hour)
	t14 := dayStart.Add(14 * time.Hour)
	t23 := dayStart.Add(23 * time.Hour)

	t.Run("单调递增序列逐段取增量", func(t *testing.T) {
		snapshots := []*SpendSnapshot{
			snap("a1", "2024-11-02", "100", t10),
			snap("a1", "2024-11-02", "250", t14),
			snap("a1", "2024-11-02", "400", t23),
		}
		records, skipped := buildSpendRecords("a1", "2024-11-02", dayStart, snapshots)

		require.Len(t, records, 3)
		assert.Equal(t, 0, skipped)
		assert.True(t, records[0].Amount.Equal(decimal.NewFromInt(100)))
		assert.True(t, records[1].Amount.Equal(decimal.NewFromInt(150)))
		assert.True(t, records[2].Amount.Equal(decimal.NewFromInt(150)))

		// 区间首尾相接，不重叠
		assert.Equal(t, dayStart, records[0].PeriodStart)
		assert.Equal(t, t10, records[0].PeriodEnd)
		assert.Equal(t, t10, records[1].PeriodStart)
		assert.Equal(t, t14, records[1].PeriodEnd)
	})

	t.Run("累计值回退的快照跳过且基准不回退", func(t *testing.T) {
		snapshots := []*SpendSnapshot{
			snap("a1", "2024-11-02", "100", t10),
			snap("a1", "2024-11-02", "90", t14),
			snap("a1", "2024-11-02", "250", t23),
		}
		records, skipped := buildSpendRecords("a1", "2024-11-02", dayStart, snapshots)

		require.Len(t, records, 2)
		assert.Equal(t, 1, skipped)
		assert.True(t, records[0].Amount.Equal(decimal.NewFromInt(100)))
		assert.True(t, records[1].Amount.Equal(decimal.NewFromInt(150)))
	})

	t.Run("重复累计值跳过", func(t *testing.T) {
		snapshots := []*SpendSnapshot{
			snap("a1", "2024-11-02", "50", t10),
			snap("a1", "2024-11-02", "50", t14),
		}
		records, skipped := buildSpendRecords("a1", "2024-11-02", dayStart, snapshots)

		require.Len(t, records, 1)
		assert.Equal(t, 1, skipped)
	})

	t.Run("首条零快照不产生记录也不算跳过", func(t *testing.T) {
		snapshots := []*SpendSnapshot{
			snap("a1", "2024-11-02", "0", t10),
			snap("a1", "2024-11-02", "30", t14),
		}
		records, skipped := buildSpendRecords("a1", "2024-11-02", dayStart, snapshots)

		require.Len(t, records, 1)
		assert.Equal(t, 0, skipped)
		assert.True(t, records[0].Amount.Equal(decimal.NewFromInt(30)))
		assert.Equal(t, t10, records[0].PeriodStart)
	})

	t.Run("同一观测时刻只保留最后一条快照", func(t *testing.T) {
		snapshots := []*SpendSnapshot{
			snap("a1", "2024-11-02", "90", t10),
			snap("a1", "2024-11-02", "100", t10),
		}
		records, skipped := buildSpendRecords("a1", "2024-11-02", dayStart, snapshots)

		require.Len(t, records, 1)
		assert.Equal(t, 1, skipped)
		assert.True(t, records[0].Amount.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, t10, records[0].PeriodEnd)
	})

	t.Run("派生记录的区间终点互不相同", func(t *testing.T) {
		snapshots := []*SpendSnapshot{
			snap("a1", "2024-11-02", "50", t10),
			snap("a1", "2024-11-02", "90", t14),
			snap("a1", "2024-11-02", "100", t14),
		}
		records, skipped := buildSpendRecords("a1", "2024-11-02", dayStart, snapshots)

		require.Len(t, records, 2)
		assert.Equal(t, 1, skipped)
		seen := make(map[time.Time]bool)
		for _, r := range records {
			assert.False(t, seen[r.PeriodEnd])
			seen[r.PeriodEnd] = true
		}
		assert.True(t, records[1].Amount.Equal(decimal.NewFromInt(50)))
		assert.Equal(t, t10, records[1].PeriodStart)
		assert.Equal(t, t14, records[1].PeriodEnd)
	})

	t.Run("归属取自快照而非账户当前指针", func(t *testing.T) {
		p1, p2 := "provider-1", "provider-2"
		s1 := snap("a1", "2024-11-02", "100", t10)
		s1.InvoiceProviderID = &p1
		s2 := snap("a1", "2024-11-02", "250", t14)
		s2.InvoiceProviderID = &p2

		records, _ := buildSpendRecords("a1", "2024-11-02", dayStart, []*SpendSnapshot{s1, s2})
		require.Len(t, records, 2)
		assert.Equal(t, &p1, records[0].InvoiceProviderID)
		assert.Equal(t, &p2, records[1].InvoiceProviderID)
	})
}

func TestReconcileIdempotent(t *testing.T) {
	accounts := newMemAccountRepo()
	accounts.accounts["a1"] = &Account{AccountID: "a1", Status: "active"}
	spend := newMemSpendRepo()
	uc := newReconcileUseCase(accounts, spend)

	ctx := context.Background()
	dayStart := time.Date(2024, 11, 2, 0, 0, 0, 0, time.UTC)
	_ = spend.AppendSnapshot(ctx, snap("a1", "2024-11-02", "100", dayStart.Add(10*time.Hour)))
	_ = spend.AppendSnapshot(ctx, snap("a1", "2024-11-02", "250", dayStart.Add(14*time.Hour)))

	first, err := uc.Reconcile(ctx, "a1", "2024-11-02")
	require.NoError(t, err)
	second, err := uc.Reconcile(ctx, "a1", "2024-11-02")
	require.NoError(t, err)

	assert.Equal(t, first.RecordsWritten, second.RecordsWritten)
	assert.True(t, first.TotalForAccount.Equal(second.TotalForAccount))
	assert.True(t, second.TotalForAccount.Equal(decimal.NewFromInt(250)))
	// 整组重写，不累积
	assert.Len(t, spend.records["a1:2024-11-02"], 2)
}

func TestReconcileNoSnapshots(t *testing.T) {
	accounts := newMemAccountRepo()
	accounts.accounts["a1"] = &Account{AccountID: "a1", Status: "active"}
	uc := newReconcileUseCase(accounts, newMemSpendRepo())

	_, err := uc.Reconcile(context.Background(), "a1", "2024-11-02")
	assert.Error(t, err)
}

func TestReconcileInvalidDate(t *testing.T) {
	accounts := newMemAccountRepo()
	uc := newReconcileUseCase(accounts, newMemSpendRepo())

	_, err := uc.Reconcile(context.Background(), "a1", "11/02/2024")
	assert.Error(t, err)
}

func TestReconcileAccountNotFound(t *testing.T) {
	uc := newReconcileUseCase(newMemAccountRepo(), newMemSpendRepo())

	_, err := uc.Reconcile(context.Background(), "missing", "2024-11-02")
	assert.Error(t, err)
}

func TestImportSnapshot(t *testing.T) {
	accounts := newMemAccountRepo()
	accounts.accounts["a1"] = &Account{AccountID: "a1", Status: "active"}
	spend := newMemSpendRepo()
	uc := newReconcileUseCase(accounts, spend)

	ctx := context.Background()

	t.Run("负数金额拒绝", func(t *testing.T) {
		_, err := uc.ImportSnapshot(ctx, snap("a1", "2024-11-02", "-1", time.Now()), "api")
		assert.Error(t, err)
	})

	t.Run("导入后立即对账", func(t *testing.T) {
		result, err := uc.ImportSnapshot(ctx, snap("a1", "2024-11-02", "120", time.Date(2024, 11, 2, 9, 0, 0, 0, time.UTC)), "api")
		require.NoError(t, err)
		assert.Equal(t, 1, result.RecordsWritten)
		assert.True(t, result.TotalForAccount.Equal(decimal.NewFromInt(120)))
	})
}

func TestReconcileDay(t *testing.T) {
	accounts := newMemAccountRepo()
	accounts.accounts["a1"] = &Account{AccountID: "a1", Status: "active"}
	// a2 不存在于账户表，对账会失败，但不阻断 a1
	spend := newMemSpendRepo()
	uc := newReconcileUseCase(accounts, spend)

	ctx := context.Background()
	_ = spend.AppendSnapshot(ctx, snap("a1", "2024-11-02", "100", time.Date(2024, 11, 2, 10, 0, 0, 0, time.UTC)))
	_ = spend.AppendSnapshot(ctx, snap("a2", "2024-11-02", "200", time.Date(2024, 11, 2, 11, 0, 0, 0, time.UTC)))

	processed, failed, err := uc.ReconcileDay(ctx, "2024-11-02")
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, 1, failed)
}
