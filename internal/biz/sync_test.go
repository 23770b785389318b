package biz

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingStatsRepo 记录每次同步调用的内存实现
type recordingStatsRepo struct {
	mu        sync.Mutex
	batches   []string
	providers []string
	customers []string
	failOn    string // 同步该ID时返回错误
}

func (r *recordingStatsRepo) SyncBatchCounts(ctx context.Context, batchID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if batchID == r.failOn {
		return errors.New("sync failed")
	}
	r.batches = append(r.batches, batchID)
	return nil
}

func (r *recordingStatsRepo) SyncInvoiceProviderCounts(ctx context.Context, providerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if providerID == r.failOn {
		return errors.New("sync failed")
	}
	r.providers = append(r.providers, providerID)
	return nil
}

func (r *recordingStatsRepo) SyncCustomerCounts(ctx context.Context, customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if customerID == r.failOn {
		return errors.New("sync failed")
	}
	r.customers = append(r.customers, customerID)
	return nil
}

func (r *recordingStatsRepo) ListBatchIDs(ctx context.Context) ([]string, error) {
	return []string{"b1", "b2"}, nil
}

func (r *recordingStatsRepo) ListInvoiceProviderIDs(ctx context.Context) ([]string, error) {
	return []string{"p1"}, nil
}

func (r *recordingStatsRepo) ListCustomerIDs(ctx context.Context) ([]string, error) {
	return []string{"c1", "c2", "c3"}, nil
}

// recountingStatsRepo 从账户行重算计数的内存实现
// 与真实实现同一契约：同步即全量覆盖缓存列，而不是在旧值上增减
type recountingStatsRepo struct {
	accounts *memAccountRepo
	counts   map[string]int // providerID -> 缓存的归属账户数
}

func (r *recountingStatsRepo) SyncBatchCounts(ctx context.Context, batchID string) error {
	return nil
}

func (r *recountingStatsRepo) SyncInvoiceProviderCounts(ctx context.Context, providerID string) error {
	total := 0
	for _, a := range r.accounts.accounts {
		if a.InvoiceProviderID != nil && *a.InvoiceProviderID == providerID {
			total++
		}
	}
	r.counts[providerID] = total
	return nil
}

func (r *recountingStatsRepo) SyncCustomerCounts(ctx context.Context, customerID string) error {
	return nil
}

func (r *recountingStatsRepo) ListBatchIDs(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (r *recountingStatsRepo) ListInvoiceProviderIDs(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (r *recountingStatsRepo) ListCustomerIDs(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestSyncRecomputesFromAccountRows(t *testing.T) {
	accounts := newMemAccountRepo()
	for _, id := range []string{"a1", "a2", "a3"} {
		pid := "p1"
		accounts.accounts[id] = &Account{AccountID: id, Status: "active", InvoiceProviderID: &pid}
	}
	// 缓存列里的漂移旧值，重算后必须被真实行数覆盖
	stats := &recountingStatsRepo{accounts: accounts, counts: map[string]int{"p1": 99}}
	uc := NewAssignmentLedgerUseCase(
		newMemLedgerRepo(accounts),
		accounts,
		newMemProviderRepo("p1"),
		newMemCustomerRepo(),
		NewCountSyncUseCase(stats, log.DefaultLogger),
		NewActivityRecorder(nil, log.DefaultLogger),
		log.DefaultLogger,
	)

	require.NoError(t, uc.UnassignInvoiceProvider(context.Background(), "a1", "ops"))

	assert.Equal(t, 2, stats.counts["p1"])
}

func TestTouchedEntitiesMerge(t *testing.T) {
	touched := &TouchedEntities{
		BatchIDs:           []string{"b1"},
		InvoiceProviderIDs: []string{"p1"},
	}
	touched.Merge(&TouchedEntities{
		BatchIDs:           []string{"b1", "b2", ""},
		InvoiceProviderIDs: []string{"p1"},
		CustomerIDs:        []string{"c1"},
	})

	assert.Equal(t, []string{"b1", "b2"}, touched.BatchIDs)
	assert.Equal(t, []string{"p1"}, touched.InvoiceProviderIDs)
	assert.Equal(t, []string{"c1"}, touched.CustomerIDs)

	touched.Merge(nil)
	assert.Equal(t, []string{"b1", "b2"}, touched.BatchIDs)
}

func TestSyncTouched(t *testing.T) {
	repo := &recordingStatsRepo{}
	uc := NewCountSyncUseCase(repo, log.DefaultLogger)

	uc.SyncTouched(context.Background(), &TouchedEntities{
		BatchIDs:           []string{"b1"},
		InvoiceProviderIDs: []string{"p1", "p2"},
		CustomerIDs:        []string{"c1"},
	})

	assert.Equal(t, []string{"b1"}, repo.batches)
	assert.Equal(t, []string{"p1", "p2"}, repo.providers)
	assert.Equal(t, []string{"c1"}, repo.customers)
}

func TestSyncTouchedFailureDoesNotBlock(t *testing.T) {
	repo := &recordingStatsRepo{failOn: "p1"}
	uc := NewCountSyncUseCase(repo, log.DefaultLogger)

	// p1 同步失败，但 p2 与 c1 仍要同步
	uc.SyncTouched(context.Background(), &TouchedEntities{
		InvoiceProviderIDs: []string{"p1", "p2"},
		CustomerIDs:        []string{"c1"},
	})

	assert.Equal(t, []string{"p2"}, repo.providers)
	assert.Equal(t, []string{"c1"}, repo.customers)
}

func TestSyncAll(t *testing.T) {
	repo := &recordingStatsRepo{}
	uc := NewCountSyncUseCase(repo, log.DefaultLogger)

	synced, err := uc.SyncAll(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 6, synced)
	assert.Len(t, repo.batches, 2)
	assert.Len(t, repo.providers, 1)
	assert.Len(t, repo.customers, 3)
}
