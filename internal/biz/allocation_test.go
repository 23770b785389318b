package biz

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memAllocationRepo 分配规划内存实现
type memAllocationRepo struct {
	batches    []*Batch
	accounts   map[string][]*Account // batchID -> 未归属活跃账户（按ID升序）
	providers  *memProviderRepo
	lastLimits []int // 记录每次账户查询收到的 limit
}

func (r *memAllocationRepo) ListCandidateBatches(ctx context.Context, timezone, currencyClass string, year int) ([]*Batch, error) {
	var matched []*Batch
	for _, b := range r.batches {
		if b.Timezone == timezone && b.CurrencyClass == currencyClass && b.Year == year && b.Status == "active" {
			matched = append(matched, b)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Readiness != matched[j].Readiness {
			return matched[i].Readiness > matched[j].Readiness
		}
		return matched[i].BatchID < matched[j].BatchID
	})
	return matched, nil
}

func (r *memAllocationRepo) ListUnassignedAccounts(ctx context.Context, batchID string, limit int) ([]*Account, error) {
	r.lastLimits = append(r.lastLimits, limit)
	accounts := r.accounts[batchID]
	var available []*Account
	for _, a := range accounts {
		if a.InvoiceProviderID == nil && a.Status == "active" {
			available = append(available, a)
		}
	}
	if len(available) > limit {
		available = available[:limit]
	}
	return available, nil
}

func (r *memAllocationRepo) ExecuteAllocation(ctx context.Context, execution *AllocationExecution) (*AllocationCommit, error) {
	commit := &AllocationCommit{InvoiceProviderID: execution.InvoiceProviderID}
	if execution.NewProvider != nil {
		commit.InvoiceProviderID = "p-new"
	}

	// 与真实实现相同的事务语义：先整组校验并暂存变更，任何一步失败整体放弃
	var staged []*Account
	previousSet := make(map[string]bool)
	for _, link := range execution.Links {
		for _, accountID := range link {
			account := r.findAccount(accountID)
			if account == nil {
				return nil, fmt.Errorf("account not found: %s", accountID)
			}
			if account.InvoiceProviderID != nil {
				if *account.InvoiceProviderID == commit.InvoiceProviderID {
					continue
				}
				previousSet[*account.InvoiceProviderID] = true
			}
			staged = append(staged, account)
			commit.AccountCount++
		}
	}

	if execution.NewProvider != nil {
		_ = r.providers.CreateInvoiceProvider(ctx, &InvoiceProvider{
			InvoiceProviderID: commit.InvoiceProviderID,
			Name:              execution.NewProvider.Name,
			ExternalRef:       execution.NewProvider.ExternalRef,
			Status:            "active",
		})
	}
	for _, account := range staged {
		pid := commit.InvoiceProviderID
		account.InvoiceProviderID = &pid
	}
	for id := range previousSet {
		commit.PreviousProviders = append(commit.PreviousProviders, id)
	}
	return commit, nil
}

func (r *memAllocationRepo) findAccount(accountID string) *Account {
	for _, accounts := range r.accounts {
		for _, a := range accounts {
			if a.AccountID == accountID {
				return a
			}
		}
	}
	return nil
}

func makeAccounts(batchID string, n int) []*Account {
	accounts := make([]*Account, 0, n)
	for i := 1; i <= n; i++ {
		accounts = append(accounts, &Account{
			AccountID: fmt.Sprintf("%s-a%02d", batchID, i),
			BatchID:   batchID,
			Status:    "active",
		})
	}
	return accounts
}

func newAllocationUseCase(repo *memAllocationRepo) *AllocationUseCase {
	return NewAllocationUseCase(
		repo,
		repo.providers,
		NewCountSyncUseCase(&recordingStatsRepo{}, log.DefaultLogger),
		NewActivityRecorder(nil, log.DefaultLogger),
		log.DefaultLogger,
	)
}

func newAllocationRepo() *memAllocationRepo {
	return &memAllocationRepo{
		batches: []*Batch{
			{BatchID: "b-high", Name: "High", Timezone: "Asia/Shanghai", CurrencyClass: "usd", Year: 2024, Readiness: 9, Status: "active"},
			{BatchID: "b-mid", Name: "Mid", Timezone: "Asia/Shanghai", CurrencyClass: "usd", Year: 2024, Readiness: 5, Status: "active"},
			{BatchID: "b-other-tz", Name: "OtherTZ", Timezone: "UTC", CurrencyClass: "usd", Year: 2024, Readiness: 10, Status: "active"},
		},
		accounts: map[string][]*Account{
			"b-high":     makeAccounts("b-high", 2),
			"b-mid":      makeAccounts("b-mid", 4),
			"b-other-tz": makeAccounts("b-other-tz", 5),
		},
		providers: newMemProviderRepo("p1"),
	}
}

func req(count int) *Requirement {
	return &Requirement{Timezone: "Asia/Shanghai", CurrencyClass: "usd", Year: 2024, Count: count}
}

func TestSuggestGreedyByReadiness(t *testing.T) {
	repo := newAllocationRepo()
	uc := newAllocationUseCase(repo)

	proposals, err := uc.Suggest(context.Background(), []*Requirement{req(3)})
	require.NoError(t, err)
	require.Len(t, proposals, 1)

	p := proposals[0]
	assert.True(t, p.IsFulfilled)
	assert.Equal(t, 0, p.MissingCount)
	// 高成熟度批次先耗尽，剩余从低成熟度批次取
	require.Len(t, p.Links, 2)
	assert.Equal(t, "b-high", p.Links[0].BatchID)
	assert.Equal(t, []string{"b-high-a01", "b-high-a02"}, p.Links[0].AccountIDs)
	assert.Equal(t, "b-mid", p.Links[1].BatchID)
	assert.Equal(t, []string{"b-mid-a01"}, p.Links[1].AccountIDs)
	// 时区不匹配的批次不参与
	for _, l := range p.Links {
		assert.NotEqual(t, "b-other-tz", l.BatchID)
	}
}

func TestSuggestExhaustion(t *testing.T) {
	repo := newAllocationRepo()
	uc := newAllocationUseCase(repo)

	// 候选池共 6 个，需要 8 个：耗尽后缺 2，不是错误
	proposals, err := uc.Suggest(context.Background(), []*Requirement{req(8)})
	require.NoError(t, err)

	p := proposals[0]
	assert.False(t, p.IsFulfilled)
	assert.Equal(t, 2, p.MissingCount)
	total := 0
	for _, l := range p.Links {
		total += len(l.AccountIDs)
	}
	assert.Equal(t, 6, total)
}

func TestSuggestTieBreakByBatchID(t *testing.T) {
	repo := &memAllocationRepo{
		batches: []*Batch{
			{BatchID: "b-bbb", Name: "B", Timezone: "UTC", CurrencyClass: "usd", Year: 2024, Readiness: 7, Status: "active"},
			{BatchID: "b-aaa", Name: "A", Timezone: "UTC", CurrencyClass: "usd", Year: 2024, Readiness: 7, Status: "active"},
		},
		accounts: map[string][]*Account{
			"b-aaa": makeAccounts("b-aaa", 3),
			"b-bbb": makeAccounts("b-bbb", 3),
		},
		providers: newMemProviderRepo(),
	}
	uc := newAllocationUseCase(repo)

	// 成熟度相同按批次ID升序，结果稳定可复现
	proposals, err := uc.Suggest(context.Background(), []*Requirement{
		{Timezone: "UTC", CurrencyClass: "usd", Year: 2024, Count: 4},
	})
	require.NoError(t, err)

	p := proposals[0]
	require.Len(t, p.Links, 2)
	assert.Equal(t, "b-aaa", p.Links[0].BatchID)
	assert.Len(t, p.Links[0].AccountIDs, 3)
	assert.Equal(t, "b-bbb", p.Links[1].BatchID)
	assert.Len(t, p.Links[1].AccountIDs, 1)
}

func TestSuggestConsumedAcrossRequirements(t *testing.T) {
	repo := newAllocationRepo()
	uc := newAllocationUseCase(repo)

	// 两条同样的需求抢同一池：先到者占用的账户不会再被提议
	proposals, err := uc.Suggest(context.Background(), []*Requirement{req(4), req(4)})
	require.NoError(t, err)
	require.Len(t, proposals, 2)

	assert.True(t, proposals[0].IsFulfilled)
	assert.False(t, proposals[1].IsFulfilled)
	assert.Equal(t, 2, proposals[1].MissingCount)

	seen := make(map[string]bool)
	for _, p := range proposals {
		for _, l := range p.Links {
			for _, id := range l.AccountIDs {
				assert.False(t, seen[id], "account %s proposed twice", id)
				seen[id] = true
			}
		}
	}
}

func TestSuggestCandidateLimit(t *testing.T) {
	repo := newAllocationRepo()
	uc := newAllocationUseCase(repo)

	_, err := uc.Suggest(context.Background(), []*Requirement{req(3)})
	require.NoError(t, err)

	// 每个批次的候选查询上限是 count 的 2 倍
	for _, limit := range repo.lastLimits {
		assert.Equal(t, 6, limit)
	}
}

func TestSuggestAlternatives(t *testing.T) {
	repo := newAllocationRepo()
	uc := newAllocationUseCase(repo)

	// 需求 2 个，b-high 刚好满足；b-mid 的账户全部成为备选
	proposals, err := uc.Suggest(context.Background(), []*Requirement{req(2)})
	require.NoError(t, err)

	p := proposals[0]
	require.Len(t, p.Links, 1)
	assert.Equal(t, "b-high", p.Links[0].BatchID)
	require.Len(t, p.Alternatives, 1)
	assert.Equal(t, "b-mid", p.Alternatives[0].BatchID)
	assert.Equal(t, 4, p.Alternatives[0].SpareAccounts)
}

func TestExecuteTargetValidation(t *testing.T) {
	repo := newAllocationRepo()
	uc := newAllocationUseCase(repo)
	ctx := context.Background()

	t.Run("两个目标都给是请求错误", func(t *testing.T) {
		_, err := uc.Execute(ctx, &AllocationExecution{
			Links:             [][]string{{"b-high-a01"}},
			InvoiceProviderID: "p1",
			NewProvider:       &NewInvoiceProviderParams{Name: "New"},
		})
		assert.Error(t, err)
	})

	t.Run("两个目标都不给是请求错误", func(t *testing.T) {
		_, err := uc.Execute(ctx, &AllocationExecution{
			Links: [][]string{{"b-high-a01"}},
		})
		assert.Error(t, err)
	})

	t.Run("空链接是请求错误", func(t *testing.T) {
		_, err := uc.Execute(ctx, &AllocationExecution{
			InvoiceProviderID: "p1",
		})
		assert.Error(t, err)
	})

	t.Run("开票主体不存在是请求错误", func(t *testing.T) {
		_, err := uc.Execute(ctx, &AllocationExecution{
			Links:             [][]string{{"b-high-a01"}},
			InvoiceProviderID: "missing",
		})
		assert.Error(t, err)
	})
}

func TestExecuteWithExistingProvider(t *testing.T) {
	repo := newAllocationRepo()
	uc := newAllocationUseCase(repo)

	commit, err := uc.Execute(context.Background(), &AllocationExecution{
		Links:             [][]string{{"b-high-a01", "b-high-a02"}, {"b-mid-a01"}},
		InvoiceProviderID: "p1",
		ActorID:           "ops",
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", commit.InvoiceProviderID)
	assert.Equal(t, 3, commit.AccountCount)

	for _, id := range []string{"b-high-a01", "b-high-a02", "b-mid-a01"} {
		account := repo.findAccount(id)
		require.NotNil(t, account.InvoiceProviderID)
		assert.Equal(t, "p1", *account.InvoiceProviderID)
	}
}

func TestExecuteRollbackOnMissingAccount(t *testing.T) {
	repo := newAllocationRepo()
	uc := newAllocationUseCase(repo)
	ctx := context.Background()

	_, err := uc.Execute(ctx, &AllocationExecution{
		Links:       [][]string{{"b-high-a01", "missing", "b-high-a02"}},
		NewProvider: &NewInvoiceProviderParams{Name: "Fresh Corp"},
		ActorID:     "ops",
	})
	require.Error(t, err)

	// 中途失败不留半成品：先处理的账户指针不动，新主体也不落库
	assert.Nil(t, repo.findAccount("b-high-a01").InvoiceProviderID)
	assert.Nil(t, repo.findAccount("b-high-a02").InvoiceProviderID)
	created, err := repo.providers.GetInvoiceProvider(ctx, "p-new")
	require.NoError(t, err)
	assert.Nil(t, created)
}

func TestExecuteWithNewProvider(t *testing.T) {
	repo := newAllocationRepo()
	uc := newAllocationUseCase(repo)

	commit, err := uc.Execute(context.Background(), &AllocationExecution{
		Links:       [][]string{{"b-high-a01"}},
		NewProvider: &NewInvoiceProviderParams{Name: "Fresh Corp", ExternalRef: "ref-1"},
		ActorID:     "ops",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, commit.AccountCount)

	created, err := repo.providers.GetInvoiceProvider(context.Background(), commit.InvoiceProviderID)
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "Fresh Corp", created.Name)
}
