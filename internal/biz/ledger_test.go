package biz

import (
	"context"
	"fmt"
	"testing"
	"time"

	"adtrack-service/internal/constants"
	"adtrack-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memLedgerRepo 归属台账内存实现（复刻"先关后开"语义）
type memLedgerRepo struct {
	accounts  *memAccountRepo
	intervals []*AssignmentInterval
	nextID    int
}

func newMemLedgerRepo(accounts *memAccountRepo) *memLedgerRepo {
	return &memLedgerRepo{accounts: accounts}
}

func (r *memLedgerRepo) pointer(account *Account, targetType string) *string {
	if targetType == constants.TargetTypeCustomer {
		return account.CustomerID
	}
	return account.InvoiceProviderID
}

func (r *memLedgerRepo) setPointer(account *Account, targetType string, target *string) {
	if targetType == constants.TargetTypeCustomer {
		account.CustomerID = target
	} else {
		account.InvoiceProviderID = target
	}
}

func (r *memLedgerRepo) close(accountID, targetType, actorID, endReason string, now time.Time) {
	for _, i := range r.intervals {
		if i.AccountID == accountID && i.TargetType == targetType && i.EndedAt == nil {
			endedAt := now
			endedBy := actorID
			reason := endReason
			i.EndedAt = &endedAt
			i.EndedBy = &endedBy
			i.EndReason = &reason
		}
	}
}

func (r *memLedgerRepo) Assign(ctx context.Context, accountIDs []string, targetType, targetID, actorID, reason string) (*AssignOutcome, error) {
	outcome := &AssignOutcome{LinkedByReason: make(map[string]int)}
	previousSet := make(map[string]bool)
	now := time.Now()

	for _, accountID := range accountIDs {
		account := r.accounts.accounts[accountID]
		if account == nil {
			return nil, fmt.Errorf("account not found: %s", accountID)
		}

		var current string
		if p := r.pointer(account, targetType); p != nil {
			current = *p
		}
		if current == targetID {
			outcome.SkippedCount++
			continue
		}

		rowReason := reason
		if rowReason == "" {
			rowReason = constants.ReasonInitial
			if current != "" {
				rowReason = constants.ReasonReassign
			}
		}
		if current != "" {
			r.close(accountID, targetType, actorID, constants.EndReasonReassign, now)
			previousSet[current] = true
		}

		r.nextID++
		r.intervals = append(r.intervals, &AssignmentInterval{
			AssignmentID: fmt.Sprintf("itv-%d", r.nextID),
			AccountID:    accountID,
			TargetType:   targetType,
			TargetID:     targetID,
			StartedAt:    now,
			StartedBy:    actorID,
			Reason:       rowReason,
		})
		tid := targetID
		r.setPointer(account, targetType, &tid)
		outcome.LinkedCount++
		outcome.LinkedByReason[rowReason]++
	}

	for id := range previousSet {
		outcome.PreviousTargets = append(outcome.PreviousTargets, id)
	}
	return outcome, nil
}

func (r *memLedgerRepo) Unassign(ctx context.Context, accountID, targetType, actorID string) (*UnassignOutcome, error) {
	outcome := &UnassignOutcome{}
	account := r.accounts.accounts[accountID]
	if account == nil {
		return nil, fmt.Errorf("account not found: %s", accountID)
	}

	p := r.pointer(account, targetType)
	if p == nil {
		return outcome, nil
	}
	outcome.PreviousTarget = *p
	r.close(accountID, targetType, actorID, constants.EndReasonManualUnlink, time.Now())
	r.setPointer(account, targetType, nil)
	return outcome, nil
}

func (r *memLedgerRepo) GetOpenInterval(ctx context.Context, accountID, targetType string) (*AssignmentInterval, error) {
	for _, i := range r.intervals {
		if i.AccountID == accountID && i.TargetType == targetType && i.EndedAt == nil {
			return i, nil
		}
	}
	return nil, nil
}

func (r *memLedgerRepo) ListIntervals(ctx context.Context, accountID, targetType string) ([]*AssignmentInterval, error) {
	var result []*AssignmentInterval
	for _, i := range r.intervals {
		if i.AccountID == accountID && i.TargetType == targetType {
			result = append(result, i)
		}
	}
	return result, nil
}

// memProviderRepo 开票主体内存实现
type memProviderRepo struct {
	providers map[string]*InvoiceProvider
}

func newMemProviderRepo(ids ...string) *memProviderRepo {
	r := &memProviderRepo{providers: make(map[string]*InvoiceProvider)}
	for _, id := range ids {
		r.providers[id] = &InvoiceProvider{InvoiceProviderID: id, Status: "active"}
	}
	return r
}

func (r *memProviderRepo) GetInvoiceProvider(ctx context.Context, providerID string) (*InvoiceProvider, error) {
	return r.providers[providerID], nil
}

func (r *memProviderRepo) GetInvoiceProviderByExternalRef(ctx context.Context, externalRef string) (*InvoiceProvider, error) {
	for _, p := range r.providers {
		if p.ExternalRef == externalRef {
			return p, nil
		}
	}
	return nil, nil
}

func (r *memProviderRepo) CreateInvoiceProvider(ctx context.Context, provider *InvoiceProvider) error {
	r.providers[provider.InvoiceProviderID] = provider
	return nil
}

func (r *memProviderRepo) DeleteInvoiceProvider(ctx context.Context, providerID string) error {
	delete(r.providers, providerID)
	return nil
}

// memCustomerRepo 客户内存实现
type memCustomerRepo struct {
	customers map[string]*Customer
}

func newMemCustomerRepo(ids ...string) *memCustomerRepo {
	r := &memCustomerRepo{customers: make(map[string]*Customer)}
	for _, id := range ids {
		r.customers[id] = &Customer{CustomerID: id}
	}
	return r
}

func (r *memCustomerRepo) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	return r.customers[customerID], nil
}

func (r *memCustomerRepo) CreateCustomer(ctx context.Context, customer *Customer) error {
	r.customers[customer.CustomerID] = customer
	return nil
}

func (r *memCustomerRepo) DeleteCustomer(ctx context.Context, customerID string) error {
	delete(r.customers, customerID)
	return nil
}

func newLedgerUseCase(accounts *memAccountRepo, ledger *memLedgerRepo, providers *memProviderRepo, customers *memCustomerRepo) *AssignmentLedgerUseCase {
	return NewAssignmentLedgerUseCase(
		ledger,
		accounts,
		providers,
		customers,
		NewCountSyncUseCase(&recordingStatsRepo{}, log.DefaultLogger),
		NewActivityRecorder(nil, log.DefaultLogger),
		log.DefaultLogger,
	)
}

func TestAssignInvoiceProvider(t *testing.T) {
	accounts := newMemAccountRepo()
	accounts.accounts["a1"] = &Account{AccountID: "a1", Status: "active"}
	ledger := newMemLedgerRepo(accounts)
	uc := newLedgerUseCase(accounts, ledger, newMemProviderRepo("p1", "p2"), newMemCustomerRepo())

	ctx := context.Background()

	t.Run("首次分配建开区间并更新指针", func(t *testing.T) {
		require.NoError(t, uc.AssignInvoiceProvider(ctx, "a1", "p1", "ops", ""))

		open, err := uc.GetCurrentAssignment(ctx, "a1", constants.TargetTypeInvoiceProvider)
		require.NoError(t, err)
		require.NotNil(t, open)
		assert.Equal(t, "p1", open.TargetID)
		assert.Equal(t, constants.ReasonInitial, open.Reason)
		assert.True(t, open.State().Open)
		require.NotNil(t, accounts.accounts["a1"].InvoiceProviderID)
		assert.Equal(t, "p1", *accounts.accounts["a1"].InvoiceProviderID)
	})

	t.Run("幂等重复分配不产生新区间", func(t *testing.T) {
		before := len(ledger.intervals)
		require.NoError(t, uc.AssignInvoiceProvider(ctx, "a1", "p1", "ops", ""))
		assert.Equal(t, before, len(ledger.intervals))
	})

	t.Run("改绑关旧开新", func(t *testing.T) {
		require.NoError(t, uc.AssignInvoiceProvider(ctx, "a1", "p2", "ops", ""))

		history, err := uc.ListHistory(ctx, "a1", constants.TargetTypeInvoiceProvider)
		require.NoError(t, err)
		require.Len(t, history, 2)

		closed := history[0]
		assert.Equal(t, "p1", closed.TargetID)
		require.NotNil(t, closed.EndedAt)
		require.NotNil(t, closed.EndReason)
		assert.Equal(t, constants.EndReasonReassign, *closed.EndReason)

		open := history[1]
		assert.Equal(t, "p2", open.TargetID)
		assert.Equal(t, constants.ReasonReassign, open.Reason)
		assert.Nil(t, open.EndedAt)
	})

	t.Run("任意时刻至多一条开区间", func(t *testing.T) {
		openCount := 0
		for _, i := range ledger.intervals {
			if i.AccountID == "a1" && i.TargetType == constants.TargetTypeInvoiceProvider && i.EndedAt == nil {
				openCount++
			}
		}
		assert.Equal(t, 1, openCount)
	})
}

func TestAssignTargetNotFound(t *testing.T) {
	accounts := newMemAccountRepo()
	accounts.accounts["a1"] = &Account{AccountID: "a1", Status: "active"}
	uc := newLedgerUseCase(accounts, newMemLedgerRepo(accounts), newMemProviderRepo(), newMemCustomerRepo())

	err := uc.AssignInvoiceProvider(context.Background(), "a1", "missing", "ops", "")
	assert.Error(t, err)
}

func TestAssignReasonInvalid(t *testing.T) {
	accounts := newMemAccountRepo()
	accounts.accounts["a1"] = &Account{AccountID: "a1", Status: "active"}
	uc := newLedgerUseCase(accounts, newMemLedgerRepo(accounts), newMemProviderRepo("p1"), newMemCustomerRepo())

	err := uc.AssignInvoiceProvider(context.Background(), "a1", "p1", "ops", "because")
	assert.Error(t, err)
}

func TestUnassignInvoiceProvider(t *testing.T) {
	accounts := newMemAccountRepo()
	accounts.accounts["a1"] = &Account{AccountID: "a1", Status: "active"}
	ledger := newMemLedgerRepo(accounts)
	uc := newLedgerUseCase(accounts, ledger, newMemProviderRepo("p1"), newMemCustomerRepo())

	ctx := context.Background()
	require.NoError(t, uc.AssignInvoiceProvider(ctx, "a1", "p1", "ops", ""))

	t.Run("解绑关区间并清空指针", func(t *testing.T) {
		require.NoError(t, uc.UnassignInvoiceProvider(ctx, "a1", "ops"))

		open, err := uc.GetCurrentAssignment(ctx, "a1", constants.TargetTypeInvoiceProvider)
		require.NoError(t, err)
		assert.Nil(t, open)
		assert.Nil(t, accounts.accounts["a1"].InvoiceProviderID)

		history, _ := uc.ListHistory(ctx, "a1", constants.TargetTypeInvoiceProvider)
		require.Len(t, history, 1)
		require.NotNil(t, history[0].EndReason)
		assert.Equal(t, constants.EndReasonManualUnlink, *history[0].EndReason)
	})

	t.Run("重复解绑无操作", func(t *testing.T) {
		before := len(ledger.intervals)
		require.NoError(t, uc.UnassignInvoiceProvider(ctx, "a1", "ops"))
		assert.Equal(t, before, len(ledger.intervals))
	})
}

func TestAssignMetricReasonDerived(t *testing.T) {
	accounts := newMemAccountRepo()
	accounts.accounts["a1"] = &Account{AccountID: "a1", Status: "active"}
	ledger := newMemLedgerRepo(accounts)
	uc := newLedgerUseCase(accounts, ledger, newMemProviderRepo("p1", "p2"), newMemCustomerRepo())

	ctx := context.Background()
	initial := metrics.GetMetrics().AssignTotal.WithLabelValues(constants.TargetTypeInvoiceProvider, constants.ReasonInitial)
	reassign := metrics.GetMetrics().AssignTotal.WithLabelValues(constants.TargetTypeInvoiceProvider, constants.ReasonReassign)
	initialBefore := testutil.ToFloat64(initial)
	reassignBefore := testutil.ToFloat64(reassign)

	// 未显式给 reason 时按账户状态推导：首绑计 initial，改绑计 reassign
	require.NoError(t, uc.AssignInvoiceProvider(ctx, "a1", "p1", "ops", ""))
	assert.Equal(t, initialBefore+1, testutil.ToFloat64(initial))
	assert.Equal(t, reassignBefore, testutil.ToFloat64(reassign))

	require.NoError(t, uc.AssignInvoiceProvider(ctx, "a1", "p2", "ops", ""))
	assert.Equal(t, initialBefore+1, testutil.ToFloat64(initial))
	assert.Equal(t, reassignBefore+1, testutil.ToFloat64(reassign))
}

func TestCustomerLedgerIndependent(t *testing.T) {
	accounts := newMemAccountRepo()
	accounts.accounts["a1"] = &Account{AccountID: "a1", Status: "active"}
	ledger := newMemLedgerRepo(accounts)
	uc := newLedgerUseCase(accounts, ledger, newMemProviderRepo("p1"), newMemCustomerRepo("c1"))

	ctx := context.Background()
	require.NoError(t, uc.AssignInvoiceProvider(ctx, "a1", "p1", "ops", ""))
	require.NoError(t, uc.AssignCustomer(ctx, "a1", "c1", "ops", ""))

	// 解绑客户不影响开票主体
	require.NoError(t, uc.UnassignCustomer(ctx, "a1", "ops"))

	provider, err := uc.GetCurrentAssignment(ctx, "a1", constants.TargetTypeInvoiceProvider)
	require.NoError(t, err)
	require.NotNil(t, provider)
	assert.Equal(t, "p1", provider.TargetID)

	customer, err := uc.GetCurrentAssignment(ctx, "a1", constants.TargetTypeCustomer)
	require.NoError(t, err)
	assert.Nil(t, customer)
}

func TestBulkReassign(t *testing.T) {
	accounts := newMemAccountRepo()
	p1 := "p1"
	accounts.accounts["a1"] = &Account{AccountID: "a1", Status: "active", InvoiceProviderID: &p1}
	accounts.accounts["a2"] = &Account{AccountID: "a2", Status: "active"}
	ledger := newMemLedgerRepo(accounts)
	uc := newLedgerUseCase(accounts, ledger, newMemProviderRepo("p1", "p2"), newMemCustomerRepo())

	ctx := context.Background()
	require.NoError(t, uc.BulkReassignInvoiceProvider(ctx, []string{"a1", "a2"}, "p2", "ops", constants.ReasonMigration))

	for _, id := range []string{"a1", "a2"} {
		open, err := uc.GetCurrentAssignment(ctx, id, constants.TargetTypeInvoiceProvider)
		require.NoError(t, err)
		require.NotNil(t, open)
		assert.Equal(t, "p2", open.TargetID)
		assert.Equal(t, constants.ReasonMigration, open.Reason)
	}
}
