package biz

import (
	"context"
	"fmt"

	"adtrack-service/internal/constants"
	adtrackErrors "adtrack-service/internal/errors"
	"adtrack-service/internal/metrics"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// Requirement 需求条目：某时区/币种类别/年份下需要多少个账户
type Requirement struct {
	Timezone      string
	CurrencyClass string
	Year          int
	Count         int
}

// ProposedLink 从某个批次提议取用的账户
type ProposedLink struct {
	BatchID    string
	BatchName  string
	Readiness  int
	AccountIDs []string
}

// AlternativeBatch 有富余账户的备选批次（仅供 UI 换选参考，提交前不做服务端校验）
type AlternativeBatch struct {
	BatchID       string
	BatchName     string
	Readiness     int
	SpareAccounts int
}

// Proposal 单条需求的规划结果
type Proposal struct {
	Requirement  *Requirement
	Links        []*ProposedLink
	Alternatives []*AlternativeBatch
	IsFulfilled  bool
	MissingCount int // 候选耗尽后仍缺的数量，不是错误
}

// NewInvoiceProviderParams 执行时新建开票主体的参数
type NewInvoiceProviderParams struct {
	Name        string
	ExternalRef string
}

// AllocationExecution 分配执行请求
// InvoiceProviderID 与 NewProvider 必须且只能指定其一
type AllocationExecution struct {
	Links             [][]string // 每条提议链接的账户ID列表
	InvoiceProviderID string
	NewProvider       *NewInvoiceProviderParams
	ActorID           string
}

// AllocationCommit 分配执行结果
type AllocationCommit struct {
	InvoiceProviderID string
	AccountCount      int
	PreviousProviders []string // 被改绑账户的旧开票主体（去重），用于计数同步
}

// AllocationRepo 分配规划数据层接口（定义在 biz 层）
type AllocationRepo interface {
	// ListCandidateBatches 按时区+币种类别+年份筛选活跃批次，成熟度降序、批次ID升序（稳定平局序）
	ListCandidateBatches(ctx context.Context, timezone, currencyClass string, year int) ([]*Batch, error)
	// ListUnassignedAccounts 批次内未归属开票主体的活跃账户，按账户ID升序，最多 limit 条
	ListUnassignedAccounts(ctx context.Context, batchID string, limit int) ([]*Account, error)
	// ExecuteAllocation 单事务：可选地先建开票主体，再把全部账户绑定到该主体
	// 任何一步失败整体回滚，不留悬空指针或孤儿历史行
	ExecuteAllocation(ctx context.Context, execution *AllocationExecution) (*AllocationCommit, error)
}

// AllocationUseCase 分配规划业务逻辑
// 贪心地用高成熟度批次满足各条需求，并原子地提交选定的绑定
type AllocationUseCase struct {
	repo      AllocationRepo
	providers InvoiceProviderRepo
	sync      *CountSyncUseCase
	activity  *ActivityRecorder
	log       *log.Helper
	metrics   *metrics.TrackMetrics
}

// NewAllocationUseCase 创建分配规划 UseCase
func NewAllocationUseCase(
	repo AllocationRepo,
	providers InvoiceProviderRepo,
	sync *CountSyncUseCase,
	activity *ActivityRecorder,
	logger log.Logger,
) *AllocationUseCase {
	return &AllocationUseCase{
		repo:      repo,
		providers: providers,
		sync:      sync,
		activity:  activity,
		log:       log.NewHelper(logger),
		metrics:   metrics.GetMetrics(),
	}
}

// Suggest 为一组需求提议取用方案
// 各需求逐条贪心规划；同一次调用内先到的需求已占用的账户不会再被后续需求提议，
// 避免多条需求抢同一账户池时给出重叠方案
func (uc *AllocationUseCase) Suggest(ctx context.Context, requirements []*Requirement) ([]*Proposal, error) {
	if uc.metrics != nil {
		uc.metrics.SuggestTotal.Inc()
	}

	consumed := make(map[string]bool)
	proposals := make([]*Proposal, 0, len(requirements))

	for _, req := range requirements {
		proposal, err := uc.suggestOne(ctx, req, consumed)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, proposal)
		if !proposal.IsFulfilled && uc.metrics != nil {
			uc.metrics.SuggestUnfulfilled.Inc()
		}
	}

	return proposals, nil
}

func (uc *AllocationUseCase) suggestOne(ctx context.Context, req *Requirement, consumed map[string]bool) (*Proposal, error) {
	proposal := &Proposal{Requirement: req}
	if req.Count <= 0 {
		proposal.IsFulfilled = true
		return proposal, nil
	}

	batches, err := uc.repo.ListCandidateBatches(ctx, req.Timezone, req.CurrencyClass, req.Year)
	if err != nil {
		return nil, err
	}

	needed := req.Count
	limit := req.Count * constants.CandidateHeadroomMultiplier

	// 高成熟度批次优先耗尽，再用低成熟度批次
	for _, batch := range batches {
		accounts, err := uc.repo.ListUnassignedAccounts(ctx, batch.BatchID, limit)
		if err != nil {
			return nil, err
		}

		available := make([]string, 0, len(accounts))
		for _, account := range accounts {
			if consumed[account.AccountID] {
				continue
			}
			available = append(available, account.AccountID)
		}
		if len(available) == 0 {
			continue
		}

		if needed <= 0 {
			// 需求已满足，剩余批次只作备选展示
			proposal.Alternatives = append(proposal.Alternatives, &AlternativeBatch{
				BatchID:       batch.BatchID,
				BatchName:     batch.Name,
				Readiness:     batch.Readiness,
				SpareAccounts: len(available),
			})
			continue
		}

		take := needed
		if take > len(available) {
			take = len(available)
		}
		taken := available[:take]
		for _, id := range taken {
			consumed[id] = true
		}
		needed -= take

		proposal.Links = append(proposal.Links, &ProposedLink{
			BatchID:    batch.BatchID,
			BatchName:  batch.Name,
			Readiness:  batch.Readiness,
			AccountIDs: taken,
		})

		// 取完还有剩的批次同样是备选
		if spare := len(available) - take; spare > 0 {
			proposal.Alternatives = append(proposal.Alternatives, &AlternativeBatch{
				BatchID:       batch.BatchID,
				BatchName:     batch.Name,
				Readiness:     batch.Readiness,
				SpareAccounts: spare,
			})
		}
	}

	proposal.IsFulfilled = needed == 0
	proposal.MissingCount = needed
	return proposal, nil
}

// Execute 提交选定的绑定方案（单事务）
// 必须且只能指定一个目标：已有开票主体ID，或新建参数——两者都给或都不给都是请求错误
func (uc *AllocationUseCase) Execute(ctx context.Context, execution *AllocationExecution) (*AllocationCommit, error) {
	hasExisting := execution.InvoiceProviderID != ""
	hasNew := execution.NewProvider != nil
	if hasExisting == hasNew {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeAllocationTargetInvalid)
	}

	total := 0
	for _, link := range execution.Links {
		total += len(link)
	}
	if total == 0 {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeAllocationEmptyLinks)
	}

	if hasExisting {
		provider, err := uc.providers.GetInvoiceProvider(ctx, execution.InvoiceProviderID)
		if err != nil {
			return nil, err
		}
		if provider == nil {
			return nil, pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeInvoiceProviderNotFound)
		}
	}

	commit, err := uc.repo.ExecuteAllocation(ctx, execution)
	if err != nil {
		if uc.metrics != nil {
			uc.metrics.AllocationExecuted.WithLabelValues(constants.ResultFailed).Inc()
		}
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.AllocationExecuted.WithLabelValues(constants.ResultSuccess).Inc()
		uc.metrics.AllocationAccounts.Add(float64(commit.AccountCount))
	}

	touched := &TouchedEntities{
		InvoiceProviderIDs: append(commit.PreviousProviders, commit.InvoiceProviderID),
	}
	uc.sync.SyncTouched(ctx, touched)

	uc.activity.Record(ctx, &ActivityEvent{
		ActorID:     execution.ActorID,
		Action:      constants.ActionAllocate,
		EntityType:  constants.EntityTypeInvoiceProvider,
		EntityID:    commit.InvoiceProviderID,
		NewValue:    commit.InvoiceProviderID,
		Description: fmt.Sprintf("allocation executed: %d account(s) linked to invoice provider %s", commit.AccountCount, commit.InvoiceProviderID),
	})

	return commit, nil
}
