package service

import (
	"context"
	"time"

	"adtrack-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

// TrackingService 账户归属管理服务（实体维护、归属台账、分配规划）
type TrackingService struct {
	accounts   *biz.AccountUseCase
	batches    *biz.BatchUseCase
	providers  *biz.InvoiceProviderUseCase
	customers  *biz.CustomerUseCase
	ledger     *biz.AssignmentLedgerUseCase
	allocation *biz.AllocationUseCase
	log        *log.Helper
}

// NewTrackingService 创建 TrackingService
func NewTrackingService(
	accounts *biz.AccountUseCase,
	batches *biz.BatchUseCase,
	providers *biz.InvoiceProviderUseCase,
	customers *biz.CustomerUseCase,
	ledger *biz.AssignmentLedgerUseCase,
	allocation *biz.AllocationUseCase,
	logger log.Logger,
) *TrackingService {
	return &TrackingService{
		accounts:   accounts,
		batches:    batches,
		providers:  providers,
		customers:  customers,
		ledger:     ledger,
		allocation: allocation,
		log:        log.NewHelper(logger),
	}
}

// ========== 账户 ==========

// CreateAccountRequest 创建账户请求
type CreateAccountRequest struct {
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	Currency   string `json:"currency"`
	BatchID    string `json:"batch_id"`
	Status     string `json:"status"`
	ActorID    string `json:"actor_id"`
}

// AccountReply 账户信息
type AccountReply struct {
	AccountID         string `json:"account_id"`
	ExternalID        string `json:"external_id"`
	Name              string `json:"name"`
	Currency          string `json:"currency"`
	Status            string `json:"status"`
	BatchID           string `json:"batch_id"`
	InvoiceProviderID string `json:"invoice_provider_id,omitempty"`
	CustomerID        string `json:"customer_id,omitempty"`
	TotalSpend        string `json:"total_spend"`
	CreatedAt         string `json:"created_at"`
}

// CreateAccount 创建账户
func (s *TrackingService) CreateAccount(ctx context.Context, req *CreateAccountRequest) (*AccountReply, error) {
	account, err := s.accounts.CreateAccount(ctx, &biz.Account{
		ExternalID: req.ExternalID,
		Name:       req.Name,
		Currency:   req.Currency,
		BatchID:    req.BatchID,
		Status:     req.Status,
	}, req.ActorID)
	if err != nil {
		s.log.Errorf("CreateAccount failed: %v", err)
		return nil, err
	}
	return toAccountReply(account), nil
}

// GetAccountRequest 获取账户请求
type GetAccountRequest struct {
	AccountID string `json:"account_id"`
}

// GetAccount 获取账户
func (s *TrackingService) GetAccount(ctx context.Context, req *GetAccountRequest) (*AccountReply, error) {
	account, err := s.accounts.GetAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	return toAccountReply(account), nil
}

// BulkStatusRequest 批量改状态请求
type BulkStatusRequest struct {
	AccountIDs []string `json:"account_ids"`
	Status     string   `json:"status"`
	ActorID    string   `json:"actor_id"`
}

// BulkStatusReply 批量改状态结果
type BulkStatusReply struct {
	Updated int `json:"updated"`
}

// BulkSetStatus 批量修改账户状态
func (s *TrackingService) BulkSetStatus(ctx context.Context, req *BulkStatusRequest) (*BulkStatusReply, error) {
	updated, err := s.accounts.BulkSetStatus(ctx, req.AccountIDs, req.Status, req.ActorID)
	if err != nil {
		s.log.Errorf("BulkSetStatus failed: %v", err)
		return nil, err
	}
	return &BulkStatusReply{Updated: updated}, nil
}

// ========== 批次 ==========

// CreateBatchRequest 创建批次请求
type CreateBatchRequest struct {
	Name          string `json:"name"`
	Timezone      string `json:"timezone"`
	CurrencyClass string `json:"currency_class"`
	Year          int    `json:"year"`
	Readiness     int    `json:"readiness"`
}

// BatchReply 批次信息
type BatchReply struct {
	BatchID       string `json:"batch_id"`
	Name          string `json:"name"`
	Timezone      string `json:"timezone"`
	CurrencyClass string `json:"currency_class"`
	Year          int    `json:"year"`
	Readiness     int    `json:"readiness"`
	Status        string `json:"status"`
	TotalAccounts int    `json:"total_accounts"`
	LiveAccounts  int    `json:"live_accounts"`
}

// CreateBatch 创建批次
func (s *TrackingService) CreateBatch(ctx context.Context, req *CreateBatchRequest) (*BatchReply, error) {
	batch, err := s.batches.CreateBatch(ctx, &biz.Batch{
		Name:          req.Name,
		Timezone:      req.Timezone,
		CurrencyClass: req.CurrencyClass,
		Year:          req.Year,
		Readiness:     req.Readiness,
	})
	if err != nil {
		s.log.Errorf("CreateBatch failed: %v", err)
		return nil, err
	}
	return toBatchReply(batch), nil
}

// GetBatchRequest 获取批次请求
type GetBatchRequest struct {
	BatchID string `json:"batch_id"`
}

// GetBatch 获取批次
func (s *TrackingService) GetBatch(ctx context.Context, req *GetBatchRequest) (*BatchReply, error) {
	batch, err := s.batches.GetBatch(ctx, req.BatchID)
	if err != nil {
		return nil, err
	}
	return toBatchReply(batch), nil
}

// DeleteBatch 删除批次
func (s *TrackingService) DeleteBatch(ctx context.Context, req *GetBatchRequest) error {
	return s.batches.DeleteBatch(ctx, req.BatchID)
}

// ========== 开票主体 ==========

// CreateInvoiceProviderRequest 创建开票主体请求
type CreateInvoiceProviderRequest struct {
	Name        string `json:"name"`
	ExternalRef string `json:"external_ref"`
}

// InvoiceProviderReply 开票主体信息
type InvoiceProviderReply struct {
	InvoiceProviderID string `json:"invoice_provider_id"`
	Name              string `json:"name"`
	ExternalRef       string `json:"external_ref"`
	Status            string `json:"status"`
	LinkedAccounts    int    `json:"linked_accounts"`
	ActiveAccounts    int    `json:"active_accounts"`
}

// CreateInvoiceProvider 创建开票主体
func (s *TrackingService) CreateInvoiceProvider(ctx context.Context, req *CreateInvoiceProviderRequest) (*InvoiceProviderReply, error) {
	provider, err := s.providers.CreateInvoiceProvider(ctx, &biz.InvoiceProvider{
		Name:        req.Name,
		ExternalRef: req.ExternalRef,
	})
	if err != nil {
		s.log.Errorf("CreateInvoiceProvider failed: %v", err)
		return nil, err
	}
	return toInvoiceProviderReply(provider), nil
}

// GetInvoiceProviderRequest 获取开票主体请求
type GetInvoiceProviderRequest struct {
	InvoiceProviderID string `json:"invoice_provider_id"`
}

// GetInvoiceProvider 获取开票主体
func (s *TrackingService) GetInvoiceProvider(ctx context.Context, req *GetInvoiceProviderRequest) (*InvoiceProviderReply, error) {
	provider, err := s.providers.GetInvoiceProvider(ctx, req.InvoiceProviderID)
	if err != nil {
		return nil, err
	}
	return toInvoiceProviderReply(provider), nil
}

// DeleteInvoiceProvider 删除开票主体
func (s *TrackingService) DeleteInvoiceProvider(ctx context.Context, req *GetInvoiceProviderRequest) error {
	return s.providers.DeleteInvoiceProvider(ctx, req.InvoiceProviderID)
}

// ========== 客户 ==========

// CreateCustomerRequest 创建客户请求
type CreateCustomerRequest struct {
	Name string `json:"name"`
}

// CustomerReply 客户信息
type CustomerReply struct {
	CustomerID     string `json:"customer_id"`
	Name           string `json:"name"`
	TotalAccounts  int    `json:"total_accounts"`
	ActiveAccounts int    `json:"active_accounts"`
	TotalSpend     string `json:"total_spend"`
}

// CreateCustomer 创建客户
func (s *TrackingService) CreateCustomer(ctx context.Context, req *CreateCustomerRequest) (*CustomerReply, error) {
	customer, err := s.customers.CreateCustomer(ctx, &biz.Customer{Name: req.Name})
	if err != nil {
		s.log.Errorf("CreateCustomer failed: %v", err)
		return nil, err
	}
	return toCustomerReply(customer), nil
}

// GetCustomerRequest 获取客户请求
type GetCustomerRequest struct {
	CustomerID string `json:"customer_id"`
}

// GetCustomer 获取客户
func (s *TrackingService) GetCustomer(ctx context.Context, req *GetCustomerRequest) (*CustomerReply, error) {
	customer, err := s.customers.GetCustomer(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	return toCustomerReply(customer), nil
}

// DeleteCustomer 删除客户
func (s *TrackingService) DeleteCustomer(ctx context.Context, req *GetCustomerRequest) error {
	return s.customers.DeleteCustomer(ctx, req.CustomerID)
}

// ========== 归属台账 ==========

// AssignRequest 分配请求
type AssignRequest struct {
	AccountID string `json:"account_id"`
	TargetID  string `json:"target_id"`
	ActorID   string `json:"actor_id"`
	Reason    string `json:"reason"`
}

// BulkReassignRequest 批量改绑请求
type BulkReassignRequest struct {
	AccountIDs []string `json:"account_ids"`
	TargetID   string   `json:"target_id"`
	ActorID    string   `json:"actor_id"`
	Reason     string   `json:"reason"`
}

// UnassignRequest 解绑请求
type UnassignRequest struct {
	AccountID string `json:"account_id"`
	ActorID   string `json:"actor_id"`
}

// AssignInvoiceProvider 将账户分配到开票主体
func (s *TrackingService) AssignInvoiceProvider(ctx context.Context, req *AssignRequest) error {
	return s.ledger.AssignInvoiceProvider(ctx, req.AccountID, req.TargetID, req.ActorID, req.Reason)
}

// UnassignInvoiceProvider 解除账户与开票主体的归属
func (s *TrackingService) UnassignInvoiceProvider(ctx context.Context, req *UnassignRequest) error {
	return s.ledger.UnassignInvoiceProvider(ctx, req.AccountID, req.ActorID)
}

// BulkReassignInvoiceProvider 批量改绑开票主体
func (s *TrackingService) BulkReassignInvoiceProvider(ctx context.Context, req *BulkReassignRequest) error {
	return s.ledger.BulkReassignInvoiceProvider(ctx, req.AccountIDs, req.TargetID, req.ActorID, req.Reason)
}

// AssignCustomer 将账户分配到客户
func (s *TrackingService) AssignCustomer(ctx context.Context, req *AssignRequest) error {
	return s.ledger.AssignCustomer(ctx, req.AccountID, req.TargetID, req.ActorID, req.Reason)
}

// UnassignCustomer 解除账户与客户的归属
func (s *TrackingService) UnassignCustomer(ctx context.Context, req *UnassignRequest) error {
	return s.ledger.UnassignCustomer(ctx, req.AccountID, req.ActorID)
}

// BulkReassignCustomer 批量改绑客户
func (s *TrackingService) BulkReassignCustomer(ctx context.Context, req *BulkReassignRequest) error {
	return s.ledger.BulkReassignCustomer(ctx, req.AccountIDs, req.TargetID, req.ActorID, req.Reason)
}

// GetAssignmentRequest 查询当前归属请求
type GetAssignmentRequest struct {
	AccountID  string `json:"account_id"`
	TargetType string `json:"target_type"`
}

// AssignmentReply 归属区间信息
type AssignmentReply struct {
	AssignmentID string `json:"assignment_id"`
	AccountID    string `json:"account_id"`
	TargetType   string `json:"target_type"`
	TargetID     string `json:"target_id"`
	StartedAt    string `json:"started_at"`
	StartedBy    string `json:"started_by"`
	Reason       string `json:"reason"`
	EndedAt      string `json:"ended_at,omitempty"`
	EndedBy      string `json:"ended_by,omitempty"`
	EndReason    string `json:"end_reason,omitempty"`
}

// GetCurrentAssignment 查询账户当前归属（无归属时返回 nil）
func (s *TrackingService) GetCurrentAssignment(ctx context.Context, req *GetAssignmentRequest) (*AssignmentReply, error) {
	interval, err := s.ledger.GetCurrentAssignment(ctx, req.AccountID, req.TargetType)
	if err != nil {
		return nil, err
	}
	if interval == nil {
		return nil, nil
	}
	return toAssignmentReply(interval), nil
}

// HistoryReply 归属历史
type HistoryReply struct {
	Intervals []*AssignmentReply `json:"intervals"`
}

// ListHistory 查询账户归属历史
func (s *TrackingService) ListHistory(ctx context.Context, req *GetAssignmentRequest) (*HistoryReply, error) {
	intervals, err := s.ledger.ListHistory(ctx, req.AccountID, req.TargetType)
	if err != nil {
		return nil, err
	}
	reply := &HistoryReply{Intervals: make([]*AssignmentReply, 0, len(intervals))}
	for _, i := range intervals {
		reply.Intervals = append(reply.Intervals, toAssignmentReply(i))
	}
	return reply, nil
}

// ========== 分配规划 ==========

// RequirementItem 需求条目
type RequirementItem struct {
	Timezone      string `json:"timezone"`
	CurrencyClass string `json:"currency_class"`
	Year          int    `json:"year"`
	Count         int    `json:"count"`
}

// SuggestRequest 规划请求
type SuggestRequest struct {
	Requirements []*RequirementItem `json:"requirements"`
}

// ProposedLinkItem 提议取用的账户
type ProposedLinkItem struct {
	BatchID    string   `json:"batch_id"`
	BatchName  string   `json:"batch_name"`
	Readiness  int      `json:"readiness"`
	AccountIDs []string `json:"account_ids"`
}

// AlternativeItem 备选批次
type AlternativeItem struct {
	BatchID       string `json:"batch_id"`
	BatchName     string `json:"batch_name"`
	Readiness     int    `json:"readiness"`
	SpareAccounts int    `json:"spare_accounts"`
}

// ProposalItem 单条需求的规划结果
type ProposalItem struct {
	Requirement  *RequirementItem    `json:"requirement"`
	Links        []*ProposedLinkItem `json:"links"`
	Alternatives []*AlternativeItem  `json:"alternatives"`
	IsFulfilled  bool                `json:"is_fulfilled"`
	MissingCount int                 `json:"missing_count"`
}

// SuggestReply 规划结果
type SuggestReply struct {
	Proposals []*ProposalItem `json:"proposals"`
}

// Suggest 为一组需求提议取用方案
func (s *TrackingService) Suggest(ctx context.Context, req *SuggestRequest) (*SuggestReply, error) {
	requirements := make([]*biz.Requirement, 0, len(req.Requirements))
	for _, item := range req.Requirements {
		requirements = append(requirements, &biz.Requirement{
			Timezone:      item.Timezone,
			CurrencyClass: item.CurrencyClass,
			Year:          item.Year,
			Count:         item.Count,
		})
	}

	proposals, err := s.allocation.Suggest(ctx, requirements)
	if err != nil {
		s.log.Errorf("Suggest failed: %v", err)
		return nil, err
	}

	reply := &SuggestReply{Proposals: make([]*ProposalItem, 0, len(proposals))}
	for _, p := range proposals {
		item := &ProposalItem{
			Requirement: &RequirementItem{
				Timezone:      p.Requirement.Timezone,
				CurrencyClass: p.Requirement.CurrencyClass,
				Year:          p.Requirement.Year,
				Count:         p.Requirement.Count,
			},
			Links:        make([]*ProposedLinkItem, 0, len(p.Links)),
			Alternatives: make([]*AlternativeItem, 0, len(p.Alternatives)),
			IsFulfilled:  p.IsFulfilled,
			MissingCount: p.MissingCount,
		}
		for _, l := range p.Links {
			item.Links = append(item.Links, &ProposedLinkItem{
				BatchID:    l.BatchID,
				BatchName:  l.BatchName,
				Readiness:  l.Readiness,
				AccountIDs: l.AccountIDs,
			})
		}
		for _, a := range p.Alternatives {
			item.Alternatives = append(item.Alternatives, &AlternativeItem{
				BatchID:       a.BatchID,
				BatchName:     a.BatchName,
				Readiness:     a.Readiness,
				SpareAccounts: a.SpareAccounts,
			})
		}
		reply.Proposals = append(reply.Proposals, item)
	}
	return reply, nil
}

// NewProviderItem 执行时新建开票主体的参数
type NewProviderItem struct {
	Name        string `json:"name"`
	ExternalRef string `json:"external_ref"`
}

// ExecuteAllocationRequest 分配执行请求
type ExecuteAllocationRequest struct {
	Links             [][]string       `json:"links"`
	InvoiceProviderID string           `json:"invoice_provider_id"`
	NewProvider       *NewProviderItem `json:"new_provider"`
	ActorID           string           `json:"actor_id"`
}

// ExecuteAllocationReply 分配执行结果
type ExecuteAllocationReply struct {
	InvoiceProviderID string `json:"invoice_provider_id"`
	AccountCount      int    `json:"account_count"`
}

// ExecuteAllocation 提交选定的分配方案
func (s *TrackingService) ExecuteAllocation(ctx context.Context, req *ExecuteAllocationRequest) (*ExecuteAllocationReply, error) {
	execution := &biz.AllocationExecution{
		Links:             req.Links,
		InvoiceProviderID: req.InvoiceProviderID,
		ActorID:           req.ActorID,
	}
	if req.NewProvider != nil {
		execution.NewProvider = &biz.NewInvoiceProviderParams{
			Name:        req.NewProvider.Name,
			ExternalRef: req.NewProvider.ExternalRef,
		}
	}

	commit, err := s.allocation.Execute(ctx, execution)
	if err != nil {
		s.log.Errorf("ExecuteAllocation failed: %v", err)
		return nil, err
	}
	return &ExecuteAllocationReply{
		InvoiceProviderID: commit.InvoiceProviderID,
		AccountCount:      commit.AccountCount,
	}, nil
}

// ========== 转换 ==========

func toAccountReply(a *biz.Account) *AccountReply {
	reply := &AccountReply{
		AccountID:  a.AccountID,
		ExternalID: a.ExternalID,
		Name:       a.Name,
		Currency:   a.Currency,
		Status:     a.Status,
		BatchID:    a.BatchID,
		TotalSpend: a.TotalSpend.String(),
		CreatedAt:  a.CreatedAt.Format(time.RFC3339),
	}
	if a.InvoiceProviderID != nil {
		reply.InvoiceProviderID = *a.InvoiceProviderID
	}
	if a.CustomerID != nil {
		reply.CustomerID = *a.CustomerID
	}
	return reply
}

func toBatchReply(b *biz.Batch) *BatchReply {
	return &BatchReply{
		BatchID:       b.BatchID,
		Name:          b.Name,
		Timezone:      b.Timezone,
		CurrencyClass: b.CurrencyClass,
		Year:          b.Year,
		Readiness:     b.Readiness,
		Status:        b.Status,
		TotalAccounts: b.TotalAccounts,
		LiveAccounts:  b.LiveAccounts,
	}
}

func toInvoiceProviderReply(p *biz.InvoiceProvider) *InvoiceProviderReply {
	return &InvoiceProviderReply{
		InvoiceProviderID: p.InvoiceProviderID,
		Name:              p.Name,
		ExternalRef:       p.ExternalRef,
		Status:            p.Status,
		LinkedAccounts:    p.LinkedAccounts,
		ActiveAccounts:    p.ActiveAccounts,
	}
}

func toCustomerReply(c *biz.Customer) *CustomerReply {
	return &CustomerReply{
		CustomerID:     c.CustomerID,
		Name:           c.Name,
		TotalAccounts:  c.TotalAccounts,
		ActiveAccounts: c.ActiveAccounts,
		TotalSpend:     c.TotalSpend.String(),
	}
}

func toAssignmentReply(i *biz.AssignmentInterval) *AssignmentReply {
	reply := &AssignmentReply{
		AssignmentID: i.AssignmentID,
		AccountID:    i.AccountID,
		TargetType:   i.TargetType,
		TargetID:     i.TargetID,
		StartedAt:    i.StartedAt.Format(time.RFC3339),
		StartedBy:    i.StartedBy,
		Reason:       i.Reason,
	}
	if i.EndedAt != nil {
		reply.EndedAt = i.EndedAt.Format(time.RFC3339)
	}
	if i.EndedBy != nil {
		reply.EndedBy = *i.EndedBy
	}
	if i.EndReason != nil {
		reply.EndReason = *i.EndReason
	}
	return reply
}
