package service

import (
	"context"
	"time"

	"adtrack-service/internal/biz"
	"adtrack-service/internal/constants"
	adtrackErrors "adtrack-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

// SpendService 消耗对账服务（快照导入、对账触发）
type SpendService struct {
	reconcile *biz.SpendReconcileUseCase
	log       *log.Helper
}

// NewSpendService 创建 SpendService
func NewSpendService(reconcile *biz.SpendReconcileUseCase, logger log.Logger) *SpendService {
	return &SpendService{
		reconcile: reconcile,
		log:       log.NewHelper(logger),
	}
}

// ImportSnapshotRequest 快照导入请求
// cumulative_amount 为字符串避免浮点精度丢失；observed_at 缺省取服务端当前时间
type ImportSnapshotRequest struct {
	AccountID        string `json:"account_id"`
	SpendDate        string `json:"spend_date"` // 2024-11-02
	CumulativeAmount string `json:"cumulative_amount"`
	ObservedAt       string `json:"observed_at"` // RFC3339
	Source           string `json:"source"`
}

// ReconcileReply 对账结果
type ReconcileReply struct {
	RecordsWritten   int    `json:"records_written"`
	SkippedSnapshots int    `json:"skipped_snapshots"`
	TotalForAccount  string `json:"total_for_account"`
}

// ImportSnapshot 导入一条快照并立即对账
func (s *SpendService) ImportSnapshot(ctx context.Context, req *ImportSnapshotRequest) (*ReconcileReply, error) {
	amount, err := decimal.NewFromString(req.CumulativeAmount)
	if err != nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeSnapshotAmountInvalid)
	}

	var observedAt time.Time
	if req.ObservedAt != "" {
		observedAt, err = time.Parse(time.RFC3339, req.ObservedAt)
		if err != nil {
			return nil, pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeSnapshotDateInvalid)
		}
	}

	source := req.Source
	if source == "" {
		source = "api"
	}

	result, err := s.reconcile.ImportSnapshot(ctx, &biz.SpendSnapshot{
		AccountID:        req.AccountID,
		SpendDate:        req.SpendDate,
		CumulativeAmount: amount,
		ObservedAt:       observedAt,
	}, source)
	if err != nil {
		s.log.Errorf("ImportSnapshot failed: %v", err)
		return nil, err
	}
	return toReconcileReply(result), nil
}

// ReconcileRequest 单账户对账请求
type ReconcileRequest struct {
	AccountID string `json:"account_id"`
	Date      string `json:"date"` // 2024-11-02
}

// Reconcile 对某账户某天做一次完整对账
func (s *SpendService) Reconcile(ctx context.Context, req *ReconcileRequest) (*ReconcileReply, error) {
	result, err := s.reconcile.Reconcile(ctx, req.AccountID, req.Date)
	if err != nil {
		s.log.Errorf("Reconcile failed: account_id=%s, date=%s, error=%v", req.AccountID, req.Date, err)
		return nil, err
	}
	return toReconcileReply(result), nil
}

// ReconcileDayRequest 全天对账请求
type ReconcileDayRequest struct {
	Date string `json:"date"` // 缺省为昨天（UTC）
}

// ReconcileDayReply 全天对账结果
type ReconcileDayReply struct {
	Date      string `json:"date"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
}

// ReconcileDay 对某天所有有快照的账户做一次对账
func (s *SpendService) ReconcileDay(ctx context.Context, req *ReconcileDayRequest) (*ReconcileDayReply, error) {
	date := req.Date
	if date == "" {
		date = time.Now().UTC().AddDate(0, 0, -1).Format(constants.TimeFormatDate)
	}

	processed, failed, err := s.reconcile.ReconcileDay(ctx, date)
	if err != nil {
		s.log.Errorf("ReconcileDay failed: date=%s, error=%v", date, err)
		return nil, err
	}
	return &ReconcileDayReply{Date: date, Processed: processed, Failed: failed}, nil
}

func toReconcileReply(r *biz.ReconcileResult) *ReconcileReply {
	return &ReconcileReply{
		RecordsWritten:   r.RecordsWritten,
		SkippedSnapshots: r.SkippedSnapshots,
		TotalForAccount:  r.TotalForAccount.String(),
	}
}
