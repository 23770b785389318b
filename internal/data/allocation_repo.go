package data

import (
	"context"
	"errors"
	"time"

	"adtrack-service/internal/biz"
	"adtrack-service/internal/constants"
	"adtrack-service/internal/data/model"
	adtrackErrors "adtrack-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// allocationRepo 分配规划数据访问
type allocationRepo struct {
	data *Data
	log  *log.Helper
}

// NewAllocationRepo 创建分配规划 repo（返回 biz.AllocationRepo 接口）
func NewAllocationRepo(data *Data, logger log.Logger) biz.AllocationRepo {
	return &allocationRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// ListCandidateBatches 候选批次：时区/币种类别/年份匹配的活跃批次
// 成熟度降序、批次ID升序，保证同样输入产出同样顺序
func (r *allocationRepo) ListCandidateBatches(ctx context.Context, timezone, currencyClass string, year int) ([]*biz.Batch, error) {
	var batches []*model.Batch
	if err := r.data.db.WithContext(ctx).
		Where("timezone = ? AND currency_class = ? AND year = ? AND status = ?",
			timezone, currencyClass, year, constants.StatusActive).
		Order("readiness DESC, batch_id ASC").
		Find(&batches).Error; err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}

	result := make([]*biz.Batch, 0, len(batches))
	for _, b := range batches {
		result = append(result, toBizBatch(b))
	}
	return result, nil
}

// ListUnassignedAccounts 批次内未归属开票主体的活跃账户，按账户ID升序
func (r *allocationRepo) ListUnassignedAccounts(ctx context.Context, batchID string, limit int) ([]*biz.Account, error) {
	var accounts []*model.Account
	if err := r.data.db.WithContext(ctx).
		Where("batch_id = ? AND status = ? AND invoice_provider_id IS NULL",
			batchID, constants.StatusActive).
		Order("account_id ASC").
		Limit(limit).
		Find(&accounts).Error; err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}

	result := make([]*biz.Account, 0, len(accounts))
	for _, a := range accounts {
		result = append(result, toBizAccount(a))
	}
	return result, nil
}

// ExecuteAllocation 单事务提交分配方案
// 可选地先建开票主体，再把全部账户绑定到该主体；任何一步失败整体回滚
func (r *allocationRepo) ExecuteAllocation(ctx context.Context, execution *biz.AllocationExecution) (*biz.AllocationCommit, error) {
	commit := &biz.AllocationCommit{}
	previousSet := make(map[string]bool)

	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		providerID := execution.InvoiceProviderID
		if execution.NewProvider != nil {
			providerID = uuid.New().String()
			provider := &model.InvoiceProvider{
				InvoiceProviderID: providerID,
				Name:              execution.NewProvider.Name,
				ExternalRef:       execution.NewProvider.ExternalRef,
				Status:            constants.StatusActive,
			}
			if err := tx.Create(provider).Error; err != nil {
				return pkgErrors.WrapErrorWithLang(ctx, err, adtrackErrors.ErrCodeAllocationExecuteFailed)
			}
		}
		commit.InvoiceProviderID = providerID

		now := time.Now()
		for _, link := range execution.Links {
			for _, accountID := range link {
				var account model.Account
				err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
					Where("account_id = ?", accountID).
					First(&account).Error
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeAccountNotFound)
				}
				if err != nil {
					return err
				}

				current := currentTarget(&account, constants.TargetTypeInvoiceProvider)
				if current == providerID {
					continue
				}

				rowReason := constants.ReasonInitial
				if current != "" {
					if err := closeOpenInterval(tx, accountID, constants.TargetTypeInvoiceProvider,
						execution.ActorID, constants.EndReasonReassign, now); err != nil {
						return err
					}
					previousSet[current] = true
					rowReason = constants.ReasonReassign
				}

				interval := &model.AssignmentInterval{
					AssignmentID: uuid.New().String(),
					AccountID:    accountID,
					TargetType:   constants.TargetTypeInvoiceProvider,
					TargetID:     providerID,
					StartedAt:    now,
					StartedBy:    execution.ActorID,
					Reason:       rowReason,
				}
				if err := tx.Create(interval).Error; err != nil {
					return pkgErrors.WrapErrorWithLang(ctx, err, adtrackErrors.ErrCodeAllocationExecuteFailed)
				}

				if err := updatePointer(tx, accountID, constants.TargetTypeInvoiceProvider, &providerID); err != nil {
					return err
				}
				commit.AccountCount++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for id := range previousSet {
		commit.PreviousProviders = append(commit.PreviousProviders, id)
	}
	return commit, nil
}
