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

// ledgerRepo 归属台账数据访问
// 核心不变量：每个 (account_id, target_type) 至多一条开区间，且与账户当前指针一致。
// 由"同一事务内先关旧区间、再开新区间、同时更新指针"保证，账户行加 FOR UPDATE 锁
type ledgerRepo struct {
	data *Data
	log  *log.Helper
}

// NewLedgerRepo 创建归属台账 repo（返回 biz.LedgerRepo 接口）
func NewLedgerRepo(data *Data, logger log.Logger) biz.LedgerRepo {
	return &ledgerRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// Assign 将一组账户分配到目标（单事务，部分失败整体回滚）
func (r *ledgerRepo) Assign(ctx context.Context, accountIDs []string, targetType, targetID, actorID, reason string) (*biz.AssignOutcome, error) {
	outcome := &biz.AssignOutcome{LinkedByReason: make(map[string]int)}
	previousSet := make(map[string]bool)

	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		for _, accountID := range accountIDs {
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

			current := currentTarget(&account, targetType)

			// 目标已是当前归属：幂等跳过，不写历史行
			if current == targetID {
				outcome.SkippedCount++
				continue
			}

			if current != "" {
				if err := closeOpenInterval(tx, accountID, targetType, actorID, constants.EndReasonReassign, now); err != nil {
					return err
				}
				previousSet[current] = true
			}

			rowReason := reason
			if rowReason == "" {
				if current != "" {
					rowReason = constants.ReasonReassign
				} else {
					rowReason = constants.ReasonInitial
				}
			}

			interval := &model.AssignmentInterval{
				AssignmentID: uuid.New().String(),
				AccountID:    accountID,
				TargetType:   targetType,
				TargetID:     targetID,
				StartedAt:    now,
				StartedBy:    actorID,
				Reason:       rowReason,
			}
			if err := tx.Create(interval).Error; err != nil {
				return pkgErrors.WrapErrorWithLang(ctx, err, adtrackErrors.ErrCodeAssignFailed)
			}

			if err := updatePointer(tx, accountID, targetType, &targetID); err != nil {
				return err
			}
			outcome.LinkedCount++
			outcome.LinkedByReason[rowReason]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for id := range previousSet {
		outcome.PreviousTargets = append(outcome.PreviousTargets, id)
	}
	return outcome, nil
}

// Unassign 关闭账户在该目标类型下的开区间并清空指针（本就未归属时无操作）
func (r *ledgerRepo) Unassign(ctx context.Context, accountID, targetType, actorID string) (*biz.UnassignOutcome, error) {
	outcome := &biz.UnassignOutcome{}

	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
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

		current := currentTarget(&account, targetType)
		if current == "" {
			return nil
		}

		if err := closeOpenInterval(tx, accountID, targetType, actorID, constants.EndReasonManualUnlink, time.Now()); err != nil {
			return err
		}
		if err := updatePointer(tx, accountID, targetType, nil); err != nil {
			return err
		}
		outcome.PreviousTarget = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// GetOpenInterval 读取当前开区间，无开区间时返回 nil
func (r *ledgerRepo) GetOpenInterval(ctx context.Context, accountID, targetType string) (*biz.AssignmentInterval, error) {
	var interval model.AssignmentInterval
	err := r.data.db.WithContext(ctx).
		Where("account_id = ? AND target_type = ? AND ended_at IS NULL", accountID, targetType).
		First(&interval).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	return toBizInterval(&interval), nil
}

// ListIntervals 按开始时间升序返回账户在该目标类型下的全部区间
func (r *ledgerRepo) ListIntervals(ctx context.Context, accountID, targetType string) ([]*biz.AssignmentInterval, error) {
	var intervals []*model.AssignmentInterval
	if err := r.data.db.WithContext(ctx).
		Where("account_id = ? AND target_type = ?", accountID, targetType).
		Order("started_at ASC").
		Find(&intervals).Error; err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}

	result := make([]*biz.AssignmentInterval, 0, len(intervals))
	for _, i := range intervals {
		result = append(result, toBizInterval(i))
	}
	return result, nil
}

// currentTarget 读取账户在该目标类型下的当前指针（未归属返回空串）
func currentTarget(account *model.Account, targetType string) string {
	switch targetType {
	case constants.TargetTypeInvoiceProvider:
		if account.InvoiceProviderID != nil {
			return *account.InvoiceProviderID
		}
	case constants.TargetTypeCustomer:
		if account.CustomerID != nil {
			return *account.CustomerID
		}
	}
	return ""
}

// closeOpenInterval 填入关区间三元组 (ended_at, ended_by, end_reason)
func closeOpenInterval(tx *gorm.DB, accountID, targetType, actorID, endReason string, now time.Time) error {
	return tx.Model(&model.AssignmentInterval{}).
		Where("account_id = ? AND target_type = ? AND ended_at IS NULL", accountID, targetType).
		Updates(map[string]interface{}{
			"ended_at":   now,
			"ended_by":   actorID,
			"end_reason": endReason,
		}).Error
}

// updatePointer 更新账户当前归属指针（target 为 nil 表示清空）
func updatePointer(tx *gorm.DB, accountID, targetType string, target *string) error {
	column := "invoice_provider_id"
	if targetType == constants.TargetTypeCustomer {
		column = "customer_id"
	}
	return tx.Model(&model.Account{}).
		Where("account_id = ?", accountID).
		Update(column, target).Error
}

// toBizInterval 模型转领域对象
func toBizInterval(m *model.AssignmentInterval) *biz.AssignmentInterval {
	return &biz.AssignmentInterval{
		AssignmentID: m.AssignmentID,
		AccountID:    m.AccountID,
		TargetType:   m.TargetType,
		TargetID:     m.TargetID,
		StartedAt:    m.StartedAt,
		StartedBy:    m.StartedBy,
		Reason:       m.Reason,
		EndedAt:      m.EndedAt,
		EndedBy:      m.EndedBy,
		EndReason:    m.EndReason,
	}
}
