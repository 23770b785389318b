package data

import (
	"context"
	"errors"

	"adtrack-service/internal/biz"
	"adtrack-service/internal/data/model"
	adtrackErrors "adtrack-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// batchRepo 批次数据访问
type batchRepo struct {
	data *Data
	log  *log.Helper
}

// NewBatchRepo 创建批次 repo（返回 biz.BatchRepo 接口）
func NewBatchRepo(data *Data, logger log.Logger) biz.BatchRepo {
	return &batchRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetBatch 按ID获取批次，不存在返回 nil
func (r *batchRepo) GetBatch(ctx context.Context, batchID string) (*biz.Batch, error) {
	var batch model.Batch
	err := r.data.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	return toBizBatch(&batch), nil
}

// GetBatchByName 按名称获取批次，不存在返回 nil
func (r *batchRepo) GetBatchByName(ctx context.Context, name string) (*biz.Batch, error) {
	var batch model.Batch
	err := r.data.db.WithContext(ctx).
		Where("name = ?", name).
		First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	return toBizBatch(&batch), nil
}

// CreateBatch 创建批次
func (r *batchRepo) CreateBatch(ctx context.Context, batch *biz.Batch) error {
	if batch.BatchID == "" {
		batch.BatchID = uuid.New().String()
	}
	m := &model.Batch{
		BatchID:       batch.BatchID,
		Name:          batch.Name,
		Timezone:      batch.Timezone,
		CurrencyClass: batch.CurrencyClass,
		Year:          batch.Year,
		Readiness:     batch.Readiness,
		Status:        batch.Status,
	}
	if err := r.data.db.WithContext(ctx).Create(m).Error; err != nil {
		return pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	batch.CreatedAt = m.CreatedAt
	batch.UpdatedAt = m.UpdatedAt
	return nil
}

// DeleteBatch 删除批次（批次下仍有账户时返回冲突）
func (r *batchRepo) DeleteBatch(ctx context.Context, batchID string) error {
	return r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Account{}).
			Where("batch_id = ?", batchID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeBatchNotEmpty)
		}

		result := tx.Where("batch_id = ?", batchID).Delete(&model.Batch{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeBatchNotFound)
		}
		return nil
	})
}

// toBizBatch 模型转领域对象
func toBizBatch(m *model.Batch) *biz.Batch {
	return &biz.Batch{
		BatchID:       m.BatchID,
		Name:          m.Name,
		Timezone:      m.Timezone,
		CurrencyClass: m.CurrencyClass,
		Year:          m.Year,
		Readiness:     m.Readiness,
		Status:        m.Status,
		TotalAccounts: m.TotalAccounts,
		LiveAccounts:  m.LiveAccounts,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
