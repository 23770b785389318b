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

// invoiceProviderRepo 开票主体数据访问
type invoiceProviderRepo struct {
	data *Data
	log  *log.Helper
}

// NewInvoiceProviderRepo 创建开票主体 repo（返回 biz.InvoiceProviderRepo 接口）
func NewInvoiceProviderRepo(data *Data, logger log.Logger) biz.InvoiceProviderRepo {
	return &invoiceProviderRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetInvoiceProvider 按ID获取开票主体，不存在返回 nil
func (r *invoiceProviderRepo) GetInvoiceProvider(ctx context.Context, providerID string) (*biz.InvoiceProvider, error) {
	var provider model.InvoiceProvider
	err := r.data.db.WithContext(ctx).
		Where("invoice_provider_id = ?", providerID).
		First(&provider).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	return toBizInvoiceProvider(&provider), nil
}

// GetInvoiceProviderByExternalRef 按外部引用获取开票主体，不存在返回 nil
func (r *invoiceProviderRepo) GetInvoiceProviderByExternalRef(ctx context.Context, externalRef string) (*biz.InvoiceProvider, error) {
	var provider model.InvoiceProvider
	err := r.data.db.WithContext(ctx).
		Where("external_ref = ?", externalRef).
		First(&provider).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	return toBizInvoiceProvider(&provider), nil
}

// CreateInvoiceProvider 创建开票主体
func (r *invoiceProviderRepo) CreateInvoiceProvider(ctx context.Context, provider *biz.InvoiceProvider) error {
	if provider.InvoiceProviderID == "" {
		provider.InvoiceProviderID = uuid.New().String()
	}
	m := &model.InvoiceProvider{
		InvoiceProviderID: provider.InvoiceProviderID,
		Name:              provider.Name,
		ExternalRef:       provider.ExternalRef,
		Status:            provider.Status,
	}
	if err := r.data.db.WithContext(ctx).Create(m).Error; err != nil {
		return pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	provider.CreatedAt = m.CreatedAt
	provider.UpdatedAt = m.UpdatedAt
	return nil
}

// DeleteInvoiceProvider 删除开票主体（仍有账户归属时返回冲突）
func (r *invoiceProviderRepo) DeleteInvoiceProvider(ctx context.Context, providerID string) error {
	return r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Account{}).
			Where("invoice_provider_id = ?", providerID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeInvoiceProviderNotEmpty)
		}

		result := tx.Where("invoice_provider_id = ?", providerID).Delete(&model.InvoiceProvider{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeInvoiceProviderNotFound)
		}
		return nil
	})
}

// toBizInvoiceProvider 模型转领域对象
func toBizInvoiceProvider(m *model.InvoiceProvider) *biz.InvoiceProvider {
	return &biz.InvoiceProvider{
		InvoiceProviderID: m.InvoiceProviderID,
		Name:              m.Name,
		ExternalRef:       m.ExternalRef,
		Status:            m.Status,
		LinkedAccounts:    m.LinkedAccounts,
		ActiveAccounts:    m.ActiveAccounts,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
