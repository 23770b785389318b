package biz

import (
	"context"
	"time"

	"adtrack-service/internal/constants"
	adtrackErrors "adtrack-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// InvoiceProvider 开票主体领域对象
type InvoiceProvider struct {
	InvoiceProviderID string
	Name              string
	ExternalRef       string
	Status            string
	LinkedAccounts    int
	ActiveAccounts    int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// InvoiceProviderRepo 开票主体数据层接口（定义在 biz 层）
type InvoiceProviderRepo interface {
	GetInvoiceProvider(ctx context.Context, providerID string) (*InvoiceProvider, error)
	GetInvoiceProviderByExternalRef(ctx context.Context, externalRef string) (*InvoiceProvider, error)
	CreateInvoiceProvider(ctx context.Context, provider *InvoiceProvider) error
	// DeleteInvoiceProvider 删除开票主体；仍有账户归属时返回冲突
	DeleteInvoiceProvider(ctx context.Context, providerID string) error
}

// InvoiceProviderUseCase 开票主体业务逻辑
type InvoiceProviderUseCase struct {
	repo InvoiceProviderRepo
	log  *log.Helper
}

// NewInvoiceProviderUseCase 创建开票主体 UseCase
func NewInvoiceProviderUseCase(repo InvoiceProviderRepo, logger log.Logger) *InvoiceProviderUseCase {
	return &InvoiceProviderUseCase{
		repo: repo,
		log:  log.NewHelper(logger),
	}
}

// CreateInvoiceProvider 创建开票主体（外部引用重复返回冲突）
func (uc *InvoiceProviderUseCase) CreateInvoiceProvider(ctx context.Context, provider *InvoiceProvider) (*InvoiceProvider, error) {
	if provider.Status == "" {
		provider.Status = constants.StatusActive
	}

	existing, err := uc.repo.GetInvoiceProviderByExternalRef(ctx, provider.ExternalRef)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeInvoiceProviderConflict)
	}

	if err := uc.repo.CreateInvoiceProvider(ctx, provider); err != nil {
		return nil, err
	}
	return provider, nil
}

// GetInvoiceProvider 获取开票主体
func (uc *InvoiceProviderUseCase) GetInvoiceProvider(ctx context.Context, providerID string) (*InvoiceProvider, error) {
	provider, err := uc.repo.GetInvoiceProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeInvoiceProviderNotFound)
	}
	return provider, nil
}

// DeleteInvoiceProvider 删除开票主体（仅当没有账户归属）
func (uc *InvoiceProviderUseCase) DeleteInvoiceProvider(ctx context.Context, providerID string) error {
	return uc.repo.DeleteInvoiceProvider(ctx, providerID)
}
