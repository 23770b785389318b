package biz

import (
	"context"
	"time"

	adtrackErrors "adtrack-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

// Customer 客户领域对象
type Customer struct {
	CustomerID     string
	Name           string
	TotalAccounts  int
	ActiveAccounts int
	TotalSpend     decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CustomerRepo 客户数据层接口（定义在 biz 层）
type CustomerRepo interface {
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)
	CreateCustomer(ctx context.Context, customer *Customer) error
	// DeleteCustomer 删除客户；仍有账户归属时返回冲突
	DeleteCustomer(ctx context.Context, customerID string) error
}

// CustomerUseCase 客户业务逻辑
type CustomerUseCase struct {
	repo CustomerRepo
	log  *log.Helper
}

// NewCustomerUseCase 创建客户 UseCase
func NewCustomerUseCase(repo CustomerRepo, logger log.Logger) *CustomerUseCase {
	return &CustomerUseCase{
		repo: repo,
		log:  log.NewHelper(logger),
	}
}

// CreateCustomer 创建客户
func (uc *CustomerUseCase) CreateCustomer(ctx context.Context, customer *Customer) (*Customer, error) {
	customer.TotalSpend = decimal.Zero
	if err := uc.repo.CreateCustomer(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

// GetCustomer 获取客户
func (uc *CustomerUseCase) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	customer, err := uc.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeCustomerNotFound)
	}
	return customer, nil
}

// DeleteCustomer 删除客户（仅当没有账户归属）
func (uc *CustomerUseCase) DeleteCustomer(ctx context.Context, customerID string) error {
	return uc.repo.DeleteCustomer(ctx, customerID)
}
