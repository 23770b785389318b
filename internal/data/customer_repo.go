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

// customerRepo 客户数据访问
type customerRepo struct {
	data *Data
	log  *log.Helper
}

// NewCustomerRepo 创建客户 repo（返回 biz.CustomerRepo 接口）
func NewCustomerRepo(data *Data, logger log.Logger) biz.CustomerRepo {
	return &customerRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetCustomer 按ID获取客户，不存在返回 nil
func (r *customerRepo) GetCustomer(ctx context.Context, customerID string) (*biz.Customer, error) {
	var customer model.Customer
	err := r.data.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		First(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	return &biz.Customer{
		CustomerID:     customer.CustomerID,
		Name:           customer.Name,
		TotalAccounts:  customer.TotalAccounts,
		ActiveAccounts: customer.ActiveAccounts,
		TotalSpend:     customer.TotalSpend,
		CreatedAt:      customer.CreatedAt,
		UpdatedAt:      customer.UpdatedAt,
	}, nil
}

// CreateCustomer 创建客户
func (r *customerRepo) CreateCustomer(ctx context.Context, customer *biz.Customer) error {
	if customer.CustomerID == "" {
		customer.CustomerID = uuid.New().String()
	}
	m := &model.Customer{
		CustomerID: customer.CustomerID,
		Name:       customer.Name,
		TotalSpend: customer.TotalSpend,
	}
	if err := r.data.db.WithContext(ctx).Create(m).Error; err != nil {
		return pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	customer.CreatedAt = m.CreatedAt
	customer.UpdatedAt = m.UpdatedAt
	return nil
}

// DeleteCustomer 删除客户（仍有账户归属时返回冲突）
func (r *customerRepo) DeleteCustomer(ctx context.Context, customerID string) error {
	return r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Account{}).
			Where("customer_id = ?", customerID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeCustomerNotEmpty)
		}

		result := tx.Where("customer_id = ?", customerID).Delete(&model.Customer{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeCustomerNotFound)
		}
		return nil
	})
}
