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
	"gorm.io/gorm/clause"
)

// accountRepo 账户数据访问
type accountRepo struct {
	data *Data
	log  *log.Helper
}

// NewAccountRepo 创建账户 repo（返回 biz.AccountRepo 接口）
func NewAccountRepo(data *Data, logger log.Logger) biz.AccountRepo {
	return &accountRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetAccount 按ID获取账户，不存在返回 nil
func (r *accountRepo) GetAccount(ctx context.Context, accountID string) (*biz.Account, error) {
	var account model.Account
	err := r.data.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	return toBizAccount(&account), nil
}

// GetAccountByExternalID 按外部ID获取账户，不存在返回 nil
func (r *accountRepo) GetAccountByExternalID(ctx context.Context, externalID string) (*biz.Account, error) {
	var account model.Account
	err := r.data.db.WithContext(ctx).
		Where("external_id = ?", externalID).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}
	return toBizAccount(&account), nil
}

// CreateAccount 创建账户
func (r *accountRepo) CreateAccount(ctx context.Context, account *biz.Account) error {
	if account.AccountID == "" {
		account.AccountID = uuid.New().String()
	}
	m := toModelAccount(account)
	if err := r.data.db.WithContext(ctx).Create(m).Error; err != nil {
		return pkgErrors.WrapErrorWithLang(ctx, err, adtrackErrors.ErrCodeAccountCreateFailed)
	}
	account.CreatedAt = m.CreatedAt
	account.UpdatedAt = m.UpdatedAt
	return nil
}

// ListAccountsByBatch 列出批次下的全部账户
func (r *accountRepo) ListAccountsByBatch(ctx context.Context, batchID string) ([]*biz.Account, error) {
	var accounts []*model.Account
	if err := r.data.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("account_id ASC").
		Find(&accounts).Error; err != nil {
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, pkgErrors.ErrCodeDatabaseError)
	}

	result := make([]*biz.Account, 0, len(accounts))
	for _, a := range accounts {
		result = append(result, toBizAccount(a))
	}
	return result, nil
}

// BulkUpdateStatus 批量改状态（单事务），返回波及的实体集合
// 不存在的ID整体回滚，不做部分成功
func (r *accountRepo) BulkUpdateStatus(ctx context.Context, accountIDs []string, status string) (*biz.TouchedEntities, error) {
	touched := &biz.TouchedEntities{}

	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var accounts []*model.Account
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_id IN ?", accountIDs).
			Find(&accounts).Error; err != nil {
			return err
		}
		if len(accounts) != len(accountIDs) {
			return pkgErrors.NewBizErrorWithLang(ctx, adtrackErrors.ErrCodeAccountNotFound)
		}

		seen := &biz.TouchedEntities{}
		for _, a := range accounts {
			other := &biz.TouchedEntities{BatchIDs: []string{a.BatchID}}
			if a.InvoiceProviderID != nil {
				other.InvoiceProviderIDs = []string{*a.InvoiceProviderID}
			}
			if a.CustomerID != nil {
				other.CustomerIDs = []string{*a.CustomerID}
			}
			seen.Merge(other)
		}

		if err := tx.Model(&model.Account{}).
			Where("account_id IN ?", accountIDs).
			Update("status", status).Error; err != nil {
			return err
		}

		touched.Merge(seen)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return touched, nil
}

// toBizAccount 模型转领域对象
func toBizAccount(m *model.Account) *biz.Account {
	return &biz.Account{
		AccountID:         m.AccountID,
		ExternalID:        m.ExternalID,
		Name:              m.Name,
		Currency:          m.Currency,
		Status:            m.Status,
		BatchID:           m.BatchID,
		InvoiceProviderID: m.InvoiceProviderID,
		CustomerID:        m.CustomerID,
		TotalSpend:        m.TotalSpend,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// toModelAccount 领域对象转模型
func toModelAccount(a *biz.Account) *model.Account {
	return &model.Account{
		AccountID:         a.AccountID,
		ExternalID:        a.ExternalID,
		Name:              a.Name,
		Currency:          a.Currency,
		Status:            a.Status,
		BatchID:           a.BatchID,
		InvoiceProviderID: a.InvoiceProviderID,
		CustomerID:        a.CustomerID,
		TotalSpend:        a.TotalSpend,
	}
}
