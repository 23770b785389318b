package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account 投放账户表
// batch_id 创建后不可变；invoice_provider_id / customer_id 是"当前归属"指针，
// 与 assignment_interval 中的开区间一一对应（无开区间时为 NULL）
type Account struct {
	AccountID         string          `gorm:"primaryKey;type:varchar(36)"`
	ExternalID        string          `gorm:"uniqueIndex;type:varchar(64);not null"`
	Name              string          `gorm:"type:varchar(128);not null"`
	Currency          string          `gorm:"type:char(3);not null"`
	Status            string          `gorm:"type:enum('active','inactive');not null;default:'active'"`
	BatchID           string          `gorm:"type:varchar(36);not null;index"`
	InvoiceProviderID *string         `gorm:"type:varchar(36);index"`
	CustomerID        *string         `gorm:"type:varchar(36);index"`
	TotalSpend        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0.0000"` // 缓存的全量消耗，由对账刷新
	CreatedAt         time.Time       `gorm:"autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Account) TableName() string {
	return "account"
}
