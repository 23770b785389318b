package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer 客户表
// 计数与消耗均为缓存值，由计数同步从源数据重算
type Customer struct {
	CustomerID     string          `gorm:"primaryKey;type:varchar(36)"`
	Name           string          `gorm:"type:varchar(128);not null"`
	TotalAccounts  int             `gorm:"not null;default:0"`
	ActiveAccounts int             `gorm:"not null;default:0"`
	TotalSpend     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0.0000"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Customer) TableName() string {
	return "customer"
}
