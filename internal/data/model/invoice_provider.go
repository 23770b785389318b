package model

import (
	"time"
)

// InvoiceProvider 开票主体表
// linked/active 为缓存计数，由计数同步刷新
type InvoiceProvider struct {
	InvoiceProviderID string    `gorm:"primaryKey;type:varchar(36)"`
	Name              string    `gorm:"type:varchar(128);not null"`
	ExternalRef       string    `gorm:"uniqueIndex;type:varchar(64);not null"`
	Status            string    `gorm:"type:enum('active','inactive');not null;default:'active'"`
	LinkedAccounts    int       `gorm:"not null;default:0"`
	ActiveAccounts    int       `gorm:"not null;default:0"`
	CreatedAt         time.Time `gorm:"autoCreateTime"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (InvoiceProvider) TableName() string {
	return "invoice_provider"
}
