package model

import (
	"time"
)

// Batch 账户批次表
// 同批次账户共享供给侧属性（时区、币种类别、年份）；total/live 为缓存计数，由计数同步刷新
type Batch struct {
	BatchID       string    `gorm:"primaryKey;type:varchar(36)"`
	Name          string    `gorm:"uniqueIndex;type:varchar(128);not null"`
	Timezone      string    `gorm:"type:varchar(64);not null;index:idx_tz_year,priority:1"`
	CurrencyClass string    `gorm:"type:varchar(16);not null"`
	Year          int       `gorm:"not null;index:idx_tz_year,priority:2"`
	Readiness     int       `gorm:"not null;default:0"` // 0-10 成熟度评分
	Status        string    `gorm:"type:enum('active','inactive');not null;default:'active'"`
	TotalAccounts int       `gorm:"not null;default:0"`
	LiveAccounts  int       `gorm:"not null;default:0"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Batch) TableName() string {
	return "batch"
}
