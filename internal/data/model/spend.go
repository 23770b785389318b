package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SpendSnapshot 消耗快照表
// 某时刻读到的"当天累计消耗"，并记录读取时刻账户的归属指针；创建后不可变
// 同一账户同一天可以有多条快照（例如改绑前后各一条）
type SpendSnapshot struct {
	SnapshotID        string          `gorm:"primaryKey;type:varchar(36)"`
	AccountID         string          `gorm:"type:varchar(36);not null;index:idx_account_date,priority:1"`
	SpendDate         string          `gorm:"type:char(10);not null;index:idx_account_date,priority:2"` // 2024-11-02
	CumulativeAmount  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ObservedAt        time.Time       `gorm:"not null"`
	InvoiceProviderID *string         `gorm:"type:varchar(36)"`
	CustomerID        *string         `gorm:"type:varchar(36)"`
	CreatedAt         time.Time       `gorm:"autoCreateTime"`
}

// TableName 指定表名
func (SpendSnapshot) TableName() string {
	return "spend_snapshot"
}

// SpendRecord 消耗记录表（派生数据）
// 由同一账户同一天的快照序列确定性推导；重算时整组删除重写
// (account_id, spend_date, period_end) 唯一，防止非幂等调用产生重复派生行
type SpendRecord struct {
	SpendRecordID     string          `gorm:"primaryKey;type:varchar(36)"`
	AccountID         string          `gorm:"type:varchar(36);not null;uniqueIndex:uk_account_date_end,priority:1"`
	SpendDate         string          `gorm:"type:char(10);not null;uniqueIndex:uk_account_date_end,priority:2"`
	Amount            decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	PeriodStart       time.Time       `gorm:"not null"`
	PeriodEnd         time.Time       `gorm:"not null;uniqueIndex:uk_account_date_end,priority:3"`
	InvoiceProviderID *string         `gorm:"type:varchar(36);index"`
	CustomerID        *string         `gorm:"type:varchar(36);index"`
	CreatedAt         time.Time       `gorm:"autoCreateTime"`
}

// TableName 指定表名
func (SpendRecord) TableName() string {
	return "spend_record"
}
