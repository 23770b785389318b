package model

import (
	"time"
)

// AssignmentInterval 归属区间表（多态：开票主体 / 客户）
// ended_at 为 NULL 表示当前生效区间；每个 (account_id, target_type) 至多一条开区间，
// 由同一事务内"先关后开"保证，不依赖唯一约束
// 区间一经创建，除关区间三元组 (ended_at, ended_by, end_reason) 外不再修改
type AssignmentInterval struct {
	AssignmentID string     `gorm:"primaryKey;type:varchar(36)"`
	AccountID    string     `gorm:"type:varchar(36);not null;index:idx_account_type_open,priority:1"`
	TargetType   string     `gorm:"type:enum('invoice_provider','customer');not null;index:idx_account_type_open,priority:2"`
	TargetID     string     `gorm:"type:varchar(36);not null;index"`
	StartedAt    time.Time  `gorm:"not null"`
	StartedBy    string     `gorm:"type:varchar(36);not null"`
	Reason       string     `gorm:"type:enum('initial','reassign','migration');not null"`
	EndedAt      *time.Time `gorm:"index:idx_account_type_open,priority:3"`
	EndedBy      *string    `gorm:"type:varchar(36)"`
	EndReason    *string    `gorm:"type:enum('reassign','manual_unlink')"`
	CreatedAt    time.Time  `gorm:"autoCreateTime"`
}

// TableName 指定表名
func (AssignmentInterval) TableName() string {
	return "assignment_interval"
}

// IsOpen 是否为当前生效区间
func (a *AssignmentInterval) IsOpen() bool {
	return a.EndedAt == nil
}
