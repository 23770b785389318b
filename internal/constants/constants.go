package constants

// 时间格式常量
const (
	// TimeFormatDate 日期格式 (YYYY-MM-DD)，投放快照按天归档
	TimeFormatDate = "2006-01-02"
)

// Redis Key 前缀常量
const (
	// RedisKeyAccountSpend 账户累计消耗缓存 key 前缀
	RedisKeyAccountSpend = "spend:account:"
	// RedisKeyBatchCounts 批次计数缓存 key 前缀
	RedisKeyBatchCounts = "counts:batch:"
	// RedisKeyProviderCounts 开票主体计数缓存 key 前缀
	RedisKeyProviderCounts = "counts:provider:"
	// RedisKeyCustomerCounts 客户计数缓存 key 前缀
	RedisKeyCustomerCounts = "counts:customer:"
	// RedisKeyReconcileLock 对账锁 key 前缀
	RedisKeyReconcileLock = "reconcile:lock:"
)

// 账户/批次/开票主体状态常量
const (
	// StatusActive 活跃
	StatusActive = "active"
	// StatusInactive 停用
	StatusInactive = "inactive"
)

// 归属目标类型常量（分配流水的多态类型）
const (
	// TargetTypeInvoiceProvider 开票主体
	TargetTypeInvoiceProvider = "invoice_provider"
	// TargetTypeCustomer 客户
	TargetTypeCustomer = "customer"
)

// 分配原因常量（开区间时记录）
const (
	// ReasonInitial 首次分配
	ReasonInitial = "initial"
	// ReasonReassign 改绑（之前已有归属）
	ReasonReassign = "reassign"
	// ReasonMigration 管理迁移
	ReasonMigration = "migration"
)

// 关区间原因常量（关区间时记录）
const (
	// EndReasonReassign 因改绑关闭
	EndReasonReassign = "reassign"
	// EndReasonManualUnlink 手动解绑
	EndReasonManualUnlink = "manual_unlink"
)

// 活动日志动作常量
const (
	// ActionCreate 创建
	ActionCreate = "create"
	// ActionAssign 分配
	ActionAssign = "assign"
	// ActionUnassign 解绑
	ActionUnassign = "unassign"
	// ActionBulkReassign 批量改绑
	ActionBulkReassign = "bulk_reassign"
	// ActionReconcile 对账
	ActionReconcile = "reconcile"
	// ActionAllocate 分配执行
	ActionAllocate = "allocate"
	// ActionStatusChange 状态变更
	ActionStatusChange = "status_change"
)

// 活动日志实体类型常量
const (
	// EntityTypeAccount 账户
	EntityTypeAccount = "account"
	// EntityTypeBatch 批次
	EntityTypeBatch = "batch"
	// EntityTypeInvoiceProvider 开票主体
	EntityTypeInvoiceProvider = "invoice_provider"
	// EntityTypeCustomer 客户
	EntityTypeCustomer = "customer"
)

// 操作结果常量（用于指标）
const (
	// ResultSuccess 成功
	ResultSuccess = "success"
	// ResultFailed 失败
	ResultFailed = "failed"
	// ResultSkipped 跳过
	ResultSkipped = "skipped"
)

// 分配规划常量
const (
	// CandidateHeadroomMultiplier 候选账户上限倍数（count 的 N 倍，供 UI 浏览换选）
	CandidateHeadroomMultiplier = 2
	// ReadinessMax 批次成熟度上限
	ReadinessMax = 10
)
