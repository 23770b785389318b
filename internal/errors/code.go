package errors

import (
	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	i18nPkg "github.com/gaoyong06/go-pkg/middleware/i18n"
)

func init() {
	// 初始化全局错误管理器（使用项目特定的配置）
	pkgErrors.InitGlobalErrorManager("i18n", i18nPkg.Language)
}

// Adtrack Service 错误码定义
// 错误码格式：SSMMEE (6位数字)
//   SS: 服务标识，Adtrack 固定为 21
//   MM: 模块标识，按业务划分
//   EE: 模块内错误序号
//
// 模块划分：
//   00: 通用模块（复用 go-pkg 通用错误码）
//   01: 账户模块
//   02: 批次模块
//   03: 开票主体模块
//   04: 客户模块
//   05: 归属分配模块
//   06: 消耗对账模块
//   07: 分配规划模块
//   08-99: 预留扩展

// 账户模块错误码 (210100-210199)
const (
	// ErrCodeAccountNotFound 账户不存在
	ErrCodeAccountNotFound = 210101
	// ErrCodeAccountConflict 账户外部ID重复
	ErrCodeAccountConflict = 210102
	// ErrCodeAccountCreateFailed 账户创建失败
	ErrCodeAccountCreateFailed = 210103
	// ErrCodeAccountStatusInvalid 无效的账户状态
	ErrCodeAccountStatusInvalid = 210104
)

// 批次模块错误码 (210200-210299)
const (
	// ErrCodeBatchNotFound 批次不存在
	ErrCodeBatchNotFound = 210201
	// ErrCodeBatchConflict 批次名称重复
	ErrCodeBatchConflict = 210202
	// ErrCodeBatchNotEmpty 批次下仍有账户，不能删除
	ErrCodeBatchNotEmpty = 210203
	// ErrCodeBatchReadinessInvalid 成熟度评分超出 0-10
	ErrCodeBatchReadinessInvalid = 210204
)

// 开票主体模块错误码 (210300-210399)
const (
	// ErrCodeInvoiceProviderNotFound 开票主体不存在
	ErrCodeInvoiceProviderNotFound = 210301
	// ErrCodeInvoiceProviderConflict 开票主体外部引用重复
	ErrCodeInvoiceProviderConflict = 210302
	// ErrCodeInvoiceProviderNotEmpty 开票主体下仍有账户，不能删除
	ErrCodeInvoiceProviderNotEmpty = 210303
)

// 客户模块错误码 (210400-210499)
const (
	// ErrCodeCustomerNotFound 客户不存在
	ErrCodeCustomerNotFound = 210401
	// ErrCodeCustomerNotEmpty 客户下仍有账户，不能删除
	ErrCodeCustomerNotEmpty = 210402
)

// 归属分配模块错误码 (210500-210599)
const (
	// ErrCodeAssignTargetNotFound 分配目标不存在
	ErrCodeAssignTargetNotFound = 210501
	// ErrCodeAssignReasonInvalid 无效的分配原因
	ErrCodeAssignReasonInvalid = 210502
	// ErrCodeAssignFailed 分配写入失败
	ErrCodeAssignFailed = 210503
)

// 消耗对账模块错误码 (210600-210699)
const (
	// ErrCodeNoSnapshots 当天没有任何消耗快照
	ErrCodeNoSnapshots = 210601
	// ErrCodeReconcileFailed 对账写入失败
	ErrCodeReconcileFailed = 210602
	// ErrCodeReconcileLockFailed 获取对账锁失败
	ErrCodeReconcileLockFailed = 210603
	// ErrCodeSnapshotDateInvalid 无效的快照日期
	ErrCodeSnapshotDateInvalid = 210604
	// ErrCodeSnapshotAmountInvalid 无效的快照金额
	ErrCodeSnapshotAmountInvalid = 210605
)

// 分配规划模块错误码 (210700-210799)
const (
	// ErrCodeAllocationTargetInvalid 必须且只能指定一个开票主体（已有ID或新建参数）
	ErrCodeAllocationTargetInvalid = 210701
	// ErrCodeAllocationEmptyLinks 分配执行缺少账户
	ErrCodeAllocationEmptyLinks = 210702
	// ErrCodeAllocationExecuteFailed 分配执行失败
	ErrCodeAllocationExecuteFailed = 210703
)
