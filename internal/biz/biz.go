package biz

import "github.com/google/wire"

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewActivityRecorder,
	NewCountSyncUseCase,
	NewAccountUseCase,
	NewBatchUseCase,
	NewInvoiceProviderUseCase,
	NewCustomerUseCase,
	NewAssignmentLedgerUseCase,
	NewSpendReconcileUseCase,
	NewAllocationUseCase,
)
