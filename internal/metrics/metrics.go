package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TrackMetrics 投放追踪服务指标
type TrackMetrics struct {
	// 对账相关指标
	ReconcileTotal         *prometheus.CounterVec   // 对账总数（按结果）
	ReconcileDuration      prometheus.Histogram     // 对账耗时
	ReconcileRecordsTotal  prometheus.Counter       // 对账产出的消耗记录总数
	SnapshotSkippedTotal   prometheus.Counter       // 非单调快照跳过总数
	SnapshotImportedTotal  *prometheus.CounterVec   // 快照导入总数（按来源）

	// 归属分配相关指标
	AssignTotal   *prometheus.CounterVec // 分配操作总数（按目标类型、原因）
	UnassignTotal *prometheus.CounterVec // 解绑操作总数（按目标类型）

	// 计数同步相关指标
	CountSyncTotal    *prometheus.CounterVec   // 计数同步总数（按实体类型、结果）
	CountSyncDuration *prometheus.HistogramVec // 计数同步耗时（按实体类型）

	// 分配规划相关指标
	SuggestTotal          prometheus.Counter     // 规划请求总数
	SuggestUnfulfilled    prometheus.Counter     // 未满足的需求总数
	AllocationExecuted    *prometheus.CounterVec // 分配执行总数（按结果）
	AllocationAccounts    prometheus.Counter     // 分配执行绑定的账户总数

	// 分布式锁相关指标
	LockAcquireTotal    *prometheus.CounterVec // 锁获取总数（按结果）
	LockAcquireDuration prometheus.Histogram   // 锁获取耗时
}

// NewTrackMetrics 创建投放追踪服务指标
func NewTrackMetrics() *TrackMetrics {
	return &TrackMetrics{
		// 对账指标
		ReconcileTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adtrack_reconcile_total",
				Help: "Total number of snapshot reconciliations",
			},
			[]string{"result"}, // result: success/failed/skipped
		),
		ReconcileDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "adtrack_reconcile_duration_seconds",
				Help:    "Duration of snapshot reconciliation",
				Buckets: prometheus.DefBuckets,
			},
		),
		ReconcileRecordsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "adtrack_reconcile_records_total",
				Help: "Total number of spend records derived",
			},
		),
		SnapshotSkippedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "adtrack_snapshot_skipped_total",
				Help: "Total number of non-monotonic snapshots skipped",
			},
		),
		SnapshotImportedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adtrack_snapshot_imported_total",
				Help: "Total number of spend snapshots imported",
			},
			[]string{"source"}, // source: http/mq
		),

		// 归属分配指标
		AssignTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adtrack_assign_total",
				Help: "Total number of assignment operations",
			},
			[]string{"target_type", "reason"},
		),
		UnassignTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adtrack_unassign_total",
				Help: "Total number of unassignment operations",
			},
			[]string{"target_type"},
		),

		// 计数同步指标
		CountSyncTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adtrack_count_sync_total",
				Help: "Total number of counter synchronizations",
			},
			[]string{"entity_type", "result"}, // result: success/failed/skipped
		),
		CountSyncDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adtrack_count_sync_duration_seconds",
				Help:    "Duration of counter synchronization",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"entity_type"},
		),

		// 分配规划指标
		SuggestTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "adtrack_suggest_total",
				Help: "Total number of allocation suggestions",
			},
		),
		SuggestUnfulfilled: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "adtrack_suggest_unfulfilled_total",
				Help: "Total number of unfulfilled requirements",
			},
		),
		AllocationExecuted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adtrack_allocation_executed_total",
				Help: "Total number of allocation executions",
			},
			[]string{"result"}, // result: success/failed
		),
		AllocationAccounts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "adtrack_allocation_accounts_total",
				Help: "Total number of accounts linked by allocation executions",
			},
		),

		// 分布式锁指标
		LockAcquireTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adtrack_lock_acquire_total",
				Help: "Total number of lock acquisition attempts",
			},
			[]string{"result"}, // result: success/failed
		),
		LockAcquireDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "adtrack_lock_acquire_duration_seconds",
				Help:    "Duration of lock acquisition",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
		),
	}
}

// 全局指标实例
var defaultMetrics *TrackMetrics

// InitMetrics 初始化全局指标
func InitMetrics() {
	defaultMetrics = NewTrackMetrics()
}

// GetMetrics 获取全局指标实例
func GetMetrics() *TrackMetrics {
	if defaultMetrics == nil {
		InitMetrics()
	}
	return defaultMetrics
}
