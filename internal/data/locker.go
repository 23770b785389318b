package data

import (
	"context"
	"time"

	"adtrack-service/internal/biz"
	"adtrack-service/internal/conf"
	"adtrack-service/internal/constants"
	"adtrack-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
)

// reconcileLocker 基于 redsync 的对账互斥锁
// 同一账户同一天的对账在多实例间互斥，防止并发删写产生交错的派生行
type reconcileLocker struct {
	sync    *redsync.Redsync
	ttl     time.Duration
	log     *log.Helper
	metrics *metrics.TrackMetrics
}

// NewReconcileLocker 创建对账锁（返回 biz.ReconcileLocker 接口）
func NewReconcileLocker(rs *redsync.Redsync, c *conf.Bootstrap, logger log.Logger) biz.ReconcileLocker {
	ttl := 5 * time.Second
	if c.Tracking != nil {
		ttl = conf.ParseDuration(c.Tracking.ReconcileLockTTL, ttl)
	}
	return &reconcileLocker{
		sync:    rs,
		ttl:     ttl,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// Lock 获取锁，返回释放函数
func (l *reconcileLocker) Lock(ctx context.Context, key string) (func(), error) {
	start := time.Now()
	mutex := l.sync.NewMutex(key, redsync.WithExpiry(l.ttl))
	err := mutex.LockContext(ctx)
	if l.metrics != nil {
		result := constants.ResultSuccess
		if err != nil {
			result = constants.ResultFailed
		}
		l.metrics.LockAcquireTotal.WithLabelValues(result).Inc()
		l.metrics.LockAcquireDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}
	return func() {
		if ok, err := mutex.Unlock(); !ok || err != nil {
			l.log.Warnf("failed to unlock: key=%s, error=%v", key, err)
		}
	}, nil
}
