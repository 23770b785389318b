package biz

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"
)

// ActivityEvent 活动日志事件
// 核心操作成功后通知外部审计方的结构化事件
type ActivityEvent struct {
	ActorID     string `json:"actor_id"`
	Action      string `json:"action"`
	EntityType  string `json:"entity_type"`
	EntityID    string `json:"entity_id"`
	OldValue    string `json:"old_value,omitempty"`
	NewValue    string `json:"new_value,omitempty"`
	Description string `json:"description"`
}

// ActivityRepo 活动日志数据层接口（定义在 biz 层）
type ActivityRepo interface {
	PublishActivity(ctx context.Context, event *ActivityEvent) error
}

// ActivityRecorder 活动日志记录器
// 发送是尽力而为的：发送失败只记日志，绝不回滚核心变更
type ActivityRecorder struct {
	repo ActivityRepo
	log  *log.Helper
}

// NewActivityRecorder 创建活动日志记录器
func NewActivityRecorder(repo ActivityRepo, logger log.Logger) *ActivityRecorder {
	return &ActivityRecorder{
		repo: repo,
		log:  log.NewHelper(logger),
	}
}

// Record 记录活动事件（尽力而为）
func (r *ActivityRecorder) Record(ctx context.Context, event *ActivityEvent) {
	if r.repo == nil {
		return
	}
	if err := r.repo.PublishActivity(ctx, event); err != nil {
		r.log.Warnf("publish activity event failed: action=%s, entity=%s/%s, error=%v",
			event.Action, event.EntityType, event.EntityID, err)
	}
}
