package data

import (
	"context"
	"encoding/json"

	"adtrack-service/internal/biz"
	"adtrack-service/internal/conf"

	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
)

// activityRepo 活动日志事件发布（RocketMQ）
type activityRepo struct {
	data  *Data
	topic string
	log   *log.Helper
}

// NewActivityRepo 创建活动日志 repo（返回 biz.ActivityRepo 接口）
func NewActivityRepo(data *Data, c *conf.Bootstrap, logger log.Logger) biz.ActivityRepo {
	topic := ""
	if c.Data != nil && c.Data.Rocketmq != nil {
		topic = c.Data.Rocketmq.ActivityTopic
	}
	return &activityRepo{
		data:  data,
		topic: topic,
		log:   log.NewHelper(logger),
	}
}

// PublishActivity 发布活动事件
// MQ 未启用时降级为本地日志，不算失败
func (r *activityRepo) PublishActivity(ctx context.Context, event *biz.ActivityEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if r.data.mq == nil || r.topic == "" {
		r.log.Infof("activity event (mq disabled): %s", string(body))
		return nil
	}

	msg := primitive.NewMessage(r.topic, body)
	if _, err := r.data.mq.SendSync(ctx, msg); err != nil {
		return err
	}
	return nil
}
