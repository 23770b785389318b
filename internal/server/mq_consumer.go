package server

import (
	"context"
	"encoding/json"
	"time"

	"adtrack-service/internal/biz"
	"adtrack-service/internal/conf"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"
)

// SnapshotEvent 外部投放平台推送的消耗快照事件
type SnapshotEvent struct {
	AccountID        string `json:"account_id"`
	SpendDate        string `json:"spend_date"`
	CumulativeAmount string `json:"cumulative_amount"`
	ObservedAt       string `json:"observed_at"` // RFC3339
	Source           string `json:"source"`
}

// MQConsumerServer consumes spend snapshot events from RocketMQ
type MQConsumerServer struct {
	c         rocketmq.PushConsumer
	reconcile *biz.SpendReconcileUseCase
	conf      *conf.Data
	log       *log.Helper
	enabled   bool
}

// NewMQConsumerServer creates a RocketMQ consumer server
func NewMQConsumerServer(c *conf.Bootstrap, reconcile *biz.SpendReconcileUseCase, logger log.Logger) *MQConsumerServer {
	if c.Data == nil || c.Data.Rocketmq == nil || !c.Data.Rocketmq.Enabled {
		return &MQConsumerServer{enabled: false}
	}

	r, err := rocketmq.NewPushConsumer(
		consumer.WithNsResolver(primitive.NewPassthroughResolver(c.Data.Rocketmq.NameServers)),
		consumer.WithGroupName(c.Data.Rocketmq.GroupName),
		consumer.WithRetry(int(c.Data.Rocketmq.RetryTimes)),
	)
	if err != nil {
		log.NewHelper(logger).Errorf("init consumer error: %v", err)
		return &MQConsumerServer{enabled: false}
	}

	return &MQConsumerServer{
		c:         r,
		reconcile: reconcile,
		conf:      c.Data,
		log:       log.NewHelper(logger),
		enabled:   true,
	}
}

// Start starts the consumer
func (s *MQConsumerServer) Start(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		s.log.Infof("MQConsumerServer is disabled, skipping startup")
		return nil
	}

	s.log.Infof("Starting MQConsumerServer, topic: %s", s.conf.Rocketmq.SnapshotTopic)

	err := s.c.Subscribe(s.conf.Rocketmq.SnapshotTopic, consumer.MessageSelector{}, s.handler)
	if err != nil {
		s.log.Errorf("Failed to subscribe to topic %s: %v", s.conf.Rocketmq.SnapshotTopic, err)
		// 不返回错误，避免导致整个应用启动失败
		// 在开发环境中，RocketMQ 可能不可用
		return nil
	}

	if err := s.c.Start(); err != nil {
		s.log.Errorf("Failed to start RocketMQ consumer: %v", err)
		return nil
	}
	return nil
}

// Stop stops the consumer
func (s *MQConsumerServer) Stop(ctx context.Context) error {
	if !s.enabled || s.c == nil {
		return nil
	}
	s.log.Info("Stopping MQConsumerServer")
	return s.c.Shutdown()
}

func (s *MQConsumerServer) handler(ctx context.Context, msgs ...*primitive.MessageExt) (consumer.ConsumeResult, error) {
	for _, msg := range msgs {
		var event SnapshotEvent
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			// 坏消息重试也无法修复，直接丢弃
			s.log.Errorf("Unmarshal snapshot event failed: %v, body: %s", err, string(msg.Body))
			continue
		}

		snapshot, err := toBizSnapshot(&event)
		if err != nil {
			s.log.Errorf("Invalid snapshot event: %v, body: %s", err, string(msg.Body))
			continue
		}

		source := event.Source
		if source == "" {
			source = "mq"
		}
		if _, err := s.reconcile.ImportSnapshot(ctx, snapshot, source); err != nil {
			s.log.Errorf("ImportSnapshot from mq failed: account_id=%s, date=%s, error=%v",
				event.AccountID, event.SpendDate, err)
			return consumer.ConsumeRetryLater, nil
		}
	}
	return consumer.ConsumeSuccess, nil
}

func toBizSnapshot(event *SnapshotEvent) (*biz.SpendSnapshot, error) {
	amount, err := decimal.NewFromString(event.CumulativeAmount)
	if err != nil {
		return nil, err
	}

	var observedAt time.Time
	if event.ObservedAt != "" {
		observedAt, err = time.Parse(time.RFC3339, event.ObservedAt)
		if err != nil {
			return nil, err
		}
	}

	return &biz.SpendSnapshot{
		AccountID:        event.AccountID,
		SpendDate:        event.SpendDate,
		CumulativeAmount: amount,
		ObservedAt:       observedAt,
	}, nil
}
