// Package messaging 提供模拟完成事件的发布实现：Outbox 落库与 Kafka 直发。
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/logging"
	"gorm.io/gorm"

	"github.com/wyfcoding/portfoliorisk/internal/simulation/domain"
)

// Outbox 消息状态。
const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
)

// OutboxMessage 事务性发件箱记录
type OutboxMessage struct {
	ID        string    `gorm:"type:varchar(64);primary_key"`
	EventType string    `gorm:"type:varchar(100);index"`
	Payload   string    `gorm:"type:text"`
	Status    string    `gorm:"type:varchar(20);index;default:'pending'"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// TableName 指定表名
func (OutboxMessage) TableName() string {
	return "simulation_outbox_messages"
}

// OutboxEventPublisher 实现 EventPublisher 接口，使用 Outbox 模式：
// 事件先落库，由后台中继批量转发到消息队列，保证发布不丢。
type OutboxEventPublisher struct {
	db *gorm.DB
}

// NewOutboxEventPublisher 创建新的 OutboxEventPublisher 实例
func NewOutboxEventPublisher(db *gorm.DB) *OutboxEventPublisher {
	return &OutboxEventPublisher{db: db}
}

// PublishSimulationCompleted 发布模拟完成事件
func (p *OutboxEventPublisher) PublishSimulationCompleted(event domain.SimulationCompletedEvent) error {
	return p.publishEvent("SimulationCompletedEvent", event)
}

// publishEvent 通用事件发布方法
func (p *OutboxEventPublisher) publishEvent(eventType string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	message := OutboxMessage{
		ID:        fmt.Sprintf("%d", idgen.GenID()),
		EventType: eventType,
		Payload:   string(payload),
		Status:    outboxStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	return p.db.Create(&message).Error
}

// forwarder 把待发送的 Outbox 消息转发到下游（如 Kafka）。
type forwarder interface {
	Forward(ctx context.Context, key []byte, payload []byte) error
}

// OutboxRelay 后台中继：周期性扫描待发送消息并转发。
type OutboxRelay struct {
	db        *gorm.DB
	forward   forwarder
	batchSize int
	interval  time.Duration
}

// NewOutboxRelay 创建 Outbox 中继。
func NewOutboxRelay(db *gorm.DB, forward forwarder, batchSize int, interval time.Duration) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &OutboxRelay{db: db, forward: forward, batchSize: batchSize, interval: interval}
}

// Run 阻塞运行中继循环，直到 ctx 取消。
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.ProcessPending(ctx); err != nil {
				logging.Error(ctx, "Failed to process outbox messages", "error", err)
			}
		}
	}
}

// ProcessPending 处理一批待发送消息。单条转发失败只记日志，下轮重试。
func (r *OutboxRelay) ProcessPending(ctx context.Context) error {
	var messages []OutboxMessage
	if err := r.db.WithContext(ctx).Where("status = ?", outboxStatusPending).
		Order("created_at ASC").Limit(r.batchSize).Find(&messages).Error; err != nil {
		return err
	}

	for _, message := range messages {
		if err := r.forward.Forward(ctx, []byte(message.EventType), []byte(message.Payload)); err != nil {
			logging.Error(ctx, "Failed to forward outbox message", "id", message.ID, "error", err)
			continue
		}
		if err := r.db.WithContext(ctx).Model(&OutboxMessage{}).Where("id = ?", message.ID).
			Update("status", outboxStatusSent).Error; err != nil {
			return err
		}
	}
	return nil
}

// CleanupProcessedMessages 清理已发送的历史消息
func (r *OutboxRelay) CleanupProcessedMessages(ctx context.Context, before time.Time) error {
	return r.db.WithContext(ctx).Where("status = ? AND updated_at < ?", outboxStatusSent, before).
		Delete(&OutboxMessage{}).Error
}
