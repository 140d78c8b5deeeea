package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wyfcoding/pkg/messagequeue/kafka"

	"github.com/wyfcoding/portfoliorisk/internal/simulation/domain"
)

const publishTimeout = 5 * time.Second

// KafkaEventPublisher 实现 EventPublisher 接口，把模拟完成事件直发到 Kafka。
type KafkaEventPublisher struct {
	producer *kafka.Producer
}

// NewKafkaEventPublisher 创建 Kafka 事件发布器
func NewKafkaEventPublisher(producer *kafka.Producer) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer}
}

// PublishSimulationCompleted 发布模拟完成事件，以运行 ID 作为分区键
func (p *KafkaEventPublisher) PublishSimulationCompleted(event domain.SimulationCompletedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return p.producer.Publish(ctx, []byte(event.RunID), data)
}

// Forward 实现 Outbox 中继的转发端，复用同一个生产者
func (p *KafkaEventPublisher) Forward(ctx context.Context, key, payload []byte) error {
	return p.producer.Publish(ctx, key, payload)
}
