package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EmailQueue    = "email_queue"
	OptimizeQueue = "optimize_queue"
)

// Declare 声明一个持久化队列，生产者和消费者都需要声明，避免谁先启动的问题
func Declare(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,  // 队列名称
		true,  // 是否持久化
		false, // 是否自动删除，设置为 false 可以避免没有消费者的时候自动删除队列
		false, // 是否独占
		false, // 是否不等待
		nil,   // 额外参数
	)
}

// Publisher 把消息序列化为 JSON 后投递到指定队列
type Publisher struct {
	channel *amqp.Channel
	timeout time.Duration
}

func NewPublisher(ch *amqp.Channel, timeout time.Duration) *Publisher {
	return &Publisher{
		channel: ch,
		timeout: timeout,
	}
}

func (p *Publisher) PublishJSON(ctx context.Context, queue string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.channel.PublishWithContext(
		ctx,
		"",    // 默认交换机
		queue, // 路由键即队列名称
		true,  // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
