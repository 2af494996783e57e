package mq

import "context"

// TopicSettlement 对账引擎入账成功后发布的事件主题
// 消费侧用它触发按需确认清扫
const TopicSettlement = "custody_events_settlement"

// Message 代表一条通用的业务消息
type Message struct {
	ID      string // 消息ID (Redis Stream ID / Kafka topic/partition/offset)
	Topic   string
	Key     string // 分区键 (这里用 username, 保证同一账户的事件有序)
	Payload []byte // 消息体 (JSON)
}

// SettlementEvent 入账事件的 Payload
type SettlementEvent struct {
	Username string `json:"username"`
	TxID     string `json:"txid"`
	Amount   string `json:"amount"`
	Network  string `json:"network"`
}

// Producer 生产者接口
type Producer interface {
	// Publish 发送消息, key 用于分区排序, 传空字符串则随机分区
	Publish(ctx context.Context, topic string, key string, payload []byte) error
	Close() error
}

// Consumer 消费者接口
type Consumer interface {
	// Subscribe 订阅主题, handler 返回 error 表示处理失败 (是否重投由实现决定)
	// handler 收到的 ctx 就是 Subscribe 的 ctx, 消费停止时在途处理一并取消
	Subscribe(ctx context.Context, topic string, handler func(ctx context.Context, msg *Message) error) error
	Close() error
}
