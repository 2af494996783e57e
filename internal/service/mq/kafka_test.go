package mq

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestKafkaMessageID(t *testing.T) {
	m := kafka.Message{Topic: TopicSettlement, Partition: 2, Offset: 42}
	assert.Equal(t, "custody_events_settlement/2/42", kafkaMessageID(m))

	// 同一个 Key 的两条消息必须有不同的 ID
	a := kafka.Message{Topic: TopicSettlement, Partition: 0, Offset: 7, Key: []byte("alice")}
	b := kafka.Message{Topic: TopicSettlement, Partition: 0, Offset: 8, Key: []byte("alice")}
	assert.NotEqual(t, kafkaMessageID(a), kafkaMessageID(b))
}
