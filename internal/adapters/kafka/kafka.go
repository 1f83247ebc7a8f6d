package kafka

import (
	"encoding/json"
	"log/slog"

	"github.com/IBM/sarama"
)

// Producer publishes ingested analytics events to the firehose topic.
// Publishing is best effort: a broker outage must never fail the ingest
// request or the in-memory aggregation.
type Producer struct {
	producer sarama.AsyncProducer
	topic    string
}

func NewProducer(brokers []string, topic string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Retry.Max = 5
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Producer.Return.Successes = false
	config.Producer.Return.Errors = true
	config.Version = sarama.V2_0_0_0
	config.ClientID = "softadastra-chat"

	producer, err := sarama.NewAsyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	p := &Producer{producer: producer, topic: topic}
	go p.drainErrors()
	return p, nil
}

func (p *Producer) drainErrors() {
	for err := range p.producer.Errors() {
		slog.Warn("Kafka publish failed", "topic", p.topic, "error", err.Err)
	}
}

// Publish enqueues one event keyed by visitor id so a visitor's stream
// lands on a single partition.
func (p *Producer) Publish(key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(payload),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}
	p.producer.Input() <- msg
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
