package events

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaBus olayları işletme id'si anahtarıyla tek topic'e yazar; böylece bir
// işletmenin olayları aynı partition'da sıralı kalır.
type KafkaBus struct {
	brokers []string
	topic   string
	writer  *kafka.Writer
}

func NewKafkaBus(brokers []string, topic string) *KafkaBus {
	return &KafkaBus{
		brokers: brokers,
		topic:   topic,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
	}
}

func (b *KafkaBus) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(e.ClientID), 10)),
		Value: data,
	})
}

// Subscribe her abone için ayrı bir consumer group açar; tek üyeli grup topic'in
// tüm partition'larını alır ve okumaya son offset'ten başlar. Mesajlar anahtara
// göre süzülür.
func (b *KafkaBus) Subscribe(ctx context.Context, clientID uint) (<-chan Event, error) {
	r := kafka.NewReader(b.readerConfig())
	key := strconv.FormatUint(uint64(clientID), 10)

	out := make(chan Event, subscriberBuffer)
	go func() {
		defer close(out)
		defer r.Close()

		for {
			msg, err := r.ReadMessage(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					zap.L().Warn("kafka okuma hatası", zap.Error(err))
				}
				return
			}
			if string(msg.Key) != key {
				continue
			}
			var e Event
			if err := json.Unmarshal(msg.Value, &e); err != nil {
				zap.L().Warn("kafka olayı çözülemedi", zap.Error(err))
				continue
			}
			select {
			case out <- e:
			default:
			}
		}
	}()
	return out, nil
}

func (b *KafkaBus) readerConfig() kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:        b.brokers,
		Topic:          b.topic,
		GroupID:        "pos-live-" + uuid.NewString(),
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
		MinBytes:       1,
		MaxBytes:       1 << 20,
	}
}

func (b *KafkaBus) Close() error {
	return b.writer.Close()
}
