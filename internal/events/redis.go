package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

type RedisBus struct {
	rdb *redis.Client
}

func NewRedisBus(addr string) *RedisBus {
	return &RedisBus{rdb: redis.NewClient(&redis.Options{Addr: addr})}
}

func channelName(clientID uint) string {
	return fmt.Sprintf("pos:events:%d", clientID)
}

func (b *RedisBus) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, channelName(e.ClientID), data).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, clientID uint) (<-chan Event, error) {
	sub := b.rdb.Subscribe(ctx, channelName(clientID))
	// Abonelik onayını bekle, bağlantı hatası burada görünsün
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan Event, subscriberBuffer)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					zap.L().Warn("redis olayı çözülemedi", zap.Error(err))
					continue
				}
				select {
				case out <- e:
				default:
				}
			}
		}
	}()
	return out, nil
}

func (b *RedisBus) Close() error {
	return b.rdb.Close()
}
