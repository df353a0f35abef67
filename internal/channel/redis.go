package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shibarkan/cafe/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	redisOrderKey   = "cafe:current_orders:1"
	redisOrderTopic = "cafe:current_orders"
)

// RedisChannel stores the order under one key and announces every write on a pub/sub topic.
// An empty message announces a deletion.
type RedisChannel struct {
	client *redis.Client
	key    string
	topic  string
	log    *logrus.Entry
}

func NewRedisChannel(client *redis.Client, log *logrus.Entry) *RedisChannel {
	return &RedisChannel{
		client: client,
		key:    redisOrderKey,
		topic:  redisOrderTopic,
		log:    log,
	}
}

func (r *RedisChannel) Upsert(ctx context.Context, state *domain.SharedOrderState) error {
	data, err := domain.EncodeOrder(state)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key, data, 0)
	pipe.Publish(ctx, r.topic, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis upsert failed: %w", err)
	}
	return nil
}

func (r *RedisChannel) Fetch(ctx context.Context) (*domain.SharedOrderState, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return domain.DecodeOrder(data)
}

func (r *RedisChannel) Delete(ctx context.Context) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key)
	pipe.Publish(ctx, r.topic, "")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisChannel) Subscribe(ctx context.Context, onChange func(Change)) (*Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	ps := r.client.Subscribe(subCtx, r.topic)

	// wait for the subscription confirmation so no publish after return is missed
	if _, err := ps.Receive(subCtx); err != nil {
		ps.Close()
		cancel()
		return nil, fmt.Errorf("redis subscribe failed: %w", err)
	}

	sub := newSubscription(cancel)

	// a blocked read does not observe ctx cancellation, closing the pubsub unblocks it
	go func() {
		<-subCtx.Done()
		ps.Close()
	}()

	go func() {
		for {
			msg, err := ps.ReceiveMessage(subCtx)
			if err != nil {
				if subCtx.Err() != nil {
					sub.finish(nil)
				} else {
					sub.finish(fmt.Errorf("%w: %w", domain.ErrSubscriptionDropped, err))
				}
				return
			}

			if msg.Payload == "" {
				onChange(Change{Deleted: true})
				continue
			}
			state, err := domain.DecodeOrder([]byte(msg.Payload))
			if err != nil {
				r.log.WithError(err).Warn("discarding order message")
				continue
			}
			onChange(Change{State: state})
		}
	}()

	return sub, nil
}
