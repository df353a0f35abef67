package channel

import (
	"context"
	"testing"
	"time"

	"github.com/Shibarkan/cafe/internal/domain"
	"github.com/Shibarkan/cafe/pkg/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisChannel, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr:       mr.Addr(),
		MaxRetries: -1,
	})

	ch := NewRedisChannel(client, logrus.NewEntry(logger.Discard()))
	cleanup := func() {
		client.Close()
	}
	return ch, mr, cleanup
}

func TestRedisChannel_FetchNotFound(t *testing.T) {
	ch, _, cleanup := setupTestRedis(t)
	defer cleanup()

	got, err := ch.Fetch(context.Background())

	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.Nil(t, got)
}

func TestRedisChannel_UpsertFetch(t *testing.T) {
	ch, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	order := testOrder(2)
	require.NoError(t, ch.Upsert(ctx, order))
	require.NoError(t, ch.Upsert(ctx, order))

	got, err := ch.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, order.Lines, got.Lines)
	assert.True(t, order.UpdatedAt.Equal(got.UpdatedAt))
	assert.Equal(t, []string{redisOrderKey}, mr.Keys())
}

func TestRedisChannel_Delete(t *testing.T) {
	ch, _, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, ch.Upsert(ctx, testOrder(1)))
	require.NoError(t, ch.Delete(ctx))

	_, err := ch.Fetch(ctx)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestRedisChannel_SubscribeDeliversChanges(t *testing.T) {
	ch, _, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	changes := make(chan Change, 4)
	sub, err := ch.Subscribe(ctx, func(c Change) { changes <- c })
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, ch.Upsert(ctx, testOrder(3)))
	require.NoError(t, ch.Delete(ctx))

	first := receiveChange(t, changes)
	require.NotNil(t, first.State)
	assert.Equal(t, 3, first.State.Lines[0].Quantity)

	second := receiveChange(t, changes)
	assert.True(t, second.Deleted)
}

func TestRedisChannel_CloseIsNotADrop(t *testing.T) {
	ch, _, cleanup := setupTestRedis(t)
	defer cleanup()

	sub, err := ch.Subscribe(context.Background(), func(Change) {})
	require.NoError(t, err)

	sub.Close()

	<-sub.Done()
	assert.NoError(t, sub.Err())
}

func TestRedisChannel_ServerLossDropsSubscription(t *testing.T) {
	ch, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	sub, err := ch.Subscribe(context.Background(), func(Change) {})
	require.NoError(t, err)
	defer sub.Close()

	mr.Close()

	select {
	case <-sub.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("subscription survived server loss")
	}
	assert.ErrorIs(t, sub.Err(), domain.ErrSubscriptionDropped)
}

func receiveChange(t *testing.T, changes <-chan Change) Change {
	t.Helper()
	select {
	case c := <-changes:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
		return Change{}
	}
}
