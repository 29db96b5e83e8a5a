package memory

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/hotelbuddy-intent/internal/intents"
	"github.com/avvvet/hotelbuddy-intent/internal/models"
)

// setupMiniRedis creates a test Redis server using miniredis.
func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewRedisStoreWithClient(client, 30*time.Minute)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr, store := setupMiniRedis(t)
	ctx := context.Background()

	got, err := store.Load(ctx, "s1", models.IntentBookRoom)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Save(ctx, &Pending{
		SessionID: "s1",
		Intent:    models.IntentBookRoom,
		Params:    models.ParameterSet{"hotelId": 5},
		Missing:   []string{"roomId"},
	}))
	assert.True(t, mr.Exists("pending:s1:BookRoom"))
	assert.Equal(t, 30*time.Minute, mr.TTL("pending:s1:BookRoom"))

	got, err = store.Load(ctx, "s1", models.IntentBookRoom)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.IntentBookRoom, got.Intent)
	assert.Equal(t, float64(5), got.Params["hotelId"])
	assert.Equal(t, []string{"roomId"}, got.Missing)

	other, err := store.Load(ctx, "s1", models.IntentLogin)
	require.NoError(t, err)
	assert.Nil(t, other)

	require.NoError(t, store.Clear(ctx, "s1", models.IntentLogin, models.IntentBookRoom))
	assert.False(t, mr.Exists("pending:s1:BookRoom"))
	require.NoError(t, store.Clear(ctx, "s1"))

	require.NoError(t, store.Ping(ctx))
}

func TestRedisStoreExpires(t *testing.T) {
	mr, store := setupMiniRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Pending{SessionID: "s2", Intent: models.IntentLogin}))
	mr.FastForward(31 * time.Minute)

	got, err := store.Load(ctx, "s2", models.IntentLogin)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStoreCorruptPayload(t *testing.T) {
	mr, store := setupMiniRedis(t)
	require.NoError(t, mr.Set("pending:bad:Login", "{not json"))

	_, err := store.Load(context.Background(), "bad", models.IntentLogin)
	assert.Error(t, err)
}

func TestLocalStoreExpires(t *testing.T) {
	store := NewLocalStore(time.Minute)
	now := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Pending{SessionID: "a", Intent: models.IntentLogin, UpdatedAt: now}))
	got, err := store.Load(ctx, "a", models.IntentLogin)
	require.NoError(t, err)
	require.NotNil(t, got)

	now = now.Add(2 * time.Minute)
	got, err = store.Load(ctx, "a", models.IntentLogin)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLocalStoreSweepsExpiredOnSave(t *testing.T) {
	store := NewLocalStore(time.Minute)
	now := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(ctx, &Pending{SessionID: id, Intent: models.IntentLogin, UpdatedAt: now}))
	}
	assert.Equal(t, 3, store.Len())

	// sessions that went away without finishing are never loaded again
	now = now.Add(5 * time.Minute)
	require.NoError(t, store.Save(ctx, &Pending{SessionID: "d", Intent: models.IntentLogin, UpdatedAt: now}))
	assert.Equal(t, 1, store.Len())
}

func TestManagerMergeFillsAbsentValues(t *testing.T) {
	_, store := setupMiniRedis(t)
	m := NewManager(store, intents.NewRegistry(), zerolog.Nop())
	ctx := context.Background()

	m.Remember(ctx, "s", models.IntentBookRoom,
		models.ParameterSet{"hotelId": float64(5), "guests": float64(2)}, []string{"roomId"})

	merged := m.Merge(ctx, "s", models.IntentBookRoom,
		models.ParameterSet{"roomId": float64(12), "guests": float64(3), "hotelId": float64(0)})
	assert.Equal(t, models.ParameterSet{
		"hotelId": float64(5), // zero placeholder is replaced
		"roomId":  float64(12),
		"guests":  float64(3), // new value wins
	}, merged)

	// nothing is carried into another intent
	other := m.Merge(ctx, "s", models.IntentSearchHotel, models.ParameterSet{"destination": "Izmir"})
	assert.Equal(t, models.ParameterSet{"destination": "Izmir"}, other)
}

func TestManagerKeepsOneSlotPerIntent(t *testing.T) {
	m := NewManager(NewLocalStore(time.Hour), intents.NewRegistry(), zerolog.Nop())
	ctx := context.Background()

	m.Remember(ctx, "s", models.IntentBookRoom, models.ParameterSet{"hotelId": float64(5)}, []string{"roomId"})
	m.Remember(ctx, "s", models.IntentLogin, models.ParameterSet{"username": "deniz"}, []string{"password"})
	m.Forget(ctx, "s", models.IntentLogin)

	merged := m.Merge(ctx, "s", models.IntentBookRoom, models.ParameterSet{})
	assert.Equal(t, float64(5), merged["hotelId"])
	assert.Empty(t, m.Merge(ctx, "s", models.IntentLogin, models.ParameterSet{}))
}

func TestManagerRetainAbandonsUnnamedIntents(t *testing.T) {
	_, store := setupMiniRedis(t)
	m := NewManager(store, intents.NewRegistry(), zerolog.Nop())
	ctx := context.Background()

	m.Remember(ctx, "s", models.IntentBookRoom, models.ParameterSet{"hotelId": float64(5)}, []string{"roomId"})
	m.Remember(ctx, "s", models.IntentAddComment, models.ParameterSet{"hotelId": float64(5)}, []string{"text"})

	m.Retain(ctx, "s", []models.Intent{models.IntentBookRoom, models.IntentSearchHotel})

	assert.Equal(t, float64(5), m.Merge(ctx, "s", models.IntentBookRoom, models.ParameterSet{})["hotelId"])
	assert.Empty(t, m.Merge(ctx, "s", models.IntentAddComment, models.ParameterSet{}))
}

func TestManagerEndSession(t *testing.T) {
	store := NewLocalStore(time.Hour)
	m := NewManager(store, intents.NewRegistry(), zerolog.Nop())
	ctx := context.Background()

	m.Remember(ctx, "s", models.IntentLogin, models.ParameterSet{"username": "deniz"}, []string{"password"})
	m.Remember(ctx, "s", models.IntentBookRoom, models.ParameterSet{"hotelId": float64(1)}, []string{"roomId"})
	m.Remember(ctx, "other", models.IntentLogin, models.ParameterSet{"username": "ece"}, []string{"password"})

	m.EndSession(ctx, "s")
	assert.Equal(t, 1, store.Len())
	assert.NoError(t, m.Ping(ctx), "local store has nothing to ping")
	assert.NoError(t, m.Close())
}

func TestManagerPingReportsRedisFailure(t *testing.T) {
	mr, store := setupMiniRedis(t)
	m := NewManager(store, intents.NewRegistry(), zerolog.Nop())

	require.NoError(t, m.Ping(context.Background()))
	mr.Close()
	assert.Error(t, m.Ping(context.Background()))
}
