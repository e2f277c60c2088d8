package redis

import (
	"testing"
	"time"

	"github.com/nardi-attend/attendance-hub/internal/domain/member"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Options(t *testing.T) {
	t.Run("host and port", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Host = "cache.internal"
		cfg.DB = 2

		opts, err := cfg.Options()
		require.NoError(t, err)
		assert.Equal(t, "cache.internal:6379", opts.Addr)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, 10, opts.PoolSize)
	})

	t.Run("url wins", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.URL = "redis://:secret@redis.example.com:6380/1"

		opts, err := cfg.Options()
		require.NoError(t, err)
		assert.Equal(t, "redis.example.com:6380", opts.Addr)
		assert.Equal(t, "secret", opts.Password)
		assert.Equal(t, 1, opts.DB)
		assert.Equal(t, 5*time.Second, opts.DialTimeout)
	})

	t.Run("bad url", func(t *testing.T) {
		cfg := Config{URL: "http://nope"}
		_, err := cfg.Options()
		assert.Error(t, err)
	})
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "lock:sweep:absence:2024-01-08", LockKey("sweep:absence:2024-01-08"))
	assert.Equal(t, "pubsub:events", PubSubChannel("events"))
}

func TestStandingEntry_RoundTrip(t *testing.T) {
	s := member.Standing{MemberID: "m-1", FullName: "Ada", TotalHours: 3.5, Rank: 1}
	assert.Equal(t, s, toEntry(s).standing())
}

func TestRankedMembers(t *testing.T) {
	standings := []member.Standing{
		{MemberID: "m-2", FullName: "Grace", TotalHours: 4, Rank: 1},
		{MemberID: "m-1", FullName: "Ada", TotalHours: 4, Rank: 2},
	}

	zMembers, hashData, err := rankedMembers(standings)
	require.NoError(t, err)

	require.Len(t, zMembers, 2)
	assert.Equal(t, "m-2", zMembers[0].Member)
	assert.Equal(t, 1.0, zMembers[0].Score)
	assert.Equal(t, 2.0, zMembers[1].Score, "scored by rank, not by equal hours")
	assert.Len(t, hashData, 2)
	assert.JSONEq(t, `{"member_id":"m-1","full_name":"Ada","total_hours":4,"rank":2}`, string(hashData["m-1"].([]byte)))
}
