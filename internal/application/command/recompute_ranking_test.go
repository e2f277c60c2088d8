package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nardi-attend/attendance-hub/internal/domain/attendance"
	"github.com/nardi-attend/attendance-hub/internal/domain/member"
	"github.com/nardi-attend/attendance-hub/internal/infrastructure/persistence/memory"
	"github.com/nardi-attend/attendance-hub/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCache struct {
	mu        sync.Mutex
	standings []member.Standing
}

func (c *recordingCache) StoreStandings(_ context.Context, s []member.Standing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.standings = append([]member.Standing(nil), s...)
	return nil
}

func seedHours(t *testing.T, store *memory.Store, memberID, date string, hours float64) {
	t.Helper()
	ctx := context.Background()

	rec, err := attendance.NewRecord(memberID+"-"+date, memberID, date, time.Date(2024, 1, 8, 6, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, store.Attendance().Create(ctx, rec))
	require.NoError(t, store.Attendance().SetHours(ctx, rec.ID, hours))
}

func TestRankingAggregator_Recompute(t *testing.T) {
	store := memory.NewStore()
	for i, id := range []string{"a", "b", "c", "d"} {
		m, err := member.NewMember(id, "Member "+id, "", "b-1", time.Date(2024, 1, 1, 9, i, 0, 0, time.UTC))
		require.NoError(t, err)
		store.AddMember(m)
	}

	seedHours(t, store, "a", "2024-01-08", 1)
	seedHours(t, store, "b", "2024-01-08", 2)
	seedHours(t, store, "b", "2024-01-10", 1.5)
	seedHours(t, store, "c", "2024-01-08", 1)
	// d has no hours

	cache := &recordingCache{}
	agg := NewRankingAggregator(store.Members(), store.Attendance(), cache, logger.Discard())

	require.NoError(t, agg.Recompute(context.Background()))

	want := map[string]struct {
		hours float64
		rank  int
	}{
		"b": {3.5, 1},
		"a": {1, 2}, // registered before c
		"c": {1, 3},
		"d": {0, 4},
	}
	for id, w := range want {
		m, err := store.Members().Get(context.Background(), id)
		require.NoError(t, err)
		assert.InDelta(t, w.hours, m.TotalHours, 1e-9, id)
		assert.Equal(t, w.rank, m.Rank, id)
	}

	require.Len(t, cache.standings, 4)
	assert.Equal(t, "b", cache.standings[0].MemberID)
	assert.Equal(t, "d", cache.standings[3].MemberID)
}

func TestRankingAggregator_ConcurrentCallsAreSafe(t *testing.T) {
	store := memory.NewStore()
	m, err := member.NewMember("a", "Member a", "", "b-1", time.Now())
	require.NoError(t, err)
	store.AddMember(m)
	seedHours(t, store, "a", "2024-01-08", 2)

	agg := NewRankingAggregator(store.Members(), store.Attendance(), nil, logger.Discard())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, agg.Recompute(context.Background()))
		}()
	}
	wg.Wait()

	got, err := store.Members().Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Rank)
	assert.InDelta(t, 2.0, got.TotalHours, 1e-9)
}

func TestRank_StableTies(t *testing.T) {
	members := []*member.Member{{ID: "x"}, {ID: "y"}, {ID: "z"}}

	standings := Rank(members, map[string]float64{"x": 1, "y": 1, "z": 1})

	assert.Equal(t, []string{"x", "y", "z"}, []string{standings[0].MemberID, standings[1].MemberID, standings[2].MemberID})
	assert.Equal(t, []int{1, 2, 3}, []int{standings[0].Rank, standings[1].Rank, standings[2].Rank})
}
