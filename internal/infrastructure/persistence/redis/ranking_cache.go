package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/nardi-attend/attendance-hub/internal/domain/member"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANKING CACHE
// ══════════════════════════════════════════════════════════════════════════════

// Key layout:
//   - ZSet "ranking:order" scores each member id by its rank
//   - Hash "ranking:members" maps member id -> standing JSON
//
// Ranks are scored instead of hours so equal totals keep the
// registration-order tie break computed upstream.
const (
	keyRankingOrder   = PrefixRanking + "order"
	keyRankingMembers = PrefixRanking + "members"
)

// ErrMemberNotRanked is returned when a member has no cached standing.
var ErrMemberNotRanked = errors.New("ranking_cache: member not ranked")

// RankingCache keeps the latest computed standings in Redis.
type RankingCache struct {
	cache *Cache
}

// NewRankingCache creates a new RankingCache.
func NewRankingCache(cache *Cache) *RankingCache {
	return &RankingCache{cache: cache}
}

type standingEntry struct {
	MemberID   string  `json:"member_id"`
	FullName   string  `json:"full_name"`
	TotalHours float64 `json:"total_hours"`
	Rank       int     `json:"rank"`
}

func toEntry(s member.Standing) standingEntry {
	return standingEntry{MemberID: s.MemberID, FullName: s.FullName, TotalHours: s.TotalHours, Rank: s.Rank}
}

func (e standingEntry) standing() member.Standing {
	return member.Standing{MemberID: e.MemberID, FullName: e.FullName, TotalHours: e.TotalHours, Rank: e.Rank}
}

// rankedMembers builds the sorted set members and the hash payload.
func rankedMembers(standings []member.Standing) ([]redis.Z, map[string]interface{}, error) {
	zMembers := make([]redis.Z, 0, len(standings))
	hashData := make(map[string]interface{}, len(standings))
	for _, s := range standings {
		data, err := json.Marshal(toEntry(s))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		zMembers = append(zMembers, redis.Z{Score: float64(s.Rank), Member: s.MemberID})
		hashData[s.MemberID] = data
	}
	return zMembers, hashData, nil
}

// StoreStandings replaces the cached standings in one MULTI/EXEC.
func (r *RankingCache) StoreStandings(ctx context.Context, standings []member.Standing) error {
	zMembers, hashData, err := rankedMembers(standings)
	if err != nil {
		return err
	}

	_, err = r.cache.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keyRankingOrder, keyRankingMembers)
		if len(zMembers) > 0 {
			pipe.ZAdd(ctx, keyRankingOrder, zMembers...)
			pipe.HSet(ctx, keyRankingMembers, hashData)
			pipe.Expire(ctx, keyRankingOrder, TTLRankingCache)
			pipe.Expire(ctx, keyRankingMembers, TTLRankingCache)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store standings: %w", err)
	}
	return nil
}

// Top returns the first limit standings. limit <= 0 returns all.
// ErrCacheMiss means nothing has been cached yet.
func (r *RankingCache) Top(ctx context.Context, limit int) ([]member.Standing, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	ids, err := r.cache.Client().ZRange(ctx, keyRankingOrder, 0, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrCacheMiss
	}

	data, err := r.cache.Client().HMGet(ctx, keyRankingMembers, ids...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]member.Standing, 0, len(data))
	for _, raw := range data {
		str, ok := raw.(string)
		if !ok {
			// Expired between the two reads.
			return nil, ErrCacheMiss
		}
		var e standingEntry
		if err := json.Unmarshal([]byte(str), &e); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		out = append(out, e.standing())
	}
	return out, nil
}

// Standing returns one member's cached standing.
func (r *RankingCache) Standing(ctx context.Context, memberID string) (*member.Standing, error) {
	data, err := r.cache.Client().HGet(ctx, keyRankingMembers, memberID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMemberNotRanked
		}
		return nil, err
	}

	var e standingEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	s := e.standing()
	return &s, nil
}
