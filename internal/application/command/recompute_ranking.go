package command

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nardi-attend/attendance-hub/internal/domain/attendance"
	"github.com/nardi-attend/attendance-hub/internal/domain/member"
	"github.com/nardi-attend/attendance-hub/pkg/logger"
)

// RankingCache stores the latest standings for fast reads.
type RankingCache interface {
	StoreStandings(ctx context.Context, standings []member.Standing) error
}

// RankingAggregator recomputes cumulative hours and ranks from the full
// attendance history. Concurrent calls share one in-flight computation.
type RankingAggregator struct {
	members member.Repository
	records attendance.Repository
	cache   RankingCache
	logger  *slog.Logger
	group   singleflight.Group
}

// NewRankingAggregator creates a new RankingAggregator. cache may be nil.
func NewRankingAggregator(members member.Repository, records attendance.Repository, cache RankingCache, log *slog.Logger) *RankingAggregator {
	if log == nil {
		log = slog.Default()
	}
	return &RankingAggregator{
		members: members,
		records: records,
		cache:   cache,
		logger:  log.With(logger.Component("ranking")),
	}
}

// Recompute sums hours per member, stores totals, then ranks members by
// total descending. Ties keep registration order.
func (a *RankingAggregator) Recompute(ctx context.Context) error {
	_, err, joined := a.group.Do("recompute", func() (interface{}, error) {
		return nil, a.recompute(ctx)
	})
	if joined {
		a.logger.DebugContext(ctx, "joined in-flight ranking recompute")
	}
	return err
}

// Standings computes the ranking without persisting it.
func (a *RankingAggregator) Standings(ctx context.Context) ([]member.Standing, error) {
	members, err := a.members.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("ranking: list members: %w", err)
	}
	totals, err := a.records.SumHoursByMember(ctx)
	if err != nil {
		return nil, fmt.Errorf("ranking: sum hours: %w", err)
	}
	return Rank(members, totals), nil
}

func (a *RankingAggregator) recompute(ctx context.Context) error {
	start := time.Now()

	members, err := a.members.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("ranking: list members: %w", err)
	}
	totals, err := a.records.SumHoursByMember(ctx)
	if err != nil {
		return fmt.Errorf("ranking: sum hours: %w", err)
	}

	current := make(map[string]*member.Member, len(members))
	for _, m := range members {
		current[m.ID] = m
	}

	standings := Rank(members, totals)
	updated := 0
	for _, st := range standings {
		if err := ctx.Err(); err != nil {
			return err
		}

		m := current[st.MemberID]
		changed := false
		if !sameHours(m.TotalHours, st.TotalHours) {
			if err := a.members.SetTotalHours(ctx, st.MemberID, st.TotalHours); err != nil {
				return fmt.Errorf("ranking: set total hours for %s: %w", st.MemberID, err)
			}
			changed = true
		}
		if m.Rank != st.Rank {
			if err := a.members.SetRank(ctx, st.MemberID, st.Rank); err != nil {
				return fmt.Errorf("ranking: set rank for %s: %w", st.MemberID, err)
			}
			changed = true
		}
		if changed {
			updated++
		}
	}

	if a.cache != nil {
		if err := a.cache.StoreStandings(ctx, standings); err != nil {
			a.logger.WarnContext(ctx, "failed to cache standings", logger.Err(err))
		}
	}

	a.logger.InfoContext(ctx, "ranking recomputed",
		slog.Int("members", len(standings)),
		slog.Int("updated", updated),
		logger.Latency(time.Since(start)),
	)
	return nil
}

// Rank orders members by total hours descending. members must already be in
// registration order; the sort is stable so ties keep it.
func Rank(members []*member.Member, totals map[string]float64) []member.Standing {
	standings := make([]member.Standing, len(members))
	for i, m := range members {
		standings[i] = member.Standing{
			MemberID:   m.ID,
			FullName:   m.FullName,
			TotalHours: totals[m.ID],
		}
	}

	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].TotalHours > standings[j].TotalHours
	})
	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings
}

func sameHours(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
