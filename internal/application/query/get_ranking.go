// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
package query

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nardi-attend/attendance-hub/internal/domain/member"
	"github.com/nardi-attend/attendance-hub/internal/domain/shared"
	"github.com/nardi-attend/attendance-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RANKING QUERY
// Returns members ordered by cumulative hours with pagination.
// ══════════════════════════════════════════════════════════════════════════════

// Sources reported in GetRankingResult.Source.
const (
	SourceCache    = "cache"
	SourceComputed = "computed"
)

// GetRankingQuery contains ranking request parameters.
type GetRankingQuery struct {
	// Limit - number of entries (default 20, max 100).
	Limit int

	// Offset - pagination offset.
	Offset int
}

// Validate normalises the limit and rejects negative values.
func (q *GetRankingQuery) Validate() error {
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		return errors.New("offset cannot be negative")
	}
	return nil
}

// RankingEntryDTO is one ranking row.
type RankingEntryDTO struct {
	Rank       int     `json:"rank"`
	MemberID   string  `json:"member_id"`
	FullName   string  `json:"full_name"`
	TotalHours float64 `json:"total_hours"`
}

// GetRankingResult is the ranking page.
type GetRankingResult struct {
	Entries     []RankingEntryDTO `json:"entries"`
	TotalCount  int               `json:"total_count"`
	Source      string            `json:"source"`
	GeneratedAt time.Time         `json:"generated_at"`
	HasMore     bool              `json:"has_more"`
	Page        int               `json:"page"`
	PageSize    int               `json:"page_size"`
}

// RankingReader serves cached standings.
type RankingReader interface {
	Top(ctx context.Context, limit int) ([]member.Standing, error)
}

// MemberStandingReader serves one cached standing. The redis ranking cache
// implements it alongside RankingReader.
type MemberStandingReader interface {
	Standing(ctx context.Context, memberID string) (*member.Standing, error)
}

// StandingsSource computes standings on demand.
type StandingsSource interface {
	Standings(ctx context.Context) ([]member.Standing, error)
}

// GetRankingHandler reads the ranking from the cache and falls back to
// computing it when the cache is empty or unavailable.
type GetRankingHandler struct {
	cache    RankingReader
	fallback StandingsSource
	logger   *slog.Logger
}

// NewGetRankingHandler creates a new GetRankingHandler. cache may be nil.
func NewGetRankingHandler(cache RankingReader, fallback StandingsSource, log *slog.Logger) *GetRankingHandler {
	if log == nil {
		log = slog.Default()
	}
	return &GetRankingHandler{
		cache:    cache,
		fallback: fallback,
		logger:   log.With(logger.Component("get_ranking")),
	}
}

// Handle executes the query.
func (h *GetRankingHandler) Handle(ctx context.Context, query GetRankingQuery) (*GetRankingResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetRanking", shared.ErrValidation, err.Error(), err)
	}

	standings, source, err := h.load(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "GetRanking", shared.ErrServiceUnavailable, "failed to load ranking", err)
	}

	page := paginate(standings, query.Offset, query.Limit)
	entries := make([]RankingEntryDTO, len(page))
	for i, s := range page {
		entries[i] = RankingEntryDTO{
			Rank:       s.Rank,
			MemberID:   s.MemberID,
			FullName:   s.FullName,
			TotalHours: s.TotalHours,
		}
	}

	return &GetRankingResult{
		Entries:     entries,
		TotalCount:  len(standings),
		Source:      source,
		GeneratedAt: time.Now().UTC(),
		HasMore:     query.Offset+len(page) < len(standings),
		Page:        query.Offset/query.Limit + 1,
		PageSize:    query.Limit,
	}, nil
}

// MemberStandingResult is one member's place in the ranking.
type MemberStandingResult struct {
	RankingEntryDTO
	Source string `json:"source"`
}

// HandleMember returns the standing of memberID. A member missing from the
// cache is looked up in freshly computed standings before giving up.
func (h *GetRankingHandler) HandleMember(ctx context.Context, memberID string) (*MemberStandingResult, error) {
	if memberID == "" {
		return nil, shared.NewDomainError("query", "GetMemberStanding", shared.ErrValidation, "member_id is required")
	}

	if reader, ok := h.cache.(MemberStandingReader); ok {
		s, err := reader.Standing(ctx, memberID)
		if err == nil {
			return standingResult(*s, SourceCache), nil
		}
		h.logger.DebugContext(ctx, "member standing not cached, computing", logger.MemberID(memberID), logger.Err(err))
	}

	standings, err := h.fallback.Standings(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "GetMemberStanding", shared.ErrServiceUnavailable, "failed to load ranking", err)
	}
	for _, s := range standings {
		if s.MemberID == memberID {
			return standingResult(s, SourceComputed), nil
		}
	}
	return nil, shared.ErrMemberNotFound
}

func standingResult(s member.Standing, source string) *MemberStandingResult {
	return &MemberStandingResult{
		RankingEntryDTO: RankingEntryDTO{
			Rank:       s.Rank,
			MemberID:   s.MemberID,
			FullName:   s.FullName,
			TotalHours: s.TotalHours,
		},
		Source: source,
	}
}

func (h *GetRankingHandler) load(ctx context.Context) ([]member.Standing, string, error) {
	if h.cache != nil {
		cached, err := h.cache.Top(ctx, 0)
		if err == nil && len(cached) > 0 {
			return cached, SourceCache, nil
		}
		if err != nil {
			h.logger.DebugContext(ctx, "ranking cache unavailable, computing", logger.Err(err))
		}
	}

	standings, err := h.fallback.Standings(ctx)
	if err != nil {
		return nil, "", err
	}
	return standings, SourceComputed, nil
}

func paginate(standings []member.Standing, offset, limit int) []member.Standing {
	if offset >= len(standings) {
		return nil
	}
	end := offset + limit
	if end > len(standings) {
		end = len(standings)
	}
	return standings[offset:end]
}
