package query

import (
	"context"
	"errors"
	"sort"

	"github.com/nardi-attend/attendance-hub/internal/domain/attendance"
	"github.com/nardi-attend/attendance-hub/internal/domain/shared"
	"github.com/nardi-attend/attendance-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PRESENCE QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetPresenceQuery asks who attended on a calendar day.
type GetPresenceQuery struct {
	Date string
}

// PresenceEntryDTO is one member's record for the day.
type PresenceEntryDTO struct {
	MemberID string   `json:"member_id"`
	Status   string   `json:"status"`
	Hours    *float64 `json:"hours,omitempty"`
}

// GetPresenceResult lists present members in id order.
type GetPresenceResult struct {
	Date      string             `json:"date"`
	MemberIDs []string           `json:"member_ids"`
	Records   []PresenceEntryDTO `json:"records"`
}

// PresenceReader returns the ids of members present on a date.
type PresenceReader interface {
	PresentToday(ctx context.Context, date string) (map[string]struct{}, error)
}

// GetPresenceHandler handles presence queries.
type GetPresenceHandler struct {
	presence PresenceReader
	records  attendance.Repository
}

// NewGetPresenceHandler creates a new GetPresenceHandler. records may be nil,
// in which case only ids are returned.
func NewGetPresenceHandler(presence PresenceReader, records attendance.Repository) *GetPresenceHandler {
	return &GetPresenceHandler{presence: presence, records: records}
}

// Handle executes the query.
func (h *GetPresenceHandler) Handle(ctx context.Context, query GetPresenceQuery) (*GetPresenceResult, error) {
	if !timeutil.ValidDateKey(query.Date) {
		return nil, shared.WrapError("query", "GetPresence", shared.ErrValidation,
			"date must be in YYYY-MM-DD form", errors.New(query.Date))
	}

	present, err := h.presence.PresentToday(ctx, query.Date)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(present))
	for id := range present {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := &GetPresenceResult{Date: query.Date, MemberIDs: ids, Records: []PresenceEntryDTO{}}
	if h.records == nil {
		return result, nil
	}

	records, err := h.records.ListByDate(ctx, query.Date)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		result.Records = append(result.Records, PresenceEntryDTO{
			MemberID: r.MemberID,
			Status:   string(r.Status),
			Hours:    r.Hours,
		})
	}
	sort.Slice(result.Records, func(i, j int) bool {
		return result.Records[i].MemberID < result.Records[j].MemberID
	})

	return result, nil
}
