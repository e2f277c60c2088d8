package eventhandler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nardi-attend/attendance-hub/internal/domain/shared"
	"github.com/nardi-attend/attendance-hub/internal/infrastructure/messaging"
	"github.com/nardi-attend/attendance-hub/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRecomputer struct {
	calls       int
	err         error
	hadDeadline bool
}

func (s *stubRecomputer) Recompute(ctx context.Context) error {
	s.calls++
	_, s.hadDeadline = ctx.Deadline()
	return s.err
}

var at = time.Date(2024, 1, 8, 8, 0, 0, 0, time.UTC)

func TestOnCheckedOutHandler_RecomputesOnCheckout(t *testing.T) {
	ranking := &stubRecomputer{}
	h := NewOnCheckedOutHandler(ranking, logger.Discard(), CheckedOutConfig{})

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{Logger: logger.Discard()})
	defer bus.Close()
	require.NoError(t, h.Register(bus))

	require.NoError(t, bus.Publish(shared.NewCheckedOutEvent("m-1", "r-1", "2024-01-08", 2, at)))
	require.NoError(t, bus.Publish(shared.NewCheckedInEvent("m-1", "r-2", "2024-01-09", at)))

	assert.Equal(t, 1, ranking.calls)
	assert.True(t, ranking.hadDeadline)
}

func TestOnCheckedOutHandler_IgnoresOtherEvents(t *testing.T) {
	ranking := &stubRecomputer{}
	h := NewOnCheckedOutHandler(ranking, logger.Discard(), DefaultCheckedOutConfig())

	assert.NoError(t, h.Handle(shared.NewMemberBlockedEvent("m-1", 4, "2024-01-08", at)))
	assert.Zero(t, ranking.calls)
}

func TestOnCheckedOutHandler_PropagatesError(t *testing.T) {
	ranking := &stubRecomputer{err: errors.New("db down")}
	h := NewOnCheckedOutHandler(ranking, logger.Discard(), DefaultCheckedOutConfig())

	err := h.Handle(shared.NewCheckedOutEvent("m-1", "r-1", "2024-01-08", 2, at))
	assert.Error(t, err)
}
