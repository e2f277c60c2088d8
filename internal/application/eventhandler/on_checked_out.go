// Package eventhandler contains reactions to domain events.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nardi-attend/attendance-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON CHECKED OUT HANDLER
// Refreshes cumulative hours and ranks once a checkout has been persisted.
// ═══════════════════════════════════════════════════════════════════════════

// Recomputer rebuilds member totals and ranks.
type Recomputer interface {
	Recompute(ctx context.Context) error
}

// CheckedOutConfig configures OnCheckedOutHandler.
type CheckedOutConfig struct {
	// Timeout bounds a single recompute.
	Timeout time.Duration
}

// DefaultCheckedOutConfig returns the default configuration.
func DefaultCheckedOutConfig() CheckedOutConfig {
	return CheckedOutConfig{Timeout: 30 * time.Second}
}

// OnCheckedOutHandler triggers a ranking recompute after every checkout.
type OnCheckedOutHandler struct {
	ranking Recomputer
	logger  *slog.Logger
	config  CheckedOutConfig
}

// NewOnCheckedOutHandler creates a new handler.
func NewOnCheckedOutHandler(ranking Recomputer, logger *slog.Logger, config CheckedOutConfig) *OnCheckedOutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultCheckedOutConfig().Timeout
	}

	return &OnCheckedOutHandler{
		ranking: ranking,
		logger:  logger.With("handler", "on_checked_out"),
		config:  config,
	}
}

// Register subscribes the handler to checkout events.
func (h *OnCheckedOutHandler) Register(bus shared.EventSubscriber) error {
	return bus.Subscribe(shared.EventCheckedOut, h.Handle)
}

// Handle implements shared.EventHandler. Events arriving from other
// instances are not typed, so only the event type is checked.
func (h *OnCheckedOutHandler) Handle(event shared.Event) error {
	if event.EventType() != shared.EventCheckedOut {
		h.logger.Warn("received unexpected event", "event_type", event.EventType())
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Debug("processing checked out event",
		"member_id", event.AggregateID(),
		"date", event.Payload()["date"],
	)

	if err := h.ranking.Recompute(ctx); err != nil {
		h.logger.Error("ranking recompute failed",
			"member_id", event.AggregateID(),
			"error", err,
		)
		return fmt.Errorf("recompute ranking: %w", err)
	}
	return nil
}
