package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	// Attendance events
	EventCheckedIn  EventType = "attendance.checked_in"
	EventCheckedOut EventType = "attendance.checked_out"

	// Escalation events
	EventMemberWarned  EventType = "member.warned"
	EventMemberBlocked EventType = "member.blocked"

	// System events
	EventSweepCompleted EventType = "system.sweep_completed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
	Version     int       `json:"version"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event stamped at the given instant.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Attendance Events
// ═══════════════════════════════════════════════════════════════════════════

// CheckedInEvent is emitted when a member's first check-in of the day is recorded.
type CheckedInEvent struct {
	BaseEvent
	MemberID string `json:"member_id"`
	RecordID string `json:"record_id"`
	Date     string `json:"date"`
}

// Payload implements Event interface.
func (e CheckedInEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"member_id": e.MemberID,
		"record_id": e.RecordID,
		"date":      e.Date,
	}
}

// NewCheckedInEvent creates a new CheckedInEvent.
func NewCheckedInEvent(memberID, recordID, date string, at time.Time) CheckedInEvent {
	return CheckedInEvent{
		BaseEvent: NewBaseEvent(EventCheckedIn, memberID, at),
		MemberID:  memberID,
		RecordID:  recordID,
		Date:      date,
	}
}

// CheckedOutEvent is emitted after a checkout has been persisted.
type CheckedOutEvent struct {
	BaseEvent
	MemberID string  `json:"member_id"`
	RecordID string  `json:"record_id"`
	Date     string  `json:"date"`
	Hours    float64 `json:"hours"`
}

// Payload implements Event interface.
func (e CheckedOutEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"member_id": e.MemberID,
		"record_id": e.RecordID,
		"date":      e.Date,
		"hours":     e.Hours,
	}
}

// NewCheckedOutEvent creates a new CheckedOutEvent.
func NewCheckedOutEvent(memberID, recordID, date string, hours float64, at time.Time) CheckedOutEvent {
	return CheckedOutEvent{
		BaseEvent: NewBaseEvent(EventCheckedOut, memberID, at),
		MemberID:  memberID,
		RecordID:  recordID,
		Date:      date,
		Hours:     hours,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Escalation Events
// ═══════════════════════════════════════════════════════════════════════════

// MemberWarnedEvent is emitted when an absence streak reaches the warning threshold.
type MemberWarnedEvent struct {
	BaseEvent
	MemberID string `json:"member_id"`
	Streak   int    `json:"streak"`
	Date     string `json:"date"`
}

// Payload implements Event interface.
func (e MemberWarnedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"member_id": e.MemberID,
		"streak":    e.Streak,
		"date":      e.Date,
	}
}

// NewMemberWarnedEvent creates a new MemberWarnedEvent.
func NewMemberWarnedEvent(memberID string, streak int, date string, at time.Time) MemberWarnedEvent {
	return MemberWarnedEvent{
		BaseEvent: NewBaseEvent(EventMemberWarned, memberID, at),
		MemberID:  memberID,
		Streak:    streak,
		Date:      date,
	}
}

// MemberBlockedEvent is emitted once, when the blocked flag flips to true.
type MemberBlockedEvent struct {
	BaseEvent
	MemberID string `json:"member_id"`
	Streak   int    `json:"streak"`
	Date     string `json:"date"`
}

// Payload implements Event interface.
func (e MemberBlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"member_id": e.MemberID,
		"streak":    e.Streak,
		"date":      e.Date,
	}
}

// NewMemberBlockedEvent creates a new MemberBlockedEvent.
func NewMemberBlockedEvent(memberID string, streak int, date string, at time.Time) MemberBlockedEvent {
	return MemberBlockedEvent{
		BaseEvent: NewBaseEvent(EventMemberBlocked, memberID, at),
		MemberID:  memberID,
		Streak:    streak,
		Date:      date,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// SweepCompletedEvent summarises one absence sweep run.
type SweepCompletedEvent struct {
	BaseEvent
	Date          string `json:"date"`
	Checked       int    `json:"checked"`
	WarningsSent  int    `json:"warnings_sent"`
	BlocksApplied int    `json:"blocks_applied"`
}

// Payload implements Event interface.
func (e SweepCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"date":           e.Date,
		"checked":        e.Checked,
		"warnings_sent":  e.WarningsSent,
		"blocks_applied": e.BlocksApplied,
	}
}

// NewSweepCompletedEvent creates a new SweepCompletedEvent.
func NewSweepCompletedEvent(date string, checked, warnings, blocks int, at time.Time) SweepCompletedEvent {
	return SweepCompletedEvent{
		BaseEvent:     NewBaseEvent(EventSweepCompleted, date, at),
		Date:          date,
		Checked:       checked,
		WarningsSent:  warnings,
		BlocksApplied: blocks,
	}
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
