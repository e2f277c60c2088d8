// Package notification defines outbound escalation messages.
package notification

import (
	"context"
	"fmt"
	"html"

	"github.com/nardi-attend/attendance-hub/internal/domain/member"
)

// Kind identifies an escalation message.
type Kind string

const (
	KindAbsenceWarning Kind = "absent_warning"
	KindBlock          Kind = "block_notification"
)

// Sender delivers escalation messages. Callers treat delivery as
// fire-and-forget: an error is logged and counted, never propagated.
type Sender interface {
	SendWarning(ctx context.Context, m *member.Member, streak int) error
	SendBlock(ctx context.Context, m *member.Member) error
}

// Message is a rendered notification.
type Message struct {
	Kind    Kind
	To      string
	Name    string
	Subject string
	Text    string
	HTML    string
}

// WarningMessage renders the absence warning.
func WarningMessage(m *member.Member, streak int) Message {
	text := fmt.Sprintf("Dear %s,\n\nYou have been absent for %d consecutive days. "+
		"Please attend the next session; continued absence will block your attendance.", m.FullName, streak)
	return Message{
		Kind:    KindAbsenceWarning,
		To:      m.Email,
		Name:    m.FullName,
		Subject: "Attendance warning",
		Text:    text,
		HTML: fmt.Sprintf("<p>Dear %s,</p><p>You have been absent for <strong>%d consecutive days</strong>. "+
			"Please attend the next session; continued absence will block your attendance.</p>", html.EscapeString(m.FullName), streak),
	}
}

// BlockMessage renders the block notice.
func BlockMessage(m *member.Member) Message {
	text := fmt.Sprintf("Dear %s,\n\nYour attendance has been blocked because of repeated absence. "+
		"Please contact the administration to be unblocked.", m.FullName)
	return Message{
		Kind:    KindBlock,
		To:      m.Email,
		Name:    m.FullName,
		Subject: "Attendance blocked",
		Text:    text,
		HTML: fmt.Sprintf("<p>Dear %s,</p><p>Your attendance has been <strong>blocked</strong> because of repeated absence. "+
			"Please contact the administration to be unblocked.</p>", html.EscapeString(m.FullName)),
	}
}
