package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nardi-attend/attendance-hub/internal/domain/member"
)

func TestMessages_EscapeNameInHTML(t *testing.T) {
	m := &member.Member{ID: "m-1", FullName: `<a href="http://evil">click</a>`, Email: "m1@example.com"}

	for _, msg := range []Message{WarningMessage(m, 2), BlockMessage(m)} {
		assert.NotContains(t, msg.HTML, "<a href")
		assert.Contains(t, msg.HTML, "&lt;a href=&#34;http://evil&#34;&gt;click&lt;/a&gt;")
		assert.Contains(t, msg.Text, m.FullName, "plain text is sent as is")
		assert.Equal(t, "m1@example.com", msg.To)
	}
}

func TestWarningMessage(t *testing.T) {
	msg := WarningMessage(&member.Member{FullName: "Ada Lovelace", Email: "ada@example.com"}, 3)

	assert.Equal(t, KindAbsenceWarning, msg.Kind)
	assert.Contains(t, msg.HTML, "<p>Dear Ada Lovelace,</p>")
	assert.Contains(t, msg.Text, "absent for 3 consecutive days")
}
