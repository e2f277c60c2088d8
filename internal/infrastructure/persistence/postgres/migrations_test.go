package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetMigrations_OrderedAndReversible(t *testing.T) {
	migrations := GetMigrations()

	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.Name)
		assert.NotEmpty(t, strings.TrimSpace(m.UpSQL), m.Name)
		assert.NotEmpty(t, strings.TrimSpace(m.DownSQL), m.Name)
	}
}

func TestAttendanceMigration_EnforcesOneRecordPerDay(t *testing.T) {
	up := GetMigrations()[1].UpSQL

	assert.Contains(t, up, "UNIQUE (member_id, date)")
	assert.Contains(t, up, "status IN ('IN', 'OUT')")
}

func TestIsNoRows(t *testing.T) {
	assert.False(t, IsNoRows(nil))
	assert.False(t, IsUniqueViolation(nil))
}
