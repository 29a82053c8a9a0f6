package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnichat/relay/pkg/config"
	"github.com/omnichat/relay/pkg/domain"
)

// Commit needs a database-backed CalendarRepo and is not exercised here; the
// dedup-key uniqueness it relies on is covered by pkg/store's
// TestCalendarRepo_* tests. This file covers the in-memory state
// transitions, which need no database.

func TestMachine_StartEntersAwaitingIdentityWhenEmailUnknown(t *testing.T) {
	m := NewMachine(&fakeProvider{}, nil, testWorkingHours(), time.Hour, config.NewSchedulingPolicy(nil, config.ModeRequireOperator))

	state := m.Start("c1", "tenant-a", "sdr", "")
	assert.Equal(t, domain.SchedulingAwaitingIdent, state)
}

func TestMachine_StartEntersAwaitingSlotWhenEmailKnown(t *testing.T) {
	m := NewMachine(&fakeProvider{}, nil, testWorkingHours(), time.Hour, config.NewSchedulingPolicy(nil, config.ModeRequireOperator))

	state := m.Start("c1", "tenant-a", "sdr", "known@example.com")
	assert.Equal(t, domain.SchedulingAwaitingSlot, state)
}

func TestMachine_SetIdentityTransitionsToAwaitingSlot(t *testing.T) {
	m := NewMachine(&fakeProvider{}, nil, testWorkingHours(), time.Hour, config.NewSchedulingPolicy(nil, config.ModeRequireOperator))
	m.Start("c1", "tenant-a", "sdr", "")

	state, err := m.SetIdentity("c1", "late@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.SchedulingAwaitingSlot, state)
}

func TestMachine_ProposeSlotRequiresAwaitingSlotState(t *testing.T) {
	m := NewMachine(&fakeProvider{}, nil, testWorkingHours(), time.Hour, config.NewSchedulingPolicy(nil, config.ModeRequireOperator))
	m.Start("c1", "tenant-a", "sdr", "")

	_, err := m.ProposeSlot("c1", domain.Slot{Start: time.Now(), End: time.Now().Add(time.Hour)})
	assert.Error(t, err, "cannot propose a slot while still awaiting identity")
}

func TestMachine_RequiresOperatorOKReflectsPolicy(t *testing.T) {
	policy := config.NewSchedulingPolicy(map[string]config.SchedulingMode{"tenant-a:sdr": config.ModeAutoCommit}, config.ModeRequireOperator)
	m := NewMachine(&fakeProvider{}, nil, testWorkingHours(), time.Hour, policy)
	m.Start("c1", "tenant-a", "sdr", "x@y.com")

	assert.False(t, m.RequiresOperatorOK("c1"))

	m.Start("c2", "tenant-b", "sdr", "x@y.com")
	assert.True(t, m.RequiresOperatorOK("c2"))
}

func TestMachine_CancelClearsTheAttempt(t *testing.T) {
	m := NewMachine(&fakeProvider{}, nil, testWorkingHours(), time.Hour, config.NewSchedulingPolicy(nil, config.ModeRequireOperator))
	m.Start("c1", "tenant-a", "sdr", "x@y.com")

	m.Cancel("c1")

	_, err := m.ProposeSlot("c1", domain.Slot{Start: time.Now(), End: time.Now().Add(time.Hour)})
	assert.Error(t, err, "a cancelled attempt leaves no state to propose a slot against")
}
