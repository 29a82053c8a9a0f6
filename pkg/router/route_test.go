package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMention(t *testing.T) {
	cases := []struct {
		text     string
		prefix   string
		wantKey  string
		wantOK   bool
	}{
		{"@sdr can you help me schedule a demo", "@", "sdr", true},
		{"@ leading space only", "@", "", false},
		{"hello there, no mention here", "@", "", false},
		{"@legal", "@", "legal", true},
	}
	for _, c := range cases {
		key, ok := parseMention(c.text, c.prefix)
		assert.Equal(t, c.wantOK, ok, c.text)
		assert.Equal(t, c.wantKey, key, c.text)
	}
}

func TestLowConfidenceTracker_TriggersOnSecondConsecutiveHit(t *testing.T) {
	tr := newLowConfidenceTracker()

	assert.False(t, tr.Hit("c1"), "first low-confidence message must not trigger")
	assert.True(t, tr.Hit("c1"), "second consecutive low-confidence message must trigger")
}

func TestLowConfidenceTracker_ResetBreaksTheStreak(t *testing.T) {
	tr := newLowConfidenceTracker()

	assert.False(t, tr.Hit("c1"))
	tr.Reset("c1")
	assert.False(t, tr.Hit("c1"), "a reset streak needs two fresh hits before triggering again")
}

func TestLowConfidenceTracker_DoesNotTriggerATHirdConsecutiveHitAgain(t *testing.T) {
	tr := newLowConfidenceTracker()

	assert.False(t, tr.Hit("c1"))
	assert.True(t, tr.Hit("c1"))
	tr.Reset("c1") // Route resets the streak once a ticket is opened
	assert.False(t, tr.Hit("c1"), "a third message right after the trigger starts a fresh streak")
}
