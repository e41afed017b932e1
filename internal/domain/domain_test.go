package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMentionOpen(t *testing.T) {
	tests := []struct {
		name      string
		responded bool
		timedOut  bool
		want      bool
	}{
		{name: "neither outcome", responded: false, timedOut: false, want: true},
		{name: "responded", responded: true, timedOut: false, want: false},
		{name: "timed out", responded: false, timedOut: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Mention{Responded: tt.responded, TimedOut: tt.timedOut}
			assert.Equal(t, tt.want, m.Open())
		})
	}
}

func TestMentionOpenOnCopy(t *testing.T) {
	fetch := func() Mention { return Mention{ID: 42} }

	// Callers read Open directly off copies handed back by lookups.
	assert.True(t, fetch().Open())
}
