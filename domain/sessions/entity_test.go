package sessions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionActive(t *testing.T) {
	now := time.Now()
	base := func() Session {
		return Session{ExpiresAt: now.Add(time.Hour)}
	}

	tests := []struct {
		name   string
		mutate func(*Session)
		want   bool
	}{
		{"live", func(s *Session) {}, true},
		{"expired", func(s *Session) { s.ExpiresAt = now.Add(-time.Minute) }, false},
		{"revoked", func(s *Session) { s.RevokedAt = &now }, false},
		{"ended", func(s *Session) { s.EndedAt = &now }, false},
		{"expires exactly now", func(s *Session) { s.ExpiresAt = now }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base()
			tt.mutate(&s)
			assert.Equal(t, tt.want, s.Active(now))
		})
	}
}

func TestSessionToDTOMarksCurrent(t *testing.T) {
	s := Session{SID: "sid-1"}
	assert.True(t, s.ToDTO("sid-1").Current)
	assert.False(t, s.ToDTO("sid-2").Current)
	assert.False(t, s.ToDTO("").Current)
}
