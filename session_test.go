package countdown

import (
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSession(t *testing.T) {
	tests := []struct {
		name        string
		playerCount int
		startTotal  int
		wantErr     bool
	}{
		{name: "two players", playerCount: 2, startTotal: 25},
		{name: "single player", playerCount: 1, startTotal: 1},
		{name: "no players", playerCount: 0, startTotal: 25, wantErr: true},
		{name: "zero total", playerCount: 2, startTotal: 0, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSession(tt.playerCount, tt.startTotal)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, s.ID)
			assert.Equal(t, GameStateJoining, s.State())
			assert.Equal(t, tt.startTotal, s.Total())
			assert.Equal(t, -1, s.Winner())
			assert.Equal(t, 0, s.ActiveCount())
		})
	}
}

func TestSession_NextActive(t *testing.T) {
	tests := []struct {
		name   string
		active []bool
		from   int
		want   int
	}{
		{name: "next seat", active: []bool{true, true, true}, from: 0, want: 1},
		{name: "wraps", active: []bool{true, true, true}, from: 2, want: 0},
		{name: "skips inactive", active: []bool{true, false, true}, from: 0, want: 2},
		{name: "skips inactive and wraps", active: []bool{true, true, false, false}, from: 1, want: 0},
		{name: "from inactive seat", active: []bool{false, false, true}, from: 0, want: 2},
		{name: "only mover active keeps turn", active: []bool{false, true, false}, from: 1, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSession(len(tt.active), DefaultStartTotal)
			require.NoError(t, err)
			for i, a := range tt.active {
				s.players[i] = &Player{ID: i, active: a}
			}
			assert.Equal(t, tt.want, s.nextActiveLocked(tt.from))
		})
	}
}

func TestSession_Snapshot(t *testing.T) {
	s, err := NewSession(3, 10)
	require.NoError(t, err)

	server, client := net.Pipe()
	defer client.Close()
	s.players[1] = newPlayer(1, server)
	s.players[1].invalidAttempts = 2

	snap := s.Snapshot()
	assert.Equal(t, s.ID, snap.ID)
	assert.Equal(t, 10, snap.Total)
	assert.Equal(t, 1, snap.ActiveCount)
	assert.Nil(t, snap.Winner)
	assert.Equal(t, []PlayerSnapshot{
		{ID: 0},
		{ID: 1, Seated: true, Active: true, InvalidAttempts: 2},
		{ID: 2},
	}, snap.Players)

	b, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"state":"joining"`)
	assert.NotContains(t, string(b), `"winner"`)

	s.finishLocked(1)
	snap = s.Snapshot()
	require.NotNil(t, snap.Winner)
	assert.Equal(t, 1, *snap.Winner)
	assert.Equal(t, GameStateFinished, snap.State)
}
