package countdown

import (
	"net"
)

// MaxInvalidAttempts is the number of consecutive invalid inputs that
// eliminates a player.
const MaxInvalidAttempts = 5

// Player is one seat in a session. All fields are guarded by the owning
// session's lock.
type Player struct {
	ID              int
	conn            net.Conn
	active          bool
	invalidAttempts int
}

func newPlayer(id int, conn net.Conn) *Player {
	return &Player{
		ID:     id,
		conn:   conn,
		active: true,
	}
}

// close marks the player inactive and closes its connection. It reports
// whether the player was active before the call.
func (p *Player) close() bool {
	if !p.active {
		return false
	}
	p.active = false
	// nolint:errcheck
	p.conn.Close()
	return true
}
