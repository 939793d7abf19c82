package countdown

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// GameState represents the current state of the game
type GameState string

const (
	GameStateJoining    GameState = "joining"
	GameStateInProgress GameState = "in_progress"
	GameStateFinished   GameState = "finished"
)

// DefaultStartTotal is the countdown total a session starts from.
const DefaultStartTotal = 25

// Session is the shared state of one game. Every field is guarded by mutex;
// methods with a Locked suffix expect the caller to hold it.
type Session struct {
	ID          string
	PlayerCount int
	StartTotal  int
	CreatedAt   time.Time

	total       int
	players     []*Player // index is seat and turn order; nil while a seat is vacant
	currentTurn int
	state       GameState
	winner      int

	done      chan struct{}
	closeOnce sync.Once
	mutex     *sync.RWMutex
}

// NewSession creates a session waiting for playerCount players.
func NewSession(playerCount, startTotal int) (*Session, error) {
	if playerCount < 1 {
		return nil, fmt.Errorf("%w: player count must be at least 1, got %d", ErrInvalidConfig, playerCount)
	}
	if startTotal < 1 {
		return nil, fmt.Errorf("%w: start total must be at least 1, got %d", ErrInvalidConfig, startTotal)
	}
	return &Session{
		ID:          uuid.NewString(),
		PlayerCount: playerCount,
		StartTotal:  startTotal,
		CreatedAt:   time.Now(),
		total:       startTotal,
		players:     make([]*Player, playerCount),
		currentTurn: 0,
		state:       GameStateJoining,
		winner:      -1,
		done:        make(chan struct{}),
		mutex:       &sync.RWMutex{},
	}, nil
}

// Done is closed once the session reaches GameStateFinished.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// State returns the current game state.
func (s *Session) State() GameState {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.state
}

// Total returns the remaining countdown total.
func (s *Session) Total() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.total
}

// CurrentTurn returns the seat index of the turn-holder.
func (s *Session) CurrentTurn() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.currentTurn
}

// Winner returns the winning seat, or -1 if none has been declared.
func (s *Session) Winner() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.winner
}

// ActiveCount returns the number of seated, active players.
func (s *Session) ActiveCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.activeCountLocked()
}

// Player returns the player in seat id.
func (s *Session) Player(id int) (*Player, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if id < 0 || id >= s.PlayerCount || s.players[id] == nil {
		return nil, fmt.Errorf("%w: seat %d", ErrUnknownPlayer, id)
	}
	return s.players[id], nil
}

func (s *Session) activeCountLocked() int {
	n := 0
	for _, p := range s.players {
		if p != nil && p.active {
			n++
		}
	}
	return n
}

func (s *Session) seatedLocked(p *Player) bool {
	return p != nil && p.ID >= 0 && p.ID < s.PlayerCount && s.players[p.ID] == p
}

// nextActiveLocked returns the first active seat after from in ascending
// cyclic order, or from itself when no other seat is active.
func (s *Session) nextActiveLocked(from int) int {
	for i := 1; i <= s.PlayerCount; i++ {
		j := (from + i) % s.PlayerCount
		if p := s.players[j]; p != nil && p.active && j != from {
			return j
		}
	}
	return from
}

// vacantSeatLocked returns the lowest empty seat, or -1 when all are taken.
func (s *Session) vacantSeatLocked() int {
	for i, p := range s.players {
		if p == nil {
			return i
		}
	}
	return -1
}

func (s *Session) finishLocked(winner int) {
	s.state = GameStateFinished
	s.winner = winner
	s.closeOnce.Do(func() { close(s.done) })
}

// PlayerSnapshot is a read-only view of one seat.
type PlayerSnapshot struct {
	ID              int  `json:"id"`
	Seated          bool `json:"seated"`
	Active          bool `json:"active"`
	InvalidAttempts int  `json:"invalidAttempts"`
}

// Snapshot is a read-only copy of a session.
type Snapshot struct {
	ID          string           `json:"id"`
	State       GameState        `json:"state"`
	Total       int              `json:"total"`
	StartTotal  int              `json:"startTotal"`
	CurrentTurn int              `json:"currentTurn"`
	PlayerCount int              `json:"playerCount"`
	ActiveCount int              `json:"activeCount"`
	Winner      *int             `json:"winner,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	Players     []PlayerSnapshot `json:"players"`
}

// Snapshot copies the session under the read lock.
func (s *Session) Snapshot() Snapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	snap := Snapshot{
		ID:          s.ID,
		State:       s.state,
		Total:       s.total,
		StartTotal:  s.StartTotal,
		CurrentTurn: s.currentTurn,
		PlayerCount: s.PlayerCount,
		ActiveCount: s.activeCountLocked(),
		CreatedAt:   s.CreatedAt,
		Players:     make([]PlayerSnapshot, s.PlayerCount),
	}
	if s.winner >= 0 {
		w := s.winner
		snap.Winner = &w
	}
	for i, p := range s.players {
		ps := PlayerSnapshot{ID: i}
		if p != nil {
			ps.Seated = true
			ps.Active = p.active
			ps.InvalidAttempts = p.invalidAttempts
		}
		snap.Players[i] = ps
	}
	return snap
}
