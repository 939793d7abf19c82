package countdown

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"
)

// DefaultMoveTimeout is how long a player may stay silent once the game has
// started.
const DefaultMoveTimeout = 20 * time.Second

// Valid move range, inclusive.
const (
	MinMove = 1
	MaxMove = 9
)

// MoveResult classifies the input handled by ApplyMove.
type MoveResult string

const (
	MoveAccepted   MoveResult = "accepted"
	MoveWinning    MoveResult = "winning"
	MoveInvalid    MoveResult = "invalid"
	MoveEliminated MoveResult = "eliminated"
	MoveOutOfTurn  MoveResult = "out_of_turn"
	MoveRejected   MoveResult = "rejected"
)

// MoveOutcome describes what ApplyMove did.
type MoveOutcome struct {
	Result   MoveResult
	Value    int // parsed move, 0 unless the move was valid
	Total    int // total after the move
	Turn     int // turn-holder after the move
	Attempts int // mover's invalid attempt count after the move
	Winner   int // -1 unless the game ended
}

// Reason explains why a player left active play.
type Reason string

const (
	ReasonDisconnect   Reason = "disconnect"
	ReasonTimeout      Reason = "timeout"
	ReasonQuit         Reason = "quit"
	ReasonInvalidInput Reason = "invalid_input"
	ReasonShutdown     Reason = "shutdown"
)

// EngineConfig configures an Engine.
type EngineConfig struct {
	MoveTimeout  time.Duration
	WriteTimeout time.Duration
	Auditor      Auditor
	Metrics      *Metrics
	Logger       *slog.Logger
}

// Engine applies every state change to a Session. Each exported method runs
// as one critical section under the session's write lock, so turn checks,
// mutation, win detection, turn advance and broadcast are never interleaved
// between players.
type Engine struct {
	session     *Session
	bc          *Broadcaster
	metrics     *Metrics
	logger      *slog.Logger
	moveTimeout time.Duration
}

func NewEngine(session *Session, cfg EngineConfig) *Engine {
	if cfg.MoveTimeout <= 0 {
		cfg.MoveTimeout = DefaultMoveTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With(slog.String("component", "engine"), slog.String("session", session.ID))
	e := &Engine{
		session:     session,
		bc:          NewBroadcaster(session.ID, cfg.Auditor, logger, cfg.WriteTimeout),
		metrics:     cfg.Metrics,
		logger:      logger,
		moveTimeout: cfg.MoveTimeout,
	}
	e.metrics.observe(0, session.StartTotal)
	return e
}

// Session returns the session this engine drives.
func (e *Engine) Session() *Session {
	return e.session
}

// Join seats conn in the lowest vacant seat. When the last seat fills the game
// starts: everyone is told, the first turn-holder is notified and every
// player's receive deadline is armed.
func (e *Engine) Join(conn net.Conn) (*Player, error) {
	s := e.session
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state != GameStateJoining {
		return nil, ErrNotAccepting
	}
	seat := s.vacantSeatLocked()
	if seat < 0 {
		return nil, ErrNotAccepting
	}

	p := newPlayer(seat, conn)
	s.players[seat] = p
	e.bc.SendToOne(p, MsgWelcome)
	e.logger.Info("player joined", slog.Int("player", seat), slog.String("remote", remoteAddr(conn)))

	if s.vacantSeatLocked() < 0 {
		e.startLocked()
	}
	e.metrics.observe(s.activeCountLocked(), s.total)
	return p, nil
}

func (e *Engine) startLocked() {
	s := e.session
	s.state = GameStateInProgress
	s.currentTurn = 0
	e.logger.Info("game starting", slog.Int("players", s.PlayerCount), slog.Int("total", s.total))

	e.bc.SendToAll(s.players, MsgGameStarting, nil)
	e.bc.SendTurnNotice(s.players, s.currentTurn)
	e.armTurnLocked()
}

// armTurnLocked starts the turn-holder's move clock and clears the deadline of
// every other active player. Only the turn-holder can time out.
func (e *Engine) armTurnLocked() {
	s := e.session
	deadline := time.Now().Add(e.moveTimeout)
	for i, p := range s.players {
		if p == nil || !p.active {
			continue
		}
		if i == s.currentTurn {
			_ = p.conn.SetReadDeadline(deadline)
		} else {
			_ = p.conn.SetReadDeadline(time.Time{})
		}
	}
}

// ArmDeadline sets p's receive deadline for the next read: moveTimeout from
// now if p holds the turn of a game in progress, none otherwise.
func (e *Engine) ArmDeadline(p *Player) {
	s := e.session
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.seatedLocked(p) && p.active && s.state == GameStateInProgress && p.ID == s.currentTurn {
		_ = p.conn.SetReadDeadline(time.Now().Add(e.moveTimeout))
		return
	}
	_ = p.conn.SetReadDeadline(time.Time{})
}

// ApplyMove validates raw input from p and applies it. The engine itself
// checks that p still holds the turn.
func (e *Engine) ApplyMove(p *Player, raw string) MoveOutcome {
	value, ok := ParseMove(raw)
	return e.apply(p, value, ok)
}

// RejectInput handles input from p that can never be a move, such as an
// over-long line. It counts as one invalid attempt.
func (e *Engine) RejectInput(p *Player) MoveOutcome {
	return e.apply(p, 0, false)
}

func (e *Engine) apply(p *Player, value int, ok bool) MoveOutcome {
	s := e.session
	s.mutex.Lock()
	defer s.mutex.Unlock()

	out := e.applyMoveLocked(p, value, ok)
	e.metrics.move(out.Result)
	e.metrics.observe(s.activeCountLocked(), s.total)
	return out
}

func (e *Engine) applyMoveLocked(p *Player, value int, ok bool) MoveOutcome {
	s := e.session
	out := MoveOutcome{Result: MoveRejected, Total: s.total, Turn: s.currentTurn, Winner: s.winner}

	if !s.seatedLocked(p) || !p.active {
		return out
	}
	out.Attempts = p.invalidAttempts

	switch s.state {
	case GameStateJoining:
		e.bc.SendToOne(p, MsgWaiting)
		return out
	case GameStateFinished:
		return out
	}

	if p.ID != s.currentTurn {
		e.bc.SendToOne(p, MsgNotYourTurn)
		out.Result = MoveOutOfTurn
		return out
	}

	if !ok {
		p.invalidAttempts++
		out.Attempts = p.invalidAttempts
		e.bc.SendToOne(p, MsgInvalidMove)
		if p.invalidAttempts < MaxInvalidAttempts {
			out.Result = MoveInvalid
			return out
		}
		e.bc.SendToOne(p, MsgTooManyInvalid)
		e.evictLocked(p, ReasonInvalidInput)
		out.Result = MoveEliminated
		out.Total, out.Turn, out.Winner = s.total, s.currentTurn, s.winner
		return out
	}

	p.invalidAttempts = 0
	s.total -= value
	out.Value = value
	out.Attempts = 0
	out.Total = s.total

	if s.total <= 0 {
		e.logger.Info("countdown reached zero", slog.Int("winner", p.ID), slog.Int("total", s.total))
		e.bc.SendToOne(p, MsgWon)
		e.bc.SendToAll(s.players, MsgLost, func(other *Player) bool { return other == p })
		e.endGameLocked(p.ID)
		out.Result = MoveWinning
		out.Winner = p.ID
		return out
	}

	e.bc.SendToAll(s.players, TotalMessage(s.total), nil)
	s.currentTurn = s.nextActiveLocked(s.currentTurn)
	e.bc.SendTurnNotice(s.players, s.currentTurn)
	e.armTurnLocked()
	out.Result = MoveAccepted
	out.Turn = s.currentTurn
	return out
}

// ParseMove reports the move encoded in raw and whether it is a legal move.
func ParseMove(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimRight(raw, "\r\n")))
	if err != nil || n < MinMove || n > MaxMove {
		return 0, false
	}
	return n, true
}

// Evict removes p from active play and checks whether the game is over.
// Evicting an inactive or unseated player is a no-op. During the join phase
// the seat is vacated instead and reopens for the next connection.
func (e *Engine) Evict(p *Player, reason Reason) {
	s := e.session
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.seatedLocked(p) {
		return
	}
	if s.state == GameStateJoining {
		e.vacateLocked(p, reason)
	} else {
		e.evictLocked(p, reason)
	}
	e.metrics.observe(s.activeCountLocked(), s.total)
}

// Timeout tells p they lost and evicts them. Only the turn-holder can time
// out; for anyone else Timeout does nothing and reports false.
func (e *Engine) Timeout(p *Player) bool {
	s := e.session
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.seatedLocked(p) || !p.active || s.state != GameStateInProgress || p.ID != s.currentTurn {
		return false
	}
	e.logger.Info("player timed out", slog.Int("player", p.ID))
	e.bc.SendToOne(p, MsgTimedOut)
	e.evictLocked(p, ReasonTimeout)
	e.metrics.observe(s.activeCountLocked(), s.total)
	return true
}

// Shutdown ends the game with no winner. It is a no-op once the game is over.
func (e *Engine) Shutdown(reason Reason) {
	s := e.session
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state == GameStateFinished {
		return
	}
	e.logger.Info("shutting down session", slog.String("reason", string(reason)))
	e.endGameLocked(-1)
	e.metrics.observe(s.activeCountLocked(), s.total)
}

func (e *Engine) vacateLocked(p *Player, reason Reason) {
	s := e.session
	e.dismissLocked(p, reason)
	s.players[p.ID] = nil
	e.metrics.eviction(reason)
	e.logger.Info("seat vacated before start", slog.Int("player", p.ID), slog.String("reason", string(reason)))
}

func (e *Engine) evictLocked(p *Player, reason Reason) {
	if !e.dismissLocked(p, reason) {
		return
	}
	e.metrics.eviction(reason)
	e.logger.Info("player evicted", slog.Int("player", p.ID), slog.String("reason", string(reason)))
	if e.session.state == GameStateInProgress {
		e.checkStatusLocked(p.ID)
	}
}

// checkStatusLocked runs after evicted left play. It ends the game when at
// most one player remains and otherwise moves the turn on if evicted held it.
func (e *Engine) checkStatusLocked(evicted int) {
	s := e.session
	switch active := s.activeCountLocked(); active {
	case 0:
		e.logger.Info("no active players left")
		e.endGameLocked(-1)
	case 1:
		winner := s.nextActiveLocked(evicted)
		e.logger.Info("last player standing", slog.Int("winner", winner))
		e.bc.SendToOne(s.players[winner], MsgWon)
		e.endGameLocked(winner)
	default:
		if evicted == s.currentTurn {
			s.currentTurn = s.nextActiveLocked(evicted)
			e.bc.SendTurnNotice(s.players, s.currentTurn)
			e.armTurnLocked()
		}
	}
}

// endGameLocked sends the end signal to every remaining player, closes their
// connections and marks the session finished.
func (e *Engine) endGameLocked(winner int) {
	s := e.session
	for _, p := range s.players {
		if p != nil {
			e.dismissLocked(p, ReasonShutdown)
		}
	}
	s.finishLocked(winner)
	e.metrics.finished(winner >= 0)
	e.logger.Info("game finished", slog.Int("winner", winner), slog.Int("total", s.total))
}

// dismissLocked sends the end signal to p unless its peer is already gone,
// then closes the connection. It reports whether p was active.
func (e *Engine) dismissLocked(p *Player, reason Reason) bool {
	if !p.active {
		return false
	}
	if reason != ReasonDisconnect {
		e.bc.SendToOne(p, MsgGameOver)
	}
	p.close()
	e.bc.Audit(TagEnd, DirectionOut, p.ID, "")
	return true
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return fmt.Sprintf("%T", conn)
}
