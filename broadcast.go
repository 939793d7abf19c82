package countdown

import (
	"log/slog"
	"time"
)

// DefaultWriteTimeout bounds a single write to a player connection.
const DefaultWriteTimeout = 5 * time.Second

// Broadcaster delivers wire messages to players and mirrors every delivery to
// the audit sink. It is only called by the engine with the session lock held.
type Broadcaster struct {
	sessionID    string
	auditor      Auditor
	logger       *slog.Logger
	writeTimeout time.Duration
}

func NewBroadcaster(sessionID string, auditor Auditor, logger *slog.Logger, writeTimeout time.Duration) *Broadcaster {
	if auditor == nil {
		auditor = AuditFunc(func(AuditEntry) {})
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Broadcaster{
		sessionID:    sessionID,
		auditor:      auditor,
		logger:       logger,
		writeTimeout: writeTimeout,
	}
}

// SendToOne writes text to a single player.
func (b *Broadcaster) SendToOne(p *Player, text string) {
	b.write(p, text)
	b.Audit(TagText, DirectionOut, p.ID, text)
}

// SendToAll writes text to every active player for which exclude is false.
// exclude may be nil.
func (b *Broadcaster) SendToAll(players []*Player, text string, exclude func(*Player) bool) {
	for _, p := range players {
		if p == nil || !p.active {
			continue
		}
		if exclude != nil && exclude(p) {
			continue
		}
		b.SendToOne(p, text)
	}
}

// SendTurnNotice tells the turn-holder it is their turn and every other active
// player to wait.
func (b *Broadcaster) SendTurnNotice(players []*Player, turn int) {
	for i, p := range players {
		if p == nil || !p.active {
			continue
		}
		if i == turn {
			b.write(p, MsgYourTurn)
		} else {
			b.write(p, MsgWaiting)
		}
	}
	b.Audit(TagGo, DirectionOut, turn, MsgYourTurn)
}

// Audit records an entry without touching the wire.
func (b *Broadcaster) Audit(tag string, dir Direction, player int, text string) {
	b.auditor.Audit(AuditEntry{
		Session:   b.sessionID,
		Tag:       tag,
		Direction: dir,
		Player:    player,
		Text:      text,
		Time:      time.Now(),
	})
}

func (b *Broadcaster) write(p *Player, text string) {
	conn := p.conn
	_ = conn.SetWriteDeadline(time.Now().Add(b.writeTimeout))
	if _, err := conn.Write([]byte(text)); err != nil {
		b.logger.Warn("write to player failed", slog.Int("player", p.ID), slog.Any("error", err))
	}
}
