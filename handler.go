package countdown

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
)

// MaxLineLength bounds a single input line, newline included. Longer lines
// are discarded and count as one invalid attempt.
const MaxLineLength = 256

// PlayerHandler owns the receive loop for one seated player.
type PlayerHandler struct {
	player *Player
	engine *Engine
	logger *slog.Logger
}

func NewPlayerHandler(p *Player, engine *Engine, logger *slog.Logger) *PlayerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlayerHandler{
		player: p,
		engine: engine,
		logger: logger.With(slog.String("component", "handler"), slog.Int("player", p.ID)),
	}
}

// Serve reads lines until the player leaves play or the connection is closed
// by the engine. It is the only reader of the player's connection.
func (h *PlayerHandler) Serve() {
	r := bufio.NewReaderSize(h.player.conn, MaxLineLength)
	oversized := false

	h.engine.ArmDeadline(h.player)
	for {
		chunk, err := r.ReadSlice('\n')
		switch {
		case err == nil:
			if oversized {
				oversized = false
				h.engine.RejectInput(h.player)
			} else {
				h.handleLine(string(chunk))
			}
			h.engine.ArmDeadline(h.player)
			continue
		case errors.Is(err, bufio.ErrBufferFull):
			// Discard the rest of the line; it is rejected once the newline arrives.
			if !oversized {
				oversized = true
				h.engine.bc.Audit(TagMove, DirectionIn, h.player.ID, string(chunk))
				h.logger.Warn("input line too long", slog.Int("limit", MaxLineLength))
			}
			continue
		case errors.Is(err, os.ErrDeadlineExceeded):
			if h.engine.Timeout(h.player) {
				return
			}
			// the turn moved on while the deadline fired
			h.engine.ArmDeadline(h.player)
			continue
		case errors.Is(err, net.ErrClosed), errors.Is(err, io.ErrClosedPipe):
			// closed by the engine
		case errors.Is(err, io.EOF):
			if len(chunk) > 0 && !oversized {
				h.handleLine(string(chunk))
			}
			h.logger.Info("player disconnected")
			h.engine.Evict(h.player, ReasonDisconnect)
		default:
			h.logger.Error("read failed", slog.Any("error", err))
			h.engine.Evict(h.player, ReasonDisconnect)
		}
		return
	}
}

func (h *PlayerHandler) handleLine(line string) {
	text := strings.TrimRight(line, "\r\n")
	h.engine.bc.Audit(TagMove, DirectionIn, h.player.ID, text)

	if IsQuit(text) {
		h.engine.Evict(h.player, ReasonQuit)
		return
	}
	h.engine.ApplyMove(h.player, text)
}

// IsQuit reports whether text is the quit command.
func IsQuit(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), "QUIT")
}
