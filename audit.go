package countdown

import (
	"log/slog"
	"strings"
	"time"
)

// Audit tags.
const (
	TagText = "TEXT"
	TagGo   = "GO"
	TagMove = "MOVE"
	TagEnd  = "END"
)

type Direction string

const (
	DirectionOut Direction = "server_to_client"
	DirectionIn  Direction = "client_to_server"
)

// AuditEntry is one operator-facing record of a line exchanged with a player.
// Tags never appear on the wire.
type AuditEntry struct {
	Session   string    `json:"session"`
	Tag       string    `json:"tag"`
	Direction Direction `json:"direction"`
	Player    int       `json:"player"`
	Text      string    `json:"text"`
	Time      time.Time `json:"time"`
}

// Auditor receives audit entries. Implementations are usually called with the
// session lock held; they must be safe for concurrent use and must not block.
type Auditor interface {
	Audit(AuditEntry)
}

// AuditFunc adapts a function to the Auditor interface.
type AuditFunc func(AuditEntry)

func (f AuditFunc) Audit(e AuditEntry) { f(e) }

// LogAuditor writes every entry as a structured log line.
type LogAuditor struct {
	Logger *slog.Logger
}

func (a LogAuditor) Audit(e AuditEntry) {
	a.Logger.Info("audit",
		slog.String("tag", e.Tag),
		slog.String("dir", string(e.Direction)),
		slog.Int("player", e.Player),
		slog.String("text", strings.TrimSpace(e.Text)),
		slog.String("session", e.Session),
	)
}

// MultiAuditor fans entries out to every non-nil sink.
type MultiAuditor []Auditor

func (m MultiAuditor) Audit(e AuditEntry) {
	for _, a := range m {
		if a != nil {
			a.Audit(e)
		}
	}
}

var _ Auditor = MultiAuditor(nil)
