package web

import (
	"log/slog"
	"net/http"
)

// ServeHTML serves the operator console, which tails the audit feed and
// polls session stats.
func ServeHTML(w http.ResponseWriter, r *http.Request) {
	html := `<!DOCTYPE html>
<html>
<head>
    <title>Countdown Operator Console</title>
    <style>
        body { font-family: monospace; margin: 20px; }
        .status { padding: 10px; margin: 10px 0; background-color: #f0f0f0; border-radius: 5px; }
        .seats { display: flex; gap: 10px; margin: 10px 0; }
        .seat { padding: 10px; border: 2px solid #333; border-radius: 5px; min-width: 80px; text-align: center; }
        .seat.active { background-color: #90EE90; }
        .seat.inactive { background-color: #FFB6C1; opacity: 0.5; }
        .seat.turn { border-color: #DAA520; border-width: 4px; }
        #log { height: 400px; overflow-y: scroll; border: 1px solid #ccc; padding: 5px; white-space: pre; }
        .tag-GO { color: #DAA520; }
        .tag-MOVE { color: #1E90FF; }
        .tag-END { color: #DC143C; }
    </style>
</head>
<body>
    <h1>Countdown</h1>
    <div class="status" id="status">Connecting...</div>
    <div class="status" id="total">Total: ?</div>
    <div class="seats" id="seats"></div>
    <div id="log"></div>

    <script>
        const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
        const ws = new WebSocket(scheme + location.host + '/api/ws');
        const log = document.getElementById('log');

        ws.onopen = function() {
            document.getElementById('status').textContent = 'Connected';
        };

        ws.onclose = function() {
            document.getElementById('status').textContent = 'Disconnected';
        };

        ws.onmessage = function(event) {
            const entry = JSON.parse(event.data);
            const line = document.createElement('div');
            line.className = 'tag-' + entry.tag;
            const arrow = entry.direction === 'client_to_server' ? '<-' : '->';
            line.textContent = entry.time + ' ' + entry.tag + ' ' + arrow + ' player ' + entry.player + ': ' + entry.text.trim();
            log.appendChild(line);
            log.scrollTop = log.scrollHeight;
            refresh();
        };

        function refresh() {
            fetch('/api/stats').then(r => r.json()).then(stats => {
                const s = stats.session;
                document.getElementById('total').textContent =
                    'Total: ' + s.total + ' | State: ' + s.state + (s.winner !== undefined ? ' | Winner: player ' + s.winner : '');
                const seats = document.getElementById('seats');
                seats.innerHTML = '';
                s.players.forEach(p => {
                    const el = document.createElement('div');
                    el.className = 'seat ' + (p.active ? 'active' : 'inactive') + (p.id === s.currentTurn && p.active ? ' turn' : '');
                    el.textContent = 'Player ' + p.id + ' (' + p.invalidAttempts + ' strikes)';
                    seats.appendChild(el);
                });
            });
        }

        refresh();
    </script>
</body>
</html>
`
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write([]byte(html)); err != nil {
		slog.Warn("error writing console page", slog.Any("error", err))
	}
}
