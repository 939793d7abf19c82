// Package client is the interactive side of the countdown protocol: it
// prints what the server sends and forwards what the player types.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/tkahng/countdown"
)

// ErrServerClosed is returned when the server hangs up before the game ends.
var ErrServerClosed = errors.New("server closed the connection")

// Play runs one game over conn. It returns nil once the server announces the
// end of the game, ErrServerClosed if the connection drops first, or the
// context error when ctx is cancelled. conn is closed on return.
func Play(ctx context.Context, conn net.Conn, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go forward(ctx, conn, in)

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			if _, werr := io.WriteString(out, line); werr != nil {
				return fmt.Errorf("writing output: %w", werr)
			}
			if line == countdown.MsgGameOver {
				return nil
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				return ErrServerClosed
			}
			return fmt.Errorf("reading from server: %w", err)
		}
	}
}

// forward sends each line of in to the server until in is exhausted or the
// game is over.
func forward(ctx context.Context, conn net.Conn, in io.Reader) {
	s := bufio.NewScanner(in)
	for s.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimRight(s.Text(), "\r")
		if _, err := io.WriteString(conn, line+"\n"); err != nil {
			return
		}
	}
}
