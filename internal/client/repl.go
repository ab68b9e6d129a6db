package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"
)

// Reserved inputs that end the conversation without issuing a request.
// Matching is exact and case-sensitive.
var exitWords = map[string]bool{
	"exit": true,
	"quit": true,
	"bye":  true,
}

// REPL is the turn orchestrator: a strictly sequential conversation loop
// over one persisted session identifier.
type REPL struct {
	client      *Client
	sessions    *SessionStore
	in          io.Reader
	out         io.Writer
	turnTimeout time.Duration
}

// NewREPL wires the conversation loop.
func NewREPL(c *Client, sessions *SessionStore, in io.Reader, out io.Writer, turnTimeout time.Duration) *REPL {
	return &REPL{
		client:      c,
		sessions:    sessions,
		in:          in,
		out:         out,
		turnTimeout: turnTimeout,
	}
}

// Run drives the conversation until a reserved word, input close or
// interrupt. Intentional termination always returns nil.
func (r *REPL) Run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(r.out, "You: ")

		select {
		case <-ctx.Done():
			r.farewell()
			return nil
		case line, ok := <-lines:
			if !ok {
				r.farewell()
				return nil
			}
			if exitWords[line] {
				r.farewell()
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			r.runTurn(ctx, line)
		}
	}
}

// runTurn executes one exchange. A fresh conversation persists its session
// identifier exactly once, after the first successful non-empty reply.
func (r *REPL) runTurn(ctx context.Context, message string) {
	sessionID, err := r.sessions.Load()
	if err != nil {
		// Unreadable session state means "no session yet", never fatal.
		log.Printf("[client] session load failed, starting fresh: %v", err)
		sessionID = ""
	}
	hadSession := sessionID != ""

	turnCtx, cancel := context.WithTimeout(ctx, r.turnTimeout)
	defer cancel()

	fmt.Fprint(r.out, "Kali: ")
	turn, err := r.client.StreamMessage(turnCtx, message, sessionID, r.out)
	if err != nil {
		fmt.Fprintf(r.out, "⚠️  %v\n", err)
		return
	}

	if hadSession || turn.Reply == "" {
		return
	}

	id := turn.SessionID
	if id == "" {
		// The service did not announce the session inline; learn it with
		// the one-off discovery call.
		id, err = r.client.CreateSession(turnCtx, message)
		if err != nil {
			log.Printf("[client] session discovery failed: %v", err)
			return
		}
	}

	if err := r.sessions.Persist(id); err != nil {
		log.Printf("[client] session persist failed: %v", err)
	}
}

func (r *REPL) farewell() {
	fmt.Fprintln(r.out, "\nLater, buddy. Stay fabulous.")
}
