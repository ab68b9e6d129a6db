package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ErrTurnFailed marks a turn abandoned after an error event or a transport
// fault. The conversation itself continues.
var ErrTurnFailed = errors.New("turn failed")

// Client speaks the chat service protocol: one non-streaming session
// discovery call plus a streaming request per turn.
type Client struct {
	baseURL    string
	httpClient *http.Client
	spacing    bool
}

// New builds a protocol client. spacing controls whether fragments are
// joined with single spaces; disable it for services that stream sub-word
// chunks.
func New(baseURL string, httpClient *http.Client, spacing bool) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		spacing:    spacing,
	}
}

// Turn is the outcome of one streamed exchange.
type Turn struct {
	// Reply is the accumulated reply text.
	Reply string
	// SessionID is set when the stream announced the session inline.
	SessionID string
}

// CreateSession asks the non-streaming endpoint for a session identifier.
// Used only as a compatibility fallback when the stream does not announce
// the id itself.
func (c *Client) CreateSession(ctx context.Context, message string) (string, error) {
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("session request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("session request: unexpected status %s", resp.Status)
	}

	var payload struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode session response: %w", err)
	}
	if payload.SessionID == "" {
		return "", errors.New("service returned no session id")
	}
	return payload.SessionID, nil
}

// StreamMessage submits one turn and drains the reply stream, surfacing
// each fragment to sink as it arrives. Any transport fault and the error
// event collapse into the same ErrTurnFailed result.
func (c *Client) StreamMessage(ctx context.Context, message, sessionID string, sink io.Writer) (Turn, error) {
	u, err := url.Parse(c.baseURL + "/chat/stream")
	if err != nil {
		return Turn{}, fmt.Errorf("%w: %v", ErrTurnFailed, err)
	}

	q := u.Query()
	q.Set("message", message)
	if sessionID != "" {
		q.Set("session_id", sessionID)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Turn{}, fmt.Errorf("%w: %v", ErrTurnFailed, err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Turn{}, fmt.Errorf("%w: %v", ErrTurnFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Turn{}, fmt.Errorf("%w: unexpected status %s", ErrTurnFailed, resp.Status)
	}

	return c.drain(resp.Body, sink)
}

// drain reads the line stream until a terminal event or stream close.
func (c *Client) drain(body io.Reader, sink io.Writer) (Turn, error) {
	scanner := bufio.NewScanner(body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 512*1024)

	var turn Turn
	var fragments []string
	sessionPending := false

	for scanner.Scan() {
		event := ParseLine(scanner.Text())
		switch event.Kind {
		case EventSession:
			sessionPending = true
		case EventContent:
			if sessionPending {
				turn.SessionID = event.Text
				sessionPending = false
				continue
			}
			if len(fragments) > 0 && c.spacing {
				fmt.Fprint(sink, " ")
			}
			fmt.Fprint(sink, event.Text)
			fragments = append(fragments, event.Text)
		case EventDone:
			// Keep-alive sentinel, not content and not termination.
		case EventEnd:
			fmt.Fprintln(sink)
			turn.Reply = c.join(fragments)
			return turn, nil
		case EventError:
			return Turn{}, fmt.Errorf("%w: service reported a stream error", ErrTurnFailed)
		}
	}

	if err := scanner.Err(); err != nil {
		return Turn{}, fmt.Errorf("%w: %v", ErrTurnFailed, err)
	}

	// Clean close without a terminal event drains the turn normally.
	fmt.Fprintln(sink)
	turn.Reply = c.join(fragments)
	return turn, nil
}

func (c *Client) join(fragments []string) string {
	if c.spacing {
		return strings.Join(fragments, " ")
	}
	return strings.Join(fragments, "")
}
