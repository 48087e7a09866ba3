package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrClosed is returned when the daemon hangs up.
var ErrClosed = errors.New("connection closed")

// DialTimeout bounds how long Dial waits for the socket.
const DialTimeout = 2 * time.Second

const (
	initialLineBuffer = 64 * 1024
	// Audio chunks make event lines far longer than text events.
	maxLineBuffer = 8 * 1024 * 1024
)

// SocketPath returns the default daemon socket path.
func SocketPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "podium", "speechd.sock")
	}
	return filepath.Join(os.TempDir(), "podium-speechd.sock")
}

// Client speaks newline-delimited JSON with the speech daemon. A client is
// used either for request/response commands or, after Subscribe, as an
// event stream.
type Client struct {
	conn  net.Conn
	lines *bufio.Scanner
	mu    sync.Mutex
}

// Connect dials socketPath with DialTimeout.
func Connect(socketPath string) (*Client, error) {
	return Dial(context.Background(), socketPath)
}

// Dial connects to the daemon socket, giving up when ctx is done or after
// DialTimeout.
func Dial(ctx context.Context, socketPath string) (*Client, error) {
	d := net.Dialer{Timeout: DialTimeout}
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}

	lines := bufio.NewScanner(conn)
	lines.Buffer(make([]byte, initialLineBuffer), maxLineBuffer)
	return &Client{conn: conn, lines: lines}, nil
}

// Close shuts down the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// SendCommand writes cmd and waits for its response line.
func (c *Client) SendCommand(cmd Command) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(cmd)
	if err != nil {
		return Response{}, fmt.Errorf("marshal command: %w", err)
	}
	if _, err := c.conn.Write(append(data, '\n')); err != nil {
		return Response{}, fmt.Errorf("write command %s: %w", cmd.Cmd, err)
	}

	var resp Response
	if err := c.decodeLine(&resp); err != nil {
		return Response{}, fmt.Errorf("%s response: %w", cmd.Cmd, err)
	}
	return resp, nil
}

// Subscribe asks the daemon to stream the named events (all when empty) on
// this connection. After it returns, read with ReadEvent only.
func (c *Client) Subscribe(events ...string) error {
	resp, err := c.SendCommand(Command{Cmd: CmdSubscribe, Events: events})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("subscribe: %s", resp.Error)
	}
	return nil
}

// ReadEvent blocks until the next event line arrives.
func (c *Client) ReadEvent() (Event, error) {
	var ev Event
	if err := c.decodeLine(&ev); err != nil {
		return Event{}, fmt.Errorf("event: %w", err)
	}
	return ev, nil
}

// decodeLine reads one line into v. A clean hang-up is reported as
// ErrClosed.
func (c *Client) decodeLine(v any) error {
	if !c.lines.Scan() {
		if err := c.lines.Err(); err != nil {
			return err
		}
		return ErrClosed
	}
	if err := json.Unmarshal(c.lines.Bytes(), v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
