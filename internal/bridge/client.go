package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultRequestTimeout bounds one round trip to the child process.
const DefaultRequestTimeout = 30 * time.Second

// maxResponseLine bounds one response line read from the child.
const maxResponseLine = 16 << 20

// Client manages a persistent child process. The process is started on
// first use and restarted lazily on the next call after it exits.
// Requests carry unique ids; responses are matched through a pending
// table, so the child may answer out of order.
type Client struct {
	command string
	args    []string
	timeout time.Duration

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	pending map[string]chan Response
	running bool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRequestTimeout overrides the per-request timeout.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient creates a Client for the given command line. The child is
// not started until the first request.
func NewClient(command string, args []string, opts ...ClientOption) *Client {
	c := &Client{
		command: command,
		args:    args,
		timeout: DefaultRequestTimeout,
		pending: make(map[string]chan Response),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call sends one request and waits for its response. The payload is
// marshaled as JSON; the raw result is returned. A timeout or context
// cancellation rejects the request and discards any late response.
func (c *Client) Call(ctx context.Context, command string, payload any) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("bridge: marshal payload: %w", err)
	}
	req := Request{
		ID:      uuid.NewString(),
		Command: command,
		Payload: raw,
	}

	ch := make(chan Response, 1)
	if err := c.send(req, ch); err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if resp.Error != "" {
			if resp.Traceback != "" {
				return nil, fmt.Errorf("bridge: %s: %s\n%s", command, resp.Error, resp.Traceback)
			}
			return nil, fmt.Errorf("bridge: %s: %s", command, resp.Error)
		}
		return resp.Result, nil
	case <-timer.C:
		c.discard(req.ID)
		return nil, fmt.Errorf("bridge: %s: timeout after %s", command, c.timeout)
	case <-ctx.Done():
		c.discard(req.ID)
		return nil, ctx.Err()
	}
}

// send registers the pending entry and writes one request line,
// starting the child first if needed.
func (c *Client) send(req Request, ch chan Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		if err := c.start(); err != nil {
			return err
		}
	}

	line, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("bridge: marshal request: %w", err)
	}
	c.pending[req.ID] = ch
	if _, err := c.stdin.Write(append(line, '\n')); err != nil {
		delete(c.pending, req.ID)
		return fmt.Errorf("bridge: write request: %w", err)
	}
	return nil
}

// start launches the child process and its read loop. Caller holds the
// lock.
func (c *Client) start() error {
	cmd := exec.Command(c.command, c.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("bridge: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("bridge: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("bridge: start %s: %w", c.command, err)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.running = true
	go c.readLoop(stdout)
	return nil
}

// readLoop dispatches response lines to their pending channels. When
// the child's stdout closes, every in-flight request is rejected and
// the client is marked stopped so the next call restarts the child.
func (c *Client) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxResponseLine)

	for scanner.Scan() {
		var resp Response
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			log.Printf("bridge: malformed response line: %v", err)
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
		// A response with an unknown id was already rejected; drop it.
	}

	err := scanner.Err()
	c.mu.Lock()
	for id, ch := range c.pending {
		ch <- Response{ID: id, Error: exitMessage(err)}
		delete(c.pending, id)
	}
	c.running = false
	cmd := c.cmd
	c.cmd = nil
	c.mu.Unlock()

	if cmd != nil {
		// Reap the process to avoid leaving a zombie.
		_ = cmd.Wait()
	}
}

func exitMessage(err error) string {
	if err != nil {
		return fmt.Sprintf("child process failed: %v", err)
	}
	return "child process exited"
}

// discard drops a pending entry after a timeout or cancellation; a
// late response for it will be ignored by the read loop.
func (c *Client) discard(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Shutdown asks the child to exit and closes its stdin. Safe to call
// when the child was never started.
func (c *Client) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return nil
	}
	line, _ := json.Marshal(Request{ID: uuid.NewString(), Command: CommandShutdown})
	_, _ = c.stdin.Write(append(line, '\n'))
	return c.stdin.Close()
}
