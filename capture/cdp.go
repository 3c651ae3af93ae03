package capture

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// domPollInterval is how often WaitReady re-evaluates the marker selector
const domPollInterval = 250 * time.Millisecond

// cdpMessage is one DevTools protocol frame. Command responses carry the
// id of their request; events carry a method and no id.
type cdpMessage struct {
	ID     int64           `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params interface{}     `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *cdpError       `json:"error,omitempty"`
}

type cdpError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// chromeSession drives one headless Chrome page over the DevTools
// protocol websocket. It implements Browser.
type chromeSession struct {
	conn        *websocket.Conn
	cmd         *exec.Cmd
	userDataDir string

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan cdpMessage

	done      chan struct{}
	closeOnce sync.Once
}

func newChromeSession(conn *websocket.Conn, cmd *exec.Cmd, userDataDir string) *chromeSession {
	session := &chromeSession{
		conn:        conn,
		cmd:         cmd,
		userDataDir: userDataDir,
		pending:     make(map[int64]chan cdpMessage),
		done:        make(chan struct{}),
	}
	go session.readLoop()
	return session
}

// readLoop dispatches command responses to their waiting callers.
// Protocol events are not consumed anywhere and are dropped.
func (s *chromeSession) readLoop() {
	defer close(s.done)
	for {
		var msg cdpMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.ID == 0 {
			continue
		}

		s.mu.Lock()
		ch, ok := s.pending[msg.ID]
		if ok {
			delete(s.pending, msg.ID)
		}
		s.mu.Unlock()

		if ok {
			ch <- msg
		}
	}
}

// call executes one DevTools command and waits for its response
func (s *chromeSession) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	ch := make(chan cdpMessage, 1)
	s.pending[id] = ch
	s.mu.Unlock()

	s.writeMu.Lock()
	err := s.conn.WriteJSON(cdpMessage{ID: id, Method: method, Params: params})
	s.writeMu.Unlock()
	if err != nil {
		s.dropPending(id)
		return nil, fmt.Errorf("%s: writing command: %w", method, err)
	}

	select {
	case msg := <-ch:
		if msg.Error != nil {
			return nil, fmt.Errorf("%s: protocol error %d: %s", method, msg.Error.Code, msg.Error.Message)
		}
		return msg.Result, nil
	case <-s.done:
		return nil, fmt.Errorf("%s: session connection closed", method)
	case <-ctx.Done():
		s.dropPending(id)
		return nil, ctx.Err()
	}
}

func (s *chromeSession) dropPending(id int64) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// Navigate implements Browser
func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	result, err := s.call(ctx, "Page.navigate", map[string]interface{}{"url": url})
	if err != nil {
		return err
	}

	var nav struct {
		ErrorText string `json:"errorText"`
	}
	if err := json.Unmarshal(result, &nav); err != nil {
		return fmt.Errorf("parsing navigate result: %w", err)
	}
	if nav.ErrorText != "" {
		return fmt.Errorf("navigation to %s failed: %s", url, nav.ErrorText)
	}
	return nil
}

// WaitReady implements Browser by polling the DOM for selector until it
// appears or ctx expires.
func (s *chromeSession) WaitReady(ctx context.Context, selector string) error {
	expression := fmt.Sprintf("document.querySelector(%q) !== null", selector)

	ticker := time.NewTicker(domPollInterval)
	defer ticker.Stop()

	for {
		result, err := s.call(ctx, "Runtime.evaluate", map[string]interface{}{
			"expression":    expression,
			"returnByValue": true,
		})
		if err != nil {
			return err
		}

		var eval struct {
			Result struct {
				Value bool `json:"value"`
			} `json:"result"`
		}
		if err := json.Unmarshal(result, &eval); err != nil {
			return fmt.Errorf("parsing evaluate result: %w", err)
		}
		if eval.Result.Value {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("marker %q never appeared: %w", selector, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Screenshot implements Browser
func (s *chromeSession) Screenshot(ctx context.Context) ([]byte, error) {
	result, err := s.call(ctx, "Page.captureScreenshot", map[string]interface{}{"format": "png"})
	if err != nil {
		return nil, err
	}

	var shot struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(result, &shot); err != nil {
		return nil, fmt.Errorf("parsing screenshot result: %w", err)
	}
	png, err := base64.StdEncoding.DecodeString(shot.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot data: %w", err)
	}
	return png, nil
}

// Close implements Browser. Safe for repeated calls.
func (s *chromeSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.conn.Close()
		if s.cmd != nil && s.cmd.Process != nil {
			s.cmd.Process.Kill()
			err = s.cmd.Wait()
		}
		if s.userDataDir != "" {
			os.RemoveAll(s.userDataDir)
		}
	})
	return err
}
