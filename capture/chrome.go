package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tokenlens/tokenlens/config"
)

// chromeCandidates are the binaries tried when no chrome_path is configured
var chromeCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
}

const devtoolsStartupTimeout = 15 * time.Second

// ChromeLauncher starts headless Chrome processes with remote debugging
// enabled and connects a DevTools session to each.
type ChromeLauncher struct {
	cfg config.CaptureConfig
}

// NewChromeLauncher creates a launcher from the capture configuration
func NewChromeLauncher(cfg *config.Config) *ChromeLauncher {
	return &ChromeLauncher{cfg: cfg.Capture}
}

// Launch implements Launcher
func (l *ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	binary, err := l.findBinary()
	if err != nil {
		return nil, err
	}

	port, err := freePort()
	if err != nil {
		return nil, fmt.Errorf("picking debugging port: %w", err)
	}

	userDataDir, err := os.MkdirTemp("", "tokenlens-chrome-")
	if err != nil {
		return nil, fmt.Errorf("creating user data dir: %w", err)
	}

	cmd := exec.Command(binary,
		"--headless=new",
		"--no-sandbox",
		"--disable-gpu",
		"--disable-dev-shm-usage",
		fmt.Sprintf("--remote-debugging-port=%d", port),
		fmt.Sprintf("--window-size=%d,%d", l.cfg.ViewportWidth, l.cfg.ViewportHeight),
		"--user-data-dir="+userDataDir,
		"about:blank",
	)
	if err := cmd.Start(); err != nil {
		os.RemoveAll(userDataDir)
		return nil, fmt.Errorf("starting %s: %w", binary, err)
	}

	wsURL, err := waitForDevtools(ctx, port)
	if err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		os.RemoveAll(userDataDir)
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		os.RemoveAll(userDataDir)
		return nil, fmt.Errorf("connecting DevTools websocket: %w", err)
	}

	session := newChromeSession(conn, cmd, userDataDir)
	if _, err := session.call(ctx, "Page.enable", nil); err != nil {
		session.Close()
		return nil, fmt.Errorf("enabling page domain: %w", err)
	}
	return session, nil
}

func (l *ChromeLauncher) findBinary() (string, error) {
	if l.cfg.ChromePath != "" {
		return l.cfg.ChromePath, nil
	}
	for _, candidate := range chromeCandidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no chrome binary found, set capture.chrome_path")
}

// freePort asks the kernel for an unused TCP port
func freePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// waitForDevtools polls the debugging endpoint until Chrome is ready and
// returns the websocket URL of a fresh page target.
func waitForDevtools(ctx context.Context, port int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, devtoolsStartupTimeout)
	defer cancel()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		wsURL, err := newPageTarget(ctx, base)
		if err == nil {
			return wsURL, nil
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("devtools endpoint never came up on port %d: %w", port, ctx.Err())
		case <-ticker.C:
		}
	}
}

// newPageTarget creates a blank page target and returns its debugger URL
func newPageTarget(ctx context.Context, base string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, base+"/json/new?about:blank", nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("devtools /json/new: status %d: %s", resp.StatusCode, string(body))
	}

	var target struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.Unmarshal(body, &target); err != nil {
		return "", err
	}
	if target.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("devtools target has no websocket url")
	}
	return target.WebSocketDebuggerURL, nil
}
