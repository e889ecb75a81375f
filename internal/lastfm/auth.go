package lastfm

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"
)

const (
	// DefaultCallbackAddr lets the kernel pick a free loopback port.
	DefaultCallbackAddr = "127.0.0.1:0"

	// AuthTimeout bounds how long WaitForToken waits for the user.
	AuthTimeout = 5 * time.Minute
)

// ErrAuthTimeout is returned when the user did not approve access in time.
var ErrAuthTimeout = errors.New("timed out waiting for last.fm authorization")

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head><title>scrobsync - Last.fm</title></head>
<body style="font-family: sans-serif; text-align: center; padding: 50px;">
{{if .OK}}<h1>Account linked</h1>
<p>You can close this window and return to your terminal.</p>
{{else}}<h1>Linking failed</h1>
<p>Last.fm did not send a token. Run <code>scrobsync auth</code> again.</p>
{{end}}</body>
</html>
`))

// AuthServer receives the web-auth redirect carrying the request token.
type AuthServer struct {
	server *http.Server
	addr   net.Addr
	tokens chan string
	done   chan struct{}
}

// StartAuthServer listens on addr and serves /callback until Shutdown.
// The first token delivered is kept; later callbacks are answered but dropped.
func StartAuthServer(addr string) (*AuthServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for auth callback on %s: %w", addr, err)
	}

	as := &AuthServer{
		addr:   ln.Addr(),
		tokens: make(chan string, 1),
		done:   make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", as.handleCallback)
	as.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		defer close(as.done)
		_ = as.server.Serve(ln)
	}()

	return as, nil
}

func (as *AuthServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if token == "" {
		w.WriteHeader(http.StatusBadRequest)
	}
	_ = callbackPage.Execute(w, struct{ OK bool }{OK: token != ""})

	select {
	case as.tokens <- token:
	default:
	}
}

// TokenChan returns the channel that receives the auth token.
func (as *AuthServer) TokenChan() <-chan string {
	return as.tokens
}

// CallbackURL is the address Last.fm should redirect to after approval.
func (as *AuthServer) CallbackURL() string {
	return "http://" + as.addr.String() + "/callback"
}

// WaitForToken blocks until the callback delivers a token, ctx ends or
// timeout elapses.
func WaitForToken(ctx context.Context, tokens <-chan string, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case token := <-tokens:
		if token == "" {
			return "", errors.New("authorization callback carried no token")
		}
		return token, nil
	case <-timer.C:
		return "", ErrAuthTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Shutdown stops the server and waits for its serve loop to exit.
func (as *AuthServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = as.server.Shutdown(ctx)
	<-as.done
}

// OpenBrowser opens the given URL in the default browser.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
