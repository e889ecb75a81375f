package lastfm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"testing/synctest"
	"time"
)

func TestWaitForToken_ReceivesToken(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		tokens := make(chan string, 1)
		tokens <- "test-token-123"

		token, err := WaitForToken(context.Background(), tokens, AuthTimeout)
		if err != nil {
			t.Fatalf("WaitForToken failed: %v", err)
		}
		if token != "test-token-123" {
			t.Errorf("Token = %q, want %q", token, "test-token-123")
		}
	})
}

func TestWaitForToken_Timeout(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		tokens := make(chan string)

		type result struct {
			token string
			err   error
		}
		done := make(chan result)
		go func() {
			token, err := WaitForToken(context.Background(), tokens, AuthTimeout)
			done <- result{token, err}
		}()

		// Advance time past the 5 minute timeout
		time.Sleep(AuthTimeout + time.Second)
		synctest.Wait()

		res := <-done
		if !errors.Is(res.err, ErrAuthTimeout) {
			t.Fatalf("err = %v, want ErrAuthTimeout", res.err)
		}
	})
}

func TestWaitForToken_TokenBeforeTimeout(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		tokens := make(chan string)

		done := make(chan string)
		go func() {
			token, _ := WaitForToken(context.Background(), tokens, AuthTimeout)
			done <- token
		}()

		// Wait 2 minutes then send token (before 5 min timeout)
		time.Sleep(2 * time.Minute)
		tokens <- "delayed-token"

		if got := <-done; got != "delayed-token" {
			t.Errorf("Token = %q, want %q", got, "delayed-token")
		}
	})
}

func TestWaitForToken_EmptyToken(t *testing.T) {
	tokens := make(chan string, 1)
	tokens <- ""

	if _, err := WaitForToken(context.Background(), tokens, time.Minute); err == nil {
		t.Error("expected error for empty token")
	}
}

func TestWaitForToken_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WaitForToken(ctx, make(chan string), time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestAuthServer_DeliversCallbackToken(t *testing.T) {
	as, err := StartAuthServer(DefaultCallbackAddr)
	if err != nil {
		t.Fatalf("StartAuthServer: %v", err)
	}
	defer as.Shutdown()

	resp, err := http.Get(as.CallbackURL() + "?token=abc")
	if err != nil {
		t.Fatalf("GET callback: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), "Account linked") {
		t.Errorf("body = %q, want success page", body)
	}

	token, err := WaitForToken(context.Background(), as.TokenChan(), time.Second)
	if err != nil {
		t.Fatalf("WaitForToken: %v", err)
	}
	if token != "abc" {
		t.Errorf("token = %q, want %q", token, "abc")
	}
}

func TestAuthServer_MissingTokenIsBadRequest(t *testing.T) {
	as, err := StartAuthServer(DefaultCallbackAddr)
	if err != nil {
		t.Fatalf("StartAuthServer: %v", err)
	}
	defer as.Shutdown()

	resp, err := http.Get(as.CallbackURL())
	if err != nil {
		t.Fatalf("GET callback: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
