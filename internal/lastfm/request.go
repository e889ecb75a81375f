package lastfm

import (
	"context"
	"crypto/md5" //nolint:gosec // Last.fm signatures are md5 by protocol
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
)

type errorResponse struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// signature computes api_sig: md5 over the sorted name/value pairs followed
// by the shared secret. format and callback are excluded.
func signature(params url.Values, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "format" || k == "callback" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(params.Get(k))
	}
	sb.WriteString(secret)

	sum := md5.Sum([]byte(sb.String())) //nolint:gosec // protocol requirement
	return hex.EncodeToString(sum[:])
}

// get performs an unsigned read call.
func (c *Client) get(ctx context.Context, method string, params url.Values) ([]byte, error) {
	params.Set("method", method)
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")

	return c.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	})
}

// post performs a signed write call on behalf of the session user.
func (c *Client) post(ctx context.Context, method string, params url.Values) ([]byte, error) {
	sk := c.SessionKey()
	if sk == "" {
		return nil, ErrNotAuthenticated
	}
	params.Set("method", method)
	params.Set("api_key", c.apiKey)
	params.Set("sk", sk)
	params.Set("api_sig", signature(params, c.apiSecret))
	params.Set("format", "json")

	return c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(params.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

func (c *Client) do(ctx context.Context, build func() (*http.Request, error)) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := build()
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		// Errors come back as {"error": N, "message": "..."} with 200 or 4xx.
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != 0 {
			return nil, &APIError{Code: apiErr.Error, Message: apiErr.Message}
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return body, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return body, err
}
