// Package hostclient speaks the host document-object protocol over HTTP.
package hostclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/dgallion1/notegest/internal/remote"
)

// Options tune the HTTP transport.
type Options struct {
	Timeout time.Duration
	// HTTP2 negotiates HTTP/2 on TLS connections.
	HTTP2 bool
}

// Client talks to a host bridge (POST /api/host/sessions,
// POST /api/host/sessions/{id}/sync and DELETE /api/host/sessions/{id}).
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func New(baseURL, apiKey string, opts Options) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.HTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, fmt.Errorf("configure http2: %w", err)
		}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
	}, nil
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

// OpenSession asks the host for a new session and returns its id.
func (c *Client) OpenSession(ctx context.Context) (string, error) {
	var out sessionResponse
	if err := c.do(ctx, http.MethodPost, "/api/host/sessions", nil, &out, http.StatusOK, http.StatusCreated); err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	if out.SessionID == "" {
		return "", fmt.Errorf("open session: host returned no session id")
	}
	return out.SessionID, nil
}

// NewSession opens a session and returns a host bound to it.
func (c *Client) NewSession(ctx context.Context) (remote.Host, string, error) {
	id, err := c.OpenSession(ctx)
	if err != nil {
		return nil, "", err
	}
	return c.Session(id), id, nil
}

// CloseSession ends session id on the host.
func (c *Client) CloseSession(ctx context.Context, id string) error {
	path := "/api/host/sessions/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil, http.StatusOK, http.StatusNoContent); err != nil {
		return fmt.Errorf("close session %s: %w", id, err)
	}
	return nil
}

// Session returns a remote.Host that syncs against session id.
func (c *Client) Session(id string) *Session {
	return &Session{c: c, id: id}
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// Session is one host session reached over HTTP.
type Session struct {
	c  *Client
	id string
}

func (s *Session) ID() string { return s.id }

func (s *Session) Sync(ctx context.Context, req *remote.SyncRequest) (*remote.SyncResponse, error) {
	if req.Session == "" {
		r := *req
		r.Session = s.id
		req = &r
	}
	var out remote.SyncResponse
	path := "/api/host/sessions/" + url.PathEscape(s.id) + "/sync"
	if err := s.c.do(ctx, http.MethodPost, path, req, &out, http.StatusOK); err != nil {
		return nil, fmt.Errorf("sync session %s: %w", s.id, err)
	}
	return &out, nil
}

// do sends in as JSON and decodes the response into out unless out is nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any, ok ...int) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	accepted := false
	for _, code := range ok {
		accepted = accepted || resp.StatusCode == code
	}
	if !accepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
