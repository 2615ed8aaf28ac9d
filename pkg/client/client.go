// Package client is the REST client for the document management backend.
// Every request goes through an Authorizer that attaches the session's
// bearer token, and every failure is returned as a classified dmserr.Error.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yosida95/uritemplate/v3"

	"github.com/txn2/dms-client/pkg/auth"
	"github.com/txn2/dms-client/pkg/dmserr"
)

// DefaultTimeout bounds a single request when Config.Timeout is unset.
const DefaultTimeout = 30 * time.Second

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. https://dms.example.com/api/v1.
	BaseURL string

	// Timeout bounds each request. Downloads stream within the same bound.
	Timeout time.Duration

	// UserAgent is sent on every request when set.
	UserAgent string

	// Credentials yields the current bearer token.
	Credentials auth.TokenSource

	// Transport overrides the underlying round tripper (tests).
	Transport http.RoundTripper
}

// Client calls the backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("client: base url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("client: parsing base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: base url %q must be absolute", cfg.BaseURL)
	}
	if cfg.Credentials == nil {
		return nil, errors.New("client: credentials source is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
			Transport: &Authorizer{
				Source:    cfg.Credentials,
				Next:      cfg.Transport,
				UserAgent: cfg.UserAgent,
			},
		},
	}, nil
}

// call describes one request.
type call struct {
	method string
	tmpl   *uritemplate.Template

	// path values are required; query values are dropped when empty.
	path  map[string]string
	query map[string]string

	// json is encoded as the body when set; otherwise body is sent as-is.
	json        any
	body        io.Reader
	contentType string
}

// url expands the call's template against the base URL.
func (c *Client) url(k call) (string, error) {
	values := uritemplate.Values{}
	for name, v := range k.path {
		if strings.TrimSpace(v) == "" {
			return "", errRequired(name)
		}
		values.Set(name, uritemplate.String(v))
	}
	for name, v := range k.query {
		if v != "" {
			values.Set(name, uritemplate.String(v))
		}
	}
	p, err := k.tmpl.Expand(values)
	if err != nil {
		return "", fmt.Errorf("expanding %s: %w", k.tmpl.Raw(), err)
	}
	return c.baseURL + p, nil
}

// send performs the call and returns the successful response. The caller
// closes its body.
func (c *Client) send(ctx context.Context, k call) (*http.Response, error) {
	target, err := c.url(k)
	if err != nil {
		return nil, err
	}

	body := k.body
	contentType := k.contentType
	if k.json != nil {
		buf, err := json.Marshal(k.json)
		if err != nil {
			return nil, fmt.Errorf("encoding %s body: %w", k.tmpl.Raw(), err)
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, k.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s %s: %w", k.method, req.URL.Path, ctxErr)
		}
		return nil, transportError(k.method, req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer func() { _ = resp.Body.Close() }()
		return nil, readError(resp)
	}
	return resp, nil
}

// do performs the call and decodes a JSON response into out when out is
// non-nil.
func (c *Client) do(ctx context.Context, k call, out any) error {
	resp, err := c.send(ctx, k)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return dmserr.Wrap(dmserr.KindTransient, "unreadable server response",
			fmt.Errorf("decoding %s %s: %w", k.method, k.tmpl.Raw(), err))
	}
	return nil
}

// copyTo performs the call and streams the response body into w.
func (c *Client) copyTo(ctx context.Context, k call, w io.Writer) (int64, error) {
	resp, err := c.send(ctx, k)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, dmserr.Wrap(dmserr.KindTransient, "download interrupted",
			fmt.Errorf("reading %s: %w", k.tmpl.Raw(), err))
	}
	return n, nil
}

func errRequired(name string) error {
	return dmserr.New(dmserr.KindValidation, name+" is required")
}
