package puzzleapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	acceptHintPath = "accept_hint"
	answerPath     = "an"
	csrfHeader     = "X-CSRFToken"
	csrfCookieName = "csrftoken"
	maxErrorBody   = 64 << 10
)

// Credential decorates outgoing requests with the player's session.
type Credential interface {
	Apply(header http.Header)
}

// Config configures a Client.
type Config struct {
	PageURL    string
	CSRFToken  string
	Credential Credential
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client calls the hunt server's per-puzzle HTTP endpoints.
type Client struct {
	page       *url.URL
	csrfToken  string
	credential Credential
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient validates the page URL and returns a client.
func NewClient(cfg Config) (*Client, error) {
	page, err := ParsePageURL(cfg.PageURL)
	if err != nil {
		return nil, err
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		page:       page,
		csrfToken:  strings.TrimSpace(cfg.CSRFToken),
		credential: cfg.Credential,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// ParsePageURL parses an absolute http(s) puzzle page URL. Relative
// endpoints resolve against it, so a trailing slash is added when missing.
func ParsePageURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: page url is required", ErrInvalidConfig)
	}
	page, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if page.Scheme != "http" && page.Scheme != "https" {
		return nil, fmt.Errorf("%w: page url scheme %q is not http(s)", ErrInvalidConfig, page.Scheme)
	}
	if page.Host == "" {
		return nil, fmt.Errorf("%w: page url has no host", ErrInvalidConfig)
	}
	if !strings.HasSuffix(page.Path, "/") {
		page.Path += "/"
	}
	page.RawQuery = ""
	page.Fragment = ""
	return page, nil
}

// SocketURL returns the puzzle WebSocket endpoint for a page: the same host
// with a ws(s) scheme and the page path prefixed by /ws.
func SocketURL(page *url.URL) string {
	socket := *page
	socket.Scheme = "ws"
	if page.Scheme == "https" {
		socket.Scheme = "wss"
	}
	socket.Path = "/ws" + page.Path
	socket.RawPath = ""
	return socket.String()
}

// PageURL returns the normalized page URL.
func (c *Client) PageURL() *url.URL {
	page := *c.page
	return &page
}

// AcceptHint records that the user chose to reveal a hint.
func (c *Client) AcceptHint(ctx context.Context, hintID string) error {
	hintID = strings.TrimSpace(hintID)
	if hintID == "" {
		return newAPIError(operationAcceptHint, reasonValidation, 0, "", fmt.Errorf("%w: hint id is required", ErrHintRejected))
	}
	response, err := c.postForm(ctx, operationAcceptHint, acceptHintPath, url.Values{"id": {hintID}})
	if err != nil {
		return err
	}
	defer response.Body.Close()

	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(response.Body, maxErrorBody)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return c.logFailure(newAPIError(operationAcceptHint, reasonDecode, response.StatusCode, "", fmt.Errorf("%w: %w", ErrRequestFailed, err)))
	}
	if response.StatusCode >= http.StatusBadRequest || body.Error != "" {
		return c.logFailure(newAPIError(operationAcceptHint, reasonRejected, response.StatusCode, body.Error, ErrHintRejected))
	}
	return nil
}

func (c *Client) postForm(ctx context.Context, operation, path string, form url.Values) (*http.Response, error) {
	endpoint := c.page.ResolveReference(&url.URL{Path: path})
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, newAPIError(operation, reasonBuildRequest, 0, "", fmt.Errorf("%w: %w", ErrRequestFailed, err))
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	request.Header.Set("Accept", "application/json")
	request.Header.Set("Referer", c.page.String())
	if c.credential != nil {
		c.credential.Apply(request.Header)
	}
	if c.csrfToken != "" {
		request.Header.Set(csrfHeader, c.csrfToken)
		appendCookie(request.Header, csrfCookieName, c.csrfToken)
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, c.logFailure(newAPIError(operation, reasonTransport, 0, "", fmt.Errorf("%w: %w", ErrRequestFailed, err)))
	}
	return response, nil
}

func (c *Client) logFailure(err *APIError) error {
	c.logger.Warn("hunt server call failed",
		zap.String("operation", err.operation),
		zap.String("reason", err.reason),
		zap.Int("status", err.Status()),
		zap.String("server_message", err.ServerMessage()),
		zap.Error(err.err),
	)
	return err
}

// appendCookie adds a cookie to the single Cookie header the server reads,
// keeping any cookies already set there.
func appendCookie(header http.Header, name, value string) {
	cookie := (&http.Cookie{Name: name, Value: value}).String()
	if existing := header.Get("Cookie"); existing != "" {
		header.Set("Cookie", existing+"; "+cookie)
		return
	}
	header.Set("Cookie", cookie)
}
