/*
Package kelio is a screen-scraping client for the Kelio time-tracking portal.

PURPOSE:
  Logs in through the portal's HTML form and pulls the badge history page,
  returning raw {DD/MM/YYYY: [HH:MM...]} fragments for accounting.Merge.

PROTOCOL:
  1. GET  /open/login                     -> hidden input _csrf_bodet
  2. POST /open/j_spring_security_check   -> JSESSIONID cookie + Location
  3. GET  /open/homepage?ACTION=intranet&asked=3&header=0&offset=N
     The portal returns four day records per page, so a full fetch reads
     offsets 0, 4 and 8.

  Redirects are never followed: the login answer is judged on the redirect
  response itself.

SEE ALSO:
  - parse.go: HTML extraction
  - accounting/merge.go: consumer of the fragments
*/
package kelio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/quelio/engine/accounting"
)

// PageOffsets are the record offsets of one full fetch.
var PageOffsets = []int{0, 4, 8}

const sessionCookie = "JSESSIONID"

// defaultHeaders mimic a desktop browser; the portal rejects bare clients.
var defaultHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
	"Accept-Language":           "fr,es;q=0.9,it;q=0.8,en;q=0.7",
	"Cache-Control":             "no-cache",
	"DNT":                       "1",
	"Pragma":                    "no-cache",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "same-origin",
	"Sec-Fetch-User":            "?1",
	"Upgrade-Insecure-Requests": "1",
	"User-Agent":                "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
}

// Session is an authenticated portal session.
type Session struct {
	ID string
}

// Client talks to one portal instance.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its redirect policy
// is overridden.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		copied := *hc
		c.http = &copied
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client for the portal at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c
}

// =============================================================================
// LOGIN
// =============================================================================

// Login authenticates and returns the portal session.
func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	page, err := c.get(ctx, "/open/login", nil)
	if err != nil {
		return Session{}, err
	}
	defer page.Body.Close()

	if page.StatusCode != http.StatusOK {
		return Session{}, &StatusError{Op: "login page", Status: page.StatusCode}
	}
	csrf, err := parseCSRF(page.Body)
	if err != nil {
		return Session{}, err
	}

	form := url.Values{
		"ACTION":      {"ACTION_VALIDER_LOGIN"},
		"username":    {username},
		"password":    {password},
		"_csrf_bodet": {csrf},
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/open/j_spring_security_check", strings.NewReader(form.Encode()))
	if err != nil {
		return Session{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", c.baseURL)
	req.Header.Set("Referer", c.baseURL+"/open/login?logout=1")
	for _, ck := range page.Cookies() {
		req.AddCookie(ck)
	}

	resp, err := c.do(req)
	if err != nil {
		return Session{}, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	var sessionID string
	for _, ck := range resp.Cookies() {
		if ck.Name == sessionCookie {
			sessionID = ck.Value
		}
	}
	if sessionID == "" || resp.Header.Get("Location") == "" {
		c.logger.Debug("portal login rejected", "user", username, "status", resp.StatusCode)
		return Session{}, ErrLoginFailed
	}

	c.logger.Debug("portal login ok", "user", username)
	return Session{ID: sessionID}, nil
}

// =============================================================================
// HOURS
// =============================================================================

// FetchHours reads one page of badge history.
func (c *Client) FetchHours(ctx context.Context, session Session, offset int) (accounting.RawFragment, error) {
	query := url.Values{
		"ACTION": {"intranet"},
		"asked":  {"3"},
		"header": {"0"},
		"offset": {strconv.Itoa(offset)},
	}
	resp, err := c.get(ctx, "/open/homepage?"+query.Encode(), &http.Cookie{Name: sessionCookie, Value: session.ID})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Op: fmt.Sprintf("hours page offset %d", offset), Status: resp.StatusCode}
	}
	fragment, err := ParseHours(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	c.logger.Debug("fetched hours page", "offset", offset, "days", len(fragment))
	return fragment, nil
}

// FetchAllHours reads every page in PageOffsets, in order.
func (c *Client) FetchAllHours(ctx context.Context, session Session) ([]accounting.RawFragment, error) {
	fragments := make([]accounting.RawFragment, 0, len(PageOffsets))
	for _, offset := range PageOffsets {
		fragment, err := c.FetchHours(ctx, session, offset)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, fragment)
	}
	return fragments, nil
}

// =============================================================================
// HTTP HELPERS
// =============================================================================

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("kelio: build request: %w", err)
	}
	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}
	return req, nil
}

func (c *Client) get(ctx context.Context, path string, cookie *http.Cookie) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrUpstream, req.Method, req.URL.Path, err)
	}
	return resp, nil
}
