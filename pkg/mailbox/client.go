// Package mailbox provides a client for the mail relay service that fronts
// the user's email provider. The relay exposes search and fetch endpoints
// over the user's connected account; this client adds rate limiting,
// charset-tolerant body decoding, and the retry error taxonomy.
package mailbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"

	"github.com/arda-labs/reorder-cli/internal/resilience"
)

// Provider defines the email operations the orchestrator needs.
type Provider interface {
	// Search returns refs for messages matching the provider query, in the
	// provider's listing order, capped at max.
	Search(ctx context.Context, query string, max int) ([]EmailRef, error)

	// Fetch retrieves one message with its decoded body.
	Fetch(ctx context.Context, id string) (*Email, error)
}

// Option configures the mailbox client.
type Option func(*httpClient)

// WithBaseURL sets a custom relay base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a relay client authenticated with the user's token.
func NewClient(token string, opts ...Option) Provider {
	c := &httpClient{
		token:   token,
		baseURL: "https://relay.arda.app/v1",
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchResponse struct {
	Messages []EmailRef `json:"messages"`
}

func (c *httpClient) Search(ctx context.Context, query string, max int) ([]EmailRef, error) {
	params := url.Values{}
	params.Set("q", query)
	if max > 0 {
		params.Set("max_results", strconv.Itoa(max))
	}

	var resp searchResponse
	if err := c.getJSON(ctx, "/messages?"+params.Encode(), &resp); err != nil {
		return nil, eris.Wrap(err, "mailbox: search")
	}
	if max > 0 && len(resp.Messages) > max {
		resp.Messages = resp.Messages[:max]
	}
	return resp.Messages, nil
}

type messageResponse struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
	Snippet string `json:"snippet"`
	Body    string `json:"body"`
	Charset string `json:"charset,omitempty"`
}

func (c *httpClient) Fetch(ctx context.Context, id string) (*Email, error) {
	var resp messageResponse
	if err := c.getJSON(ctx, "/messages/"+url.PathEscape(id), &resp); err != nil {
		return nil, eris.Wrapf(err, "mailbox: fetch %s", id)
	}

	body, err := decodeBody(resp.Body, resp.Charset)
	if err != nil {
		return nil, eris.Wrapf(err, "mailbox: decode body %s", id)
	}

	date, err := time.Parse(time.RFC3339, resp.Date)
	if err != nil {
		// Fall back to the RFC 2822 format some upstream messages carry.
		date, err = time.Parse(time.RFC1123Z, resp.Date)
		if err != nil {
			return nil, eris.Wrapf(err, "mailbox: parse date %q", resp.Date)
		}
	}

	return &Email{
		ID:      resp.ID,
		From:    resp.From,
		Subject: resp.Subject,
		Date:    date,
		Snippet: resp.Snippet,
		Body:    body,
	}, nil
}

func (c *httpClient) getJSON(ctx context.Context, path string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read body")
	}
	return eris.Wrap(json.Unmarshal(data, out), "decode response")
}

// checkStatus maps HTTP failures onto the retry taxonomy: 401/403 are auth
// errors (never retried), 429 is a rate limit (retried with backoff by the
// caller), remaining 5xx-class statuses are transient.
func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return resilience.NewAuthError(fmt.Errorf("provider rejected credentials (HTTP %d): re-authenticate", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		return resilience.NewRateLimitError(
			fmt.Errorf("provider rate limit exceeded (HTTP 429)"),
			retryAfter(resp),
		)
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return resilience.NewTransientError(fmt.Errorf("provider error (HTTP %d)", resp.StatusCode), resp.StatusCode)
	default:
		return eris.Errorf("unexpected status %d", resp.StatusCode)
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

// decodeBody converts a non-UTF-8 body to UTF-8 using the declared charset.
func decodeBody(body, charset string) (string, error) {
	if body == "" || charset == "" || strings.EqualFold(charset, "utf-8") {
		return body, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return "", eris.Wrapf(err, "unknown charset %q", charset)
	}
	decoded, err := enc.NewDecoder().String(body)
	if err != nil {
		return "", eris.Wrapf(err, "decode charset %q", charset)
	}
	return decoded, nil
}
