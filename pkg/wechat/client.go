package wechat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apierrors "mpscraper/pkg/errors"
	"mpscraper/pkg/logger"
	"mpscraper/pkg/retry"
)

// Client is a thin HTTP client for the Official Account platform. It carries
// no session state of its own: callers pass credential cookies per request,
// except when a cookie jar is installed for the interactive login flow.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	maxRetries int
	logger     logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the platform origin. Used by tests to point the
// client at a local server.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithCookieJar installs a cookie jar on the underlying HTTP client. The
// login flow needs one because the platform sets session cookies across
// several redirected requests.
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) {
		c.httpClient.Jar = jar
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.headers["User-Agent"] = ua
	}
}

// WithMaxRetries sets how many times transient failures are retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// NewClient creates a platform client with browser-like default headers.
func NewClient(log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers: map[string]string{
			"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			"Accept":          "application/json, text/plain, */*",
			"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
			"Referer":         DefaultBaseURL + "/",
		},
		baseURL:    DefaultBaseURL,
		maxRetries: 2,
		logger:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the platform origin this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Jar returns the cookie jar installed on the client, if any.
func (c *Client) Jar() http.CookieJar {
	return c.httpClient.Jar
}

// Response is a fully-read HTTP response. FinalURL reflects any redirects
// that were followed, which the login flow inspects for the session token.
type Response struct {
	StatusCode int
	Body       []byte
	FinalURL   string
	Cookies    []*http.Cookie
}

// Get performs a GET request, following redirects, and reads the whole body.
// No status mapping is applied: login-flow pages answer 200 with HTML and
// the caller decides what the body means.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	return c.get(ctx, rawURL, nil)
}

func (c *Client) get(ctx context.Context, rawURL string, cookies map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apierrors.New(apierrors.KindUnknown, 0, "failed to create request: %v", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	for name, value := range cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, apierrors.New(apierrors.KindNetwork, 0, "network error: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierrors.New(apierrors.KindNetwork, resp.StatusCode, "failed to read response body: %v", err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		FinalURL:   finalURL,
		Cookies:    resp.Cookies(),
	}, nil
}

// GetJSON performs a GET request with query parameters and cookies, retries
// transient failures, checks the HTTP status, and decodes the JSON body into
// target. Rate-limit and auth responses are never retried here; pacing
// decisions belong to the caller.
func (c *Client) GetJSON(ctx context.Context, endpoint string, params url.Values, cookies map[string]string, target interface{}) error {
	rawURL := endpoint
	if len(params) > 0 {
		rawURL = endpoint + "?" + params.Encode()
	}

	resp, err := retry.DoWithResult(ctx, func() (*Response, error) {
		r, err := c.get(ctx, rawURL, cookies)
		if err != nil {
			return nil, err
		}
		if err := c.checkResponseStatus(r.StatusCode, rawURL); err != nil {
			return nil, err
		}
		return r, nil
	}, &retry.Config{
		MaxAttempts: c.maxRetries + 1,
		Backoff:     retry.DefaultExponentialBackoff(),
		RetryIf:     retry.DefaultRetryIf,
		Logger:      c.logger,
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(resp.Body, target); err != nil {
		bodyPreview := string(resp.Body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          rawURL,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return apierrors.New(apierrors.KindParse, resp.StatusCode, "failed to parse JSON: %v", err)
	}
	return nil
}

// checkResponseStatus maps HTTP status codes to typed errors. The platform
// reports most application-level failures through base_resp on a 200, so
// this only covers transport-visible conditions.
func (c *Client) checkResponseStatus(status int, rawURL string) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		c.logger.WarnWithFields("authentication error", map[string]interface{}{
			"status": status,
			"url":    rawURL,
		})
		return apierrors.New(apierrors.KindAuth, status, "authentication required")
	case status == http.StatusTooManyRequests:
		c.logger.WarnWithFields("rate limit exceeded", map[string]interface{}{
			"status": status,
			"url":    rawURL,
		})
		return apierrors.New(apierrors.KindRateLimit, status, "rate limit exceeded")
	case status >= 500:
		c.logger.ErrorWithFields("server error", map[string]interface{}{
			"status": status,
			"url":    rawURL,
		})
		return apierrors.New(apierrors.KindServer, status, "server error")
	case status >= 400:
		return apierrors.New(apierrors.KindUnknown, status, "unexpected status code: %d", status)
	default:
		return nil
	}
}

// FetchArticleList requests one page of an account's published articles.
// Callers are expected to pace requests through a rate limiter first.
func (c *Client) FetchArticleList(ctx context.Context, token, accountID string, begin, count int, cookies map[string]string) (*ListResponse, error) {
	params := url.Values{}
	params.Set("action", "list_ex")
	params.Set("begin", fmt.Sprintf("%d", begin))
	params.Set("count", fmt.Sprintf("%d", count))
	params.Set("fakeid", accountID)
	params.Set("type", "9")
	params.Set("query", "")
	params.Set("token", token)
	params.Set("lang", "zh_CN")
	params.Set("f", "json")
	params.Set("ajax", "1")

	var response ListResponse
	if err := c.GetJSON(ctx, AppMsgURL(c.baseURL), params, cookies, &response); err != nil {
		return nil, err
	}
	if err := CheckBaseResp(response.BaseResp); err != nil {
		return nil, err
	}
	return &response, nil
}

// SearchAccount looks up an account by name or alias. A single-result search
// doubles as the cheapest credential validity probe the platform offers.
func (c *Client) SearchAccount(ctx context.Context, token, query string, cookies map[string]string) (*SearchResponse, error) {
	params := url.Values{}
	params.Set("action", "search_biz")
	params.Set("begin", "0")
	params.Set("count", "1")
	params.Set("query", query)
	params.Set("token", token)
	params.Set("lang", "zh_CN")
	params.Set("f", "json")
	params.Set("ajax", "1")

	var response SearchResponse
	if err := c.GetJSON(ctx, SearchBizURL(c.baseURL), params, cookies, &response); err != nil {
		return nil, err
	}
	if err := CheckBaseResp(response.BaseResp); err != nil {
		return nil, err
	}
	return &response, nil
}
