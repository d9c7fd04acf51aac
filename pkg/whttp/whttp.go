package whttp

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

const USER_AGENT = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

type WHTTPHeader struct {
	Name  string
	Value string
}

type WHTTPReq struct {
	URL     string
	Method  string
	Headers []WHTTPHeader
	Body    string
}

type WHTTPRes struct {
	StatusCode int
	HTTPTitle  string
	BodyString string
	Headers    http.Header
}

// Client sends paced requests with automatic retries on transient failures.
type Client struct {
	retry   *retryablehttp.Client
	limiter *rate.Limiter
}

type Option func(*Client) error

// WithProxy routes every request through proxy.
func WithProxy(proxy string) Option {
	return func(c *Client) error {
		if proxy == "" {
			return nil
		}
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return fmt.Errorf("invalid proxy URL: %v", err)
		}
		c.retry.HTTPClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		return nil
	}
}

// WithRateLimit allows at most one request every interval. Zero disables pacing.
func WithRateLimit(interval time.Duration) Option {
	return func(c *Client) error {
		if interval <= 0 {
			c.limiter = nil
			return nil
		}
		c.limiter = rate.NewLimiter(rate.Every(interval), 1)
		return nil
	}
}

func WithRetryMax(n int) Option {
	return func(c *Client) error {
		c.retry.RetryMax = n
		return nil
	}
}

// WithHTTPClient replaces the underlying transport client, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.retry.HTTPClient = hc
		return nil
	}
}

func NewClient(opts ...Option) (*Client, error) {
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = log.New(io.Discard, "", 0)
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.HTTPClient.Timeout = 30 * time.Second

	c := &Client{
		retry:   retryClient,
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Send performs wReq and reads the whole body. Non-2xx statuses are not errors;
// callers inspect StatusCode.
func (c *Client) Send(ctx context.Context, wReq *WHTTPReq) (*WHTTPRes, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	method := wReq.Method
	if method == "" {
		method = http.MethodGet
	}
	var body interface{}
	if wReq.Body != "" {
		body = strings.NewReader(wReq.Body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, wReq.URL, body)
	if err != nil {
		return nil, err
	}

	// Set common headers
	req.Header.Set("User-Agent", USER_AGENT)
	req.Header.Set("Accept-Language", "en")

	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := c.retry.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	wRes := &WHTTPRes{
		StatusCode: resp.StatusCode,
		BodyString: string(bodyBytes),
		Headers:    resp.Header,
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		if title, ok := getHTMLTitle(wRes.BodyString); ok {
			wRes.HTTPTitle = strings.ToValidUTF8(strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(title, "\n", ""), "\r", "")), "")
		}
	}
	return wRes, nil
}

// OK reports a 2xx status.
func (r *WHTTPRes) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

func isTitleElement(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "title"
}

func traverse(n *html.Node) (string, bool) {
	if isTitleElement(n) {
		if n.FirstChild != nil {
			return n.FirstChild.Data, true
		}
		return "", true
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		result, ok := traverse(c)
		if ok {
			return result, ok
		}
	}

	return "", false
}

func getHTMLTitle(body string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", false
	}
	return traverse(doc)
}
