package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// CreditsHeader carries the balance left after a billable call.
const CreditsHeader = "X-Credits-Remaining"

// TokenStore persists the credit cookie between CLI invocations.
type TokenStore interface {
	ReadCreditsToken() (string, error)
	WriteCreditsToken(token string) error
}

// Client is an HTTP client for the Quill API.
type Client struct {
	baseURL    string
	httpClient *http.Client

	tokens     TokenStore
	cookieName string

	mu          sync.Mutex
	lastCredits int64
}

var (
	defaultTokens     TokenStore
	defaultCookieName string
)

// SetTokenStore configures the credit cookie store used by every client
// created afterwards. The root command points it at ~/.quill.
func SetTokenStore(store TokenStore, cookieName string) {
	defaultTokens = store
	defaultCookieName = cookieName
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute, // chapter generation can be slow
		},
		tokens:      defaultTokens,
		cookieName:  defaultCookieName,
		lastCredits: -1,
	}
}

// WithTokenStore makes the client send and save the named credit cookie.
func (c *Client) WithTokenStore(store TokenStore, cookieName string) *Client {
	c.tokens = store
	c.cookieName = cookieName
	return c
}

// LastCredits returns the balance reported by the last billable response,
// or -1 if none was reported.
func (c *Client) LastCredits() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCredits
}

// Get performs a GET request and decodes the JSON response.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.handleResponse(resp, result)
}

// Post performs a POST request with JSON body and decodes the response.
func (c *Client) Post(ctx context.Context, path string, body any, result any) error {
	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.handleResponse(resp, result)
}

// Download performs a POST request and copies the raw response body to w.
// It returns the file name from Content-Disposition, if any.
func (c *Client) Download(ctx context.Context, path string, body any, w io.Writer) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", c.handleResponse(resp, nil)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var filename string
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		filename = params["filename"]
	}
	return filename, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.attachToken(req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if err := c.saveToken(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	c.recordCredits(resp)
	return resp, nil
}

func (c *Client) attachToken(req *http.Request) error {
	if c.tokens == nil {
		return nil
	}
	token, err := c.tokens.ReadCreditsToken()
	if err != nil {
		return err
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: token})
	}
	return nil
}

func (c *Client) saveToken(resp *http.Response) error {
	if c.tokens == nil {
		return nil
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == c.cookieName && cookie.Value != "" {
			return c.tokens.WriteCreditsToken(cookie.Value)
		}
	}
	return nil
}

func (c *Client) recordCredits(resp *http.Response) {
	v := resp.Header.Get(CreditsHeader)
	if v == "" {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.lastCredits = n
	c.mu.Unlock()
}

func (c *Client) handleResponse(resp *http.Response, result any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return &StatusError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// ErrorResponse matches the server's error response format.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusError is a non-2xx response from the server.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}
