package collective

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const apiPrefix = "/ibm/api/collective/v1"

// APIError collective REST API 返回的错误
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("collective API error (status %d): %s", e.StatusCode, e.Message)
}

func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type Client struct {
	baseUrl    *url.URL
	httpClient *http.Client
	user       string
	password   string
}

type Option func(c *Client)

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithInsecure 跳过证书校验，collective controller 默认使用自签名证书
func WithInsecure(insecure bool) Option {
	return func(c *Client) {
		c.httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: insecure},
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(apiURL, user, password string, opts ...Option) (*Client, error) {
	baseUrl, err := url.Parse(apiURL)
	if err != nil {
		return nil, err
	}
	if baseUrl.Scheme == "" || baseUrl.Host == "" {
		return nil, fmt.Errorf("invalid collective api url %q", apiURL)
	}
	c := &Client{
		baseUrl: baseUrl,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		user:     user,
		password: password,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Request(ctx context.Context, req *http.Request, result interface{}) error {
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		// 尝试解析错误详情
		var errResp struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &errResp) == nil {
			if errResp.Message != "" {
				msg = errResp.Message
			} else if errResp.Error != "" {
				msg = errResp.Error
			}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode %s: %w", req.URL.Path, err)
		}
	}
	return nil
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, result interface{}) error {
	endpoint := c.baseUrl.JoinPath(apiPrefix, path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	return c.Request(ctx, req, result)
}

// GetSnapshot 取回完整的拓扑快照
// GET /ibm/api/collective/v1/snapshot
func (c *Client) GetSnapshot(ctx context.Context) (*Snapshot, error) {
	var result Snapshot
	if err := c.Get(ctx, "/snapshot", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetSummary(ctx context.Context) (*Summary, error) {
	var result Summary
	if err := c.Get(ctx, "/summary", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetAlerts(ctx context.Context) (*Alerts, error) {
	var result Alerts
	if err := c.Get(ctx, "/alerts", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetResource 取单个资源
// GET /ibm/api/collective/v1/{plural}/{id}
func (c *Client) GetResource(ctx context.Context, plural, id string) (*Resource, error) {
	var result Resource
	if err := c.Get(ctx, "/"+plural+"/"+url.PathEscape(id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Search 按 ID 批量查询，找不到的 ID 不会出现在结果中
// GET /ibm/api/collective/v1/search?type=server&id=~eq~S1&id=~eq~S2
func (c *Client) Search(ctx context.Context, resourceType string, ids []string) (*SearchResult, error) {
	query := url.Values{}
	query.Set("type", resourceType)
	for _, id := range ids {
		query.Add("id", "~eq~"+id)
	}
	var result SearchResult
	if err := c.Get(ctx, "/search", query, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
