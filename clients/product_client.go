package clients

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

	"products-api/models"
)

var ErrNotFound = errors.New("product not found")

// StatusError is a non-2xx answer from the products API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the same request may succeed if sent again.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode >= 500
}

// RetryPolicy bounds CreateWithRetry.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
}

var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 10,
	BaseDelay:   50 * time.Millisecond,
	MaxDelay:    2 * time.Second,
	Jitter:      0.25,
}

type Option func(*ProductClient)

func WithHTTPClient(h *http.Client) Option {
	return func(c *ProductClient) {
		if h != nil {
			c.httpClient = h
		}
	}
}

func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *ProductClient) {
		c.retry = policy
	}
}

// ProductClient calls the products API over HTTP.
type ProductClient struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryPolicy
	backoff    *Backoff
}

func NewProductClient(baseURL string, opts ...Option) *ProductClient {
	c := &ProductClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		retry: DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.MaxAttempts <= 0 {
		c.retry.MaxAttempts = 1
	}
	c.backoff = NewBackoff(c.retry.BaseDelay, c.retry.MaxDelay, c.retry.Jitter)
	return c
}

func (c *ProductClient) List(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := c.do(ctx, http.MethodGet, "/products", nil, http.StatusOK, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *ProductClient) Get(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	if err := c.do(ctx, http.MethodGet, productPath(id), nil, http.StatusOK, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// Create makes a single create attempt.
func (c *ProductClient) Create(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	var product models.Product
	if err := c.do(ctx, http.MethodPost, "/products", in, http.StatusCreated, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateWithRetry repeats Create on retryable failures, backing off between
// attempts, and returns the number of attempts made.
func (c *ProductClient) CreateWithRetry(ctx context.Context, in models.ProductInput) (*models.Product, int, error) {
	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(c.backoff.ForAttempt(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, attempt, ctx.Err()
			case <-timer.C:
			}
		}

		product, err := c.Create(ctx, in)
		if err == nil {
			return product, attempt + 1, nil
		}
		lastErr = err
		if !isRetryable(err) || ctx.Err() != nil {
			return nil, attempt + 1, err
		}
	}
	return nil, c.retry.MaxAttempts, fmt.Errorf("create failed after %d attempts: %w", c.retry.MaxAttempts, lastErr)
}

func (c *ProductClient) Update(ctx context.Context, id int64, in models.ProductInput) (*models.Product, error) {
	var product models.Product
	if err := c.do(ctx, http.MethodPut, productPath(id), in, http.StatusOK, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *ProductClient) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, productPath(id), nil, http.StatusOK, nil)
}

func (c *ProductClient) do(ctx context.Context, method, path string, body interface{}, want int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call products API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	switch resp.StatusCode {
	case want:
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	default:
		var errResp models.ErrorResponse
		message := string(respBody)
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			message = errResp.Error
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: message}
	}
}

func isRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	// the request may not have reached the server at all
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func productPath(id int64) string {
	return fmt.Sprintf("/products/%d", id)
}
