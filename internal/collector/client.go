// Package collector implements the HTTP client for the remote collector
// API: health probe, device token lifecycle, and inbox submission.
package collector

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

	"github.com/opensheets/companion/internal/common"
	"github.com/opensheets/companion/internal/model"
	"github.com/opensheets/companion/internal/service"
)

// Client talks to one collector server.
type Client struct {
	httpClient *http.Client
	baseURL    string
	retryOpts  service.RetryOptions
}

// NewClient creates a collector client for the given server URL.
func NewClient(serverURL string) (*Client, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("%w: invalid server URL %q", common.ErrInvalidConfig, serverURL)
	}

	return &Client{
		baseURL: strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retryOpts: service.RetryOptions{MaxAttempts: 3},
	}, nil
}

// Health probes the server's liveness and identity. The only
// unauthenticated endpoint. Transient transport failures are retried;
// submissions are not, because the sync engine owns that retry cycle.
func (c *Client) Health(ctx context.Context) (*service.HealthInfo, error) {
	var resp healthResponse
	err := common.WithRetry(ctx, func() error {
		return c.do(ctx, http.MethodGet, "/api/health", "", nil, &resp)
	}, c.retryOpts)
	if err != nil {
		return nil, err
	}

	info := &service.HealthInfo{
		Status:  resp.Status,
		Name:    resp.Name,
		Version: resp.Version,
	}
	if resp.Message != nil {
		info.Message = *resp.Message
	}
	return info, nil
}

// VerifyToken validates an access token against the server. Transient
// transport failures are retried; a rejected token fails immediately.
func (c *Client) VerifyToken(ctx context.Context, accessToken string) (*service.TokenInfo, error) {
	var resp verifyTokenResponse
	err := common.WithRetry(ctx, func() error {
		return c.do(ctx, http.MethodPost, "/api/auth/device/verify", accessToken, nil, &resp)
	}, c.retryOpts)
	if err != nil {
		return nil, err
	}

	if !resp.Valid {
		if resp.Error != nil {
			return nil, fmt.Errorf("%w: %s", common.ErrUnauthorized, *resp.Error)
		}
		return nil, common.ErrUnauthorized
	}

	info := &service.TokenInfo{}
	if resp.TokenID != nil {
		info.TokenID = *resp.TokenID
	}
	if resp.TokenName != nil {
		info.TokenName = *resp.TokenName
	}
	return info, nil
}

// RefreshToken exchanges a refresh credential for a fresh access credential.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*service.TokenPair, error) {
	var resp refreshTokenResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/device/refresh", refreshToken, nil, &resp); err != nil {
		return nil, err
	}

	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: refresh response missing access token", common.ErrMalformedReply)
	}

	pair := &service.TokenPair{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	return pair, nil
}

// Submit delivers a single record via the single-item endpoint.
func (c *Client) Submit(ctx context.Context, accessToken string, record model.NotificationRecord) error {
	var resp inboxResponse
	if err := c.do(ctx, http.MethodPost, "/api/inbox", accessToken, toInboxItem(record), &resp); err != nil {
		return err
	}

	if !resp.Success {
		if resp.Error != nil {
			return fmt.Errorf("%w: %s", common.ErrServerRejected, *resp.Error)
		}
		return common.ErrServerRejected
	}

	return nil
}

// SubmitBatch delivers several records in one request and returns the
// per-item outcomes in submission order.
func (c *Client) SubmitBatch(ctx context.Context, accessToken string, records []model.NotificationRecord) ([]service.BatchItemResult, error) {
	req := inboxBatchRequest{Notifications: make([]inboxItem, 0, len(records))}
	for _, record := range records {
		req.Notifications = append(req.Notifications, toInboxItem(record))
	}

	var resp inboxBatchResponse
	if err := c.do(ctx, http.MethodPost, "/api/inbox/batch", accessToken, req, &resp); err != nil {
		return nil, err
	}

	// A response that doesn't cover every submitted record can't be
	// applied safely; treat it as malformed.
	if len(resp.Results) != len(records) {
		return nil, fmt.Errorf("%w: batch response has %d results for %d records",
			common.ErrMalformedReply, len(resp.Results), len(records))
	}

	results := make([]service.BatchItemResult, 0, len(resp.Results))
	for _, item := range resp.Results {
		result := service.BatchItemResult{
			NotificationID: item.ID,
			OK:             item.Success,
		}
		if item.Error != nil {
			result.Error = *item.Error
		}
		results = append(results, result)
	}

	return results, nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: server returned %d", common.ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: %d - %s", common.ErrServerRejected, resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: %v", common.ErrMalformedReply, err)
		}
	}

	return nil
}
