// Package upstream is a thin client for the third-party REST backend that owns
// rooms, histories and users. Every call carries a bearer token, is bounded by
// a timeout and is retried a fixed number of times on network errors and 5xx.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/Abraham-MJ/Conexmeet-sub002/internal/config"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/logging"
	"github.com/Abraham-MJ/Conexmeet-sub002/internal/models"
)

// EnvelopeSuccess is the envelope status the upstream uses for success.
const EnvelopeSuccess = "Success"

// Client is a wrapper around the upstream REST API.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	retries      int
	retryBackoff time.Duration
	log          logrus.FieldLogger
}

// Options configures a Client.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	Retries      int
	RetryBackoff time.Duration
	HTTPClient   *http.Client
}

// NewClient creates a new upstream client.
func NewClient(opts Options, log logrus.FieldLogger) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Client{
		baseURL:      opts.BaseURL,
		httpClient:   httpClient,
		retries:      opts.Retries,
		retryBackoff: opts.RetryBackoff,
		log:          logging.Component(log, "upstream"),
	}
}

// NewClientFromConfig creates a client from application configuration.
func NewClientFromConfig(cfg *config.Config, log logrus.FieldLogger) *Client {
	return NewClient(Options{
		BaseURL:      cfg.UpstreamBaseURL,
		Timeout:      cfg.UpstreamTimeout,
		Retries:      cfg.UpstreamRetries,
		RetryBackoff: cfg.UpstreamRetryBackoff,
	}, log)
}

type envelope struct {
	Status  *string         `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// doRequest executes an HTTP request against /api/v1/<endpoint> with retries
// and returns the envelope data (or the raw body for endpoints without one).
func (c *Client) doRequest(ctx context.Context, method, endpoint, token string, body interface{}) (json.RawMessage, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	target := fmt.Sprintf("%s/api/v1/%s", c.baseURL, endpoint)
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryBackoff), uint64(c.retries)),
		ctx,
	)

	attempt := 0
	var data json.RawMessage
	err := backoff.Retry(func() error {
		attempt++
		result, err := c.once(ctx, method, target, token, payload)
		if err == nil {
			data = result
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		c.log.WithFields(logrus.Fields{
			"method":  method,
			"url":     target,
			"attempt": attempt,
		}).WithError(err).Warn("upstream request failed")
		return err
	}, policy)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) once(ctx context.Context, method, target, token string, payload []byte) (json.RawMessage, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(err)
	}

	env, envErr := decodeEnvelope(respBody)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(respBody)
		if envErr == nil && env.Message != "" {
			msg = env.Message
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}

	if envErr != nil || env.Status == nil {
		// plain-status endpoint
		return respBody, nil
	}
	if *env.Status != EnvelopeSuccess {
		return nil, &StatusError{
			StatusCode: http.StatusBadGateway,
			Message:    fmt.Sprintf("envelope status %q: %s", *env.Status, env.Message),
			Envelope:   true,
		}
	}
	return env.Data, nil
}

func decodeEnvelope(body []byte) (envelope, error) {
	var env envelope
	if len(bytes.TrimSpace(body)) == 0 {
		return env, errors.New("empty body")
	}
	err := json.Unmarshal(body, &env)
	return env, err
}

// classify turns transport failures into NetworkError.
func classify(err error) error {
	var netErr net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
	return &NetworkError{Timeout: timeout, Err: err}
}

// ListRooms returns rooms matching the filter.
func (c *Client) ListRooms(ctx context.Context, token string, filter models.RoomFilter) ([]models.Room, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}
	if filter.HostID != "" {
		q.Set("host_id", filter.HostID)
	}
	endpoint := "rooms"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	data, err := c.doRequest(ctx, http.MethodGet, endpoint, token, nil)
	if err != nil {
		return nil, err
	}

	var rooms []models.Room
	if len(data) == 0 || string(data) == "null" {
		return rooms, nil
	}
	if err := json.Unmarshal(data, &rooms); err != nil {
		return nil, fmt.Errorf("%w: failed to parse rooms: %v", ErrMalformedResponse, err)
	}
	return rooms, nil
}

// CloseChannel asks the upstream backend to close a channel.
func (c *Client) CloseChannel(ctx context.Context, token string, req models.CloseChannelRequest) error {
	_, err := c.doRequest(ctx, http.MethodPost, "channels/close", token, req)
	return err
}

// DeleteHistory removes a story history item.
func (c *Client) DeleteHistory(ctx context.Context, token, historyID string) error {
	endpoint := fmt.Sprintf("history/%s", url.PathEscape(historyID))
	_, err := c.doRequest(ctx, http.MethodDelete, endpoint, token, nil)
	return err
}
