package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"eventarr/internal/blocklist"
	"eventarr/internal/packmatch"
	"eventarr/internal/release"
	"eventarr/internal/searchqueue"
	"eventarr/internal/services"
)

// Error is a non-2xx reply decoded by Client.
type Error struct {
	Status  int
	Kind    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: http %d", e.Status)
	}
	return fmt.Sprintf("api: %s (http %d)", e.Message, e.Status)
}

// Unwrap maps the reply kind back onto the services markers so callers can
// use errors.Is across the wire.
func (e *Error) Unwrap() error {
	switch e.Kind {
	case "validation_error":
		return services.ErrValidation
	case "not_found":
		return services.ErrNotFound
	case "configuration_error":
		return services.ErrConfiguration
	case "timeout":
		return services.ErrTimeout
	case "source_failure":
		return services.ErrSourceFailure
	case "cancelled":
		return services.ErrCancelled
	case "transient_failure":
		return services.ErrTransient
	default:
		return nil
	}
}

// Client talks to a running daemon.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient builds a client for baseURL ("http://127.0.0.1:7878" or a bare
// host:port). A nil httpClient uses a 30 second timeout.
func NewClient(baseURL, token string, httpClient *http.Client) (*Client, error) {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		return nil, errors.New("api: base url is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: parsed, token: token, http: httpClient}, nil
}

// Status fetches daemon status.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var out Status
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// Search queues a search and returns the item id.
func (c *Client) Search(ctx context.Context, eventID int64, part string) (string, error) {
	var out SearchResponse
	err := c.do(ctx, http.MethodPost, "/api/search", nil, SearchRequest{EventID: eventID, Part: part}, &out)
	return out.ItemID, err
}

// Item fetches one queue item.
func (c *Client) Item(ctx context.Context, id string) (searchqueue.Item, error) {
	var out ItemResponse
	err := c.do(ctx, http.MethodGet, "/api/search/"+url.PathEscape(id), nil, nil, &out)
	return out.Item, err
}

// Cancel cancels a queue item.
func (c *Client) Cancel(ctx context.Context, id string) (bool, error) {
	var out CancelResponse
	err := c.do(ctx, http.MethodDelete, "/api/search/"+url.PathEscape(id), nil, nil, &out)
	return out.Cancelled, err
}

// Queue fetches the queue snapshot.
func (c *Client) Queue(ctx context.Context) (searchqueue.Snapshot, error) {
	var out searchqueue.Snapshot
	err := c.do(ctx, http.MethodGet, "/api/queue", nil, nil, &out)
	return out, err
}

// Evaluate asks the daemon to score a release.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (EvaluateResponse, error) {
	var out EvaluateResponse
	err := c.do(ctx, http.MethodPost, "/api/releases/evaluate", nil, req, &out)
	return out, err
}

// Match maps a release onto catalog events.
func (c *Client) Match(ctx context.Context, rel release.Release, eventIDs ...int64) (packmatch.Result, error) {
	var out MatchResponse
	err := c.do(ctx, http.MethodPost, "/api/releases/match", nil, MatchRequest{Release: rel, EventIDs: eventIDs}, &out)
	return out.Result, err
}

// Block blocklists a release.
func (c *Client) Block(ctx context.Context, req BlockRequest) (blocklist.Entry, error) {
	var out BlockResponse
	err := c.do(ctx, http.MethodPost, "/api/blocklist", nil, req, &out)
	return out.Entry, err
}

// Blocklist lists entries, optionally for one event.
func (c *Client) Blocklist(ctx context.Context, eventID int64) ([]blocklist.Entry, error) {
	var query url.Values
	if eventID > 0 {
		query = url.Values{"eventId": {strconv.FormatInt(eventID, 10)}}
	}
	var out BlocklistResponse
	err := c.do(ctx, http.MethodGet, "/api/blocklist", query, nil, &out)
	return out.Entries, err
}

// Unblock removes a blocklist entry.
func (c *Client) Unblock(ctx context.Context, contentHash string) error {
	return c.do(ctx, http.MethodDelete, "/api/blocklist/"+url.PathEscape(contentHash), nil, nil, nil)
}

// MarkFailed reports a failed download.
func (c *Client) MarkFailed(ctx context.Context, downloadID string, alsoSearch bool) (blocklist.FailureResult, error) {
	var out FailedResponse
	path := "/api/downloads/" + url.PathEscape(downloadID) + "/failed"
	err := c.do(ctx, http.MethodPost, path, nil, FailedRequest{AlsoSearch: alsoSearch}, &out)
	return out.Result, err
}

// ImportFailed reports a failed import.
func (c *Client) ImportFailed(ctx context.Context, downloadID, message string) (blocklist.Grab, error) {
	var out GrabResponse
	path := "/api/downloads/" + url.PathEscape(downloadID) + "/import-failed"
	err := c.do(ctx, http.MethodPost, path, nil, ImportFailedRequest{Message: message}, &out)
	return out.Grab, err
}

// Sources lists source health.
func (c *Client) Sources(ctx context.Context) ([]SourceStatus, error) {
	var out SourcesResponse
	err := c.do(ctx, http.MethodGet, "/api/sources", nil, nil, &out)
	return out.Sources, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.base.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		var payload ErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Kind = payload.Kind
			apiErr.Message = payload.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	return nil
}
