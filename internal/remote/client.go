// Package remote talks to the PostgREST-style comment API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"talktome/internal/metrics"
	"talktome/internal/models"
	"talktome/internal/tracing"

	"github.com/google/go-querystring/query"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	commentsPath = "/rest/v1/comments"

	// selectWithAuthor joins the author profile onto every row.
	selectWithAuthor = "*,author:users(*)"

	defaultTimeout = 30 * time.Second
)

// Operation names used for metrics, tracing and retry logging.
const (
	OpFetch        = "fetch"
	OpInsert       = "insert"
	OpUpdateStatus = "update_status"
)

// Options configures a Client.
type Options struct {
	// BaseURL is the project URL, e.g. https://xyz.supabase.co
	BaseURL string
	// APIKey is sent as the apikey header, and as the bearer token when no
	// access token is set.
	APIKey string
	// Timeout bounds each HTTP request. Zero uses 30 seconds.
	Timeout time.Duration
	// Transport overrides the base HTTP transport. Nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// Client is a comment API client. Safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	mu          sync.RWMutex
	accessToken string
}

// New creates a client.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(base),
		},
	}
}

// SetAccessToken sets the signed-in user's token. An empty token falls back
// to the API key.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.accessToken != "" {
		return c.accessToken
	}
	return c.apiKey
}

// fetchParams is the query for listing a post's comments.
type fetchParams struct {
	Select string `url:"select"`
	PostID string `url:"post_id"`
	Order  string `url:"order"`
}

// filterParams selects a single row by ID.
type filterParams struct {
	ID string `url:"id"`
}

// FetchComments returns every comment for postID, oldest first.
func (c *Client) FetchComments(ctx context.Context, postID string) ([]models.Comment, error) {
	ctx, span := tracing.RemoteSpan(ctx, OpFetch, postID)
	defer span.End()

	v, err := query.Values(fetchParams{
		Select: selectWithAuthor,
		PostID: "eq." + postID,
		Order:  "created_at.asc",
	})
	if err != nil {
		tracing.EndWithError(span, err)
		return nil, fmt.Errorf("encoding query: %w", err)
	}

	var comments []models.Comment
	err = c.do(ctx, OpFetch, http.MethodGet, commentsPath+"?"+v.Encode(), nil, &comments)
	if err != nil {
		tracing.EndWithError(span, err)
		return nil, err
	}

	log.Debug().Str("post_id", postID).Int("count", len(comments)).Msg("remote: fetched comments")
	return comments, nil
}

// InsertComment creates a comment. The new row is not returned; it arrives
// through the change feed.
func (c *Client) InsertComment(ctx context.Context, comment models.NewComment) error {
	ctx, span := tracing.RemoteSpan(ctx, OpInsert, comment.PostID)
	defer span.End()

	if err := c.do(ctx, OpInsert, http.MethodPost, commentsPath, comment, nil); err != nil {
		tracing.EndWithError(span, err)
		return err
	}
	return nil
}

// UpdateStatus sets the moderation status of a comment by ID.
func (c *Client) UpdateStatus(ctx context.Context, commentID string, status models.Status) error {
	ctx, span := tracing.RemoteSpan(ctx, OpUpdateStatus, "")
	defer span.End()

	v, err := query.Values(filterParams{ID: "eq." + commentID})
	if err != nil {
		tracing.EndWithError(span, err)
		return fmt.Errorf("encoding query: %w", err)
	}

	body := struct {
		Status models.Status `json:"status"`
	}{Status: status}

	if err := c.do(ctx, OpUpdateStatus, http.MethodPatch, commentsPath+"?"+v.Encode(), body, nil); err != nil {
		tracing.EndWithError(span, err)
		return err
	}
	return nil
}

// do sends one request and decodes a JSON response into out when non-nil.
// Errors are classified with classify so the retry policy can act on them.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.bearer())
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=minimal")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.RemoteRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RemoteRequestsTotal.WithLabelValues(op, "error").Inc()
		log.Warn().Err(err).Str("operation", op).Msg("remote: request failed")
		return classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	metrics.RemoteRequestsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		err := classifyStatus(resp.StatusCode, data)
		log.Warn().
			Int("status", resp.StatusCode).
			Str("operation", op).
			Str("error", err.Error()).
			Msg("remote: unexpected status")
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
