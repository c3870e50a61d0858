package replicate

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joseph-ayodele/photo-pipeline/internal/common"
)

// Client talks to a Replicate-compatible prediction API. It never retries;
// retry and polling policy belong to the caller.
type Client struct {
	base   *url.URL
	token  string
	http   *http.Client
	logger *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// NewClient builds a client for baseURL (e.g. https://api.replicate.com/v1).
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("invalid prediction api base url %q", baseURL), err)
	}
	c := &Client{
		base:   u,
		token:  token,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.token}
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.base.String() + "/" + strings.Join(escaped, "/")
}

// Submit creates a prediction for modelID with the given input.
func (c *Client) Submit(ctx context.Context, modelID string, input map[string]any) (Prediction, error) {
	body := CreateRequest{Model: modelID, Input: input}
	p, err := c.do(ctx, http.MethodPost, c.endpoint("predictions"), body)
	if err != nil {
		return Prediction{}, err
	}
	c.logger.Info("replicate.prediction.created", "prediction_id", p.ID, "model", modelID, "status", p.Status)
	return p, nil
}

// Fetch reads the current state of a prediction by id.
func (c *Client) Fetch(ctx context.Context, id string) (Prediction, error) {
	if strings.TrimSpace(id) == "" {
		return Prediction{}, common.UpstreamError("fetch prediction", fmt.Errorf("empty prediction id"))
	}
	return c.do(ctx, http.MethodGet, c.endpoint("predictions", id), nil)
}

// FetchURL reads a prediction from an absolute status URL, such as urls.get.
func (c *Client) FetchURL(ctx context.Context, statusURL string) (Prediction, error) {
	if _, err := url.ParseRequestURI(statusURL); err != nil {
		return Prediction{}, common.UpstreamError("fetch prediction url", err)
	}
	return c.do(ctx, http.MethodGet, statusURL, nil)
}

// IsStatusURL reports whether u addresses a prediction document on this API
// rather than a downloadable asset.
func (c *Client) IsStatusURL(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	if !strings.EqualFold(parsed.Host, c.base.Host) {
		return false
	}
	prefix := strings.TrimRight(c.base.Path, "/") + "/predictions/"
	return strings.HasPrefix(parsed.Path, prefix)
}

func (c *Client) do(ctx context.Context, method, target string, body any) (Prediction, error) {
	log := c.logger
	if photoID, ok := common.PhotoIDFromContext(ctx); ok {
		log = log.With("photo_id", photoID)
	}
	raw, status, err := sendJSON(ctx, c.http, method, target, body, c.headers(), log)
	if err != nil {
		if status != 0 {
			log.Warn("replicate.http.rejected", "url", target, "status", status, "body", truncate(string(raw), 512))
		}
		if status == http.StatusNotFound {
			err = fmt.Errorf("%w: %v", ErrPredictionNotFound, err)
		}
		return Prediction{}, common.UpstreamError(fmt.Sprintf("%s %s", method, target), err)
	}
	p, err := decodePrediction(raw)
	if err != nil {
		log.Warn("replicate.http.bad_body", "url", target, "error", err)
		return Prediction{}, common.UpstreamError("decode prediction", err)
	}
	return p, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
