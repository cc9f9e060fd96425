// Package clip turns clip identifiers into local files: it resolves a clip to
// its asset URL through the remote clip registry and streams the asset to disk.
package clip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/time/rate"

	"github.com/s0urc3k0d/Statisfaction-sub001/config"
	"github.com/s0urc3k0d/Statisfaction-sub001/logging"
)

var (
	// ErrClipNotFound means the registry has no clip with the requested id.
	ErrClipNotFound = errors.New("clip not found")
	// ErrUnexpectedShape means the registry answered but the metadata cannot be
	// turned into an asset URL.
	ErrUnexpectedShape = errors.New("unexpected clip metadata")
)

var previewSuffix = regexp.MustCompile(`-preview-\d+x\d+\.jpg$`)

// Resolver maps a clip id to a directly downloadable asset URL.
type Resolver interface {
	Resolve(ctx context.Context, clipID, accessToken string) (string, error)
}

type clipMetadata struct {
	ID           string  `json:"id"`
	URL          string  `json:"url"`
	ThumbnailURL string  `json:"thumbnail_url"`
	Duration     float64 `json:"duration"`
}

type clipsResponse struct {
	Data []clipMetadata `json:"data"`
}

// HTTPResolver looks clips up on a Helix-style registry.
type HTTPResolver struct {
	baseURL  string
	clientID string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

func NewHTTPResolver(cfg *config.Config, logger *slog.Logger) *HTTPResolver {
	limit := rate.Inf
	if cfg.RegistryRPS > 0 {
		limit = rate.Limit(cfg.RegistryRPS)
	}
	burst := cfg.RegistryBurst
	if burst <= 0 {
		burst = 1
	}
	return &HTTPResolver{
		baseURL:  strings.TrimSuffix(cfg.RegistryURL, "/"),
		clientID: cfg.RegistryClientID,
		client:   &http.Client{Timeout: cfg.RegistryTimeout},
		limiter:  rate.NewLimiter(limit, burst),
		logger:   logging.WithComponent(logger, "clip"),
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, clipID, accessToken string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}

	endpoint := r.baseURL + "/clips?id=" + url.QueryEscape(clipID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if r.clientID != "" {
		req.Header.Set("Client-Id", r.clientID)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("clip lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("clip lookup failed, status: %s", resp.Status)
	}

	var body clipsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
	}
	if len(body.Data) == 0 {
		return "", ErrClipNotFound
	}

	asset, err := AssetURL(body.Data[0].ThumbnailURL)
	if err != nil {
		return "", err
	}
	r.logger.Debug("clip resolved", "clip_id", clipID, "asset", asset)
	return asset, nil
}

// AssetURL derives the mp4 asset from a clip preview thumbnail, e.g.
// ".../AT-cm%7C123-preview-480x272.jpg" becomes ".../AT-cm%7C123.mp4".
func AssetURL(thumbnailURL string) (string, error) {
	if !previewSuffix.MatchString(thumbnailURL) {
		return "", fmt.Errorf("%w: thumbnail %q has no preview suffix", ErrUnexpectedShape, thumbnailURL)
	}
	return previewSuffix.ReplaceAllString(thumbnailURL, ".mp4"), nil
}
