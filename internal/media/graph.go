// Package media retrieves customer voice notes from the WhatsApp Graph API
// and optionally keeps a copy in S3.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MaxMediaBytes is the largest media object accepted (the WhatsApp audio limit).
const MaxMediaBytes = 16 << 20

// ErrNotConfigured is returned when no access token is set.
var ErrNotConfigured = errors.New("media: graph access token not configured")

// GraphFetcher resolves a media id to a temporary URL and downloads it, both
// calls authorized with the same bearer token.
type GraphFetcher struct {
	baseURL    string
	version    string
	token      string
	httpClient *http.Client
}

// NewGraphFetcher builds a fetcher for baseURL (https://graph.facebook.com) and
// API version (v21.0).
func NewGraphFetcher(baseURL, version, token string, timeout time.Duration) *GraphFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GraphFetcher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		version:    strings.Trim(version, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type mediaMetadata struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// Fetch returns the media bytes and their mime type.
func (f *GraphFetcher) Fetch(ctx context.Context, mediaID string) ([]byte, string, error) {
	if f == nil || f.token == "" {
		return nil, "", ErrNotConfigured
	}
	if strings.TrimSpace(mediaID) == "" {
		return nil, "", errors.New("media: media id required")
	}

	meta, err := f.resolve(ctx, mediaID)
	if err != nil {
		return nil, "", err
	}

	resp, err := f.get(ctx, meta.URL)
	if err != nil {
		return nil, "", fmt.Errorf("media: download %s: %w", mediaID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxMediaBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("media: read %s: %w", mediaID, err)
	}
	if len(data) > MaxMediaBytes {
		return nil, "", fmt.Errorf("media: %s exceeds %d bytes", mediaID, MaxMediaBytes)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("media: %s is empty", mediaID)
	}

	mimeType := meta.MimeType
	if mimeType == "" {
		mimeType = resp.Header.Get("Content-Type")
	}
	return data, mimeType, nil
}

func (f *GraphFetcher) resolve(ctx context.Context, mediaID string) (mediaMetadata, error) {
	endpoint := fmt.Sprintf("%s/%s/%s", f.baseURL, f.version, url.PathEscape(mediaID))
	resp, err := f.get(ctx, endpoint)
	if err != nil {
		return mediaMetadata{}, fmt.Errorf("media: resolve %s: %w", mediaID, err)
	}
	defer resp.Body.Close()

	var meta mediaMetadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&meta); err != nil {
		return mediaMetadata{}, fmt.Errorf("media: decode metadata for %s: %w", mediaID, err)
	}
	if meta.URL == "" {
		return mediaMetadata{}, fmt.Errorf("media: no download url for %s", mediaID)
	}
	return meta, nil
}

// get issues an authorized GET and returns the response only on 2xx.
func (f *GraphFetcher) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+f.token)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}
