package relay

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/kitsync/internal/config"
	"github.com/ignite/kitsync/internal/pkg/httpretry"
	"github.com/ignite/kitsync/internal/pkg/logger"
)

// Cloudinary relays images with Cloudinary's signed upload API. Cloudinary
// fetches the source URL itself, so the image never passes through us.
type Cloudinary struct {
	baseURL    string
	cloudName  string
	apiKey     string
	apiSecret  string
	folder     string
	httpClient httpretry.HTTPDoer
	now        func() time.Time
}

// NewCloudinary creates a Cloudinary relay. Uploads are not retried.
func NewCloudinary(cfg config.CloudinaryConfig) *Cloudinary {
	return &Cloudinary{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		cloudName: cfg.CloudName,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		folder:    cfg.Folder,
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
		},
		now: time.Now,
	}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Relay implements Relay. Re-uploading the same key overwrites the previous
// asset, so a rerun for the same document reuses its image URLs.
func (c *Cloudinary) Relay(ctx context.Context, sourceURL, key string) (string, error) {
	params := map[string]string{
		"public_id": key,
		"overwrite": "true",
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}
	if c.folder != "" {
		params["folder"] = c.folder
	}

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	form.Set("file", sourceURL)
	form.Set("api_key", c.apiKey)
	form.Set("signature", sign(params, c.apiSecret))

	endpoint := fmt.Sprintf("%s/%s/image/upload", c.baseURL, url.PathEscape(c.cloudName))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading upload response: %w", err)
	}

	var out uploadResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("cloudinary upload %s (status %d): %s", key, resp.StatusCode, string(body))
	}
	if resp.StatusCode != http.StatusOK || out.Error != nil {
		msg := string(body)
		if out.Error != nil {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("cloudinary upload %s (status %d): %s", key, resp.StatusCode, msg)
	}
	if out.SecureURL == "" {
		return "", fmt.Errorf("cloudinary upload %s: response without secure_url", key)
	}

	logger.Info("image relayed", "provider", "cloudinary", "key", key, "url", out.SecureURL)
	return out.SecureURL, nil
}

// sign computes Cloudinary's request signature: the SHA-1 hex digest of the
// sorted key=value pairs joined by '&' followed by the API secret.
func sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}
