// Package registry implements the npm registry HTTP client: version
// metadata lookups, full package metadata lookups and tarball downloads.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/conaticus/click/pkg/httputil"
)

// DefaultURL is the public npm registry.
const DefaultURL = "https://registry.npmjs.org"

// acceptHeader requests the abbreviated install metadata, which is
// dramatically smaller than the full document.
const acceptHeader = "application/vnd.npm.install-v1+json; q=1.0, application/json; q=0.8, */*"

const httpTimeout = 30 * time.Second

var (
	// ErrNotFound is returned when a package or version does not exist.
	ErrNotFound = errors.New("package not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection
	// errors, 5xx responses).
	ErrNetwork = errors.New("network error")
)

// Dist describes where a version's tarball lives.
type Dist struct {
	Tarball string `json:"tarball"`
}

// VersionMetadata is the registry document for a single package version.
// Immutable once fetched.
type VersionMetadata struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies"`
	Dist         Dist              `json:"dist"`
}

// PackageMetadata is the registry document for a whole package, covering
// every published version. Fetching it is expensive; prefer [Client.Version]
// whenever the concrete version is already known.
type PackageMetadata struct {
	Name     string                     `json:"name"`
	DistTags DistTags                   `json:"dist-tags"`
	Versions map[string]VersionMetadata `json:"versions"`
}

// DistTags holds the registry's named version pointers.
type DistTags struct {
	Latest string `json:"latest"`
}

// Client talks to an npm-compatible registry. Metadata responses are cached
// on disk with a TTL; tarball bytes are never cached here since extracted
// packages land in the package store.
type Client struct {
	http    *http.Client
	cache   *httputil.Cache
	baseURL string
}

// NewClient creates a registry client for baseURL (DefaultURL if empty).
// cache may be nil to disable metadata caching.
func NewClient(baseURL string, cache *httputil.Cache) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		http:    &http.Client{Timeout: httpTimeout},
		cache:   cache,
		baseURL: baseURL,
	}
}

// Version fetches metadata for one version of a package. version may be a
// concrete "1.2.3" or a dist-tag such as "latest".
func (c *Client) Version(ctx context.Context, name, version string) (*VersionMetadata, error) {
	var meta VersionMetadata
	key := "version:" + name + "@" + version
	url := fmt.Sprintf("%s/%s/%s", c.baseURL, name, version)
	if err := c.cached(ctx, key, &meta, func() error {
		return c.getJSON(ctx, url, &meta)
	}); err != nil {
		return nil, fmt.Errorf("fetch %s@%s: %w", name, version, err)
	}
	return &meta, nil
}

// Package fetches metadata for every published version of a package.
func (c *Client) Package(ctx context.Context, name string) (*PackageMetadata, error) {
	var meta PackageMetadata
	key := "package:" + name
	if err := c.cached(ctx, key, &meta, func() error {
		return c.getJSON(ctx, c.baseURL+"/"+name, &meta)
	}); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}
	return &meta, nil
}

// Download fetches raw bytes from url, typically a version's dist tarball.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := httputil.RetryWithBackoff(ctx, func() error {
		body, err := c.get(ctx, url)
		if err != nil {
			return err
		}
		defer body.Close()
		data, err = io.ReadAll(body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	return data, nil
}

// cached serves v from the metadata cache when fresh, otherwise runs fetch
// with retries and stores the result.
func (c *Client) cached(ctx context.Context, key string, v any, fetch func() error) error {
	if c.cache != nil {
		if ok, _ := c.cache.Get(key, v); ok {
			return nil
		}
	}
	if err := httputil.RetryWithBackoff(ctx, fetch); err != nil {
		return err
	}
	if c.cache != nil {
		_ = c.cache.Set(key, v)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	body, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("decode registry response: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", acceptHeader)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &httputil.RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}
	if err := checkStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= 500:
		return &httputil.RetryableError{Err: fmt.Errorf("%w: status %d", ErrNetwork, code)}
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
