package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/conaticus/click/pkg/httputil"
)

func testCache(t *testing.T) *httputil.Cache {
	t.Helper()
	c, err := httputil.NewCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewCache() error: %v", err)
	}
	return c
}

func TestClientVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") == "" {
			t.Error("missing Accept header")
		}
		if r.URL.Path != "/lodash/4.17.21" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(VersionMetadata{
			Name:         "lodash",
			Version:      "4.17.21",
			Dependencies: map[string]string{"left-pad": "^1.0.0"},
			Dist:         Dist{Tarball: "http://" + r.Host + "/tarballs/lodash.tgz"},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, testCache(t))
	meta, err := c.Version(context.Background(), "lodash", "4.17.21")
	if err != nil {
		t.Fatalf("Version() error: %v", err)
	}
	if meta.Name != "lodash" || meta.Version != "4.17.21" {
		t.Errorf("Version() = %s@%s, want lodash@4.17.21", meta.Name, meta.Version)
	}
	if meta.Dependencies["left-pad"] != "^1.0.0" {
		t.Errorf("dependencies = %v, want left-pad ^1.0.0", meta.Dependencies)
	}
}

func TestClientVersionNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	c := NewClient(server.URL, testCache(t))
	_, err := c.Version(context.Background(), "no-such-package", "1.0.0")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Version() error = %v, want ErrNotFound", err)
	}
}

func TestClientPackage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lodash" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(PackageMetadata{
			Name:     "lodash",
			DistTags: DistTags{Latest: "4.17.21"},
			Versions: map[string]VersionMetadata{
				"4.16.0":  {Name: "lodash", Version: "4.16.0"},
				"4.17.21": {Name: "lodash", Version: "4.17.21"},
			},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, testCache(t))
	pkg, err := c.Package(context.Background(), "lodash")
	if err != nil {
		t.Fatalf("Package() error: %v", err)
	}
	if len(pkg.Versions) != 2 {
		t.Errorf("len(Versions) = %d, want 2", len(pkg.Versions))
	}
	if pkg.DistTags.Latest != "4.17.21" {
		t.Errorf("DistTags.Latest = %q, want %q", pkg.DistTags.Latest, "4.17.21")
	}
}

func TestClientMetadataCached(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		json.NewEncoder(w).Encode(VersionMetadata{Name: "lodash", Version: "4.17.21"})
	}))
	defer server.Close()

	c := NewClient(server.URL, testCache(t))
	for i := 0; i < 3; i++ {
		if _, err := c.Version(context.Background(), "lodash", "4.17.21"); err != nil {
			t.Fatalf("Version() error: %v", err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("registry hits = %d, want 1 (cached)", hits.Load())
	}
}

func TestClientDownload(t *testing.T) {
	payload := []byte("tarball-bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)
	data, err := c.Download(context.Background(), server.URL+"/tarballs/x.tgz")
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	if string(data) != string(payload) {
		t.Errorf("Download() = %q, want %q", data, payload)
	}
}

func TestDefaultBaseURL(t *testing.T) {
	c := NewClient("", nil)
	if c.baseURL != DefaultURL {
		t.Errorf("baseURL = %q, want %q", c.baseURL, DefaultURL)
	}
}
