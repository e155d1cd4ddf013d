package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/nodevenv/nodevenv/pkg/fetch"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

const testIndex = `[
	{"version":"v9.2.0","date":"2017-12-08","files":["linux-x64","src"],"lts":false},
	{"version":"v8.11.3","date":"2018-06-12","files":["linux-x64","src"],"lts":"Carbon"}
]`

const testSums = `1111111111111111111111111111111111111111111111111111111111111111  node-v8.11.3-linux-x64.tar.gz
2222222222222222222222222222222222222222222222222222222222222222  node-v8.11.3.tar.gz
`

func newTestClient(baseURL string) *Client {
	return &Client{
		Mirrors: []string{baseURL},
		HTTP:    fetch.NewClient("", 0, testLogger()),
		Log:     testLogger(),
	}
}

func TestClientResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/index.json":
			fmt.Fprint(w, testIndex)
		case "/v8.11.3/SHASUMS256.txt":
			fmt.Fprint(w, testSums)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	rv, err := newTestClient(srv.URL).Resolve(context.Background(), "lts", linux)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if rv.Version != "8.11.3" {
		t.Fatalf("resolved %q, want 8.11.3", rv.Version)
	}

	bin, ok := rv.Binary()
	if !ok {
		t.Fatal("expected binary descriptor")
	}
	if bin.Checksum != "1111111111111111111111111111111111111111111111111111111111111111" {
		t.Errorf("binary checksum = %q", bin.Checksum)
	}
	src, _ := rv.Source()
	if src.Checksum != "2222222222222222222222222222222222222222222222222222222222222222" {
		t.Errorf("source checksum = %q", src.Checksum)
	}
}

func TestClientResolveWithoutChecksums(t *testing.T) {
	// Releases predating checksum manifests resolve with empty
	// checksums instead of failing.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/index.json" {
			fmt.Fprint(w, testIndex)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	rv, err := newTestClient(srv.URL).Resolve(context.Background(), "9.2.0", linux)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if bin, _ := rv.Binary(); bin.Checksum != "" {
		t.Errorf("checksum = %q, want empty", bin.Checksum)
	}
}

func TestClientChecksumManifestUnreachable(t *testing.T) {
	// A server error on the checksum manifest is not the same as the
	// manifest not existing; resolution must fail rather than hand back
	// unverifiable descriptors.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/index.json" {
			fmt.Fprint(w, testIndex)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Resolve(context.Background(), "8.11.3", linux)
	if err == nil {
		t.Fatal("expected error when the checksum manifest fetch fails")
	}
	var derr *fetch.DownloadError
	if !errors.As(err, &derr) {
		t.Fatalf("error = %v, want wrapped DownloadError", err)
	}
}

func TestClientCatalogUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Releases(context.Background())
	var catErr *CatalogError
	if !errors.As(err, &catErr) {
		t.Fatalf("error = %v, want CatalogError", err)
	}
}

func TestClientCachesCatalogForRun(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/index.json" {
			hits++
			fmt.Fprint(w, testIndex)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	ctx := context.Background()
	if _, err := c.Releases(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Releases(ctx); err != nil {
		t.Fatal(err)
	}
	if hits != 1 {
		t.Errorf("catalog fetched %d times within one run, want 1", hits)
	}
}
