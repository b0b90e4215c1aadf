package netutil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDirectDownloader_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "streamgate-test" {
			t.Errorf("user agent: %q", r.Header.Get("User-Agent"))
		}
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	d := NewDirectDownloader(5*time.Second, "streamgate-test")
	body, err := d.Download(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if string(body) != "payload" {
		t.Fatalf("body: %q", body)
	}
}

func TestDirectDownloader_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	d := NewDirectDownloader(5*time.Second, "")
	_, err := d.Download(context.Background(), srv.URL)
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected HTTPStatusError 404, got %v", err)
	}
}

func TestDownloadToFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("asset-bytes"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "asset.jpg")
	d := NewDirectDownloader(5*time.Second, "")
	if err := DownloadToFile(context.Background(), d, srv.URL, path); err != nil {
		t.Fatalf("download to file: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "asset-bytes" {
		t.Fatalf("file contents: %q err=%v", got, err)
	}
}
