package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/streamgate-proxy/streamgate/internal/cache"
	"github.com/streamgate-proxy/streamgate/internal/extract"
	"github.com/streamgate-proxy/streamgate/internal/gateway"
	"github.com/streamgate-proxy/streamgate/internal/proxy"
	"github.com/streamgate-proxy/streamgate/internal/requestlog"
	"github.com/streamgate-proxy/streamgate/internal/testutil"
	"github.com/streamgate-proxy/streamgate/internal/token"
)

const (
	testAdminToken = "test-admin-token"
	testSourceURL  = "https://www.tiktok.com/@someauthor/video/7301234567890"
)

// newTestServer wires a full API stack over an in-memory store and a fake
// extractor whose format URLs point at the given upstream.
func newTestServer(t *testing.T, info *extract.Info, adminToken string) *httptest.Server {
	t.Helper()
	codec, err := token.NewCodec("kx93-Vmq27!fjduQ")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	store := cache.NewMemoryStore(128)
	gw := gateway.New(gateway.Config{
		Extractor:        &testutil.FakeExtractor{Info: info},
		Metadata:         cache.NewMetadataStore(store, time.Minute),
		Sessions:         cache.NewSessionStore(store, time.Minute),
		Codec:            codec,
		SupportedDomains: []string{"tiktok.com", "x.com"},
	})
	srv := NewServer(ServerConfig{
		Port:            0,
		AdminToken:      adminToken,
		APIMaxBodyBytes: 1 << 20,
		Gateway:         gw,
		Streamer:        proxy.NewStreamer(nil, nil),
		Store:           store,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postExtract(t *testing.T, ts *httptest.Server, sourceURL string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/extract", "application/json",
		strings.NewReader(`{"url":"`+sourceURL+`"}`))
	if err != nil {
		t.Fatalf("post extract: %v", err)
	}
	return resp
}

func decodeExtract(t *testing.T, resp *http.Response) gateway.ExtractResponse {
	t.Helper()
	defer resp.Body.Close()
	var out gateway.ExtractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode extract response: %v", err)
	}
	return out
}

func decodeError(t *testing.T, resp *http.Response) ErrorResponse {
	t.Helper()
	defer resp.Body.Close()
	var out ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return out
}

func TestExtractEndpoint(t *testing.T) {
	ts := newTestServer(t, testutil.TikTokInfo(), "")

	resp := postExtract(t, ts, testSourceURL)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	out := decodeExtract(t, resp)
	if !out.Success || out.SessionID == "" || len(out.VideoFormats) == 0 {
		t.Fatalf("response: %+v", out)
	}
	for _, f := range out.VideoFormats {
		if !strings.HasPrefix(f.URL, "/stream?id=") {
			t.Errorf("unmasked format url: %q", f.URL)
		}
	}
}

func TestExtractEndpoint_BadRequests(t *testing.T) {
	ts := newTestServer(t, testutil.TikTokInfo(), "")

	resp, err := http.Post(ts.URL+"/extract", "application/json", strings.NewReader("not json"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed body status: %d", resp.StatusCode)
	}
	if e := decodeError(t, resp); e.ErrorCode != "INVALID_ARGUMENT" {
		t.Fatalf("error code: %+v", e)
	}

	resp = postExtract(t, ts, "https://example.com/watch")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unsupported url status: %d", resp.StatusCode)
	}
	if e := decodeError(t, resp); e.ErrorCode != "UNSUPPORTED_URL" {
		t.Fatalf("error code: %+v", e)
	}
}

func TestStreamEndpoint_EndToEnd(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") != "tt_session=abc" {
			t.Errorf("session cookie not reattached: %q", r.Header.Get("Cookie"))
		}
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("video-bytes"))
	}))
	defer upstream.Close()

	info := testutil.TikTokInfo()
	info.Formats[0].URL = upstream.URL + "/720.mp4"
	ts := newTestServer(t, info, "")

	out := decodeExtract(t, postExtract(t, ts, testSourceURL))

	resp, err := http.Get(ts.URL + "/stream?id=" + out.SessionID + "&format=http-720")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stream status: %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "video-bytes" {
		t.Fatalf("body: %q", body)
	}
	if resp.Header.Get("X-Filename") == "" {
		t.Fatal("filename header missing")
	}
}

func TestStreamEndpoint_SessionExpired(t *testing.T) {
	ts := newTestServer(t, testutil.TikTokInfo(), "")

	resp, err := http.Get(ts.URL + "/stream?id=unknown&format=best")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if resp.StatusCode != http.StatusGone {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	e := decodeError(t, resp)
	if e.ErrorCode != "SESSION_EXPIRED" || !strings.Contains(e.Message, "extract again") {
		t.Fatalf("error: %+v", e)
	}
}

func TestDownloadEndpoint_TokenRoundTrip(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mp4-bytes"))
	}))
	defer upstream.Close()

	info := testutil.TikTokInfo()
	info.Formats[0].URL = upstream.URL + "/720.mp4"
	// The captured size becomes the response Content-Length, so it must
	// match the fake body.
	size := int64(len("mp4-bytes"))
	info.Formats[0].Filesize = &size
	ts := newTestServer(t, info, "")

	out := decodeExtract(t, postExtract(t, ts, testSourceURL))
	link, ok := out.DownloadLinks["video"]
	if !ok {
		t.Fatalf("download links: %v", out.DownloadLinks)
	}

	resp, err := http.Get(ts.URL + link)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Filename"); got != "Some_Author.mp4" {
		t.Fatalf("filename: %q", got)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "mp4-bytes" {
		t.Fatalf("body: %q", body)
	}
}

func TestDownloadEndpoint_BadToken(t *testing.T) {
	ts := newTestServer(t, testutil.TikTokInfo(), "")

	resp, err := http.Get(ts.URL + "/download?data=%21%21garbage%21%21")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if e := decodeError(t, resp); e.ErrorCode != "INVALID_TOKEN" {
		t.Fatalf("error: %+v", e)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, testutil.TikTokInfo(), "")

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["store"] != "ok" {
		t.Fatalf("body: %v", body)
	}
}

func TestAdminAuth(t *testing.T) {
	ts := newTestServer(t, testutil.TikTokInfo(), testAdminToken)

	resp, err := http.Get(ts.URL + "/api/v1/system/info")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/system/info", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authenticated status: %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["version"] == "" {
		t.Fatalf("body: %v", body)
	}
}

func TestAdminDisabledWithoutToken(t *testing.T) {
	ts := newTestServer(t, testutil.TikTokInfo(), "")

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/system/info", nil)
	req.Header.Set("Authorization", "Bearer anything")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status: %d, admin routes must not exist", resp.StatusCode)
	}
}

func TestRequestLogEndpoint(t *testing.T) {
	repo, err := requestlog.OpenRepo(filepath.Join(t.TempDir(), "logs.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	defer repo.Close()
	if _, err := repo.InsertBatch([]requestlog.Entry{
		{ID: "e1", TsNs: 1, Endpoint: "extract", HTTPStatus: 200},
		{ID: "e2", TsNs: 2, Endpoint: "stream", HTTPStatus: 410, ErrorCode: "SESSION_EXPIRED"},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	srv := NewServer(ServerConfig{
		AdminToken: testAdminToken,
		Gateway:    gateway.New(gateway.Config{}),
		Streamer:   proxy.NewStreamer(nil, nil),
		LogRepo:    repo,
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/request-logs?limit=10", nil)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	var page requestLogPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 2 || page.Items[0].ID != "e2" {
		t.Fatalf("page: %+v", page)
	}
}

func TestRootDescriptor(t *testing.T) {
	ts := newTestServer(t, testutil.TikTokInfo(), "")

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["service"] != "streamgate" {
		t.Fatalf("body: %v", body)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, testutil.TikTokInfo(), "")

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/extract", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("cors headers missing")
	}
	if !strings.Contains(resp.Header.Get("Access-Control-Expose-Headers"), "X-Filename") {
		t.Fatal("download headers must be exposed")
	}
}
