package ingest_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"filerelay/internal/ingest"
)

type sink struct {
	mu    sync.Mutex
	paths []string
}

func (s *sink) Push(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
}

func post(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNotifyFormPushesPath(t *testing.T) {
	s := &sink{}
	h := ingest.NewHandler("/data", s, zap.NewNop())

	form := url.Values{"path": {"/data/a/b.txt"}}
	req := httptest.NewRequest(http.MethodPost, "/notify", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := post(h, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, []string{"/data/a/b.txt"}, s.paths)
}

func TestNotifyJSONAndDuplicates(t *testing.T) {
	s := &sink{}
	h := ingest.NewHandler("/data/", s, zap.NewNop())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/notify", strings.NewReader(`{"path":"/data/x.bin"}`))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		require.Equal(t, http.StatusAccepted, post(h, req).Code)
	}
	require.Equal(t, []string{"/data/x.bin", "/data/x.bin"}, s.paths)
}

func TestNotifyQueryParameter(t *testing.T) {
	s := &sink{}
	h := ingest.NewHandler("/data", s, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/notify?path=/data/q.txt", nil)
	require.Equal(t, http.StatusAccepted, post(h, req).Code)
	require.Equal(t, []string{"/data/q.txt"}, s.paths)
}

func TestNotifyRejectsBadPaths(t *testing.T) {
	s := &sink{}
	h := ingest.NewHandler("/data", s, zap.NewNop())

	for _, p := range []string{"", "relative.txt", "/etc/passwd", "/data", "/data/../etc/passwd", "/database/x"} {
		req := httptest.NewRequest(http.MethodPost, "/notify?path="+url.QueryEscape(p), nil)
		require.Equal(t, http.StatusBadRequest, post(h, req).Code, p)
	}
	require.Empty(t, s.paths)
}

func TestNotifyRequiresPost(t *testing.T) {
	h := ingest.NewHandler("/data", &sink{}, zap.NewNop())
	rec := post(h, httptest.NewRequest(http.MethodGet, "/notify?path=/data/x", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestNotifyInvalidJSON(t *testing.T) {
	h := ingest.NewHandler("/data", &sink{}, zap.NewNop())
	req := httptest.NewRequest(http.MethodPost, "/notify", strings.NewReader(`{`))
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, http.StatusBadRequest, post(h, req).Code)
}
