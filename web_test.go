package main

import (
	"bytes"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPNG = append([]byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}, bytes.Repeat([]byte{0x01}, 24)...)

func newTestApp(t *testing.T, mutate func(*Config)) (*app, http.Handler) {
	t.Helper()

	cfg := defaultConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.validate())

	a := newApp(cfg, zerolog.Nop(), afero.NewMemMapFs())
	return a, a.routes()
}

func get(t *testing.T, h http.Handler, path string, header http.Header) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec.Result()
}

func body(t *testing.T, res *http.Response) string {
	t.Helper()

	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return string(b)
}

func TestRoutes_Ambient(t *testing.T) {
	_, h := newTestApp(t, nil)

	res := get(t, h, "/healthz", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "Ok\n", body(t, res))

	res = get(t, h, "/version", nil)
	assert.Equal(t, "feudbox v"+releaseVersion+"\n", body(t, res))
	assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))

	res = get(t, h, "/robots.txt", nil)
	assert.Contains(t, body(t, res), "Disallow: /rooms/")

	res = get(t, h, "/?room=abcd", nil)
	assert.Contains(t, body(t, res), "Join room ABCD")

	res = get(t, h, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestRoutes_Prefix(t *testing.T) {
	_, h := newTestApp(t, func(c *Config) { c.prefix = "/feud" })

	assert.Equal(t, http.StatusOK, get(t, h, "/feud/healthz", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/healthz", nil).StatusCode)
}

func TestRoutes_RoomQR(t *testing.T) {
	a, h := newTestApp(t, nil)

	r, err := a.rooms.Create()
	require.NoError(t, err)

	res := get(t, h, "/rooms/"+strings.ToLower(r.Code())+"/qr", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "image/png", res.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix([]byte(body(t, res)), testPNG[:8]))

	a.rooms.Delete(r.Code())
	assert.Equal(t, http.StatusNotFound, get(t, h, "/rooms/"+r.Code()+"/qr", nil).StatusCode)
}

func TestJoinURL(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.prefix = "/feud"

	req := httptest.NewRequest(http.MethodGet, "http://example.com/feud/rooms/ABCD/qr", nil)
	assert.Equal(t, "http://example.com/feud/?room=ABCD", joinURL(cfg, req, "ABCD"))

	req.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://example.com/feud/?room=ABCD", joinURL(cfg, req, "ABCD"))

	req.Header.Set("X-Forwarded-Proto", "javascript")
	assert.Equal(t, "http://example.com/feud/?room=ABCD", joinURL(cfg, req, "ABCD"))
}

func TestRoutes_Logo(t *testing.T) {
	a, h := newTestApp(t, nil)

	r, err := a.rooms.Create()
	require.NoError(t, err)

	name, _, err := a.store.SaveLogo(r.Code(), base64.StdEncoding.EncodeToString(testPNG), "image/png")
	require.NoError(t, err)

	res := get(t, h, "/rooms/"+r.Code()+"/logo/"+name, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, string(testPNG), body(t, res))

	assert.Equal(t, http.StatusNotFound, get(t, h, "/rooms/"+r.Code()+"/logo/secret.txt", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/rooms/"+r.Code()+"/logo/logo.gif", nil).StatusCode)

	// Closing the room takes its assets with it.
	assert.Equal(t, 1, a.closeRooms())
	assert.Equal(t, http.StatusNotFound, get(t, h, "/rooms/"+r.Code()+"/logo/"+name, nil).StatusCode)
	assert.Equal(t, 0, a.rooms.Len())
}

func TestRoutes_Metrics(t *testing.T) {
	a, h := newTestApp(t, func(c *Config) { c.metrics = true })

	_, err := a.rooms.Create()
	require.NoError(t, err)
	a.recorder.RoomCreated()

	res := get(t, h, "/metrics", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	text := body(t, res)
	assert.Contains(t, text, "feudbox_rooms 1")
	assert.Contains(t, text, "feudbox_rooms_created_total 1")
}

func TestRoutes_CORS(t *testing.T) {
	a, h := newTestApp(t, func(c *Config) { c.corsOrigins = []string{"https://play.example"} })

	res := get(t, h, "/healthz", http.Header{"Origin": {"https://play.example"}})
	assert.Equal(t, "https://play.example", res.Header.Get("Access-Control-Allow-Origin"))

	res = get(t, h, "/healthz", http.Header{"Origin": {"https://evil.example"}})
	assert.Empty(t, res.Header.Get("Access-Control-Allow-Origin"))

	check := a.checkOrigin()
	require.NotNil(t, check)

	req := httptest.NewRequest(http.MethodGet, "http://feud.example/ws", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://feud.example")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://play.example")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))
}

func TestPrepareDirs(t *testing.T) {
	fsys := afero.NewMemMapFs()
	cfg := defaultConfig(t)

	require.NoError(t, prepareDirs(fsys, cfg))

	for _, dir := range []string{cfg.gamesDir, cfg.publicDir} {
		ok, err := afero.DirExists(fsys, dir)
		require.NoError(t, err)
		assert.True(t, ok, dir)
	}
}

func TestHumanReadableSize(t *testing.T) {
	assert.Equal(t, "999 B", humanReadableSize(999))
	assert.Equal(t, "1.5 kB", humanReadableSize(1500))
	assert.Equal(t, "2.1 MB", humanReadableSize(2<<20))
}
