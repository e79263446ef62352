package catalog_test

import (
	"context"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"bookshelf/internal/catalog"
	"bookshelf/internal/storage/memory"
)

func newTestServer(t *testing.T, limiter *rate.Limiter) *httptest.Server {
	t.Helper()
	h := catalog.NewHandler(newService(t, memory.New()), limiter)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func send(t *testing.T, method, url, body string) (int, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestHandlerBookLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)

	status, body := send(t, http.MethodGet, srv.URL+"/books", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, body)

	status, body = send(t, http.MethodPost, srv.URL+"/books", `{"title":"Livro A","genre":0}`)
	assert.Equal(t, http.StatusCreated, status)
	assert.JSONEq(t, `{"id":1,"title":"Livro A","genre":0}`, body)

	status, body = send(t, http.MethodPut, srv.URL+"/books/1", `{"title":"Novo","genre":4}`)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"id":1,"title":"Novo","genre":4}`, body)

	status, body = send(t, http.MethodGet, srv.URL+"/books/1", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"id":1,"title":"Novo","genre":4}`, body)

	status, _ = send(t, http.MethodPut, srv.URL+"/books/999", `{"title":"x","genre":1}`)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = send(t, http.MethodDelete, srv.URL+"/books/1", "")
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = send(t, http.MethodDelete, srv.URL+"/books/1", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = send(t, http.MethodGet, srv.URL+"/books/1", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHandlerRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"genre out of range", http.MethodPost, "/books", `{"title":"x","genre":6}`},
		{"genre as name", http.MethodPost, "/books", `{"title":"x","genre":"Fiction"}`},
		{"missing genre", http.MethodPost, "/books", `{"title":"x"}`},
		{"missing title", http.MethodPost, "/books", `{"genre":1}`},
		{"malformed json", http.MethodPost, "/books", `{`},
		{"update bad genre", http.MethodPut, "/books/1", `{"title":"x","genre":42}`},
		{"non numeric id", http.MethodGet, "/books/abc", ""},
		{"id too large", http.MethodDelete, "/books/4294967296", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := send(t, tt.method, srv.URL+tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
		})
	}

	status, body := send(t, http.MethodGet, srv.URL+"/books", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, body)
}

func TestHandlerListGolden(t *testing.T) {
	srv := newTestServer(t, nil)
	for _, body := range []string{
		`{"title":"Livro A","genre":0}`,
		`{"title":"Livro B","genre":1}`,
		`{"title":"Livro C","genre":2}`,
	} {
		status, _ := send(t, http.MethodPost, srv.URL+"/books", body)
		require.Equal(t, http.StatusCreated, status)
	}
	status, _ := send(t, http.MethodDelete, srv.URL+"/books/2", "")
	require.Equal(t, http.StatusNoContent, status)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	_, body := send(t, http.MethodGet, srv.URL+"/books", "")
	g.Assert(t, "list_books", []byte(body))

	_, body = send(t, http.MethodGet, srv.URL+"/genres", "")
	g.Assert(t, "list_genres", []byte(body))
}

func TestHandlerThrottlesWrites(t *testing.T) {
	srv := newTestServer(t, rate.NewLimiter(rate.Limit(0.001), 1))

	status, _ := send(t, http.MethodPost, srv.URL+"/books", `{"title":"a","genre":0}`)
	assert.Equal(t, http.StatusCreated, status)

	status, _ = send(t, http.MethodPost, srv.URL+"/books", `{"title":"b","genre":0}`)
	assert.Equal(t, http.StatusTooManyRequests, status)

	// Reads are never throttled.
	status, _ = send(t, http.MethodGet, srv.URL+"/books", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestHandlerHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	status, _ := send(t, http.MethodGet, srv.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestHandlerExhaustedCatalog(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Commit(ctx, catalog.State{
		Books:     []catalog.Book{{ID: math.MaxUint32, Title: "last", Genre: catalog.Other}},
		NextID:    math.MaxUint32,
		Exhausted: true,
	}, catalog.Event{Type: catalog.EventBookAdded}))
	srv := httptest.NewServer(catalog.NewHandler(newService(t, store), nil).Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/books", "application/json", strings.NewReader(`{"title":"more","genre":0}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, catalog.CodeIDSpaceExhausted, resp.Header.Get(catalog.ErrorCodeHeader))

	status, body := send(t, http.MethodGet, srv.URL+"/books", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[{"id":4294967295,"title":"last","genre":5}]`, body)
	assert.Len(t, store.Events(), 1)
}

func TestHandlerTagsInvalidGenre(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Post(srv.URL+"/books", "application/json", strings.NewReader(`{"title":"x","genre":6}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, catalog.CodeInvalidGenre, resp.Header.Get(catalog.ErrorCodeHeader))

	resp, err = http.Post(srv.URL+"/books", "application/json", strings.NewReader(`{"genre":1}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, resp.Header.Get(catalog.ErrorCodeHeader))
}
