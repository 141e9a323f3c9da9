package common

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReference(t *testing.T) {
	pattern := regexp.MustCompile(`^DEP-[0-9]{10}[A-Z]$`)
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		ref := GenerateReference("DEP")
		assert.Regexp(t, pattern, ref)
		seen[ref] = struct{}{}
	}
	assert.Greater(t, len(seen), 190)
}

func TestGenerateCode(t *testing.T) {
	code := GenerateCode(8)
	assert.Len(t, code, 8)
	assert.Regexp(t, `^[A-Z0-9]{8}$`, code)
}

func TestNormalizePage(t *testing.T) {
	page, limit := NormalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, DefaultPageLimit, limit)

	page, limit = NormalizePage(3, 500)
	assert.Equal(t, 3, page)
	assert.Equal(t, MaxPageLimit, limit)
	assert.Equal(t, 200, Offset(page, limit))
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(101, 2, 10)
	assert.Equal(t, int64(101), p.Total)
	assert.Equal(t, 11, p.TotalPages)

	p = NewPagination(0, 1, 10)
	assert.Equal(t, 0, p.TotalPages)
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	}))
	defer srv.Close()

	var out struct {
		Result string `json:"result"`
	}
	err := GetJSON(context.Background(), srv.URL, map[string]string{"x-api-key": "secret"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Result)
}

func TestPostJSONStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	err := PostJSON(context.Background(), srv.URL, map[string]string{"a": "b"}, nil, nil)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
}
