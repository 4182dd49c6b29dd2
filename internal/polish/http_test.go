package polish

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrapStringPlainString(t *testing.T) {
	assert.Equal(t, "hello", unwrapString("hello"))
}

func TestUnwrapStringNestedContent(t *testing.T) {
	assert.Equal(t, "hello", unwrapString(map[string]any{"content": "hello"}))
}

func TestUnwrapStringNilIsEmpty(t *testing.T) {
	assert.Equal(t, "", unwrapString(nil))
}

func TestUnwrapStringUnknownShapeStringifies(t *testing.T) {
	assert.Equal(t, "42", unwrapString(float64(42)))
}

func TestHTTPClientPolishSendsRequestAndUnwraps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req polishRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Text)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rawPolishResponse{
			Refined:    "Hello.",
			Translated: map[string]any{"content": "你好。"},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := c.Polish(ctx, "hello", "", "en", "zh")
	require.NoError(t, err)
	assert.Equal(t, "Hello.", res.Refined)
	assert.Equal(t, "你好。", res.Translated)
}

func TestHTTPClientPolishNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	_, err := c.Polish(context.Background(), "hello", "", "en", "zh")
	assert.Error(t, err)
}

func TestHTTPClientPolishRespectsContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()

	_, err := c.Polish(ctx, "hello", "", "en", "zh")
	assert.Error(t, err)
}
