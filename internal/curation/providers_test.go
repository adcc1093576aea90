package curation

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

func TestHTTPSearcher(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "go testing", r.URL.Query().Get("q"))
		assert.Equal(t, "en", r.URL.Query().Get("lang"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]Resource{
			{Title: "Testing in Go", URL: "https://example.com/testing", Kind: "doc"},
		})
	}))
	defer server.Close()

	s := NewHTTPSearcher(server.URL, time.Second)
	resources, err := s.Search(context.Background(), SearchRequest{
		Source:  SourceDocs,
		Query:   "go testing",
		Filters: map[string]string{"lang": "en"},
	})
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "Testing in Go", resources[0].Title)
}

func TestHTTPSearcherNonOKStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	s := NewHTTPSearcher(server.URL, time.Second)
	_, err := s.Search(context.Background(), SearchRequest{Source: SourceVideo, Query: "anything"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPSearcherMalformedBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not": "an array"}`))
	}))
	defer server.Close()

	s := NewHTTPSearcher(server.URL, time.Second)
	_, err := s.Search(context.Background(), SearchRequest{Source: SourceVideo, Query: "anything"})
	require.Error(t, err)
}

func TestHTTPLinkValidator(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	v := NewHTTPLinkValidator(time.Second)

	ok, err := v.Validate(context.Background(), server.URL+"/present")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.Validate(context.Background(), server.URL+"/gone")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHTTPLinkValidatorTransportError(t *testing.T) {
	t.Parallel()

	v := NewHTTPLinkValidator(100 * time.Millisecond)
	_, err := v.Validate(context.Background(), "http://127.0.0.1:1/unreachable")
	require.Error(t, err)
}
