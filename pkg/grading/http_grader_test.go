package grading

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursehub-api/internal/models"
	"github.com/noah-isme/coursehub-api/pkg/config"
)

func TestHTTPGraderPass(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/grade", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body gradeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "go", body.Language)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"PASS"}`))
	}))
	defer srv.Close()

	g := NewHTTPGrader(config.GradingConfig{URL: srv.URL + "/", Token: "tok", Timeout: time.Second})
	res, err := g.Grade(context.Background(), "package main", "go")
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionPass, res)
}

func TestHTTPGraderPassedFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"passed":false}`))
	}))
	defer srv.Close()

	res, err := NewHTTPGrader(config.GradingConfig{URL: srv.URL}).Grade(context.Background(), "x", "py")
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionFail, res)
}

func TestHTTPGraderUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPGrader(config.GradingConfig{URL: srv.URL}).Grade(context.Background(), "x", "go")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPGraderTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewHTTPGrader(config.GradingConfig{URL: srv.URL}).Grade(ctx, "x", "go")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPGraderUnknownVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"maybe"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPGrader(config.GradingConfig{URL: srv.URL}).Grade(context.Background(), "x", "go")
	require.ErrorIs(t, err, ErrUnavailable)
}
