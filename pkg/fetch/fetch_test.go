package fetch_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"errguard/pkg/backoff"
	"errguard/pkg/catalog"
	"errguard/pkg/fetch"
	"errguard/pkg/normalize"
	"errguard/pkg/report"
)

type nopSink struct{ n atomic.Int32 }

func (s *nopSink) Write(context.Context, report.Record, report.Severity) error {
	s.n.Add(1)
	return nil
}

func newClient(t *testing.T, sink report.Sink, opts ...fetch.Option) *fetch.Client {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	norm := normalize.New(cat)

	exec := backoff.New(backoff.Config{
		Reporter:   report.New(report.Config{Sink: sink}, norm),
		Normalizer: norm,
		Sleep:      func(context.Context, time.Duration) error { return nil },
	})
	return fetch.New(exec, opts...)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	sink := &nopSink{}
	c := newClient(t, sink)

	resp, err := c.Fetch(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "ok", resp.Text())
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, int32(0), sink.n.Load())
}

func TestFetchExhaustionReturnsLastResponse(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "still broken")
	}))
	defer srv.Close()

	sink := &nopSink{}
	c := newClient(t, sink, fetch.WithBackoffOptions(backoff.Options{MaxRetries: 2}))

	resp, err := c.Fetch(context.Background(), srv.URL, nil)
	require.NoError(t, err, "exhaustion on the status path is not an error")
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())
	assert.Equal(t, "still broken", resp.Text())
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, int32(1), sink.n.Load(), "the muted failure is recorded once")
}

func TestFetchNonRetryableStatusPassesThrough(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "nope")
	}))
	defer srv.Close()

	c := newClient(t, &nopSink{})
	resp, err := c.Fetch(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchSendsHeadersAndPayload(t *testing.T) {
	var (
		gotMethod  string
		gotBody    []byte
		gotHeaders http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	c := newClient(t, &nopSink{}, fetch.WithHeaders(map[string]string{
		"X-Client":      "errguard",
		"Authorization": "Bearer default",
	}))

	_, err := c.Fetch(context.Background(), srv.URL, &fetch.Params{
		Method:      http.MethodPost,
		ContentType: "application/json",
		Payload:     []byte(`{"a":1}`),
		Headers:     map[string]string{"Authorization": "Bearer override"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, `{"a":1}`, string(gotBody))
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "errguard", gotHeaders.Get("X-Client"))
	assert.Equal(t, "Bearer override", gotHeaders.Get("Authorization"), "per-request headers win")
}

func TestFetchTransportErrorBecomesReportedError(t *testing.T) {
	sink := &nopSink{}
	c := newClient(t, sink, fetch.WithBackoffOptions(backoff.Options{MaxRetries: 1}))

	// Port 0 is never listening; every attempt fails at the dial.
	resp, err := c.Fetch(context.Background(), "http://127.0.0.1:0/", nil)
	assert.Nil(t, resp)
	var rerr *report.ReportedError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, int32(1), sink.n.Load())
}

func TestFetchBodySizeCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "0123456789")
	}))
	defer srv.Close()

	c := newClient(t, &nopSink{}, fetch.WithMaxBodySize(4))
	resp, err := c.Fetch(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "0123", resp.Text())
}
