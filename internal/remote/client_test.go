package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoDecodesJSONAndSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "k" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get(requestIDHeader) == "" {
			t.Errorf("missing request id")
		}
		if r.URL.Query().Get("chain") != "8453" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": body["x"]})
	}))
	defer srv.Close()

	c := New(Options{Attempts: 2, Timeout: time.Second})
	resp, err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		URL:    srv.URL,
		Query:  url.Values{"chain": {"8453"}},
		Header: http.Header{"X-API-KEY": {"k"}},
		Body:   map[string]string{"x": "y"},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	var out map[string]string
	if err := resp.JSON(&out); err != nil || out["echo"] != "y" {
		t.Fatalf("JSON: %v %v", err, out)
	}
}

func TestDoDoesNotRetryStatusErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Options{Attempts: 3, Timeout: time.Second})
	_, err := c.Get(context.Background(), srv.URL, nil, nil)
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want 404 StatusError", err)
	}
	if errors.Is(err, ErrUnavailable) {
		t.Fatal("404 must not look like an outage")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestDoRetriesTimeoutsThenReportsUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := New(Options{Attempts: 3, Timeout: 50 * time.Millisecond})
	_, err := c.Get(context.Background(), srv.URL, nil, nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	var ue *UnavailableError
	if !errors.As(err, &ue) || ue.Attempts != 3 {
		t.Fatalf("UnavailableError = %+v", ue)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestDoRecoversAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Errorf("no hijacker")
				return
			}
			conn, _, _ := hj.Hijack()
			_ = conn.Close()
			return
		}
		_, _ = w.Write([]byte(`{"data":"ok"}`))
	}))
	defer srv.Close()

	c := New(Options{Attempts: 2, Timeout: time.Second})
	resp, err := c.Get(context.Background(), srv.URL, nil, nil)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if string(resp.Body) != `{"data":"ok"}` {
		t.Fatalf("body = %s", resp.Body)
	}
}

func TestDoConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	c := New(Options{Attempts: 2, Timeout: 200 * time.Millisecond})
	_, err = c.Get(context.Background(), "http://"+addr, nil, nil)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}
