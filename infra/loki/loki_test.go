package loki

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"fmt"
	"sync"
	"testing"
	"time"
)

type pushRecorder struct {
	mu       sync.Mutex
	requests []pushRequest
	status   int
}

func (p *pushRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body pushRequest
	if r.URL.Path == "/loki/api/v1/push" {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	p.mu.Lock()
	p.requests = append(p.requests, body)
	status := p.status
	p.mu.Unlock()
	if status == 0 {
		status = http.StatusNoContent
	}
	w.WriteHeader(status)
}

func (p *pushRecorder) setStatus(status int) {
	p.mu.Lock()
	p.status = status
	p.mu.Unlock()
}

func (p *pushRecorder) pushes() []pushRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pushRequest(nil), p.requests...)
}

func TestNewWriterDisabledWithoutURL(t *testing.T) {
	if w := NewWriter("", map[string]string{"job": "court-booking"}); w != nil {
		t.Fatalf("expected nil writer without url")
	}
}

func TestWriterSplitsStreamsByLevel(t *testing.T) {
	rec := &pushRecorder{}
	server := httptest.NewServer(rec)
	defer server.Close()

	w := newWriter(server.URL+"/", map[string]string{"job": "court-booking"}, time.Hour)
	defer w.Close()

	w.Write([]byte(`{"level":"info","msg":"booked"}` + "\n\n" + `{"level":"warn","msg":"kafka down"}` + "\n"))
	w.Write([]byte("plain text\n"))
	if err := w.Sync(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	pushes := rec.pushes()
	if len(pushes) != 1 {
		t.Fatalf("expected 1 push, got %d", len(pushes))
	}
	streams := pushes[0].Streams
	if len(streams) != 3 {
		t.Fatalf("expected 3 streams, got %d", len(streams))
	}
	// sorted by level: "", "info", "warn"
	if _, ok := streams[0].Stream["level"]; ok || streams[0].Values[0][1] != "plain text" {
		t.Fatalf("unexpected unlabelled stream: %+v", streams[0])
	}
	if streams[1].Stream["level"] != "info" || streams[1].Stream["job"] != "court-booking" || len(streams[1].Values) != 1 {
		t.Fatalf("unexpected info stream: %+v", streams[1])
	}
	if streams[2].Stream["level"] != "warn" || streams[2].Values[0][1] != `{"level":"warn","msg":"kafka down"}` {
		t.Fatalf("unexpected warn stream: %+v", streams[2])
	}
}

func TestWriterFlushesFullBatchInBackground(t *testing.T) {
	rec := &pushRecorder{}
	server := httptest.NewServer(rec)
	defer server.Close()

	w := newWriter(server.URL, map[string]string{"job": "court-booking"}, time.Hour)
	defer w.Close()

	for i := 0; i < batchSize; i++ {
		if _, err := w.Write([]byte(`{"level":"info"}` + "\n")); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(rec.pushes()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected a background push of the full batch")
		}
		time.Sleep(5 * time.Millisecond)
	}
	pushes := rec.pushes()
	if len(pushes) != 1 || len(pushes[0].Streams[0].Values) != batchSize {
		t.Fatalf("expected one push of %d lines, got %+v", batchSize, pushes)
	}
}

func TestWriterRetriesRejectedBatch(t *testing.T) {
	rec := &pushRecorder{status: http.StatusServiceUnavailable}
	server := httptest.NewServer(rec)
	defer server.Close()

	w := newWriter(server.URL, map[string]string{"job": "court-booking"}, time.Hour)
	defer w.Close()

	w.Write([]byte(`{"level":"info","msg":"first"}` + "\n"))
	if err := w.Sync(); err == nil {
		t.Fatalf("expected error for rejected push")
	}
	w.Write([]byte(`{"level":"info","msg":"second"}` + "\n"))

	rec.setStatus(http.StatusNoContent)
	if err := w.Sync(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	pushes := rec.pushes()
	if len(pushes) != 2 {
		t.Fatalf("expected 2 pushes, got %d", len(pushes))
	}
	values := pushes[1].Streams[0].Values
	if len(values) != 2 || values[0][1] != `{"level":"info","msg":"first"}` || values[1][1] != `{"level":"info","msg":"second"}` {
		t.Fatalf("expected the rejected line ahead of the new one, got %+v", values)
	}
}

func TestWriterBoundsBufferWhileLokiIsDown(t *testing.T) {
	rec := &pushRecorder{status: http.StatusInternalServerError}
	server := httptest.NewServer(rec)
	defer server.Close()

	w := newWriter(server.URL, map[string]string{"job": "court-booking"}, time.Hour)
	var lines []byte
	for i := 0; i < maxPending+50; i++ {
		lines = append(lines, fmt.Sprintf("line %d\n", i)...)
	}
	w.Write(lines)
	if err := w.Close(); err == nil {
		t.Fatalf("expected error for rejected push")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.count != maxPending || len(w.pending[""]) != maxPending {
		t.Fatalf("expected %d buffered lines, got %d", maxPending, w.count)
	}
	if last := w.pending[""][maxPending-1][1]; last != fmt.Sprintf("line %d", maxPending+49) {
		t.Fatalf("expected newest line kept, got %q", last)
	}
	if first := w.pending[""][0][1]; first != "line 50" {
		t.Fatalf("expected oldest lines dropped, got %q", first)
	}
}

func TestSyncReportsRejectedPush(t *testing.T) {
	rec := &pushRecorder{status: http.StatusBadRequest}
	server := httptest.NewServer(rec)
	defer server.Close()

	w := newWriter(server.URL, map[string]string{"job": "court-booking"}, time.Hour)
	defer w.Close()

	w.Write([]byte("line\n"))
	if err := w.Sync(); err == nil {
		t.Fatalf("expected error for rejected push")
	}
}

func TestCloseWithEmptyBufferDoesNotPush(t *testing.T) {
	rec := &pushRecorder{}
	server := httptest.NewServer(rec)
	defer server.Close()

	w := NewWriter(server.URL, map[string]string{"job": "court-booking"})
	if err := w.Close(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("expected second close to be safe, got %v", err)
	}
	if len(rec.pushes()) != 0 {
		t.Fatalf("expected no push for empty buffer")
	}
}
