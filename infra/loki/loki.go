package loki

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	batchSize     = 20
	maxPending    = 1000
	flushInterval = time.Second
	levelLabel    = "level"
)

// Writer buffers JSON log lines and ships them to Loki's push API, one stream
// per log level. It satisfies zapcore.WriteSyncer.
type Writer struct {
	endpoint string
	labels   map[string]string
	client   *http.Client
	interval time.Duration

	mu      sync.Mutex
	pending map[string][][2]string
	count   int

	flush    chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	stopped  sync.WaitGroup
}

// NewWriter returns a Writer pushing to the Loki base url (e.g. http://loki:3100)
// with the given static labels, or nil when url is empty.
func NewWriter(url string, labels map[string]string) *Writer {
	return newWriter(url, labels, flushInterval)
}

func newWriter(url string, labels map[string]string, interval time.Duration) *Writer {
	if url == "" {
		return nil
	}
	w := &Writer{
		endpoint: strings.TrimSuffix(url, "/") + "/loki/api/v1/push",
		labels:   labels,
		client:   &http.Client{Timeout: 5 * time.Second},
		interval: interval,
		pending:  make(map[string][][2]string),
		flush:    make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	w.stopped.Add(1)
	go w.run()
	return w
}

func (w *Writer) Write(p []byte) (int, error) {
	ts := strconv.FormatInt(time.Now().UnixNano(), 10)
	w.mu.Lock()
	for _, line := range bytes.Split(p, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		level := lineLevel(line)
		w.pending[level] = append(w.pending[level], [2]string{ts, string(line)})
		w.count++
	}
	full := w.count >= batchSize
	w.mu.Unlock()

	// a full batch is pushed by run, never on the logging goroutine
	if full {
		select {
		case w.flush <- struct{}{}:
		default:
		}
	}
	return len(p), nil
}

// Sync pushes whatever is buffered. A rejected batch is put back in front of
// newer lines and retried on the next flush.
func (w *Writer) Sync() error {
	w.mu.Lock()
	pending := w.pending
	w.pending = make(map[string][][2]string)
	w.count = 0
	w.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	if err := w.push(w.request(pending)); err != nil {
		w.requeue(pending)
		return err
	}
	return nil
}

// requeue merges failed back into the buffer, dropping the oldest failed
// lines once the buffer holds more than maxPending.
func (w *Writer) requeue(failed map[string][][2]string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	levels := make([]string, 0, len(failed))
	total := 0
	for level, values := range failed {
		levels = append(levels, level)
		total += len(values)
	}
	sort.Strings(levels)

	drop := w.count + total - maxPending
	for _, level := range levels {
		values := failed[level]
		if drop > 0 {
			n := min(drop, len(values))
			values = values[n:]
			drop -= n
		}
		if len(values) == 0 {
			continue
		}
		w.pending[level] = append(values, w.pending[level]...)
		w.count += len(values)
	}
}

// Close stops the background flusher and pushes the remaining lines.
func (w *Writer) Close() error {
	w.stopOnce.Do(func() { close(w.stop) })
	w.stopped.Wait()
	return w.Sync()
}

func (w *Writer) run() {
	defer w.stopped.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			_ = w.Sync()
		case <-w.flush:
			_ = w.Sync()
		}
	}
}

func (w *Writer) request(pending map[string][][2]string) pushRequest {
	levels := make([]string, 0, len(pending))
	for level := range pending {
		levels = append(levels, level)
	}
	sort.Strings(levels)

	req := pushRequest{Streams: make([]stream, 0, len(levels))}
	for _, level := range levels {
		labels := make(map[string]string, len(w.labels)+1)
		for k, v := range w.labels {
			labels[k] = v
		}
		if level != "" {
			labels[levelLabel] = level
		}
		req.Streams = append(req.Streams, stream{Stream: labels, Values: pending[level]})
	}
	return req
}

func (w *Writer) push(body pushRequest) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := w.client.Post(w.endpoint, "application/json", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("loki push: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// lineLevel reads the "level" field of a JSON log line, or "" for anything
// else.
func lineLevel(line []byte) string {
	var entry struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal(line, &entry); err != nil {
		return ""
	}
	return entry.Level
}

type pushRequest struct {
	Streams []stream `json:"streams"`
}

type stream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}
