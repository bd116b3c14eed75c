package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// RemoteConfig 定义远程日志写入配置。
// 远端需接受 application/x-ndjson 格式的批量日志。
type RemoteConfig struct {
	Enabled       bool
	Endpoint      string
	AuthToken     string
	Timeout       time.Duration
	BatchSize     int
	BufferSize    int
	FlushInterval time.Duration
	DropOnFull    bool // 缓冲区满时丢弃而不是阻塞调用方。
}

func (c RemoteConfig) withDefaults() RemoteConfig {
	if c.Timeout <= 0 {
		c.Timeout = 3 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 200
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 2 * time.Second
	}
	return c
}

// remoteWriter 是异步批量的 io.Writer，每条 JSON 日志占一行。
type remoteWriter struct {
	cfg     RemoteConfig
	client  *http.Client
	queue   chan []byte
	done    chan struct{}
	stopped sync.WaitGroup
	once    sync.Once
	closed  atomic.Bool
	dropped atomic.Int64
	warn    *slog.Logger // 写入失败只输出到 stderr，避免递归写远端。
}

func newRemoteWriter(cfg RemoteConfig) (*remoteWriter, func() error) {
	cfg = cfg.withDefaults()
	w := &remoteWriter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		queue:  make(chan []byte, cfg.BufferSize),
		done:   make(chan struct{}),
		warn:   slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}

	w.stopped.Add(1)
	go w.run()
	return w, w.close
}

func (w *remoteWriter) Write(p []byte) (int, error) {
	if len(p) == 0 || w.closed.Load() {
		return len(p), nil
	}

	line := bytes.Clone(bytes.TrimRight(p, "\n"))
	if !w.cfg.DropOnFull {
		// close 之后后台协程不再消费队列，此时放弃写入。
		select {
		case w.queue <- line:
		case <-w.done:
		}
		return len(p), nil
	}

	select {
	case w.queue <- line:
	default:
		w.dropped.Add(1)
	}
	return len(p), nil
}

// Dropped 返回因缓冲区满而丢弃的日志条数。
func (w *remoteWriter) Dropped() int64 {
	return w.dropped.Load()
}

func (w *remoteWriter) run() {
	defer w.stopped.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	var (
		batch bytes.Buffer
		count int
	)
	flush := func() {
		if count == 0 {
			return
		}
		w.post(batch.Bytes())
		batch.Reset()
		count = 0
	}

	for {
		select {
		case line := <-w.queue:
			batch.Write(line)
			batch.WriteByte('\n')
			if count++; count >= w.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-w.done:
			// 排空队列中剩余的日志后退出。
			for {
				select {
				case line := <-w.queue:
					batch.Write(line)
					batch.WriteByte('\n')
					count++
				default:
					flush()
					if n := w.dropped.Load(); n > 0 {
						w.warn.Warn("remote log dropped messages", "count", n)
					}
					return
				}
			}
		}
	}
}

func (w *remoteWriter) post(payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		w.warn.Warn("remote log request build failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	if w.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+w.cfg.AuthToken)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		w.warn.Warn("remote log request failed", "error", err)
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		w.warn.Warn("remote log request returned non-2xx", "status", resp.Status)
	}
}

func (w *remoteWriter) close() error {
	w.once.Do(func() {
		w.closed.Store(true)
		close(w.done)
		w.stopped.Wait()
	})
	return nil
}
