package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// writeTimeout bounds a single background write
const writeTimeout = 10 * time.Second

// Writer persists values asynchronously through one background goroutine.
// Pending values are coalesced per key so only the latest value is written.
// Failures are logged and dropped.
type Writer struct {
	store Store
	log   *zap.Logger

	mu      sync.Mutex
	pending map[string][]byte
	order   []string
	busy    bool
	idle    chan struct{}
	closed  bool

	wake      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewWriter starts a writer for store. A nil logger discards output.
func NewWriter(store Store, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	w := &Writer{
		store:   store,
		log:     log,
		pending: make(map[string][]byte),
		idle:    make(chan struct{}),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Enqueue schedules value to be written under key
func (w *Writer) Enqueue(key string, value []byte) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.log.Warn("cache write after close dropped", zap.String("key", key))
		return
	}
	if _, ok := w.pending[key]; !ok {
		w.order = append(w.order, key)
	}
	w.pending[key] = value
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// EnqueueJSON serializes v and schedules it under key
func (w *Writer) EnqueueJSON(key string, v interface{}) {
	data, err := EncodeJSON(v)
	if err != nil {
		w.log.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	w.Enqueue(key, data)
}

// Flush blocks until every value enqueued before the call has been written
func (w *Writer) Flush(ctx context.Context) error {
	for {
		w.mu.Lock()
		if len(w.order) == 0 && !w.busy {
			w.mu.Unlock()
			return nil
		}
		idle := w.idle
		w.mu.Unlock()

		select {
		case <-idle:
		case <-w.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close writes the remaining values and stops the writer
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		close(w.stop)
	})
	<-w.done
	return nil
}

func (w *Writer) run() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.drain()
		case <-w.stop:
			w.drain()
			return
		}
	}
}

func (w *Writer) drain() {
	for {
		w.mu.Lock()
		if len(w.order) == 0 {
			w.busy = false
			close(w.idle)
			w.idle = make(chan struct{})
			w.mu.Unlock()
			return
		}
		key := w.order[0]
		w.order = w.order[1:]
		value := w.pending[key]
		delete(w.pending, key)
		w.busy = true
		w.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := w.store.Put(ctx, key, value)
		cancel()
		if err != nil {
			w.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
}
