package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	window    = time.Minute
	idleAfter = 10 * time.Minute
)

// Limiter caps ledger writes per client with a fixed one-minute window.
// Reads are never counted.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*clientWindow
	limit   int
	methods map[string]bool
	now     func() time.Time

	sweepEvery time.Duration
	done       chan struct{}
	stopOnce   sync.Once
}

type clientWindow struct {
	opened time.Time
	seen   time.Time
	count  int
}

type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
	// Methods are the limited HTTP methods.
	Methods []string
}

// DefaultConfig limits POST, PUT and DELETE to 120 per minute.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 120,
		CleanupInterval:   5 * time.Minute,
		Methods:           []string{http.MethodPost, http.MethodPut, http.MethodDelete},
	}
}

// NewLimiter fills unset fields from DefaultConfig and starts sweeping idle
// clients. Call Stop to end the sweep.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if len(cfg.Methods) == 0 {
		cfg.Methods = def.Methods
	}

	l := &Limiter{
		windows:    make(map[string]*clientWindow),
		limit:      cfg.RequestsPerMinute,
		methods:    make(map[string]bool, len(cfg.Methods)),
		now:        time.Now,
		sweepEvery: cfg.CleanupInterval,
		done:       make(chan struct{}),
	}
	for _, m := range cfg.Methods {
		l.methods[m] = true
	}
	go l.sweepLoop()
	return l
}

// Allow counts a request from client and reports whether it fits the window.
func (l *Limiter) Allow(client string) bool {
	ok, _ := l.take(client)
	return ok
}

// take returns, on rejection, how long until the client's window reopens.
func (l *Limiter) take(client string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.windows[client]
	if w == nil || now.Sub(w.opened) >= window {
		w = &clientWindow{opened: now}
		l.windows[client] = w
	}
	w.seen = now
	w.count++
	if w.count <= l.limit {
		return true, 0
	}
	return false, w.opened.Add(window).Sub(now)
}

func (l *Limiter) sweepLoop() {
	t := time.NewTicker(l.sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			l.sweep()
		case <-l.done:
			return
		}
	}
}

// sweep forgets clients idle for longer than idleAfter.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-idleAfter)
	for client, w := range l.windows {
		if w.seen.Before(cutoff) {
			delete(l.windows, client)
		}
	}
}

func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// Middleware limits the configured methods per client IP. onLimit writes the
// rejection body; when nil a plain 429 is sent. Retry-After is always set.
func (l *Limiter) Middleware(clientIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.methods[r.Method] {
				next.ServeHTTP(w, r)
				return
			}
			ok, wait := l.take(clientIP(r))
			if ok {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", retryAfter(wait))
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, "too many writes, try again later", http.StatusTooManyRequests)
		})
	}
}

// retryAfter rounds up to whole seconds, never below one.
func retryAfter(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
