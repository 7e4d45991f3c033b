// Package preload fetches poster images ahead of display and remembers what
// it fetched.
//
// The terminal cannot draw the images, but fetching them warms the HTTP
// path and records size and content type for the detail view.
package preload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency = 4
	DefaultTimeout     = 10 * time.Second
)

// Poster is the result of fetching one poster URL.
type Poster struct {
	URL         string
	Size        int64
	ContentType string
	Priority    bool
	Err         error
	FetchedAt   time.Time
}

// Ok reports whether the poster was fetched successfully.
func (p Poster) Ok() bool { return p.Err == nil && !p.FetchedAt.IsZero() }

// LoadedMsg reports a finished batch of posters.
type LoadedMsg struct {
	Posters  []Poster
	Priority bool
}

// Option configures a Preloader.
type Option func(*Preloader)

// WithHTTPClient sets the HTTP client used for fetching.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Preloader) { p.client = hc }
}

// WithConcurrency bounds the number of concurrent fetches.
func WithConcurrency(n int) Option {
	return func(p *Preloader) {
		if n > 0 {
			p.limit = n
		}
	}
}

// WithTimeout bounds each fetch.
func WithTimeout(d time.Duration) Option {
	return func(p *Preloader) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Preloader) { p.logger = l }
}

// Preloader fetches posters with bounded concurrency, priority posters
// first, and caches results by URL. It is safe for concurrent use.
type Preloader struct {
	client  *http.Client
	limit   int
	timeout time.Duration
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	posters map[string]Poster
	pending map[string]struct{}
}

// New creates a Preloader.
func New(opts ...Option) *Preloader {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Preloader{
		client:  http.DefaultClient,
		limit:   DefaultConcurrency,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
		ctx:     ctx,
		cancel:  cancel,
		posters: make(map[string]Poster),
		pending: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Preload returns a command fetching every URL not fetched or in flight yet.
// The first priority URLs are fetched as one batch before the rest.
func (p *Preloader) Preload(urls []string, priority int) tea.Cmd {
	priority = min(max(priority, 0), len(urls))

	first := p.claim(urls[:priority])
	rest := p.claim(urls[priority:])

	return tea.Sequence(p.batch(first, true), p.batch(rest, false))
}

// claim marks the URLs that need fetching as pending and returns them.
func (p *Preloader) claim(urls []string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []string
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := p.posters[u]; ok {
			continue
		}
		if _, ok := p.pending[u]; ok {
			continue
		}
		p.pending[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func (p *Preloader) batch(urls []string, priority bool) tea.Cmd {
	if len(urls) == 0 {
		return nil
	}
	return func() tea.Msg {
		return LoadedMsg{Posters: p.fetchAll(urls, priority), Priority: priority}
	}
}

// fetchAll fetches urls concurrently. Individual failures are recorded on
// the poster, never returned.
func (p *Preloader) fetchAll(urls []string, priority bool) []Poster {
	posters := make([]Poster, len(urls))

	var g errgroup.Group
	g.SetLimit(p.limit)
	for i, u := range urls {
		g.Go(func() error {
			posters[i] = p.fetch(u, priority)
			return nil
		})
	}
	_ = g.Wait()

	p.mu.Lock()
	for _, poster := range posters {
		delete(p.pending, poster.URL)
		// Failed fetches are not cached so a later pass can retry them.
		if poster.Err == nil {
			p.posters[poster.URL] = poster
		}
	}
	p.mu.Unlock()

	failed := 0
	for _, poster := range posters {
		if poster.Err != nil {
			failed++
		}
	}
	p.logger.Debug("preloaded posters",
		slog.Int("count", len(posters)),
		slog.Int("failed", failed),
		slog.Bool("priority", priority),
	)

	return posters
}

func (p *Preloader) fetch(url string, priority bool) Poster {
	poster := Poster{URL: url, Priority: priority}

	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		poster.Err = fmt.Errorf("build request: %w", err)
		return poster
	}

	resp, err := p.client.Do(req)
	if err != nil {
		poster.Err = fmt.Errorf("fetch poster: %w", err)
		return poster
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		poster.Err = fmt.Errorf("fetch poster: %s", resp.Status)
		return poster
	}

	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		poster.Err = fmt.Errorf("read poster: %w", err)
		return poster
	}

	poster.Size = n
	poster.ContentType = resp.Header.Get("Content-Type")
	poster.FetchedAt = time.Now()
	return poster
}

// Get returns the cached poster for url.
func (p *Preloader) Get(url string) (Poster, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	poster, ok := p.posters[url]
	return poster, ok
}

// Len returns the number of cached posters.
func (p *Preloader) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.posters)
}

// Close cancels in-flight fetches.
func (p *Preloader) Close() {
	p.cancel()
}
