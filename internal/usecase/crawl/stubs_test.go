package crawl_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"readnext/internal/domain/entity"
	"readnext/internal/usecase/screenshot"
)

type stubSources struct {
	srcs []entity.Source
	err  error
}

func (s *stubSources) List(context.Context) ([]entity.Source, error) {
	return s.srcs, s.err
}

// memStates is an in-memory StateRepository that keeps every saved snapshot.
type memStates struct {
	mu      sync.Mutex
	state   *entity.CrawlState
	loadErr error
	saveErr error
	saves   int
}

func newMemStates() *memStates {
	return &memStates{state: entity.NewCrawlState()}
}

func (m *memStates) Load(context.Context) (*entity.CrawlState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.state.Clone(), nil
}

func (m *memStates) Save(_ context.Context, st *entity.CrawlState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.state = st.Clone()
	return nil
}

func (m *memStates) get(id string) (entity.SourceState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Get(id)
}

type memReports struct {
	mu      sync.Mutex
	reports []*entity.RunReport
}

func (m *memReports) Save(_ context.Context, r *entity.RunReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return nil
}

// stubFetcher serves entries per feed URL.
type stubFetcher struct {
	mu      sync.Mutex
	feeds   map[string][]entity.FeedEntry
	errs    map[string]error
	calls   map[string]int
	onFetch func(ctx context.Context, url string)

	inFlight    int
	maxInFlight int
	delay       time.Duration
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		feeds: make(map[string][]entity.FeedEntry),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) ([]entity.FeedEntry, error) {
	f.mu.Lock()
	f.calls[url]++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	hook := f.onFetch
	delay := f.delay
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if hook != nil {
		hook(ctx, url)
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrFeedFetch, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	entries, ok := f.feeds[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s: 404", entity.ErrFeedFetch, url)
	}
	return entries, nil
}

func (f *stubFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

type stubDiscoverer struct {
	mu     sync.Mutex
	refs   map[string]entity.FeedReference
	calls  int
	before func(ctx context.Context)
}

func (d *stubDiscoverer) Discover(ctx context.Context, src entity.Source) entity.FeedReference {
	d.mu.Lock()
	d.calls++
	before := d.before
	ref := d.refs[src.ID]
	d.mu.Unlock()

	if before != nil {
		before(ctx)
	}
	if ctx.Err() != nil {
		return entity.FeedReference{}
	}
	return ref
}

func (d *stubDiscoverer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// stubScreens stores a baseline on first sight and reports unchanged afterwards.
type stubScreens struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (s *stubScreens) Check(ctx context.Context, src entity.Source, prior entity.SourceState, now time.Time) (screenshot.Result, error) {
	s.mu.Lock()
	s.calls++
	failure := s.err
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return screenshot.Result{}, fmt.Errorf("%w: %w", entity.ErrRenderFailed, err)
	}
	if failure != nil {
		return screenshot.Result{}, failure
	}

	st := prior.Clone()
	st.LastChecked = now
	st.NewEntries = nil
	status := entity.StatusUnchanged
	if prior.LastScreenshotSignature == "" {
		status = entity.StatusPossiblyChanged
		st.LastScreenshotSignature = "p:00000000000000ff"
		st.LastScreenshotPath = "screenshots/" + src.ID + ".png"
		at := now
		st.LastScreenshotAt = &at
	}
	st.LastStatus = status
	return screenshot.Result{Status: status, State: st, Distance: -1}, nil
}

func (s *stubScreens) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
