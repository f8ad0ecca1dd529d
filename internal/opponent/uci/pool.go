package uci

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrPoolClosed       = errors.New("uci pool closed")
	errBucketAtCapacity = errors.New("uci bucket at capacity")
)

// StartFunc launches one engine process with the given options.
type StartFunc func(ctx context.Context, opt Options) (*Process, error)

type PoolConfig struct {
	BinaryPath string
	// PerOptionsCapacity caps live processes per distinct Options.
	PerOptionsCapacity int
	Logger             *zap.Logger
	// Start overrides process creation; tests use it to avoid a real binary.
	Start StartFunc
}

// Pool keeps warm engine processes grouped by their setoption values.
type Pool struct {
	capacity int
	start    StartFunc
	logger   *zap.Logger

	mu      sync.Mutex
	closed  bool
	buckets map[string]*bucket
	owner   map[*Process]*bucket
}

func NewPool(cfg PoolConfig) (*Pool, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	start := cfg.Start
	if start == nil {
		if cfg.BinaryPath == "" {
			return nil, fmt.Errorf("binary path required")
		}
		if _, err := os.Stat(cfg.BinaryPath); err != nil {
			return nil, fmt.Errorf("engine binary check: %w", err)
		}
		path := cfg.BinaryPath
		start = func(ctx context.Context, opt Options) (*Process, error) {
			return Start(ctx, path, opt, logger)
		}
	}
	capacity := cfg.PerOptionsCapacity
	if capacity <= 0 {
		capacity = defaultCapacity()
	}
	return &Pool{
		capacity: capacity,
		start:    start,
		logger:   logger,
		buckets:  make(map[string]*bucket),
		owner:    make(map[*Process]*bucket),
	}, nil
}

// Acquire returns an idle process for opt, starting one if the bucket has room,
// and otherwise waits until one is released or ctx ends.
func (p *Pool) Acquire(ctx context.Context, opt Options) (*Process, error) {
	b, err := p.bucketFor(opt)
	if err != nil {
		return nil, err
	}
	for {
		select {
		case proc := <-b.idle:
			if p.ready(ctx, proc, b) {
				return proc, nil
			}
			continue
		default:
		}

		proc, err := b.create(ctx, p.start)
		if err == nil {
			p.track(proc, b)
			return proc, nil
		}
		if !errors.Is(err, errBucketAtCapacity) {
			return nil, err
		}

		select {
		case proc := <-b.idle:
			if p.ready(ctx, proc, b) {
				return proc, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release hands proc back. A non-nil err discards the process.
func (p *Pool) Release(proc *Process, err error) {
	if proc == nil {
		return
	}
	p.mu.Lock()
	b, ok := p.owner[proc]
	closed := p.closed
	if !ok || err != nil || closed {
		delete(p.owner, proc)
	}
	p.mu.Unlock()

	switch {
	case !ok:
		_ = proc.Close()
	case err != nil || closed:
		p.logger.Debug("uci_process_discarded", zap.Error(err))
		b.discard(proc)
	case !b.put(proc):
		p.mu.Lock()
		delete(p.owner, proc)
		p.mu.Unlock()
		b.discard(proc)
	}
}

// Search runs one search on a pooled process configured with opt. The
// process is reset with ucinewgame first and discarded on any error.
func (p *Pool) Search(ctx context.Context, opt Options, req SearchRequest) (SearchResult, error) {
	proc, err := p.Acquire(ctx, opt)
	if err != nil {
		return SearchResult{}, err
	}
	if err := proc.NewGame(ctx); err != nil {
		p.Release(proc, err)
		return SearchResult{}, err
	}
	res, err := proc.Search(ctx, req)
	p.Release(proc, err)
	return res, err
}

func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	buckets := make([]*bucket, 0, len(p.buckets))
	for _, b := range p.buckets {
		buckets = append(buckets, b)
	}
	p.owner = make(map[*Process]*bucket)
	p.mu.Unlock()

	var errs []error
	for _, b := range buckets {
		errs = append(errs, b.drain()...)
	}
	return errors.Join(errs...)
}

func (p *Pool) ready(ctx context.Context, proc *Process, b *bucket) bool {
	if proc == nil {
		return false
	}
	if err := proc.EnsureReady(ctx); err != nil {
		p.logger.Warn("uci_process_not_ready", zap.Error(err))
		b.discard(proc)
		return false
	}
	p.track(proc, b)
	return true
}

func (p *Pool) track(proc *Process, b *bucket) {
	p.mu.Lock()
	p.owner[proc] = b
	p.mu.Unlock()
}

func (p *Pool) bucketFor(opt Options) (*bucket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	key := opt.key()
	b, ok := p.buckets[key]
	if !ok {
		b = &bucket{opt: opt, capacity: p.capacity, idle: make(chan *Process, p.capacity)}
		p.buckets[key] = b
	}
	return b, nil
}

type bucket struct {
	opt      Options
	capacity int

	mu    sync.Mutex
	total int
	idle  chan *Process
}

func (b *bucket) create(ctx context.Context, start StartFunc) (*Process, error) {
	b.mu.Lock()
	if b.total >= b.capacity {
		b.mu.Unlock()
		return nil, errBucketAtCapacity
	}
	b.total++
	b.mu.Unlock()

	proc, err := start(ctx, b.opt)
	if err != nil {
		b.decrement()
		return nil, err
	}
	return proc, nil
}

func (b *bucket) put(proc *Process) bool {
	select {
	case b.idle <- proc:
		return true
	default:
		return false
	}
}

func (b *bucket) discard(proc *Process) {
	if proc != nil {
		_ = proc.Close()
	}
	b.decrement()
}

func (b *bucket) drain() []error {
	var errs []error
	for {
		select {
		case proc := <-b.idle:
			if proc == nil {
				continue
			}
			if err := proc.Close(); err != nil {
				errs = append(errs, err)
			}
			b.decrement()
		default:
			return errs
		}
	}
}

func (b *bucket) decrement() {
	b.mu.Lock()
	if b.total > 0 {
		b.total--
	}
	b.mu.Unlock()
}

func defaultCapacity() int {
	cpu := runtime.NumCPU()
	if cpu < 2 {
		return 2
	}
	if cpu > 4 {
		return 4
	}
	return cpu
}
