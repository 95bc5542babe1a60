package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// EngineFactory builds one engine instance for the pool.
type EngineFactory func() (Engine, error)

// Pool serializes rendering over a fixed set of engine instances. Render
// blocks until an instance is free or the context expires.
type Pool struct {
	factory EngineFactory
	size    int

	mu      sync.Mutex
	engines chan Engine
	started bool
}

// NewPool constructs a pool of the given size; sizes below one are raised
// to one.
func NewPool(factory EngineFactory, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{factory: factory, size: size}
}

// Start builds the engine instances. Calling Start twice is an error.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return errors.New("renderer already started")
	}

	engines := make(chan Engine, p.size)
	for i := 0; i < p.size; i++ {
		if err := ctx.Err(); err != nil {
			drainAndClose(engines)
			return err
		}
		engine, err := p.factory()
		if err != nil {
			drainAndClose(engines)
			return fmt.Errorf("render engine %d: %w", i, err)
		}
		engines <- engine
	}

	p.engines = engines
	p.started = true
	return nil
}

// Stop closes all engine instances, waiting for in-flight renders to return
// them first. The context bounds the wait.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return nil
	}
	p.started = false

	var firstErr error
	for i := 0; i < p.size; i++ {
		select {
		case engine := <-p.engines:
			if err := engine.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.engines = nil
	return firstErr
}

// Render borrows an engine instance and renders the document.
func (p *Pool) Render(ctx context.Context, doc Document) ([]byte, error) {
	p.mu.Lock()
	engines := p.engines
	started := p.started
	p.mu.Unlock()
	if !started {
		return nil, ErrNotStarted
	}

	select {
	case engine := <-engines:
		defer func() { engines <- engine }()
		return engine.Render(ctx, doc)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func drainAndClose(engines chan Engine) {
	for {
		select {
		case engine := <-engines:
			_ = engine.Close()
		default:
			return
		}
	}
}
