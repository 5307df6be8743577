package painter

import (
	"context"
	"sync"
)

// FakeGenerator returns a canned result or error, for studio tests.
type FakeGenerator struct {
	Result Result
	Err    error

	mu    sync.Mutex
	Calls []Request
}

func NewFakeGenerator(result Result, err error) *FakeGenerator {
	return &FakeGenerator{Result: result, Err: err}
}

func (f *FakeGenerator) Name() string { return "fake" }

func (f *FakeGenerator) Generate(_ context.Context, req Request) (Result, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, req)
	f.mu.Unlock()
	if f.Err != nil {
		return Result{}, f.Err
	}
	return f.Result, nil
}
