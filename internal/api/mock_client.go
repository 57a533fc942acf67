package api

import (
	"context"
	"io"
	"sync"
)

// MockClient is a scripted Client for testing.
// The nth call to Stream returns Streams[n]; calls past the end get an empty stream.
type MockClient struct {
	Streams   []*MockStream
	StreamErr error

	mu    sync.Mutex
	calls []Request
}

// Ensure MockClient implements Client
var _ Client = (*MockClient)(nil)

// NewMockClient creates a MockClient returning the given streams in order
func NewMockClient(streams ...*MockStream) *MockClient {
	return &MockClient{Streams: streams}
}

func (m *MockClient) Stream(ctx context.Context, req Request) (TokenStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)
	if m.StreamErr != nil {
		return nil, m.StreamErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx := len(m.calls) - 1
	s := NewMockStream()
	if idx < len(m.Streams) {
		s = m.Streams[idx]
	}
	s.bind(ctx)
	return s, nil
}

// CallCount returns how many times Stream was called
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns a copy of every request received
func (m *MockClient) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// MockStream replays fixed increments, then Err (or io.EOF).
// When gated, each Next blocks until Release is called or the context ends.
type MockStream struct {
	Increments []string
	Err        error

	gate chan struct{}

	mu     sync.Mutex
	ctx    context.Context
	pos    int
	closed bool
}

// Ensure MockStream implements TokenStream
var _ TokenStream = (*MockStream)(nil)

// NewMockStream creates a stream yielding increments then io.EOF
func NewMockStream(increments ...string) *MockStream {
	return &MockStream{Increments: increments}
}

// WithError makes the stream fail with err after its increments
func (s *MockStream) WithError(err error) *MockStream {
	s.Err = err
	return s
}

// Gated makes every Next call wait for Release
func (s *MockStream) Gated() *MockStream {
	s.gate = make(chan struct{}, 64)
	return s
}

// Release lets n pending or future Next calls proceed
func (s *MockStream) Release(n int) {
	for i := 0; i < n; i++ {
		s.gate <- struct{}{}
	}
}

func (s *MockStream) bind(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
}

func (s *MockStream) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

func (s *MockStream) Next() (string, error) {
	ctx := s.context()

	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos < len(s.Increments) {
		text := s.Increments[s.pos]
		s.pos++
		return text, nil
	}
	if s.Err != nil {
		return "", s.Err
	}
	return "", io.EOF
}

func (s *MockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called
func (s *MockStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
