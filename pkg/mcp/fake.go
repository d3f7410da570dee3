package mcp

import (
	"context"
	"sync"
)

// FakeCaller is a scriptable Caller used by tests across the repository.
// Responses are keyed by "server:tool"; unscripted calls return the
// configured default or an error.
type FakeCaller struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	calls     []FakeCall
}

type fakeResponse struct {
	result map[string]any
	err    error
}

// FakeCall records one invocation for assertions.
type FakeCall struct {
	Server string
	Tool   string
	Args   map[string]any
}

// NewFakeCaller creates an empty fake.
func NewFakeCaller() *FakeCaller {
	return &FakeCaller{responses: make(map[string]fakeResponse)}
}

// Script sets the response for server:tool.
func (f *FakeCaller) Script(server, tool string, result map[string]any, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[server+":"+tool] = fakeResponse{result: result, err: err}
}

// CallTool implements Caller.
func (f *FakeCaller) CallTool(ctx context.Context, server, tool string, args map[string]any) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, FakeCall{Server: server, Tool: tool, Args: args})

	resp, ok := f.responses[server+":"+tool]
	if !ok {
		return map[string]any{}, nil
	}
	return resp.result, resp.err
}

// Calls returns a copy of the recorded invocations.
func (f *FakeCaller) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}
