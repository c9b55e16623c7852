package shell

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Call records one invocation seen by a FakeRunner.
type Call struct {
	Name    string
	Args    []string
	Options Options
}

// Line returns the call as a single space-joined command line.
func (c Call) Line() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Response is a scripted outcome for a FakeRunner.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// FakeRunner is a scripted Runner for tests. Responses are matched by the
// longest registered prefix of the command line; unmatched commands succeed
// with empty output.
type FakeRunner struct {
	mu        sync.Mutex
	Calls     []Call
	responses map[string][]Response
	// Hook, when set, runs for every call before the scripted response is
	// chosen. A non-nil result replaces the scripted response.
	Hook func(call Call) *Response
}

// NewFakeRunner returns an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{responses: make(map[string][]Response)}
}

// On scripts responses for commands whose line starts with prefix. When
// several responses are given they are returned in order and the last one
// repeats.
func (f *FakeRunner) On(prefix string, responses ...Response) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[prefix] = append(f.responses[prefix], responses...)
	return f
}

// Replace drops any responses queued for prefix and scripts responses instead.
func (f *FakeRunner) Replace(prefix string, responses ...Response) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[prefix] = append([]Response(nil), responses...)
	return f
}

// Run records the call and returns the scripted response.
func (f *FakeRunner) Run(ctx context.Context, name string, args []string, opts ...Option) (*Result, error) {
	call := Call{Name: name, Args: append([]string(nil), args...), Options: Apply(opts...)}

	f.mu.Lock()
	f.Calls = append(f.Calls, call)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var resp *Response
	if f.Hook != nil {
		resp = f.Hook(call)
	}
	if resp == nil {
		resp = f.next(call.Line())
	}

	res := &Result{
		Stdout:   resp.Stdout,
		Stderr:   resp.Stderr,
		Combined: resp.Stdout + resp.Stderr,
		ExitCode: resp.ExitCode,
	}
	if resp.Err != nil {
		return res, resp.Err
	}
	if resp.ExitCode != 0 {
		return res, &ExitError{
			Name:     name,
			Args:     call.Args,
			ExitCode: resp.ExitCode,
			Output:   res.Combined,
			Err:      fmt.Errorf("exit status %d", resp.ExitCode),
		}
	}
	return res, nil
}

func (f *FakeRunner) next(line string) *Response {
	f.mu.Lock()
	defer f.mu.Unlock()

	best := ""
	for prefix := range f.responses {
		if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	queue, ok := f.responses[best]
	if !ok || len(queue) == 0 {
		return &Response{}
	}
	resp := queue[0]
	if len(queue) > 1 {
		f.responses[best] = queue[1:]
	}
	return &resp
}

// Lines returns every recorded command line in order.
func (f *FakeRunner) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		lines[i] = c.Line()
	}
	return lines
}

// Called reports whether any recorded command line starts with prefix.
func (f *FakeRunner) Called(prefix string) bool {
	for _, l := range f.Lines() {
		if strings.HasPrefix(l, prefix) {
			return true
		}
	}
	return false
}

// Count returns how many recorded command lines start with prefix.
func (f *FakeRunner) Count(prefix string) int {
	n := 0
	for _, l := range f.Lines() {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}
