package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/emergingrobotics/npu-segment/pkg/device"
	"github.com/emergingrobotics/npu-segment/pkg/driver"
)

// Operation names recorded by FakeSession and accepted by FailOn
const (
	OpQuery  = "query"
	OpCreate = "create"
	OpBind   = "bind"
	OpRun    = "run"
	OpFree   = "free"
	OpClose  = "close"
)

// FakeSession implements device.Session in memory. It records every call,
// can be told to fail any operation, and on Run copies a preset score
// tensor into the bound output buffer.
type FakeSession struct {
	mu       sync.Mutex
	input    device.TensorAttr
	output   device.TensorAttr
	scores   []byte
	calls    []string
	failures map[string]error
	skips    map[string]int
	live     map[*device.Memory]bool
	bound    map[device.TensorKind]*device.Memory
	freed    map[*device.Memory]int
	closed   bool
	runs     int
	runHook  func(ctx context.Context) error
}

// NewFakeSession creates a fake with the given input and output shapes.
// The output is reported in native NHWC layout.
func NewFakeSession(in, out device.Shape) *FakeSession {
	return &FakeSession{
		input: device.TensorAttr{
			Index: 0, Name: "input", Kind: device.KindInput,
			Shape: in, Layout: device.LayoutNHWC, Size: in.Size(),
		},
		output: device.TensorAttr{
			Index: 0, Name: "output", Kind: device.KindNativeNHWCOutput,
			Shape: out, Layout: device.LayoutNHWC, Size: out.Size(),
		},
		failures: make(map[string]error),
		skips:    make(map[string]int),
		live:     make(map[*device.Memory]bool),
		bound:    make(map[device.TensorKind]*device.Memory),
		freed:    make(map[*device.Memory]int),
	}
}

// SetScores sets the bytes copied into the output buffer on Run
func (f *FakeSession) SetScores(scores []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores = scores
}

// SetOutputLayout changes the layout reported for the output slot
func (f *FakeSession) SetOutputLayout(layout device.Layout) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.output.Layout = layout
}

// FailOn makes the named operation return err. A nil err clears it.
func (f *FakeSession) FailOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.skips, op)
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

// FailAfter lets the named operation succeed n more times, then makes it
// return err
func (f *FakeSession) FailAfter(op string, n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = err
	f.skips[op] = n
}

// OnRun installs a hook executed inside Run before the scores are copied
func (f *FakeSession) OnRun(hook func(ctx context.Context) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runHook = hook
}

// Calls returns the recorded call log
func (f *FakeSession) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// LiveMemory returns the number of buffers created and not yet freed
func (f *FakeSession) LiveMemory() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

// FreeCounts returns how often each buffer ever created was freed
func (f *FakeSession) FreeCounts() map[*device.Memory]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[*device.Memory]int, len(f.freed))
	for mem, n := range f.freed {
		counts[mem] = n
	}
	return counts
}

// RunCount returns the number of successful runs
func (f *FakeSession) RunCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

// Closed reports whether Close was called
func (f *FakeSession) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeSession) record(call string) error {
	f.calls = append(f.calls, call)
	if f.closed && call != OpClose {
		return device.ErrSessionClosed
	}
	if n := f.skips[call]; n > 0 {
		f.skips[call] = n - 1
		return nil
	}
	return f.failures[call]
}

// QueryTensor implements device.Session
func (f *FakeSession) QueryTensor(kind device.TensorKind, index int) (device.TensorAttr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record(OpQuery); err != nil {
		return device.TensorAttr{}, err
	}
	if index != 0 {
		return device.TensorAttr{}, device.ErrUnknownTensor
	}
	if kind == device.KindInput {
		return f.input, nil
	}
	attr := f.output
	attr.Kind = kind
	return attr, nil
}

// CreateMemory implements device.Session
func (f *FakeSession) CreateMemory(size int) (*device.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record(OpCreate); err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, driver.NewError(driver.StatusParamInvalid, "create memory")
	}
	mem := &device.Memory{Data: make([]byte, size)}
	f.live[mem] = true
	f.freed[mem] = 0
	return mem, nil
}

// Bind implements device.Session
func (f *FakeSession) Bind(mem *device.Memory, attr device.TensorAttr) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record(OpBind); err != nil {
		return err
	}
	if !f.live[mem] {
		return device.ErrForeignMemory
	}
	slot := slotOf(attr.Kind)
	if f.bound[slot] != nil {
		return device.ErrSlotOccupied
	}
	if mem.Size() != attr.Size {
		return device.ErrSizeMismatch
	}
	f.bound[slot] = mem
	return nil
}

// Run implements device.Session
func (f *FakeSession) Run(ctx context.Context) error {
	f.mu.Lock()
	hook := f.runHook
	err := f.record(OpRun)
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	in, out := f.bound[device.KindInput], f.bound[device.KindOutput]
	if in == nil || out == nil {
		return device.ErrUnboundTensors
	}
	if f.scores != nil {
		copy(out.Data, f.scores)
	}
	f.runs++
	return nil
}

// FreeMemory implements device.Session
func (f *FakeSession) FreeMemory(mem *device.Memory) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, OpFree)
	if _, known := f.freed[mem]; !known {
		return device.ErrForeignMemory
	}
	f.freed[mem]++
	if !f.live[mem] {
		return device.ErrMemoryFreed
	}
	delete(f.live, mem)
	for slot, bound := range f.bound {
		if bound == mem {
			delete(f.bound, slot)
		}
	}
	if err := f.failures[OpFree]; err != nil {
		return err
	}
	return nil
}

// Close implements device.Session
func (f *FakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, OpClose)
	if len(f.live) != 0 {
		return fmt.Errorf("closing session with %d live buffers", len(f.live))
	}
	f.closed = true
	return nil
}

// Opener returns a device.Opener that hands out this fake, and a counter
// of how many times it was invoked
func (f *FakeSession) Opener() (device.Opener, *int) {
	opened := 0
	return func(graph []byte) (device.Session, error) {
		opened++
		if len(graph) == 0 {
			return nil, errors.New("empty graph")
		}
		return f, nil
	}, &opened
}

func slotOf(kind device.TensorKind) device.TensorKind {
	if kind.IsOutput() {
		return device.KindOutput
	}
	return device.KindInput
}

// FakeScores builds an NHWC score tensor from per-pixel channel scores
func FakeScores(pixels ...[]byte) []byte {
	var out []byte
	for _, p := range pixels {
		out = append(out, p...)
	}
	return out
}
