package scripting

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// LogEntry represents a single log message from the script.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// ErrTimeout is returned when a script runs past its budget.
var ErrTimeout = errors.New("script timed out")

const (
	scriptInitTimeout = 2 * time.Second
	scriptCallTimeout = 250 * time.Millisecond
	maxLogs           = 200
)

// Filter is a sandboxed JavaScript predicate. The script must define
// match(tile) returning a truthy value for tiles to keep. A Filter is not
// safe for concurrent use; build one per goroutine from the same source.
type Filter struct {
	runtime *goja.Runtime
	match   goja.Callable
	timeout time.Duration

	logsMu sync.Mutex
	logs   []LogEntry
}

// NewFilter compiles source and resolves match().
func NewFilter(source string) (*Filter, error) {
	f := &Filter{runtime: goja.New(), timeout: scriptCallTimeout}
	f.injectGlobals()

	err := f.runWithTimeout(scriptInitTimeout, func() error {
		if _, err := f.runtime.RunString(source); err != nil {
			return fmt.Errorf("script execution error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fn := f.runtime.Get("match")
	if fn == nil || goja.IsUndefined(fn) || goja.IsNull(fn) {
		return nil, fmt.Errorf("match() function is not defined")
	}
	callable, ok := goja.AssertFunction(fn)
	if !ok {
		return nil, fmt.Errorf("match is not a function")
	}
	f.match = callable
	return f, nil
}

// injectGlobals registers log and console.log and blocks escape hatches.
func (f *Filter) injectGlobals() {
	f.runtime.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		f.logsMu.Lock()
		if len(f.logs) >= maxLogs {
			f.logs = f.logs[1:]
		}
		f.logs = append(f.logs, LogEntry{Time: time.Now(), Message: strings.Join(parts, " ")})
		f.logsMu.Unlock()
		return goja.Undefined()
	})

	console := f.runtime.NewObject()
	console.Set("log", f.runtime.Get("log"))
	f.runtime.Set("console", console)

	f.runtime.Set("require", goja.Undefined())
	f.runtime.Set("fetch", goja.Undefined())
	f.runtime.Set("XMLHttpRequest", goja.Undefined())
	f.runtime.Set("eval", goja.Undefined())
	f.runtime.Set("Function", goja.Undefined())
}

// Match evaluates match(tile).
func (f *Filter) Match(tile map[string]any) (bool, error) {
	var keep bool
	err := f.runWithTimeout(f.timeout, func() error {
		v, err := f.match(goja.Undefined(), f.runtime.ToValue(tile))
		if err != nil {
			return fmt.Errorf("match() error: %w", err)
		}
		keep = v.ToBoolean()
		return nil
	})
	return keep, err
}

// Logs returns a copy of the messages logged by the script.
func (f *Filter) Logs() []LogEntry {
	f.logsMu.Lock()
	defer f.logsMu.Unlock()
	out := make([]LogEntry, len(f.logs))
	copy(out, f.logs)
	return out
}

// ResetLogs discards every logged message.
func (f *Filter) ResetLogs() {
	f.logsMu.Lock()
	f.logs = nil
	f.logsMu.Unlock()
}

// runWithTimeout interrupts the runtime if fn overruns. Scans call this
// once per tile, so it arms a timer instead of spawning a goroutine.
// When the timer has already fired, the interrupt is cleared only after
// the callback has run so it cannot leak into the next call.
func (f *Filter) runWithTimeout(timeout time.Duration, fn func() error) error {
	fired := make(chan struct{})
	timer := time.AfterFunc(timeout, func() {
		f.runtime.Interrupt(ErrTimeout)
		close(fired)
	})
	err := fn()
	if !timer.Stop() {
		<-fired
	}
	f.runtime.ClearInterrupt()

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
