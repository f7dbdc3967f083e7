package download

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mashiro/pixiv-spider/internal/model"
)

// FetchFunc is a fetch source: any callable producing a collection of
// illustrations. It may fail; the orchestrator's retry loop treats any
// failure as retryable up to the configured bound.
type FetchFunc func(ctx context.Context) ([]model.Illust, error)

// Arg is one recorded argument of a Call. An empty Key marks a
// positional argument; a non-empty Key renders as key=value.
type Arg struct {
	Key   string
	Value any
}

// Pos records a positional argument for diagnostics.
func Pos(v any) Arg { return Arg{Value: v} }

// Kw records a keyword argument for diagnostics.
func Kw(key string, v any) Arg { return Arg{Key: key, Value: v} }

// Call captures a fetch function together with a snapshot of the
// arguments it was built from. It is immutable after construction and
// may be invoked repeatedly (the retry loop re-runs the same Call).
//
// The argument snapshot exists purely for diagnostics: when a fetch
// finally fails, the Call's rendering tells the operator what was
// being fetched and with which parameters.
//
//	call := download.NewCall("UserIllusts", func(ctx context.Context) ([]model.Illust, error) {
//	    return client.UserIllusts(ctx, 12345)
//	}, download.Pos(12345))
//
//	call.String() // "UserIllusts(12345)"
type Call struct {
	name string
	args []Arg
	fn   FetchFunc
}

// NewCall wraps fn under the given diagnostic name and argument
// snapshot.
func NewCall(name string, fn FetchFunc, args ...Arg) *Call {
	return &Call{name: name, args: args, fn: fn}
}

// Name returns the diagnostic name of the wrapped function.
func (c *Call) Name() string { return c.name }

// Invoke runs the wrapped fetch function. It has no side effects
// beyond what the wrapped function performs and may be called any
// number of times.
func (c *Call) Invoke(ctx context.Context) ([]model.Illust, error) {
	return c.fn(ctx)
}

// String renders the call as name(arg1, arg2, key=value). Positional
// arguments come first, then keyword arguments, joined with ", ".
// A call without arguments renders as the bare name.
func (c *Call) String() string {
	if len(c.args) == 0 {
		return c.name
	}

	parts := make([]string, 0, len(c.args))
	for _, a := range c.args {
		if a.Key == "" {
			parts = append(parts, formatArg(a.Value))
		}
	}
	for _, a := range c.args {
		if a.Key != "" {
			parts = append(parts, a.Key+"="+formatArg(a.Value))
		}
	}

	return c.name + "(" + strings.Join(parts, ", ") + ")"
}

// formatArg renders a single argument value, quoting strings so they
// read unambiguously in error messages.
func formatArg(v any) string {
	switch t := v.(type) {
	case string:
		return strconv.Quote(t)
	case fmt.Stringer:
		return strconv.Quote(t.String())
	default:
		return fmt.Sprintf("%v", v)
	}
}

// FetchError is returned when a fetch source has exhausted its retry
// budget. It carries the originating Call so the failing fetch and its
// arguments can be inspected.
type FetchError struct {
	Call *Call
	Err  error
}

// Error describes the failed call and the underlying failure.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Call, e.Err)
}

// Unwrap returns the underlying fetch failure.
func (e *FetchError) Unwrap() error { return e.Err }
