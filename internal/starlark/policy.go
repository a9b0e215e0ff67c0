package starlark

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"go.starlark.net/starlark"
)

// Names a policy script must (r0) or may (breakpoints) define.
const (
	FuncName        = "r0"
	BreakpointsName = "breakpoints"
)

// Policy evaluates a script's r0(t). It satisfies epi.Policy and
// epi.Breakpointer and is safe for concurrent use.
//
// Evaluation errors cannot be returned through R0, so the first one is kept
// and R0 returns NaN from then on; callers check Err after a run.
type Policy struct {
	file        string
	fn          starlark.Callable
	breakpoints []float64
	pool        *ThreadPool

	mu  sync.Mutex
	err error
}

// LoadPolicy reads and executes the script at path.
func LoadPolicy(path string, params ParamsInfo, logger *slog.Logger) (*Policy, error) {
	content, err := os.ReadFile(path) //nolint:gosec // G304: path is the user-selected policy script
	if err != nil {
		return nil, &LoadError{File: path, Message: fmt.Sprintf("failed to read file: %v", err)}
	}
	return LoadPolicySource(path, content, params, logger)
}

// LoadPolicySource executes src as a policy script. file names the script in
// error messages.
func LoadPolicySource(file string, src []byte, params ParamsInfo, logger *slog.Logger) (*Policy, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("policy", filepath.Base(file))

	pv, err := params.ToStarlark()
	if err != nil {
		return nil, &LoadError{File: file, Message: err.Error()}
	}
	pv.Freeze()

	pool := NewThreadPool(0, func(thread, msg string) {
		logger.Info(msg, "thread", thread)
	})
	thread := pool.Get("load:" + filepath.Base(file))
	defer pool.Put(thread)

	globals, err := starlark.ExecFile(thread, file, src, Predeclared(pv)) //nolint:staticcheck // SA1019: will migrate to ExecFileOptions later
	if err != nil {
		return nil, &LoadError{File: file, Message: fmt.Sprintf("Starlark execution error: %v", err)}
	}
	globals.Freeze()

	fn, ok := globals[FuncName].(starlark.Callable)
	if !ok {
		return nil, &LoadError{File: file, Message: fmt.Sprintf("script must define a function %s(t)", FuncName)}
	}

	p := &Policy{file: file, fn: fn, pool: pool}
	if v, ok := globals[BreakpointsName]; ok && v != starlark.None {
		pts, err := ToFloats(v)
		if err != nil {
			return nil, &LoadError{File: file, Message: fmt.Sprintf("%s: %v", BreakpointsName, err)}
		}
		for _, b := range pts {
			if math.IsNaN(b) || math.IsInf(b, 0) {
				return nil, &LoadError{File: file, Message: fmt.Sprintf("%s: %v is not finite", BreakpointsName, b)}
			}
		}
		slices.Sort(pts)
		p.breakpoints = slices.Compact(pts)
	}

	logger.Debug("policy loaded", "breakpoints", p.breakpoints)
	return p, nil
}

// R0 calls the script's r0(t). It returns NaN once any call has failed.
func (p *Policy) R0(t float64) float64 {
	if p.Err() != nil {
		return math.NaN()
	}

	thread := p.pool.Get(FuncName)
	defer p.pool.Put(thread)

	v, err := starlark.Call(thread, p.fn, starlark.Tuple{starlark.Float(t)}, nil)
	if err != nil {
		return p.fail(t, err.Error())
	}
	r, err := ToFloat(v)
	if err != nil {
		return p.fail(t, err.Error())
	}
	if math.IsNaN(r) || math.IsInf(r, 0) || r < 0 {
		return p.fail(t, fmt.Sprintf("returned %v, want a non-negative number", r))
	}
	return r
}

func (p *Policy) fail(t float64, msg string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = &EvalError{File: p.file, Time: t, Message: msg}
	}
	return math.NaN()
}

// Breakpoints returns the declared jump days, sorted.
func (p *Policy) Breakpoints() []float64 {
	return slices.Clone(p.breakpoints)
}

// Err returns the first evaluation error, if any.
func (p *Policy) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// LoadError represents an error loading a policy script.
type LoadError struct {
	File    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("policy %s: %s", filepath.Base(e.File), e.Message)
}

// EvalError reports a failed r0(t) call.
type EvalError struct {
	File    string
	Time    float64
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("policy %s: r0(%g): %s", filepath.Base(e.File), e.Time, e.Message)
}
