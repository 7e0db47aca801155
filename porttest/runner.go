package porttest

import (
	"context"
	"fmt"
	"os"

	"github.com/ruffel/vpsops"
)

// Result is the outcome of one contract run outside "go test".
type Result struct {
	Passed  bool
	Skipped bool
	ErrMsg  string
	SkipMsg string
}

// Execute runs tc against env, recovering from FailNow and Skipf the way the
// testing package does.
func Execute(ctx context.Context, tc TestCase, env vpsops.Environment) Result {
	t := &recorder{ctx: ctx, name: tc.ID()}
	defer t.cleanup()

	t.run(tc, env)

	return Result{
		Passed:  !t.failed && !t.skipped,
		Skipped: t.skipped,
		ErrMsg:  t.errMsg,
		SkipMsg: t.skipMsg,
	}
}

type recorder struct {
	ctx      context.Context //nolint:containedctx
	name     string
	failed   bool
	skipped  bool
	errMsg   string
	skipMsg  string
	tempDirs []string
}

type failNow struct{}

type skipNow struct{}

func (r *recorder) Errorf(f string, a ...any) {
	r.failed = true
	r.errMsg = fmt.Sprintf(f, a...)
}

func (r *recorder) FailNow() {
	r.failed = true

	panic(failNow{})
}

func (r *recorder) Skipf(f string, a ...any) {
	r.skipped = true
	r.skipMsg = fmt.Sprintf(f, a...)

	panic(skipNow{})
}

func (r *recorder) Context() context.Context { return r.ctx }

func (r *recorder) Name() string { return r.name }

func (r *recorder) TempDir() string {
	dir, err := os.MkdirTemp("", "vpsops-check-*")
	if err != nil {
		panic(err)
	}

	r.tempDirs = append(r.tempDirs, dir)

	return dir
}

func (r *recorder) cleanup() {
	for _, dir := range r.tempDirs {
		_ = os.RemoveAll(dir)
	}
}

func (r *recorder) run(tc TestCase, env vpsops.Environment) {
	defer func() {
		if v := recover(); v != nil {
			switch v.(type) {
			case failNow, skipNow:
				return
			default:
				panic(v)
			}
		}
	}()

	if tc.Prereq != nil {
		ok, reason := tc.Prereq(r, env)
		if !ok {
			r.Skipf("prereq unmet: %s", reason)
		}
	}

	tc.Run(r, env)
}
