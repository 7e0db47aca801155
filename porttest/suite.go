// Package porttest is a contract suite for vpsops.Environment implementations.
//
// The workflows only rely on the behaviour pinned here: exit codes surface as
// *vpsops.ExitError, ReadFile reports missing files as fs.ErrNotExist,
// WriteFile replaces content whole, and a closed environment refuses work.
// Contracts that need a POSIX shell are skipped on hosts without "sh".
package porttest

import (
	"context"
	"fmt"
	"testing"

	"github.com/ruffel/vpsops"
)

// Standard categories for grouping tests.
const (
	CategoryExec        = "exec"
	CategoryFiles       = "files"
	CategoryEnvironment = "environment"
)

// T is the minimal interface required for testify/assert and require.
type T interface {
	Errorf(format string, args ...any)
	FailNow()
	Skipf(format string, args ...any)
	Context() context.Context
	TempDir() string
	Name() string
}

// TestCase defines a single behavioral contract requirement.
type TestCase struct {
	Category    string
	Name        string
	Description string
	Prereq      func(t T, env vpsops.Environment) (ok bool, reason string)
	Run         func(t T, env vpsops.Environment)

	// Closes marks contracts that close the environment they are given.
	Closes bool
}

// ID returns the stable, globally unique contract identifier.
func (tc TestCase) ID() string {
	return fmt.Sprintf("%s/%s", tc.Category, tc.Name)
}

// AllContracts returns all test cases of the suite.
func AllContracts() []TestCase {
	var contracts []TestCase

	contracts = append(contracts, execContracts()...)
	contracts = append(contracts, fileContracts()...)
	contracts = append(contracts, environmentContracts()...)

	return contracts
}

// Verify is the standard Go test entry point for providers. newEnv is called
// once per contract and the environment is closed afterwards.
func Verify(t *testing.T, newEnv func(t *testing.T) vpsops.Environment) {
	t.Helper()

	for _, tc := range AllContracts() {
		t.Run(tc.ID(), func(t *testing.T) {
			env := newEnv(t)

			defer func() { _ = env.Close() }()

			if tc.Prereq != nil {
				ok, reason := tc.Prereq(t, env)
				if !ok {
					t.Skipf("prereq unmet: %s", reason)
				}
			}

			tc.Run(t, env)
		})
	}
}
