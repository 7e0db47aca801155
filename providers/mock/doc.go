// Package mock provides controllable implementations of vpsops.Environment
// for testing purposes.
//
// Environment is a testify mock: every call must be declared with On.
//
//	m := mock.New()
//	m.On("ReadFile", ctx, "/opt/langfuse/.env").Return([]byte("A=1\n"), nil)
//
// Host is an in-memory fake that keeps a file table and records every command
// line it is asked to run. Responses can be scripted per command prefix. It suits
// workflow tests that care about the final state of the host rather than the
// exact order of calls.
package mock
