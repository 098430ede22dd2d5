//go:build !tinygo

package core

// State stands in for the CPU interrupt state on the host
type State uintptr

// disableInterrupts is a no-op on the host, where the simulated interrupt
// handler runs synchronously from register writes
func disableInterrupts() State {
	return 0
}

// restoreInterrupts is a no-op on the host
func restoreInterrupts(State) {}
