//go:build !windows

package cmd

import (
	"os"
	"syscall"
)

// shutdownSignals lists the signals that trigger graceful termination of
// the server: Ctrl+C and the default kill signal.
func shutdownSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}

// processAlive probes the process with the null signal, which performs the
// permission and existence checks without delivering anything.
func processAlive(proc *os.Process) bool {
	return proc.Signal(syscall.Signal(0)) == nil
}

// requestStop asks the server to shut down gracefully via SIGTERM.
func requestStop(proc *os.Process) error {
	return proc.Signal(syscall.SIGTERM)
}
