//go:build windows

package cmd

import (
	"os"

	"golang.org/x/sys/windows"
)

// shutdownSignals lists the signals that trigger graceful termination of
// the server. Windows delivers os.Interrupt for Ctrl+C; there is no SIGTERM
// equivalent to register.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// stillActive is the exit code Windows reports for a process that has not
// exited yet.
const stillActive = 259

// processAlive asks the kernel for the process exit code; a live process
// reports stillActive.
func processAlive(proc *os.Process) bool {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(proc.Pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(handle)

	var exitCode uint32
	if err := windows.GetExitCodeProcess(handle, &exitCode); err != nil {
		return false
	}
	return exitCode == stillActive
}

// requestStop terminates the server process. Graceful signalling is not
// available cross-process on Windows, so this is TerminateProcess via Kill.
func requestStop(proc *os.Process) error {
	return proc.Kill()
}
