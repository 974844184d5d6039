package daemon

import (
	"os"

	"github.com/sevlyar/go-daemon"
)

// WasReborn reports whether the current process is a daemonized child,
// identified by an environment variable the go-daemon library sets.
func WasReborn() bool {
	return daemon.WasReborn()
}

// UnsetMark removes the child-process marker. The child should call this
// once it has identified itself, so its own subprocesses start clean.
func UnsetMark() {
	os.Unsetenv(daemon.MARK_NAME)
}

// ReadPidFile returns the process id recorded in a pid file.
func ReadPidFile(path string) (int, error) {
	return daemon.ReadPidFile(path)
}

// Daemonize forks the current process into a background daemon. It returns
// a non-nil process in the parent (which should exit) and nil in the child.
// An empty logFile redirects the child's output to /dev/null.
func Daemonize(pidFile, logFile string, args []string) (*os.Process, error) {
	if logFile == "" {
		logFile = os.DevNull
	}

	// WorkDir stays empty so relative paths on the command line keep
	// resolving in the child.
	cntxt := &daemon.Context{
		PidFileName: pidFile,
		PidFilePerm: 0644,
		LogFileName: logFile,
		LogFilePerm: 0640,
		Umask:       027,
		Args:        args,
	}

	return cntxt.Reborn()
}
