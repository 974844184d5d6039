package internal

import "fmt"

var (
	version   = "1.0.0"
	gitCommit = "" // set by -ldflags at build time
)

func Version() string {
	if gitCommit == "" {
		return version
	}
	return fmt.Sprintf("%s+%s", version, gitCommit)
}
