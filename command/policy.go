package command

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// Policy holds the allow and deny glob patterns for unattended execution.
// Deny wins. With no allow patterns nothing qualifies for unattended
// execution and every command needs an explicit confirmation.
type Policy struct {
	Allow []string
	Deny  []string
}

// Permits reports whether cmd may run without a confirmation prompt.
func (p Policy) Permits(cmd string) bool {
	if matchesAny(cmd, p.Deny) {
		return false
	}
	return matchesAny(cmd, p.Allow)
}

// Denied reports whether cmd is explicitly blocked even with confirmation.
func (p Policy) Denied(cmd string) bool {
	return matchesAny(cmd, p.Deny)
}

func matchesAny(cmd string, patterns []string) bool {
	for _, pattern := range patterns {
		match, err := doublestar.Match(pattern, cmd)
		if err != nil {
			fmt.Printf("Warning: invalid command pattern '%s': %v\n", pattern, err)
			continue
		}
		if match {
			return true
		}
	}
	return false
}
