package command

import "strings"

// stopWords are first tokens that mark prose rather than a command. Models
// sometimes wrap an explanation in command tags; these catch the common
// openings.
var stopWords = map[string]bool{
	"check":  true,
	"try":    true,
	"please": true,
	"you":    true,
}

const maxCommandLength = 300

// LooksExecutable reports whether an extracted tag payload plausibly is a
// shell command rather than prose. It rejects empty or overlong strings,
// sentence-like endings, and first tokens that no executable would have:
// uppercase letters, characters outside [a-z0-9_./-], or stop words.
func LooksExecutable(cmd string) bool {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" || len(cmd) > maxCommandLength {
		return false
	}

	switch cmd[len(cmd)-1] {
	case '.', '!', '?':
		return false
	}

	first := strings.Fields(cmd)[0]
	if stopWords[first] {
		return false
	}
	for _, r := range first {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '.' || r == '/' || r == '-':
		default:
			return false
		}
	}
	return true
}
