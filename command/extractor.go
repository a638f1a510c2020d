// Package command implements the streaming command-tag protocol: extraction
// of <command>...</command> spans from answer text as it streams, the
// heuristic deciding whether an extracted string is a runnable command, and
// the execution policy for confirmed commands.
package command

import "strings"

const (
	openTag  = "<command>"
	closeTag = "</command>"
)

// Extractor removes <command> tags from a stream of text chunks. Output is
// identical no matter how the input is split into chunks: a partial tag
// literal at a chunk edge is never shown, because the longest suffix of the
// buffer that could still grow into the tag is held back until the next
// chunk settles it.
type Extractor struct {
	inCommand bool
	pending   string
	cmdBuf    strings.Builder
}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Feed consumes one chunk and returns the visible text it releases plus any
// commands completed within it. Tag content goes to the command buffer, the
// tag literals are swallowed.
func (e *Extractor) Feed(chunk string) (string, []string) {
	buf := e.pending + chunk
	e.pending = ""

	var visible strings.Builder
	var commands []string

	for {
		if !e.inCommand {
			if idx := strings.Index(buf, openTag); idx >= 0 {
				visible.WriteString(buf[:idx])
				buf = buf[idx+len(openTag):]
				e.inCommand = true
				continue
			}
			hold := partialTagLen(buf, openTag)
			visible.WriteString(buf[:len(buf)-hold])
			e.pending = buf[len(buf)-hold:]
			return visible.String(), commands
		}

		if idx := strings.Index(buf, closeTag); idx >= 0 {
			e.cmdBuf.WriteString(buf[:idx])
			if cmd := strings.TrimSpace(e.cmdBuf.String()); cmd != "" {
				commands = append(commands, cmd)
			}
			e.cmdBuf.Reset()
			e.inCommand = false
			buf = buf[idx+len(closeTag):]
			continue
		}
		hold := partialTagLen(buf, closeTag)
		e.cmdBuf.WriteString(buf[:len(buf)-hold])
		e.pending = buf[len(buf)-hold:]
		return visible.String(), commands
	}
}

// Flush ends the stream. A tag that never closed was not a command after
// all: its raw open literal and buffered content come back as visible text.
// Outside a tag, any held-back partial literal is released.
func (e *Extractor) Flush() string {
	if e.inCommand {
		out := openTag + e.cmdBuf.String() + e.pending
		e.cmdBuf.Reset()
		e.inCommand = false
		e.pending = ""
		return out
	}
	out := e.pending
	e.pending = ""
	return out
}

// partialTagLen returns the length of the longest suffix of s that is a
// proper prefix of tag.
func partialTagLen(s, tag string) int {
	max := len(tag) - 1
	if len(s) < max {
		max = len(s)
	}
	for k := max; k > 0; k-- {
		if strings.HasSuffix(s, tag[:k]) {
			return k
		}
	}
	return 0
}
