package protocol

import "strings"

// Link carries protocol lines to and from the host.
type Link interface {
	// Send writes one line; the newline is appended by the link.
	Send(line string) error

	// Poll returns the next complete inbound line without blocking.
	// ok is false when no line is available.
	Poll() (line string, ok bool, err error)

	// Close releases the underlying port.
	Close() error
}

// maxLineLength bounds a partial inbound line; longer input is discarded.
const maxLineLength = 256

// lineBuffer accumulates inbound bytes and splits them into lines.
// Not safe for concurrent use.
type lineBuffer struct {
	partial  []byte
	lines    []string
	overflow bool
}

func (b *lineBuffer) write(p []byte) {
	for _, c := range p {
		if c == '\n' || c == '\r' {
			if !b.overflow {
				if line := strings.TrimSpace(string(b.partial)); line != "" {
					b.lines = append(b.lines, line)
				}
			}
			b.partial = b.partial[:0]
			b.overflow = false
			continue
		}
		if len(b.partial) >= maxLineLength {
			b.overflow = true
			continue
		}
		b.partial = append(b.partial, c)
	}
}

func (b *lineBuffer) next() (string, bool) {
	if len(b.lines) == 0 {
		return "", false
	}
	line := b.lines[0]
	b.lines = b.lines[1:]
	return line, true
}
