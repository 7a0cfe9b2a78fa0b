// Package protocol implements the line-oriented host protocol: telemetry and
// step markers out, capture requests out, acknowledgments in.
package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/thermal-cycler/internal/control"
)

// Fixed messages.
const (
	// AckMessage is sent by the host once it has captured the requested frame.
	AckMessage = "P"
	// CaptureFAMMessage requests a frame under FAM (blue) illumination.
	CaptureFAMMessage = "PB"
	// CaptureCY5Message requests a frame under CY5 (red) illumination.
	CaptureCY5Message = "PR"
	// EndMessage marks the end of a run.
	EndMessage = "E"
)

// Markers used in step boundary lines.
const (
	MarkerStart = "START"
	MarkerEnd   = "END"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Telemetry formats a "T,<elapsed_seconds>,<temperature>" line.
func Telemetry(elapsed time.Duration, temp float32) string {
	return "T," + formatFloat(elapsed.Seconds()) + "," + formatFloat(float64(temp))
}

// StepStart formats "L,<step>,START".
func StepStart(step string) string {
	return "L," + step + "," + MarkerStart
}

// StepEnd formats "L,<step>,END".
func StepEnd(step string) string {
	return "L," + step + "," + MarkerEnd
}

// StepCycle formats "L,<step>,<cycle>" for steps repeated each cycle.
func StepCycle(step string, cycle int) string {
	return "L," + step + "," + strconv.Itoa(cycle)
}

// Cycle formats "C,<cycle>".
func Cycle(cycle int) string {
	return "C," + strconv.Itoa(cycle)
}

// CaptureRequest returns the request line for a channel.
func CaptureRequest(ch control.Channel) (string, error) {
	switch ch {
	case control.ChannelFAM:
		return CaptureFAMMessage, nil
	case control.ChannelCY5:
		return CaptureCY5Message, nil
	}
	return "", fmt.Errorf("protocol: unknown channel %q", ch)
}

// IsAck reports whether an inbound line acknowledges a capture. Anything other
// than a lone "P" is not an acknowledgment.
func IsAck(line string) bool {
	return strings.TrimSpace(line) == AckMessage
}
