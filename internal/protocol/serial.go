package protocol

import (
	"fmt"
	"log"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate matches the acquisition host's serial settings.
	DefaultBaudRate = 115200

	// pollTimeout bounds how long Poll may wait for bytes. It must stay well
	// below the control interval.
	pollTimeout = time.Millisecond
)

// SerialLink talks to the host over a serial port.
type SerialLink struct {
	port serial.Port
	name string
	buf  lineBuffer
	rbuf [64]byte
}

// OpenSerial opens the named port and configures it for non-blocking polls.
func OpenSerial(name string, baudRate int) (*SerialLink, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}

	port, err := serial.Open(name, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	if err := port.SetReadTimeout(pollTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		log.Printf("serial: reset input buffer on %s: %v", name, err)
	}

	return &SerialLink{port: port, name: name}, nil
}

// Send writes a line followed by a newline.
func (l *SerialLink) Send(line string) error {
	if _, err := l.port.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("write to %s: %w", l.name, err)
	}
	return nil
}

// Poll drains whatever bytes are waiting and returns the oldest complete line.
func (l *SerialLink) Poll() (string, bool, error) {
	if line, ok := l.buf.next(); ok {
		return line, true, nil
	}

	n, err := l.port.Read(l.rbuf[:])
	if err != nil {
		return "", false, fmt.Errorf("read from %s: %w", l.name, err)
	}
	if n > 0 {
		l.buf.write(l.rbuf[:n])
	}

	line, ok := l.buf.next()
	return line, ok, nil
}

// Close closes the port.
func (l *SerialLink) Close() error {
	return l.port.Close()
}
