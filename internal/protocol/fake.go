package protocol

// FakeHost is a scripted host for tests and simulation. It records every line
// sent to it and can acknowledge capture requests on its own.
type FakeHost struct {
	// Sent contains every line sent to the host, in order.
	Sent []string

	// Inbox holds scripted inbound lines, returned by Poll before any
	// automatic acknowledgment.
	Inbox []string

	// AutoAck makes the host answer each capture request with "P".
	AutoAck bool

	// AckAfter is the number of empty polls before an automatic ack arrives.
	AckAfter int

	// SendError, if set, will be returned by Send.
	SendError error

	// PollError, if set, will be returned by Poll.
	PollError error

	// Closed tracks if Close was called.
	Closed bool

	// countdown is the remaining empty polls before the pending ack.
	countdown int
	pending   bool
}

// NewFakeHost creates a FakeHost. With autoAck set, every capture request is
// acknowledged after ackAfter empty polls.
func NewFakeHost(autoAck bool, ackAfter int) *FakeHost {
	return &FakeHost{AutoAck: autoAck, AckAfter: ackAfter}
}

// Send records the line.
func (f *FakeHost) Send(line string) error {
	if f.SendError != nil {
		return f.SendError
	}
	f.Sent = append(f.Sent, line)
	if f.AutoAck && (line == CaptureFAMMessage || line == CaptureCY5Message) {
		f.pending = true
		f.countdown = f.AckAfter
	}
	return nil
}

// Poll returns the next scripted line, then any due acknowledgment.
func (f *FakeHost) Poll() (string, bool, error) {
	if f.PollError != nil {
		return "", false, f.PollError
	}
	if len(f.Inbox) > 0 {
		line := f.Inbox[0]
		f.Inbox = f.Inbox[1:]
		return line, true, nil
	}
	if !f.pending {
		return "", false, nil
	}
	if f.countdown > 0 {
		f.countdown--
		return "", false, nil
	}
	f.pending = false
	return AckMessage, true, nil
}

// Close marks the host as closed.
func (f *FakeHost) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded lines and scripted input.
func (f *FakeHost) Reset() {
	f.Sent = nil
	f.Inbox = nil
	f.pending = false
	f.countdown = 0
	f.Closed = false
	f.SendError = nil
	f.PollError = nil
}
