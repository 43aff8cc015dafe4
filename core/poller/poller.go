// Package poller wraps the platform readiness notification API (epoll on
// Linux, kqueue on macOS) behind a level-triggered Poller.
package poller

// Event reports readiness of one descriptor.
type Event struct {
	Fd int
	// Hangup is set when the peer closed or the descriptor failed. Buffered
	// data may still be readable.
	Hangup bool
}

// Poller is a level-triggered I/O multiplexer.
type Poller interface {
	// Add watches fd for reads and hangups.
	Add(fd int) error
	// Remove stops watching fd.
	Remove(fd int) error
	// Pause stops read notifications for fd until Resume.
	Pause(fd int) error
	// Resume re-enables read notifications for fd.
	Resume(fd int) error
	// Wait blocks for up to timeoutMs milliseconds (-1 waits forever) and
	// returns the ready descriptors. The slice is reused by the next call.
	Wait(timeoutMs int) ([]Event, error)
	Close() error
}
