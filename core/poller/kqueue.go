//go:build darwin

package poller

import (
	"errors"

	"golang.org/x/sys/unix"
)

type kqueuePoller struct {
	kqfd   int
	events []unix.Kevent_t
	ready  []Event
}

// New creates a kqueue poller.
func New() (Poller, error) {
	kqfd, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kqfd)
	return &kqueuePoller{
		kqfd:   kqfd,
		events: make([]unix.Kevent_t, 1024),
		ready:  make([]Event, 0, 1024),
	}, nil
}

func (p *kqueuePoller) change(fd int, flags uint16) error {
	var ev unix.Kevent_t
	unix.SetKevent(&ev, fd, unix.EVFILT_READ, int(flags))
	_, err := unix.Kevent(p.kqfd, []unix.Kevent_t{ev}, nil, nil)
	return err
}

func (p *kqueuePoller) Add(fd int) error {
	return p.change(fd, unix.EV_ADD|unix.EV_ENABLE)
}

func (p *kqueuePoller) Remove(fd int) error {
	return p.change(fd, unix.EV_DELETE)
}

func (p *kqueuePoller) Pause(fd int) error {
	return p.change(fd, unix.EV_DISABLE)
}

func (p *kqueuePoller) Resume(fd int) error {
	return p.change(fd, unix.EV_ENABLE)
}

func (p *kqueuePoller) Wait(timeoutMs int) ([]Event, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * 1e6)
		ts = &t
	}
	n, err := unix.Kevent(p.kqfd, nil, p.events, ts)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, err
	}
	p.ready = p.ready[:0]
	for _, ev := range p.events[:n] {
		p.ready = append(p.ready, Event{
			Fd:     int(ev.Ident),
			Hangup: ev.Flags&(unix.EV_EOF|unix.EV_ERROR) != 0,
		})
	}
	return p.ready, nil
}

func (p *kqueuePoller) Close() error {
	return unix.Close(p.kqfd)
}
