//go:build linux

package poller

import (
	"errors"

	"golang.org/x/sys/unix"
)

const readEvents = unix.EPOLLIN | unix.EPOLLRDHUP

type epollPoller struct {
	epfd   int
	events []unix.EpollEvent
	ready  []Event
}

// New creates an epoll poller.
func New() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{
		epfd:   epfd,
		events: make([]unix.EpollEvent, 1024),
		ready:  make([]Event, 0, 1024),
	}, nil
}

func (p *epollPoller) ctl(op, fd int, events uint32) error {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, op, fd, &ev)
}

func (p *epollPoller) Add(fd int) error {
	return p.ctl(unix.EPOLL_CTL_ADD, fd, readEvents)
}

func (p *epollPoller) Remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) Pause(fd int) error {
	return p.ctl(unix.EPOLL_CTL_MOD, fd, 0)
}

func (p *epollPoller) Resume(fd int) error {
	return p.ctl(unix.EPOLL_CTL_MOD, fd, readEvents)
}

func (p *epollPoller) Wait(timeoutMs int) ([]Event, error) {
	n, err := unix.EpollWait(p.epfd, p.events, timeoutMs)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, err
	}
	p.ready = p.ready[:0]
	for _, ev := range p.events[:n] {
		p.ready = append(p.ready, Event{
			Fd:     int(ev.Fd),
			Hangup: ev.Events&(unix.EPOLLRDHUP|unix.EPOLLHUP|unix.EPOLLERR) != 0,
		})
	}
	return p.ready, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}
