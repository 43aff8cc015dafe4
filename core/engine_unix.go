//go:build linux || darwin

package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	stdhttp "net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/searchktools/fast-express/core/http"
	"github.com/searchktools/fast-express/core/logger"
	"github.com/searchktools/fast-express/core/poller"
	"github.com/searchktools/fast-express/core/pools"
)

const initialBufferSize = 8192

// conn is one client connection owned by the event loop. A request is
// handed to a worker at a time; bytes that arrive meanwhile stay buffered.
type conn struct {
	mu     sync.Mutex
	fd     int
	buf    []byte
	n      int
	busy   bool
	paused bool
	closed bool
	active *http.FDContext

	lastActive atomic.Int64
}

func (c *conn) Reset() {
	c.mu.Lock()
	c.fd = -1
	c.buf = nil
	c.n = 0
	c.busy = false
	c.paused = false
	c.closed = false
	c.active = nil
	c.mu.Unlock()
	c.lastActive.Store(0)
}

func (c *conn) touch() { c.lastActive.Store(time.Now().UnixNano()) }

func (c *conn) idleFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, c.lastActive.Load()))
}

// loop is the state of one Serve call.
type loop struct {
	e   *Engine
	p   poller.Poller
	lfd int
	wp  *pools.WorkerPool

	mu    sync.Mutex
	conns map[int]*conn

	inflight sync.WaitGroup
}

// Run listens on addr and serves until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("core: listen %s: %w", addr, err)
	}
	defer ln.Close()
	return e.Serve(ctx, ln)
}

// Serve accepts connections on ln with an epoll/kqueue event loop until
// ctx is cancelled. In-flight requests get up to the write timeout to
// finish before their connections are closed.
func (e *Engine) Serve(ctx context.Context, ln net.Listener) error {
	if e.closed.Load() {
		return ErrServerClosed
	}
	tl, ok := ln.(*net.TCPListener)
	if !ok {
		return fmt.Errorf("core: unsupported listener %T", ln)
	}
	f, err := tl.File()
	if err != nil {
		return fmt.Errorf("core: listener fd: %w", err)
	}
	defer f.Close()
	lfd := int(f.Fd())
	if err := unix.SetNonblock(lfd, true); err != nil {
		return fmt.Errorf("core: set nonblock: %w", err)
	}

	p, err := poller.New()
	if err != nil {
		return fmt.Errorf("core: create poller: %w", err)
	}
	defer p.Close()
	if err := p.Add(lfd); err != nil {
		return fmt.Errorf("core: watch listener: %w", err)
	}

	wp := pools.NewWorkerPool(e.workers)
	e.workerPool.Store(wp)

	l := &loop{e: e, p: p, lfd: lfd, wp: wp, conns: make(map[int]*conn, 1024)}
	e.log.Info("engine listening",
		logger.Addr(ln.Addr().String()),
		slog.Int("workers", wp.Stats().Workers),
		slog.Int("native_routes", e.Routes()),
	)

	sweep := time.NewTicker(time.Second)
	defer sweep.Stop()
	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return nil
		case now := <-sweep.C:
			l.sweep(now)
		default:
		}

		events, err := p.Wait(100)
		if err != nil {
			l.shutdown()
			return fmt.Errorf("core: poll: %w", err)
		}
		for _, ev := range events {
			if ev.Fd == lfd {
				l.accept()
				continue
			}
			l.readable(ev)
		}
	}
}

func (l *loop) accept() {
	e := l.e
	for {
		nfd, _, err := unix.Accept(l.lfd)
		if err != nil {
			switch {
			case errors.Is(err, unix.EAGAIN):
			case errors.Is(err, unix.EINTR), errors.Is(err, unix.ECONNABORTED):
				continue
			default:
				e.log.Warn("accept failed", logger.Error(err))
			}
			return
		}
		if e.connections.Load() >= int64(e.maxConnections) {
			unix.Close(nfd)
			continue
		}
		unix.CloseOnExec(nfd)
		if err := unix.SetNonblock(nfd, true); err != nil {
			unix.Close(nfd)
			continue
		}
		_ = unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		_ = unix.SetsockoptInt(nfd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)

		c := e.connPool.Get()
		c.mu.Lock()
		c.fd = nfd
		c.buf = e.bytePool.Get(initialBufferSize)
		c.mu.Unlock()
		c.touch()

		l.mu.Lock()
		l.conns[nfd] = c
		l.mu.Unlock()
		e.connections.Add(1)
		if err := l.p.Add(nfd); err != nil {
			l.close(c)
		}
	}
}

func (l *loop) lookup(fd int) *conn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conns[fd]
}

func (l *loop) snapshot() []*conn {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*conn, 0, len(l.conns))
	for _, c := range l.conns {
		out = append(out, c)
	}
	return out
}

func (l *loop) readable(ev poller.Event) {
	c := l.lookup(ev.Fd)
	if c == nil {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.n == len(c.buf) {
		// Only a busy connection can have a full buffer.
		hangup := ev.Hangup
		if !hangup {
			l.pause(c)
		}
		c.mu.Unlock()
		if hangup {
			l.close(c)
		}
		return
	}

	n, err := unix.Read(c.fd, c.buf[c.n:])
	if err != nil && (errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR)) {
		c.mu.Unlock()
		return
	}
	if err != nil || n <= 0 {
		c.mu.Unlock()
		l.close(c)
		return
	}
	c.n += n
	c.touch()

	if c.busy {
		if c.n == len(c.buf) {
			l.pause(c)
		}
		c.mu.Unlock()
		return
	}
	task, closeConn := l.dispatch(c)
	c.mu.Unlock()
	l.run(c, task, closeConn)
}

// dispatch parses the next buffered request. It returns the task that
// serves it, or whether the connection must be closed. c.mu must be held.
func (l *loop) dispatch(c *conn) (pools.Task, bool) {
	e := l.e
	req, consumed, err := http.ParseRequest(c.buf[:c.n])
	switch {
	case errors.Is(err, http.ErrIncomplete):
		if c.n < len(c.buf) || l.grow(c) {
			return nil, false
		}
		writeStatus(c.fd, stdhttp.StatusRequestHeaderFieldsTooLarge)
		return nil, true
	case errors.Is(err, http.ErrUnsupportedEncoding):
		writeStatus(c.fd, stdhttp.StatusNotImplemented)
		return nil, true
	case err != nil:
		writeStatus(c.fd, stdhttp.StatusBadRequest)
		return nil, true
	}
	c.n = copy(c.buf, c.buf[consumed:c.n])

	fc := http.NewFDContext(c.fd, req)
	fc.SetWriteTimeout(e.writeTimeout)
	fc.OnFinish(func(fc *http.FDContext, err error) { l.finished(c, fc, err) })
	c.busy, c.active = true, fc
	l.inflight.Add(1)
	return func() { e.serve(fc) }, false
}

// grow doubles the read buffer up to the request size limit.
func (l *loop) grow(c *conn) bool {
	size := len(c.buf) * 2
	if size > l.e.maxRequestSize {
		if len(c.buf) >= l.e.maxRequestSize {
			return false
		}
		size = l.e.maxRequestSize
	}
	buf := l.e.bytePool.Get(size)
	copy(buf, c.buf[:c.n])
	l.e.bytePool.Put(c.buf)
	c.buf = buf
	return true
}

func (l *loop) run(c *conn, task pools.Task, closeConn bool) {
	if task != nil && !l.wp.Submit(task) {
		closeConn = true
	}
	if closeConn {
		l.close(c)
	}
}

// finished runs after a response is flushed. It serves the next
// pipelined request or closes the connection.
func (l *loop) finished(c *conn, fc *http.FDContext, err error) {
	c.mu.Lock()
	if c.closed || c.active != fc {
		c.mu.Unlock()
		return
	}
	c.busy, c.active = false, nil
	c.touch()

	var task pools.Task
	closeConn := err != nil || !fc.Request().KeepAlive()
	if !closeConn {
		if c.paused {
			l.resume(c)
		}
		if c.n > 0 {
			task, closeConn = l.dispatch(c)
		}
	}
	c.mu.Unlock()
	l.inflight.Done()
	l.run(c, task, closeConn)
}

func (l *loop) pause(c *conn) {
	if !c.paused && l.p.Pause(c.fd) == nil {
		c.paused = true
	}
}

func (l *loop) resume(c *conn) {
	if c.paused && l.p.Resume(c.fd) == nil {
		c.paused = false
	}
}

// close aborts the request in flight, then releases the descriptor.
// Aborting first waits for a write in progress and blocks later ones, so
// the descriptor is never written after it is closed and reused.
func (l *loop) close(c *conn) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	fd, active, busy := c.fd, c.active, c.busy
	c.busy, c.active = false, nil
	c.mu.Unlock()

	if active != nil {
		active.Abort()
	}

	l.mu.Lock()
	_, tracked := l.conns[fd]
	delete(l.conns, fd)
	l.mu.Unlock()

	_ = l.p.Remove(fd)
	_ = unix.Close(fd)
	if tracked {
		l.e.connections.Add(-1)
	}
	if busy {
		l.inflight.Done()
	}
	c.mu.Lock()
	buf := c.buf
	c.mu.Unlock()
	l.e.bytePool.Put(buf)
	l.e.connPool.Put(c)
}

// sweep closes idle keep-alive connections and stalled partial requests.
func (l *loop) sweep(now time.Time) {
	e := l.e
	for _, c := range l.snapshot() {
		c.mu.Lock()
		busy, partial := c.busy, c.n > 0
		c.mu.Unlock()
		idle := c.idleFor(now)
		switch {
		case busy:
		case partial && idle > e.readTimeout:
			l.close(c)
		case !partial && idle > e.idleTimeout:
			l.close(c)
		}
	}
}

func (l *loop) shutdown() {
	e := l.e
	_ = l.p.Remove(l.lfd)

	for _, c := range l.snapshot() {
		c.mu.Lock()
		busy := c.busy
		c.mu.Unlock()
		if !busy {
			l.close(c)
		}
	}

	done := make(chan struct{})
	go func() {
		l.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(e.writeTimeout):
		e.log.Warn("shutdown timed out waiting for requests")
	}

	for _, c := range l.snapshot() {
		l.close(c)
	}
	l.wp.Close()
	e.log.Info("engine stopped")
}

// writeStatus writes a bodiless response and is used before a connection
// is dropped for a protocol error.
func writeStatus(fd, code int) {
	b := make([]byte, 0, 96)
	b = append(b, "HTTP/1.1 "...)
	b = strconv.AppendInt(b, int64(code), 10)
	b = append(b, ' ')
	b = append(b, stdhttp.StatusText(code)...)
	b = append(b, "\r\nContent-Length: 0\r\nConnection: close\r\n\r\n"...)
	_, _ = unix.Write(fd, b)
}
