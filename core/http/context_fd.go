//go:build linux || darwin

package http

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sys/unix"
	"google.golang.org/protobuf/proto"
)

// FDContext is a file-descriptor based context for the epoll/kqueue engine.
// Writes go straight to the socket; a response is written exactly once.
type FDContext struct {
	responseState

	fd      int
	request *Request
	ctx     context.Context
	cancel  context.CancelFunc

	writeTimeout time.Duration
	responseBuf  []byte

	// onFinish runs after the response is flushed, outside the state lock.
	onFinish func(*FDContext, error)
}

// NewFDContext creates a new FD-based context
func NewFDContext(fd int, req *Request) *FDContext {
	c := &FDContext{responseBuf: make([]byte, 0, 4096)}
	c.Reset(fd, req)
	return c
}

// Reset prepares the context for a new request on fd.
func (c *FDContext) Reset(fd int, req *Request) {
	c.mu.Lock()
	c.responseState.reset()
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	c.fd = fd
	c.request = req
	c.responseBuf = c.responseBuf[:0]
	c.onFinish = nil
	c.writeTimeout = 10 * time.Second
	c.ctx, c.cancel = context.WithCancel(context.Background())
}

// SetWriteTimeout bounds how long a flush may wait for the socket to drain.
func (c *FDContext) SetWriteTimeout(d time.Duration) {
	c.writeTimeout = d
}

// OnFinish registers the callback invoked once the response is flushed.
func (c *FDContext) OnFinish(fn func(*FDContext, error)) {
	c.onFinish = fn
}

// Request returns the parsed request.
func (c *FDContext) Request() *Request {
	return c.request
}

// Abort marks the request aborted, cancels its context and runs abort hooks.
func (c *FDContext) Abort() {
	if c.abort() {
		c.cancel()
	}
}

func (c *FDContext) Method() string { return c.request.Method }
func (c *FDContext) Path() string { return c.request.Path }
func (c *FDContext) RawQuery() string { return c.request.RawQuery }
func (c *FDContext) Header(key string) string { return c.request.Header(key) }
func (c *FDContext) Body() []byte { return c.request.Body }
func (c *FDContext) Context() context.Context { return c.ctx }
func (c *FDContext) Bind(v any) error { return json.Unmarshal(c.request.Body, v) }
func (c *FDContext) String(code int, s string) { c.Data(code, MIMETextPlain, []byte(s)) }
func (c *FDContext) Bytes(code int, data []byte) { c.Data(code, MIMEOctetStream, data) }

func (c *FDContext) Query(key string) string {
	return c.request.Query[key]
}

// JSON sends a JSON response
func (c *FDContext) JSON(code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.Error(500, "Failed to marshal JSON")
		return
	}
	c.Data(code, MIMEJSON, data)
}

// Proto sends a protobuf-encoded response
func (c *FDContext) Proto(code int, m proto.Message) {
	data, err := proto.Marshal(m)
	if err != nil {
		c.Error(500, "Failed to marshal protobuf")
		return
	}
	c.Data(code, MIMEProtobuf, data)
}

// Error sends an error response
func (c *FDContext) Error(code int, message string) {
	c.JSON(code, errorBody(code, message))
}

// Success sends a success response
func (c *FDContext) Success(data any) {
	c.JSON(200, successBody(data))
}

// Data writes the response. Only the first call has an effect.
func (c *FDContext) Data(code int, contentType string, data []byte) {
	code, ok := c.begin(code)
	if !ok {
		return
	}
	if contentType == "" {
		contentType = contentTypeOf(c.headers, MIMEOctetStream)
	}
	c.responseBuf = appendResponse(c.responseBuf[:0], code, contentType, c.headers, data,
		c.request.Method == "HEAD", !c.request.KeepAlive())
	err := c.writeResponse()
	c.mu.Unlock()

	if c.onFinish != nil {
		c.onFinish(c, err)
	}
}

var errWriteTimeout = errors.New("write timeout")

// writeResponse writes the response buffer, waiting for the socket to
// become writable when it would block.
func (c *FDContext) writeResponse() error {
	written := 0
	for written < len(c.responseBuf) {
		n, err := unix.Write(c.fd, c.responseBuf[written:])
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if err == unix.EAGAIN {
				if err := c.waitWritable(); err != nil {
					return err
				}
				continue
			}
			return err
		}
		written += n
	}
	return nil
}

func (c *FDContext) waitWritable() error {
	fds := []unix.PollFd{{Fd: int32(c.fd), Events: unix.POLLOUT}}
	for {
		n, err := unix.Poll(fds, int(c.writeTimeout/time.Millisecond))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return errWriteTimeout
		}
		return nil
	}
}
