//go:build linux || darwin

package http

import (
	"bufio"
	"bytes"
	"io"
	stdhttp "net/http"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// socketPair returns a context writing to one end and a reader on the other.
func socketPair(t *testing.T, req *Request) (*FDContext, *os.File) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)

	peer := os.NewFile(uintptr(fds[1]), "peer")
	t.Cleanup(func() {
		unix.Close(fds[0])
		peer.Close()
	})
	return NewFDContext(fds[0], req), peer
}

func readResponse(t *testing.T, r io.Reader, method string) *stdhttp.Response {
	t.Helper()
	resp, err := stdhttp.ReadResponse(bufio.NewReader(r), &stdhttp.Request{Method: method})
	require.NoError(t, err)
	return resp
}

func TestFDContextRequestAccessors(t *testing.T) {
	t.Parallel()

	req := &Request{
		Method:      "POST",
		Path:        "/api",
		Proto:       "HTTP/1.1",
		ContentType: "application/json",
		UserAgent:   "TestAgent/1.0",
		Query:       map[string]string{"q": "x"},
		Body:        []byte(`{"name":"alice"}`),
	}
	ctx, _ := socketPair(t, req)

	assert.Equal(t, "POST", ctx.Method())
	assert.Equal(t, "/api", ctx.Path())
	assert.Equal(t, "application/json", ctx.Header("Content-Type"))
	assert.Equal(t, "TestAgent/1.0", ctx.Header("user-agent"))
	assert.Equal(t, "x", ctx.Query("q"))

	var v struct{ Name string }
	require.NoError(t, ctx.Bind(&v))
	assert.Equal(t, "alice", v.Name)
}

func TestFDContextWritesOnce(t *testing.T) {
	t.Parallel()

	ctx, peer := socketPair(t, &Request{Method: "GET", Path: "/", Proto: "HTTP/1.1"})

	var finished int
	ctx.OnFinish(func(_ *FDContext, err error) {
		assert.NoError(t, err)
		finished++
	})

	ctx.SetHeader("X-Test", "1")
	ctx.Status(201)
	ctx.String(0, "created")
	ctx.String(500, "ignored")

	assert.True(t, ctx.HeadersSent())
	assert.Equal(t, 201, ctx.StatusCode())
	assert.Equal(t, 1, finished)

	resp := readResponse(t, peer, "GET")
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("X-Test"))
	assert.Equal(t, "created", string(body))
}

func TestFDContextHeadOmitsBody(t *testing.T) {
	t.Parallel()

	ctx, peer := socketPair(t, &Request{Method: "HEAD", Path: "/", Proto: "HTTP/1.1", Connection: "close"})
	ctx.String(200, "hello")

	unix.Shutdown(ctx.fd, unix.SHUT_WR)
	raw, err := io.ReadAll(peer)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Content-Length: 5")
	assert.Contains(t, string(raw), "Connection: close")
	assert.False(t, bytes.HasSuffix(raw, []byte("hello")))
}

func TestFDContextAbort(t *testing.T) {
	t.Parallel()

	ctx, _ := socketPair(t, &Request{Method: "GET", Path: "/", Proto: "HTTP/1.1"})

	var hooks int
	ctx.OnAborted(func() { hooks++ })
	ctx.Abort()
	ctx.Abort()

	assert.True(t, ctx.Aborted())
	assert.Equal(t, 1, hooks)
	assert.Error(t, ctx.Context().Err())

	ctx.String(200, "late")
	assert.False(t, ctx.HeadersSent())

	ctx.OnAborted(func() { hooks++ })
	assert.Equal(t, 2, hooks, "hooks registered after abort run immediately")
}

func TestFDContextProto(t *testing.T) {
	t.Parallel()

	ctx, peer := socketPair(t, &Request{Method: "GET", Path: "/", Proto: "HTTP/1.1"})
	ctx.Proto(200, wrapperspb.String("hi"))

	resp := readResponse(t, peer, "GET")
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, MIMEProtobuf, resp.Header.Get("Content-Type"))
	var msg wrapperspb.StringValue
	require.NoError(t, proto.Unmarshal(body, &msg))
	assert.Equal(t, "hi", msg.GetValue())
}
