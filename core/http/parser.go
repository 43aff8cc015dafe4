package http

import (
	"bytes"
	"errors"
	"net/url"
	"strconv"
	"strings"
)

var (
	// ErrInvalidRequest reports a malformed request.
	ErrInvalidRequest = errors.New("invalid HTTP request")
	// ErrIncomplete reports that more bytes are needed to parse a full request.
	ErrIncomplete = errors.New("incomplete HTTP request")
	// ErrUnsupportedEncoding reports a transfer encoding the parser does not handle.
	ErrUnsupportedEncoding = errors.New("unsupported transfer encoding")
)

// ParseRequest parses one request from the front of data and returns it
// with the number of bytes it occupied, so pipelined requests that follow
// stay in the buffer. Strings are copied out of data because handlers may
// outlive the read buffer.
func ParseRequest(data []byte) (*Request, int, error) {
	headerEnd := bytes.Index(data, []byte("\r\n\r\n"))
	sepLen := 4
	if headerEnd == -1 {
		headerEnd = bytes.Index(data, []byte("\n\n"))
		sepLen = 2
		if headerEnd == -1 {
			return nil, 0, ErrIncomplete
		}
	}

	req := AcquireRequest()

	head := data[:headerEnd]
	lineEnd := bytes.IndexByte(head, '\n')
	if lineEnd == -1 {
		lineEnd = len(head)
	}
	line := bytes.TrimSuffix(head[:lineEnd], []byte("\r"))

	// METHOD PATH PROTO
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		ReleaseRequest(req)
		return nil, 0, ErrInvalidRequest
	}
	sp2 := bytes.IndexByte(line[sp1+1:], ' ')
	if sp2 <= 0 {
		ReleaseRequest(req)
		return nil, 0, ErrInvalidRequest
	}
	sp2 += sp1 + 1

	req.Method = string(line[:sp1])
	target := string(line[sp1+1 : sp2])
	req.Proto = string(line[sp2+1:])
	if !strings.HasPrefix(req.Proto, "HTTP/1.") {
		ReleaseRequest(req)
		return nil, 0, ErrInvalidRequest
	}

	if idx := strings.IndexByte(target, '?'); idx != -1 {
		req.RawQuery = target[idx+1:]
		target = target[:idx]
		parseQuery(req)
	}
	req.Path = target

	if lineEnd < len(head) {
		parseHeaders(req, head[lineEnd+1:])
	}

	consumed := headerEnd + sepLen

	if te := req.Header("Transfer-Encoding"); te != "" && !strings.EqualFold(te, "identity") {
		ReleaseRequest(req)
		return nil, 0, ErrUnsupportedEncoding
	}

	if req.ContentLength != "" {
		n, err := strconv.Atoi(req.ContentLength)
		if err != nil || n < 0 {
			ReleaseRequest(req)
			return nil, 0, ErrInvalidRequest
		}
		if len(data)-consumed < n {
			ReleaseRequest(req)
			return nil, 0, ErrIncomplete
		}
		req.Body = append(req.Body[:0], data[consumed:consumed+n]...)
		consumed += n
	}

	return req, consumed, nil
}

// parseHeaders parses HTTP headers
func parseHeaders(req *Request, data []byte) {
	for len(data) > 0 {
		lineEnd := bytes.IndexByte(data, '\n')
		if lineEnd == -1 {
			lineEnd = len(data)
		}

		line := bytes.TrimSuffix(data[:lineEnd], []byte("\r"))
		if len(line) == 0 {
			break
		}

		if colon := bytes.IndexByte(line, ':'); colon > 0 {
			key := string(bytes.TrimSpace(line[:colon]))
			value := string(bytes.TrimSpace(line[colon+1:]))
			req.SetHeader(key, value)
		}

		if lineEnd == len(data) {
			break
		}
		data = data[lineEnd+1:]
	}
}

// parseQuery keeps the first value of every query key
func parseQuery(req *Request) {
	values, _ := url.ParseQuery(req.RawQuery)
	if len(values) == 0 {
		return
	}
	if req.Query == nil {
		req.Query = make(map[string]string, len(values))
	}
	for k, v := range values {
		if len(v) > 0 {
			req.Query[k] = v[0]
		}
	}
}
