package router

import (
	"fmt"
	"sync/atomic"

	"github.com/searchktools/fast-express/core/router/pattern"
)

// NextFunc continues the dispatch walk. nil advances to the next matching
// entry, SkipRoute and SkipRouter skip ahead, anything else is an error.
type NextFunc func(err error)

// HandlerFunc is a middleware or route handler.
type HandlerFunc func(req *Request, res *Response, next NextFunc)

// ErrorHandlerFunc handles errors raised inside the router it is
// registered on, including its sub-routers.
type ErrorHandlerFunc func(err error, req *Request, res *Response, next NextFunc)

// ParamFunc runs before the first handler whose path captures name.
type ParamFunc func(req *Request, res *Response, next NextFunc, value, name string)

// MethodAll matches every request method.
const MethodAll = "ALL"

// sequence orders entries across every router in the process. It starts
// at zero when the process starts and is never reset.
var sequence atomic.Uint64

func nextKey() uint64 { return sequence.Add(1) }

// version changes whenever any route table or param registry changes.
var version atomic.Uint64

func touch() { version.Add(1) }

type targetKind uint8

const (
	targetHandler targetKind = iota
	targetRouter
)

type target struct {
	kind    targetKind
	handler HandlerFunc
	router  *Router
}

// entry is one registered handler or sub-router. Entries are immutable.
type entry struct {
	method    string
	path      any
	matcher   *pattern.Matcher
	mount     bool
	anyMethod bool
	target    target
	key       uint64
	skipTo    uint64
}

func (e *entry) matchesMethod(method string) bool {
	return e.anyMethod || e.method == method || method == "HEAD" && e.method == "GET"
}

// collect normalizes the handler arguments accepted by the registration API.
func collect(args []any, targets []target, errHandlers []ErrorHandlerFunc) ([]target, []ErrorHandlerFunc) {
	for _, a := range args {
		switch h := a.(type) {
		case HandlerFunc:
			targets = append(targets, target{kind: targetHandler, handler: h})
		case func(*Request, *Response, NextFunc):
			targets = append(targets, target{kind: targetHandler, handler: h})
		case *Router:
			targets = append(targets, target{kind: targetRouter, router: h})
		case ErrorHandlerFunc:
			errHandlers = append(errHandlers, h)
		case func(error, *Request, *Response, NextFunc):
			errHandlers = append(errHandlers, h)
		case []HandlerFunc:
			for _, fn := range h {
				targets = append(targets, target{kind: targetHandler, handler: fn})
			}
		case []any:
			targets, errHandlers = collect(h, targets, errHandlers)
		default:
			panic(fmt.Sprintf("router: unsupported handler type %T", a))
		}
	}
	return targets, errHandlers
}
