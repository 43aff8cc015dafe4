/*
Package fastexpress provides Express-style routing on a native epoll/kqueue HTTP engine.

Routers hold an ordered table of middleware and routes. A request walks the
table in registration order, descending into mounted sub-routers, and each
handler decides with next whether the walk continues. Literal routes on the
root router are flattened into native engine routes so they skip the table
walk while keeping the exact same handler sequence.

Features

  - Express path templates: literals, :params, optional params, wildcards, regex constraints
  - next protocol: next(nil), next(router.SkipRoute), next(router.SkipRouter), next(err)
  - Param hooks that run once per request per parameter name
  - Error handlers per router with escalation to enclosing routers
  - Native route flattening for literal paths on the socket engine
  - I/O multiplexing: epoll (Linux) and kqueue (BSD/macOS)
  - HTTP/2 cleartext (h2c) and net/http transports
  - Stock middleware: request ids, access logs, Prometheus metrics, OpenTelemetry tracing, CORS, rate limiting

Quick Start

	package main

	import (
	    "context"

	    "github.com/searchktools/fast-express/app"
	    "github.com/searchktools/fast-express/config"
	    "github.com/searchktools/fast-express/core/router"
	)

	func main() {
	    application := app.New(config.New())
	    r := application.Router()

	    r.Get("/hello", func(req *router.Request, res *router.Response, next router.NextFunc) {
	        res.Send("Hello, World!")
	    })

	    users := router.New()
	    users.Get("/:id", func(req *router.Request, res *router.Response, next router.NextFunc) {
	        res.JSON(map[string]string{"id": req.Param("id")})
	    })
	    r.Use("/users", users)

	    application.Run(context.Background())
	}

Modules

  - app: wiring of configuration, logging, engine, router, metrics and transports
  - config: environment configuration and parent-delegating settings
  - core: native socket engine and route table
  - core/http: transport request contexts and the HTTP/1.1 parser
  - core/router: route table, dispatch, native route flattening, param hooks
  - core/router/pattern: path template compiler
  - core/middleware: stock middleware
  - core/pools: worker, byte and object pools, GC tuning
  - core/poller: epoll/kqueue multiplexers
  - core/http2: h2c server
  - core/observability: Prometheus instruments
  - core/logger: slog construction and attributes
  - cmd/fast-express: CLI with serve and routes commands
*/
package fastexpress
