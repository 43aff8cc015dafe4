package main

import (
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/searchktools/fast-express/core/router"
)

type user struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// userStore is the in-memory backing of the demo users API.
type userStore struct {
	mu    sync.RWMutex
	next  int
	users map[int]user
}

func newUserStore() *userStore {
	return &userStore{next: 2, users: map[int]user{1: {ID: 1, Name: "ada"}}}
}

// registerDemo builds the route tree served by the serve command.
func registerDemo(r *router.Router) {
	store := newUserStore()

	r.Get("/", func(req *router.Request, res *router.Response, next router.NextFunc) {
		res.Send("fast-express")
	})
	r.Get("/healthz", func(req *router.Request, res *router.Response, next router.NextFunc) {
		res.JSON(map[string]string{"status": "ok"})
	})

	api := router.New()
	api.Param("id", func(req *router.Request, res *router.Response, next router.NextFunc, value, name string) {
		id, err := strconv.Atoi(value)
		if err != nil {
			next(router.NewHTTPError(400, "invalid user id"))
			return
		}
		store.mu.RLock()
		u, ok := store.users[id]
		store.mu.RUnlock()
		if !ok {
			next(router.ErrNotFound)
			return
		}
		req.SetLocal("user", u)
		next(nil)
	})

	api.Route("/users").
		Get(func(req *router.Request, res *router.Response, next router.NextFunc) {
			store.mu.RLock()
			out := make([]user, 0, len(store.users))
			for _, u := range store.users {
				out = append(out, u)
			}
			store.mu.RUnlock()
			res.JSON(out)
		}).
		Post(func(req *router.Request, res *router.Response, next router.NextFunc) {
			var u user
			if err := req.Bind(&u); err != nil || strings.TrimSpace(u.Name) == "" {
				next(router.ErrBadRequest.Wrap(errors.New("name is required")))
				return
			}
			store.mu.Lock()
			u.ID = store.next
			store.next++
			store.users[u.ID] = u
			store.mu.Unlock()
			res.Status(201).JSON(u)
		})
	api.Get("/users/:id", func(req *router.Request, res *router.Response, next router.NextFunc) {
		res.JSON(req.Local("user"))
	})
	api.Get("/search", func(req *router.Request, res *router.Response, next router.NextFunc) {
		res.JSON(map[string]string{"q": req.Query("q"), "page": req.Query("page")})
	})

	r.Use("/api", api)
}
