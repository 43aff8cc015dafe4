package router

// scope is one router's position in a request: the mount prefix that led
// to it, the path relative to it and the parameters it inherits. Scopes
// are immutable and may be shared across requests.
type scope struct {
	router  *Router
	parent  *scope
	via     *entry
	baseURL string
	path    string
	params  map[string]string
}

// step is one matched entry together with the scope it matched in.
type step struct {
	entry   *entry
	scope   *scope
	params  map[string]string
	matched string
}

// stepSource yields matching entries in dispatch order.
type stepSource interface {
	next() (step, bool)
	// enter descends into the sub-router of st.
	enter(st step)
	// skipGroup drops the rest of st's registration group.
	skipGroup(st step)
	// skipScope drops everything left in sc, including nested routers.
	skipScope(sc *scope)
}

func childScope(st step) *scope {
	rest := st.scope.path[len(st.matched):]
	if rest == "" || rest[0] != '/' {
		rest = "/" + rest
	}
	child := st.entry.target.router
	var inherited map[string]string
	if child.mergeParams {
		inherited = mergeParams(st.scope.params, st.params)
	}
	return &scope{
		router:  child,
		parent:  st.scope,
		via:     st.entry,
		baseURL: st.scope.baseURL + st.matched,
		path:    rest,
		params:  inherited,
	}
}

func mergeParams(outer, inner map[string]string) map[string]string {
	switch {
	case len(outer) == 0:
		return inner
	case len(inner) == 0:
		return outer
	}
	out := make(map[string]string, len(outer)+len(inner))
	for k, v := range outer {
		out[k] = v
	}
	for k, v := range inner {
		out[k] = v
	}
	return out
}

// frame is a router being walked and the cursor into its entries.
type frame struct {
	scope   *scope
	entries []*entry
	cursor  int
}

// walkSource walks route tables at request time, descending into
// sub-routers through a stack of frames.
type walkSource struct {
	method string
	frames []frame
}

func newWalk(root *Router, method, path string) *walkSource {
	w := &walkSource{method: method, frames: make([]frame, 0, 4)}
	w.push(&scope{router: root, path: path})
	return w
}

func (w *walkSource) push(sc *scope) {
	w.frames = append(w.frames, frame{scope: sc, entries: sc.router.snapshot()})
}

func (w *walkSource) next() (step, bool) {
	for len(w.frames) > 0 {
		f := &w.frames[len(w.frames)-1]
		if f.cursor >= len(f.entries) {
			w.frames = w.frames[:len(w.frames)-1]
			continue
		}
		e := f.entries[f.cursor]
		f.cursor++
		if !e.matchesMethod(w.method) {
			continue
		}
		params, matched, ok := e.matcher.Match(f.scope.path)
		if !ok {
			continue
		}
		return step{entry: e, scope: f.scope, params: params, matched: matched}, true
	}
	return step{}, false
}

func (w *walkSource) enter(st step) {
	w.push(childScope(st))
}

func (w *walkSource) skipGroup(st step) {
	for i := len(w.frames) - 1; i >= 0; i-- {
		f := &w.frames[i]
		if f.scope != st.scope {
			continue
		}
		w.frames = w.frames[:i+1]
		for f.cursor < len(f.entries) && f.entries[f.cursor].key <= st.entry.skipTo {
			f.cursor++
		}
		return
	}
}

func (w *walkSource) skipScope(sc *scope) {
	for i := len(w.frames) - 1; i >= 0; i-- {
		if w.frames[i].scope == sc {
			w.frames = w.frames[:i]
			return
		}
	}
}

// flatSource replays a precomputed list of steps for one method and
// literal path. Skips are resolved against each step's scope chain.
type flatSource struct {
	steps []step
	pos   int
}

func (f *flatSource) next() (step, bool) {
	if f.pos >= len(f.steps) {
		return step{}, false
	}
	st := f.steps[f.pos]
	f.pos++
	return st, true
}

// enter is a no-op: the sub-router's steps already follow in order.
func (f *flatSource) enter(step) {}

func (f *flatSource) skipGroup(st step) {
	for f.pos < len(f.steps) {
		key, ok := keyIn(f.steps[f.pos], st.scope)
		if !ok || key > st.entry.skipTo {
			return
		}
		f.pos++
	}
}

func (f *flatSource) skipScope(sc *scope) {
	for f.pos < len(f.steps) {
		if _, ok := keyIn(f.steps[f.pos], sc); !ok {
			return
		}
		f.pos++
	}
}

// keyIn returns the key of the entry in sc through which st is reached,
// or false when st lies outside sc.
func keyIn(st step, sc *scope) (uint64, bool) {
	if st.scope == sc {
		return st.entry.key, true
	}
	for cur := st.scope; cur.parent != nil; cur = cur.parent {
		if cur.parent == sc {
			return cur.via.key, true
		}
	}
	return 0, false
}

// flatten records the steps a walk produces for method and path when
// every handler continues.
func flatten(root *Router, method, path string) []step {
	w := newWalk(root, method, path)
	var steps []step
	for {
		st, ok := w.next()
		if !ok {
			return steps
		}
		steps = append(steps, st)
		if st.entry.target.kind == targetRouter {
			w.enter(st)
		}
	}
}
