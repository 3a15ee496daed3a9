// Package readiness gates the API until the store has been initialized.
package readiness

import (
	"errors"
	"net/http"
	"sync/atomic"

	"eventReserver/internal/lib/api/response"

	"github.com/go-chi/render"
)

var ErrNotReady = errors.New("service not ready")

type state struct {
	handler http.Handler
	err     error
}

// Gate answers 503 until Serve installs the real handler. A failed
// initialization is recorded with Fail and keeps the gate closed.
type Gate struct {
	st atomic.Pointer[state]
}

func New() *Gate {
	return &Gate{}
}

func (g *Gate) Serve(h http.Handler) {
	g.st.Store(&state{handler: h})
}

func (g *Gate) Fail(err error) {
	if err == nil {
		err = ErrNotReady
	}
	g.st.Store(&state{err: err})
}

func (g *Gate) Ready() bool {
	st := g.st.Load()
	return st != nil && st.handler != nil
}

// Err reports why the gate is closed, or nil once it is open.
func (g *Gate) Err() error {
	st := g.st.Load()
	switch {
	case st == nil:
		return ErrNotReady
	case st.handler == nil:
		return st.err
	}
	return nil
}

func (g *Gate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	st := g.st.Load()
	if st == nil || st.handler == nil {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error(ErrNotReady.Error()))
		return
	}
	st.handler.ServeHTTP(w, r)
}

// ReadyzHandler reports 200 once the gate is open and 503 before.
func (g *Gate) ReadyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := g.Err(); err != nil {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		render.JSON(w, r, response.OK())
	}
}
