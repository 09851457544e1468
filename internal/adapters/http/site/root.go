// Package site serves the embedded landing page.
package site

import (
	"context"
	"errors"

	"github.com/gorilla/mux"
)

// ErrServe is reported when the embedded site cannot be served.
var ErrServe = errors.New("site serve failed")

// Register serves the embedded static files under /. Register it after every
// other route since the file server matches any path.
func Register(_ context.Context, r *mux.Router) {
	if r == nil {
		panic("router is nil")
	}
	r.PathPrefix("/").Handler(FileServer())
}
