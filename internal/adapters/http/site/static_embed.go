package site

import (
	"embed"
	"errors"
	"io/fs"
	"net/http"
)

//go:embed static
var staticFS embed.FS

// FS returns an http.FileSystem for the embedded site.
func FS() (http.FileSystem, error) {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, errors.Join(ErrServe, err)
	}
	return http.FS(sub), nil
}

// FileServer serves FS, answering 500 if the embedded tree is unusable.
func FileServer() http.Handler {
	files, err := FS()
	if err != nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		})
	}
	return http.FileServer(files)
}
