package api

import (
	"net/http"
)

// serviceMux routes the procedures of one service.
type serviceMux map[string]http.Handler

func (m serviceMux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, ok := m[r.URL.Path]; ok {
		h.ServeHTTP(w, r)
		return
	}
	http.NotFound(w, r)
}

func servicePath(name string) string {
	return "/" + name + "/"
}
