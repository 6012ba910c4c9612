package httpapi

import "net/http"

func NewMux(deps Deps) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, deps)
	return mux
}
