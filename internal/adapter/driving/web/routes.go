package web

import (
	"io/fs"
	"net/http"
)

// RegisterRoutes registers all web GUI routes on the provided mux.
// Static assets are served from the embedded filesystem at /static/*.
// Form posts pass through throttle when it is non-nil.
func RegisterRoutes(mux *http.ServeMux, h *Handler, throttle func(http.Handler) http.Handler) {
	post := func(next http.HandlerFunc) http.Handler {
		if throttle == nil {
			return next
		}
		return throttle(next)
	}

	// Static assets (embedded via go:embed).
	staticFS, _ := fs.Sub(StaticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	// Page routes.
	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("GET /tables/{table}", h.TablePage)
	mux.HandleFunc("GET /tables/{table}/rows/{id}", h.RowCard)
	mux.HandleFunc("GET /tables/{table}/new", h.NewRowForm)
	mux.Handle("POST /tables/{table}/rows", post(h.CreateRow))

	mux.HandleFunc("GET /login", h.LoginPage)
	mux.Handle("POST /login", post(h.Login))
	mux.HandleFunc("POST /logout", h.Logout)
}
