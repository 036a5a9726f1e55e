// internal/app/features/locations/routes.go
package locations

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter that serves the location query endpoints.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeList) // mounted under /api/locations
	return r
}
