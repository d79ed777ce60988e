package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/historiar/monument-assets/pkg/assetversion"
)

// NewRouter builds the HTTP surface for the asset version manager.
func NewRouter(service assetversion.Service) chi.Router {
	monuments := NewMonumentHandler(service)
	versions := NewVersionHandler(service)

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	r.Route("/monuments", func(r chi.Router) {
		r.Post("/", monuments.CreateMonument)
		r.Get("/", monuments.ListMonuments)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", monuments.GetMonument)
			r.Delete("/", monuments.DeleteMonument)

			r.Route("/versions", func(r chi.Router) {
				r.Post("/", versions.UploadVersion)
				r.Get("/", versions.ListVersions)
				r.Get("/{record_id}", versions.GetVersion)
				r.Post("/{record_id}/activate", versions.ActivateVersion)
				r.Delete("/{record_id}", versions.DeleteVersion)
			})

			r.Route("/attachments", func(r chi.Router) {
				r.Post("/", monuments.AddAttachment)
				r.Get("/", monuments.ListAttachments)
				r.Delete("/{attachment_id}", monuments.DeleteAttachment)
			})
		})
	})

	return r
}
