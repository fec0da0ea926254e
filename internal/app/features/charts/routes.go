package charts

import (
	"net/http"

	apistatsstore "github.com/dalemusser/stratachart/internal/app/store/apistats"
	"github.com/dalemusser/stratachart/internal/app/system/apistats"
	"github.com/go-chi/chi/v5"
)

// Routes returns the chart router. Mount it at /charts behind the session
// CSRF middleware; GET requests are never checked. recorder may be nil.
func Routes(h *Handler, recorder *apistats.Recorder) http.Handler {
	r := chi.NewRouter()
	r.With(apistats.Middleware(recorder, apistatsstore.StatTypeChartSelection)).Post("/mode", h.SaveMode)

	scoped := func(r chi.Router) {
		r.With(apistats.Middleware(recorder, apistatsstore.StatTypeChartRender)).Get("/", h.Charts)
		r.With(apistats.Middleware(recorder, apistatsstore.StatTypeChartMenu)).Get("/menu", h.Menu)
		r.With(apistats.Middleware(recorder, apistatsstore.StatTypeChartSelection)).Post("/selection", h.SaveSelection)
	}
	r.Route("/city/{city}", scoped)
	r.Route("/{scope}", scoped)
	return r
}
