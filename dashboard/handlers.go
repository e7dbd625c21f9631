package dashboard

import (
	"log"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"laborease/store"
	"laborease/utils"
)

// Handler serves the role-scoped dashboard views.
type Handler struct {
	Store store.Store
}

func NewHandler(st store.Store) *Handler {
	return &Handler{Store: st}
}

// Client handles GET /api/dashboard/client
func (h *Handler) Client(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	view, err := ClientOverview(r.Context(), h.Store, utils.GetUserIDFromRequest(r))
	if err != nil {
		// The view is already empty; surface the failure for display.
		log.Printf("dashboard: client overview: %v", err)
		utils.RespondWithJSON(w, http.StatusOK, utils.M{
			"view":  view,
			"error": "Some data could not be loaded, please retry",
		})
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"view": view})
}

// Laborer handles GET /api/dashboard/laborer
func (h *Handler) Laborer(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	view, err := LaborerOverview(r.Context(), h.Store, utils.GetUserIDFromRequest(r))
	if err != nil {
		log.Printf("dashboard: laborer overview: %v", err)
		utils.RespondWithJSON(w, http.StatusOK, utils.M{
			"view":  view,
			"error": "Some data could not be loaded, please retry",
		})
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"view": view})
}
