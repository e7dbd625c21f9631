package jobs

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"laborease/lifecycle"
	"laborease/models"
	"laborease/pay"
	"laborease/store"
	"laborease/utils"
)

// Handler exposes the lifecycle engine over HTTP.
type Handler struct {
	Engine *lifecycle.Engine
	Store  store.Store
}

func NewHandler(engine *lifecycle.Engine, st store.Store) *Handler {
	return &Handler{Engine: engine, Store: st}
}

// respondLifecycleError translates engine errors into the three user-facing
// buckets: not authorized, invalid input, and transient failure.
func respondLifecycleError(w http.ResponseWriter, err error) {
	var ve *lifecycle.ValidationError
	switch {
	case errors.Is(err, lifecycle.ErrUnauthorized):
		utils.RespondWithError(w, http.StatusForbidden, "You are not authorized to perform this action")
	case errors.Is(err, lifecycle.ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Not found")
	case errors.As(err, &ve):
		utils.RespondWithError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, lifecycle.ErrConflict):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("jobs: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Something went wrong, please retry")
	}
}

// CreateJob handles POST /api/jobs
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in lifecycle.PostJobInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	job, err := h.Engine.PostJob(r.Context(), utils.ActorFromRequest(r), in)
	if err != nil {
		respondLifecycleError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, job)
}

// ListOpenJobs handles GET /api/jobs
func (h *Handler) ListOpenJobs(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	jobs, err := h.Store.ListOpenJobs(r.Context(), 20)
	if err != nil {
		log.Printf("jobs: list open: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	if jobs == nil {
		jobs = []models.Job{}
	}
	utils.RespondWithJSON(w, http.StatusOK, jobs)
}

// JobDetail is the job page read model: the job, its client, the assigned
// laborer when there is one, and the requesting laborer's application state.
type JobDetail struct {
	models.Job
	ClientName      string  `json:"client_name"`
	ClientPhone     string  `json:"client_phone,omitempty"`
	LaborerAssigned string  `json:"laborer_assigned,omitempty"`
	HasApplied      bool    `json:"has_applied"`
	ProposedRate    float64 `json:"proposed_rate"`
}

// GetJob handles GET /api/jobs/:id
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := r.Context()
	id := ps.ByName("id")

	job, err := h.Store.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Not found")
		} else {
			log.Printf("jobs: get %s: %v", id, err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		}
		return
	}

	detail := JobDetail{Job: *job, ClientName: "Unknown Client", ProposedRate: job.Budget}

	if p, err := h.Store.GetProfile(ctx, job.ClientID); err == nil {
		detail.ClientName = p.FullName
		detail.ClientPhone = p.Phone
	}

	if a, err := h.Store.GetActiveAssignmentByJob(ctx, job.ID); err == nil {
		if p, err := h.Store.GetProfile(ctx, a.LaborerID); err == nil {
			detail.LaborerAssigned = p.FullName
		} else {
			detail.LaborerAssigned = "Unknown Laborer"
		}
	}

	if userID := utils.GetUserIDFromRequest(r); userID != "" {
		apps, err := h.Store.ListApplicationsByJobAndLaborer(ctx, job.ID, userID)
		if err == nil && len(apps) > 0 {
			detail.HasApplied = true
			detail.ProposedRate = apps[0].ProposedRate
		}
	}

	utils.RespondWithJSON(w, http.StatusOK, detail)
}

// Apply handles POST /api/jobs/:id/apply
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	// An empty body is a valid application: the rate defaults to the job's
	// posted budget.
	var in lifecycle.ApplyInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	in.JobID = ps.ByName("id")

	app, err := h.Engine.SubmitApplication(r.Context(), utils.ActorFromRequest(r), in)
	if err != nil {
		respondLifecycleError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, app)
}

// Accept handles POST /api/applications/:id/accept
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	assignment, err := h.Engine.AcceptApplication(r.Context(), utils.ActorFromRequest(r), ps.ByName("id"))
	if err != nil {
		respondLifecycleError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, assignment)
}

// Decline handles POST /api/applications/:id/decline
func (h *Handler) Decline(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.Engine.DeclineApplication(r.Context(), utils.ActorFromRequest(r), ps.ByName("id")); err != nil {
		respondLifecycleError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": models.ApplicationDeclined})
}

// Complete handles POST /api/assignments/:id/complete
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.Engine.CompleteJob(r.Context(), utils.ActorFromRequest(r), ps.ByName("id")); err != nil {
		respondLifecycleError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": models.AssignmentCompleted})
}

// Cancel handles POST /api/jobs/:id/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.Engine.CancelJob(r.Context(), utils.ActorFromRequest(r), ps.ByName("id")); err != nil {
		respondLifecycleError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": models.JobCancelled})
}

// Pay handles POST /api/assignments/:id/payment
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var card pay.Card
	if err := json.NewDecoder(r.Body).Decode(&card); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.Engine.CapturePayment(r.Context(), utils.ActorFromRequest(r), ps.ByName("id"), card); err != nil {
		respondLifecycleError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"payment_status": models.PaymentCompleted})
}

type rateRequest struct {
	Rating int    `json:"rating"`
	Review string `json:"review"`
}

// Rate handles POST /api/assignments/:id/rating
func (h *Handler) Rate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in rateRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.Engine.RateAssignment(r.Context(), utils.ActorFromRequest(r), ps.ByName("id"), in.Rating, in.Review); err != nil {
		respondLifecycleError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"ok": true})
}
