// Package lifecycle is the state machine governing a job from posting through
// application, assignment, completion, and payment. Every mutating call takes
// an explicit auth.Context and fails fast without partial mutation: the
// multi-step transitions run inside a store transaction.
package lifecycle

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"laborease/auth"
	"laborease/models"
	"laborease/pay"
	"laborease/store"
)

type Engine struct {
	store     store.Store
	processor pay.Processor

	// overridable in tests
	now   func() time.Time
	newID func() string
}

func New(st store.Store, processor pay.Processor) *Engine {
	return &Engine{
		store:     st,
		processor: processor,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// PostJobInput carries the fields a client submits for a new job.
type PostJobInput struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Budget         float64  `json:"budget"`
	Location       string   `json:"location"`
	RequiredSkills []string `json:"required_skills"`
}

// PostJob creates an open job owned by the acting client.
func (e *Engine) PostJob(ctx context.Context, actor auth.Context, in PostJobInput) (*models.Job, error) {
	if actor.Anonymous() || !actor.IsClient() {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, invalid("title", "required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, invalid("description", "required")
	}
	if in.Budget < 0 {
		return nil, invalid("budget", "must not be negative")
	}

	now := e.now()
	job := &models.Job{
		ID:             e.newID(),
		Title:          strings.TrimSpace(in.Title),
		Description:    strings.TrimSpace(in.Description),
		Budget:         in.Budget,
		Location:       strings.TrimSpace(in.Location),
		RequiredSkills: in.RequiredSkills,
		Status:         models.JobOpen,
		ClientID:       actor.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.store.InsertJob(ctx, job); err != nil {
		return nil, storeErr("insert job", err)
	}
	return job, nil
}

// ApplyInput carries a laborer's bid. ProposedRate is optional and defaults
// to the job's budget.
type ApplyInput struct {
	JobID        string   `json:"job_id"`
	ProposedRate *float64 `json:"proposed_rate"`
	Note         string   `json:"note"`
}

// SubmitApplication creates a pending application for an open job. At most
// one pending application per (job, laborer) pair can exist; the store
// enforces that atomically, so concurrent submits end with one winner.
func (e *Engine) SubmitApplication(ctx context.Context, actor auth.Context, in ApplyInput) (*models.JobApplication, error) {
	if actor.Anonymous() || !actor.IsLaborer() {
		return nil, ErrUnauthorized
	}

	job, err := e.store.GetJob(ctx, in.JobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeErr("get job", err)
	}
	if job.Status != models.JobOpen {
		return nil, ErrJobNotOpen
	}

	rate := job.Budget
	if in.ProposedRate != nil {
		rate = *in.ProposedRate
	}
	if rate < 0 {
		return nil, invalid("proposed_rate", "must not be negative")
	}

	app := &models.JobApplication{
		ID:           e.newID(),
		JobID:        job.ID,
		LaborerID:    actor.UserID,
		ProposedRate: rate,
		Note:         strings.TrimSpace(in.Note),
		Status:       models.ApplicationPending,
		CreatedAt:    e.now(),
	}
	if err := e.store.InsertApplication(ctx, app); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateApplication
		}
		return nil, storeErr("insert application", err)
	}
	return app, nil
}

// AcceptApplication moves a pending application to accepted, creates the
// job's assignment, declines the remaining pending applications, and marks
// the job assigned. Either the job's client or the applying laborer may
// trigger it. A job that already has a non-cancelled assignment rejects the
// acceptance with a conflict.
func (e *Engine) AcceptApplication(ctx context.Context, actor auth.Context, applicationID string) (*models.JobAssignment, error) {
	app, job, err := e.loadApplication(ctx, actor, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.ApplicationPending {
		return nil, ErrNotPending
	}

	var assignment *models.JobAssignment
	err = e.store.Tx(ctx, func(ctx context.Context) error {
		if _, err := e.store.GetActiveAssignmentByJob(ctx, job.ID); err == nil {
			return ErrJobAlreadyAssigned
		} else if !errors.Is(err, store.ErrNotFound) {
			return storeErr("check assignment", err)
		}
		if job.Status != models.JobOpen {
			return ErrJobNotOpen
		}

		if err := e.store.SetApplicationStatus(ctx, app.ID, models.ApplicationAccepted); err != nil {
			return storeErr("accept application", err)
		}

		start := e.now()
		assignment = &models.JobAssignment{
			ID:            e.newID(),
			JobID:         job.ID,
			LaborerID:     app.LaborerID,
			ClientID:      job.ClientID,
			StartDate:     &start,
			FinalAmount:   app.ProposedRate,
			Status:        models.AssignmentInProgress,
			PaymentStatus: models.PaymentPending,
		}
		if err := e.store.InsertAssignment(ctx, assignment); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrJobAlreadyAssigned
			}
			return storeErr("insert assignment", err)
		}

		if err := e.store.DeclinePendingApplications(ctx, job.ID, app.ID); err != nil {
			return storeErr("decline applications", err)
		}
		if err := e.store.SetJobStatus(ctx, job.ID, models.JobAssigned); err != nil {
			return storeErr("set job status", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

// DeclineApplication moves a pending application to declined.
func (e *Engine) DeclineApplication(ctx context.Context, actor auth.Context, applicationID string) error {
	app, _, err := e.loadApplication(ctx, actor, applicationID)
	if err != nil {
		return err
	}
	if app.Status != models.ApplicationPending {
		return ErrNotPending
	}
	if err := e.store.SetApplicationStatus(ctx, app.ID, models.ApplicationDeclined); err != nil {
		return storeErr("decline application", err)
	}
	return nil
}

// loadApplication fetches an application and its job, and authorizes the
// actor as either the job's client or the applying laborer.
func (e *Engine) loadApplication(ctx context.Context, actor auth.Context, applicationID string) (*models.JobApplication, *models.Job, error) {
	if actor.Anonymous() {
		return nil, nil, ErrUnauthorized
	}
	app, err := e.store.GetApplication(ctx, applicationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, storeErr("get application", err)
	}
	job, err := e.store.GetJob(ctx, app.JobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, storeErr("get job", err)
	}
	if actor.UserID != job.ClientID && actor.UserID != app.LaborerID {
		return nil, nil, ErrUnauthorized
	}
	return app, job, nil
}

// CompleteJob is laborer-initiated: the in-progress assignment becomes
// completed and the job follows it, so the two views never diverge.
func (e *Engine) CompleteJob(ctx context.Context, actor auth.Context, assignmentID string) error {
	a, err := e.getAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	if actor.UserID != a.LaborerID {
		return ErrUnauthorized
	}
	if a.Status != models.AssignmentInProgress {
		return ErrNotInProgress
	}

	return e.store.Tx(ctx, func(ctx context.Context) error {
		end := e.now()
		status := models.AssignmentCompleted
		patch := store.AssignmentPatch{Status: &status, EndDate: &end}
		if err := e.store.UpdateAssignment(ctx, a.ID, patch); err != nil {
			return storeErr("complete assignment", err)
		}
		if err := e.store.SetJobStatus(ctx, a.JobID, models.JobCompleted); err != nil {
			return storeErr("set job status", err)
		}
		return nil
	})
}

// CancelJob is client-initiated and allowed while the job is open or
// assigned. It cancels any in-progress assignment and declines the pending
// applications so nothing dangles.
func (e *Engine) CancelJob(ctx context.Context, actor auth.Context, jobID string) error {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return storeErr("get job", err)
	}
	if actor.UserID != job.ClientID {
		return ErrUnauthorized
	}
	if job.Status != models.JobOpen && job.Status != models.JobAssigned {
		return ErrConflict
	}

	return e.store.Tx(ctx, func(ctx context.Context) error {
		if a, err := e.store.GetActiveAssignmentByJob(ctx, job.ID); err == nil {
			if a.Status == models.AssignmentInProgress {
				status := models.AssignmentCancelled
				if err := e.store.UpdateAssignment(ctx, a.ID, store.AssignmentPatch{Status: &status}); err != nil {
					return storeErr("cancel assignment", err)
				}
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			return storeErr("check assignment", err)
		}

		if err := e.store.DeclinePendingApplications(ctx, job.ID, ""); err != nil {
			return storeErr("decline applications", err)
		}
		if err := e.store.SetJobStatus(ctx, job.ID, models.JobCancelled); err != nil {
			return storeErr("set job status", err)
		}
		return nil
	})
}

// CapturePayment charges the client's card for a completed assignment and
// flips payment_status on success. It is rejected when payment has already
// completed, and — deliberately stricter than the legacy behavior — when the
// work itself has not finished yet.
func (e *Engine) CapturePayment(ctx context.Context, actor auth.Context, assignmentID string, card pay.Card) error {
	a, err := e.getAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	if actor.UserID != a.ClientID {
		return ErrUnauthorized
	}
	if a.PaymentStatus == models.PaymentCompleted {
		return ErrAlreadyPaid
	}
	if a.Status != models.AssignmentCompleted {
		return ErrNotCompleted
	}
	if err := card.Validate(); err != nil {
		return invalid("card", err.Error())
	}

	if err := e.processor.Charge(ctx, a.FinalAmount, card, a.ID); err != nil {
		return storeErr("charge", err)
	}

	status := models.PaymentCompleted
	if err := e.store.UpdateAssignment(ctx, a.ID, store.AssignmentPatch{PaymentStatus: &status}); err != nil {
		return storeErr("mark paid", err)
	}
	return nil
}

// RateAssignment records a post-completion rating and review from either
// party. Each party may rate once.
func (e *Engine) RateAssignment(ctx context.Context, actor auth.Context, assignmentID string, rating int, review string) error {
	a, err := e.getAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	if a.Status != models.AssignmentCompleted {
		return ErrNotCompleted
	}
	if rating < 1 || rating > 5 {
		return invalid("rating", "must be between 1 and 5")
	}

	patch := store.AssignmentPatch{}
	switch actor.UserID {
	case a.ClientID:
		if a.ClientRating != 0 {
			return ErrAlreadyRated
		}
		patch.ClientRating = &rating
		patch.ClientReview = &review
	case a.LaborerID:
		if a.LaborerRating != 0 {
			return ErrAlreadyRated
		}
		patch.LaborerRating = &rating
		patch.LaborerReview = &review
	default:
		return ErrUnauthorized
	}

	if err := e.store.UpdateAssignment(ctx, a.ID, patch); err != nil {
		return storeErr("rate assignment", err)
	}
	return nil
}

func (e *Engine) getAssignment(ctx context.Context, id string) (*models.JobAssignment, error) {
	a, err := e.store.GetAssignment(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storeErr("get assignment", err)
	}
	return a, nil
}
