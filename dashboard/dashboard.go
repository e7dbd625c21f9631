// Package dashboard builds the per-role read models. Aggregators never
// mutate; secondary lookups degrade to placeholder labels while primary
// fetch failures surface to the caller with an empty view.
package dashboard

import (
	"context"
	"log"

	"laborease/models"
	"laborease/store"
	"laborease/utils"
)

const (
	unknownClient  = "Unknown Client"
	unknownLaborer = "Unknown Laborer"
)

// ClientJob is a job row on the client dashboard, with the assigned
// laborer's name resolved when there is one.
type ClientJob struct {
	models.Job
	LaborerName string `json:"laborer_name,omitempty"`
}

type ClientView struct {
	Ongoing    []ClientJob `json:"ongoing"`
	Completed  []ClientJob `json:"completed"`
	TotalSpent float64     `json:"total_spent"`
}

// ClientOverview partitions the client's jobs into ongoing (open or
// assigned) and completed, summing completed budgets as total spent.
func ClientOverview(ctx context.Context, st store.Store, clientID string) (*ClientView, error) {
	view := &ClientView{Ongoing: []ClientJob{}, Completed: []ClientJob{}}

	ongoing, err := st.ListJobsByClient(ctx, clientID, models.JobOpen, models.JobAssigned)
	if err != nil {
		return view, err
	}
	for _, job := range ongoing {
		view.Ongoing = append(view.Ongoing, ClientJob{Job: job, LaborerName: laborerNameFor(ctx, st, job)})
	}

	completed, err := st.ListJobsByClient(ctx, clientID, models.JobCompleted)
	if err != nil {
		return view, err
	}
	for _, job := range completed {
		view.Completed = append(view.Completed, ClientJob{Job: job, LaborerName: laborerNameFor(ctx, st, job)})
		view.TotalSpent += job.Budget
	}
	view.TotalSpent = utils.RoundAmount(view.TotalSpent)

	return view, nil
}

// laborerNameFor resolves the assigned laborer's display name for a job.
// Jobs without an assignment get no name.
func laborerNameFor(ctx context.Context, st store.Store, job models.Job) string {
	if job.Status == models.JobOpen {
		return ""
	}
	a, err := st.GetActiveAssignmentByJob(ctx, job.ID)
	if err != nil {
		return ""
	}
	l := lookupProfile(ctx, st, a.LaborerID)
	if l.State == LookupFailed {
		log.Printf("dashboard: laborer lookup for job %s failed: %v", job.ID, l.Err)
	}
	return l.DisplayName(unknownLaborer)
}

// LaborerAssignment is an assignment row on the laborer dashboard with the
// job title and client name resolved.
type LaborerAssignment struct {
	models.JobAssignment
	JobTitle   string `json:"job_title"`
	ClientName string `json:"client_name"`
}

// JobRequest is a pending application surfaced as an actionable request.
type JobRequest struct {
	models.JobApplication
	JobTitle   string `json:"job_title"`
	ClientName string `json:"client_name"`
}

type LaborerView struct {
	InProgress    []LaborerAssignment    `json:"in_progress"`
	Completed     []LaborerAssignment    `json:"completed"`
	Requests      []JobRequest           `json:"requests"`
	TotalEarnings float64                `json:"total_earnings"`
	Details       *models.LaborerDetails `json:"details,omitempty"`
}

// LaborerOverview partitions the laborer's assignments by status, surfaces
// pending applications as requests, and sums completed final amounts as
// total earnings.
func LaborerOverview(ctx context.Context, st store.Store, laborerID string) (*LaborerView, error) {
	view := &LaborerView{
		InProgress: []LaborerAssignment{},
		Completed:  []LaborerAssignment{},
		Requests:   []JobRequest{},
	}

	inProgress, err := st.ListAssignmentsByLaborer(ctx, laborerID, models.AssignmentInProgress)
	if err != nil {
		return view, err
	}
	for _, a := range inProgress {
		view.InProgress = append(view.InProgress, resolveAssignment(ctx, st, a))
	}

	completed, err := st.ListAssignmentsByLaborer(ctx, laborerID, models.AssignmentCompleted)
	if err != nil {
		return view, err
	}
	for _, a := range completed {
		view.Completed = append(view.Completed, resolveAssignment(ctx, st, a))
		view.TotalEarnings += a.FinalAmount
	}
	view.TotalEarnings = utils.RoundAmount(view.TotalEarnings)

	pending, err := st.ListApplicationsByLaborer(ctx, laborerID, models.ApplicationPending)
	if err != nil {
		return view, err
	}
	for _, app := range pending {
		view.Requests = append(view.Requests, resolveRequest(ctx, st, app))
	}

	// Optional detail block; a laborer without one still gets a dashboard.
	if d, err := st.GetLaborerDetails(ctx, laborerID); err == nil {
		view.Details = d
	}

	return view, nil
}

func resolveAssignment(ctx context.Context, st store.Store, a models.JobAssignment) LaborerAssignment {
	out := LaborerAssignment{JobAssignment: a}

	if job, err := st.GetJob(ctx, a.JobID); err == nil {
		out.JobTitle = job.Title
	}
	l := lookupProfile(ctx, st, a.ClientID)
	if l.State == LookupFailed {
		log.Printf("dashboard: client lookup for assignment %s failed: %v", a.ID, l.Err)
	}
	out.ClientName = l.DisplayName(unknownClient)
	return out
}

func resolveRequest(ctx context.Context, st store.Store, app models.JobApplication) JobRequest {
	out := JobRequest{JobApplication: app}

	clientID := ""
	if job, err := st.GetJob(ctx, app.JobID); err == nil {
		out.JobTitle = job.Title
		clientID = job.ClientID
	}
	l := lookupProfile(ctx, st, clientID)
	out.ClientName = l.DisplayName(unknownClient)
	return out
}
