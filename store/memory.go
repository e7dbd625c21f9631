package store

import (
	"context"
	"sync"

	"laborease/changefeed"
	"laborease/globals"
	"laborease/models"
)

// Memory is a mutex-guarded in-memory Store. It enforces the same pending-
// application uniqueness as the Mongo index and optionally mirrors every
// mutation onto a change feed, which makes full lifecycle-plus-realtime
// flows runnable in one process.
type Memory struct {
	Feed *changefeed.Feed // optional

	mu           sync.Mutex
	txMu         sync.Mutex
	jobs         map[string]models.Job
	jobOrder     []string
	applications map[string]models.JobApplication
	appOrder     []string
	assignments  map[string]models.JobAssignment
	asgOrder     []string
	profiles     map[string]models.Profile
	details      map[string]models.LaborerDetails
}

func NewMemory() *Memory {
	return &Memory{
		jobs:         make(map[string]models.Job),
		applications: make(map[string]models.JobApplication),
		assignments:  make(map[string]models.JobAssignment),
		profiles:     make(map[string]models.Profile),
		details:      make(map[string]models.LaborerDetails),
	}
}

func (m *Memory) publish(table string, typ changefeed.EventType, newRow, oldRow any) {
	if m.Feed == nil {
		return
	}
	// Feed errors are delivery-layer concerns; the write already succeeded.
	_ = m.Feed.Publish(globals.Ctx, table, typ, newRow, oldRow)
}

// Tx serializes multi-step sequences. Individual operations take the data
// mutex themselves, so fn must only issue store calls, not hold results open.
func (m *Memory) Tx(_ context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(context.Background())
}

func (m *Memory) InsertJob(_ context.Context, job *models.Job) error {
	m.mu.Lock()
	m.jobs[job.ID] = *job
	m.jobOrder = append(m.jobOrder, job.ID)
	m.mu.Unlock()
	m.publish(models.TableJobs, changefeed.EventInsert, job, nil)
	return nil
}

func (m *Memory) GetJob(_ context.Context, id string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &job, nil
}

func (m *Memory) ListJobsByClient(_ context.Context, clientID string, statuses ...string) ([]models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Job
	for _, id := range m.jobOrder {
		job := m.jobs[id]
		if job.ClientID != clientID {
			continue
		}
		if len(statuses) > 0 && !containsStr(statuses, job.Status) {
			continue
		}
		out = append(out, job)
	}
	return out, nil
}

func (m *Memory) ListOpenJobs(_ context.Context, limit int) ([]models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Job
	for i := len(m.jobOrder) - 1; i >= 0; i-- {
		job := m.jobs[m.jobOrder[i]]
		if job.Status != models.JobOpen {
			continue
		}
		out = append(out, job)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) SetJobStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	old := job
	job.Status = status
	m.jobs[id] = job
	m.mu.Unlock()
	m.publish(models.TableJobs, changefeed.EventUpdate, &job, &old)
	return nil
}

func (m *Memory) InsertApplication(_ context.Context, app *models.JobApplication) error {
	m.mu.Lock()
	for _, existing := range m.applications {
		if existing.JobID == app.JobID && existing.LaborerID == app.LaborerID &&
			existing.Status == models.ApplicationPending {
			m.mu.Unlock()
			return ErrDuplicate
		}
	}
	m.applications[app.ID] = *app
	m.appOrder = append(m.appOrder, app.ID)
	m.mu.Unlock()
	m.publish(models.TableApplications, changefeed.EventInsert, app, nil)
	return nil
}

func (m *Memory) GetApplication(_ context.Context, id string) (*models.JobApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.applications[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &app, nil
}

func (m *Memory) ListApplicationsByJobAndLaborer(_ context.Context, jobID, laborerID string) ([]models.JobApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.JobApplication
	for _, id := range m.appOrder {
		app := m.applications[id]
		if app.JobID == jobID && app.LaborerID == laborerID {
			out = append(out, app)
		}
	}
	return out, nil
}

func (m *Memory) ListApplicationsByLaborer(_ context.Context, laborerID, status string) ([]models.JobApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.JobApplication
	for _, id := range m.appOrder {
		app := m.applications[id]
		if app.LaborerID == laborerID && (status == "" || app.Status == status) {
			out = append(out, app)
		}
	}
	return out, nil
}

func (m *Memory) SetApplicationStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	app, ok := m.applications[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	old := app
	app.Status = status
	m.applications[id] = app
	m.mu.Unlock()
	m.publish(models.TableApplications, changefeed.EventUpdate, &app, &old)
	return nil
}

func (m *Memory) DeclinePendingApplications(_ context.Context, jobID, exceptID string) error {
	m.mu.Lock()
	var changed []models.JobApplication
	for _, id := range m.appOrder {
		app := m.applications[id]
		if app.JobID == jobID && app.ID != exceptID && app.Status == models.ApplicationPending {
			app.Status = models.ApplicationDeclined
			m.applications[id] = app
			changed = append(changed, app)
		}
	}
	m.mu.Unlock()
	for i := range changed {
		m.publish(models.TableApplications, changefeed.EventUpdate, &changed[i], nil)
	}
	return nil
}

func (m *Memory) InsertAssignment(_ context.Context, a *models.JobAssignment) error {
	m.mu.Lock()
	m.assignments[a.ID] = *a
	m.asgOrder = append(m.asgOrder, a.ID)
	m.mu.Unlock()
	m.publish(models.TableAssignments, changefeed.EventInsert, a, nil)
	return nil
}

func (m *Memory) GetAssignment(_ context.Context, id string) (*models.JobAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *Memory) GetActiveAssignmentByJob(_ context.Context, jobID string) (*models.JobAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.asgOrder {
		a := m.assignments[id]
		if a.JobID == jobID && a.Status != models.AssignmentCancelled {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListAssignmentsByLaborer(_ context.Context, laborerID, status string) ([]models.JobAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.JobAssignment
	for _, id := range m.asgOrder {
		a := m.assignments[id]
		if a.LaborerID == laborerID && (status == "" || a.Status == status) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Memory) UpdateAssignment(_ context.Context, id string, patch AssignmentPatch) error {
	m.mu.Lock()
	a, ok := m.assignments[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	old := a
	applyPatch(&a, patch)
	m.assignments[id] = a
	m.mu.Unlock()
	m.publish(models.TableAssignments, changefeed.EventUpdate, &a, &old)
	return nil
}

func applyPatch(a *models.JobAssignment, p AssignmentPatch) {
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.EndDate != nil {
		a.EndDate = p.EndDate
	}
	if p.PaymentStatus != nil {
		a.PaymentStatus = *p.PaymentStatus
	}
	if p.ClientRating != nil {
		a.ClientRating = *p.ClientRating
	}
	if p.ClientReview != nil {
		a.ClientReview = *p.ClientReview
	}
	if p.LaborerRating != nil {
		a.LaborerRating = *p.LaborerRating
	}
	if p.LaborerReview != nil {
		a.LaborerReview = *p.LaborerReview
	}
}

func (m *Memory) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *Memory) GetLaborerDetails(_ context.Context, id string) (*models.LaborerDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.details[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

// PutProfile and PutLaborerDetails seed reference data.
func (m *Memory) PutProfile(p models.Profile) {
	m.mu.Lock()
	m.profiles[p.ID] = p
	m.mu.Unlock()
}

func (m *Memory) PutLaborerDetails(d models.LaborerDetails) {
	m.mu.Lock()
	m.details[d.ID] = d
	m.mu.Unlock()
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
