package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"laborease/auth"
	"laborease/models"
	"laborease/pay"
	"laborease/store"
)

var testCard = pay.Card{
	Name:   "Pat Client",
	Number: "4242 4242 4242 4242",
	Expiry: "12/30",
	CVC:    "123",
}

// stubProcessor charges instantly and can be told to decline.
type stubProcessor struct {
	declined bool
	charges  int
}

func (p *stubProcessor) Charge(ctx context.Context, amount float64, card pay.Card, ref string) error {
	if p.declined {
		return fmt.Errorf("card declined")
	}
	p.charges++
	return nil
}

func newTestEngine() (*Engine, *store.Memory, *stubProcessor) {
	mem := store.NewMemory()
	proc := &stubProcessor{}
	e := New(mem, proc)

	// deterministic clock, race-safe ids
	var seq atomic.Int64
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return base }
	e.newID = func() string {
		return fmt.Sprintf("id-%03d", seq.Add(1))
	}
	return e, mem, proc
}

var (
	client  = auth.Context{UserID: "client-1", Role: auth.RoleClient}
	laborer = auth.Context{UserID: "laborer-1", Role: auth.RoleLaborer}
)

func postJob(t *testing.T, e *Engine, budget float64) *models.Job {
	t.Helper()
	job, err := e.PostJob(context.Background(), client, PostJobInput{
		Title:       "Kitchen Plumbing",
		Description: "Fix the sink and replace two pipes",
		Budget:      budget,
		Location:    "Springfield",
	})
	if err != nil {
		t.Fatalf("post job: %v", err)
	}
	return job
}

func TestFullLifecycleScenario(t *testing.T) {
	e, mem, proc := newTestEngine()
	ctx := context.Background()

	job := postJob(t, e, 120)
	if job.Status != models.JobOpen {
		t.Fatalf("new job status = %q", job.Status)
	}

	rate := 110.0
	app, err := e.SubmitApplication(ctx, laborer, ApplyInput{JobID: job.ID, ProposedRate: &rate})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if app.Status != models.ApplicationPending || app.ProposedRate != 110 {
		t.Fatalf("unexpected application %+v", app)
	}

	assignment, err := e.AcceptApplication(ctx, client, app.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if assignment.Status != models.AssignmentInProgress {
		t.Fatalf("assignment status = %q", assignment.Status)
	}
	if assignment.FinalAmount != 110 {
		t.Fatalf("final amount = %v, want 110", assignment.FinalAmount)
	}
	if assignment.StartDate == nil {
		t.Fatal("start date not set")
	}
	if got, _ := mem.GetJob(ctx, job.ID); got.Status != models.JobAssigned {
		t.Fatalf("job status after accept = %q, want assigned", got.Status)
	}
	if got, _ := mem.GetApplication(ctx, app.ID); got.Status != models.ApplicationAccepted {
		t.Fatalf("application status after accept = %q", got.Status)
	}

	if err := e.CompleteJob(ctx, laborer, assignment.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got, _ := mem.GetAssignment(ctx, assignment.ID); got.Status != models.AssignmentCompleted || got.EndDate == nil {
		t.Fatalf("assignment after complete = %+v", got)
	}
	// Job status follows assignment completion.
	if got, _ := mem.GetJob(ctx, job.ID); got.Status != models.JobCompleted {
		t.Fatalf("job status after complete = %q, want completed", got.Status)
	}

	if err := e.CapturePayment(ctx, client, assignment.ID, testCard); err != nil {
		t.Fatalf("capture payment: %v", err)
	}
	if got, _ := mem.GetAssignment(ctx, assignment.ID); got.PaymentStatus != models.PaymentCompleted {
		t.Fatalf("payment status = %q", got.PaymentStatus)
	}
	if proc.charges != 1 {
		t.Fatalf("processor charged %d times", proc.charges)
	}
}

func TestPostJobValidation(t *testing.T) {
	e, _, _ := newTestEngine()
	ctx := context.Background()

	if _, err := e.PostJob(ctx, laborer, PostJobInput{Title: "x", Description: "y"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("laborer posting a job: %v", err)
	}
	if _, err := e.PostJob(ctx, auth.Context{}, PostJobInput{Title: "x", Description: "y"}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("anonymous posting a job: %v", err)
	}

	var ve *ValidationError
	if _, err := e.PostJob(ctx, client, PostJobInput{Description: "y"}); !errors.As(err, &ve) {
		t.Fatalf("missing title: %v", err)
	}
	if _, err := e.PostJob(ctx, client, PostJobInput{Title: "x", Description: "y", Budget: -5}); !errors.As(err, &ve) {
		t.Fatalf("negative budget: %v", err)
	}
}

func TestProposedRateDefaultsToBudget(t *testing.T) {
	e, _, _ := newTestEngine()
	job := postJob(t, e, 120)

	app, err := e.SubmitApplication(context.Background(), laborer, ApplyInput{JobID: job.ID})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if app.ProposedRate != 120 {
		t.Fatalf("proposed rate = %v, want the job budget", app.ProposedRate)
	}
}

func TestApplyRequiresOpenJob(t *testing.T) {
	e, _, _ := newTestEngine()
	ctx := context.Background()
	job := postJob(t, e, 100)

	if err := e.CancelJob(ctx, client, job.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := e.SubmitApplication(ctx, laborer, ApplyInput{JobID: job.ID}); !errors.Is(err, ErrJobNotOpen) {
		t.Fatalf("apply to cancelled job: %v", err)
	}
	if _, err := e.SubmitApplication(ctx, laborer, ApplyInput{JobID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("apply to missing job: %v", err)
	}
}

func TestDuplicatePendingApplicationRejected(t *testing.T) {
	e, _, _ := newTestEngine()
	ctx := context.Background()
	job := postJob(t, e, 100)

	if _, err := e.SubmitApplication(ctx, laborer, ApplyInput{JobID: job.ID}); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if _, err := e.SubmitApplication(ctx, laborer, ApplyInput{JobID: job.ID}); !errors.Is(err, ErrDuplicateApplication) {
		t.Fatalf("second apply: %v", err)
	}
}

func TestConcurrentSubmitsYieldOnePendingApplication(t *testing.T) {
	e, mem, _ := newTestEngine()
	ctx := context.Background()
	job := postJob(t, e, 100)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.SubmitApplication(ctx, laborer, ApplyInput{JobID: job.ID})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDuplicateApplication):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || dup != attempts-1 {
		t.Fatalf("got %d successes and %d duplicates", ok, dup)
	}

	apps, _ := mem.ListApplicationsByLaborer(ctx, laborer.UserID, models.ApplicationPending)
	if len(apps) != 1 {
		t.Fatalf("%d pending applications survived", len(apps))
	}
}

func TestAcceptDeclinesOtherPendingApplications(t *testing.T) {
	e, mem, _ := newTestEngine()
	ctx := context.Background()
	job := postJob(t, e, 100)

	other := auth.Context{UserID: "laborer-2", Role: auth.RoleLaborer}
	app1, err := e.SubmitApplication(ctx, laborer, ApplyInput{JobID: job.ID})
	if err != nil {
		t.Fatalf("apply 1: %v", err)
	}
	app2, err := e.SubmitApplication(ctx, other, ApplyInput{JobID: job.ID})
	if err != nil {
		t.Fatalf("apply 2: %v", err)
	}

	if _, err := e.AcceptApplication(ctx, client, app1.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if got, _ := mem.GetApplication(ctx, app2.ID); got.Status != models.ApplicationDeclined {
		t.Fatalf("other application not declined: %q", got.Status)
	}
	// The auto-declined application can no longer be accepted.
	if _, err := e.AcceptApplication(ctx, client, app2.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("accepting declined application: %v", err)
	}
}

func TestAcceptRejectsSecondAssignment(t *testing.T) {
	e, mem, _ := newTestEngine()
	ctx := context.Background()
	job := postJob(t, e, 100)

	app, err := e.SubmitApplication(ctx, laborer, ApplyInput{JobID: job.ID})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := e.AcceptApplication(ctx, client, app.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// A pending application racing past the auto-decline must still hit the
	// assignment conflict, never create a second assignment.
	raced := &models.JobApplication{
		ID:        "raced",
		JobID:     job.ID,
		LaborerID: "laborer-2",
		Status:    models.ApplicationPending,
		CreatedAt: time.Now(),
	}
	if err := mem.InsertApplication(ctx, raced); err != nil {
		t.Fatalf("seed raced application: %v", err)
	}
	if _, err := e.AcceptApplication(ctx, client, raced.ID); !errors.Is(err, ErrJobAlreadyAssigned) {
		t.Fatalf("accept onto assigned job: %v", err)
	}
	if _, err := mem.GetActiveAssignmentByJob(ctx, job.ID); err != nil {
		t.Fatalf("assignment lookup: %v", err)
	}
}

func TestAcceptAuthorization(t *testing.T) {
	e, _, _ := newTestEngine()
	ctx := context.Background()
	job := postJob(t, e, 100)

	app, _ := e.SubmitApplication(ctx, laborer, ApplyInput{JobID: job.ID})

	stranger := auth.Context{UserID: "someone-else", Role: auth.RoleClient}
	if _, err := e.AcceptApplication(ctx, stranger, app.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("stranger accepting: %v", err)
	}

	// The applying laborer may accept their own request.
	if _, err := e.AcceptApplication(ctx, laborer, app.ID); err != nil {
		t.Fatalf("laborer accepting own application: %v", err)
	}
}

func TestCompleteJobAuthorization(t *testing.T) {
	e, _, _ := newTestEngine()
	ctx := context.Background()
	job := postJob(t, e, 100)
	app, _ := e.SubmitApplication(ctx, laborer, ApplyInput{JobID: job.ID})
	assignment, _ := e.AcceptApplication(ctx, client, app.ID)

	if err := e.CompleteJob(ctx, client, assignment.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("client completing the work: %v", err)
	}
	other := auth.Context{UserID: "laborer-2", Role: auth.RoleLaborer}
	if err := e.CompleteJob(ctx, other, assignment.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("other laborer completing: %v", err)
	}

	if err := e.CompleteJob(ctx, laborer, assignment.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	// Completing twice is a conflict, not a second transition.
	if err := e.CompleteJob(ctx, laborer, assignment.ID); !errors.Is(err, ErrNotInProgress) {
		t.Fatalf("double complete: %v", err)
	}
}

func TestCapturePaymentGuards(t *testing.T) {
	e, _, proc := newTestEngine()
	ctx := context.Background()
	job := postJob(t, e, 100)
	app, _ := e.SubmitApplication(ctx, laborer, ApplyInput{JobID: job.ID})
	assignment, _ := e.AcceptApplication(ctx, client, app.ID)

	// Premature capture: work not finished yet.
	if err := e.CapturePayment(ctx, client, assignment.ID, testCard); !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("premature capture: %v", err)
	}

	if err := e.CompleteJob(ctx, laborer, assignment.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// Only the assignment's client can pay.
	if err := e.CapturePayment(ctx, laborer, assignment.ID, testCard); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("laborer paying: %v", err)
	}

	// Empty card fields are invalid input.
	var ve *ValidationError
	if err := e.CapturePayment(ctx, client, assignment.ID, pay.Card{}); !errors.As(err, &ve) {
		t.Fatalf("empty card: %v", err)
	}

	// A declined charge leaves payment pending.
	proc.declined = true
	if err := e.CapturePayment(ctx, client, assignment.ID, testCard); err == nil {
		t.Fatal("declined charge reported success")
	}
	proc.declined = false

	if err := e.CapturePayment(ctx, client, assignment.ID, testCard); err != nil {
		t.Fatalf("capture: %v", err)
	}
	// Idempotent: a second capture is rejected and not re-charged.
	if err := e.CapturePayment(ctx, client, assignment.ID, testCard); !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("double capture: %v", err)
	}
	if proc.charges != 1 {
		t.Fatalf("processor charged %d times", proc.charges)
	}
}

func TestJobStatusEdges(t *testing.T) {
	e, mem, _ := newTestEngine()
	ctx := context.Background()

	// open → cancelled
	job := postJob(t, e, 50)
	if err := e.CancelJob(ctx, client, job.ID); err != nil {
		t.Fatalf("cancel open job: %v", err)
	}
	if got, _ := mem.GetJob(ctx, job.ID); got.Status != models.JobCancelled {
		t.Fatalf("status = %q", got.Status)
	}
	// cancelled is terminal
	if err := e.CancelJob(ctx, client, job.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("cancel cancelled job: %v", err)
	}

	// assigned → cancelled cancels the assignment and pending applications
	job2 := postJob(t, e, 50)
	app, _ := e.SubmitApplication(ctx, laborer, ApplyInput{JobID: job2.ID})
	assignment, _ := e.AcceptApplication(ctx, client, app.ID)
	if err := e.CancelJob(ctx, client, job2.ID); err != nil {
		t.Fatalf("cancel assigned job: %v", err)
	}
	if got, _ := mem.GetAssignment(ctx, assignment.ID); got.Status != models.AssignmentCancelled {
		t.Fatalf("assignment not cancelled: %q", got.Status)
	}

	// completed jobs cannot be cancelled
	job3 := postJob(t, e, 50)
	app3, _ := e.SubmitApplication(ctx, laborer, ApplyInput{JobID: job3.ID})
	asg3, _ := e.AcceptApplication(ctx, client, app3.ID)
	if err := e.CompleteJob(ctx, laborer, asg3.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := e.CancelJob(ctx, client, job3.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("cancel completed job: %v", err)
	}

	// only the owner cancels
	job4 := postJob(t, e, 50)
	stranger := auth.Context{UserID: "someone-else", Role: auth.RoleClient}
	if err := e.CancelJob(ctx, stranger, job4.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("stranger cancelling: %v", err)
	}
}

func TestRateAssignment(t *testing.T) {
	e, mem, _ := newTestEngine()
	ctx := context.Background()
	job := postJob(t, e, 100)
	app, _ := e.SubmitApplication(ctx, laborer, ApplyInput{JobID: job.ID})
	assignment, _ := e.AcceptApplication(ctx, client, app.ID)

	// Ratings wait for completion.
	if err := e.RateAssignment(ctx, client, assignment.ID, 5, "great"); !errors.Is(err, ErrNotCompleted) {
		t.Fatalf("rating in-progress work: %v", err)
	}
	if err := e.CompleteJob(ctx, laborer, assignment.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	var ve *ValidationError
	if err := e.RateAssignment(ctx, client, assignment.ID, 6, ""); !errors.As(err, &ve) {
		t.Fatalf("out-of-range rating: %v", err)
	}

	if err := e.RateAssignment(ctx, client, assignment.ID, 5, "great work"); err != nil {
		t.Fatalf("client rating: %v", err)
	}
	if err := e.RateAssignment(ctx, client, assignment.ID, 4, "again"); !errors.Is(err, ErrAlreadyRated) {
		t.Fatalf("second client rating: %v", err)
	}
	if err := e.RateAssignment(ctx, laborer, assignment.ID, 4, "fair client"); err != nil {
		t.Fatalf("laborer rating: %v", err)
	}

	got, _ := mem.GetAssignment(ctx, assignment.ID)
	if got.ClientRating != 5 || got.LaborerRating != 4 {
		t.Fatalf("ratings not recorded: %+v", got)
	}

	stranger := auth.Context{UserID: "someone-else", Role: auth.RoleClient}
	if err := e.RateAssignment(ctx, stranger, assignment.ID, 3, ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("stranger rating: %v", err)
	}
}
