package db

import (
	"context"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"laborease/changefeed"
	"laborease/models"
	"laborease/store"
)

// Store is the Mongo-backed store.Store. Every successful mutation is
// mirrored onto the change feed so realtime subscribers see it in commit
// order.
type Store struct {
	feed *changefeed.Feed // optional
}

func NewStore(feed *changefeed.Feed) *Store {
	return &Store{feed: feed}
}

func (s *Store) publish(ctx context.Context, table string, typ changefeed.EventType, newRow, oldRow any) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, table, typ, newRow, oldRow); err != nil {
		// The write already committed; a lost notification is the feed's
		// documented failure mode, subscribers reconcile on re-fetch.
		log.Printf("db: change feed publish for %s failed: %v", table, err)
	}
}

// Tx runs fn inside a Mongo session transaction.
func (s *Store) Tx(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := Client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *Store) InsertJob(ctx context.Context, job *models.Job) error {
	if _, err := JobsCollection.InsertOne(ctx, job); err != nil {
		return err
	}
	s.publish(ctx, models.TableJobs, changefeed.EventInsert, job, nil)
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := JobsCollection.FindOne(ctx, bson.M{"jobid": id}).Decode(&job); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (s *Store) ListJobsByClient(ctx context.Context, clientID string, statuses ...string) ([]models.Job, error) {
	filter := bson.M{"clientId": clientID}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}
	cursor, err := JobsCollection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var jobs []models.Job
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *Store) ListOpenJobs(ctx context.Context, limit int) ([]models.Job, error) {
	opts := options.Find().SetSort(bson.M{"createdAt": -1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := JobsCollection.Find(ctx, bson.M{"status": models.JobOpen}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var jobs []models.Job
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *Store) SetJobStatus(ctx context.Context, id, status string) error {
	after := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var job models.Job
	err := JobsCollection.FindOneAndUpdate(ctx,
		bson.M{"jobid": id},
		bson.M{"$set": bson.M{"status": status}, "$currentDate": bson.M{"updatedAt": true}},
		after,
	).Decode(&job)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return store.ErrNotFound
		}
		return err
	}
	s.publish(ctx, models.TableJobs, changefeed.EventUpdate, &job, nil)
	return nil
}

func (s *Store) InsertApplication(ctx context.Context, app *models.JobApplication) error {
	if _, err := JobApplicationsCollection.InsertOne(ctx, app); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return err
	}
	s.publish(ctx, models.TableApplications, changefeed.EventInsert, app, nil)
	return nil
}

func (s *Store) GetApplication(ctx context.Context, id string) (*models.JobApplication, error) {
	var app models.JobApplication
	if err := JobApplicationsCollection.FindOne(ctx, bson.M{"applicationid": id}).Decode(&app); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &app, nil
}

func (s *Store) ListApplicationsByJobAndLaborer(ctx context.Context, jobID, laborerID string) ([]models.JobApplication, error) {
	return s.listApplications(ctx, bson.M{"jobid": jobID, "laborerId": laborerID})
}

func (s *Store) ListApplicationsByLaborer(ctx context.Context, laborerID, status string) ([]models.JobApplication, error) {
	filter := bson.M{"laborerId": laborerID}
	if status != "" {
		filter["status"] = status
	}
	return s.listApplications(ctx, filter)
}

func (s *Store) listApplications(ctx context.Context, filter bson.M) ([]models.JobApplication, error) {
	cursor, err := JobApplicationsCollection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var apps []models.JobApplication
	if err := cursor.All(ctx, &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

func (s *Store) SetApplicationStatus(ctx context.Context, id, status string) error {
	after := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var app models.JobApplication
	err := JobApplicationsCollection.FindOneAndUpdate(ctx,
		bson.M{"applicationid": id},
		bson.M{"$set": bson.M{"status": status}},
		after,
	).Decode(&app)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return store.ErrNotFound
		}
		return err
	}
	s.publish(ctx, models.TableApplications, changefeed.EventUpdate, &app, nil)
	return nil
}

func (s *Store) DeclinePendingApplications(ctx context.Context, jobID, exceptID string) error {
	apps, err := s.listApplications(ctx, bson.M{
		"jobid":  jobID,
		"status": models.ApplicationPending,
	})
	if err != nil {
		return err
	}
	for _, app := range apps {
		if app.ID == exceptID {
			continue
		}
		if err := s.SetApplicationStatus(ctx, app.ID, models.ApplicationDeclined); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) InsertAssignment(ctx context.Context, a *models.JobAssignment) error {
	if _, err := JobAssignmentsCollection.InsertOne(ctx, a); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicate
		}
		return err
	}
	s.publish(ctx, models.TableAssignments, changefeed.EventInsert, a, nil)
	return nil
}

func (s *Store) GetAssignment(ctx context.Context, id string) (*models.JobAssignment, error) {
	var a models.JobAssignment
	if err := JobAssignmentsCollection.FindOne(ctx, bson.M{"assignmentid": id}).Decode(&a); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *Store) GetActiveAssignmentByJob(ctx context.Context, jobID string) (*models.JobAssignment, error) {
	var a models.JobAssignment
	err := JobAssignmentsCollection.FindOne(ctx, bson.M{
		"jobid":  jobID,
		"status": bson.M{"$ne": models.AssignmentCancelled},
	}).Decode(&a)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *Store) ListAssignmentsByLaborer(ctx context.Context, laborerID, status string) ([]models.JobAssignment, error) {
	filter := bson.M{"laborerId": laborerID}
	if status != "" {
		filter["status"] = status
	}
	cursor, err := JobAssignmentsCollection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []models.JobAssignment
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateAssignment(ctx context.Context, id string, patch store.AssignmentPatch) error {
	set := bson.M{}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.EndDate != nil {
		set["endDate"] = *patch.EndDate
	}
	if patch.PaymentStatus != nil {
		set["paymentStatus"] = *patch.PaymentStatus
	}
	if patch.ClientRating != nil {
		set["clientRating"] = *patch.ClientRating
	}
	if patch.ClientReview != nil {
		set["clientReview"] = *patch.ClientReview
	}
	if patch.LaborerRating != nil {
		set["laborerRating"] = *patch.LaborerRating
	}
	if patch.LaborerReview != nil {
		set["laborerReview"] = *patch.LaborerReview
	}
	if len(set) == 0 {
		return nil
	}

	after := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var a models.JobAssignment
	err := JobAssignmentsCollection.FindOneAndUpdate(ctx,
		bson.M{"assignmentid": id}, bson.M{"$set": set}, after,
	).Decode(&a)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return store.ErrNotFound
		}
		return err
	}
	s.publish(ctx, models.TableAssignments, changefeed.EventUpdate, &a, nil)
	return nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	if err := ProfilesCollection.FindOne(ctx, bson.M{"userid": id}).Decode(&p); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetLaborerDetails(ctx context.Context, id string) (*models.LaborerDetails, error) {
	var d models.LaborerDetails
	if err := LaborerDetailsCollection.FindOne(ctx, bson.M{"userid": id}).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}
