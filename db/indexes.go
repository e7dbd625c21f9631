package db

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"laborease/models"
)

// EnsureIndexes creates the indexes the lifecycle invariants rely on. The
// partial unique index on job_applications makes "one pending application per
// (job, laborer)" hold under concurrent submits: the losing insert comes back
// as a duplicate-key error instead of a second pending row.
func EnsureIndexes(ctx context.Context) error {
	appIdx := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "jobid", Value: 1}, {Key: "laborerId", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("unique_pending_application").
				SetPartialFilterExpression(bson.M{"status": models.ApplicationPending}),
		},
		{
			Keys:    bson.D{{Key: "laborerId", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("applications_by_laborer"),
		},
	}
	if _, err := JobApplicationsCollection.Indexes().CreateMany(ctx, appIdx); err != nil {
		return err
	}

	asgIdx := []mongo.IndexModel{
		{
			// One live (in-progress or completed) assignment per job.
			Keys: bson.D{{Key: "jobid", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName("unique_active_assignment").
				SetPartialFilterExpression(bson.M{
					"status": bson.M{"$in": bson.A{models.AssignmentInProgress, models.AssignmentCompleted}},
				}),
		},
		{
			Keys:    bson.D{{Key: "laborerId", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("assignments_by_laborer"),
		},
	}
	if _, err := JobAssignmentsCollection.Indexes().CreateMany(ctx, asgIdx); err != nil {
		return err
	}

	jobIdx := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("jobs_by_client"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("jobs_by_created"),
		},
	}
	_, err := JobsCollection.Indexes().CreateMany(ctx, jobIdx)
	return err
}
