package db

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"laborease/models"
)

var (
	JobsCollection            *mongo.Collection
	JobApplicationsCollection *mongo.Collection
	JobAssignmentsCollection  *mongo.Collection
	ProfilesCollection        *mongo.Collection
	LaborerDetailsCollection  *mongo.Collection
	Client                    *mongo.Client
)

// Initialize MongoDB connection
func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}

	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	var err error
	Client, err = mongo.Connect(context.TODO(), options.Client().ApplyURI(uri))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}

	database := Client.Database("laborease")
	JobsCollection = database.Collection(models.TableJobs)
	JobApplicationsCollection = database.Collection(models.TableApplications)
	JobAssignmentsCollection = database.Collection(models.TableAssignments)
	ProfilesCollection = database.Collection(models.TableProfiles)
	LaborerDetailsCollection = database.Collection(models.TableLaborerDetails)
}
