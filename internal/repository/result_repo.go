package repository

import (
	"context"
	"errors"

	"agentsurvey/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned by updates that match no document
var ErrNotFound = errors.New("document not found")

// ResultRepo handles MongoDB operations for administration results
type ResultRepo interface {
	Insert(ctx context.Context, result *model.AdministrationResult) error
	GetByID(ctx context.Context, id string) (*model.AdministrationResult, error)
	GetByRunID(ctx context.Context, runID string) ([]*model.AdministrationResult, error)
}

type resultRepo struct {
	collection *mongo.Collection
}

// NewResultRepo creates a new result repository
func NewResultRepo(db *mongo.Database) ResultRepo {
	return &resultRepo{
		collection: db.Collection("administration_results"),
	}
}

func (r *resultRepo) Insert(ctx context.Context, result *model.AdministrationResult) error {
	_, err := r.collection.InsertOne(ctx, result)
	return err
}

func (r *resultRepo) GetByID(ctx context.Context, id string) (*model.AdministrationResult, error) {
	var result model.AdministrationResult
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *resultRepo) GetByRunID(ctx context.Context, runID string) ([]*model.AdministrationResult, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "agentName", Value: 1},
		{Key: "scenarioIndex", Value: 1},
		{Key: "iteration", Value: 1},
		{Key: "createdAt", Value: 1},
	})
	cursor, err := r.collection.Find(ctx, bson.M{"runId": runID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	results := []*model.AdministrationResult{}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}
