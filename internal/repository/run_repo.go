package repository

import (
	"context"
	"errors"

	"agentsurvey/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// RunRepo handles MongoDB operations for survey runs
type RunRepo interface {
	Create(ctx context.Context, run *model.Run) error
	GetByID(ctx context.Context, id string) (*model.Run, error)
	Update(ctx context.Context, run *model.Run) error
}

type runRepo struct {
	collection *mongo.Collection
}

// NewRunRepo creates a new run repository
func NewRunRepo(db *mongo.Database) RunRepo {
	return &runRepo{
		collection: db.Collection("runs"),
	}
}

func (r *runRepo) Create(ctx context.Context, run *model.Run) error {
	_, err := r.collection.InsertOne(ctx, run)
	return err
}

func (r *runRepo) GetByID(ctx context.Context, id string) (*model.Run, error) {
	var run model.Run
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&run)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *runRepo) Update(ctx context.Context, run *model.Run) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": run.ID}, run)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
