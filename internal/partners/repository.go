package partners

import (
	"context"

	"fluxior-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, partner models.Partner) error
	List(ctx context.Context) ([]models.Partner, error)
	UpdateRate(ctx context.Context, id string, rate float64) (models.Partner, error)
	Delete(ctx context.Context, id string) error
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, partner models.Partner) error {
	_, err := r.col.InsertOne(ctx, partner)
	return err
}

func (r *MongoRepository) List(ctx context.Context) ([]models.Partner, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := r.col.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]models.Partner, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *MongoRepository) UpdateRate(ctx context.Context, id string, rate float64) (models.Partner, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{"commission_rate": rate}}

	var updated models.Partner
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&updated); err != nil {
		return models.Partner{}, err
	}
	return updated, nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
