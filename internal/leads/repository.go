package leads

import (
	"context"
	"time"

	"fluxior-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository interface {
	Create(ctx context.Context, lead models.Lead) error
	List(ctx context.Context, filter ListFilter) ([]models.Lead, error)
	GetByID(ctx context.Context, id string) (models.Lead, error)
	Update(ctx context.Context, id string, patch models.LeadPatch, now time.Time) (models.Lead, error)
	Delete(ctx context.Context, id string) error
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Create(ctx context.Context, lead models.Lead) error {
	_, err := r.col.InsertOne(ctx, lead)
	return err
}

func (r *MongoRepository) List(ctx context.Context, filter ListFilter) ([]models.Lead, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	if filter.Offset > 0 {
		opts.SetSkip(filter.Offset)
	}

	cursor, err := r.col.Find(ctx, filterToBSON(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := make([]models.Lead, 0)
	for cursor.Next(ctx) {
		var lead models.Lead
		if err := cursor.Decode(&lead); err != nil {
			return nil, err
		}
		items = append(items, lead)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (models.Lead, error) {
	var lead models.Lead
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&lead); err != nil {
		return models.Lead{}, err
	}
	return lead, nil
}

func (r *MongoRepository) Update(ctx context.Context, id string, patch models.LeadPatch, now time.Time) (models.Lead, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": patchToBSON(patch, now)}

	var updated models.Lead
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&updated); err != nil {
		return models.Lead{}, err
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

func filterToBSON(filter ListFilter) bson.M {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.PartnerID != "" {
		query["partner_id"] = filter.PartnerID
	}
	return query
}

// patchToBSON expects a normalized patch: cleared optionals arrive as "" and are stored as null.
func patchToBSON(patch models.LeadPatch, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	setOptional(set, "phone", patch.Phone)
	setOptional(set, "company", patch.Company)
	setOptional(set, "project_type", patch.ProjectType)
	setOptional(set, "budget", patch.Budget)
	setOptional(set, "message", patch.Message)
	setOptional(set, "partner_id", patch.PartnerID)
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.DealAmount != nil {
		set["deal_amount"] = *patch.DealAmount
	}
	if patch.Details != nil {
		set["details"] = *patch.Details
	}
	return set
}

func setOptional(set bson.M, key string, value *string) {
	if value == nil {
		return
	}
	if *value == "" {
		set[key] = nil
		return
	}
	set[key] = *value
}
