package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/klass-lk/postboard/internal/model"
)

const countersCollection = "counters"

type MongoPostRepository struct {
	collection *mongo.Collection
	counters   *mongo.Collection
}

func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	var doc model.Post
	return &MongoPostRepository{
		collection: db.Collection(doc.GetTableName()),
		counters:   db.Collection(countersCollection),
	}
}

// EnsureIndexes creates the unique title index that backs the uniqueness guarantee.
func (r *MongoPostRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "title", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_title"),
	})
	return err
}

func (r *MongoPostRepository) ListAll(ctx context.Context) ([]model.Post, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []model.Post{}
	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *MongoPostRepository) FindByID(ctx context.Context, id int64) (model.Post, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result model.Post
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Post{}, ErrNotFound
	}
	return result, err
}

func (r *MongoPostRepository) Create(ctx context.Context, post *model.Post) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	id, err := r.nextID(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	post.ID = id
	post.CreatedAt = now
	post.UpdatedAt = now

	if _, err = r.collection.InsertOne(ctx, post); err != nil {
		post.ID = 0
		return translateMongoError(err)
	}
	return nil
}

func (r *MongoPostRepository) Update(ctx context.Context, post *model.Post) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	post.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	update := bson.M{"$set": bson.M{
		"title":        post.Title,
		"content":      post.Content,
		"author_id":    post.AuthorID,
		"is_published": post.IsPublished,
		"published_on": post.PublishedOn,
		"updated_at":   post.UpdatedAt,
	}}
	res, err := r.collection.UpdateByID(ctx, post.ID, update)
	if err != nil {
		return translateMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoPostRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoPostRepository) ExistsByTitle(ctx context.Context, title string, excludeID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"title": title, "_id": bson.M{"$ne": excludeID}})
	return count > 0, err
}

// nextID atomically increments the posts sequence in the counters collection.
func (r *MongoPostRepository) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": r.collection.Name()},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	return counter.Seq, err
}

func translateMongoError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateTitle
	}
	return err
}
