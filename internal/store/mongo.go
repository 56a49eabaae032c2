package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bilgisen/newsroom/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore persists articles in a MongoDB collection
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	coll := client.Database(database).Collection(collection)

	_, err = coll.Indexes().CreateOne(connectCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "updateAt", Value: -1}, {Key: "_id", Value: -1}},
	})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create updateAt index: %w", err)
	}

	return &MongoStore{client: client, coll: coll}, nil
}

func (s *MongoStore) Insert(ctx context.Context, article *models.Article) error {
	_, err := s.coll.InsertOne(ctx, article)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("mongo insert error: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*models.Article, error) {
	var article models.Article
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&article)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo find error: %w", err)
	}
	return &article, nil
}

func (s *MongoStore) Update(ctx context.Context, article *models.Article, expectedVersion int64) error {
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": article.ID, "version": expectedVersion}, article)
	if err != nil {
		return fmt.Errorf("mongo replace error: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}

	// Nothing matched: either the document is gone or its version moved on
	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": article.ID})
	if err != nil {
		return fmt.Errorf("mongo count error: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrVersionConflict
}

func (s *MongoStore) Delete(ctx context.Context, id string) (models.DeleteAck, error) {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return models.DeleteAck{}, fmt.Errorf("mongo delete error: %w", err)
	}
	return models.DeleteAck{N: res.DeletedCount, OK: 1}, nil
}

func (s *MongoStore) Count(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("mongo count error: %w", err)
	}
	return n, nil
}

func (s *MongoStore) List(ctx context.Context, skip, limit int) ([]models.Article, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updateAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(skip))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find error: %w", err)
	}

	articles := []models.Article{}
	if err := cursor.All(ctx, &articles); err != nil {
		return nil, fmt.Errorf("mongo cursor error: %w", err)
	}
	return articles, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
