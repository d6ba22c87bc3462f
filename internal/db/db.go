package db

import (
	"context"
	"fmt"
	"time"

	"github.com/gmkornilov/chess-trainer/internal/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PositionDbClient struct {
	client             *mongo.Client
	PositionCollection *mongo.Collection
}

func (r *PositionDbClient) Close() error {
	return r.client.Disconnect(context.TODO())
}

func NewDbClient(cfg *config.Configuration) (*PositionDbClient, error) {
	return connect(cfg.Database.Address, cfg.Database.DatabaseName, cfg.Database.Collection)
}

func NewDbClientScraper(cfg *config.ScraperConfiguration) (*PositionDbClient, error) {
	return connect(cfg.Database.Address, cfg.Database.DatabaseName, cfg.Database.Collection)
}

func connect(address, database, collection string) (*PositionDbClient, error) {
	ctx, cancel := context.WithTimeout(context.TODO(), 10*time.Second)
	defer cancel()

	clientOpts := options.Client().ApplyURI(address)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}

	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.TODO())
		return nil, err
	}

	dbClient := &PositionDbClient{client: client}
	dbClient.PositionCollection = client.Database(database).Collection(collection)
	if dbClient.PositionCollection == nil {
		return nil, fmt.Errorf("can't resolve collection %s", database+"."+collection)
	}
	if err := ensureIndexes(ctx, dbClient.PositionCollection); err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}
	return dbClient, nil
}

func ensureIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "target_elo", Value: 1}}},
		{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "user", Value: 1}, {Key: "game_data.date", Value: -1}}},
		{Keys: bson.D{{Key: "study_id", Value: 1}, {Key: "chapter", Value: 1}}},
	})
	return err
}
