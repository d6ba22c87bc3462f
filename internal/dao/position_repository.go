package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gmkornilov/chess-trainer/internal/db"
	"github.com/gmkornilov/chess-trainer/pkg/puzgen"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("position not found")

const eloWindow = 100

type PositionRepository interface {
	// GetRandomPuzzleForElo samples a puzzle rated within eloWindow of elo;
	// elo <= 0 samples any puzzle.
	GetRandomPuzzleForElo(ctx context.Context, elo int) (puzgen.Position, error)

	GetPosition(ctx context.Context, id string) (puzgen.Position, error)

	InsertPosition(ctx context.Context, position puzgen.Position) error

	InsertAllPositions(ctx context.Context, positions []puzgen.Position) error

	GetLastUserPosition(ctx context.Context, username string) (puzgen.Position, error)

	GetLessons(ctx context.Context, studyID string) ([]puzgen.Position, error)

	ReplaceLessons(ctx context.Context, studyID string, lessons []puzgen.Position) error
}

type positionRepository struct {
	dbClient *db.PositionDbClient
}

func NewPositionRepository(dbClient *db.PositionDbClient) PositionRepository {
	return &positionRepository{dbClient}
}

func (t *positionRepository) GetRandomPuzzleForElo(ctx context.Context, elo int) (puzgen.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	match := bson.D{{Key: "kind", Value: puzgen.KindPuzzle}}
	if elo > 0 {
		match = append(match, bson.E{Key: "target_elo", Value: bson.D{
			{Key: "$gte", Value: elo - eloWindow},
			{Key: "$lte", Value: elo + eloWindow},
		}})
	}
	matchStage := bson.D{{Key: "$match", Value: match}}
	sampleStage := bson.D{{Key: "$sample", Value: bson.D{{Key: "size", Value: 1}}}}

	cursor, err := t.dbClient.PositionCollection.Aggregate(ctx, mongo.Pipeline{matchStage, sampleStage})
	if err != nil {
		return puzgen.Position{}, err
	}

	var loaded []puzgen.Position
	if err = cursor.All(ctx, &loaded); err != nil {
		return puzgen.Position{}, err
	}
	if len(loaded) == 0 {
		return puzgen.Position{}, ErrNotFound
	}
	if len(loaded) != 1 {
		return puzgen.Position{}, fmt.Errorf("aggregate with $size = 1 returned %d samples", len(loaded))
	}
	return loaded[0], nil
}

func (t *positionRepository) GetPosition(ctx context.Context, id string) (puzgen.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	var position puzgen.Position
	err := t.dbClient.PositionCollection.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&position)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return puzgen.Position{}, ErrNotFound
	}
	return position, err
}

func (t *positionRepository) InsertPosition(ctx context.Context, position puzgen.Position) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	_, err := t.dbClient.PositionCollection.InsertOne(ctx, position)
	return err
}

func (t *positionRepository) InsertAllPositions(ctx context.Context, positions []puzgen.Position) error {
	if len(positions) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	docs := make([]interface{}, 0, len(positions))
	for _, p := range positions {
		docs = append(docs, p)
	}
	_, err := t.dbClient.PositionCollection.InsertMany(ctx, docs)
	return err
}

func (t *positionRepository) GetLastUserPosition(ctx context.Context, username string) (puzgen.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	opts := options.FindOne()
	opts.SetSort(bson.D{{Key: "game_data.date", Value: -1}})

	filter := bson.D{
		{Key: "kind", Value: puzgen.KindRedo},
		{Key: "user", Value: username},
	}
	var position puzgen.Position
	err := t.dbClient.PositionCollection.FindOne(ctx, filter, opts).Decode(&position)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return puzgen.Position{}, ErrNotFound
	}
	return position, err
}

func (t *positionRepository) GetLessons(ctx context.Context, studyID string) ([]puzgen.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	filter := bson.D{
		{Key: "kind", Value: puzgen.KindStudy},
		{Key: "study_id", Value: studyID},
	}
	opts := options.Find().SetSort(bson.D{{Key: "chapter", Value: 1}})
	cur, err := t.dbClient.PositionCollection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var lessons []puzgen.Position
	if err = cur.All(ctx, &lessons); err != nil {
		return nil, err
	}
	return lessons, nil
}

func (t *positionRepository) ReplaceLessons(ctx context.Context, studyID string, lessons []puzgen.Position) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.D{
		{Key: "kind", Value: puzgen.KindStudy},
		{Key: "study_id", Value: studyID},
	}
	if _, err := t.dbClient.PositionCollection.DeleteMany(ctx, filter); err != nil {
		return err
	}
	return t.InsertAllPositions(ctx, lessons)
}
