package recorder

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/ndrandal/stocksim/internal/engine"
)

// Mongo records into a MongoDB database.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// OpenMongo connects and ensures the indexes. The URI may carry the
// database name in its path; "stocksim" is the fallback.
func OpenMongo(ctx context.Context, uri string) (*Mongo, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	dbName := "stocksim"
	if u, err := url.Parse(uri); err == nil {
		if name := strings.TrimPrefix(u.Path, "/"); name != "" {
			dbName = name
		}
	}
	db := client.Database(dbName)

	if err := ensureIndexes(ctx, db); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	log.Printf("recorder: connected to MongoDB (db=%s)", dbName)
	return &Mongo{client: client, db: db}, nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("daily_closes").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "date", Value: 1}, {Key: "stock_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("daily_closes index: %w", err)
	}
	_, err = db.Collection("save_events").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "saved_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("save_events index: %w", err)
	}
	return nil
}

func (r *Mongo) RecordDaily(ctx context.Context, date time.Time, closes []engine.DailyClose) error {
	if len(closes) == 0 {
		return nil
	}
	day := engine.Day(date).Format(time.DateOnly)
	docs := make([]any, 0, len(closes))
	for _, c := range closes {
		closePrice := c.Data.Open
		if c.Data.Close != nil {
			closePrice = *c.Data.Close
		}
		docs = append(docs, bson.D{
			{Key: "date", Value: day},
			{Key: "stock_id", Value: c.StockID},
			{Key: "symbol", Value: c.Symbol},
			{Key: "name", Value: c.Name},
			{Key: "open", Value: c.Data.Open},
			{Key: "close", Value: closePrice},
			{Key: "high", Value: c.Data.High},
			{Key: "low", Value: c.Data.Low},
			{Key: "rolling_avg", Value: c.RollingAvg},
			{Key: "pruned", Value: c.Pruned},
		})
	}
	if _, err := r.db.Collection("daily_closes").InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert daily closes: %w", err)
	}
	return nil
}

func (r *Mongo) RecordSave(ctx context.Context, path string, savedAt time.Time, stocks int) error {
	_, err := r.db.Collection("save_events").InsertOne(ctx, bson.D{
		{Key: "saved_at", Value: savedAt.UTC()},
		{Key: "path", Value: path},
		{Key: "stocks", Value: stocks},
	})
	if err != nil {
		return fmt.Errorf("insert save event: %w", err)
	}
	return nil
}

func (r *Mongo) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
