package main

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Connect builds the client and pings the primary so that an unreachable
// deployment fails here rather than at the first query. The caller owns the
// returned client and must Disconnect it.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, error) {
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetAppName("catalog-queries")
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, ErrConnection{URI: cfg.MongoURI, Err: err}
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, ErrConnection{URI: cfg.MongoURI, Err: err}
	}
	return client, nil
}
