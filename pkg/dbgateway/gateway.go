// Package dbgateway wraps a MongoDB-compatible driver client behind the
// document-database collaborator contract: callers never touch the
// driver directly, they schedule work on the database fiber pool and
// get a collection handle or an id back.
package dbgateway

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fenwickgames/realtimecore/pkg/log"
	"github.com/fenwickgames/realtimecore/pkg/metrics"
	"github.com/fenwickgames/realtimecore/pkg/uid"
)

// FiberPool is the subset of the fiber-pool contract the gateway needs:
// schedule a function for execution, fire-and-forget.
type FiberPool interface {
	Push(fn func())
}

// Gateway holds a client handle and a database name, and schedules all
// driver interaction on the database fiber pool it is given.
type Gateway struct {
	client *mongo.Client
	dbName string
	pool   FiberPool
	ids    *uid.Generator
}

// New wraps an already-connected client. ctx is only used to validate
// the connection at startup (Ping); it is not retained.
func New(ctx context.Context, client *mongo.Client, dbName string, pool FiberPool, ids *uid.Generator) (*Gateway, error) {
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("dbgateway: ping: %w", err)
	}
	return &Gateway{client: client, dbName: dbName, pool: pool, ids: ids}, nil
}

// Execute schedules fn(database) on the database fiber pool. fn runs on
// whichever pool worker goroutine happens to pick it up; the mongo
// driver's own connection pool multiplexes operations beneath that, so
// there is no separate checkout/checkin step here.
func (g *Gateway) Execute(fn func(db *mongo.Database)) {
	g.pool.Push(func() {
		fn(g.client.Database(g.dbName))
	})
}

// Collection resolves name to a collection handle on the gateway's
// database, bypassing the fiber pool for callers that already run on
// a database-pool goroutine (e.g. a batched transaction flush).
func (g *Gateway) Collection(name string) *mongo.Collection {
	return g.client.Database(g.dbName).Collection(name)
}

// inserter is the narrow slice of *mongo.Collection that EnsureCreation
// needs, so its retry loop can be tested against a fake without a live
// database.
type inserter interface {
	InsertOne(ctx context.Context, document any, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// EnsureCreation inserts doc into collection under a server-generated
// id, retrying only on a duplicate-key error. Any other driver error is
// surfaced to callback as err with id == 0; callers must not treat a
// non-nil err as "retry forever".
func (g *Gateway) EnsureCreation(ctx context.Context, collection string, doc bson.M, callback func(id int64, err error)) {
	coll := g.client.Database(g.dbName).Collection(collection)
	g.pool.Push(func() {
		id, err := ensureCreationRetryLoop(ctx, coll, g.ids, doc)
		if err != nil {
			metrics.DBErrorsTotal.WithLabelValues("ensure_creation").Inc()
			log.WithComponent("dbgateway").Error().Err(err).Str("collection", collection).Msg("insert failed")
		}
		callback(id, err)
	})
}

func ensureCreationRetryLoop(ctx context.Context, coll inserter, ids *uid.Generator, doc bson.M) (int64, error) {
	for {
		id := ids.NextID()
		withID := bson.M{"_id": id}
		for k, v := range doc {
			withID[k] = v
		}

		_, err := coll.InsertOne(ctx, withID)
		if err == nil {
			return id, nil
		}
		if mongo.IsDuplicateKeyError(err) {
			metrics.DBRetriesTotal.Inc()
			log.WithComponent("dbgateway").Debug().Err(err).Msg("duplicate id, retrying EnsureCreation")
			continue
		}
		return 0, err
	}
}
