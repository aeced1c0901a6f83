package dbgateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fenwickgames/realtimecore/pkg/uid"
)

type fakeInserter struct {
	failures int
	calls    int
}

func (f *fakeInserter) InsertOne(ctx context.Context, document any, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, mongo.CommandError{Code: 11000, Message: "E11000 duplicate key error"}
	}
	return &mongo.InsertOneResult{}, nil
}

type permanentFailInserter struct{}

func (permanentFailInserter) InsertOne(ctx context.Context, document any, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	return nil, errors.New("connection refused")
}

func TestEnsureCreationRetriesOnlyOnDuplicateKey(t *testing.T) {
	ids, err := uid.New()
	require.NoError(t, err)

	f := &fakeInserter{failures: 2}
	id, err := ensureCreationRetryLoop(context.Background(), f, ids, bson.M{"foo": "bar"})

	require.NoError(t, err)
	require.NotZero(t, id)
	require.Equal(t, 3, f.calls, "should retry exactly twice then succeed on the third attempt")
}

func TestEnsureCreationSurfacesNonDuplicateErrors(t *testing.T) {
	ids, err := uid.New()
	require.NoError(t, err)

	id, err := ensureCreationRetryLoop(context.Background(), permanentFailInserter{}, ids, bson.M{"foo": "bar"})

	require.Error(t, err, "a non-duplicate-key error must not loop forever")
	require.Zero(t, id)
}
