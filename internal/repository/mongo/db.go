package mongo

import (
	"context"
	"errors"
	"time"

	"gymtrack/workout-app/internal/repository"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// ConnectDB establishes a connection to MongoDB using the provided URI.
// It returns the mongo.Client which can be used to access databases and collections.
func ConnectDB(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping the primary node to verify the connection. Use a separate context for
	// the ping, as the initial connection might have succeeded but the server
	// might be unresponsive.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()

	err = client.Ping(pingCtx, readpref.Primary())
	if err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, err
	}

	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// txRunner implements repository.TxRunner on a MongoDB client session.
type txRunner struct {
	client *mongo.Client
}

// NewTxRunner creates a transaction runner backed by multi-document transactions.
// Requires a replica set or mongos deployment.
func NewTxRunner(client *mongo.Client) repository.TxRunner {
	return &txRunner{client: client}
}

// WithTransaction runs fn inside one MongoDB transaction. Snapshot read concern
// plus majority write concern give the isolation the completion engine's CAS
// status re-check relies on. The SessionContext handed to fn is the explicit
// unit-of-work value: every repository call made with it is enlisted, and a
// returned error aborts the whole transaction with no partial writes.
func (t *txRunner) WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	session, err := t.client.StartSession()
	if err != nil {
		return repository.ErrTxAborted
	}
	defer session.EndSession(ctx)

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	}, txOpts)
	if err != nil {
		return translateTxError(err)
	}
	return nil
}

// translateTxError maps driver-level transaction failures onto repository errors.
// Repository sentinel errors raised inside fn pass through untouched so the
// service layer can tell a lost CAS race from a transient abort.
func translateTxError(err error) error {
	var repoErr repository.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr
	}
	if mongo.IsTimeout(err) {
		return repository.ErrTxAborted
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		if cmdErr.HasErrorLabel("TransientTransactionError") || cmdErr.HasErrorLabel("UnknownTransactionCommitResult") {
			return repository.ErrTxAborted
		}
	}
	return err
}
