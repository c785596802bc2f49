// Package txn runs multi-document writes inside a MongoDB transaction when the
// deployment supports one, and through a sequential fallback when it does not
// (standalone servers without a replica set).
//
// Usage:
//
//	path, err := txn.RunWithFallback(ctx, db, log,
//	    func(sc context.Context) error { ... all writes, atomically ... },
//	    func(ctx context.Context) error { ... same writes, crash-safe order ... },
//	)
//
// Once a deployment has answered "not supported" the package remembers it
// per client and goes straight to the fallback on later calls.
package txn

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Func is the function type for transaction operations. In a transaction the
// context is a mongo.SessionContext and must be passed to every operation.
type Func func(ctx context.Context) error

// Path reports which branch executed.
type Path string

const (
	PathTransaction Path = "transaction"
	PathFallback    Path = "fallback"
)

// unsupported remembers clients whose deployment rejected transactions.
var unsupported sync.Map // *mongo.Client -> struct{}

// Run executes fn in a transaction if possible, otherwise runs fn directly.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn Func) (Path, error) {
	return RunWithFallback(ctx, db, log, fn, fn)
}

// RunWithFallback runs txnFn in a transaction, or fallbackFn when the
// deployment cannot run transactions.
func RunWithFallback(ctx context.Context, db *mongo.Database, log *zap.Logger, txnFn, fallbackFn Func) (Path, error) {
	client := db.Client()
	if _, known := unsupported.Load(client); known {
		return PathFallback, fallbackFn(ctx)
	}

	session, err := client.StartSession()
	if err != nil {
		if log != nil {
			log.Warn("failed to start session, using fallback", zap.Error(err))
		}
		return PathFallback, fallbackFn(ctx)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, txnFn(sc)
	})
	if err == nil {
		return PathTransaction, nil
	}
	if !IsNotSupported(err) {
		return PathTransaction, err
	}

	unsupported.Store(client, struct{}{})
	if log != nil {
		log.Warn("transactions not supported, using fallback from now on", zap.Error(err))
	}
	return PathFallback, fallbackFn(ctx)
}

// Supported reports whether db's client has not yet been seen rejecting a
// transaction.
func Supported(db *mongo.Database) bool {
	_, known := unsupported.Load(db.Client())
	return !known
}

// IsNotSupported checks if an error indicates that transactions are not supported.
//
// Known error codes:
//   - 20: "Transaction numbers are only allowed on a replica set member or mongos"
//   - 51: IllegalOperation
//   - 263: "Cannot run 'aggregate' in a multi-document transaction"
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		switch cmdErr.Code {
		case 20, 51, 263:
			return true
		}
	}

	// Message fallback for DocumentDB and wrapped driver errors. Two keyword
	// hits are required to avoid false positives.
	errStr := strings.ToLower(err.Error())
	keywords := []string{
		"transaction",
		"replica set",
		"session",
		"not supported",
		"illegal operation",
	}

	matches := 0
	for _, kw := range keywords {
		if strings.Contains(errStr, kw) {
			matches++
		}
	}
	return matches >= 2
}
