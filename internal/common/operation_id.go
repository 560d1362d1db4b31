package common

import (
	"context"

	"github.com/segmentio/ksuid"
	"github.com/sirupsen/logrus"
)

type ctxKey string

const OperationIDKey string = "operation_id"
const operationIDKeyCtx ctxKey = ctxKey(OperationIDKey)

// WithOperationID adds a time-sortable globally unique identifier to ctx if
// not already set.
func WithOperationID(ctx context.Context) context.Context {
	if OperationID(ctx) != "" {
		return ctx
	}
	return context.WithValue(ctx, operationIDKeyCtx, GenerateOperationID())
}

// OperationID returns the identifier stored by WithOperationID or "".
func OperationID(ctx context.Context) string {
	oid, _ := ctx.Value(operationIDKeyCtx).(string)
	return oid
}

func GenerateOperationID() string {
	return ksuid.New().String()
}

// Logger returns a log entry carrying the operation ID of ctx.
func Logger(ctx context.Context) *logrus.Entry {
	entry := logrus.NewEntry(logrus.StandardLogger())
	if oid := OperationID(ctx); oid != "" {
		entry = entry.WithField(OperationIDKey, oid)
	}
	return entry
}
