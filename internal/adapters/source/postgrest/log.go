package postgrest

import (
	"context"
	"fmt"

	"github.com/okian/topten/pkg/logger"
)

// leveledLogger adapts logger.Logger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	l logger.Logger
}

func (a *leveledLogger) Error(msg string, kv ...interface{}) {
	a.l.Error(context.Background(), msg, toFields(kv)...)
}

func (a *leveledLogger) Info(msg string, kv ...interface{}) {
	a.l.Debug(context.Background(), msg, toFields(kv)...)
}

func (a *leveledLogger) Debug(msg string, kv ...interface{}) {
	a.l.Debug(context.Background(), msg, toFields(kv)...)
}

func (a *leveledLogger) Warn(msg string, kv ...interface{}) {
	a.l.Warn(context.Background(), msg, toFields(kv)...)
}

// toFields pairs up alternating keys and values. A trailing key gets a nil value.
func toFields(kv []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		var val interface{}
		if i+1 < len(kv) {
			val = kv[i+1]
		}
		fields = append(fields, logger.Any(key, val))
	}
	return fields
}
