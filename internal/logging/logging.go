package logging

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the interface to our internal logger.
type Logger interface {
	Debug(msg string, kvpairs ...interface{})
	Info(msg string, kvpairs ...interface{})
	Warn(msg string, kvpairs ...interface{})
	Error(msg string, kvpairs ...interface{})
	SetField(key string, val interface{})
	PushFields()
	PopFields()

	// With returns a child logger carrying this logger's fields plus the
	// given key/value pairs. The parent is not modified.
	With(kvpairs ...interface{}) Logger
}

// LogrusLogger is a thread-safe logger whose properties persist and can be modified.
type LogrusLogger struct {
	mtx             sync.Mutex
	logger          *logrus.Entry
	ctx             string
	fields          map[string]interface{}
	pushedFieldSets []map[string]interface{}
}

// NoopLogger implements Logger, but does nothing.
type NoopLogger struct{}

var _ Logger = (*LogrusLogger)(nil)
var _ Logger = (*NoopLogger)(nil)

//
// LogrusLogger
//

// NewLogrusLogger will instantiate a logger with the given context.
func NewLogrusLogger(ctx string, kvpairs ...interface{}) Logger {
	return newLogrusLogger(logrus.StandardLogger(), ctx, serializeKVPairs(kvpairs...))
}

func newLogrusLogger(base *logrus.Logger, ctx string, fields map[string]interface{}) *LogrusLogger {
	logger := logrus.NewEntry(base)
	if len(ctx) > 0 {
		logger = logger.WithField("ctx", ctx)
	}
	return &LogrusLogger{
		logger:          logger,
		ctx:             ctx,
		fields:          fields,
		pushedFieldSets: []map[string]interface{}{},
	}
}

func (l *LogrusLogger) withFields() *logrus.Entry {
	if len(l.fields) > 0 {
		return l.logger.WithFields(l.fields)
	}
	return l.logger
}

// serializeKVPairs turns alternating keys and values into a field map. An
// odd number of arguments yields no fields at all. Non-string keys are
// formatted with %v.
func serializeKVPairs(kvpairs ...interface{}) map[string]interface{} {
	res := make(map[string]interface{})
	if (len(kvpairs) % 2) == 0 {
		for i := 0; i < len(kvpairs); i += 2 {
			key, ok := kvpairs[i].(string)
			if !ok {
				key = fmt.Sprintf("%v", kvpairs[i])
			}
			res[key] = kvpairs[i+1]
		}
	}
	return res
}

func (l *LogrusLogger) withKVPairs(kvpairs ...interface{}) *logrus.Entry {
	fields := serializeKVPairs(kvpairs...)
	if len(fields) > 0 {
		return l.withFields().WithFields(fields)
	}
	return l.withFields()
}

func (l *LogrusLogger) Debug(msg string, kvpairs ...interface{}) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.withKVPairs(kvpairs...).Debugln(msg)
}

func (l *LogrusLogger) Info(msg string, kvpairs ...interface{}) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.withKVPairs(kvpairs...).Infoln(msg)
}

func (l *LogrusLogger) Warn(msg string, kvpairs ...interface{}) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.withKVPairs(kvpairs...).Warnln(msg)
}

func (l *LogrusLogger) Error(msg string, kvpairs ...interface{}) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.withKVPairs(kvpairs...).Errorln(msg)
}

func (l *LogrusLogger) SetField(key string, val interface{}) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.fields[key] = val
}

// PushFields saves a copy of the current fields, to be restored by the next
// call to PopFields.
func (l *LogrusLogger) PushFields() {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.pushedFieldSets = append(l.pushedFieldSets, copyFields(l.fields))
}

func (l *LogrusLogger) PopFields() {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	pfsLen := len(l.pushedFieldSets)
	if pfsLen > 0 {
		l.fields = l.pushedFieldSets[pfsLen-1]
		l.pushedFieldSets = l.pushedFieldSets[:pfsLen-1]
	}
}

func (l *LogrusLogger) With(kvpairs ...interface{}) Logger {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	fields := copyFields(l.fields)
	for k, v := range serializeKVPairs(kvpairs...) {
		fields[k] = v
	}
	return &LogrusLogger{
		logger:          l.logger,
		ctx:             l.ctx,
		fields:          fields,
		pushedFieldSets: []map[string]interface{}{},
	}
}

func copyFields(fields map[string]interface{}) map[string]interface{} {
	res := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		res[k] = v
	}
	return res
}

//
// NoopLogger
//

// NewNoopLogger will instantiate a logger that does nothing when called.
func NewNoopLogger() Logger {
	return &NoopLogger{}
}

func (l *NoopLogger) Debug(msg string, kvpairs ...interface{}) {}
func (l *NoopLogger) Info(msg string, kvpairs ...interface{})  {}
func (l *NoopLogger) Warn(msg string, kvpairs ...interface{})  {}
func (l *NoopLogger) Error(msg string, kvpairs ...interface{}) {}
func (l *NoopLogger) SetField(key string, val interface{})     {}
func (l *NoopLogger) PushFields()                              {}
func (l *NoopLogger) PopFields()                               {}
func (l *NoopLogger) With(kvpairs ...interface{}) Logger       { return l }
