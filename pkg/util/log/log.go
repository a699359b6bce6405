package log

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	dslog "github.com/grafana/dskit/log"
)

var (
	// Logger is the process wide go-kit logger. Components receive it through
	// their constructors.
	Logger = log.NewNopLogger()

	plogger *leveledLogger
)

// InitLogger initialises the global logger according to the given level.
// It writes logfmt to stderr.
func InitLogger(lvl dslog.Level) {
	InitLoggerWithWriter(os.Stderr, lvl)
}

// InitLoggerWithWriter is like InitLogger but writes to w.
func InitLoggerWithWriter(w io.Writer, lvl dslog.Level) {
	plogger = newLeveledLogger(log.NewLogfmtLogger(log.NewSyncWriter(w)), lvl)
	Logger = log.With(plogger, "ts", log.DefaultTimestampUTC, "caller", log.Caller(5))
}

// leveledLogger filters by a level that can be swapped at runtime.
type leveledLogger struct {
	baseLogger log.Logger

	mtx    sync.RWMutex
	logger log.Logger
}

func newLeveledLogger(base log.Logger, lvl dslog.Level) *leveledLogger {
	l := &leveledLogger{baseLogger: base}
	l.setLevel(lvl)
	return l
}

func (l *leveledLogger) Log(kv ...interface{}) error {
	l.mtx.RLock()
	logger := l.logger
	l.mtx.RUnlock()
	return logger.Log(kv...)
}

func (l *leveledLogger) setLevel(lvl dslog.Level) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if lvl.Option == nil {
		l.logger = level.NewFilter(l.baseLogger, level.AllowInfo())
		return
	}
	l.logger = level.NewFilter(l.baseLogger, lvl.Option)
}

// LevelHandler returns an http handler function that returns the current log
// level on GET and sets it from the log_level form value on POST.
func LevelHandler(currentLogLevel *dslog.Level) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]string{
				"message": fmt.Sprintf("Current log level is %s", currentLogLevel.String()),
			})
		case http.MethodPost:
			logLevel := r.FormValue("log_level")

			var lvl dslog.Level
			if err := lvl.Set(logLevel); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{
					"status":  "failed",
					"message": err.Error(),
				})
				return
			}

			*currentLogLevel = lvl
			if plogger != nil {
				plogger.setLevel(lvl)
			}

			writeJSON(w, http.StatusOK, map[string]string{
				"status":  "success",
				"message": fmt.Sprintf("Log level set to %s", logLevel),
			})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		level.Error(Logger).Log("msg", "failed to write response", "err", err)
	}
}

// CheckFatal prints an error and exits with error code 1 if err is non-nil.
func CheckFatal(location string, err error) {
	if err == nil {
		return
	}
	logger := level.Error(Logger)
	if location != "" {
		logger = log.With(logger, "msg", "error "+location)
	}
	// %+v gets the stack trace from errors using github.com/pkg/errors
	logger.Log("err", fmt.Sprintf("%+v", err))
	os.Exit(1)
}
