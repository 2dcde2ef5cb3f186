// Package state defines shared program state.
package state

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"

	"cssprune/config"
	"cssprune/css"
	"cssprune/optimize"
)

type envKey struct{}

// LocalEnv keeps everything program needs in a single place.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	// used by optimize subcommand
	NoDirs    bool
	Overwrite bool
	ToStdout  bool
	DryRun    bool // optimize and report, write nothing
	CodePage  encoding.Encoding
	Stdout    io.Writer

	// accumulated over all processed stylesheets
	Totals    optimize.Stats
	Processed int
	Failed    int

	start         time.Time
	restoreStdLog func()
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, newLocalEnv())
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

// StylesheetWriter returns serializer configured for output.
func (e *LocalEnv) StylesheetWriter() *css.Writer {
	w := &css.Writer{Indent: "  "}
	if e.Cfg != nil {
		w.Indent = e.Cfg.Output.Indent
		w.DropComments = !e.Cfg.Processing.KeepComments
	}
	return w
}

func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
	}
}
