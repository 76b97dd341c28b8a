package cli

import (
	"errors"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/vk/nodeweave/internal/app"
)

// Version is the nodeweave release.
var Version = "0.1.0"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// usageError marks errors caused by the command line itself.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// checkArgs turns positional argument errors into usage errors.
func checkArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// options holds the persistent flags shared by every command.
type options struct {
	logLevel        string
	logFormat       string
	modulesPath     string
	workers         int
	healthcheckPort int
	editorURL       string
	db              string
	debounce        time.Duration

	logW io.Writer
}

// newApp validates the flags and builds the application.
func (o *options) newApp() (*app.App, error) {
	cfg, err := app.NewConfig(app.Config{
		ModulesPath:     o.modulesPath,
		LogFormat:       strings.ToLower(o.logFormat),
		LogLevel:        strings.ToLower(o.logLevel),
		HealthcheckPort: o.healthcheckPort,
		WorkerCount:     o.workers,
		EditorURL:       o.editorURL,
		DBPath:          o.db,
		Debounce:        o.debounce,
	})
	if err != nil {
		return nil, usageError{err}
	}
	return app.NewApp(o.logW, cfg)
}

// NewRootCommand builds the nodeweave command tree. Command output goes to
// out; logs go to logW.
func NewRootCommand(out, logW io.Writer) *cobra.Command {
	o := &options{logW: logW}
	root := &cobra.Command{
		Use:           "nodeweave",
		Short:         "nodeweave - typed node graphs with incremental evaluation",
		Long:          `nodeweave loads node tree documents, checks and formats them, evaluates them incrementally and keeps them evaluated for a live editor.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(out)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })

	pf := root.PersistentFlags()
	pf.StringVar(&o.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.StringVar(&o.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	pf.StringVar(&o.modulesPath, "modules-path", "catalogs", "Path to the directory containing node type catalogs.")
	pf.IntVar(&o.workers, "workers", 0, "Number of evaluation workers. 0 uses every CPU.")
	pf.IntVar(&o.healthcheckPort, "healthcheck-port", 0, "Port for the HTTP health check and metrics server. 0 is disabled.")
	pf.StringVar(&o.editorURL, "editor-url", "", "socket.io URL of a live editor to stream tree events to.")
	pf.StringVar(&o.db, "db", "", "Path to the SQLite block store.")
	pf.DurationVar(&o.debounce, "debounce", 100*time.Millisecond, "How long serve waits for edits to settle.")

	root.AddCommand(
		newCheckCommand(o),
		newEvalCommand(o),
		newFmtCommand(o),
		newExportCommand(o),
		newTypesCommand(o),
		newStoreCommand(o),
		newServeCommand(o),
	)
	return root
}

// Execute runs the command line and maps failures to ExitError.
func Execute(args []string, out, logW io.Writer) error {
	root := NewRootCommand(out, logW)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	var ue usageError
	if errors.As(err, &ue) || strings.HasPrefix(err.Error(), "unknown command") {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	return &ExitError{Code: 1, Message: err.Error()}
}
