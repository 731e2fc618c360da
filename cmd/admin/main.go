package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tabularium/tabularium/internal/app"
	"github.com/tabularium/tabularium/internal/bootstrap"
	"github.com/tabularium/tabularium/internal/client"
	"github.com/tabularium/tabularium/internal/config"
	"github.com/tabularium/tabularium/internal/credentials"
	"github.com/tabularium/tabularium/internal/logging"
	"github.com/tabularium/tabularium/internal/school"
	"github.com/tabularium/tabularium/internal/session"
)

// env is everything a subcommand needs to talk to the Tabularium API as the operator
type env struct {
	cfg    *config.Client
	logger *zap.Logger
	out    io.Writer

	// files is nil unless credentials are kept in the file backend
	files *credentials.FileStore
	db    *sql.DB

	session    *session.Manager
	client     *client.Client
	controller *app.Controller
	school     *school.API
}

func newEnv(ctx context.Context, out io.Writer, verbose bool) (*env, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	logger, err := logging.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("error initializing logger: %w", err)
	}
	if !verbose {
		logger = logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel))
	}

	e := &env{cfg: cfg, logger: logger, out: out}
	var store credentials.Store
	switch cfg.CredentialBackend {
	case config.BackendPostgres:
		conn, err := credentials.OpenPostgres(ctx, cfg.Postgres())
		if err != nil {
			return nil, err
		}
		e.db = conn
		store = credentials.NewPostgresStore(conn, cfg.Profile)
	default:
		path := cfg.CredentialsPath
		if path == "" {
			path, err = credentials.DefaultFilePath()
			if err != nil {
				return nil, err
			}
		}
		e.files = credentials.NewFileStore(path)
		store = e.files
	}

	e.session = session.NewManager(store,
		session.WithLogger(logger.Named("session")),
		session.WithRefreshTimeout(cfg.RefreshTimeout),
	)
	e.client = client.New(cfg.APIURL, e.session,
		client.WithTimeout(cfg.RequestTimeout),
		client.WithLogger(logger.Named("client")),
	)
	prober := bootstrap.NewProber(e.client, e.session, cfg.ProbeTimeout, logger.Named("bootstrap"))
	e.controller = app.NewController(e.client, e.session, prober, logger.Named("app"))
	e.school = school.NewAPI(e.client, clockwork.NewRealClock())
	return e, nil
}

func (e *env) Close() {
	e.controller.Close()
	if e.db != nil {
		e.db.Close()
	}
	e.logger.Sync()
}

func (e *env) printf(format string, args ...interface{}) {
	fmt.Fprintf(e.out, format, args...)
}

// describeError turns the errors an operator can act on into instructions
func describeError(err error) string {
	switch {
	case errors.Is(err, session.ErrRefreshFailed), errors.Is(err, client.ErrForbidden):
		return fmt.Sprintf("%v\nyour session has expired: run 'admin login' to sign in again", err)
	case errors.Is(err, school.ErrInvalid):
		msg := "invalid input:"
		for _, field := range school.Fields(err) {
			msg += fmt.Sprintf("\n  %s", field)
		}
		return msg
	}
	return err.Error()
}

// newRootCommand builds the command tree. The returned function releases whatever the
// command that ran has opened.
func newRootCommand() (*cobra.Command, func()) {
	var (
		verbose bool
		e       *env
	)
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Manage a Tabularium session and the school records behind it",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			e, err = newEnv(cmd.Context(), cmd.OutOrStdout(), verbose)
			return err
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log requests and session changes")

	get := func() *env { return e }
	root.AddCommand(
		newStatusCommand(get),
		newLoginCommand(get),
		newRegisterCommand(get),
		newLogoutCommand(get),
		newWhoamiCommand(get),
		newThemeCommand(get),
		newOpenCommand(get),
		newSummaryCommand(get),
		newStudentsCommand(get),
		newGroupsCommand(get),
		newSubjectsCommand(get),
		newTeachersCommand(get),
		newGradesCommand(get),
	)
	return root, func() {
		if e != nil {
			e.Close()
		}
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root, cleanup := newRootCommand()
	err := root.ExecuteContext(ctx)
	cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		cancel()
		os.Exit(1)
	}
}
