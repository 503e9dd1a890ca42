package main

import (
	"context"
	"errors"
	"finsync/src/api"
	"finsync/src/config"
	"finsync/src/crypto"
	"finsync/src/db"
	"finsync/src/ingest"
	"finsync/src/logger"
	"finsync/src/models"
	"finsync/src/notify"
	"finsync/src/plaid"
	"finsync/src/report"
	"finsync/src/scheduler"
	"finsync/src/util"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sqldb "finsync/src/db/sql"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds everything the commands share.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool
	cache  *db.CredentialCache
	loc    *time.Location

	provider   *plaid.Provider
	resolver   *crypto.Resolver
	directory  *ingest.ItemDirectory
	registry   *ingest.AccountRegistry
	tracker    *ingest.RunTracker
	ingestor   *ingest.Ingestor
	ledger     *notify.Ledger
	dispatcher *notify.Dispatcher
	reports    *report.Service
	verifier   *util.WebhookVerifier
}

func main() {
	os.Exit(run())
}

func run() int {
	a := &app{}
	defer a.close()

	if err := newRootCmd(a).ExecuteContext(context.Background()); err != nil {
		if a.logger != nil {
			a.logger.Error("command failed", zap.Error(err))
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "finsync",
		Short:         "Plaid balance and transaction sync",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the admin API and the scheduled daily sync",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.serve(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "sync",
			Short: "Run one daily sync (balances and transactions) and deliver its digest",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runOnce(cmd.Context(), models.RunTypeDailySync, true)
			},
		},
		&cobra.Command{
			Use:   "balances",
			Short: "Snapshot balances only",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runOnce(cmd.Context(), models.RunTypeBalances, false)
			},
		},
		newRetryCmd(a),
		newLinkCmd(a),
	)

	return root
}

func newRetryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "retry-notifications",
		Short: "Redeliver digests whose last delivery failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("limit") {
				limit = a.cfg.RetryLimit
			}
			delivered, err := a.dispatcher.RetryFailed(cmd.Context(), a.cfg.DigestChannel, limit)
			a.logger.Info("retry finished", zap.Int("delivered", delivered))
			return err
		},
	}
	cmd.Flags().IntVar(&limit, "limit", notify.DefaultRetryLimit, "maximum runs to retry")
	return cmd
}

// newLinkCmd registers an item from an access token obtained out of band.
func newLinkCmd(a *app) *cobra.Command {
	var (
		label        string
		noTxns       bool
		noBalances   bool
		tokenFromEnv string
	)
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Register a Plaid item from an access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			token := os.Getenv(tokenFromEnv)
			if token == "" {
				return fmt.Errorf("%s is empty", tokenFromEnv)
			}
			identity, err := a.provider.DescribeItem(cmd.Context(), token)
			if err != nil {
				return err
			}
			item, err := a.directory.Link(cmd.Context(), ingest.LinkRequest{
				Label:               label,
				InstitutionID:       identity.InstitutionID,
				InstitutionName:     identity.InstitutionName,
				ItemID:              identity.ItemID,
				AccessToken:         token,
				TransactionsEnabled: !noTxns,
				BalancesEnabled:     !noBalances,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "linked item %d (%s, %s)\n", item.ID, item.Label, item.InstitutionName)
			return nil
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "item label (defaults to the institution name)")
	cmd.Flags().BoolVar(&noTxns, "no-transactions", false, "skip transaction sync for this item")
	cmd.Flags().BoolVar(&noBalances, "no-balances", false, "skip balance snapshots for this item")
	cmd.Flags().StringVar(&tokenFromEnv, "token-env", "PLAID_ACCESS_TOKEN", "environment variable holding the access token")
	return cmd
}

func (a *app) init(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	a.logger, err = logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.logger = a.logger.With(zap.String("env", cfg.Environment))

	a.loc, err = time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	a.pool, err = db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	a.cache, err = db.NewCredentialCache()
	if err != nil {
		return fmt.Errorf("init credential cache: %w", err)
	}

	plaidClient, err := plaid.NewPlaidClient(cfg.PlaidClientID, cfg.PlaidSecret, cfg.Environment)
	if err != nil {
		return err
	}
	a.provider = plaid.NewProvider(plaidClient, cfg.SyncPageSize, a.logger.Named("plaid"))
	if cfg.PlaidWebhookCheck {
		a.verifier = util.NewWebhookVerifier(util.PlaidKeySource(plaidClient))
	}

	cipher, err := crypto.NewTokenCipher(cfg.PlaidTokenKey)
	if err != nil {
		return err
	}
	a.resolver = crypto.NewResolver(cipher, a.cache, a.logger.Named("credentials"))

	log := a.logger.Named("ingest")
	a.directory = ingest.NewItemDirectory(sqldb.NewItemRepo(a.pool, cfg.Tables), a.resolver, cfg.Environment, log)
	a.registry = ingest.NewAccountRegistry(sqldb.NewAccountRepo(a.pool, cfg.Tables), log)
	a.tracker = ingest.NewRunTracker(sqldb.NewRunRepo(a.pool, cfg.Tables), log)
	balances := ingest.NewBalanceIngestor(a.registry, sqldb.NewBalanceRepo(a.pool, cfg.Tables), a.provider, a.resolver, log)
	transactions := ingest.NewTransactionSyncEngine(
		a.registry,
		sqldb.NewCursorRepo(a.pool, cfg.Tables),
		sqldb.NewTransactionRepo(a.pool, cfg.Tables),
		a.provider,
		a.resolver,
		log,
	).WithStartDate(cfg.TransactionsStartDate)
	a.ingestor = ingest.NewIngestor(a.tracker, a.directory, balances, transactions, cfg.Environment, log)

	a.reports = report.NewService(sqldb.NewReportRepo(a.pool, cfg.Tables), a.tracker, a.loc)
	a.ledger = notify.NewLedger(sqldb.NewNotificationRepo(a.pool, cfg.Tables), a.logger.Named("notify"))
	a.dispatcher = notify.NewDispatcher(a.ledger, a.reports, cfg.NotificationsEnabled, a.logger.Named("notify"))
	a.dispatcher.Register(notify.ChannelSlack, notify.NewSlackTransport(cfg.SlackWebhookURL, a.loc))

	return nil
}

func (a *app) close() {
	if a.cache != nil {
		a.cache.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func (a *app) runOnce(ctx context.Context, runType string, deliver bool) error {
	runID, err := a.ingestor.Run(ctx, runType)
	if runID != 0 && deliver {
		if derr := a.dispatcher.Deliver(ctx, runID, a.cfg.DigestChannel); derr != nil {
			err = errors.Join(err, derr)
		}
	}
	if err != nil {
		return fmt.Errorf("run %d: %w", runID, err)
	}
	a.logger.Info("run succeeded", zap.Int64("run_id", runID), zap.String("run_type", runType))
	return nil
}

func (a *app) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := api.Deps{
		Runs:           a.tracker,
		Summaries:      a.reports,
		Items:          a.directory,
		Accounts:       a.registry,
		Notifications:  a.ledger,
		WebhookEvents:  sqldb.NewWebhookEventRepo(a.pool, a.cfg.Tables),
		Cache:          a.cache,
		Environment:    a.cfg.Environment,
		DigestChannel:  a.cfg.DigestChannel,
		AdminToken:     a.cfg.AdminAPIToken,
		AllowedOrigins: a.cfg.CORSAllowedOrigins,
		Logger:         a.logger.Named("http"),
	}
	if a.verifier != nil {
		deps.Verifier = a.verifier
	}

	runner := scheduler.New(a.logger, ctx, a.loc)
	job := scheduler.DailyJob(a.ingestor, a.dispatcher, a.cfg.DigestChannel, a.cfg.RetryLimit, a.logger.Named("scheduler"))
	if _, err := runner.Add(a.cfg.SyncSchedule, job); err != nil {
		return fmt.Errorf("schedule %q: %w", a.cfg.SyncSchedule, err)
	}
	runner.Start()
	defer runner.Stop()

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("API server running", zap.String("port", a.cfg.Port), zap.String("schedule", a.cfg.SyncSchedule))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
