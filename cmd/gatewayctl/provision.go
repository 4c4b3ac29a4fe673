package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/oriys/gatewayctl/internal/config"
	"github.com/oriys/gatewayctl/internal/domain"
	"github.com/oriys/gatewayctl/internal/function"
	"github.com/oriys/gatewayctl/internal/iamrole"
	"github.com/oriys/gatewayctl/internal/logging"
	"github.com/oriys/gatewayctl/internal/metrics"
	"github.com/oriys/gatewayctl/internal/observability"
	"github.com/oriys/gatewayctl/internal/reconcile"
	"github.com/oriys/gatewayctl/internal/remote/awsapi"
	"github.com/oriys/gatewayctl/internal/secrets"
	"github.com/oriys/gatewayctl/internal/store"
)

// errFailures is returned in strict mode when anything failed.
var errFailures = errors.New("provisioning finished with failures")

type runOptions struct {
	command   string
	roles     bool
	functions bool
	only      []string
}

func provisionCmd() *cobra.Command {
	var only []string
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Provision roles, functions and gateways",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), runOptions{command: "provision", roles: true, functions: true, only: only})
		},
	}
	cmd.Flags().StringSliceVar(&only, "gateway", nil, "Only reconcile these gateway keys")
	return cmd
}

func gatewaysCmd() *cobra.Command {
	var only []string
	cmd := &cobra.Command{
		Use:   "gateways",
		Short: "Reconcile gateways only",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), runOptions{command: "gateways", only: only})
		},
	}
	cmd.Flags().StringSliceVar(&only, "gateway", nil, "Only reconcile these gateway keys")
	return cmd
}

func run(ctx context.Context, opts runOptions) error {
	res, err := resolve()
	if err != nil {
		return err
	}
	gateways, err := selectGateways(res.Gateways, opts.only)
	if err != nil {
		return err
	}
	if res.Stage.AccountID == "" && len(gateways) > 0 {
		return &config.ConfigError{Path: "stages." + res.Stage.Key + ".account_id", Msg: "is required (or set ACCOUNT_ID)"}
	}

	settings := res.Settings
	if err := observability.Init(ctx, settings.Telemetry, observability.Run{
		Stage:     res.Stage.Name,
		Region:    res.Stage.Region,
		AccountID: res.Stage.AccountID,
	}); err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.Shutdown(shutdownCtx); err != nil {
			logging.Op().Warn("telemetry shutdown", "error", err)
		}
	}()
	if settings.MetricsFile != "" {
		metrics.InitPrometheus("gatewayctl", nil)
	}

	runID := uuid.NewString()
	ctx, span := observability.StartSpan(ctx, "gatewayctl."+opts.command,
		observability.AttrRunID.String(runID),
		observability.AttrStage.String(res.Stage.Name),
	)
	defer span.End()
	log := logging.OpWithTrace(ctx).With("run_id", runID, "stage", res.Stage.Name)

	awsCfg, err := awsapi.Load(ctx, awsOptions(res.Stage.Region, settings))
	if err != nil {
		return err
	}

	keys, err := openKeyStore(ctx, res.Stage, settings)
	if err != nil {
		return err
	}
	defer keys.Close()

	journal := openJournal(ctx, settings.JournalDSN)
	if journal != nil {
		defer journal.Close()
		if err := journal.BeginRun(ctx, &store.Run{
			ID: runID, Command: opts.command, Stage: res.Stage.Name, Region: res.Stage.Region, StartedAt: time.Now(),
		}); err != nil {
			log.Warn("journal unavailable for this run", "error", err)
			journal = nil
		}
	}

	rep := &report{RunID: runID, Stage: res.Stage.Name, Region: res.Stage.Region}
	baseDir := filepath.Dir(configPath)
	iamClient := iam.NewFromConfig(awsCfg)
	fns := awsapi.NewFunctionClient(awsCfg)

	if opts.roles {
		log.Info("provisioning roles", "count", len(res.Roles))
		rep.Roles = iamrole.New(iamClient, iamrole.WithBaseDir(baseDir)).EnsureAll(ctx, res.Roles)
	}
	if opts.functions {
		log.Info("deploying functions", "count", len(res.Functions))
		deployer := function.NewDeployer(fns.Lambda(), iamClient, res.Stage.AccountID,
			function.WithBaseDir(baseDir),
			function.WithEnvResolver(secrets.NewResolver(keys)),
		)
		rep.Functions = deployer.DeployAll(ctx, res.Functions)
	}

	log.Info("reconciling gateways", "count", len(gateways))
	engine := reconcile.New(
		awsapi.NewRestClient(awsCfg),
		awsapi.NewRouteClient(awsCfg),
		fns,
		reconcile.Env{Region: res.Stage.Region, AccountID: res.Stage.AccountID, Stage: res.Stage.Name},
		reconcile.WithKeyStore(keys),
		reconcile.WithPermissionCleaner(function.NewCleaner(fns.Lambda())),
	)
	for _, gw := range gateways {
		result := engine.Reconcile(ctx, gw)
		rep.Gateways = append(rep.Gateways, result)
		if journal != nil {
			if err := journal.SaveResult(ctx, store.NewResultRecord(runID, result, time.Now())); err != nil {
				log.Warn("journal result", "gateway", gw.Key, "error", err)
			}
		}
	}

	failed := rep.Failed()
	if journal != nil {
		if err := journal.FinishRun(ctx, runID, failed, time.Now()); err != nil {
			log.Warn("journal finish", "error", err)
		}
	}
	if settings.MetricsFile != "" {
		if err := metrics.WriteTextfile(settings.MetricsFile); err != nil {
			log.Warn("metrics textfile", "error", err)
		}
	}

	if err := rep.Print(os.Stdout, outputFmt); err != nil {
		return err
	}
	snap := metrics.Global().Snapshot()
	log.Info("run finished", "failed", failed, "created", snap.Created, "reused", snap.Reused,
		"skipped", snap.Skipped, "elapsed_ms", snap.ElapsedMs)

	if failed > 0 {
		observability.SetSpanError(span, errFailures)
		if settings.Strict {
			return fmt.Errorf("%w: %d failed", errFailures, failed)
		}
		return nil
	}
	observability.SetSpanOK(span)
	return nil
}

func selectGateways(all []domain.GatewayDescriptor, only []string) ([]domain.GatewayDescriptor, error) {
	if len(only) == 0 {
		return all, nil
	}
	byKey := make(map[string]domain.GatewayDescriptor, len(all))
	for _, gw := range all {
		byKey[gw.Key] = gw
	}
	out := make([]domain.GatewayDescriptor, 0, len(only))
	for _, key := range only {
		gw, ok := byKey[key]
		if !ok {
			return nil, &config.ConfigError{Path: "apis." + key, Msg: "gateway is not defined"}
		}
		out = append(out, gw)
	}
	return out, nil
}

func openKeyStore(ctx context.Context, stage domain.Stage, settings config.Settings) (*secrets.Store, error) {
	var c *secrets.Cipher
	if settings.SecretsKeyFile != "" {
		var err error
		if c, err = secrets.NewCipherFromFile(settings.SecretsKeyFile); err != nil {
			return nil, fmt.Errorf("load secrets key: %w", err)
		}
	}
	s, err := secrets.Open(ctx, stage.SecretsFile, stage.Key, c)
	if err != nil {
		return nil, fmt.Errorf("open secrets store %s: %w", stage.SecretsFile, err)
	}
	return s, nil
}

// openJournal connects to the run journal. Journaling is best effort: a
// connection failure is logged and the run continues without it.
func openJournal(ctx context.Context, dsn string) store.Journal {
	if dsn == "" {
		return nil
	}
	j, err := store.NewPostgresStore(ctx, dsn)
	if err != nil {
		logging.Op().Warn("journal disabled", "error", err)
		return nil
	}
	return j
}

func awsOptions(region string, s config.Settings) awsapi.Options {
	return awsapi.Options{
		Region:          region,
		Profile:         s.AWSProfile,
		AccessKeyID:     s.AWSAccessKeyID,
		SecretAccessKey: s.AWSSecretAccessKey,
		SessionToken:    s.AWSSessionToken,
	}
}
