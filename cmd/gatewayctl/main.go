package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oriys/gatewayctl/internal/config"
	"github.com/oriys/gatewayctl/internal/logging"
)

var (
	configPath string
	envFile    string
	stageFlag  string
	logLevel   string
	logFormat  string
	outputFmt  string
	strictFlag bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "gatewayctl",
		Short:         "gatewayctl - declarative API gateway provisioning",
		Long:          "Reconciles gateways, authorizers, routes, usage plans, roles and functions from a TOML document",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "Configuration document")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVarP(&stageFlag, "stage", "s", "", "Stage to provision (default: $STAGE or dev)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Report format: table, yaml or json")
	rootCmd.PersistentFlags().BoolVar(&strictFlag, "strict", false, "Exit non-zero when any gateway, role or function fails")

	rootCmd.AddCommand(
		provisionCmd(),
		gatewaysCmd(),
		validateCmd(),
		historyCmd(),
		versionCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadDocument reads .env, the TOML document and the flag overrides, and
// configures logging from the result.
func loadDocument() (*config.Document, string, error) {
	if err := config.LoadDotenv(envFile); err != nil {
		return nil, "", err
	}
	doc, err := config.Load(configPath)
	if err != nil {
		return nil, "", err
	}

	if logLevel != "" {
		doc.Settings.LogLevel = logLevel
	}
	if logFormat != "" {
		doc.Settings.LogFormat = logFormat
	}
	if strictFlag {
		doc.Settings.Strict = true
	}
	logging.InitStructured(doc.Settings.LogFormat, doc.Settings.LogLevel)

	stage := stageFlag
	if stage == "" {
		stage = config.StageFromEnv(os.LookupEnv)
	}
	return doc, stage, nil
}

// resolve loads and normalizes the document for the selected stage.
func resolve() (*config.Resolved, error) {
	doc, stage, err := loadDocument()
	if err != nil {
		return nil, err
	}
	res, err := doc.Resolve(stage, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return res, nil
}
