// Package cli implements the stac-client command line: walking, searching
// and downloading from a STAC API.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/helix-tools/stac-sdk-go/fetcher"
	"github.com/helix-tools/stac-sdk-go/types"
)

type app struct {
	v           *viper.Viper
	cfgFile     string
	registry    *prometheus.Registry
	walkMetrics *fetcher.Metrics
	logCloser   io.Closer
}

// Execute runs the stac-client command line and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCommand builds the stac-client command tree with its own viper
// instance.
func NewRootCommand() *cobra.Command {
	_, rootCmd := newApp()
	return rootCmd
}

func newApp() (*app, *cobra.Command) {
	a := &app{
		v:        viper.New(),
		registry: prometheus.NewRegistry(),
	}

	rootCmd := &cobra.Command{
		Use:          "stac-client",
		Short:        "Browse and download from STAC APIs",
		Long:         `stac-client walks the collections, items and assets of a STAC API, runs item searches and downloads assets over http(s) and s3.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := a.initConfig(); err != nil {
				return err
			}

			closer, err := SetupLogging(a.v)
			if err != nil {
				return err
			}
			a.logCloser = closer

			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.config/stac-client.toml)")

	flags := rootCmd.PersistentFlags()

	// catalog
	flags.String("endpoint", "", "STAC API root URL")
	a.bind(flags.Lookup("endpoint"), "stac.endpoint", "STAC_ENDPOINT")
	flags.Int("max-pages", types.DefaultMaxPages, "Maximum number of item pages per collection")
	a.bind(flags.Lookup("max-pages"), "stac.max_pages", "STAC_MAX_PAGES")
	flags.Int("limit", types.DefaultLimit, "Items per page")
	a.bind(flags.Lookup("limit"), "stac.limit", "STAC_LIMIT")
	flags.String("output-dir", "downloads", "Directory downloads are written to")
	a.bind(flags.Lookup("output-dir"), "stac.output_dir", "STAC_OUTPUT_DIR")

	// authentication
	flags.String("auth-type", string(types.AuthNone), "One of NONE, BASIC, BEARER, API_KEY, AWS_SIGV4")
	a.bind(flags.Lookup("auth-type"), "auth.type", "STAC_AUTH_TYPE")
	flags.String("username", "", "BASIC user name")
	a.bind(flags.Lookup("username"), "auth.username", "STAC_USERNAME")
	flags.String("password", "", "BASIC password")
	a.bind(flags.Lookup("password"), "auth.password", "STAC_PASSWORD")
	flags.String("token", "", "BEARER token")
	a.bind(flags.Lookup("token"), "auth.token", "STAC_TOKEN")
	flags.String("api-key-header", "X-API-Key", "API_KEY header name")
	a.bind(flags.Lookup("api-key-header"), "auth.header_name", "STAC_API_KEY_HEADER")
	flags.String("api-key", "", "API_KEY header value")
	a.bind(flags.Lookup("api-key"), "auth.header_value", "STAC_API_KEY")
	flags.String("aws-service", "execute-api", "AWS_SIGV4 service name")
	a.bind(flags.Lookup("aws-service"), "auth.aws_service", "STAC_AWS_SERVICE")

	// aws
	flags.String("region", types.DefaultRegion, "AWS region")
	a.bind(flags.Lookup("region"), "aws.region", "AWS_REGION")
	flags.String("aws-access-key-id", "", "AWS access key id; anonymous access when empty")
	a.bind(flags.Lookup("aws-access-key-id"), "aws.access_key_id", "AWS_ACCESS_KEY_ID")
	flags.String("aws-secret-access-key", "", "AWS secret access key")
	a.bind(flags.Lookup("aws-secret-access-key"), "aws.secret_access_key", "AWS_SECRET_ACCESS_KEY")
	flags.String("ssm-prefix", "", "Load the AWS key pair from SSM parameters under this prefix")
	a.bind(flags.Lookup("ssm-prefix"), "aws.ssm_prefix", "STAC_SSM_PREFIX")
	flags.Bool("validate-credentials", false, "Check AWS credentials with STS before running")
	a.bind(flags.Lookup("validate-credentials"), "aws.validate", "STAC_VALIDATE_CREDENTIALS")

	// metrics
	flags.String("metrics-file", "", "Write traversal counters to this file in Prometheus text format")
	a.bind(flags.Lookup("metrics-file"), "metrics.file", "STAC_METRICS_FILE")

	// logging
	flags.String("log-level", "info", "Logging level")
	a.bind(flags.Lookup("log-level"), "log.level", "LOG_LEVEL")
	flags.String("log-output", "stderr", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	a.bind(flags.Lookup("log-output"), "log.output", "LOG_OUTPUT")
	flags.Bool("log-pretty", false, "Human readable log output")
	a.bind(flags.Lookup("log-pretty"), "log.pretty", "LOG_PRETTY")
	flags.Bool("log-report-caller", false, "Log function name that called log statement")
	a.bind(flags.Lookup("log-report-caller"), "log.report_caller", "LOG_REPORT_CALLER")

	rootCmd.AddCommand(
		a.newInfoCommand(),
		a.newWalkCommand(),
		a.newSearchCommand(),
		a.newDownloadCommand(),
		a.newFetchCommand(),
		a.newCatCommand(),
	)

	// the log file is closed when a subcommand returns, failed or not
	for _, c := range rootCmd.Commands() {
		run := c.RunE
		c.RunE = func(cmd *cobra.Command, args []string) (err error) {
			defer func() {
				if cerr := a.closeLog(); err == nil {
					err = cerr
				}
			}()

			return run(cmd, args)
		}
	}

	return a, rootCmd
}

func (a *app) closeLog() error {
	if a.logCloser == nil {
		return nil
	}

	err := a.logCloser.Close()
	a.logCloser = nil

	return err
}

// bind ties a flag to a viper key and an environment variable.
func (a *app) bind(flag *pflag.Flag, key, env string) {
	if err := a.v.BindEnv(key, env); err != nil {
		log.Panic().Err(err).Msgf("could not bind %s", env)
	}
	if err := a.v.BindPFlag(key, flag); err != nil {
		log.Panic().Err(err).Msgf("could not bind %s", flag.Name)
	}
}

// initConfig reads the config file, if any.
func (a *app) initConfig() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
		return nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		a.v.AddConfigPath(home + "/.config")
		a.v.AddConfigPath(home)
	}
	a.v.AddConfigPath(".")
	a.v.SetConfigType("toml")
	a.v.SetConfigName("stac-client.toml")

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}
