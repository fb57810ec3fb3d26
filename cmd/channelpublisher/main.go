package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"ChannelPublisher/internal/app"
	"ChannelPublisher/internal/config"
	"ChannelPublisher/internal/logging"
)

const envPrefix = "CHANNEL_PUBLISHER"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "channelpublisher",
		Short:         "Publish curated links to a Telegram channel",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "YAML config file (env "+envPrefix+"_CONFIG)")
	root.PersistentFlags().String("log-level", "", "debug, info, warn or error")
	_ = v.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("log-level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(
		newServeCommand(v),
		newPublishCommand(v),
		newFetchCommand(v),
		newRunCommand(v),
	)
	return root
}

// bootstrap loads configuration and builds the application.
func bootstrap(ctx context.Context, v *viper.Viper) (*app.Application, *zap.Logger, error) {
	cfg := config.Load(v.GetString("config"))
	if level := v.GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if addr := v.GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	logger := logging.New(cfg.Logging.Level)
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return application, logger, nil
}

func newServeCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP publish trigger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, logger, err := bootstrap(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return application.Serve(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "listen address, overrides server.addr")
	_ = v.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func newPublishCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Publish the next pending candidate once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, logger, err := bootstrap(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			res, err := application.Publish(cmd.Context())
			if err != nil {
				return err
			}
			if res.Candidate == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no pending candidate")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %s (%s)\n", res.Candidate.Name, res.Candidate.URL)
			return nil
		},
	}
}

func newFetchCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Acquire new candidates into the ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, logger, err := bootstrap(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			res, err := application.Fetch(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "acquired %d, inserted %d\n", res.Acquired, len(res.Inserted))
			return nil
		},
	}
}

func newRunCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Publish on the configured interval until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, logger, err := bootstrap(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return application.Run(cmd.Context())
		},
	}
}
