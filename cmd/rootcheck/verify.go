package rootcheck

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/manifest-network/rootcheck/internal/client"
	"github.com/manifest-network/rootcheck/internal/config"
	"github.com/manifest-network/rootcheck/internal/metrics"
	"github.com/manifest-network/rootcheck/internal/output"
	"github.com/manifest-network/rootcheck/internal/verifier"
)

func newVerifyCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the transactions-root and receipts-roots of one block",
		Example: `  rootcheck verify --height 3674822
  rootcheck verify --latest --endpoint http://localhost:4000/v1/graphql --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadVerifyConfig(v)
			if err != nil {
				return &exitError{code: ExitFatal, err: err}
			}
			return runVerify(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.String(config.KeyEndpoint, config.DefaultEndpoint, "Fuel GraphQL endpoint")
	flags.Uint64(config.KeyHeight, 0, "height of the block to verify")
	flags.Bool(config.KeyLatest, false, "verify the latest block known to the node")
	flags.Uint(config.KeyMaxRetries, config.DefaultMaxRetries, "retries for failed requests")
	flags.Duration(config.KeyTimeout, config.DefaultTimeout, "timeout of a single request")
	flags.Uint(config.KeyMaxConcurrency, config.DefaultMaxConcurrency, "transactions checked in parallel")
	flags.String(config.KeyOutput, config.OutputText, "report format (text or json)")
	flags.Bool(config.KeyProgress, false, "display a progress bar")
	flags.String(config.KeyPushgateway, "", "Prometheus Pushgateway URL to push run metrics to")
	flags.String(config.KeyPushJob, metrics.DefaultJobName, "Pushgateway job name")
	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}
	return cmd
}

func runVerify(ctx context.Context, cfg config.VerifyConfig, stdout, stderr io.Writer) error {
	fetcher, err := client.NewGraphQLClient(client.Options{
		Endpoint:   cfg.Endpoint,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return &exitError{code: ExitFatal, err: err}
	}

	reporter := newReporter(cfg.Output, stdout)
	opts := []verifier.Option{
		verifier.WithReporter(reporter),
		verifier.WithConcurrency(cfg.MaxConcurrency),
	}
	var bar *progressbar.ProgressBar
	if cfg.Progress {
		bar = newProgressBar(stderr)
		opts = append(opts, verifier.WithProgress(bar))
	}

	m := metrics.NewMetrics(cfg.Pushgateway, cfg.PushJob)
	v := verifier.New(fetcher, opts...)

	var summary *verifier.Summary
	if cfg.Latest {
		summary, err = v.VerifyLatest(ctx)
	} else {
		summary, err = v.VerifyHeight(ctx, cfg.Height)
	}

	if bar != nil {
		if finishErr := bar.Finish(); finishErr != nil {
			slog.Warn("Failed to finish progress bar", "error", finishErr)
		}
	}
	if pushErr := m.Push(context.WithoutCancel(ctx)); pushErr != nil {
		slog.Warn("Failed to push metrics", "error", pushErr)
	}

	if err != nil {
		reporter.Failure(err)
		return &exitError{code: exitCode(err), err: err, reported: true}
	}
	reporter.Success(summary)
	return nil
}

func exitCode(err error) int {
	if errors.Is(err, verifier.ErrVerificationFailed) {
		return ExitMismatch
	}
	return ExitFatal
}

func newReporter(format string, w io.Writer) output.Reporter {
	if format == config.OutputJSON {
		return output.NewJSONReporter(w)
	}
	return output.NewTextReporter(w, w == os.Stdout && !color.NoColor)
}

func newProgressBar(w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetDescription("Verifying transactions..."),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
