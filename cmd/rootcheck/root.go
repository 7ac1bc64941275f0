package rootcheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/manifest-network/rootcheck/internal/config"
)

// Process exit codes.
const (
	ExitOK       = 0
	ExitMismatch = 1
	ExitFatal    = 2
)

const envPrefix = "ROOTCHECK"

// exitError carries the exit code of a failed command. reported is set when the
// error has already been written by a reporter.
type exitError struct {
	code     int
	err      error
	reported bool
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// NewRootCmd builds the command tree around its own viper instance.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)

	var (
		cfgFile   string
		logCloser io.Closer
	)

	cmd := &cobra.Command{
		Use:           "rootcheck",
		Short:         "Independently verify the commitments of Fuel blocks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initConfig(v, cfgFile); err != nil {
				return err
			}
			logCfg, err := config.LoadLogConfig(v)
			if err != nil {
				return err
			}
			logCloser, err = setupLogger(logCfg, cmd.ErrOrStderr())
			return err
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if logCloser != nil {
				return logCloser.Close()
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.String(config.KeyLogLevel, "info", "log level (debug, info, warn, error)")
	flags.String(config.KeyLogFormat, config.LogFormatText, "log format (text or json)")
	flags.String(config.KeyLogFile, "", "write logs to this file instead of stderr, with rotation")
	flags.Int(config.KeyLogMaxSizeMB, 100, "maximum size of the log file before it is rotated")
	flags.Int(config.KeyLogMaxBackups, 3, "maximum number of rotated log files to keep")
	flags.Int(config.KeyLogMaxAgeDays, 28, "maximum number of days to keep rotated log files")
	flags.Bool(config.KeyLogCompress, false, "compress rotated log files")
	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}

	cmd.AddCommand(newVerifyCmd(v), newMerkleRootCmd())
	return cmd
}

func initConfig(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile == "" {
		return nil
	}
	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
	}
	slog.Debug("Using config file", "path", v.ConfigFileUsed())
	return nil
}

// setupLogger installs the default slog logger. The returned closer is non-nil when logs go to a file.
func setupLogger(cfg config.LogConfig, stderr io.Writer) (io.Closer, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}

	var (
		w      = stderr
		closer io.Closer
	)
	if cfg.Filename != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSizeInMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeInDays,
			Compress:   cfg.CompressBackup,
		}
		w, closer = rotating, rotating
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
	return closer, nil
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		if !exitErr.reported {
			fmt.Fprintf(stderr, "Error: %v\n", exitErr.err)
		}
		return exitErr.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return ExitFatal
}

// Execute runs rootcheck with the process arguments and exits.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
