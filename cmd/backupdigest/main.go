package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshsymonds/backupdigest/internal/config"
	"github.com/joshsymonds/backupdigest/internal/credential"
	"github.com/joshsymonds/backupdigest/internal/digest"
	"github.com/joshsymonds/backupdigest/internal/drive"
	"github.com/joshsymonds/backupdigest/internal/notify"
	"github.com/joshsymonds/backupdigest/internal/runtime"
)

const (
	exitFailure = 1
	exitConfig  = 2
)

type cliConfig struct {
	envFile   string
	dryRun    bool
	logFormat string
}

func main() {
	cli := parseFlags()
	level := new(slog.LevelVar)
	logger := runtime.NewLogger(os.Stderr, level, cli.logFormat)
	if err := run(cli, logger, level); err != nil {
		os.Exit(fail(logger, err))
	}
}

func parseFlags() cliConfig {
	envFile := flag.String("env-file", "", "load variables from this file (default .env if present)")
	dryRun := flag.Bool("dry-run", false, "print the report to stdout instead of emailing it")
	logFormat := flag.String("log-format", "text", "log format: text or json")
	flag.Parse()

	return cliConfig{
		envFile:   *envFile,
		dryRun:    *dryRun,
		logFormat: *logFormat,
	}
}

// run executes one digest. The logger exists before configuration is read so
// that a failure line carries the same run id; level is set once LOG_LEVEL is known.
func run(cli cliConfig, logger *slog.Logger, level *slog.LevelVar) error {
	envFile, required := cli.envFile, true
	if envFile == "" {
		envFile, required = config.DefaultEnvFile, false
	}
	cfg, err := config.Load(config.Options{EnvFile: envFile, EnvFileRequired: required, DryRun: cli.dryRun})
	if err != nil {
		return err
	}
	level.Set(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	manager := runtime.NewCredentialManager(cfg.TokenFile, cfg.ClientSecretsFile, logger)
	authCtx, cancelAuth := context.WithTimeout(ctx, cfg.AuthTimeout)
	sess, err := manager.AcquireSession(authCtx, runtime.ScopesFor(cfg.Transport))
	cancelAuth()
	if err != nil {
		return fmt.Errorf("acquire session: %w", err)
	}

	runCtx, cancelRun := context.WithTimeout(ctx, cfg.RunTimeout)
	defer cancelRun()

	client, err := runtime.NewDriveClient(runCtx, sess)
	if err != nil {
		return err
	}
	sender, err := newSender(runCtx, cfg, sess, logger)
	if err != nil {
		return err
	}

	svc := digest.NewService(drive.NewLister(client, logger), sender, logger)
	res, err := svc.Run(runCtx, digest.Spec{
		FolderID: cfg.FolderID,
		Prefix:   cfg.FilePrefix,
		Window:   cfg.StaleWindow,
		Subject:  cfg.Subject,
		From:     cfg.SenderEmail,
		To:       cfg.ReceiverEmail,
		DryRun:   cfg.DryRun,
		Output:   os.Stdout,
		Lenient:  !cfg.StrictDelivery,
	})
	if err != nil {
		return fmt.Errorf("run digest: %w", err)
	}
	logger.Info("digest complete",
		slog.Int("total", res.Total),
		slog.Int("stale", res.Stale),
		slog.Bool("delivered", res.Delivered),
	)
	return nil
}

func newSender(
	ctx context.Context,
	cfg config.Config,
	sess *credential.Session,
	logger *slog.Logger,
) (notify.Sender, error) {
	if cfg.Transport == config.TransportGmail {
		client, err := runtime.NewGmailClient(ctx, sess)
		if err != nil {
			return nil, err
		}
		return &notify.GmailSender{Client: client, Logger: logger}, nil
	}
	return notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SenderEmail, cfg.SenderPassword, logger), nil
}

func fail(logger *slog.Logger, err error) int {
	logger.Error("backupdigest failed", slog.Any("error", err))
	return exitCode(err)
}

func exitCode(err error) int {
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		return exitConfig
	}
	return exitFailure
}
