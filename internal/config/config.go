// Package config reads and validates the process configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/mail"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Transport string

const (
	TransportSMTP  Transport = "smtp"
	TransportGmail Transport = "gmail"
)

const (
	DefaultEnvFile    = ".env"
	defaultPrefix     = "RO_"
	defaultWindow     = 7 * 24 * time.Hour
	defaultSMTPHost   = "smtp.gmail.com"
	defaultSMTPPort   = 465
	defaultTokenFile  = "token.json"
	defaultSecrets    = "creds.json"
	defaultRunTimeout = 2 * time.Minute
	defaultAuthWait   = 5 * time.Minute
	hoursPerDay       = 24
)

// Config is the validated configuration for one run.
type Config struct {
	FolderID    string
	FilePrefix  string
	StaleWindow time.Duration

	SenderEmail    string
	SenderPassword string
	ReceiverEmail  string
	Subject        string
	Transport      Transport
	SMTPHost       string
	SMTPPort       int
	StrictDelivery bool

	TokenFile         string
	ClientSecretsFile string

	LogLevel    slog.Level
	RunTimeout  time.Duration
	AuthTimeout time.Duration

	DryRun bool
}

// Error lists every missing or invalid setting found in one pass.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Options controls Load.
type Options struct {
	// EnvFile is loaded before reading the environment; variables already set win.
	EnvFile string
	// EnvFileRequired makes a missing EnvFile an error instead of being skipped.
	EnvFileRequired bool
	// DryRun skips validation of the delivery settings.
	DryRun bool
}

// Load reads the optional env file and then the process environment.
func Load(opts Options) (Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			if opts.EnvFileRequired || !errors.Is(err, fs.ErrNotExist) {
				return Config{}, &Error{Problems: []string{fmt.Sprintf("env file %s: %v", opts.EnvFile, err)}}
			}
		}
	}
	return FromLookup(os.LookupEnv, opts.DryRun)
}

// FromLookup builds a Config from lookup, collecting all problems into one *Error.
func FromLookup(lookup func(string) (string, bool), dryRun bool) (Config, error) {
	r := reader{lookup: lookup}
	cfg := Config{
		FolderID:          r.required("FOLDER_ID"),
		FilePrefix:        r.str("FILE_PREFIX", defaultPrefix),
		StaleWindow:       r.window("STALE_WINDOW", defaultWindow),
		Transport:         Transport(strings.ToLower(r.str("NOTIFY_TRANSPORT", string(TransportSMTP)))),
		SMTPHost:          r.str("SMTP_HOST", defaultSMTPHost),
		SMTPPort:          r.port("SMTP_PORT", defaultSMTPPort),
		StrictDelivery:    r.boolean("STRICT_DELIVERY", true),
		TokenFile:         r.str("TOKEN_FILE", defaultTokenFile),
		ClientSecretsFile: r.str("CLIENT_SECRETS_FILE", defaultSecrets),
		LogLevel:          r.level("LOG_LEVEL", slog.LevelInfo),
		RunTimeout:        r.duration("RUN_TIMEOUT", defaultRunTimeout),
		AuthTimeout:       r.duration("AUTH_TIMEOUT", defaultAuthWait),
		DryRun:            dryRun,
	}
	if cfg.Transport != TransportSMTP && cfg.Transport != TransportGmail {
		r.problem("NOTIFY_TRANSPORT must be smtp or gmail, got %q", cfg.Transport)
	}

	if !dryRun {
		cfg.SenderEmail = r.address("SENDER_EMAIL")
		cfg.ReceiverEmail = r.address("RECEIVER_EMAIL")
		cfg.Subject = r.required("SUBJECT_EMAIL")
		if cfg.Transport == TransportSMTP {
			cfg.SenderPassword = r.required("SENDER_PASSWORD")
		}
	}

	if len(r.problems) > 0 {
		return Config{}, &Error{Problems: r.problems}
	}
	return cfg, nil
}

type reader struct {
	lookup   func(string) (string, bool)
	problems []string
}

func (r *reader) problem(format string, args ...any) {
	r.problems = append(r.problems, fmt.Sprintf(format, args...))
}

func (r *reader) get(key string) string {
	v, _ := r.lookup(key)
	return strings.TrimSpace(v)
}

func (r *reader) str(key, def string) string {
	if v := r.get(key); v != "" {
		return v
	}
	return def
}

func (r *reader) required(key string) string {
	v := r.get(key)
	if v == "" {
		r.problem("%s is required", key)
	}
	return v
}

func (r *reader) address(key string) string {
	v := r.required(key)
	if v == "" {
		return ""
	}
	addr, err := mail.ParseAddress(v)
	if err != nil {
		r.problem("%s is not a valid email address: %v", key, err)
		return ""
	}
	return addr.Address
}

func (r *reader) port(key string, def int) int {
	v := r.get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > 65535 {
		r.problem("%s must be a TCP port, got %q", key, v)
		return def
	}
	return n
}

func (r *reader) boolean(key string, def bool) bool {
	v := r.get(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.problem("%s must be a boolean, got %q", key, v)
		return def
	}
	return b
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.get(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		r.problem("%s must be a positive duration, got %q", key, v)
		return def
	}
	return d
}

func (r *reader) window(key string, def time.Duration) time.Duration {
	v := r.get(key)
	if v == "" {
		return def
	}
	d, err := ParseWindow(v)
	if err != nil {
		r.problem("%s: %v", key, err)
		return def
	}
	return d
}

func (r *reader) level(key string, def slog.Level) slog.Level {
	v := r.get(key)
	if v == "" {
		return def
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		r.problem("%s must be debug, info, warn or error, got %q", key, v)
		return def
	}
	return lvl
}

// ParseWindow accepts a Go duration ("36h") or a whole number of days ("7d").
func ParseWindow(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		return time.Duration(n) * hoursPerDay * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid window %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("window must be positive, got %q", s)
	}
	return d, nil
}
