package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/ultronhq/ultron/internal/api"
	"github.com/ultronhq/ultron/internal/chat"
	"github.com/ultronhq/ultron/internal/config"
	"github.com/ultronhq/ultron/internal/logging"
	"github.com/ultronhq/ultron/internal/tui"
)

// TUIInterface defines the methods required from the TUI package.
type TUIInterface interface {
	RunChat(ctx context.Context, ctrl *chat.Controller, opts tui.Options) error
}

// Dependencies holds the external dependencies for the commands.
// This allows for dependency injection and easier testing.
type Dependencies struct {
	// Client replaces the HTTP client built from the configuration.
	Client api.ClientInterface

	// TUI is the terminal user interface.
	TUI TUIInterface

	// Config replaces the configuration file and environment.
	Config *config.Config
	// ConfigPath is the file the config subcommands read and write; empty
	// means ~/.ultron/config.json.
	ConfigPath string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Set by the persistent flags
	Debug   bool
	BaseURL string
}

// DefaultTUI is the production implementation of TUIInterface.
type DefaultTUI struct{}

func (d *DefaultTUI) RunChat(ctx context.Context, ctrl *chat.Controller, opts tui.Options) error {
	return tui.RunChat(ctx, ctrl, opts)
}

// NewDependencies creates a new Dependencies struct with default implementations.
func NewDependencies() *Dependencies {
	return &Dependencies{
		TUI:    &DefaultTUI{},
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

func (d *Dependencies) configPath() (string, error) {
	if d.ConfigPath != "" {
		return d.ConfigPath, nil
	}
	return config.GetConfigPath()
}

// loadConfig returns the effective configuration: file, environment, then
// the --base-url flag.
func (d *Dependencies) loadConfig() (config.Config, error) {
	var cfg config.Config
	if d.Config != nil {
		cfg = *d.Config
	} else {
		path, err := d.configPath()
		if err != nil {
			return config.DefaultConfig(), err
		}
		if cfg, err = config.LoadConfigFrom(path); err != nil {
			return cfg, err
		}
	}

	if d.BaseURL != "" {
		cfg.BaseURL = d.BaseURL
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// backend bundles what a command needs to talk to the assistant
type backend struct {
	cfg    config.Config
	logger zerolog.Logger
	client api.ClientInterface
	logs   io.Closer
}

func (b *backend) Close() {
	b.client.Close()
	_ = b.logs.Close()
}

// open loads the configuration, the logger and the client. Interactive
// commands pass console=false: the chat UI owns the terminal, so logs always
// go to the log file there.
func (d *Dependencies) open(console bool) (*backend, error) {
	cfg, err := d.loadConfig()
	if err != nil {
		return nil, err
	}

	opts := logging.Options{Level: cfg.LogLevel}
	if d.Debug {
		opts.Level = "debug"
	}
	if console && d.Debug {
		opts.Console = true
	} else {
		path, err := config.GetLogPath(cfg)
		if err != nil {
			return nil, err
		}
		opts.File = path
	}
	logger, logs, err := logging.New(opts)
	if err != nil {
		return nil, err
	}

	client := d.Client
	if client == nil {
		c, err := api.NewClient(
			api.WithBaseURL(cfg.BaseURL),
			api.WithAPIPrefix(cfg.APIPrefix),
			api.WithTimeout(cfg.RequestTimeoutDuration()),
			api.WithIdleTimeout(cfg.StreamIdleTimeoutDuration()),
			api.WithLogger(logger),
		)
		if err != nil {
			_ = logs.Close()
			return nil, fmt.Errorf("failed to create client: %w", err)
		}
		client = c
	}

	return &backend{cfg: cfg, logger: logger, client: client, logs: logs}, nil
}

// stdoutIsTerminal reports whether decorated output makes sense
func (d *Dependencies) stdoutIsTerminal() bool {
	f, ok := d.Stdout.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// stdinIsPiped reports whether a prompt can be read from stdin
func (d *Dependencies) stdinIsPiped() bool {
	if d.Stdin == nil {
		return false
	}
	f, ok := d.Stdin.(*os.File)
	if !ok {
		return true
	}
	stat, err := f.Stat()
	return err == nil && (stat.Mode()&os.ModeCharDevice) == 0
}
