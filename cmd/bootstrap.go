package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jheroy/Redmine-desktop/pkg/app"
	"github.com/jheroy/Redmine-desktop/pkg/args"
	"github.com/jheroy/Redmine-desktop/pkg/cache"
	"github.com/jheroy/Redmine-desktop/pkg/config"
	"github.com/jheroy/Redmine-desktop/pkg/logging"
	"github.com/jheroy/Redmine-desktop/pkg/output"
	"github.com/jheroy/Redmine-desktop/pkg/redmine"
)

// session is the state shared by the commands of one invocation
type session struct {
	cfg       *config.Config
	cfgPath   string
	log       *zap.Logger
	client    *redmine.Client
	app       *app.App
	formatter *output.Formatter
	urls      *redmine.URLBuilder
}

// openSession loads the config, opens the cache and builds the app.
// A missing server configuration yields an unconfigured app.
func openSession(ctx context.Context) (*session, error) {
	log := logging.New(verboseLog)

	path, err := config.ResolvePath(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Warn("using default configuration", zap.String("path", path), zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", path, err)
	}

	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}

	store, err := cache.OpenSQLite(ctx, cfg.CachePath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	opts := app.OptionsFromConfig(cfg)
	opts.Store = store
	opts.Log = log

	s := &session{
		cfg:       cfg,
		cfgPath:   path,
		log:       log,
		formatter: output.NewFormatter(format),
		urls:      redmine.NewURLBuilder(cfg.Server.URL),
	}

	if cfg.IsConfigured() {
		client, err := redmine.NewClient(redmine.ClientOptions{
			URL:     cfg.Server.URL,
			APIKey:  cfg.Server.APIKey,
			Timeout: cfg.Refresh.RequestTimeout,
		})
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		s.client = client
		opts.API = client
	}

	s.app = app.New(ctx, opts)
	return s, nil
}

// requireServer returns an error when no server is configured
func (s *session) requireServer() error {
	if s.client == nil {
		return fmt.Errorf("no server configured; run 'redmine-desktop init' first")
	}
	return nil
}

// Close flushes the cache and releases the store
func (s *session) Close() {
	if err := s.app.Close(); err != nil {
		s.log.Warn("failed to close cache", zap.Error(err))
	}
	_ = s.log.Sync()
}

func (s *session) outputOptions() output.Options {
	return output.Options{
		Members:                s.app.Members(),
		URLs:                   s.urls,
		AssistingWatchersField: s.app.AssistingWatchersField(),
	}
}

// connect requires a configured server and loads the user and enumerations
func (s *session) connect(ctx context.Context) error {
	if err := s.requireServer(); err != nil {
		return err
	}
	return s.app.Connect(ctx)
}

// lookup returns the name tables used to resolve selection flags
func (s *session) lookup() args.Lookup {
	l := args.Lookup{Projects: s.app.Projects(), Statuses: s.app.Statuses()}
	if user := s.app.CurrentUser(); user != nil {
		l.CurrentUserID = user.ID
	}
	return l
}

// parseIssueID accepts "123" or "#123"
func parseIssueID(value string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(value), "#"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid issue number: %s", value)
	}
	return id, nil
}
