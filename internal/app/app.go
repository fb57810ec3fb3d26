package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"ChannelPublisher/internal/capture"
	"ChannelPublisher/internal/config"
	"ChannelPublisher/internal/docstore"
	"ChannelPublisher/internal/infrastructure/browser"
	"ChannelPublisher/internal/infrastructure/githubstore"
	"ChannelPublisher/internal/infrastructure/httpapi"
	"ChannelPublisher/internal/infrastructure/linkmeta"
	"ChannelPublisher/internal/infrastructure/llm"
	"ChannelPublisher/internal/infrastructure/localstore"
	"ChannelPublisher/internal/infrastructure/parser"
	"ChannelPublisher/internal/infrastructure/scheduler"
	"ChannelPublisher/internal/infrastructure/telegram"
	"ChannelPublisher/internal/ledger"
	"ChannelPublisher/internal/logging"
	"ChannelPublisher/internal/ports"
	"ChannelPublisher/internal/scanner"
	"ChannelPublisher/internal/usecase"
)

const shutdownTimeout = 15 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *zap.Logger
	pipeline *usecase.Pipeline
}

// New builds the application from configuration. Missing credentials do not
// fail construction; they are reported by Config.Validate before each run.
func New(ctx context.Context, cfg config.Config, baseLogger *zap.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	backend, err := newBackend(cfg.Store)
	if err != nil {
		return nil, err
	}
	store := docstore.New(backend, baseLogger.Named("docstore"))
	book := ledger.New(store, ledger.Options{
		DataDir:    cfg.Store.DataDir,
		ConfigPath: cfg.Store.ConfigPath,
		Logger:     baseLogger.Named("ledger"),
	})

	fetchClient := &http.Client{Timeout: cfg.Acquisition.Timeout}
	registry := scanner.NewRegistry()
	registry.Register(parser.NewFeedScanner(fetchClient, nil))
	registry.Register(parser.NewCatalogScanner(fetchClient))
	source := parser.NewStrategySource(registry, cfg.Acquisition, baseLogger.Named("source"))

	meta, err := linkmeta.New(cfg.LinkMeta, cfg.Store.Token, nil, baseLogger.Named("linkmeta"))
	if err != nil {
		return nil, err
	}

	var gemini *llm.GeminiClient
	if cfg.Gemini.APIKey != "" {
		gemini, err = llm.NewGeminiClient(ctx, cfg.Gemini)
		if err != nil {
			return nil, err
		}
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:           source,
		Ledger:           book,
		Metadata:         meta,
		Capturer:         newCapturer(cfg.Capture, gemini, baseLogger.Named("capture")),
		Publisher:        telegram.NewPublisher(cfg.Telegram, baseLogger.Named("telegram")),
		Summarizer:       newSummarizer(cfg, gemini),
		Logger:           baseLogger.Named("pipeline"),
		RefreshOnPublish: cfg.Acquisition.RefreshOnPublish,
		AcquireTimeout:   cfg.Acquisition.Timeout,
		SummarizeTimeout: cfg.Summarizer.Timeout,
	})
	return &Application{cfg: cfg, logger: baseLogger, pipeline: pipeline}, nil
}

func newBackend(cfg config.StoreConfig) (ports.DocumentBackend, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		return localstore.New(cfg.LocalDir), nil
	case config.BackendGitHub, "":
		return githubstore.New(cfg, nil)
	default:
		return nil, fmt.Errorf("store backend %q: %w", cfg.Backend, errUnknownBackend)
	}
}

var errUnknownBackend = errors.New("unknown store backend")

func newCapturer(cfg config.CaptureConfig, gemini *llm.GeminiClient, logger *zap.Logger) *capture.Stage {
	opts := capture.Options{
		PlaceholderURL: cfg.PlaceholderURL,
		Prompt:         cfg.GeneratedPrompt,
		Timeout:        cfg.NavigateTimeout + cfg.IdleTimeout + 30*time.Second,
		Logger:         logger,
	}
	switch cfg.Renderer {
	case config.RendererRod:
		opts.Renderer = browser.NewRenderer(cfg, logger)
	case config.RendererGenerated:
		if gemini != nil {
			opts.Generator = gemini
		}
		opts.Timeout = cfg.GenerateTimeout
	}
	return capture.New(opts)
}

func newSummarizer(cfg config.Config, gemini *llm.GeminiClient) ports.Summarizer {
	switch cfg.Summarizer.Provider {
	case config.ProviderGemini:
		if gemini != nil {
			return gemini
		}
	case config.ProviderChatGPT:
		if cfg.ChatGPT.APIKey != "" {
			return llm.NewChatGPTClient(cfg.ChatGPT, cfg.Summarizer.Timeout)
		}
	}
	return nil
}

// Publish runs one publish invocation after the credential preflight.
func (a *Application) Publish(ctx context.Context) (usecase.PublishResult, error) {
	if err := a.cfg.Validate(); err != nil {
		return usecase.PublishResult{}, err
	}
	return a.pipeline.Publish(ctx)
}

// Fetch runs one acquisition pass.
func (a *Application) Fetch(ctx context.Context) (usecase.FetchResult, error) {
	if err := a.cfg.Validate(); err != nil {
		return usecase.FetchResult{}, err
	}
	return a.pipeline.Fetch(ctx)
}

// Handler returns the HTTP trigger.
func (a *Application) Handler() http.Handler {
	return httpapi.NewRouter(a.pipeline, httpapi.Options{
		Path:      a.cfg.Server.Path,
		Preflight: a.cfg.Validate,
		Timeout:   a.cfg.Server.Timeout,
		Logger:    a.logger.Named("http"),
	})
}

// Serve listens for triggers until ctx ends.
func (a *Application) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http trigger listening", zap.String("addr", srv.Addr), zap.String("path", a.cfg.Server.Path))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http trigger: %w", err)
	}
	return nil
}

// Run publishes on the configured interval until ctx ends.
func (a *Application) Run(ctx context.Context) error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	driver := scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval, a.cfg.Scheduler.Location())
	sched := usecase.NewScheduler(driver, a.pipeline, a.cfg.Scheduler.RunTimeout, a.logger.Named("scheduler"))
	if err := sched.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("scheduler started", zap.Duration("interval", a.cfg.Scheduler.Interval))

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return sched.Stop(stopCtx)
}
