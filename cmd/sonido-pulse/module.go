package main

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/RyanBlaney/sonido-pulse/config"
	"github.com/RyanBlaney/sonido-pulse/logging"
	"github.com/RyanBlaney/sonido-pulse/metronome"
	"github.com/RyanBlaney/sonido-pulse/observe"
)

// configFile is the -config flag
type configFile string

// overrides are command line settings applied over the loaded config
type overrides struct {
	mode         string
	source       string
	wav          string
	logLevel     string
	printProfile bool
}

func (o overrides) apply(cfg *config.Config) {
	if o.mode != "" {
		cfg.Mode = config.Mode(o.mode)
	}
	if o.source != "" {
		cfg.Source.Kind = config.SourceKind(o.source)
	}
	if o.wav != "" {
		cfg.Source.Kind = config.SourceWAV
		cfg.Source.Path = o.wav
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.printProfile {
		cfg.PrintProfile = true
	}
}

func newConfig(path configFile, flags overrides) (*config.Config, error) {
	cfg, err := config.Load(string(path))
	if err != nil {
		return nil, err
	}
	flags.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newZapLogger builds the process logger and installs it as the global
// logging backend.
func newZapLogger(cfg *config.Config, lc fx.Lifecycle) (*zap.Logger, error) {
	logger, err := logging.NewZap(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	global := logging.NewZapLogger(logger)
	global.SetLevel(logging.ParseLevel(cfg.LogLevel))
	logging.SetGlobalLogger(global)

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			// Sync on a terminal stderr reports EINVAL; nothing to flush there
			_ = logger.Sync()
			return nil
		},
	})
	return logger, nil
}

// newMetrics returns live instruments with a /metrics endpoint when enabled
// and no-op instruments otherwise.
func newMetrics(cfg *config.Config, lc fx.Lifecycle, logger *zap.Logger) (*observe.Metrics, error) {
	if !cfg.Metrics.Enabled {
		return observe.NopMetrics(), nil
	}

	provider, err := observe.InitProvider(observe.ProviderConfig{})
	if err != nil {
		return nil, err
	}
	metrics, err := observe.NewMetrics(provider.MeterProvider)
	if err != nil {
		return nil, err
	}

	var server *observe.Server
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			srv, err := observe.NewServer(cfg.Metrics.Address, provider.Handler())
			if err != nil {
				return err
			}
			server = srv
			server.Start()
			logger.Info("Metrics endpoint ready", zap.String("addr", server.Addr()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if server != nil {
				if err := server.Stop(ctx); err != nil {
					logger.Warn("Metrics server shutdown", zap.Error(err))
				}
			}
			return provider.Shutdown(ctx)
		},
	})
	return metrics, nil
}

func newService(cfg *config.Config, metrics *observe.Metrics, shutdowner fx.Shutdowner, logger *zap.Logger) *metronome.Service {
	return metronome.NewService(cfg, metrics, metronome.WithExitHandler(func(err error) {
		code := 0
		if err != nil {
			code = 1
		}
		if serr := shutdowner.Shutdown(fx.ExitCode(code)); serr != nil {
			logger.Error("Failed to request shutdown", zap.Error(serr))
		}
	}))
}

func registerService(lc fx.Lifecycle, svc *metronome.Service, cfg *config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting metronome",
				zap.String("mode", string(cfg.Mode)),
				zap.String("source", string(cfg.Source.Kind)),
				zap.String("sink", cfg.Sink.Addr()),
				zap.Float64("initial_bpm", cfg.Beat.InitialBPM),
			)
			return svc.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			if err := svc.Stop(stopCtx); err != nil {
				logger.Error("Metronome stopped with error", zap.Error(err))
				return err
			}
			logger.Info("Metronome stopped")
			return nil
		},
	})
}
