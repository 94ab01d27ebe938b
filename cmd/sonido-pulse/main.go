// Command sonido-pulse listens to live audio, tracks its tempo and sends a
// BEAT:<bpm> datagram on every detected beat.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	var flags overrides
	configPath := flag.String("config", os.Getenv("SONIDO_PULSE_CONFIG"), "path to a YAML config file")
	flag.StringVar(&flags.mode, "mode", "", "adaptive | constant (overrides config)")
	flag.StringVar(&flags.source, "source", "", "capture | wav | stdin (overrides config)")
	flag.StringVar(&flags.wav, "wav", "", "WAV file to replay, implies -source wav")
	flag.StringVar(&flags.logLevel, "log-level", "", "debug | info | warn | error (overrides config)")
	flag.BoolVar(&flags.printProfile, "print-profile", false, "print each frame's spectral profile")
	flag.Parse()

	app := fx.New(
		fx.Supply(configFile(*configPath), flags),
		fx.Provide(
			newConfig,
			newZapLogger,
			newMetrics,
			newService,
		),
		fx.Invoke(registerService),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
	)

	if err := app.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "sonido-pulse: %v\n", err)
		os.Exit(1)
	}

	// Blocks until SIGINT/SIGTERM or a shutdown request; exits non-zero when
	// the metronome stopped on a fatal error.
	app.Run()
}
