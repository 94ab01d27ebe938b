// Command beat-listen prints the beat datagrams sent by sonido-pulse.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RyanBlaney/sonido-pulse/emit"
	"github.com/RyanBlaney/sonido-pulse/logging"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9999", "UDP address to listen on")
	level := flag.String("log-level", "info", "debug | info | warn | error")
	flag.Parse()

	logger, err := logging.NewZap(*level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "beat-listen: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logging.SetGlobalLogger(logging.NewZapLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := emit.Listen(*addr)
	if err != nil {
		logging.Error(err, "Failed to bind")
		os.Exit(1)
	}
	defer listener.Close()

	logging.Info("Listening for beats", logging.Fields{"addr": listener.Addr().String()})

	var last time.Time
	err = listener.Serve(ctx, func(bpm float64, from net.Addr) {
		now := time.Now()
		fields := logging.Fields{"bpm": bpm, "from": from.String()}
		if !last.IsZero() {
			fields["since_last_ms"] = now.Sub(last).Milliseconds()
		}
		last = now
		logging.Info("Beat received", fields)
	})
	if err != nil {
		logging.Error(err, "Listener stopped")
		os.Exit(1)
	}
	logging.Info("Interrupted; stopping")
}
