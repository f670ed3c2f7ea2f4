// Command panotiles replays a camera path over a tiled image and writes
// the last frame as a PNG.
//
// Configuration comes from flags, PANOTILES_* environment variables, an
// optional .env file and an optional config file:
//
//	panotiles --input photo.jpg --camera path.json --output frame.png
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/gogpu/pano"
)

func main() {
	// A missing .env is fine.
	_ = godotenv.Load(".env")

	conf, err := loadConfig(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "panotiles:", err)
		os.Exit(2)
	}

	logger, closer, err := newLogger(conf, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "panotiles:", err)
		os.Exit(2)
	}
	defer closer.Close()
	pano.SetLogger(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rep, err := run(ctx, conf, logger)
	if err != nil {
		logger.Error("run failed", "err", err)
		closer.Close()
		os.Exit(1)
	}
	logger.Info("frame written",
		"output", conf.Output,
		"steps", len(rep.Steps),
		"stable", rep.Stable())
}

// newLogger writes text records to stderr and, when a log file is
// configured, to a size-rotated file.
func newLogger(conf config, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := conf.level()
	if err != nil {
		return nil, nil, err
	}

	w := stderr
	var closer io.Closer = nopCloser{}
	if conf.LogFile != "" {
		file := &lumberjack.Logger{
			Filename:   conf.LogFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
		}
		w = io.MultiWriter(stderr, file)
		closer = file
	}

	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
