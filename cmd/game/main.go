package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/user"

	"github.com/tomz197/dontblink/internal/config"
	"github.com/tomz197/dontblink/internal/log"
	"github.com/tomz197/dontblink/internal/loop/client"
	"github.com/tomz197/dontblink/internal/loop/server"
	"github.com/tomz197/dontblink/internal/storage/sqlite"
	"golang.org/x/term"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "game error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// stdout is the game screen, so logs only go to a file.
	var logOut io.Writer = io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := log.Init(cfg.LogLevel, logOut)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := sqlite.OpenStore(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	gameServer := server.NewServer(store, logger)
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		gameServer.Run(ctx)
	}()

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		cancel()
		<-serverDone
		return fmt.Errorf("failed to enable raw mode: %w", err)
	}

	c := client.NewClient(gameServer, bufio.NewReader(os.Stdin), os.Stdout, client.ClientOptions{
		Username:      localUser(),
		EyeTrackerURL: cfg.EyeTrackerURL,
		Seed:          cfg.Seed,
		Logger:        logger,
	})
	runErr := c.Run()
	_ = term.Restore(fd, oldState)

	// Run persists queued results before returning.
	cancel()
	<-serverDone
	return runErr
}

func localUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}
