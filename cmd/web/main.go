package main

import (
	_ "embed"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/tomz197/dontblink/internal/config"
	"github.com/tomz197/dontblink/internal/log"
	"github.com/tomz197/dontblink/internal/relay"
)

//go:embed index.html
var htmlPage string

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := log.Init(cfg.LogLevel, os.Stderr)

	page := strings.ReplaceAll(htmlPage, "{{.SSHHost}}", cfg.SSHDisplayHost)
	page = strings.ReplaceAll(page, "{{.SSHPort}}", cfg.SSHPort)

	app := fiber.New(fiber.Config{
		AppName:               "dontblink",
		DisableStartupMessage: true,
	})

	hub := relay.NewHub(logger)
	hub.RegisterRoutes(app)

	app.Get("/", func(c *fiber.Ctx) error {
		c.Type("html", "utf-8")
		return c.SendString(page)
	})
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("starting web server", "addr", "http://"+cfg.WebAddr())
	go func() {
		if err := app.Listen(cfg.WebAddr()); err != nil {
			logger.Fatal("server error", "err", err)
		}
	}()

	<-done
	logger.Info("shutting down web server")
	// Closing the hub first ends subscriber sockets so Shutdown does not wait on them.
	hub.Close()
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		logger.Error("shutdown error", "err", err)
	}
}
