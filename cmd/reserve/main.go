// Command reserve runs a single booking attempt from the command line. It
// loads the configuration, launches the browser and polls until a seat is
// booked, a fatal fault ends the session, or the process is interrupted.
//
// Exit codes: 0 booked, 1 session failed, 2 invalid input.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/pflag"

	"github.com/eogh234/srt-reservation/config"
	"github.com/eogh234/srt-reservation/internal/browser/pw"
	"github.com/eogh234/srt-reservation/internal/engine"
	"github.com/eogh234/srt-reservation/internal/handler"
	"github.com/eogh234/srt-reservation/internal/middleware"
	"github.com/eogh234/srt-reservation/internal/notify"
	"github.com/eogh234/srt-reservation/internal/repository"
	"github.com/eogh234/srt-reservation/internal/validation"
	"github.com/eogh234/srt-reservation/pkg/database"
	"github.com/eogh234/srt-reservation/pkg/rabbitmq"
)

func main() {
	os.Exit(run())
}

func run() int {
	// --config has to be known before the full flag set exists
	boot := pflag.NewFlagSet("boot", pflag.ContinueOnError)
	boot.ParseErrorsWhitelist.UnknownFlags = true
	boot.Usage = func() {}
	configPath := boot.String("config", "config.yaml", "path to the yaml config file")
	_ = boot.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("[Main] %v", err)
		return 2
	}

	fs := pflag.NewFlagSet("reserve", pflag.ExitOnError)
	fs.String("config", *configPath, "path to the yaml config file")
	cfg.Flags(fs)
	_ = fs.Parse(os.Args[1:])

	query := cfg.Query()
	if err := validation.ValidateQuery(query); err != nil {
		log.Printf("[Main] invalid trip: %v", err)
		return 2
	}
	if cfg.LoginID == "" || cfg.LoginPassword == "" {
		log.Printf("[Main] login credentials are required")
		return 2
	}

	layout, err := cfg.Layout()
	if err != nil {
		log.Printf("[Main] %v", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	drv, err := pw.Launch(pw.Options{Headless: cfg.Headless})
	if err != nil {
		log.Printf("[Main] browser launch failed: %v", err)
		return 1
	}
	defer drv.Close()

	session := engine.NewSession(query, cfg.Credentials())

	sinks := notify.Multi{}
	if cfg.DiscordWebhookURL != "" {
		sinks = append(sinks, notify.NewWebhook(cfg.DiscordWebhookURL, 10*time.Second))
	}
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL)
		if err != nil {
			log.Printf("[Main] RabbitMQ unavailable, continuing without it: %v", err)
		} else {
			defer pub.Close()
			sinks = append(sinks, notify.NewAMQP(pub, session.ID))
		}
	}

	var repo repository.SessionRepository
	if cfg.HasDB() {
		repo = repository.NewSessionRepository(database.NewPostgresDB(cfg.DSN()))
	}

	registry := engine.NewRegistry()
	registry.Add(session)
	if repo != nil {
		if err := repo.Create(ctx, session.Record()); err != nil {
			log.Printf("[Main] journal write failed: %v", err)
		}
	}

	startStatusServer(cfg.ServerPort, registry, repo)

	runErr := engine.New(drv, sinks, engine.Config{Layout: layout}).Run(ctx, session)

	if repo != nil {
		if err := repo.Update(context.Background(), session.Record()); err != nil {
			log.Printf("[Main] journal update failed: %v", err)
		}
	}

	if runErr != nil {
		log.Printf("[Main] session %s failed: %v", session.ID, runErr)
		return 1
	}
	log.Printf("[Main] session %s finished: %s", session.ID, session.State())
	return 0
}

// startStatusServer exposes the read-only session API in the background.
// The server dies with the process; a failed bind is logged, not fatal.
func startStatusServer(port string, registry *engine.Registry, repo repository.SessionRepository) {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.Use(echoMw.RequestLoggerWithConfig(echoMw.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echoMw.RequestLoggerValues) error {
			log.Printf("%s %s %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(echoMw.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "service": "srt-reservation"})
	})

	handler.NewSessionHandler(registry, repo).RegisterRoutes(e)

	go func() {
		log.Printf("[Main] status API on :%s", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			log.Printf("[Main] status API stopped: %v", err)
		}
	}()
}
