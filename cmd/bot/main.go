// Command bot runs the Telegram front end. Each chat walks through the trip
// wizard; a completed wizard starts a booking session in its own browser
// and streams progress back to the chat.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
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
	"github.com/eogh234/srt-reservation/internal/wizard"
	"github.com/eogh234/srt-reservation/pkg/database"
	"github.com/eogh234/srt-reservation/pkg/rabbitmq"
)

type app struct {
	cfg      *config.Config
	registry *engine.Registry
	repo     repository.SessionRepository
	rabbit   *rabbitmq.Publisher

	mu      sync.Mutex
	convos  map[int64]*wizard.Conversation
	running map[int64]string
}

func main() {
	boot := pflag.NewFlagSet("boot", pflag.ContinueOnError)
	boot.ParseErrorsWhitelist.UnknownFlags = true
	boot.Usage = func() {}
	configPath := boot.String("config", "config.yaml", "path to the yaml config file")
	_ = boot.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[Bot] %v", err)
	}

	fs := pflag.NewFlagSet("bot", pflag.ExitOnError)
	fs.String("config", *configPath, "path to the yaml config file")
	cfg.Flags(fs)
	_ = fs.Parse(os.Args[1:])

	if cfg.TelegramToken == "" {
		log.Fatalf("[Bot] TELEGRAM_TOKEN is required")
	}
	if cfg.LoginID == "" || cfg.LoginPassword == "" {
		log.Fatalf("[Bot] login credentials are required")
	}

	a := &app{
		cfg:      cfg,
		registry: engine.NewRegistry(),
		convos:   make(map[int64]*wizard.Conversation),
		running:  make(map[int64]string),
	}

	if cfg.HasDB() {
		a.repo = repository.NewSessionRepository(database.NewPostgresDB(cfg.DSN()))
	}
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL)
		if err != nil {
			log.Printf("[Bot] RabbitMQ unavailable, continuing without it: %v", err)
		} else {
			defer pub.Close()
			a.rabbit = pub
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := bot.New(cfg.TelegramToken, bot.WithDefaultHandler(a.handleUpdate))
	if err != nil {
		log.Fatalf("[Bot] telegram init failed: %v", err)
	}

	a.startStatusServer()

	log.Printf("[Bot] listening for updates")
	b.Start(ctx)
}

func (a *app) handleUpdate(ctx context.Context, b *bot.Bot, update *tgmodels.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	chatID := update.Message.Chat.ID
	text := update.Message.Text

	switch text {
	case "/start":
		a.mu.Lock()
		c := wizard.New()
		a.convos[chatID] = c
		a.mu.Unlock()
		a.send(ctx, b, chatID, c.Start())
		return
	case "/status":
		a.send(ctx, b, chatID, a.statusText(chatID))
		return
	}

	a.mu.Lock()
	c, ok := a.convos[chatID]
	a.mu.Unlock()
	if !ok {
		a.send(ctx, b, chatID, "예약을 시작하려면 /start 를 입력해주세요.")
		return
	}

	reply := c.Feed(text)
	a.send(ctx, b, chatID, reply)

	if c.Done() {
		a.mu.Lock()
		delete(a.convos, chatID)
		if _, busy := a.running[chatID]; busy {
			a.mu.Unlock()
			a.send(ctx, b, chatID, "이미 진행 중인 예약이 있습니다. /status 로 확인해주세요.")
			return
		}
		session := engine.NewSession(c.Query(), a.cfg.Credentials())
		a.running[chatID] = session.ID
		a.mu.Unlock()

		a.registry.Add(session)
		go a.runSession(ctx, b, chatID, session)
	}
}

// runSession owns one booking attempt end to end: browser, notifier fan-out
// and journal writes. It must not take the bot down with it. ctx is the
// bot's signal context, so shutdown also cancels in-flight runs.
func (a *app) runSession(ctx context.Context, b *bot.Bot, chatID int64, session *engine.Session) {
	defer func() {
		a.mu.Lock()
		delete(a.running, chatID)
		a.mu.Unlock()
		if r := recover(); r != nil {
			log.Printf("[Bot] session %s panicked: %v", session.ID, r)
			a.send(context.Background(), b, chatID, fmt.Sprintf("⚠️예약 처리 중 오류가 발생했습니다: %v", r))
		}
	}()

	layout, err := a.cfg.Layout()
	if err != nil {
		a.send(context.Background(), b, chatID, err.Error())
		return
	}

	drv, err := pw.Launch(pw.Options{Headless: a.cfg.Headless})
	if err != nil {
		log.Printf("[Bot] browser launch failed: %v", err)
		a.send(context.Background(), b, chatID, "⚠️브라우저를 시작하지 못했습니다.")
		return
	}
	defer drv.Close()

	sinks := notify.Multi{&tgNotifier{b: b, chatID: chatID}}
	if a.cfg.DiscordWebhookURL != "" {
		sinks = append(sinks, notify.NewWebhook(a.cfg.DiscordWebhookURL, 10*time.Second))
	}
	if a.rabbit != nil {
		sinks = append(sinks, notify.NewAMQP(a.rabbit, session.ID))
	}

	if a.repo != nil {
		if err := a.repo.Create(ctx, session.Record()); err != nil {
			log.Printf("[Bot] journal write failed: %v", err)
		}
	}

	runErr := engine.New(drv, sinks, engine.Config{Layout: layout}).Run(ctx, session)

	// the final journal write must survive shutdown cancellation
	if a.repo != nil {
		if err := a.repo.Update(context.Background(), session.Record()); err != nil {
			log.Printf("[Bot] journal update failed: %v", err)
		}
	}
	if runErr != nil {
		log.Printf("[Bot] session %s failed: %v", session.ID, runErr)
	}
}

func (a *app) statusText(chatID int64) string {
	a.mu.Lock()
	id, ok := a.running[chatID]
	a.mu.Unlock()
	if !ok {
		return "진행 중인 예약이 없습니다. /start 로 시작해주세요."
	}
	s, found := a.registry.Get(id)
	if !found {
		return "세션 정보를 찾을 수 없습니다."
	}
	snap := s.Snapshot()
	return fmt.Sprintf("🚉 %s → %s\n상태: %s\n새로고침: %d회",
		snap.DepartureStation, snap.ArrivalStation, snap.State, snap.RefreshCount)
}

func (a *app) send(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
	if err != nil {
		log.Printf("[Bot] send to %d failed: %v", chatID, err)
	}
}

func (a *app) startStatusServer() {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.Use(echoMw.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "service": "srt-reservation-bot"})
	})

	handler.NewSessionHandler(a.registry, a.repo).RegisterRoutes(e)

	go func() {
		log.Printf("[Bot] status API on :%s", a.cfg.ServerPort)
		if err := e.Start(":" + a.cfg.ServerPort); err != nil && err != http.ErrServerClosed {
			log.Printf("[Bot] status API stopped: %v", err)
		}
	}()
}

// tgNotifier streams engine progress into the owning chat.
type tgNotifier struct {
	b      *bot.Bot
	chatID int64
}

func (n *tgNotifier) Publish(text string) {
	_, err := n.b.SendMessage(context.Background(), &bot.SendMessageParams{
		ChatID: n.chatID,
		Text:   notify.Stamp(text),
	})
	if err != nil {
		log.Printf("[Bot] notify %d failed: %v", n.chatID, err)
	}
}
