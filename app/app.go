// Package app wires the conversation engine, feature flows, and Telegram
// runtime into a runnable bot.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/toolbot/core/bootstrap"
	"github.com/m3rciful/toolbot/core/conv"
	tg "github.com/m3rciful/toolbot/core/telegram"
	"github.com/m3rciful/toolbot/core/telegram/commands"
	"github.com/m3rciful/toolbot/core/telegram/format"
	tghelpers "github.com/m3rciful/toolbot/core/telegram/helpers"
	"github.com/m3rciful/toolbot/core/telegram/keyboard"
	"github.com/m3rciful/toolbot/core/telegram/router"
	"github.com/m3rciful/toolbot/core/telegram/sender"
	featimage "github.com/m3rciful/toolbot/features/image"
	"github.com/m3rciful/toolbot/features/lyrics"
	"github.com/m3rciful/toolbot/features/media"
	"github.com/m3rciful/toolbot/features/qr"
	"github.com/m3rciful/toolbot/features/rates"
	"github.com/m3rciful/toolbot/history"

	tele "gopkg.in/telebot.v4"
)

const statsRefreshKey = "stats_refresh"

const helpText = "Here's what I can do:\n" +
	"/qrgen - Generate a QR code from text\n" +
	"/qrread - Read a QR code from an image\n" +
	"/download - Download a song from YouTube\n" +
	"/lyrics - Get lyrics for a song\n" +
	"/enhance - Enhance an image quality\n" +
	"/dollar - Dollar Price in Syria\n" +
	"/help - Show this help message"

// App holds the assembled bot components.
type App struct {
	cfg       *Config
	engine    *conv.Engine
	transport *botTransport
	registry  *tg.Registry
	snd       *sender.Sender
	rates     *rates.Client
	hist      *history.Store
	db        *sqlx.DB
}

// New bootstraps infrastructure and assembles the bot.
func New(cfg *Config) (*App, error) {
	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:   cfg,
		snd:   sender.NewSender(sender.Options{MaxRetries: 2}),
		rates: rates.NewClient(),
		db:    res.DB,
	}
	a.transport = newBotTransport(a.snd)

	var onEnd func(ctx context.Context, rec conv.Record)
	if res.DB != nil {
		a.hist = history.NewStore(res.DB)
		onEnd = a.hist.OnEnd
	}
	a.engine = conv.NewEngine(conv.Options{Transport: a.transport, OnEnd: onEnd})

	downloader := media.NewDownloader(cfg.Downloads.YTDLPPath, cfg.Downloads.Dir)
	flows := []*conv.Definition{
		qr.GenerateFlow(),
		qr.ReadFlow(),
		media.DownloadFlow(downloader, cfg.Downloads.SearchResults),
		lyrics.Flow(lyrics.NewClient()),
		featimage.Flow(),
	}
	for _, def := range flows {
		if err := a.engine.Register(def); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
	}

	a.registry = a.buildRegistry()
	return a, nil
}

func (a *App) buildRegistry() *tg.Registry {
	reg := tg.NewRegistry()

	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Start the bot",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     a.handleHelp,
		Description: "Show this help message",
	})
	reg.RegisterCommand("/dollar", commands.Command{
		Handler:     a.handleDollar,
		Description: "Dollar Price in Syria",
	})
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     a.handleStats,
		Description: "Conversation totals",
		AdminOnly:   true,
		Hidden:      true,
	})
	reg.RegisterCommand(conv.CancelCommand, commands.Command{
		Handler:     a.dispatchCommand(conv.CancelCommand),
		Description: "Cancel the current operation",
		Hidden:      true,
	})

	for _, def := range a.engine.Definitions() {
		reg.RegisterCommand(def.Command, commands.Command{
			Handler:     a.dispatchCommand(def.Command),
			Description: def.Description,
		})
	}

	_ = reg.RegisterCallback(statsRefreshKey, a.handleStatsRefresh)
	reg.SetTextFallback(func(c tele.Context) error {
		return tghelpers.SendText(c, "I didn't understand that. Use /help to see what I can do.")
	})
	reg.SetCallbackNotFound(func(c tele.Context) error {
		return tghelpers.SendText(c, "This button is no longer active.")
	})

	return reg
}

// dispatchCommand feeds an entry or cancel command into the engine.
func (a *App) dispatchCommand(command string) tele.HandlerFunc {
	return func(c tele.Context) error {
		return a.engine.Dispatch(tghelpers.BuildContext(c), router.CommandEvent(c, command))
	}
}

func (a *App) handleStart(c tele.Context) error {
	name := ""
	if u := c.Sender(); u != nil {
		name = u.FirstName
	}
	return tghelpers.SendText(c, fmt.Sprintf("Hi %s! I'm your multi-functional bot.\n\n%s", name, helpText))
}

func (a *App) handleHelp(c tele.Context) error {
	return tghelpers.SendText(c, helpText)
}

func (a *App) handleDollar(c tele.Context) error {
	report, err := a.rates.Fetch(tghelpers.BuildContext(c))
	if err != nil {
		return tghelpers.SendText(c, "Failed to fetch dollar rates. Please try again later.")
	}
	return tghelpers.SendText(c, rates.Format(report))
}

func (a *App) handleStats(c tele.Context) error {
	report, err := a.statsReport(tghelpers.BuildContext(c))
	if err != nil {
		return tghelpers.SendText(c, "Failed to read conversation stats.")
	}
	return tghelpers.SendMD(c, report, statsKeyboard())
}

// handleStatsRefresh re-renders the stats report in place of the message
// carrying the refresh button.
func (a *App) handleStatsRefresh(c tele.Context) error {
	report, err := a.statsReport(tghelpers.BuildContext(c))
	if err != nil {
		return tghelpers.SendText(c, "Failed to read conversation stats.")
	}
	return c.Edit(report, &tele.SendOptions{
		ParseMode:   tele.ModeMarkdown,
		ReplyMarkup: statsKeyboard(),
	})
}

func statsKeyboard() *tele.ReplyMarkup {
	return keyboard.DataButtons([]keyboard.InlineBtn{{Text: "Refresh", Data: statsRefreshKey}})
}

func (a *App) statsReport(ctx context.Context) (string, error) {
	if a.hist == nil {
		return "History is disabled.", nil
	}
	stats, err := a.hist.Stats(ctx)
	if err != nil {
		return "", err
	}
	if len(stats) == 0 {
		return "No conversations recorded yet.", nil
	}

	var b strings.Builder
	b.WriteString("*Conversation totals*\n")
	for _, st := range stats {
		kind, _ := format.EscapeMarkdown(st.Kind, format.MarkdownV1)
		reason, _ := format.EscapeMarkdown(st.Reason, format.MarkdownV1)
		fmt.Fprintf(&b, "%s / %s: %d\n", kind, reason, st.Total)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// TelegramRunOptions builds the runtime wiring consumed by core/cmd.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
	})
	routes = append(routes, router.TextRoutes(a.engine, a.registry, router.TextOptions{})...)
	routes = append(routes, router.CallbackRoute(a.engine, a.registry, router.CallbackOptions{}))

	return tg.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    a.registry,
		Sender:      a.snd,
		Middlewares: tg.DefaultMiddlewares(a.cfg.CoreConfig(), nil),
		Routes:      routes,
		OnStart: func(_ context.Context, rt tg.Runtime) error {
			a.transport.Bind(rt.Bot)
			return nil
		},
		OnStop: func(_ context.Context, _ tg.Runtime) error {
			if a.db != nil {
				return a.db.Close()
			}
			return nil
		},
	}, nil
}
