package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"remindbot/internal/config"
	"remindbot/internal/eventbus"
	"remindbot/internal/observability/health"
	"remindbot/internal/observability/metrics"
	"remindbot/internal/prompt"
	"remindbot/internal/reminder"
	rtsup "remindbot/internal/runtime/supervisor"
	"remindbot/internal/sheet"
	kit "remindbot/internal/transport"
	"remindbot/internal/transport/telegram"
	"remindbot/internal/transport/telegram/router"
	logx "remindbot/pkg/logx"
	"remindbot/pkg/systemd"
)

// App owns every long-lived component. Nothing here is global; New builds
// the graph and hands each component its collaborators.
type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus
	book *sheet.Book

	adapter *telegram.Adapter
	router  *router.Router

	reminders *reminder.Service
	metrics   *metrics.Metrics
	health    *health.Service
	sd        systemd.Notifier

	updates chan kit.Update
}

// New loads the config at cfgPath and wires the bot. It opens the sheet
// backend and makes sure the reminder table has its header.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	// The chat sink is enabled only after the adapter exists.
	var ad *telegram.Adapter
	bootLog := loggingConfig(cfg)
	bootLog.Chat.Enabled = false
	logs, root := logx.New(bootLog, logx.ChatSenderFunc(func(ctx context.Context, chatID int64, text string) error {
		if ad == nil {
			return nil
		}
		return ad.SendLog(ctx, chatID, text)
	}))
	logs.SetChatTarget(cfg.Telegram.LogChatID)
	log := root.With(logx.String("comp", "app"))

	ad, err = telegram.New(telegramConfig(cfg), root.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}
	logs.Apply(loggingConfig(cfg))

	book, err := sheet.Open(ctx, sheetConfig(cfg), root)
	if err != nil {
		return nil, fmt.Errorf("sheets: %w", err)
	}
	loc := cfg.Location()
	repo := reminder.NewRepository(book.Worksheet(cfg.Sheets.ReminderSheetName()), loc)
	ictx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = repo.Init(ictx)
	cancel()
	if err != nil {
		_ = book.Close()
		return nil, fmt.Errorf("init reminder sheet: %w", err)
	}

	bus := eventbus.New()
	rcfg := reminderConfig(cfg)
	sched := reminder.NewScheduler(repo, ad, root.With(logx.String("comp", "reminders")), rcfg.Options, reminder.WithBus(bus))
	reminders := reminder.NewService(rcfg, sched, root.With(logx.String("comp", "reminders")))

	rt := router.New(root.With(logx.String("comp", "commands")), ad, commandTimeout(cfg))
	rt.Register(
		reminder.NewRegistrar(repo, loc, reminders, bus).Command(),
		prompt.NewGenerator(book.Worksheet(cfg.Sheets.PromptSheetName())).Command(),
	)

	m := metrics.New()
	return &App{
		cfgm:      cfgm,
		log:       log,
		logs:      logs,
		bus:       bus,
		book:      book,
		adapter:   ad,
		router:    rt,
		reminders: reminders,
		metrics:   m,
		health:    health.New(healthConfig(cfg), m, root),
		updates:   make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if restart := config.RequiresRestart(a.cfgm.Get(), cfg); len(restart) > 0 {
			a.log.Warn("config changes need a restart to take effect", logx.String("keys", strings.Join(restart, ",")))
		}
		return nil
	})

	c := a.sup.Context()
	a.sup.Go0("metrics.events", func(c context.Context) { a.metrics.Run(c, a.bus) })
	a.sup.Go0("eventbus.log", a.logEvents)

	if err := a.adapter.Start(c, a.updates); err != nil {
		return err
	}
	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})
	a.sup.Go0("commands.menu", func(c context.Context) {
		mctx, cancel := context.WithTimeout(c, 10*time.Second)
		defer cancel()
		if err := a.adapter.UpdateMenuCommands(mctx, a.router.MenuCommands()); err != nil {
			a.log.Warn("menu commands not updated", logx.Err(err))
		}
	})

	if err := a.reminders.Start(c); err != nil {
		return err
	}
	if a.cfgm.Get().Reminders.RunOnStart && a.reminders.Enabled() {
		a.sup.Go0("reminders.first_tick", func(c context.Context) {
			if _, err := a.reminders.RunNow(c); err != nil && !errors.Is(err, reminder.ErrBusy) {
				a.log.Warn("startup tick failed", logx.Err(err))
			}
		})
	}
	a.health.Start(c)

	a.sup.Go0("config.reload", a.applyReloads)
	a.sup.Go("config.watch", func(c context.Context) error { return a.cfgm.Watch(c) })
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		if err := a.sd.Watchdog(c, func() bool { return c.Err() == nil }); err != nil {
			a.log.Warn("systemd watchdog stopped", logx.Err(err))
		}
	})

	if ok, err := a.sd.Ready("polling for commands"); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if ok {
		a.log.Debug("systemd notified: ready")
	}
	a.log.Info("app started", logx.String("bot", a.adapter.BotName()), logx.String("sheets", a.book.Driver()))
	return nil
}

func (a *App) logEvents(c context.Context) {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-c.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
		}
	}
}

// applyReloads pushes hot-reloaded config into the running components.
func (a *App) applyReloads(c context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)
	last := a.cfgm.Get()
	for {
		select {
		case <-c.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// keep only the newest of a burst
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					break drain
				}
			}

			sections, fields := config.SummarizeChange(last, cfg)
			last = cfg
			if len(sections) == 0 {
				a.log.Debug("config reload received, but no effective changes detected")
				continue
			}

			a.logs.SetChatTarget(cfg.Telegram.LogChatID)
			a.logs.Apply(loggingConfig(cfg))
			if err := a.reminders.Apply(reminderConfig(cfg)); err != nil {
				a.log.Warn("reminder config not applied", logx.Err(err))
			}
			a.health.Reconfigure(c, healthConfig(cfg))

			a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigReloaded, Data: sections})
			a.log.Info("config applied", fields...)
		}
	}
}

// Stop shuts components down in dependency order. Each step is bounded so
// one stuck component cannot stall the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = a.sd.Stopping()
	a.sup.Cancel()

	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if dl, ok := ctx.Deadline(); ok {
			limit = min(limit, time.Until(dl))
		}
		sctx, cancel := context.WithTimeout(ctx, max(limit, 0))
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(sctx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-sctx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	// Reminders first: a running tick finishes its sends and flag writes.
	step("reminders", 50*time.Second, a.reminders.Stop)
	step("health", time.Second, func(c context.Context) error { a.health.Stop(c); return nil })
	step("adapter", 2*time.Second, a.adapter.Stop)
	step("supervisor", 3*time.Second, a.sup.Wait)
	step("sheets", time.Second, func(context.Context) error { return a.book.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}
