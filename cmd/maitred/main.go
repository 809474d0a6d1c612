package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"maitred/internal/adapter/backend"
	"maitred/internal/adapter/subscriber"
	"maitred/internal/adapter/tui/chat"
	"maitred/internal/domain"
	"maitred/internal/infra/config"
	"maitred/internal/infra/logger"
	"maitred/internal/infra/tracer"
	"maitred/internal/usecase"
	"maitred/internal/usecase/eventbus"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if len(os.Args) < 2 || strings.HasPrefix(os.Args[1], "-") {
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}

	switch os.Args[1] {
	case "subscribers":
		if err := runSubscribers(); err != nil {
			fmt.Fprintf(os.Stderr, "subscribers: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'maitred --help' for usage information.\n", os.Args[1])
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`maitred - Terminal concierge chat with newsletter signup

USAGE:
    maitred [COMMAND] [FLAGS]

COMMANDS:
    subscribers    List locally stored newsletter subscribers

    (no command) - Run the chat interface

FLAGS:
    -h, --help         Show this help message
    --config PATH      Specify config file path (default: ./config.yaml)

CONFIGURATION:
    Config file: ./config.yaml
    Environment: MAITRED_* variables override config`)
}

func run() error {
	// 1. Config
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// 3. Event bus
	bus := eventbus.New(log)
	defer bus.Close()

	// 4. Subscriber persistence: local sqlite record first, then the
	// newsletter service behind a rate limiter and circuit breaker.
	store, err := subscriber.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer store.Close()

	var remote domain.EmailPersister
	if cfg.Newsletter.URL != "" {
		remote = subscriber.NewCircuitBreakerPersister(
			subscriber.NewNewsletterClient(cfg.Newsletter, log),
			cfg.Newsletter.Breaker,
			log,
		)
	}
	persister := subscriber.NewCompositePersister(store, remote, "chat-drawer", log)

	// 5. Chat backend, session and router
	completer := backend.New(cfg.Backend, log)
	session := usecase.NewSession()
	router := usecase.NewRouter(completer, session, bus, log)

	// 6. TUI channel with the registration drawer
	ch := chat.NewTUIChannel(log)
	ch.SetWidgetInfo(cfg.Widget.Name, cfg.Widget.Greeting)
	ch.SetPersister(persister)
	ch.SetEventBus(bus)
	ch.SetOnClear(session.Clear)
	ch.SetDrawerTimings(usecase.DrawerTimings{
		AutoClose:      config.ParseDurationOr(cfg.Drawer.AutoClose, 0),
		ReopenSuppress: config.ParseDurationOr(cfg.Drawer.ReopenSuppress, 0),
		SuccessReset:   config.ParseDurationOr(cfg.Drawer.SuccessReset, 0),
		CloseReassert:  config.ParseDurationOr(cfg.Drawer.CloseReassert, 0),
	})
	ch.SetPromptCooldown(config.ParseDurationOr(cfg.Drawer.PromptCooldown, 0))
	ch.SetExtraKeywords(cfg.Drawer.ExtraKeywords)
	router.SetChannel(ch)

	// 7. Graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("maitred starting",
		"widget", cfg.Widget.Name,
		"backend", cfg.Backend.BaseURL,
		"newsletter", cfg.Newsletter.URL != "",
		"storage", cfg.Storage.Path,
	)

	return ch.Start(ctx, router.Handle)
}

// runSubscribers prints the locally stored subscriber records.
func runSubscribers() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	store, err := subscriber.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer store.Close()

	subs, err := store.List(context.Background())
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		fmt.Println("No subscribers yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tSOURCE\tCREATED")
	for _, s := range subs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Email, s.Source, s.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func configPath() string {
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	if p := os.Getenv("MAITRED_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}
