// Command relay runs the omnichannel conversation-routing and agent
// orchestration engine: HTTP/WebSocket API, Postgres-backed stores, and the
// background cron sweeps, all wired from a single composition root.
// Grounded on the teacher's cmd/tarsy/main.go shape (flag-selected config
// directory, .env loading via godotenv, then build-and-start), updated to
// log/slog to match the rest of this codebase's logging convention.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/omnichat/relay/pkg/agents"
	"github.com/omnichat/relay/pkg/api"
	"github.com/omnichat/relay/pkg/auth"
	"github.com/omnichat/relay/pkg/channels"
	"github.com/omnichat/relay/pkg/config"
	"github.com/omnichat/relay/pkg/cron"
	"github.com/omnichat/relay/pkg/handover"
	"github.com/omnichat/relay/pkg/llmadapter"
	"github.com/omnichat/relay/pkg/masking"
	"github.com/omnichat/relay/pkg/nlu"
	"github.com/omnichat/relay/pkg/presence"
	"github.com/omnichat/relay/pkg/router"
	"github.com/omnichat/relay/pkg/scheduling"
	"github.com/omnichat/relay/pkg/store"
	"github.com/omnichat/relay/pkg/uploads"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	flag.Parse()

	if err := godotenv.Load(*configDir + "/.env"); err != nil {
		slog.Warn("no .env file loaded, continuing with existing environment", "config_dir", *configDir, "error", err)
	}

	if err := run(*configDir); err != nil {
		slog.Error("relay exited with error", "error", err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}

	dbCfg, err := store.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	client, err := store.NewClient(ctx, dbCfg)
	if err != nil {
		return err
	}
	defer client.Close()
	db := client.DB()
	slog.Info("connected to postgres", "database", dbCfg.Database)

	// Repositories.
	messages := store.NewMessageRepo(db)
	users := store.NewUserRepo(db)
	contacts := store.NewContactRepo(db)
	agentDefs := store.NewAgentRepo(db)
	handoverRepo := store.NewHandoverRepo(db)
	calendar := store.NewCalendarRepo(db)
	uploadRepo := store.NewUploadRepo(db)

	// Presence: Postgres NOTIFY fan-out to live WebSocket connections.
	publisher := presence.NewPublisher(db)
	connManager := presence.NewConnectionManager(messages, 10*time.Second)
	listener := presence.NewNotifyListener(dbCfg.DSN(), connManager)
	if err := listener.Start(ctx); err != nil {
		return err
	}
	defer listener.Stop(context.Background())
	connManager.SetListener(listener)

	masker := masking.NewService()

	// LLM-backed collaborators: one Anthropic client, credential resolved
	// per agent via environment variables (ANTHROPIC_API_KEY_<CREDENTIAL_ID>,
	// falling back to ANTHROPIC_API_KEY for agents with no dedicated key).
	llm := llmadapter.NewClient(apiKeyFor)
	model := getEnv("LLM_MODEL", "claude-sonnet-4-5")
	invoker := agents.NewInvoker(llm, model)
	registry := agents.NewRegistry(agentDefs)

	classifier := buildClassifier(cfg, llm)

	var notifier *handover.SlackNotifier
	if token := os.Getenv("SLACK_BOT_TOKEN"); token != "" {
		notifier = handover.NewSlackNotifier(token, getEnv("SLACK_HANDOVER_CHANNEL", "#handovers"))
	} else {
		slog.Warn("SLACK_BOT_TOKEN not set, urgent handover alerts are disabled")
	}
	handoverSvc := handover.NewService(handoverRepo, masker, publisher, notifier)

	// Scheduling runs against the in-process reference CalendarProvider
	// (Google Calendar/Outlook integration is out of scope); it demonstrates
	// the dedup-key idempotency contract end to end without a vendor account.
	calendarProvider := scheduling.NewInMemoryProvider(getEnv("CALENDAR_MEETING_BASE_URL", "https://meet.example.com"))
	scheduler := scheduling.NewMachine(calendarProvider, calendar, cfg.Defaults.WorkingHours, cfg.Defaults.SlotDuration, cfg.Scheduling)

	objectStore := buildObjectStore()
	uploadsBroker := uploads.NewBroker(uploads.Policy{
		MaxSizeBytes:     cfg.Defaults.MaxUploadSizeBytes,
		AllowedMimeTypes: cfg.Defaults.AllowedMimeTypes,
		GrantTTL:         cfg.Defaults.UploadGrantTTL,
	}, objectStore, uploadRepo, messages, nil)

	dispatcher, waDevice := buildChannels()

	workerPool := router.NewWorkerPool(ctx)
	routerInst := router.NewRouter(messages, publisher, classifier, registry, invoker, handoverSvc, scheduler, cfg.Defaults, dispatcher)

	tokenTTL, err := time.ParseDuration(getEnv("AUTH_TOKEN_TTL", "720h"))
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenIssuer([]byte(getEnv("JWT_SECRET", "")), tokenTTL)
	if err != nil {
		return err
	}
	authSvc := auth.NewService(users, tokens)

	server := api.NewServer(cfg, tokens)
	server.SetDB(db)
	server.SetAuthService(authSvc)
	server.SetMessageRepo(messages)
	server.SetUserRepo(users)
	server.SetContactRepo(contacts)
	server.SetUploadsBroker(uploadsBroker)
	server.SetAgentRegistry(registry)
	server.SetAgentRepo(agentDefs)
	server.SetClassifier(classifier)
	server.SetHandoverService(handoverSvc)
	server.SetCalendarRepo(calendar)
	server.SetScheduler(scheduler)
	server.SetChannelDispatcher(dispatcher)
	server.SetWhatsAppDevice(waDevice)
	server.SetConnectionManager(connManager)
	server.SetWorkerPool(workerPool)
	server.SetRouter(routerInst)

	if err := server.ValidateWiring(); err != nil {
		return err
	}

	runner := cron.NewRunner()
	if err := runner.RegisterUploadExpiry(getEnv("UPLOAD_EXPIRY_SCHEDULE", "*/5 * * * *"), uploadRepo); err != nil {
		return err
	}
	if err := runner.RegisterHandoverSLA(getEnv("HANDOVER_SLA_SCHEDULE", "*/2 * * * *"), handoverSvc, notifier); err != nil {
		return err
	}
	runner.Start()
	defer runner.Stop(context.Background())

	addr := ":" + getEnv("HTTP_PORT", "8080")
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	workerPool.Stop()
	return server.Shutdown(shutdownCtx)
}

// apiKeyFor resolves an Anthropic API key per agent credential id, falling
// back to a single deployment-wide key for agents with no dedicated one.
func apiKeyFor(credentialID string) (string, error) {
	if credentialID != "" {
		if v := os.Getenv("ANTHROPIC_API_KEY_" + credentialID); v != "" {
			return v, nil
		}
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		return v, nil
	}
	return "", errors.New("no Anthropic API key configured (ANTHROPIC_API_KEY or ANTHROPIC_API_KEY_<credential>)")
}

// buildClassifier prefers the model-backed strategy with the rule-based
// classifier as its fallback, so a provider outage degrades to keyword
// matching instead of failing the whole turn — unless config pins the
// rule-based strategy explicitly.
func buildClassifier(cfg *config.Config, llm *llmadapter.Client) nlu.Strategy {
	rule := nlu.NewRuleClassifier()
	if cfg.Defaults.NLUStrategy == config.NLURuleBased {
		return rule
	}
	model := nlu.NewModelClassifier(llm, getEnv("NLU_CREDENTIAL_ID", ""), getEnv("NLU_MODEL", getEnv("LLM_MODEL", "claude-sonnet-4-5")))
	return nlu.NewFallbackClassifier(model, rule)
}

// buildObjectStore wires presigned-URL generation against whatever bucket
// the deployment environment names. The bucket/object-storage provider
// itself is out of scope (spec Non-goals); this assembles the narrow
// PresignWrite/PresignRead closures uploads.ObjectStore needs around an
// externally reachable URL template, configured per deployment.
func buildObjectStore() uploads.ObjectStore {
	bucket := getEnv("UPLOADS_BUCKET", "relay-uploads")
	base := getEnv("UPLOADS_PRESIGN_BASE_URL", "http://localhost:9000")
	return uploads.ObjectStore{
		Bucket: bucket,
		PresignWrite: func(ctx context.Context, bucket, key, mimeType string, ttl time.Duration) (string, error) {
			return base + "/" + bucket + "/" + key + "?mode=write&ttl=" + ttl.String(), nil
		},
		PresignRead: func(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
			return base + "/" + bucket + "/" + key + "?mode=read&ttl=" + ttl.String(), nil
		},
	}
}

// buildChannels assembles the outbound Dispatcher from whichever vendor
// credentials are present in the environment, so a deployment can enable
// WhatsApp, Instagram, and Messenger independently. The device-session
// WhatsApp variant is returned separately since it needs its own HTTP
// endpoints rather than participating in the channel-name routing table.
func buildChannels() (*channels.Dispatcher, *channels.WhatsAppDevice) {
	var adapters []channels.Adapter

	if phoneID, token := os.Getenv("WHATSAPP_CLOUD_PHONE_ID"), os.Getenv("WHATSAPP_CLOUD_ACCESS_TOKEN"); phoneID != "" && token != "" {
		adapters = append(adapters, channels.NewWhatsAppCloud(phoneID, token))
	}
	if token := os.Getenv("INSTAGRAM_PAGE_ACCESS_TOKEN"); token != "" {
		adapters = append(adapters, channels.NewInstagram(token))
	}
	if token := os.Getenv("MESSENGER_PAGE_ACCESS_TOKEN"); token != "" {
		adapters = append(adapters, channels.NewMessenger(token))
	}

	var waDevice *channels.WhatsAppDevice
	if baseURL := os.Getenv("WHATSAPP_DEVICE_BASE_URL"); baseURL != "" {
		waDevice = channels.NewWhatsAppDevice(baseURL)
		adapters = append(adapters, waDevice)
	}

	if len(adapters) == 0 {
		slog.Warn("no outbound channel adapters configured, only the web conversation surface is reachable")
	}
	return channels.NewDispatcher(adapters...), waDevice
}
