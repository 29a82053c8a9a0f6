// Package api wires every external HTTP and WebSocket surface named in the
// external interfaces list onto the core collaborators (store, nlu, agents,
// handover, scheduling, channels, presence), following the teacher's Echo
// v5 server idiom: a Server struct assembled by NewServer plus a family of
// SetXxx methods for collaborators wired after construction.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/omnichat/relay/pkg/agents"
	"github.com/omnichat/relay/pkg/auth"
	"github.com/omnichat/relay/pkg/channels"
	"github.com/omnichat/relay/pkg/config"
	"github.com/omnichat/relay/pkg/handover"
	"github.com/omnichat/relay/pkg/nlu"
	"github.com/omnichat/relay/pkg/presence"
	"github.com/omnichat/relay/pkg/router"
	"github.com/omnichat/relay/pkg/scheduling"
	"github.com/omnichat/relay/pkg/store"
	"github.com/omnichat/relay/pkg/uploads"
)

// defaultTenant is the fixed tenant id used everywhere a per-tenant key is
// required by a collaborator, since multi-tenancy is out of scope for this
// deployment (spec §1 Non-goals) but the collaborators beneath still carry
// the concept.
const defaultTenant = "default"

// Server is the HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server
	cfg        *config.Config
	tokens     *auth.TokenIssuer

	authSvc  *auth.Service
	messages *store.MessageRepo
	users    *store.UserRepo
	contacts *store.ContactRepo

	uploadsBroker *uploads.Broker

	registry  *agents.Registry
	agentDefs *store.AgentRepo

	classifier nlu.Strategy

	handovers *handover.Service

	calendar  *store.CalendarRepo
	scheduler *scheduling.Machine

	dispatcher *channels.Dispatcher
	waDevice   *channels.WhatsAppDevice // nil unless the device-session variant is configured

	connManager *presence.ConnectionManager
	workerPool  *router.WorkerPool
	routerInst  *router.Router

	db *sql.DB
}

// NewServer creates the API server and registers its routes. Collaborators
// beyond cfg and tokens are supplied afterwards via the SetXxx methods;
// call ValidateWiring once they are all set, before Start.
func NewServer(cfg *config.Config, tokens *auth.TokenIssuer) *Server {
	e := echo.New()
	s := &Server{echo: e, cfg: cfg, tokens: tokens}
	s.setupRoutes()
	return s
}

func (s *Server) SetAuthService(svc *auth.Service)             { s.authSvc = svc }
func (s *Server) SetMessageRepo(r *store.MessageRepo)          { s.messages = r }
func (s *Server) SetUserRepo(r *store.UserRepo)                { s.users = r }
func (s *Server) SetContactRepo(r *store.ContactRepo)          { s.contacts = r }
func (s *Server) SetUploadsBroker(b *uploads.Broker)           { s.uploadsBroker = b }
func (s *Server) SetAgentRegistry(r *agents.Registry)          { s.registry = r }
func (s *Server) SetAgentRepo(r *store.AgentRepo)              { s.agentDefs = r }
func (s *Server) SetClassifier(c nlu.Strategy)                 { s.classifier = c }
func (s *Server) SetHandoverService(h *handover.Service)       { s.handovers = h }
func (s *Server) SetCalendarRepo(r *store.CalendarRepo)        { s.calendar = r }
func (s *Server) SetScheduler(m *scheduling.Machine)           { s.scheduler = m }
func (s *Server) SetChannelDispatcher(d *channels.Dispatcher)  { s.dispatcher = d }
func (s *Server) SetWhatsAppDevice(w *channels.WhatsAppDevice) { s.waDevice = w }
func (s *Server) SetConnectionManager(m *presence.ConnectionManager) { s.connManager = m }
func (s *Server) SetWorkerPool(p *router.WorkerPool)           { s.workerPool = p }
func (s *Server) SetRouter(r *router.Router)                   { s.routerInst = r }
func (s *Server) SetDB(db *sql.DB)                             { s.db = db }

// ValidateWiring checks that every required collaborator has been set,
// catching composition gaps at startup rather than as a request-time panic.
func (s *Server) ValidateWiring() error {
	checks := []struct {
		name string
		ok   bool
	}{
		{"authSvc", s.authSvc != nil},
		{"messages", s.messages != nil},
		{"users", s.users != nil},
		{"contacts", s.contacts != nil},
		{"uploadsBroker", s.uploadsBroker != nil},
		{"registry", s.registry != nil},
		{"agentDefs", s.agentDefs != nil},
		{"classifier", s.classifier != nil},
		{"handovers", s.handovers != nil},
		{"calendar", s.calendar != nil},
		{"scheduler", s.scheduler != nil},
		{"dispatcher", s.dispatcher != nil},
		{"connManager", s.connManager != nil},
		{"workerPool", s.workerPool != nil},
		{"routerInst", s.routerInst != nil},
		{"db", s.db != nil},
	}
	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("server wiring incomplete: %s not set", c.name)
		}
	}
	return nil
}

// setupRoutes registers every route named in the external interfaces list.
func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(10 * 1024 * 1024))

	s.echo.GET("/health", s.healthHandler)

	s.echo.POST("/auth/register", s.registerHandler)
	s.echo.POST("/auth/login", s.loginHandler)

	v1 := s.echo.Group("")
	v1.Use(auth.RequireAuth(s.tokens))

	v1.GET("/messages", s.globalFeedHandler)
	v1.GET("/contacts/", s.listContactsHandler)
	v1.GET("/contacts/:id/messages", s.contactHistoryHandler)
	v1.POST("/contacts/:id/messages", s.sendContactMessageHandler)
	v1.PUT("/contacts/:id/read", s.markContactReadHandler)

	v1.POST("/uploads/grant", s.uploadGrantHandler)
	v1.POST("/uploads/confirm", s.uploadConfirmHandler)

	v1.GET("/agents/:key/messages", s.agentPanelMessagesHandler)
	v1.POST("/custom-bots", s.createCustomBotHandler)
	v1.GET("/custom-bots", s.listCustomBotsHandler)
	v1.DELETE("/custom-bots/:key", s.deleteCustomBotHandler)

	v1.POST("/nlu/analyze", s.nluAnalyzeHandler)

	v1.POST("/handovers/", s.createHandoverHandler)
	v1.GET("/handovers/", s.listHandoversHandler)
	v1.PUT("/handovers/:id/accept", s.acceptHandoverHandler)
	v1.PUT("/handovers/:id/in-progress", s.inProgressHandoverHandler)
	v1.PUT("/handovers/:id/resolve", s.resolveHandoverHandler)
	v1.DELETE("/handovers/:id", s.cancelHandoverHandler)
	v1.GET("/handovers/stats/summary", s.handoverStatsHandler)

	v1.GET("/calendar/auth-status", s.calendarAuthStatusHandler)
	v1.POST("/calendar/events", s.createCalendarEventHandler)
	v1.GET("/calendar/events", s.listCalendarEventsHandler)
	v1.PUT("/calendar/events/:id", s.rescheduleCalendarEventHandler)
	v1.DELETE("/calendar/events/:id", s.cancelCalendarEventHandler)
	v1.GET("/calendar/availability", s.calendarAvailabilityHandler)
	v1.GET("/calendar/available-slots", s.calendarAvailableSlotsHandler)

	v1.POST("/omni/send", s.omniSendHandler)
	v1.POST("/omni/whatsapp/session", s.whatsappDeviceStartSessionHandler)
	v1.GET("/omni/whatsapp/session/:id", s.whatsappDeviceSessionStatusHandler)

	// /ws and the inbound channel webhooks below sit outside the bearer
	// middleware: a browser WebSocket handshake cannot carry a custom
	// Authorization header, so wsHandler verifies its own "token" query
	// parameter. Vendor webhook callers carry no bearer token; the webhook
	// handlers check no request signature either, and the GET route only
	// echoes hub.challenge back.
	s.echo.GET("/ws", s.wsHandler)

	s.echo.POST("/webhooks/whatsapp", s.whatsappCloudWebhookHandler)
	s.echo.GET("/webhooks/whatsapp", s.whatsappCloudWebhookVerifyHandler)
	s.echo.POST("/webhooks/instagram", s.instagramWebhookHandler)
	s.echo.POST("/webhooks/messenger", s.messengerWebhookHandler)
}

// Start starts the HTTP server on the given address (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener, used
// by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(c *echo.Context) error {
	reqCtx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	status, err := store.Health(reqCtx, s.db)
	resp := &HealthResponse{
		Status:          status.Status,
		ResponseTimeMs:  status.ResponseTime.Milliseconds(),
		OpenConnections: status.OpenConnections,
		InUse:           status.InUse,
		Idle:            status.Idle,
		WaitCount:       status.WaitCount,
		MaxOpenConns:    status.MaxOpenConns,
	}
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}
