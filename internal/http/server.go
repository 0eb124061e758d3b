package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"finagent/internal/cache"
	"finagent/internal/commands"
	"finagent/internal/core"
	"finagent/internal/log"
	"finagent/internal/middleware/ratelimit"
	"finagent/internal/middleware/security"
	"finagent/internal/middleware/trace"
	appweb "finagent/web"

	"github.com/shopspring/decimal"
)

const (
	defaultSessionCapacity = 1000
	defaultSessionTTL      = 24 * time.Hour
	defaultHistoryLimit    = 50
	maxBodyBytes           = 64 << 10
	staticMaxAge           = 3600
)

// Ledger is the write and listing side of the ledger the server needs.
type Ledger interface {
	AddExpense(ctx context.Context, amount decimal.Decimal, category, note string) (core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) (bool, error)
	GetAll(ctx context.Context) ([]core.Expense, error)
	Ping(ctx context.Context) error
	Mutations() (created, deleted int64)
}

// Chatter answers one chat message. It never fails; errors become replies.
type Chatter interface {
	Chat(ctx context.Context, message string) string
}

// CacheReporter exposes hit and miss counters for /metrics.
type CacheReporter interface {
	Stats() cache.Stats
}

// Deps are the collaborators the server is built from. Sessions, Limiter
// and Logger get defaults when nil.
type Deps struct {
	Ledger       Ledger
	Facade       *commands.Facade
	Agent        Chatter
	Sessions     *cache.LRUCache[[]ChatMessage]
	HistoryLimit int
	Limiter      *ratelimit.Limiter
	Logger       *log.Logger
	// TrustedProxies are CIDRs, beyond loopback and private ranges, whose
	// X-Forwarded-For header is believed.
	TrustedProxies []string
	Caches         map[string]CacheReporter
}

type Server struct {
	http.Server
	templates *template.Template

	ledger       Ledger
	facade       *commands.Facade
	agent        Chatter
	sessions     *cache.LRUCache[[]ChatMessage]
	historyLimit int
	caches       map[string]CacheReporter

	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	started      time.Time
	chatMessages atomic.Int64

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(addr string, d Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server:       http.Server{Addr: addr},
		ledger:       d.Ledger,
		facade:       d.Facade,
		agent:        d.Agent,
		sessions:     d.Sessions,
		historyLimit: d.HistoryLimit,
		caches:       d.Caches,
		logger:       d.Logger,
		limiter:      d.Limiter,
		detector:     security.NewDetector(),
		started:      time.Now(),
	}
	if s.logger == nil {
		s.logger = log.New(log.DefaultConfig())
	}
	s.logger = s.logger.WithComponent(log.ComponentHTTP)
	if s.sessions == nil {
		s.sessions = cache.NewLRUCache[[]ChatMessage](defaultSessionCapacity, defaultSessionTTL)
	}
	if s.historyLimit < 2 {
		s.historyLimit = defaultHistoryLimit
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}
	for _, cidr := range d.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.WithComponent(log.ComponentSecurity).Warn("Ignoring invalid trusted proxy", "cidr", cidr, log.FieldError, err)
		}
	}
	s.tracer = trace.NewMiddleware(s.logger, s.detector.ExtractClientIP)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.WithComponent(log.ComponentTemplate).Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(staticMaxAge)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	// Pages and HTMX partials
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /expenses", s.handleListExpenses)
	mux.HandleFunc("POST /expenses", s.handleCreateExpense)
	mux.HandleFunc("POST /expenses/delete", s.handleDeleteExpense)
	mux.HandleFunc("GET /ui/stats", s.handleStatsPartial)
	mux.HandleFunc("GET /chat", s.handleChatHistory)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /chat/clear", s.handleChatClear)
	mux.HandleFunc("GET /export.csv", s.handleExportCSV)

	// JSON API
	mux.HandleFunc("GET /api/expenses", s.handleAPIListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleAPICreateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleAPIDeleteExpense)
	mux.HandleFunc("GET /api/stats", s.handleAPIStats)

	// Probes
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)
	s.Handler = h

	return s
}

// Shutdown stops background work and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
