package server

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/wsd/internal/config"
	"github.com/standardbeagle/wsd/internal/debug"
	"github.com/standardbeagle/wsd/internal/scanner"
	"github.com/standardbeagle/wsd/internal/selftest"
	"github.com/standardbeagle/wsd/internal/woo"
)

// Options wires the admin console to the rest of wsd
type Options struct {
	Config  *config.Config
	Scanner *scanner.Scanner
	// Source may be nil when no WooCommerce database is configured
	Source woo.Source
	Suite  *selftest.Suite
	// ChangelogPath is rendered on the self-test page
	ChangelogPath string
}

// AdminServer serves the shipping debugger console over HTTP
type AdminServer struct {
	cfg           *config.Config
	scanner       *scanner.Scanner
	source        woo.Source
	suite         *selftest.Suite
	sessions      *sessions.CookieStore
	changelogPath string

	mu      sync.Mutex
	running bool
}

// New creates the console. Without a configured session secret a random one
// is generated, so sessions do not survive a restart.
func New(opts Options) (*AdminServer, error) {
	secret := []byte(opts.Config.Server.SessionSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
		debug.LogServer("no session secret configured, using a random one\n")
	}

	store := sessions.NewCookieStore(secret)
	store.MaxAge(86400)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.SameSite = http.SameSiteLaxMode

	return &AdminServer{
		cfg:           opts.Config,
		scanner:       opts.Scanner,
		source:        opts.Source,
		suite:         opts.Suite,
		sessions:      store,
		changelogPath: opts.ChangelogPath,
	}, nil
}

// Handler returns the console's routes
func (s *AdminServer) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Group(func(r chi.Router) {
		r.Use(s.requireCapability(denyText))
		r.Get("/", s.handleIndex)
		r.With(s.requireNonce(denyText)).Post("/export", s.handleExport)
		r.Get("/self-test", s.handleSelfTestPage)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireCapability(denyJSON), s.requireNonce(denyJSON))
		r.Post("/self-test/run", s.handleRunTest)
		r.Post("/self-test/timestamp", s.handleTimestamp)
	})

	return r
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully
func (s *AdminServer) Serve(ctx context.Context, addr string) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if addr == "" {
		addr = config.DefaultServerAddr
	}

	eg, egctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		debug.LogServer("admin console listening on http://%s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		debug.LogServer("shutting down admin console\n")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
