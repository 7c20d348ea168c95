// Package gateway is the edge router. It rate limits by client IP, resolves
// the upstream service by path prefix, verifies bearer tokens on protected
// routes and forwards the request with the caller's id in X-User-ID.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"github.com/tendant/simple-social/pkg/apperror"
	"github.com/tendant/simple-social/pkg/cache"
	"github.com/tendant/simple-social/pkg/httpapi"
	"github.com/tendant/simple-social/pkg/identity"
)

const DefaultUpstreamTimeout = 30 * time.Second

type Config struct {
	Routes    []Route
	JWTSecret []byte

	// Limits holds the rate limit counters. Nil disables rate limiting.
	Limits     cache.Store
	RateLimit  int
	RateWindow time.Duration

	// UpstreamTimeout bounds the wait for upstream response headers.
	UpstreamTimeout time.Duration
	// Transport overrides the upstream round tripper, for tests.
	Transport http.RoundTripper

	AllowedOrigins []string
	// TrustProxyHeaders takes the client IP from X-Forwarded-For or
	// X-Real-IP. Enable only behind a proxy that sets them.
	TrustProxyHeaders bool

	Logger *slog.Logger
}

type Gateway struct {
	table   *Table
	auth    *jwtauth.JWTAuth
	limiter *Limiter
	proxies map[string]*httputil.ReverseProxy
	cfg     Config
	logger  *slog.Logger
}

func New(cfg Config) (*Gateway, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = DefaultUpstreamTimeout
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	table, err := NewTable(cfg.Routes...)
	if err != nil {
		return nil, err
	}
	for _, r := range table.routes {
		if r.RequireIdentity && len(cfg.JWTSecret) == 0 {
			return nil, fmt.Errorf("route %s requires identity but no JWT secret is configured", r.Prefix)
		}
	}

	transport := cfg.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.ResponseHeaderTimeout = cfg.UpstreamTimeout
		transport = t
	}

	g := &Gateway{
		table:   table,
		proxies: make(map[string]*httputil.ReverseProxy),
		cfg:     cfg,
		logger:  cfg.Logger,
	}
	if len(cfg.JWTSecret) > 0 {
		g.auth = jwtauth.New("HS256", cfg.JWTSecret, nil)
	}
	if cfg.Limits != nil {
		g.limiter = NewLimiter(cfg.Limits, cfg.RateLimit, cfg.RateWindow, cfg.Logger)
	}
	for _, r := range table.routes {
		g.proxies[r.Prefix] = g.newProxy(r, transport)
	}
	return g, nil
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   g.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", httpapi.RequestIDHeader},
		ExposedHeaders:   []string{"RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset", httpapi.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if g.cfg.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(httpapi.RequestID)
	r.Use(httpapi.Logging(g.logger))
	r.Use(httpapi.Recovery)
	if g.limiter != nil {
		r.Use(g.rateLimit)
	}

	r.Handle("/*", http.HandlerFunc(g.forward))
	return r
}

func (g *Gateway) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientIP(r)
		d := g.limiter.Allow(r.Context(), client)

		h := w.Header()
		h.Set("RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
		h.Set("RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
		h.Set("RateLimit-Reset", strconv.Itoa(secondsUntil(d.Reset)))

		if !d.Allowed {
			g.logger.Warn("Rate limit exceeded", "client", client, "path", r.URL.Path)
			h.Set("Retry-After", strconv.Itoa(secondsUntil(d.Reset)))
			apperror.Render(w, r, apperror.RateLimited("gateway.ratelimit", "Too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) forward(w http.ResponseWriter, r *http.Request) {
	route, ok := g.table.Resolve(r.URL.Path)
	if !ok {
		apperror.Render(w, r, apperror.NotFound("gateway.route", "route not found"))
		return
	}

	if route.RequireIdentity {
		userID, err := g.authenticate(r)
		if err != nil {
			apperror.Render(w, r, err)
			return
		}
		r = r.WithContext(context.WithValue(r.Context(), httpapi.UserIDKey, userID))
	}

	g.proxies[route.Prefix].ServeHTTP(w, r)
}

func (g *Gateway) authenticate(r *http.Request) (uuid.UUID, error) {
	const op = "gateway.auth"

	token, err := jwtauth.VerifyRequest(g.auth, r, jwtauth.TokenFromHeader)
	if err != nil {
		return uuid.Nil, apperror.Auth(op, "Authentication required", err)
	}
	claim, _ := token.Get(identity.ClaimUserID)
	raw, _ := claim.(string)
	userID, err := uuid.Parse(raw)
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, apperror.Auth(op, "Invalid token", err)
	}
	return userID, nil
}

func (g *Gateway) newProxy(route Route, transport http.RoundTripper) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(route.Upstream)
			pr.Out.URL.Path = joinPath(route.Upstream.Path, route.RewritePath(pr.In.URL.Path))
			pr.Out.URL.RawPath = ""

			// Only the gateway may assert identity.
			for name := range pr.Out.Header {
				if strings.EqualFold(name, httpapi.UserIDHeader) {
					delete(pr.Out.Header, name)
				}
			}
			if route.RequireIdentity {
				if userID, ok := httpapi.UserID(pr.In.Context()); ok {
					pr.Out.Header.Set(httpapi.UserIDHeader, userID.String())
				}
			}
			pr.SetXForwarded()
		},
		Transport: transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			g.logger.Error("Upstream request failed", "route", route.Prefix, "upstream", route.Upstream.Host, "err", err)
			apperror.RenderStatus(w, r, http.StatusBadGateway, apperror.Transport("gateway.forward", err))
		},
	}
}

func joinPath(base, path string) string {
	p := strings.TrimSuffix(base, "/") + path
	if p == "" {
		return "/"
	}
	return p
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func secondsUntil(t time.Time) int {
	s := int(time.Until(t).Seconds() + 0.999)
	if s < 0 {
		return 0
	}
	return s
}
