// Package server exposes the blinks service over HTTP with gin.
package server

import (
	"net/http"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/barkprotocol/blinks"
	"github.com/barkprotocol/blinks/actions"
	"github.com/barkprotocol/blinks/logger"
	"github.com/barkprotocol/blinks/metrics"
)

type Server struct {
	blinks  *blinks.Blinks
	engine  *gin.Engine
	logger  logger.Logger
	metrics metrics.Recorder
	baseURL string
	proxies []netip.Prefix
}

// New builds the router. metricsHandler is mounted at /metrics when not nil.
func New(b *blinks.Blinks, log logger.Logger, rec metrics.Recorder, metricsHandler http.Handler) *Server {
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	s := &Server{
		blinks:  b,
		engine:  gin.New(),
		logger:  log.With(map[string]any{"component": "http"}),
		metrics: rec,
		baseURL: b.Config().Server.BaseURL,
	}

	trusted := b.Config().Server.TrustedProxies
	if err := s.engine.SetTrustedProxies(trusted); err != nil {
		s.logger.Error("invalid trusted proxies", map[string]any{"error": err})
	}
	s.proxies = parseProxies(trusted)

	s.engine.Use(gin.Recovery(), requestLogger(s.logger), instrument(rec))
	s.routes(metricsHandler)
	return s
}

func (s *Server) routes(metricsHandler http.Handler) {
	r := s.engine

	r.GET("/healthz", s.health)
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	headers := actionHeaders(actions.Headers(s.blinks.Cluster()))

	act := r.Group(actions.PathPrefix, headers)
	{
		act.OPTIONS(":action", noContent)
		act.GET(":action", s.describeAction)
		act.POST(":action", s.buildTransaction)
	}

	rules := r.Group("/actions.json", headers)
	{
		rules.OPTIONS("", noContent)
		rules.GET("", s.listRules)
		rules.POST("", s.addRule)
		rules.PUT("", s.updateRule)
		rules.DELETE("", s.deleteRule)
	}

	pay := r.Group("/solana-pay")
	{
		pay.GET("/checkout", s.checkout)
		pay.GET("/status", s.status)
		pay.POST("/webhook", s.webhook)
	}
}

// Handler returns the root http.Handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// HTTPServer returns an http.Server for addr with the configured timeouts
func (s *Server) HTTPServer() *http.Server {
	cfg := s.blinks.Config().Server
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// parseProxies turns IPs and CIDRs into prefixes; entries that parse as
// neither were already rejected by config validation.
func parseProxies(entries []string) []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if p, err := netip.ParsePrefix(e); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(e); err == nil {
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return prefixes
}

// fromTrustedProxy reports whether the direct peer may set forwarded headers
func (s *Server) fromTrustedProxy(c *gin.Context) bool {
	if len(s.proxies) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(c.RemoteIP())
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range s.proxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"cluster":         s.blinks.Cluster().String(),
		"version":         blinks.Version,
		"protocolVersion": blinks.ProtocolVersion,
	})
}
