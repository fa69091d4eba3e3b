package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/warden-app/warden/internal/lifecycle"
)

// Router exposes the supervisor's command surface to the presentation layer.
// Endpoints:
//
//	GET  {basePath}/service/url     -> {"url": "..."} or 503 while starting
//	GET  {basePath}/service/status  -> lifecycle.Status JSON
//	POST {basePath}/service/stop    -> runs the exit sequence (process exits)
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	orch     *lifecycle.Orchestrator
	basePath string
}

// NewRouter constructs a new Router with configurable basePath.
func NewRouter(orch *lifecycle.Orchestrator, basePath string) *Router {
	return &Router{orch: orch, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/service/url", r.handleServiceURL)
	group.GET("/service/status", r.handleServiceStatus)
	group.POST("/service/stop", r.handleServiceStop)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, orch *lifecycle.Orchestrator) (*http.Server, error) {
	r := NewRouter(orch, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type urlResp struct {
	URL string `json:"url"`
}

func (r *Router) handleServiceURL(c *gin.Context) {
	url, err := r.orch.ServiceURL(c.Request.Context())
	if err != nil {
		if errors.Is(err, lifecycle.ErrServiceNotReady) {
			c.JSON(http.StatusServiceUnavailable, errorResp{Error: "service not ready"})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, urlResp{URL: url})
}

func (r *Router) handleServiceStatus(c *gin.Context) {
	st, err := r.orch.ServiceStatus()
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (r *Router) handleServiceStop(c *gin.Context) {
	// The exit sequence terminates this process; acknowledge first and run
	// the sequence detached from the request's context.
	c.JSON(http.StatusAccepted, gin.H{"stopping": true})
	go r.orch.HandleExitRequest(context.Background())
}

func sanitizeBase(basePath string) string {
	bp := strings.TrimSpace(basePath)
	if bp == "" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return strings.TrimRight(bp, "/")
}
