// Package server exposes the manager over HTTP for operators.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/config"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/control"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/core"
	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/transport"
)

// Manager is the part of the core manager the server reads and drives
type Manager interface {
	Status() core.Status
	ProcessCommand(user, cmd string, isMod, isSuperUser bool) string
}

// Server is the operator HTTP server
type Server struct {
	mgr  Manager
	conn transport.Conn
	chat *control.Handler
	http *http.Server
}

type commandRequest struct {
	User      string `json:"user" binding:"required"`
	Text      string `json:"text" binding:"required"`
	Mod       bool   `json:"mod"`
	SuperUser bool   `json:"superuser"`
}

type statusResponse struct {
	Manager   core.Status     `json:"manager"`
	Transport transport.Stats `json:"transport"`
	Chat      *control.Stats  `json:"chat,omitempty"`
}

// New creates a server. chat may be nil when no chat handler runs.
func New(cfg config.HTTPConfig, mgr Manager, conn transport.Conn, chat *control.Handler) *Server {
	s := &Server{mgr: mgr, conn: conn, chat: chat}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(cfg.AllowOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes(allowOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	if len(allowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: allowOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}

	r.GET("/healthz", s.health)
	r.GET("/status", s.status)
	r.POST("/command", s.command)
	return r
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	slog.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown failed: %w", err)
	}
	slog.Info("http server stopped")
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"connected": s.conn.IsConnected(),
		"pipeline":  s.mgr.Status().Status,
	})
}

func (s *Server) status(c *gin.Context) {
	resp := statusResponse{
		Manager:   s.mgr.Status(),
		Transport: s.conn.Stats(),
	}
	if s.chat != nil {
		st := s.chat.Stats()
		resp.Chat = &st
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) command(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid-request-format"})
		return
	}

	reply := s.mgr.ProcessCommand(req.User, req.Text, req.Mod, req.SuperUser)
	slog.Debug("http command", "user", req.User, "command", req.Text, "replied", reply != "")
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
