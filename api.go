package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

// APIServer serves read-only HTTP endpoints for health checking and room
// introspection, on a separate port from the collaboration protocol.
type APIServer struct {
	room *Room
	echo *echo.Echo
}

// NewAPIServer constructs an APIServer and registers all routes.
func NewAPIServer(room *Room) *APIServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			logrus.Infof("[api] %s %s %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	s := &APIServer{room: room, echo: e}
	s.registerRoutes()
	return s
}

func (s *APIServer) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/api/room", s.handleRoom)
	s.echo.GET("/api/files", s.handleFiles)
	s.echo.GET("/api/chat", s.handleChat)
	s.echo.GET("/api/stats", s.handleStats)
}

// Run starts the HTTP server on addr and blocks until ctx is canceled.
func (s *APIServer) Run(ctx context.Context, addr string) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.echo.Shutdown(shutCtx); err != nil {
			logrus.Warnf("[api] shutdown: %v", err)
		}
	}()

	logrus.Infof("[api] listening on %s", addr)
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *APIServer) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *APIServer) handleRoom(c echo.Context) error {
	return c.JSON(http.StatusOK, s.room.Snapshot())
}

func (s *APIServer) handleFiles(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{"files": s.room.TrackedFiles()})
}

func (s *APIServer) handleChat(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]ChatMessage{"messages": s.room.ChatLog()})
}

// StatsResponse is the payload for GET /api/stats. The frame and byte
// counters reset on each read, matching the metrics loop's sampling
// behavior; dropped_frames is a running total and does not reset.
type StatsResponse struct {
	Clients   int    `json:"clients"`
	FramesIn  uint64 `json:"frames_in"`
	FramesOut uint64 `json:"frames_out"`
	BytesIn   uint64 `json:"bytes_in"`
	BytesOut  uint64 `json:"bytes_out"`
	Dropped   uint64 `json:"dropped_frames"`
}

func (s *APIServer) handleStats(c echo.Context) error {
	framesIn, framesOut, bytesIn, bytesOut, dropped, clients := s.room.Stats()
	return c.JSON(http.StatusOK, StatsResponse{
		Clients:   clients,
		FramesIn:  framesIn,
		FramesOut: framesOut,
		BytesIn:   bytesIn,
		BytesOut:  bytesOut,
		Dropped:   dropped,
	})
}
