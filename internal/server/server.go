// Package server is a demo embedding of the streaming multipart parser:
// a small gin application that accepts uploads of any size while keeping
// memory flat. It is glue around pkg/multipart, not part of the core.
package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"streamform/pkg/config"
	"streamform/pkg/logger"
)

// Server hosts the upload demo endpoints.
type Server struct {
	cfg    *config.Config
	log    *logger.Logger
	engine *gin.Engine
}

// New builds the server and its routes from the given configuration.
func New(cfg *config.Config, log *logger.Logger) *Server {
	gin.SetMode(ginMode(cfg.Server.Mode))

	s := &Server{
		cfg: cfg,
		log: log.WithField("component", "server"),
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/", s.handleForm)
	engine.POST("/upload", s.handleUpload)
	s.engine = engine

	return s
}

// Run serves until the listener fails.
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Address, s.cfg.Server.Port)
	s.log.Info("listening", "address", addr)
	return s.engine.Run(addr)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func ginMode(mode string) string {
	switch mode {
	case gin.DebugMode, gin.TestMode:
		return mode
	default:
		return gin.ReleaseMode
	}
}

const demoForm = `<html><body>
<form method="POST" action="/upload" enctype="multipart/form-data">
File #1: <input name="file1" type="file"><br>
File #2: <input name="file2" type="file"><br>
Other field 1: <input name="other1" type="text"><br>
Other field 2: <input name="other2" type="text"><br>
<input type="submit">
</form>
</body></html>`

func (s *Server) handleForm(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, demoForm)
}
