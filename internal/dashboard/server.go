// Package dashboard serves a local web view of conversations and
// appointments.
package dashboard

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// shutdownGrace bounds how long in-flight requests may finish after cancel.
const shutdownGrace = 5 * time.Second

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	DB   *gorm.DB
	Host string // defaults to loopback; patient data stays on this machine
	Port int
	Out  io.Writer
}

// Start launches the dashboard HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("dashboard: db is required")
	}
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	router, err := newRouter(opts.DB)
	if err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}

	srv := &http.Server{
		Addr:    net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		graceCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		srv.Shutdown(graceCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard running at http://%s/\n", srv.Addr)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// newRouter assembles the gin engine with templates, assets, and routes.
func newRouter(db *gorm.DB) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	router.SetHTMLTemplate(tmpl)

	registerRoutes(router, db)
	return router, nil
}

// parseTemplates loads the embedded HTML templates.
func parseTemplates() (*template.Template, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}
