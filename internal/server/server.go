// internal/server/server.go
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"

	"github.com/Shlok909/pawsitiveAI/internal/analysis"
	"github.com/Shlok909/pawsitiveAI/internal/chat"
	"github.com/Shlok909/pawsitiveAI/internal/config"
	"github.com/Shlok909/pawsitiveAI/internal/media"
	"github.com/Shlok909/pawsitiveAI/internal/session"
	"github.com/Shlok909/pawsitiveAI/internal/store"
)

// Server is the pawsight HTTP server.
type Server struct {
	cfg    *config.Config
	db     *store.SQLite
	server *http.Server
}

// New opens the store and wires the analysis pipeline, chat, and capture
// behind the HTTP surface.
func New(cfg *config.Config) (*Server, error) {
	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var analysisEPs []analysis.Endpoint
	var chatEPs []chat.Endpoint
	for _, ep := range cfg.LLMEndpoints {
		analysisEPs = append(analysisEPs, analysis.Endpoint{URL: ep.URL, Model: ep.Model, APIKey: ep.APIKey})
		chatEPs = append(chatEPs, chat.Endpoint{URL: ep.URL, Model: ep.Model, APIKey: ep.APIKey})
	}

	analyzer := analysis.NewClient(analysisEPs)
	assistant := chat.NewAssistant(chatEPs)
	uploader := media.NewUploader(cfg.Upload.Endpoint, cfg.Upload.Preset)

	coord := session.NewCoordinator(analyzer, uploader, db,
		time.Duration(cfg.ProgressTickMs)*time.Millisecond)
	chats := chat.NewManager(db, assistant)
	recorder := media.NewRecorder(
		time.Duration(cfg.Capture.MinSeconds)*time.Second,
		time.Duration(cfg.Capture.MaxSeconds)*time.Second)
	intake := media.NewIntake(cfg.MaxUploadBytes)

	handler := NewHandler(coord, db, chats, recorder, intake, cfg, uploader.Configured())

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler.Routes(),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		cfg:    cfg,
		db:     db,
		server: server,
	}, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	log.WithField("addr", ln.Addr().String()).Info("pawsight server starting")
	return s.serve(ctx, ln)
}

// RunAndGetAddr starts serving and returns the bound address. Serving
// continues in the background until ctx is cancelled.
func (s *Server) RunAndGetAddr(ctx context.Context) (string, error) {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return "", err
	}
	go func() {
		if err := s.serve(ctx, ln); err != nil {
			log.WithError(err).Error("pawsight server stopped")
		}
	}()
	return ln.Addr().String(), nil
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	useTLS := s.cfg.TLSCert != "" && s.cfg.TLSKey != ""
	if useTLS {
		cert, err := tls.LoadX509KeyPair(s.cfg.TLSCert, s.cfg.TLSKey)
		if err != nil {
			return fmt.Errorf("load TLS cert: %w", err)
		}
		s.server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if useTLS {
			err = s.server.ServeTLS(ln, "", "")
		} else {
			err = s.server.Serve(ln)
		}
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("pawsight server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if closeErr := s.db.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
