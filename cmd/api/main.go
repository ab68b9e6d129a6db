package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/liwenzhu/kali-chat/internal/config"
	"github.com/liwenzhu/kali-chat/internal/handler"
	"github.com/liwenzhu/kali-chat/internal/service/ai"
	chatservice "github.com/liwenzhu/kali-chat/internal/service/chat"
	"github.com/liwenzhu/kali-chat/internal/service/summary"
	"github.com/liwenzhu/kali-chat/internal/session"
	"github.com/liwenzhu/kali-chat/internal/store"
)

// historyLimit caps the messages returned by /history.
const historyLimit = 10

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	sessions, err := session.NewManager(cfg.Session.Dir, cfg.Session.TTL, st, cfg.Session.PersistentDefault)
	if err != nil {
		log.Fatalf("failed to initialize session manager: %v", err)
	}
	if _, err := sessions.CleanupExpired(); err != nil {
		log.Printf("warning: session cleanup failed: %v", err)
	}

	if !cfg.LLM.Enabled() {
		log.Fatal("LLM credentials missing: set LLM_API_KEY and LLM_MODEL")
	}

	aiService, err := ai.NewService(ctx, cfg.LLM)
	if err != nil {
		log.Fatalf("failed to initialize AI service: %v", err)
	}

	summaryModel, err := cfg.NewSummaryModel(ctx)
	if err != nil {
		log.Fatalf("failed to initialize summary model: %v", err)
	}
	summarySvc := summary.NewService(summaryModel, cfg.Summary.MaxWords)

	chatService := chatservice.NewService(st, sessions, aiService, summarySvc, cfg.LLM.MaxContext, cfg.Summary.Trigger)

	router := handler.NewRouter(chatService, st, historyLimit, cfg.LLM.Enabled())

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Kali Chat backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
