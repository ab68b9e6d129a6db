package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/liwenzhu/kali-chat/internal/client"
	"github.com/liwenzhu/kali-chat/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	var (
		serverURL   string
		sessionFile string
		timeout     time.Duration
		plain       bool
	)

	cmd := &cobra.Command{
		Use:   "kali-chat",
		Short: "Interactive terminal client for the Kali chat service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := godotenv.Load(); err != nil {
				log.Printf("continuing without .env file: %v", err)
			}

			cfg, err := config.LoadClient()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("server") {
				serverURL = cfg.ServerURL
			}
			if !cmd.Flags().Changed("session-file") {
				sessionFile = cfg.SessionFile
			}
			if !cmd.Flags().Changed("timeout") {
				timeout = cfg.Timeout
			}
			spacing := cfg.Spacing && !plain

			chatClient := client.New(serverURL, &http.Client{}, spacing)
			sessions := client.NewSessionStore(sessionFile)
			repl := client.NewREPL(chatClient, sessions, os.Stdin, os.Stdout, timeout)

			return repl.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8000", "chat service base URL")
	cmd.Flags().StringVar(&sessionFile, "session-file", ".chat_session", "file holding the current session id")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "per-turn stream timeout")
	cmd.Flags().BoolVar(&plain, "plain", false, "do not join reply fragments with spaces")

	return cmd
}
