package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"warelay/internal/audio"
	"warelay/internal/config"
	"warelay/internal/dedup"
	"warelay/internal/dispatch"
	"warelay/internal/rag"
	"warelay/internal/relay"
	"warelay/internal/webhook"
	"warelay/internal/whatsapp"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook relay server",
	Long: `Start the relay: verify webhook subscriptions, accept message deliveries,
and answer each message through the retrieval engine. Blocking upstream
calls run on a worker pool so deliveries are always acknowledged promptly.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP port (overrides PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	settings, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	if servePort != 0 {
		settings.Port = servePort
	}

	deduper := dedup.New(settings.RedisURL)
	defer deduper.Close()

	engine := rag.NewEngine(
		rag.Config{DataDir: settings.DataDir},
		rag.NewHTTPEmbedder(settings.OpenAIAPIKey, settings.OpenAIBaseURL, settings.EmbeddingModel),
		rag.NewChatCompleter(settings.OpenAIAPIKey, settings.OpenAIBaseURL, settings.ChatModel),
	)

	messenger := whatsapp.NewClient(whatsapp.Config{
		Token:         settings.WhatsAppToken,
		PhoneNumberID: settings.PhoneNumberID,
		GraphVersion:  settings.GraphVersion,
	})

	bridge := audio.NewBridge(audio.Config{
		APIKey:   settings.OpenAIAPIKey,
		BaseURL:  settings.OpenAIBaseURL,
		STTModel: settings.STTModel,
		TTSModel: settings.TTSModel,
		TTSVoice: settings.TTSVoice,
	})

	service := relay.NewService(messenger, engine, bridge, "")
	pool := dispatch.NewPool(settings.Workers, 256)

	handler := webhook.NewHandler(settings.VerifyToken, service, deduper, pool)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", settings.Port),
		Handler: webhook.NewRouter(handler),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[Serve] %s received, shutting down", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("[Serve] data dir: %s", settings.DataDir)
	log.Printf("[Serve] listening on :%d (%d workers)", settings.Port, settings.Workers)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}

	// Finish messages already in flight before exiting.
	pool.Stop()
	log.Println("[Serve] drained, bye")
	return nil
}
