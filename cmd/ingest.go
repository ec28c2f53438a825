package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"warelay/internal/config"
	"warelay/internal/rag"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build the retrieval index once and report its size",
	Long: `Read the document directory, chunk and embed its contents, and print what
the index would contain. Useful for validating documents and embedding
credentials before pointing the webhook at a deployment.`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	settings, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	engine := rag.NewEngine(
		rag.Config{DataDir: settings.DataDir},
		rag.NewHTTPEmbedder(settings.OpenAIAPIKey, settings.OpenAIBaseURL, settings.EmbeddingModel),
		rag.NewChatCompleter(settings.OpenAIAPIKey, settings.OpenAIBaseURL, settings.ChatModel),
	)

	stats, err := engine.BuildNow(cmd.Context())
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}

	if stats.Fallback {
		fmt.Printf("No documents under %s — the relay will answer without retrieval.\n", settings.DataDir)
		return nil
	}
	fmt.Printf("Index built: %d documents, %d chunks (dir: %s)\n",
		stats.Documents, stats.Chunks, settings.DataDir)
	return nil
}
