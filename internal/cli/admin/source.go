package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/kernelworks/kernelbot/internal/config"
	"github.com/kernelworks/kernelbot/internal/openai"
	"github.com/kernelworks/kernelbot/internal/repository"
	"github.com/kernelworks/kernelbot/internal/service"
)

func SourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Manage knowledge sources",
		Long:  "Add, list and delete the knowledge sources the research tool answers from",
	}

	cmd.AddCommand(SourceAddCmd())
	cmd.AddCommand(SourceListCmd())
	cmd.AddCommand(SourceDeleteCmd())

	return cmd
}

func SourceAddCmd() *cobra.Command {
	var (
		url     string
		content string
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a knowledge source",
		Long:  "Add a knowledge source with the given title, URL and content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runSourceAdd(args[0], url, content, outputFormat)
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Source URL (required)")
	cmd.Flags().StringVar(&content, "content", "", "Source content (required)")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("content")

	return cmd
}

func runSourceAdd(title, url, content, outputFormat string) error {
	ctx := context.Background()

	svc, pool, err := getKnowledgeService(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	source, err := svc.Create(ctx, service.CreateSourceInput{
		Title:   title,
		URL:     url,
		Content: content,
	})
	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"id":         source.ID,
			"title":      source.Title,
			"url":        source.URL,
			"created_at": source.CreatedAt,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Source created: %s (%s)\n", source.Title, source.ID)
	}

	return nil
}

func SourceListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List knowledge sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runSourceList(outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runSourceList(outputFormat string) error {
	ctx := context.Background()

	svc, pool, err := getKnowledgeService(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	sources, err := svc.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}

	if outputFormat == "json" {
		jsonBytes, _ := json.MarshalIndent(sources, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	if len(sources) == 0 {
		fmt.Println("No sources found.")
		return nil
	}
	for _, source := range sources {
		fmt.Printf("%s  %s  %s\n", source.ID, source.Title, source.URL)
	}

	return nil
}

func SourceDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a knowledge source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSourceDelete(args[0])
		},
	}

	return cmd
}

func runSourceDelete(id string) error {
	ctx := context.Background()

	svc, pool, err := getKnowledgeService(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := svc.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}

	fmt.Printf("Source deleted: %s\n", id)
	return nil
}

func getKnowledgeService(ctx context.Context) (*service.KnowledgeService, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasDatabase() {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Without an embedding key sources are created unembedded and the
	// backfill worker picks them up when the server runs.
	var embedder service.EmbedderInterface = noEmbedder{}
	if cfg.HasOpenAI() {
		embedder = openai.NewClient(newOpenAIAPI(cfg))
	}

	return service.NewKnowledgeService(repository.NewSourceRepository(pool), embedder), pool, nil
}

type noEmbedder struct{}

func (noEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("no embedding provider configured")
}
