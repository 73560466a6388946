package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragbase/internal/extract"
	"github.com/xxxsen/ragbase/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "ragbase",
		Short:        "document retrieval service",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (yaml or json)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServer(a)
		},
	}

	var title, file string
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "chunk, embed and store a local text or markdown file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			content, err := extract.Text(file, data)
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			res, err := a.retrieval.Ingest(cmd.Context(), title, content)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
	ingestCmd.Flags().StringVar(&title, "title", "", "document title")
	ingestCmd.Flags().StringVar(&file, "file", "", "path to .txt or .md file")
	_ = ingestCmd.MarkFlagRequired("title")
	_ = ingestCmd.MarkFlagRequired("file")

	var query string
	var limit int
	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "query stored chunks by similarity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			results, err := a.retrieval.Query(cmd.Context(), query, limit)
			if err != nil {
				return err
			}
			return printJSON(results)
		},
	}
	searchCmd.Flags().StringVar(&query, "query", "", "query text")
	searchCmd.Flags().IntVar(&limit, "limit", service.DefaultQueryLimit, "max results")
	_ = searchCmd.MarkFlagRequired("query")

	rootCmd.AddCommand(runCmd, ingestCmd, searchCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logutil.GetLogger(context.Background()).Fatal("command failed", zap.Error(err))
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
