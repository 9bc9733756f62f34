// cmd/pawsight/main.go
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/text"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Shlok909/pawsitiveAI/internal/analysis"
	"github.com/Shlok909/pawsitiveAI/internal/config"
	"github.com/Shlok909/pawsitiveAI/internal/media"
	"github.com/Shlok909/pawsitiveAI/internal/report"
	"github.com/Shlok909/pawsitiveAI/internal/server"
	"github.com/Shlok909/pawsitiveAI/internal/session"
	"github.com/Shlok909/pawsitiveAI/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "pawsight",
	Short: "Dog behavior and health analysis via generative AI",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pawsight server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		srv, err := server.New(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return srv.Run(ctx)
	},
}

var (
	analyzeFile  string
	analyzeBreed string
	analyzeAge   float64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a single video or photo and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		breed := analyzeBreed
		if breed == "" {
			breed = cfg.Profile.Breed
		}
		age := analyzeAge
		if age == 0 {
			age = cfg.Profile.AgeYears
		}
		if breed == "" {
			return fmt.Errorf("breed is required (--breed or profile.breed in config)")
		}

		intake := media.NewIntake(cfg.MaxUploadBytes)
		mtype, data, err := intake.AcceptFile(analyzeFile)
		if err != nil {
			return err
		}

		var endpoints []analysis.Endpoint
		for _, ep := range cfg.LLMEndpoints {
			endpoints = append(endpoints, analysis.Endpoint{URL: ep.URL, Model: ep.Model, APIKey: ep.APIKey})
		}
		analyzer := analysis.NewClient(endpoints)
		uploader := media.NewUploader(cfg.Upload.Endpoint, cfg.Upload.Preset)

		db, err := store.OpenSQLite(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		in := session.Input{
			Subject: report.Subject{Breed: breed, AgeYears: age},
		}
		if uploader.Configured() {
			in.Raw = &session.RawMedia{Name: analyzeFile, MIME: mtype, Data: data}
		} else {
			if int64(len(data)) > cfg.InlineLimitBytes {
				return fmt.Errorf("%s exceeds the inline limit and no upload endpoint is configured", analyzeFile)
			}
			in.Ref = media.Inline(mtype, data)
		}

		coord := session.NewCoordinator(analyzer, uploader, db,
			time.Duration(cfg.ProgressTickMs)*time.Millisecond)
		id, err := coord.Run(cmd.Context(), in)
		if err != nil {
			return err
		}

		rep, err := db.Get(id)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(store.StoredReport{ID: id, Report: *rep}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "pawsight.yaml", "path to config file")

	analyzeCmd.Flags().StringVarP(&analyzeFile, "file", "f", "", "video or photo to analyze")
	analyzeCmd.Flags().StringVar(&analyzeBreed, "breed", "", "dog breed")
	analyzeCmd.Flags().Float64Var(&analyzeAge, "age", 0, "dog age in years")
	analyzeCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
}

func main() {
	godotenv.Load()
	log.SetHandler(text.New(os.Stderr))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
