package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ebook_generator/extractor"
	"ebook_generator/generator"
	"ebook_generator/logging"
	"ebook_generator/metrics"
	"ebook_generator/render"
	"ebook_generator/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		addr := cfg.Server.Addr()
		if serveAddr != "" {
			addr = serveAddr
		}

		srv := &http.Server{
			Addr:              addr,
			Handler:           server.New(cfg).Routes(),
			ReadHeaderTimeout: 10 * time.Second,
			// three provider calls of up to StageTimeout each, plus rendering
			WriteTimeout: 3*generator.StageTimeout + time.Minute,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			logging.Default().Info("starting web server", "addr", addr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		logging.Default().Info("shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

var (
	genText     string
	genTextFile string
	genPersona  string
	genFiles    []string
	genOut      string
	genMarkdown string
	genModel    string
	genEdit     string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an ebook PDF from the command line",
	Long:  "Runs the analysis, draft and edit stages and writes the PDF. API keys are read from GOOGLE_API_KEY or OPENAI_API_KEY.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		logger := logging.FromContext(ctx)

		text := genText
		if genTextFile != "" {
			data, err := os.ReadFile(genTextFile)
			if err != nil {
				return fmt.Errorf("read text file: %w", err)
			}
			text = string(data)
		}

		uploads := make([]extractor.File, 0, len(genFiles))
		for _, path := range genFiles {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read reference %s: %w", path, err)
			}
			uploads = append(uploads, extractor.File{Name: filepath.Base(path), Data: data})
		}
		references, err := extractor.Extract(uploads)
		if err != nil {
			return err
		}

		creds := generator.Credentials{
			GoogleAPIKey: os.Getenv("GOOGLE_API_KEY"),
			OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		}
		kind, err := generator.SelectProvider(creds)
		if err != nil {
			return err
		}
		llm, err := generator.NewLLM(ctx, creds)
		if err != nil {
			return fmt.Errorf("initialize %s client: %w", kind, err)
		}
		pipeline, err := generator.NewPipeline(llm)
		if err != nil {
			return err
		}

		content, chat := cfg.LLM.GoogleModel, cfg.LLM.OpenAIModel
		if genModel != "" {
			content, chat = genModel, genModel
		}
		res, err := pipeline.Run(ctx, generator.Input{Text: text, Persona: genPersona, References: references},
			generator.SelectModels(kind, content, genEdit, chat))
		if err != nil {
			var stageErr *generator.StageError
			if errors.As(err, &stageErr) {
				return errors.New(stageErr.Message())
			}
			return err
		}
		for _, st := range res.Stages {
			logger.Debug("stage report", "stage", st.Stage, "model", st.Model, "skipped", st.Skipped, "chars", st.Chars, "duration", st.Duration)
		}

		if genMarkdown != "" {
			if err := os.WriteFile(genMarkdown, []byte(res.Manuscript.Markdown), 0o644); err != nil {
				return fmt.Errorf("write markdown: %w", err)
			}
		}

		out := genOut
		if out == "" {
			out = filepath.Join(cfg.Output.Dir, cfg.Output.Filename)
		}
		return writePDF(cfg.Render.FontDir, res.Manuscript, out, "")
	},
}

var (
	renderMD   string
	renderOut  string
	renderHTML string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render an existing Markdown manuscript to PDF",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(renderMD)
		if err != nil {
			return fmt.Errorf("read markdown: %w", err)
		}
		return writePDF(cfg.Render.FontDir, generator.NewManuscript(string(data)), renderOut, renderHTML)
	},
}

func writePDF(fontDir string, m generator.Manuscript, out, htmlOut string) error {
	theme := render.DefaultTheme()
	theme.FontDir = fontDir
	doc, err := render.New(theme).RenderWithMeta(m.Markdown, render.Metadata{Title: m.Title, Subject: m.Digest})
	metrics.ObserveRender(doc.Pages, err)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(out); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(out, doc.PDF, 0o644); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	if htmlOut != "" {
		if err := os.WriteFile(htmlOut, []byte(doc.HTML), 0o644); err != nil {
			return fmt.Errorf("write html: %w", err)
		}
	}
	logging.Default().Info("ebook written", "path", out, "pages", doc.Pages, "bytes", len(doc.PDF))
	return nil
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.host/server.port)")

	generateCmd.Flags().StringVar(&genText, "text", "", "main text content")
	generateCmd.Flags().StringVar(&genTextFile, "text-file", "", "read the main text from a file")
	generateCmd.Flags().StringVar(&genPersona, "persona", generator.DefaultPersona, "author persona")
	generateCmd.Flags().StringSliceVarP(&genFiles, "file", "f", nil, "reference documents (.pdf, .txt); repeatable")
	generateCmd.Flags().StringVarP(&genOut, "out", "o", "", "output PDF path (default output.dir/output.filename)")
	generateCmd.Flags().StringVar(&genMarkdown, "markdown-out", "", "also write the final Markdown to this path")
	generateCmd.Flags().StringVar(&genModel, "model", "", "model for all stages (overrides llm.google_model / llm.openai_model)")
	generateCmd.Flags().StringVar(&genEdit, "edit-model", "", "Gemini model for the edit stage")
	generateCmd.MarkFlagsMutuallyExclusive("text", "text-file")
	generateCmd.MarkFlagsOneRequired("text", "text-file")

	renderCmd.Flags().StringVar(&renderMD, "md", "", "path to the Markdown manuscript")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "ebook.pdf", "output PDF path")
	renderCmd.Flags().StringVar(&renderHTML, "html", "", "also write the intermediate HTML to this path")
	_ = renderCmd.MarkFlagRequired("md")
}
