package server

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ebook_generator/config"
	"ebook_generator/generator"
	"ebook_generator/render"
)

// LLMFactory builds the provider client for one request.
type LLMFactory func(ctx context.Context, creds generator.Credentials) (generator.LLMClient, error)

type Server struct {
	cfg          config.Config
	newLLM       LLMFactory
	renderer     *render.Renderer
	pipelineOpts []generator.Option
}

// Option customises a Server.
type Option func(*Server)

// WithLLMFactory replaces generator.NewLLM.
func WithLLMFactory(f LLMFactory) Option {
	return func(s *Server) {
		if f != nil {
			s.newLLM = f
		}
	}
}

// WithRenderer replaces the renderer built from cfg.Render.
func WithRenderer(r *render.Renderer) Option {
	return func(s *Server) {
		if r != nil {
			s.renderer = r
		}
	}
}

// WithPipelineOptions are passed to every generator.NewPipeline call.
func WithPipelineOptions(opts ...generator.Option) Option {
	return func(s *Server) {
		s.pipelineOpts = append(s.pipelineOpts, opts...)
	}
}

func New(cfg config.Config, opts ...Option) *Server {
	theme := render.DefaultTheme()
	theme.FontDir = cfg.Render.FontDir
	s := &Server{
		cfg:      cfg,
		newLLM:   generator.NewLLM,
		renderer: render.New(theme),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.MaxMultipartMemory = s.maxUpload()
	r.Use(Recovery(), RequestID(), CORS(), Metrics(), AccessLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/generate_ebook", s.handleGenerate)

	if dir := s.cfg.Server.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			r.Static("/static", dir)
			r.GET("/", func(c *gin.Context) {
				c.File(filepath.Join(dir, "index.html"))
			})
		}
	}
	return r
}

func (s *Server) maxUpload() int64 {
	return s.cfg.Server.MaxUploadMB << 20
}
