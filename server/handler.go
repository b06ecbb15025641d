package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ebook_generator/apperr"
	"ebook_generator/extractor"
	"ebook_generator/generator"
	"ebook_generator/logging"
	"ebook_generator/metrics"
	"ebook_generator/render"
)

type generateForm struct {
	Text            string
	Persona         string
	GoogleAPIKey    string
	OpenAIAPIKey    string
	OutputPath      string
	GoogleModel     string
	GoogleEditModel string
	OpenAIModel     string
}

func readForm(r *http.Request) generateForm {
	v := func(key string) string { return strings.TrimSpace(r.PostFormValue(key)) }
	return generateForm{
		// the text is passed on untrimmed
		Text:            r.PostFormValue("text_content"),
		Persona:         v("personality"),
		GoogleAPIKey:    v("google_api_key"),
		OpenAIAPIKey:    v("openai_api_key"),
		OutputPath:      v("output_path"),
		GoogleModel:     v("google_model"),
		GoogleEditModel: v("google_edit_model"),
		OpenAIModel:     v("openai_model"),
	}
}

func (f generateForm) credentials() generator.Credentials {
	return generator.Credentials{GoogleAPIKey: f.GoogleAPIKey, OpenAIAPIKey: f.OpenAIAPIKey}
}

func (s *Server) models(kind generator.ProviderKind, f generateForm) generator.Models {
	return generator.SelectModels(kind,
		firstNonEmpty(f.GoogleModel, s.cfg.LLM.GoogleModel),
		f.GoogleEditModel,
		firstNonEmpty(f.OpenAIModel, s.cfg.LLM.OpenAIModel),
	)
}

func (s *Server) handleGenerate(c *gin.Context) {
	ctx := c.Request.Context()

	err := c.Request.ParseMultipartForm(s.maxUpload())
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.fail(c, apperr.Wrap(err, apperr.CodeInvalidParam, "Invalid form data."))
		return
	}
	if mf := c.Request.MultipartForm; mf != nil {
		defer func() { _ = mf.RemoveAll() }()
	}

	form := readForm(c.Request)
	if strings.TrimSpace(form.Text) == "" {
		s.fail(c, apperr.New(apperr.CodeInvalidParam, "The text content is required."))
		return
	}
	creds := form.credentials()
	kind, err := generator.SelectProvider(creds)
	if err != nil {
		s.fail(c, apperr.Wrap(err, apperr.CodeInvalidParam, "Provide at least one API key (Google Gemini or OpenAI)."))
		return
	}
	filename, err := resolveOutputName(s.cfg.Output, form.OutputPath)
	if err != nil {
		s.fail(c, apperr.Wrap(err, apperr.CodeInvalidParam, fmt.Sprintf("Invalid output path: %v.", err)))
		return
	}

	var references []string
	if mf := c.Request.MultipartForm; mf != nil {
		uploads, err := extractor.ReadMultipart(mf.File["files"])
		if err == nil {
			references, err = extractor.Extract(uploads)
		}
		if err != nil {
			s.fail(c, apperr.Wrap(err, apperr.CodeInvalidUpload, fmt.Sprintf("Failed to read the uploaded files: %v", err)))
			return
		}
	}

	llm, err := s.newLLM(ctx, creds)
	if err != nil {
		s.fail(c, apperr.Wrap(err, apperr.CodeProviderInit, fmt.Sprintf("Failed to initialize the %s client: %v", kind, err)))
		return
	}
	pipeline, err := generator.NewPipeline(llm, s.pipelineOpts...)
	if err != nil {
		s.fail(c, apperr.Wrap(err, apperr.CodeProviderInit, fmt.Sprintf("Failed to initialize the %s client: %v", kind, err)))
		return
	}

	in := generator.Input{Text: form.Text, Persona: form.Persona, References: references}
	res, err := pipeline.Run(ctx, in, s.models(kind, form))
	if err != nil {
		msg := "Failed to generate the ebook."
		var stageErr *generator.StageError
		if errors.As(err, &stageErr) {
			msg = stageErr.Message()
		}
		s.fail(c, apperr.Wrap(err, apperr.CodeGenerationFailed, msg))
		return
	}

	doc, err := s.renderer.RenderWithMeta(res.Manuscript.Markdown, render.Metadata{
		Title:   res.Manuscript.Title,
		Subject: res.Manuscript.Digest,
	})
	metrics.ObserveRender(doc.Pages, err)
	if err != nil {
		s.fail(c, apperr.Wrap(err, apperr.CodeRenderFailed, fmt.Sprintf("Failed to convert the ebook to PDF: %v", err)))
		return
	}

	logging.FromContext(ctx).Info("ebook generated",
		"provider", string(kind),
		"references", len(references),
		"pages", doc.Pages,
		"bytes", len(doc.PDF),
		"filename", filename,
	)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", doc.PDF)
}

func (s *Server) fail(c *gin.Context, err error) {
	appErr := apperr.As(err)
	logger := logging.FromContext(c.Request.Context())
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.Error("request failed", "code", appErr.Code, "error", err)
	} else {
		logger.Warn("request rejected", "code", appErr.Code, "error", err)
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{"error": appErr.Message})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
