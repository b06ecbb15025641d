package server

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"ebook_generator/config"
)

var errOutputEscapes = errors.New("output path escapes the output directory")

// resolveOutputName returns the attachment filename for the requested output path.
// Relative paths must stay inside cfg.Dir; absolute and ~ paths are accepted as is.
func resolveOutputName(cfg config.OutputConfig, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return withPDFExt(cfg.Filename), nil
	}

	if !filepath.IsAbs(requested) && requested != "~" && !strings.HasPrefix(requested, "~/") {
		base, err := filepath.Abs(cfg.Dir)
		if err != nil {
			return "", fmt.Errorf("resolve output directory: %w", err)
		}
		target := filepath.Join(base, requested)
		rel, err := filepath.Rel(base, target)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", errOutputEscapes
		}
		requested = target
	}

	name := filepath.Base(filepath.Clean(requested))
	if name == "." || name == string(filepath.Separator) || name == "~" || name == "" {
		return "", fmt.Errorf("output path %q has no file name", requested)
	}
	return withPDFExt(name), nil
}

func withPDFExt(name string) string {
	if filepath.Ext(name) == "" {
		return name + ".pdf"
	}
	return name
}
