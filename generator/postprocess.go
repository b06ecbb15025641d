package generator

import (
	"errors"
	"regexp"
	"strings"
)

// ErrEmptyResult means the provider answered but produced no text.
var ErrEmptyResult = errors.New("empty result")

var titleRe = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// PostProcess normalises a stage output: trims it and drops a surrounding code fence.
func PostProcess(raw string) (string, error) {
	text := cleanMarkdownOutput(raw)
	if text == "" {
		return "", ErrEmptyResult
	}
	return text, nil
}

// NewManuscript derives title and digest from the final Markdown.
func NewManuscript(md string) Manuscript {
	digest := extractDigest(md)
	if digest == "" {
		digest = defaultDigest(md, 120)
	}
	return Manuscript{
		Title:    extractTitle(md),
		Digest:   digest,
		Markdown: md,
	}
}

func cleanMarkdownOutput(text string) string {
	text = strings.TrimSpace(text)
	if inner, ok := unwrapFence(text); ok {
		text = inner
	}
	return strings.TrimSpace(text)
}

// unwrapFence returns the body of text when all of it is one fenced block whose info
// string is empty, "markdown" or "md". A bare fence must hold no other fence lines; a
// markdown fence may hold balanced ones.
func unwrapFence(text string) (string, bool) {
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return "", false
	}
	first := strings.TrimSpace(lines[0])
	if !strings.HasPrefix(first, "```") || strings.TrimSpace(lines[len(lines)-1]) != "```" {
		return "", false
	}
	info := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(first, "```")))
	if info != "" && info != "markdown" && info != "md" {
		return "", false
	}

	body := lines[1 : len(lines)-1]
	fences := 0
	for _, line := range body {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			fences++
		}
	}
	if (info == "" && fences > 0) || fences%2 != 0 {
		return "", false
	}
	return strings.Join(body, "\n"), true
}

func extractTitle(md string) string {
	m := titleRe.FindStringSubmatch(md)
	if len(m) >= 2 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// extractDigest returns the first paragraph line that is not a heading or markup.
func extractDigest(md string) string {
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "<") {
			continue
		}
		if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") || strings.HasPrefix(line, ">") {
			continue
		}
		return line
	}
	return ""
}

func defaultDigest(md string, limit int) string {
	joined := strings.Join(strings.Fields(md), " ")
	runes := []rune(joined)
	if len(runes) <= limit {
		return joined
	}
	return string(runes[:limit])
}
