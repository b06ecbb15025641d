package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"
)

// Color is an RGB triple.
type Color struct {
	R, G, B int
}

// Hex parses "#rrggbb" (the leading # is optional).
func Hex(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return Color{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return Color{R: int(v >> 16 & 0xff), G: int(v >> 8 & 0xff), B: int(v & 0xff)}, nil
}

var white = Color{R: 255, G: 255, B: 255}

func mustHex(s string) Color {
	c, err := Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Theme is the fixed stylesheet of the generated ebook. Lengths are millimetres, sizes points.
type Theme struct {
	PageSize   string
	Margin     float64
	BodySize   float64
	LineHeight float64

	Text        Color
	Heading     Color
	Accent      Color
	CalloutFill Color
	CodeFill    Color
	TableHeader Color
	Border      Color

	// FontDir holds Montserrat and Merriweather TTF files. Empty selects the core PDF fonts.
	FontDir string
}

// DefaultTheme mirrors the ebook stylesheet: A4, 2.8 cm margins, 12 pt serif body.
func DefaultTheme() Theme {
	return Theme{
		PageSize:    "A4",
		Margin:      28,
		BodySize:    12,
		LineHeight:  1.7,
		Text:        mustHex("#1a1a1a"),
		Heading:     mustHex("#000000"),
		Accent:      mustHex("#5A67D8"),
		CalloutFill: mustHex("#f4f8fb"),
		CodeFill:    mustHex("#f4f4f4"),
		TableHeader: mustHex("#eef0fb"),
		Border:      mustHex("#dddddd"),
	}
}

type fontFile struct {
	family string
	style  string
	file   string
}

const (
	headingFamily = "Montserrat"
	bodyFamily    = "Merriweather"
)

var fontFiles = []fontFile{
	{headingFamily, "", "Montserrat-Regular.ttf"},
	{headingFamily, "B", "Montserrat-Bold.ttf"},
	{bodyFamily, "", "Merriweather-Regular.ttf"},
	{bodyFamily, "I", "Merriweather-Italic.ttf"},
	{bodyFamily, "B", "Merriweather-Bold.ttf"},
	{bodyFamily, "BI", "Merriweather-BoldItalic.ttf"},
}

// face is one font family as the layout sees it.
type face struct {
	family string
	core   bool
	italic bool
}

// style drops the italic flag for families registered without italics.
func (f face) style(bold, italic bool) string {
	s := ""
	if bold {
		s += "B"
	}
	if italic && f.italic {
		s += "I"
	}
	return s
}

type fontSet struct {
	heading face
	body    face
	mono    face
}

// registerFonts loads the theme fonts into pdf. Missing files are reported before fpdf sees them.
func registerFonts(pdf *fpdf.Fpdf, theme Theme) (fontSet, error) {
	mono := face{family: "Courier", core: true, italic: true}
	if theme.FontDir == "" {
		return fontSet{
			heading: face{family: "Helvetica", core: true, italic: true},
			body:    face{family: "Times", core: true, italic: true},
			mono:    mono,
		}, nil
	}

	var missing []string
	for _, f := range fontFiles {
		if _, err := os.Stat(filepath.Join(theme.FontDir, f.file)); err != nil {
			missing = append(missing, f.file)
		}
	}
	if len(missing) > 0 {
		return fontSet{}, fmt.Errorf("missing font files in %s: %s", theme.FontDir, strings.Join(missing, ", "))
	}
	for _, f := range fontFiles {
		pdf.AddUTF8Font(f.family, f.style, f.file)
	}
	if err := pdf.Error(); err != nil {
		return fontSet{}, fmt.Errorf("load fonts: %w", err)
	}
	return fontSet{
		heading: face{family: headingFamily},
		body:    face{family: bodyFamily, italic: true},
		mono:    mono,
	}, nil
}
