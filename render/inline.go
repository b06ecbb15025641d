package render

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
)

// inlineStyle is the formatting in effect while walking inline nodes.
type inlineStyle struct {
	face   face
	bold   bool
	italic bool
	size   float64
	color  Color
	link   string
}

// piece is one unbreakable run of text.
type piece struct {
	text  string
	st    inlineStyle
	space bool // whitespace precedes the piece
	hard  bool // hard line break follows the piece
	w     float64
	sw    float64
}

type placed struct {
	piece
	gap float64
}

type line struct {
	pieces []placed
	width  float64
	gaps   int
	last   bool
}

type alignment int

const (
	alignLeft alignment = iota
	alignJustify
	alignCenter
	alignRight
)

// collector flattens inline nodes into pieces.
type collector struct {
	src    []byte
	mono   face
	accent Color
	pieces []piece
	space  bool
}

func (c *collector) words(s string, st inlineStyle) {
	start := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			if start >= 0 {
				c.add(s[start:i], st)
				start = -1
			}
			c.space = true
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		c.add(s[start:], st)
	}
}

func (c *collector) add(w string, st inlineStyle) {
	c.pieces = append(c.pieces, piece{text: w, st: st, space: c.space && len(c.pieces) > 0})
	c.space = false
}

func (c *collector) hardBreak() {
	if n := len(c.pieces); n > 0 {
		c.pieces[n-1].hard = true
	}
	c.space = false
}

func (c *collector) inline(n ast.Node, st inlineStyle) {
	for ch := n.FirstChild(); ch != nil; ch = ch.NextSibling() {
		switch ch := ch.(type) {
		case *ast.Text:
			c.words(string(ch.Segment.Value(c.src)), st)
			if ch.HardLineBreak() {
				c.hardBreak()
			} else if ch.SoftLineBreak() {
				c.space = true
			}
		case *ast.String:
			c.words(string(ch.Value), st)
		case *ast.CodeSpan:
			code := st
			code.face = c.mono
			code.bold, code.italic = false, false
			code.size = st.size * 0.9
			c.inline(ch, code)
		case *ast.Emphasis:
			em := st
			if ch.Level >= 2 {
				em.bold = true
			} else {
				em.italic = true
			}
			c.inline(ch, em)
		case *ast.Link:
			ln := st
			ln.link = string(ch.Destination)
			ln.color = c.accent
			c.inline(ch, ln)
		case *ast.AutoLink:
			ln := st
			ln.link = string(ch.URL(c.src))
			ln.color = c.accent
			c.words(string(ch.Label(c.src)), ln)
		case *ast.Image:
			alt := st
			alt.italic = true
			c.inline(ch, alt)
		case *ast.RawHTML:
			var raw strings.Builder
			for i := 0; i < ch.Segments.Len(); i++ {
				seg := ch.Segments.At(i)
				raw.Write(seg.Value(c.src))
			}
			if strings.HasPrefix(strings.ToLower(raw.String()), "<br") {
				c.hardBreak()
			}
		case *extast.FootnoteLink:
			ref := st
			ref.color = c.accent
			ref.size = st.size * 0.8
			c.add(fmt.Sprintf("[%d]", ch.Index), ref)
		case *extast.FootnoteBacklink:
		default:
			c.inline(ch, st)
		}
	}
}

func plainText(pieces []piece) string {
	var sb strings.Builder
	for i, p := range pieces {
		if i > 0 && p.space {
			sb.WriteByte(' ')
		}
		sb.WriteString(p.text)
	}
	return sb.String()
}
