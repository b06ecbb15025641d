package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
)

const (
	calloutBar     = 1.2
	calloutPadding = 3.0
	listStep       = 7.0
	codePadding    = 2.0
	cellPadding    = 1.5
	codeSize       = 10.0
	buttonPadX     = 5.8
	buttonPadY     = 3.7
	buttonRadius   = 1.3
	buttonSize     = 12.0
)

// actionButtonRe matches a paragraph written as [Label](url){.action-button} or [Label]{.action-button}.
var actionButtonRe = regexp.MustCompile(`^\[([^\]]+)\](?:\(\s*([^)\s]*)[^)]*\))?\{\s*\.action-button\s*\}$`)

type box struct {
	x, w float64
}

type marker struct {
	text string
	x, w float64
	size float64
}

// layout walks a goldmark AST and draws it onto pdf pages.
type layout struct {
	pdf   *fpdf.Fpdf
	theme Theme
	fonts fontSet
	src   []byte
	tr    func(string) string

	left, width float64
	top, limit  float64
	size        float64

	callouts   []box
	marker     *marker
	listDepth  int
	dirty      bool
	indentNext bool
	outline    int
}

func layoutDocument(pdf *fpdf.Fpdf, theme Theme, fonts fontSet, src []byte, doc ast.Node) error {
	left, top, right, bottom := pdf.GetMargins()
	pageW, pageH := pdf.GetPageSize()
	l := &layout{
		pdf:     pdf,
		theme:   theme,
		fonts:   fonts,
		src:     src,
		tr:      pdf.UnicodeTranslatorFromDescriptor(""),
		left:    left,
		width:   pageW - left - right,
		top:     top,
		limit:   pageH - bottom,
		size:    theme.BodySize,
		outline: -1,
	}
	pdf.AddPage()
	l.blocks(doc)
	return pdf.Error()
}

func (l *layout) blocks(parent ast.Node) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		l.block(n)
	}
}

func (l *layout) block(n ast.Node) {
	switch n := n.(type) {
	case *ast.Heading:
		l.heading(n)
	case *ast.Paragraph, *ast.TextBlock:
		l.paragraph(n)
	case *ast.Blockquote:
		l.callout(n)
	case *ast.List:
		l.list(n)
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		l.code(n)
	case *ast.ThematicBreak:
		l.rule()
	case *ast.HTMLBlock:
		l.htmlBlock(n)
	case *extast.Table:
		l.table(n)
	case *extast.DefinitionTerm:
		l.definitionTerm(n)
	case *extast.DefinitionDescription:
		l.definitionDescription(n)
	case *extast.FootnoteList:
		l.footnotes(n)
	default:
		l.blocks(n)
	}
}

func (l *layout) pt(size float64) float64 {
	return l.pdf.PointConvert(size)
}

func (l *layout) bodyLH() float64 {
	return l.pt(l.size) * l.theme.LineHeight
}

func (l *layout) enc(f face, s string) string {
	if f.core {
		return l.tr(s)
	}
	return s
}

func (l *layout) setFont(st inlineStyle) {
	l.pdf.SetFont(st.face.family, st.face.style(st.bold, st.italic), st.size)
}

func (l *layout) textColor(c Color) { l.pdf.SetTextColor(c.R, c.G, c.B) }
func (l *layout) fillColor(c Color) { l.pdf.SetFillColor(c.R, c.G, c.B) }
func (l *layout) drawColor(c Color) { l.pdf.SetDrawColor(c.R, c.G, c.B) }

func (l *layout) bodyStyle() inlineStyle {
	return inlineStyle{face: l.fonts.body, size: l.size, color: l.theme.Text}
}

func (l *layout) collect(n ast.Node, st inlineStyle) []piece {
	c := &collector{src: l.src, mono: l.fonts.mono, accent: l.theme.Accent}
	c.inline(n, st)
	return c.pieces
}

func (l *layout) newPage() {
	l.pdf.AddPage()
	l.dirty = false
}

// ensure starts a new page when h does not fit below the cursor.
func (l *layout) ensure(h float64) {
	if l.pdf.GetY()+h > l.limit && l.dirty {
		l.newPage()
	}
}

// advance moves the cursor down, painting active callout backgrounds.
func (l *layout) advance(h float64) {
	y := l.pdf.GetY()
	if y+h > l.limit {
		if l.dirty {
			l.newPage()
		}
		return
	}
	l.fillCallouts(y, h)
	l.pdf.SetY(y + h)
}

func (l *layout) fillCallouts(y, h float64) {
	for _, b := range l.callouts {
		l.fillColor(l.theme.CalloutFill)
		l.pdf.Rect(b.x, y, b.w, h, "F")
		l.fillColor(l.theme.Accent)
		l.pdf.Rect(b.x, y, calloutBar, h, "F")
	}
}

// beginLine paints the backgrounds of a line and any pending list marker.
func (l *layout) beginLine(y, h float64) {
	l.fillCallouts(y, h)
	if m := l.marker; m != nil {
		l.marker = nil
		st := l.bodyStyle()
		st.size = m.size
		l.setFont(st)
		l.textColor(l.theme.Text)
		l.pdf.SetXY(m.x, y)
		l.pdf.CellFormat(m.w, h, l.enc(st.face, m.text), "", 0, "R", false, 0, "")
	}
	l.dirty = true
}

func (l *layout) measure(pieces []piece) {
	for i := range pieces {
		p := &pieces[i]
		l.setFont(p.st)
		p.w = l.pdf.GetStringWidth(l.enc(p.st.face, p.text))
		p.sw = l.pdf.GetStringWidth(" ")
	}
}

// splitPiece cuts a piece wider than avail into chunks that fit.
func (l *layout) splitPiece(p piece, avail float64) []piece {
	l.setFont(p.st)
	var out []piece
	var cur []rune
	width := 0.0
	for _, r := range p.text {
		rw := l.pdf.GetStringWidth(l.enc(p.st.face, string(r)))
		if len(cur) > 0 && width+rw > avail {
			out = append(out, piece{text: string(cur), st: p.st, w: width, sw: p.sw})
			cur, width = nil, 0
		}
		cur = append(cur, r)
		width += rw
	}
	if len(cur) > 0 {
		out = append(out, piece{text: string(cur), st: p.st, w: width, sw: p.sw, hard: p.hard})
	}
	if len(out) > 0 {
		out[0].space = p.space
	}
	return out
}

// breakLines fills lines greedily. first is the width of the opening line, rest of the others.
func (l *layout) breakLines(pieces []piece, first, rest float64) []line {
	l.measure(pieces)
	var lines []line
	cur := line{}
	avail := first
	push := func() {
		lines = append(lines, cur)
		cur = line{}
		avail = rest
	}
	for i := 0; i < len(pieces); i++ {
		p := pieces[i]
		gap := 0.0
		if len(cur.pieces) > 0 && p.space {
			gap = p.sw
		}
		if len(cur.pieces) > 0 && cur.width+gap+p.w > avail {
			push()
			gap = 0
		}
		if len(cur.pieces) == 0 && p.w > avail && avail > 0 {
			parts := l.splitPiece(p, avail)
			for _, part := range parts[:len(parts)-1] {
				cur.pieces = append(cur.pieces, placed{piece: part})
				cur.width = part.w
				push()
			}
			p = parts[len(parts)-1]
		}
		if gap > 0 {
			cur.gaps++
		}
		cur.pieces = append(cur.pieces, placed{piece: p, gap: gap})
		cur.width += gap + p.w
		if p.hard {
			cur.last = true
			push()
		}
	}
	if len(cur.pieces) > 0 {
		cur.last = true
		lines = append(lines, cur)
	} else if n := len(lines); n > 0 {
		lines[n-1].last = true
	}
	return lines
}

func (l *layout) drawLine(ln line, x, y, avail, h float64, align alignment) {
	extra := 0.0
	switch align {
	case alignJustify:
		if !ln.last && ln.gaps > 0 {
			extra = (avail - ln.width) / float64(ln.gaps)
		}
	case alignCenter:
		x += (avail - ln.width) / 2
	case alignRight:
		x += avail - ln.width
	}
	for _, p := range ln.pieces {
		if p.gap > 0 {
			x += p.gap + extra
		}
		l.setFont(p.st)
		l.textColor(p.st.color)
		l.pdf.SetXY(x, y)
		l.pdf.CellFormat(p.w, h, l.enc(p.st.face, p.text), "", 0, "L", false, 0, p.st.link)
		x += p.w
	}
}

type flowOpts struct {
	align  alignment
	lh     float64
	indent float64
}

// flow lays pieces out as a paragraph in the current content box.
func (l *layout) flow(pieces []piece, o flowOpts) {
	if len(pieces) == 0 {
		return
	}
	lines := l.breakLines(pieces, l.width-o.indent, l.width)
	for i, ln := range lines {
		l.ensure(o.lh)
		y := l.pdf.GetY()
		l.beginLine(y, o.lh)
		x, avail := l.left, l.width
		if i == 0 {
			x += o.indent
			avail -= o.indent
		}
		l.drawLine(ln, x, y, avail, o.lh, o.align)
		l.pdf.SetY(y + o.lh)
	}
}

var headingSizes = map[int]float64{1: 28, 2: 20, 3: 16, 4: 13, 5: 12, 6: 12}

func (l *layout) heading(n *ast.Heading) {
	size := headingSizes[n.Level]
	st := inlineStyle{face: l.fonts.heading, bold: true, size: size, color: l.theme.Heading}
	align := alignLeft
	switch n.Level {
	case 1:
		align = alignCenter
	case 2, 3:
		st.color = l.theme.Accent
	}
	pieces := l.collect(n, st)
	if len(pieces) == 0 {
		return
	}

	lh := l.pt(size) * 1.3
	before := l.pt(size) * 0.8
	if l.dirty {
		// keep the heading on the page of the text that follows it
		if l.pdf.GetY()+before+lh+2*l.bodyLH() > l.limit {
			l.newPage()
		} else {
			l.advance(before)
		}
	}

	level := n.Level - 1
	if level > l.outline+1 {
		level = l.outline + 1
	}
	l.outline = level
	l.pdf.Bookmark(l.enc(st.face, plainText(pieces)), level, -1)

	l.flow(pieces, flowOpts{align: align, lh: lh})
	if n.Level == 2 {
		y := l.pdf.GetY() + 1
		l.drawColor(l.theme.Accent)
		l.pdf.SetLineWidth(0.4)
		l.pdf.Line(l.left, y, l.left+l.width, y)
		l.advance(2)
	}
	l.advance(l.pt(size) * 0.4)
	l.indentNext = false
}

func (l *layout) paragraph(n ast.Node) {
	if p, ok := n.(*ast.Paragraph); ok {
		if m := actionButtonRe.FindStringSubmatch(l.sourceText(p)); m != nil {
			l.actionButton(m[1], m[2])
			return
		}
	}
	pieces := l.collect(n, l.bodyStyle())
	if len(pieces) == 0 {
		return
	}
	indent := 0.0
	if l.indentNext && len(l.callouts) == 0 && l.listDepth == 0 {
		indent = l.pt(l.size) * 1.5
	}
	l.flow(pieces, flowOpts{align: alignJustify, lh: l.bodyLH(), indent: indent})
	if l.listDepth > 0 {
		l.advance(l.bodyLH() * 0.15)
	} else {
		l.advance(l.bodyLH() * 0.35)
	}
	l.indentNext = true
}

func (l *layout) sourceText(n ast.Node) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(l.src))
	}
	return strings.TrimSpace(sb.String())
}

// actionButton draws label centred on an accent-filled rounded box, linked to url when set.
func (l *layout) actionButton(label, url string) {
	st := inlineStyle{face: l.fonts.heading, bold: true, size: buttonSize, color: white}
	l.setFont(st)
	text := l.enc(st.face, label)
	w := min(l.pdf.GetStringWidth(text)+2*buttonPadX, l.width)
	h := l.pt(buttonSize)*1.2 + 2*buttonPadY
	margin := l.pt(l.size)

	l.ensure(margin + h)
	if l.dirty {
		l.advance(margin)
	}
	y := l.pdf.GetY()
	l.beginLine(y, h)
	x := l.left + (l.width-w)/2
	l.fillColor(l.theme.Accent)
	l.pdf.RoundedRect(x, y, w, h, buttonRadius, "1234", "F")
	l.textColor(st.color)
	l.pdf.SetXY(x, y)
	l.pdf.CellFormat(w, h, text, "", 0, "CM", false, 0, url)
	l.pdf.SetY(y + h)
	l.advance(margin)
	l.indentNext = false
}

func (l *layout) callout(n *ast.Blockquote) {
	outerLeft, outerWidth := l.left, l.width
	l.callouts = append(l.callouts, box{x: l.left, w: l.width})
	l.left += calloutBar + 2*calloutPadding
	l.width -= calloutBar + 3*calloutPadding
	l.indentNext = false

	l.advance(calloutPadding)
	l.blocks(n)
	l.advance(calloutPadding)

	l.callouts = l.callouts[:len(l.callouts)-1]
	l.left, l.width = outerLeft, outerWidth
	l.advance(l.bodyLH() * 0.5)
	l.indentNext = false
}

func (l *layout) list(n *ast.List) {
	outerLeft, outerWidth := l.left, l.width
	num := n.Start
	if num == 0 {
		num = 1
	}
	for item := n.FirstChild(); item != nil; item = item.NextSibling() {
		text := "•"
		if n.IsOrdered() {
			text = fmt.Sprintf("%d%c", num, n.Marker)
			num++
		}
		l.marker = &marker{text: text, x: outerLeft, w: listStep - 2, size: l.size}
		l.left, l.width = outerLeft+listStep, outerWidth-listStep
		l.listDepth++
		l.blocks(item)
		l.listDepth--
		l.marker = nil
	}
	l.left, l.width = outerLeft, outerWidth
	if l.listDepth == 0 {
		l.advance(l.bodyLH() * 0.35)
	}
	l.indentNext = false
}

func (l *layout) code(n ast.Node) {
	st := inlineStyle{face: l.fonts.mono, size: codeSize, color: l.theme.Text}
	lh := l.pt(codeSize) * 1.45
	avail := l.width - 2*codePadding

	var rows []piece
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		s := strings.TrimRight(string(seg.Value(l.src)), "\r\n")
		s = strings.ReplaceAll(s, "\t", "    ")
		if s == "" {
			rows = append(rows, piece{st: st})
			continue
		}
		p := piece{text: s, st: st}
		l.setFont(st)
		p.w = l.pdf.GetStringWidth(l.enc(st.face, s))
		if p.w > avail {
			rows = append(rows, l.splitPiece(p, avail)...)
		} else {
			rows = append(rows, p)
		}
	}
	if len(rows) == 0 {
		return
	}

	l.ensure(codePadding + lh)
	l.codeBand(codePadding)
	for _, row := range rows {
		l.ensure(lh)
		y := l.pdf.GetY()
		l.beginLine(y, lh)
		l.fillColor(l.theme.CodeFill)
		l.pdf.Rect(l.left, y, l.width, lh, "F")
		if row.text != "" {
			l.setFont(st)
			l.textColor(st.color)
			l.pdf.SetXY(l.left+codePadding, y)
			l.pdf.CellFormat(avail, lh, l.enc(st.face, row.text), "", 0, "L", false, 0, "")
		}
		l.pdf.SetY(y + lh)
	}
	l.codeBand(codePadding)
	l.advance(l.bodyLH() * 0.5)
	l.indentNext = false
}

func (l *layout) codeBand(h float64) {
	y := l.pdf.GetY()
	if y+h > l.limit {
		return
	}
	l.fillCallouts(y, h)
	l.fillColor(l.theme.CodeFill)
	l.pdf.Rect(l.left, y, l.width, h, "F")
	l.pdf.SetY(y + h)
}

func (l *layout) rule() {
	l.advance(l.bodyLH() * 0.5)
	l.ensure(1)
	y := l.pdf.GetY()
	w := l.width / 3
	l.drawColor(l.theme.Accent)
	l.pdf.SetLineWidth(0.3)
	l.pdf.Line(l.left+(l.width-w)/2, y, l.left+(l.width+w)/2, y)
	l.dirty = true
	l.advance(l.bodyLH() * 0.5)
	l.indentNext = false
}

func (l *layout) htmlBlock(n *ast.HTMLBlock) {
	var raw strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		raw.Write(seg.Value(l.src))
	}
	if pageBreakRe.MatchString(raw.String()) {
		if l.dirty {
			l.newPage()
		}
		l.indentNext = false
	}
}

type tableCell struct {
	lines []line
	align alignment
}

func (l *layout) table(n *extast.Table) {
	type row struct {
		cells  []tableCell
		header bool
		lines  int
		height float64
	}
	size := l.size * 0.9
	lh := l.pt(size) * 1.4

	var rows []row
	cols := 0
	for r := n.FirstChild(); r != nil; r = r.NextSibling() {
		count := r.ChildCount()
		if count > cols {
			cols = count
		}
	}
	if cols == 0 {
		return
	}
	colW := l.width / float64(cols)

	for r := n.FirstChild(); r != nil; r = r.NextSibling() {
		_, header := r.(*extast.TableHeader)
		rw := row{header: header}
		lines := 1
		for c := r.FirstChild(); c != nil; c = c.NextSibling() {
			st := inlineStyle{face: l.fonts.body, bold: header, size: size, color: l.theme.Text}
			cell := tableCell{lines: l.breakLines(l.collect(c, st), colW-2*cellPadding, colW-2*cellPadding)}
			if tc, ok := c.(*extast.TableCell); ok {
				switch tc.Alignment {
				case extast.AlignCenter:
					cell.align = alignCenter
				case extast.AlignRight:
					cell.align = alignRight
				}
			}
			if len(cell.lines) > lines {
				lines = len(cell.lines)
			}
			rw.cells = append(rw.cells, cell)
		}
		rw.lines = lines
		rw.height = float64(lines)*lh + 2*cellPadding
		rows = append(rows, rw)
	}

	l.pdf.SetLineWidth(0.2)
	for _, rw := range rows {
		// rows taller than a page are split between lines instead
		if rw.height <= l.limit-l.top {
			l.ensure(rw.height)
		}
		for start := 0; start < rw.lines; {
			n := int((l.limit - l.pdf.GetY() - 2*cellPadding) / lh)
			if n < 1 {
				if l.dirty {
					l.newPage()
					continue
				}
				n = 1
			}
			n = min(n, rw.lines-start)
			h := float64(n)*lh + 2*cellPadding
			y := l.pdf.GetY()
			l.beginLine(y, h)
			for i := 0; i < cols; i++ {
				x := l.left + float64(i)*colW
				style := "D"
				if rw.header {
					l.fillColor(l.theme.TableHeader)
					style = "FD"
				}
				l.drawColor(l.theme.Border)
				l.pdf.Rect(x, y, colW, h, style)
				if i >= len(rw.cells) {
					continue
				}
				cell := rw.cells[i]
				for j := start; j < start+n && j < len(cell.lines); j++ {
					l.drawLine(cell.lines[j], x+cellPadding, y+cellPadding+float64(j-start)*lh, colW-2*cellPadding, lh, cell.align)
				}
			}
			l.pdf.SetY(y + h)
			start += n
		}
	}
	l.advance(l.bodyLH() * 0.5)
	l.indentNext = false
}

func (l *layout) definitionTerm(n *extast.DefinitionTerm) {
	st := l.bodyStyle()
	st.bold = true
	l.flow(l.collect(n, st), flowOpts{align: alignLeft, lh: l.bodyLH()})
}

func (l *layout) definitionDescription(n *extast.DefinitionDescription) {
	outerLeft, outerWidth := l.left, l.width
	l.left, l.width = outerLeft+listStep, outerWidth-listStep
	l.listDepth++
	if n.FirstChild() != nil && n.FirstChild().Type() == ast.TypeInline {
		l.paragraph(n)
	} else {
		l.blocks(n)
	}
	l.listDepth--
	l.left, l.width = outerLeft, outerWidth
	l.advance(l.bodyLH() * 0.2)
	l.indentNext = false
}

func (l *layout) footnotes(n *extast.FootnoteList) {
	l.advance(l.bodyLH())
	l.ensure(l.bodyLH())
	y := l.pdf.GetY()
	l.drawColor(l.theme.Border)
	l.pdf.SetLineWidth(0.2)
	l.pdf.Line(l.left, y, l.left+l.width/4, y)
	l.dirty = true
	l.advance(l.bodyLH() * 0.4)

	outerSize := l.size
	l.size = outerSize * 0.8
	outerLeft, outerWidth := l.left, l.width
	for fn := n.FirstChild(); fn != nil; fn = fn.NextSibling() {
		index := 0
		if f, ok := fn.(*extast.Footnote); ok {
			index = f.Index
		}
		l.marker = &marker{text: fmt.Sprintf("%d.", index), x: outerLeft, w: listStep - 2, size: l.size}
		l.left, l.width = outerLeft+listStep, outerWidth-listStep
		l.listDepth++
		l.blocks(fn)
		l.listDepth--
		l.marker = nil
	}
	l.left, l.width = outerLeft, outerWidth
	l.size = outerSize
	l.indentNext = false
}
