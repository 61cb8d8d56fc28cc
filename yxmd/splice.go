package yxmd

import (
	"fmt"
	"sort"
	"strings"
)

const defaultIndentUnit = "  "

// patch replaces span of the document text with text. An empty span is an
// insertion.
type patch struct {
	span Span
	text string
}

// applyPatches splices patches into text. Patches may touch but must not
// overlap; insertions at the same offset keep their given order.
func applyPatches(text []byte, patches []patch) ([]byte, error) {
	sorted := append([]patch(nil), patches...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].span.Start < sorted[j].span.Start })
	var b strings.Builder
	b.Grow(len(text))
	pos := 0
	for _, p := range sorted {
		if p.span.Start < pos || p.span.End < p.span.Start || p.span.End > len(text) {
			return nil, fmt.Errorf("patch [%d,%d) overlaps a previous edit", p.span.Start, p.span.End)
		}
		b.Write(text[pos:p.span.Start])
		b.WriteString(p.text)
		pos = p.span.End
	}
	b.Write(text[pos:])
	return []byte(b.String()), nil
}

// shift rebases patches onto a slice of the text that starts at base.
func shift(patches []patch, base int) []patch {
	out := make([]patch, len(patches))
	for i, p := range patches {
		out[i] = patch{span: Span{p.span.Start - base, p.span.End - base}, text: p.text}
	}
	return out
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// escapeText escapes character data. Newlines and tabs stay literal.
func escapeText(s string) string { return textEscaper.Replace(s) }

var (
	dquoteEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "\n", "&#xA;", "\r", "&#xD;", "\t", "&#x9;")
	squoteEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "'", "&apos;", "\n", "&#xA;", "\r", "&#xD;", "\t", "&#x9;")
)

func escapeAttr(s string, quote byte) string {
	if quote == '\'' {
		return squoteEscaper.Replace(s)
	}
	return dquoteEscaper.Replace(s)
}

// rawAttr locates one attribute inside a start tag.
type rawAttr struct {
	name  string
	start int
	value Span
	quote byte
	end   int
}

// startTag is the lexical layout of an element's start tag.
type startTag struct {
	nameEnd int
	attrs   []rawAttr
	closeAt int
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

// scanStartTag lexes the start tag at s. closeAt points at the '/' of "/>"
// or at '>'.
func scanStartTag(text []byte, s Span) startTag {
	i := s.Start + 1
	for i < s.End && !isSpace(text[i]) && text[i] != '/' && text[i] != '>' {
		i++
	}
	st := startTag{nameEnd: i}
	for i < s.End {
		for i < s.End && isSpace(text[i]) {
			i++
		}
		if i >= s.End || text[i] == '>' || text[i] == '/' {
			st.closeAt = i
			return st
		}
		a := rawAttr{start: i}
		for i < s.End && text[i] != '=' && !isSpace(text[i]) {
			i++
		}
		a.name = string(text[a.start:i])
		for i < s.End && text[i] != '"' && text[i] != '\'' {
			i++
		}
		if i >= s.End {
			break
		}
		a.quote = text[i]
		i++
		a.value.Start = i
		for i < s.End && text[i] != a.quote {
			i++
		}
		a.value.End = i
		a.end = i + 1
		i = a.end
		st.attrs = append(st.attrs, a)
	}
	st.closeAt = s.End - 1
	return st
}

type attrEdit struct {
	name   string
	value  string
	remove bool
}

// editAttrs sets or removes attributes on el's start tag. Existing values
// are replaced in place keeping their quote style; new attributes are
// appended after the last existing one in a single insertion.
func (d *Document) editAttrs(el int, edits []attrEdit) []patch {
	e := &d.elems[el]
	st := scanStartTag(d.text, e.StartTag)
	var (
		out    []patch
		insert strings.Builder
	)
	for _, ed := range edits {
		idx := -1
		for i, a := range st.attrs {
			if a.name == ed.name {
				idx = i
				break
			}
		}
		switch {
		case idx >= 0 && ed.remove:
			a := st.attrs[idx]
			from := a.start
			for from > e.StartTag.Start && isSpace(d.text[from-1]) {
				from--
			}
			out = append(out, patch{span: Span{from, a.end}})
		case idx >= 0:
			a := st.attrs[idx]
			out = append(out, patch{span: a.value, text: escapeAttr(ed.value, a.quote)})
		case !ed.remove:
			fmt.Fprintf(&insert, ` %s="%s"`, ed.name, escapeAttr(ed.value, '"'))
		}
	}
	if insert.Len() > 0 {
		at := st.nameEnd
		if n := len(st.attrs); n > 0 {
			at = st.attrs[n-1].end
		}
		out = append(out, patch{span: Span{at, at}, text: insert.String()})
	}
	return out
}

// openTag returns el's start tag in non self-closing form.
func (d *Document) openTag(el int) string {
	e := &d.elems[el]
	tag := d.slice(e.StartTag)
	if !e.SelfClosing {
		return tag
	}
	return strings.TrimRight(strings.TrimSuffix(tag, "/>"), " \t\r\n") + ">"
}

// setText replaces el's character content. CDATA wrapping is kept when the
// new value can be carried in a CDATA section.
func (d *Document) setText(el int, value string) (patch, error) {
	e := &d.elems[el]
	if len(e.Children) > 0 {
		return patch{}, fmt.Errorf("element <%s> has child elements", e.Name)
	}
	body := escapeText(value)
	if e.CDATA && !strings.Contains(value, "]]>") {
		body = "<![CDATA[" + value + "]]>"
	}
	if e.SelfClosing {
		return patch{span: e.Span, text: d.openTag(el) + body + "</" + e.Name + ">"}, nil
	}
	return patch{span: e.Inner, text: body}, nil
}

// lineIndent returns the whitespace between the start of pos's line and pos.
// ok is false when anything other than whitespace precedes pos on the line.
func (d *Document) lineIndent(pos int) (string, bool) {
	i := pos
	for i > 0 && (d.text[i-1] == ' ' || d.text[i-1] == '\t') {
		i--
	}
	if i > 0 && d.text[i-1] != '\n' {
		return "", false
	}
	return string(d.text[i:pos]), true
}

// indentUnit infers one nesting step from el and its first child.
func (d *Document) indentUnit(el int) string {
	e := &d.elems[el]
	if len(e.Children) == 0 {
		if e.Parent >= 0 {
			return d.indentUnit(e.Parent)
		}
		return defaultIndentUnit
	}
	outer, ok1 := d.lineIndent(e.Span.Start)
	inner, ok2 := d.lineIndent(d.elems[e.Children[0]].Span.Start)
	if ok1 && ok2 && len(inner) > len(outer) && strings.HasPrefix(inner, outer) {
		return inner[len(outer):]
	}
	return defaultIndentUnit
}

// insertChild appends m as the last child of parent, indented like its
// siblings.
func (d *Document) insertChild(parent int, m *markup) (patch, error) {
	p := &d.elems[parent]
	pIndent, _ := d.lineIndent(p.Span.Start)
	unit := d.indentUnit(parent)
	if n := len(p.Children); n > 0 {
		last := &d.elems[p.Children[n-1]]
		if ind, ok := d.lineIndent(last.Span.Start); ok {
			return patch{span: Span{last.Span.End, last.Span.End}, text: d.newline + ind + m.render(ind, unit, d.newline)}, nil
		}
		return patch{span: Span{last.Span.End, last.Span.End}, text: m.render("", unit, d.newline)}, nil
	}
	ind := pIndent + unit
	body := d.newline + ind + m.render(ind, unit, d.newline) + d.newline + pIndent
	if p.SelfClosing {
		return patch{span: p.Span, text: d.openTag(parent) + body + "</" + p.Name + ">"}, nil
	}
	if strings.TrimSpace(d.slice(p.Inner)) != "" {
		return patch{}, fmt.Errorf("element <%s> has text content", p.Name)
	}
	return patch{span: p.Inner, text: body}, nil
}

// removeElement deletes el along with the indentation and line break that
// precede it.
func (d *Document) removeElement(el int) patch {
	s := d.elems[el].Span
	from := s.Start
	for from > 0 && (d.text[from-1] == ' ' || d.text[from-1] == '\t') {
		from--
	}
	if from > 0 && d.text[from-1] == '\n' {
		from--
		if from > 0 && d.text[from-1] == '\r' {
			from--
		}
	} else {
		from = s.Start
	}
	return patch{span: Span{from, s.End}}
}

// ensureText sets the text at base/names, creating whatever part of the
// path is missing. attrs supplies attributes for newly created elements by
// name.
func (d *Document) ensureText(base int, names []string, value string, attrs map[string][]attr) ([]patch, error) {
	cur := base
	for i, n := range names {
		next := d.child(cur, n)
		if next >= 0 {
			cur = next
			continue
		}
		leaf := &markup{name: names[len(names)-1], attrs: attrs[names[len(names)-1]], text: value, hasText: true}
		m := leaf
		for j := len(names) - 2; j >= i; j-- {
			m = &markup{name: names[j], attrs: attrs[names[j]], children: []*markup{m}}
		}
		p, err := d.insertChild(cur, m)
		if err != nil {
			return nil, err
		}
		return []patch{p}, nil
	}
	p, err := d.setText(cur, value)
	if err != nil {
		return nil, err
	}
	return []patch{p}, nil
}

// commit splices patches into the text and rebuilds the arena and index.
// On failure the document is left untouched.
func (d *Document) commit(patches []patch) error {
	if len(patches) == 0 {
		return nil
	}
	next, err := applyPatches(d.text, patches)
	if err != nil {
		return newError(ErrInvalidRequest, 0, "apply edits: %v", err)
	}
	prev := *d
	d.text = next
	if err := d.reparse(); err != nil {
		*d = prev
		return err
	}
	d.modified = true
	return nil
}
