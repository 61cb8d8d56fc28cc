package yxmd

import (
	"bytes"
	"html"
)

var (
	commentOpen  = []byte("<!--")
	commentClose = []byte("-->")
	cdataClose   = []byte("]]>")
	piClose      = []byte("?>")
)

type scanEntry struct {
	name string
	tool bool
	id   int
}

// FindNodeSpan locates the Node element for tool id by scanning the raw
// text, without building the element tree. Comments, CDATA sections and
// processing instructions are skipped. The text must be UTF-8.
func FindNodeSpan(text []byte, id int) (Span, []int, bool) {
	var (
		stack  []scanEntry
		target = -1
		start  int
	)
	pos := 0
	for {
		i := bytes.IndexByte(text[pos:], '<')
		if i < 0 {
			return Span{}, nil, false
		}
		i += pos
		rest := text[i:]
		switch {
		case bytes.HasPrefix(rest, commentOpen):
			pos = skipPast(text, i+len(commentOpen), commentClose)
		case bytes.HasPrefix(rest, cdataOpen):
			pos = skipPast(text, i+len(cdataOpen), cdataClose)
		case bytes.HasPrefix(rest, []byte("<?")):
			pos = skipPast(text, i+2, piClose)
		case bytes.HasPrefix(rest, []byte("<!")):
			pos = skipPast(text, i+2, []byte(">"))
		case bytes.HasPrefix(rest, []byte("</")):
			pos = skipPast(text, i+2, []byte(">"))
			if pos < 0 {
				return Span{}, nil, false
			}
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			if target >= 0 && len(stack) == target {
				return Span{start, pos}, ancestorTools(stack), true
			}
		default:
			end := tagEnd(text, i)
			if end < 0 {
				return Span{}, nil, false
			}
			pos = end
			tag := Span{i, end}
			st := scanStartTag(text, tag)
			name := string(text[i+1 : st.nameEnd])
			selfClosing := text[end-2] == '/'
			e := scanEntry{name: name}
			if target < 0 && name == "Node" && toolPosition(stack) {
				e.tool = true
				e.id, _ = rawToolID(text, st)
				if e.id == id {
					if selfClosing {
						return tag, ancestorTools(stack), true
					}
					target, start = len(stack), i
				}
			}
			if !selfClosing {
				stack = append(stack, e)
			}
		}
		if pos < 0 {
			return Span{}, nil, false
		}
	}
}

// toolPosition reports whether a Node opened under stack is a tool: a child
// of the root's Nodes list or of a tool's ChildNodes list.
func toolPosition(stack []scanEntry) bool {
	n := len(stack)
	if n == 2 && stack[1].name == "Nodes" {
		return true
	}
	return n >= 3 && stack[n-1].name == "ChildNodes" && stack[n-2].tool
}

func rawToolID(text []byte, st startTag) (int, bool) {
	for _, a := range st.attrs {
		if a.name != "ToolID" {
			continue
		}
		v := text[a.value.Start:a.value.End]
		if bytes.IndexByte(v, '&') >= 0 {
			return parseToolID(html.UnescapeString(string(v)))
		}
		return parseToolID(string(v))
	}
	return 0, false
}

func ancestorTools(stack []scanEntry) []int {
	out := []int{}
	for _, e := range stack {
		if e.tool {
			out = append(out, e.id)
		}
	}
	return out
}

// skipPast returns the offset just after the first occurrence of marker at
// or after from, or -1.
func skipPast(text []byte, from int, marker []byte) int {
	j := bytes.Index(text[from:], marker)
	if j < 0 {
		return -1
	}
	return from + j + len(marker)
}

// tagEnd returns the offset just after the '>' closing the tag at i,
// honouring quoted attribute values.
func tagEnd(text []byte, i int) int {
	var quote byte
	for j := i + 1; j < len(text); j++ {
		c := text[j]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '>':
			return j + 1
		}
	}
	return -1
}

// LookupFast finds a tool by id without indexing the whole document. Only
// the matched Node is parsed. Container captions are not resolved; the
// container path carries ids only.
func LookupFast(raw []byte, id int) (Match, bool, error) {
	return LookupFastWithOptions(raw, id, LoadOptions{})
}

// LookupFastWithOptions is LookupFast with a custom registry.
func LookupFastWithOptions(raw []byte, id int, opts LoadOptions) (Match, bool, error) {
	reg := opts.Registry
	if reg == nil {
		reg = DefaultRegistry
	}
	_, text, _, _, err := decodeSource(raw)
	if err != nil {
		return Match{}, false, err
	}
	span, path, ok := FindNodeSpan(text, id)
	if !ok {
		return Match{}, false, nil
	}
	frag := text[span.Start:span.End]
	elems, root, err := parseElements(frag)
	if err != nil {
		return Match{}, false, err
	}
	d := &Document{text: frag, elems: elems, root: root, registry: reg}
	t, err := d.toolAt(root)
	if err != nil {
		return Match{}, false, err
	}
	t.ContainerPath = path
	ix := &Index{doc: d}
	return ix.Match(t), true, nil
}
