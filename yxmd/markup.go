package yxmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type attr struct {
	name  string
	value string
}

// markup is a fragment of new XML to be written into a document.
type markup struct {
	name     string
	attrs    []attr
	text     string
	hasText  bool
	children []*markup
}

func elem(name string, children ...*markup) *markup {
	return &markup{name: name, children: children}
}

func textElem(name, text string, attrs ...attr) *markup {
	return &markup{name: name, attrs: attrs, text: text, hasText: true}
}

func emptyElem(name string, attrs ...attr) *markup {
	return &markup{name: name, attrs: attrs}
}

// render writes m starting at the current column. Nested lines are indented
// with indent plus one unit per level.
func (m *markup) render(indent, unit, nl string) string {
	var b strings.Builder
	m.write(&b, indent, unit, nl)
	return b.String()
}

func (m *markup) write(b *strings.Builder, indent, unit, nl string) {
	b.WriteByte('<')
	b.WriteString(m.name)
	for _, a := range m.attrs {
		fmt.Fprintf(b, ` %s="%s"`, a.name, escapeAttr(a.value, '"'))
	}
	switch {
	case len(m.children) > 0:
		b.WriteByte('>')
		if m.hasText && m.text != "" {
			b.WriteString(escapeText(m.text))
		}
		inner := indent + unit
		for _, c := range m.children {
			b.WriteString(nl)
			b.WriteString(inner)
			c.write(b, inner, unit, nl)
		}
		b.WriteString(nl)
		b.WriteString(indent)
		b.WriteString("</" + m.name + ">")
	case m.hasText && m.text != "":
		b.WriteByte('>')
		b.WriteString(escapeText(m.text))
		b.WriteString("</" + m.name + ">")
	case m.hasText:
		b.WriteString("></" + m.name + ">")
	default:
		b.WriteString(" />")
	}
}

// configMarkup converts a configuration mapping into child elements of
// parent. Keys starting with '@' become attributes, "_text" becomes the
// element text, lists repeat the element. Keys are written in sorted order
// with attributes first so the output is deterministic.
func configMarkup(parent *markup, cfg map[string]any) {
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ai, aj := strings.HasPrefix(keys[i], "@"), strings.HasPrefix(keys[j], "@")
		if ai != aj {
			return ai
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		v := cfg[k]
		switch {
		case strings.HasPrefix(k, "@"):
			parent.attrs = append(parent.attrs, attr{name: k[1:], value: scalarString(v)})
		case k == "_text":
			parent.text, parent.hasText = scalarString(v), true
		default:
			appendConfigValue(parent, k, v)
		}
	}
}

func appendConfigValue(parent *markup, name string, v any) {
	switch val := v.(type) {
	case map[string]any:
		child := &markup{name: name}
		configMarkup(child, val)
		parent.children = append(parent.children, child)
	case []any:
		for _, item := range val {
			appendConfigValue(parent, name, item)
		}
	case []map[string]any:
		for _, item := range val {
			appendConfigValue(parent, name, item)
		}
	case []string:
		for _, item := range val {
			appendConfigValue(parent, name, item)
		}
	case nil:
		parent.children = append(parent.children, emptyElem(name))
	default:
		parent.children = append(parent.children, textElem(name, scalarString(val)))
	}
}

func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	default:
		return fmt.Sprint(val)
	}
}

// configMap converts the element at el into the mapping form used by
// configMarkup.
func (d *Document) configMap(el int) map[string]any {
	e := &d.elems[el]
	out := make(map[string]any, len(e.Attrs)+len(e.Children))
	for _, a := range e.Attrs {
		out["@"+a.Name.Local] = a.Value
	}
	if t := strings.TrimSpace(e.Text); t != "" {
		out["_text"] = t
	}
	for _, c := range e.Children {
		name := d.elems[c].Name
		v := d.configValue(c)
		switch prev := out[name].(type) {
		case nil:
			out[name] = v
		case []any:
			out[name] = append(prev, v)
		default:
			out[name] = []any{prev, v}
		}
	}
	return out
}

// configValue collapses text-only elements to their text.
func (d *Document) configValue(el int) any {
	e := &d.elems[el]
	if len(e.Attrs) == 0 && len(e.Children) == 0 {
		return strings.TrimSpace(e.Text)
	}
	return d.configMap(el)
}
