package yxmd

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

const rootElement = "AlteryxDocument"

// Span is a half-open byte range into a document's text.
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int { return s.End - s.Start }

// Contains reports whether o lies entirely within s.
func (s Span) Contains(o Span) bool { return o.Start >= s.Start && o.End <= s.End }

// Element is one XML element of the loaded text. Offsets point into the
// document's UTF-8 text; an element never owns a copy of its markup.
type Element struct {
	Name        string
	Attrs       []xml.Attr
	Parent      int
	Children    []int
	Span        Span
	StartTag    Span
	Inner       Span
	SelfClosing bool
	Text        string
	CDATA       bool
}

// Attr returns the value of the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// Document is a loaded workflow. Unedited regions of the text are kept byte
// for byte; edits are spliced into the text and the element arena is rebuilt.
type Document struct {
	raw      []byte
	text     []byte
	bom      []byte
	charset  string
	enc      encoding.Encoding
	newline  string
	elems    []Element
	root     int
	index    *Index
	registry *Registry
	modified bool
}

// LoadOptions tunes Load. The zero value uses DefaultRegistry.
type LoadOptions struct {
	Registry *Registry
}

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16BEBOM = []byte{0xFE, 0xFF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	cdataOpen  = []byte("<![CDATA[")

	declEncoding = regexp.MustCompile(`^\s*<\?xml[^>]*?\sencoding\s*=\s*["']([A-Za-z0-9._:\-]+)["']`)
)

// Load parses workflow bytes with default options.
func Load(b []byte) (*Document, error) {
	return LoadWithOptions(b, LoadOptions{})
}

// LoadWithOptions parses workflow bytes. The root element must be
// AlteryxDocument and tool ids must be unique across the whole tree.
func LoadWithOptions(b []byte, opts LoadOptions) (*Document, error) {
	reg := opts.Registry
	if reg == nil {
		reg = DefaultRegistry
	}
	bom, text, name, enc, err := decodeSource(b)
	if err != nil {
		return nil, err
	}
	d := &Document{
		raw:      append([]byte(nil), b...),
		text:     text,
		bom:      bom,
		charset:  name,
		enc:      enc,
		newline:  detectNewline(text),
		registry: reg,
	}
	if err := d.reparse(); err != nil {
		return nil, err
	}
	return d, nil
}

// LoadFile reads and parses a workflow file.
func LoadFile(path string) (*Document, error) {
	return LoadFileWithOptions(path, LoadOptions{})
}

// LoadFileWithOptions reads and parses a workflow file with options.
func LoadFileWithOptions(path string, opts LoadOptions) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Type: ErrParse, Message: fmt.Sprintf("read %s", path), Err: err}
	}
	return LoadWithOptions(b, opts)
}

// decodeSource strips a UTF-8 BOM and converts non UTF-8 input to UTF-8.
func decodeSource(b []byte) (bom, text []byte, name string, enc encoding.Encoding, err error) {
	switch {
	case bytes.HasPrefix(b, utf8BOM):
		bom, b = b[:len(utf8BOM)], b[len(utf8BOM):]
	case bytes.HasPrefix(b, utf16BEBOM):
		enc, name = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), "utf-16be"
	case bytes.HasPrefix(b, utf16LEBOM):
		enc, name = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), "utf-16le"
	}
	if enc == nil {
		label := declaredEncoding(b)
		if label == "" {
			return bom, b, "utf-8", nil, nil
		}
		enc, name = charset.Lookup(label)
		if enc == nil {
			return nil, nil, "", nil, &Error{Type: ErrParse, Message: fmt.Sprintf("unsupported encoding %q", label)}
		}
		if name == "utf-8" {
			return bom, b, name, nil, nil
		}
	}
	text, err = enc.NewDecoder().Bytes(b)
	if err != nil {
		return nil, nil, "", nil, &Error{Type: ErrParse, Message: fmt.Sprintf("decode %s", name), Err: err}
	}
	return bom, text, name, enc, nil
}

func declaredEncoding(b []byte) string {
	head := b
	if len(head) > 256 {
		head = head[:256]
	}
	if m := declEncoding.FindSubmatch(head); m != nil {
		return strings.ToLower(string(m[1]))
	}
	return ""
}

func detectNewline(text []byte) string {
	if i := bytes.IndexByte(text, '\n'); i > 0 && text[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}

// The text handed to the decoder is already UTF-8; the declaration only
// describes the bytes on disk.
func passthroughCharset(_ string, in io.Reader) (io.Reader, error) { return in, nil }

func (d *Document) reparse() error {
	elems, root, err := parseElements(d.text)
	if err != nil {
		return err
	}
	if elems[root].Name != rootElement {
		return &Error{Type: ErrParse, Message: fmt.Sprintf("root element is %q, want %s", elems[root].Name, rootElement)}
	}
	d.elems, d.root = elems, root
	ix, err := buildIndex(d)
	if err != nil {
		return err
	}
	d.index = ix
	return nil
}

// parseElements builds the element arena for text and returns it with the
// root's position in it.
func parseElements(text []byte) ([]Element, int, error) {
	dec := xml.NewDecoder(bytes.NewReader(text))
	dec.Strict = true
	dec.CharsetReader = passthroughCharset
	var (
		elems []Element
		stack []int
		root  = -1
	)
	for {
		start := int(dec.InputOffset())
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, -1, wrapXMLError(err, "parse workflow")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			end := int(dec.InputOffset())
			el := Element{
				Name:        t.Name.Local,
				Attrs:       t.Copy().Attr,
				Parent:      -1,
				StartTag:    Span{start, end},
				Inner:       Span{end, end},
				SelfClosing: bytes.HasSuffix(text[start:end], []byte("/>")),
			}
			id := len(elems)
			if n := len(stack); n > 0 {
				el.Parent = stack[n-1]
				elems[el.Parent].Children = append(elems[el.Parent].Children, id)
			} else if root >= 0 {
				return nil, -1, &Error{Type: ErrParse, Message: "multiple root elements"}
			} else {
				root = id
			}
			elems = append(elems, el)
			stack = append(stack, id)
		case xml.EndElement:
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			el := &elems[id]
			if el.SelfClosing {
				el.Span = el.StartTag
			} else {
				el.Inner.End = start
				el.Span = Span{el.StartTag.Start, int(dec.InputOffset())}
			}
		case xml.CharData:
			n := len(stack)
			if n == 0 {
				if len(bytes.TrimSpace(t)) > 0 {
					return nil, -1, &Error{Type: ErrParse, Message: "character data outside the root element"}
				}
				continue
			}
			el := &elems[stack[n-1]]
			if len(el.Children) > 0 && len(bytes.TrimSpace(t)) == 0 {
				continue
			}
			el.Text += string(t)
			if bytes.HasPrefix(text[start:], cdataOpen) {
				el.CDATA = true
			}
		}
	}
	if root < 0 {
		return nil, -1, &Error{Type: ErrParse, Message: "document has no root element"}
	}
	return elems, root, nil
}

// Bytes returns the serialized document. An unedited document returns the
// loaded bytes unchanged.
func (d *Document) Bytes() ([]byte, error) {
	if !d.modified {
		return append([]byte(nil), d.raw...), nil
	}
	body := d.text
	if d.enc != nil {
		out, err := encoding.HTMLEscapeUnsupported(d.enc.NewEncoder()).Bytes(d.text)
		if err != nil {
			return nil, &Error{Type: ErrWrite, Message: fmt.Sprintf("encode %s", d.charset), Err: err}
		}
		body = out
	}
	out := make([]byte, 0, len(d.bom)+len(body))
	out = append(out, d.bom...)
	return append(out, body...), nil
}

// Encode writes the serialized document to w.
func (d *Document) Encode(w io.Writer) error {
	b, err := d.Bytes()
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return &Error{Type: ErrWrite, Message: "write workflow", Err: err}
	}
	return nil
}

// SaveFile writes the document to path through a temp file and rename.
func (d *Document) SaveFile(path string) error {
	b, err := d.Bytes()
	if err != nil {
		return err
	}
	return writeFileAtomic(path, b)
}

// Modified reports whether any edit has been applied since load.
func (d *Document) Modified() bool { return d.modified }

// Charset is the encoding the document was loaded from.
func (d *Document) Charset() string { return d.charset }

// Text returns the current UTF-8 text of the document.
func (d *Document) Text() string { return string(d.text) }

// Index returns the tool index for the current text.
func (d *Document) Index() *Index { return d.index }

// Registry returns the plugin registry the document dispatches edits through.
func (d *Document) Registry() *Registry { return d.registry }

// Element returns the arena element at id.
func (d *Document) Element(id int) *Element { return &d.elems[id] }

// Root returns the arena id of the root element.
func (d *Document) Root() int { return d.root }

func (d *Document) slice(s Span) string { return string(d.text[s.Start:s.End]) }

// child returns the first child of el named name, or -1.
func (d *Document) child(el int, name string) int {
	if el < 0 {
		return -1
	}
	for _, c := range d.elems[el].Children {
		if d.elems[c].Name == name {
			return c
		}
	}
	return -1
}

func (d *Document) childrenNamed(el int, name string) []int {
	if el < 0 {
		return nil
	}
	var out []int
	for _, c := range d.elems[el].Children {
		if d.elems[c].Name == name {
			out = append(out, c)
		}
	}
	return out
}

// path follows first-child names from el; -1 if any step is missing.
func (d *Document) path(el int, names ...string) int {
	for _, n := range names {
		el = d.child(el, n)
		if el < 0 {
			return -1
		}
	}
	return el
}

func (d *Document) attr(el int, name string) (string, bool) {
	if el < 0 {
		return "", false
	}
	return d.elems[el].Attr(name)
}

// textAt returns the text of the element at the given path, or "" if absent.
func (d *Document) textAt(el int, names ...string) string {
	el = d.path(el, names...)
	if el < 0 {
		return ""
	}
	return d.elems[el].Text
}
