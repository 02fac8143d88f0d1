// Package workflow reads the per-step XML records of a pipeline run and
// exposes them as key-path lookups.
package workflow

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

type element struct {
	name     string
	attrs    map[string]string
	text     strings.Builder
	children []*element
}

func (e *element) child(name string) *element {
	for _, c := range e.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// Record is one parsed XML record.
type Record struct {
	root *element
}

var xml11 = regexp.MustCompile(`^(\s*<\?xml\s+version\s*=\s*)(['"])1\.1(['"])`)

var charRef = regexp.MustCompile(`&#(x[0-9a-fA-F]+|[0-9]+);`)

// replaceIllegalCharRefs swaps character references that XML 1.1 allows but
// 1.0 does not, such as the &#x1b; of ANSI colored step arguments, for U+FFFD.
func replaceIllegalCharRefs(data []byte) []byte {
	return charRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		digits := string(ref[2 : len(ref)-1])
		base := 10
		if digits[0] == 'x' {
			digits, base = digits[1:], 16
		}
		code, err := strconv.ParseUint(digits, base, 32)
		if err != nil || !isXML10Char(rune(code)) {
			return []byte("\uFFFD")
		}
		return ref
	})
}

func isXML10Char(r rune) bool {
	switch {
	case r == 0x9 || r == 0xA || r == 0xD:
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

// ParseRecord reads an XML document. Element names are matched by local name
// only; namespaces are ignored.
func ParseRecord(r io.Reader) (*Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading record: %w", err)
	}
	// Jenkins declares XML 1.1, which encoding/xml refuses.
	data = xml11.ReplaceAll(data, []byte("${1}${2}1.0${3}"))
	data = replaceIllegalCharRefs(data)

	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		if !strings.EqualFold(charset, "utf-8") && !strings.EqualFold(charset, "us-ascii") {
			return nil, fmt.Errorf("unsupported charset %q", charset)
		}
		return input, nil
	}

	var stack []*element
	var root *element
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing record: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{name: t.Name.Local}
			if len(t.Attr) > 0 {
				el.attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					el.attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("parsing record: more than one document element")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("parsing record: no document element")
	}
	return &Record{root: root}, nil
}

// ReadRecordFile parses the record stored at path.
func ReadRecordFile(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rec, err := ParseRecord(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}

// Lookup resolves a slash separated path of element names starting below the
// document element, e.g. "node/parentIds/string". A final "@name" segment, or
// a "name@attr" segment, reads an attribute. The first matching child is used
// at every level. Text is trimmed; a missing path or an empty element
// reports ok == false.
func (r *Record) Lookup(path string) (string, bool) {
	path = strings.TrimPrefix(path, "./")
	if path == "" {
		return "", false
	}
	el := r.root
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		last := i == len(segments)-1
		name, attr, hasAttr := strings.Cut(seg, "@")
		if hasAttr && !last {
			return "", false
		}
		if name != "" {
			el = el.child(name)
			if el == nil {
				return "", false
			}
		}
		if hasAttr {
			v, ok := el.attrs[attr]
			return v, ok
		}
	}
	text := strings.TrimSpace(el.text.String())
	if text == "" {
		return "", false
	}
	return text, true
}
