package xmltree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// ErrEmptyDocument is returned when the input contains no elements at all.
var ErrEmptyDocument = errors.New("xmltree: document has no elements")

type frame struct {
	name     string
	node     Value
	hasChild bool
	chars    strings.Builder
}

// Parse decodes raw XML into a document node whose fields are the top-level elements.
//
// Element and attribute names keep their literal namespace prefix ("dc:creator",
// "atom:feed") and undeclared prefixes are accepted. Attributes and child elements share
// one field namespace. An element with neither attributes nor children collapses to a
// text value; otherwise its character data (CDATA included) is stored under TextField.
// Unbalanced end tags close the nearest matching open element.
func Parse(data []byte) (Value, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel

	root := &frame{node: NodeValue(nil)}
	stack := []*frame{root}
	elements := 0

	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Value{}, fmt.Errorf("decode xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			elements++
			f := &frame{name: qualifiedName(t.Name), node: NodeValue(nil)}
			for _, attr := range t.Attr {
				f.node.fields[qualifiedName(attr.Name)] = TextValue(attr.Value)
			}
			stack = append(stack, f)
		case xml.EndElement:
			stack = closeElement(stack, qualifiedName(t.Name))
		case xml.CharData:
			if len(stack) > 1 {
				stack[len(stack)-1].chars.Write(t)
			}
		}
	}

	for len(stack) > 1 {
		stack = popFrame(stack)
	}
	if elements == 0 {
		return Value{}, ErrEmptyDocument
	}
	return root.node, nil
}

func closeElement(stack []*frame, name string) []*frame {
	match := -1
	for i := len(stack) - 1; i > 0; i-- {
		if stack[i].name == name {
			match = i
			break
		}
	}
	if match < 0 {
		return stack
	}
	for len(stack) > match {
		stack = popFrame(stack)
	}
	return stack
}

func popFrame(stack []*frame) []*frame {
	top := stack[len(stack)-1]
	stack = stack[:len(stack)-1]
	parent := stack[len(stack)-1]
	parent.hasChild = true
	parent.node.withField(top.name, top.value())
	return stack
}

func (f *frame) value() Value {
	chars := f.chars.String()
	if !f.hasChild && len(f.node.fields) == 0 {
		return TextValue(chars)
	}
	if strings.TrimSpace(chars) != "" {
		f.node.withField(TextField, TextValue(chars))
	}
	return f.node
}

func qualifiedName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}
