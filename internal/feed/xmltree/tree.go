// Package xmltree turns loosely structured XML into a navigable tree whose fields may be
// text, nested nodes, or lists, and exposes the accessors the normalizers share.
package xmltree

// Kind tags the shape a Value currently holds.
type Kind int

// Value shapes.
const (
	KindAbsent Kind = iota
	KindText
	KindNode
	KindList
)

// String returns a readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNode:
		return "node"
	case KindList:
		return "list"
	default:
		return "absent"
	}
}

// Field names the parser uses for a node's own character data.
const (
	TextField  = "text"
	CDATAField = "cdata"
	HashText   = "#text"
)

// Value is a tagged union over the shapes an XML field can take. The zero Value is absent.
type Value struct {
	kind   Kind
	text   string
	fields map[string]Value
	items  []Value
}

// TextValue wraps a plain string.
func TextValue(s string) Value {
	return Value{kind: KindText, text: s}
}

// NodeValue wraps a set of named fields (child elements and attributes).
func NodeValue(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: KindNode, fields: fields}
}

// ListValue wraps repeated values of the same field.
func ListValue(items ...Value) Value {
	return Value{kind: KindList, items: items}
}

// Kind reports the shape held by v.
func (v Value) Kind() Kind {
	return v.kind
}

// IsAbsent reports whether v holds nothing.
func (v Value) IsAbsent() bool {
	return v.kind == KindAbsent
}

// Raw returns the untrimmed string of a text value.
func (v Value) Raw() string {
	if v.kind != KindText {
		return ""
	}
	return v.text
}

// Field returns the named child of a node value. Any other shape yields an absent value.
func (v Value) Field(name string) Value {
	if v.kind != KindNode {
		return Value{}
	}
	return v.fields[name]
}

// Path follows nested fields, stopping at the first absent step.
func (v Value) Path(names ...string) Value {
	cur := v
	for _, name := range names {
		cur = cur.Field(name)
		if cur.IsAbsent() {
			return cur
		}
	}
	return cur
}

// Items returns the elements of a list value.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	return v.items
}

// withField adds a field to a node, turning repeated names into lists.
func (v *Value) withField(name string, child Value) {
	existing, ok := v.fields[name]
	switch {
	case !ok:
		v.fields[name] = child
	case existing.kind == KindList:
		existing.items = append(existing.items, child)
		v.fields[name] = existing
	default:
		v.fields[name] = ListValue(existing, child)
	}
}
