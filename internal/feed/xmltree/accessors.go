package xmltree

import "strings"

// Attribute and field names consulted by ExtractLink.
const (
	relField  = "rel"
	hrefField = "href"
	urlField  = "url"
	relAltern = "alternate"
)

// ExtractText returns the first non-empty trimmed string reachable from v: the text
// itself, the text/cdata/#text field of a node, or the first such string found depth
// first in a list.
func ExtractText(v Value) (string, bool) {
	switch v.kind {
	case KindText:
		return trimmed(v.text)
	case KindList:
		for _, item := range v.items {
			if text, ok := ExtractText(item); ok {
				return text, true
			}
		}
		return "", false
	case KindNode:
		for _, name := range []string{TextField, CDATAField, HashText} {
			if f := v.fields[name]; f.kind == KindText {
				if text, ok := trimmed(f.text); ok {
					return text, true
				}
			}
		}
		return "", false
	default:
		return "", false
	}
}

// ExtractLink returns the URL carried by v. Lists prefer the element whose rel is
// "alternate" and fall back to the first element; nodes use href, then url, then text.
func ExtractLink(v Value) (string, bool) {
	switch v.kind {
	case KindText:
		return trimmed(v.text)
	case KindList:
		if len(v.items) == 0 {
			return "", false
		}
		preferred := v.items[0]
		for _, item := range v.items {
			if rel, _ := ExtractText(item.Field(relField)); rel == relAltern {
				preferred = item
				break
			}
		}
		return ExtractLink(preferred)
	case KindNode:
		for _, name := range []string{hrefField, urlField, TextField} {
			if f := v.fields[name]; f.kind == KindText {
				if link, ok := trimmed(f.text); ok {
					return link, true
				}
			}
		}
		return "", false
	default:
		return "", false
	}
}

// AsList coerces v to a slice: absent yields nil, a list yields its items, and any
// single value yields a one-element slice.
func AsList(v Value) []Value {
	switch v.kind {
	case KindAbsent:
		return nil
	case KindList:
		return v.items
	default:
		return []Value{v}
	}
}

func trimmed(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}
