package richtext

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
)

// ErrBadValue reports a value that could not be decoded into a tree.
var ErrBadValue = errors.New("richtext: value is not a structured document")

// Parse decodes a field value into a document tree. It accepts an
// existing *Document, a []Node child list, a JSON-encoded string or byte
// slice, or generic decoded JSON ([]any). A nil or empty value yields the
// default single-paragraph document. Callers that must never fail use
// the error to fall back to DefaultDocument.
func Parse(value any) (*Document, error) {
	switch v := value.(type) {
	case nil:
		return DefaultDocument(), nil
	case *Document:
		if len(v.Children) == 0 {
			return DefaultDocument(), nil
		}
		return v.Clone(), nil
	case []Node:
		if len(v) == 0 {
			return DefaultDocument(), nil
		}
		d := &Document{Children: make([]Node, len(v))}
		for i, n := range v {
			d.Children[i] = n.Clone()
		}
		d.Normalize()
		return d, nil
	case string:
		if v == "" {
			return DefaultDocument(), nil
		}
		return parseJSON([]byte(v))
	case []byte:
		if len(v) == 0 {
			return DefaultDocument(), nil
		}
		return parseJSON(v)
	case json.RawMessage:
		return Parse([]byte(v))
	case []any:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadValue, err)
		}
		return parseJSON(raw)
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrBadValue, value)
	}
}

func parseJSON(data []byte) (*Document, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrBadValue)
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, fmt.Errorf("%w: root is not an array of blocks", ErrBadValue)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadValue, err)
	}
	if len(raw) == 0 {
		return DefaultDocument(), nil
	}
	d := &Document{Children: make([]Node, 0, len(raw))}
	for _, r := range raw {
		n, err := decodeNode(r)
		if err != nil {
			return nil, err
		}
		d.Children = append(d.Children, n)
	}
	d.Normalize()
	return d, nil
}

// decodeNode decodes a single tree node. Objects with a "children" key
// (or a "type" tag) are elements; objects with a "text" key are leaves.
func decodeNode(data json.RawMessage) (Node, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadValue, err)
	}

	if children, isElement := obj["children"]; isElement {
		el := &Element{}
		if t, ok := obj["type"]; ok {
			if err := json.Unmarshal(t, &el.Type); err != nil {
				return nil, fmt.Errorf("%w: bad element type: %v", ErrBadValue, err)
			}
		}
		var kids []json.RawMessage
		if err := json.Unmarshal(children, &kids); err != nil {
			return nil, fmt.Errorf("%w: bad children: %v", ErrBadValue, err)
		}
		for _, k := range kids {
			n, err := decodeNode(k)
			if err != nil {
				return nil, err
			}
			el.Children = append(el.Children, n)
		}
		for k, v := range obj {
			if k == "type" || k == "children" {
				continue
			}
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				continue
			}
			if el.Attrs == nil {
				el.Attrs = make(map[string]any)
			}
			el.Attrs[k] = val
		}
		if len(el.Children) == 0 {
			el.Children = []Node{NewText("")}
		}
		return el, nil
	}

	if text, isText := obj["text"]; isText {
		leaf := &Text{}
		if err := json.Unmarshal(text, &leaf.Text); err != nil {
			return nil, fmt.Errorf("%w: bad text leaf: %v", ErrBadValue, err)
		}
		for k, v := range obj {
			if k == "text" {
				continue
			}
			var mark bool
			if err := json.Unmarshal(v, &mark); err != nil {
				continue
			}
			leaf.SetMark(k, mark)
		}
		return leaf, nil
	}

	return nil, fmt.Errorf("%w: node is neither element nor text", ErrBadValue)
}

// Serialize encodes the document deterministically: fixed key order with
// marks and attrs sorted, so equal trees always produce identical bytes.
// Editor re-initialization relies on this for identity comparison.
func (d *Document) Serialize() string {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, ch := range d.Children {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodeNode(&buf, ch)
	}
	buf.WriteByte(']')
	return buf.String()
}

func encodeNode(buf *bytes.Buffer, n Node) {
	switch v := n.(type) {
	case *Text:
		buf.WriteString(`{"text":`)
		writeJSON(buf, v.Text)
		for _, k := range sortedKeys(v.Marks) {
			if !v.Marks[k] {
				continue
			}
			buf.WriteByte(',')
			writeJSON(buf, k)
			buf.WriteString(`:true`)
		}
		buf.WriteByte('}')
	case *Element:
		buf.WriteString(`{"type":`)
		writeJSON(buf, v.Type)
		buf.WriteString(`,"children":[`)
		for i, ch := range v.Children {
			if i > 0 {
				buf.WriteByte(',')
			}
			encodeNode(buf, ch)
		}
		buf.WriteByte(']')
		keys := make([]string, 0, len(v.Attrs))
		for k := range v.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			buf.WriteByte(',')
			writeJSON(buf, k)
			buf.WriteByte(':')
			writeJSON(buf, v.Attrs[k])
		}
		buf.WriteByte('}')
	}
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeJSON(buf *bytes.Buffer, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		buf.WriteString("null")
		return
	}
	buf.Write(b)
}

// MarshalJSON encodes the document in wire shape: a bare array of
// block elements.
func (d *Document) MarshalJSON() ([]byte, error) {
	return []byte(d.Serialize()), nil
}

// UnmarshalJSON decodes the wire shape produced by MarshalJSON.
func (d *Document) UnmarshalJSON(data []byte) error {
	parsed, err := parseJSON(data)
	if err != nil {
		return err
	}
	d.Children = parsed.Children
	return nil
}

// MarshalJSON encodes the leaf as {"text": ..., mark: true, ...}.
func (t *Text) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	encodeNode(&buf, t)
	return buf.Bytes(), nil
}

// MarshalJSON encodes the element as {"type": ..., "children": [...]}
// plus its attrs.
func (e *Element) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	encodeNode(&buf, e)
	return buf.Bytes(), nil
}

// Equal reports whether two documents are structurally equal: same
// element types, same ordered children, same marks and attrs.
func Equal(a, b *Document) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Serialize() == b.Serialize()
}
