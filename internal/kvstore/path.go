package kvstore

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

func splitPath(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

func isNull(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// decodeDoc decodes a document into maps, slices and json.Number values.
func decodeDoc(data []byte) (any, error) {
	if isNull(data) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func toGeneric(value any) (any, error) {
	var data []byte
	switch v := value.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			return nil, err
		}
	}
	return decodeDoc(data)
}

// lookup walks segs through objects and arrays. Array segments are indexes.
func lookup(doc any, segs []string) (any, bool) {
	cur := doc
	for _, s := range segs {
		switch n := cur.(type) {
		case map[string]any:
			v, ok := n[s]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(s)
			if err != nil || i < 0 || i >= len(n) {
				return nil, false
			}
			cur = n[i]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

// assign returns doc with value stored at segs. Scalars on the way are
// replaced by objects; an index one past the end of an array appends.
func assign(doc any, segs []string, value any) any {
	if len(segs) == 0 {
		return value
	}
	head, rest := segs[0], segs[1:]

	switch n := doc.(type) {
	case map[string]any:
		n[head] = assign(n[head], rest, value)
		return n
	case []any:
		if i, err := strconv.Atoi(head); err == nil && i >= 0 && i <= len(n) {
			if i == len(n) {
				return append(n, assign(nil, rest, value))
			}
			n[i] = assign(n[i], rest, value)
			return n
		}
	}

	return map[string]any{head: assign(nil, rest, value)}
}
