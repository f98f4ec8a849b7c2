package core

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"reflect"
	"sort"
)

// WriteStableJSON writes a canonical JSON-like representation of v into b.
// Objects (map[string]any) have keys sorted recursively to ensure stability.
// Arrays preserve order. Primitive values are marshaled using encoding/json.
func WriteStableJSON(b *bytes.Buffer, v any) {
	switch t := v.(type) {
	case Document:
		writeStableMap(b, t)
	case map[string]any:
		writeStableMap(b, t)
	case []any:
		b.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			WriteStableJSON(b, e)
		}
		b.WriteByte(']')
	default:
		writeStableValue(b, v)
	}
}

func writeStableMap(b *bytes.Buffer, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		writeJSONString(b, k)
		b.WriteByte(':')
		WriteStableJSON(b, m[k])
	}
	b.WriteByte('}')
}

func writeStableValue(b *bytes.Buffer, v any) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		b.WriteString("null")
		return
	}
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		keys := rv.MapKeys()
		sk := make([]string, 0, len(keys))
		for i := range keys {
			sk = append(sk, keys[i].String())
		}
		sort.Strings(sk)
		b.WriteByte('{')
		for i, k := range sk {
			if i > 0 {
				b.WriteByte(',')
			}
			writeJSONString(b, k)
			b.WriteByte(':')
			WriteStableJSON(b, rv.MapIndex(reflect.ValueOf(k)).Interface())
		}
		b.WriteByte('}')
		return
	}
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		b.WriteByte('[')
		n := rv.Len()
		for i := 0; i < n; i++ {
			if i > 0 {
				b.WriteByte(',')
			}
			WriteStableJSON(b, rv.Index(i).Interface())
		}
		b.WriteByte(']')
		return
	}
	bs, err := json.Marshal(v)
	if err != nil {
		b.WriteString("null")
		return
	}
	b.Write(bs)
}

func writeJSONString(b *bytes.Buffer, s string) {
	bs, err := json.Marshal(s)
	if err != nil {
		b.WriteByte('"')
		b.WriteString(s)
		b.WriteByte('"')
		return
	}
	b.Write(bs)
}

// StableJSONBytes returns the canonical JSON-like bytes for v using WriteStableJSON.
func StableJSONBytes(v any) []byte {
	var b bytes.Buffer
	WriteStableJSON(&b, v)
	return b.Bytes()
}

// Fingerprint returns a deterministic SHA-256 hex digest of the canonical
// JSON-like form of v. Any structural change to v (field added, removed or
// changed at any depth) yields a different digest.
func Fingerprint(v any) string {
	sum := sha256.Sum256(StableJSONBytes(v))
	return hex.EncodeToString(sum[:])
}
