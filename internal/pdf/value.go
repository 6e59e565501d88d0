package pdf

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"

	pdflib "github.com/digitorus/pdf"
)

// WriteValue serializes v into buf. Values stored directly inside the object
// owner are written inline; anything living in another object is written as
// an indirect reference, so rewriting a dictionary never duplicates shared
// objects.
func WriteValue(buf *bytes.Buffer, owner uint32, v pdflib.Value) {
	if id, gen := Ref(v); id != 0 && id != owner {
		fmt.Fprintf(buf, "%d %d R", id, gen)
		return
	}

	switch v.Kind() {
	case pdflib.Null:
		buf.WriteString("null")
	case pdflib.Bool:
		buf.WriteString(strconv.FormatBool(v.Bool()))
	case pdflib.Integer:
		buf.WriteString(strconv.FormatInt(v.Int64(), 10))
	case pdflib.Real:
		buf.WriteString(strconv.FormatFloat(v.Float64(), 'f', -1, 64))
	case pdflib.String:
		buf.WriteString("<" + hex.EncodeToString([]byte(v.RawString())) + ">")
	case pdflib.Name:
		WriteName(buf, v.Name())
	case pdflib.Array:
		buf.WriteString("[")
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				buf.WriteString(" ")
			}
			WriteValue(buf, owner, v.Index(i))
		}
		buf.WriteString("]")
	case pdflib.Dict:
		WriteDict(buf, owner, v, nil)
	default:
		// Streams are always indirect, an inline one cannot be expressed.
		buf.WriteString("null")
	}
}

// WriteDict serializes a dictionary, leaving out the keys in skip.
func WriteDict(buf *bytes.Buffer, owner uint32, v pdflib.Value, skip map[string]bool) {
	buf.WriteString("<<")
	WriteEntries(buf, owner, v, skip)
	buf.WriteString(" >>")
}

// WriteEntries writes the key/value pairs of a dictionary without the
// enclosing delimiters, so callers can append entries of their own.
func WriteEntries(buf *bytes.Buffer, owner uint32, v pdflib.Value, skip map[string]bool) {
	for _, key := range v.Keys() {
		if skip[key] {
			continue
		}
		buf.WriteString(" ")
		WriteName(buf, key)
		buf.WriteString(" ")
		WriteValue(buf, owner, v.Key(key))
	}
}

// WriteName writes a name object, escaping delimiters and non-regular
// characters as #xx.
func WriteName(buf *bytes.Buffer, name string) {
	buf.WriteByte('/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < '!' || c > '~' || bytes.IndexByte([]byte("#()<>[]{}/%"), c) >= 0 {
			fmt.Fprintf(buf, "#%02x", c)
			continue
		}
		buf.WriteByte(c)
	}
}
