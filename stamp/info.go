package stamp

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	pdflib "github.com/digitorus/pdf"
	ipdf "github.com/digitorus/pdfstamp/internal/pdf"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// updateInfo writes a document information dictionary with a fresh
// /ModDate and, if set, /Producer. Other entries are preserved.
func (w *writer) updateInfo(producer string, now time.Time) error {
	info := w.rdr.Trailer().Key("Info")

	var buf bytes.Buffer
	buf.WriteString("<<")
	if info.Kind() == pdflib.Dict {
		owner, _ := ipdf.Ref(info)
		ipdf.WriteEntries(&buf, owner, info, map[string]bool{"ModDate": true, "Producer": true})
	}
	buf.WriteString(" /ModDate " + pdfDateTime(now))
	if producer != "" {
		str, err := pdfString(producer)
		if err != nil {
			return err
		}
		buf.WriteString(" /Producer " + str)
	}
	buf.WriteString(" >>")

	if id, gen := ipdf.Ref(info); info.Kind() == pdflib.Dict && id != 0 {
		return w.updateObject(id, gen, buf.Bytes())
	}

	id, err := w.addObject(buf.Bytes())
	if err != nil {
		return fmt.Errorf("failed to add info dictionary: %w", err)
	}
	w.info = id
	return nil
}

// pdfString encodes text as a PDF text string: a literal string when it is
// ASCII, UTF-16BE with a byte order mark otherwise.
func pdfString(text string) (string, error) {
	if !isASCII(text) {
		enc := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
		res, _, err := transform.String(enc, text)
		if err != nil {
			return "", fmt.Errorf("failed to encode %q: %w", text, err)
		}
		return "<" + hex.EncodeToString([]byte(res)) + ">", nil
	}

	text = strings.ReplaceAll(text, "\\", "\\\\")
	text = strings.ReplaceAll(text, ")", "\\)")
	text = strings.ReplaceAll(text, "(", "\\(")
	text = strings.ReplaceAll(text, "\r", "\\r")
	return "(" + text + ")", nil
}

// pdfDateTime formats date as a PDF date string, D:YYYYMMDDHHmmSS+HH'mm'.
func pdfDateTime(date time.Time) string {
	_, offset := date.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return fmt.Sprintf("(D:%s%s%02d'%02d')", date.Format("20060102150405"), sign, offset/3600, offset%3600/60)
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > '\u007F' {
			return false
		}
	}
	return true
}
