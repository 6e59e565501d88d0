package pdf

import (
	"bytes"
	"fmt"
	"io"

	pdflib "github.com/digitorus/pdf"
)

// ContentStreams returns the content streams of a page in drawing order.
func ContentStreams(page pdflib.Value) []pdflib.Value {
	contents := page.Key("Contents")
	switch contents.Kind() {
	case pdflib.Stream:
		return []pdflib.Value{contents}
	case pdflib.Array:
		streams := make([]pdflib.Value, 0, contents.Len())
		for i := 0; i < contents.Len(); i++ {
			if s := contents.Index(i); s.Kind() == pdflib.Stream {
				streams = append(streams, s)
			}
		}
		return streams
	default:
		return nil
	}
}

// ReadContent returns the decoded, concatenated content of a page.
func ReadContent(page pdflib.Value) ([]byte, error) {
	var buf bytes.Buffer
	for i, stream := range ContentStreams(page) {
		if err := ReadStream(&buf, stream); err != nil {
			return nil, fmt.Errorf("failed to copy content stream %d: %w", i, err)
		}
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// ReadStream copies the decoded data of a stream into w. Streams using a
// filter the reader cannot decode yield an error instead of a panic.
func ReadStream(w io.Writer, stream pdflib.Value) error {
	for _, f := range Filters(stream) {
		if f != "FlateDecode" {
			return fmt.Errorf("unsupported filter %s", f)
		}
	}
	if _, err := io.Copy(w, stream.Reader()); err != nil {
		return err
	}
	return nil
}

// Filters returns the filter names applied to a stream.
func Filters(stream pdflib.Value) []string {
	filter := stream.Key("Filter")
	switch filter.Kind() {
	case pdflib.Name:
		return []string{filter.Name()}
	case pdflib.Array:
		names := make([]string, 0, filter.Len())
		for i := 0; i < filter.Len(); i++ {
			names = append(names, filter.Index(i).Name())
		}
		return names
	default:
		return nil
	}
}
