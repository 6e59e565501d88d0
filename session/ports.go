package session

import (
	"context"

	"github.com/digitorus/pdfstamp/common"
	"github.com/digitorus/pdfstamp/coords"
	"github.com/digitorus/pdfstamp/document"
	"github.com/digitorus/pdfstamp/images"
)

// Bundle is what the document service supplies for a session.
type Bundle struct {
	Document  []byte
	PageCount int
	Fields    []FieldSpec
	// Convention tags the coordinates in Fields. The session converts them
	// to the top-left convention once, while loading.
	Convention coords.Convention
	// ImageRefs locates the signer image of each role, for example a URL.
	// A role without a reference has to supply its image interactively.
	ImageRefs map[common.Role]string
}

// FieldSpec is a field as stored by the document service.
type FieldSpec struct {
	ID         string            `json:"id,omitempty" yaml:"id,omitempty"`
	Role       common.Role       `json:"role" yaml:"role"`
	PageNumber int               `json:"page_number" yaml:"page"`
	Position   coords.Normalized `json:"position" yaml:"position"`
}

// DocumentService supplies the document and field metadata of a session.
type DocumentService interface {
	// FetchSession returns the bundle for the session id.
	FetchSession(ctx context.Context, id string) (*Bundle, error)
}

// ImageSource resolves signer image references.
type ImageSource interface {
	// FetchImage returns the image ref points to, validated for role.
	FetchImage(ctx context.Context, role common.Role, ref string) (*images.Image, error)
}

// SubmissionService accepts the final document of a session.
type SubmissionService interface {
	// SubmitDocument uploads doc as the result of session id.
	SubmitDocument(ctx context.Context, id string, doc *document.Document) error
}

// Compositor embeds a signer image into a document. *stamp.Pipeline
// implements it.
type Compositor interface {
	Embed(ctx context.Context, doc *document.Document, field common.Field, img *images.Image) (*document.Document, error)
}
