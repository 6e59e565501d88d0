package common

import (
	"errors"
	"fmt"

	"github.com/digitorus/pdfstamp/coords"
)

var (
	// ErrSuperseded is returned by a render whose result was discarded
	// because a newer render for the same surface was issued.
	ErrSuperseded = errors.New("render superseded by a newer request")

	// ErrBusy is returned when an embed is requested while another embed on
	// the same session has not settled yet.
	ErrBusy = errors.New("another embed is in progress")

	// ErrInvalidTransition is returned when an action is not permitted in the
	// current session state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrEncrypted is returned for documents protected by a security handler.
	ErrEncrypted = errors.New("encrypted documents are not supported")

	// ErrCanceled is returned when the result of an embed was discarded by a
	// cancel request.
	ErrCanceled = errors.New("embed result discarded by cancel")
)

// OutOfBoundsError reports a normalized position outside the unit square.
type OutOfBoundsError = coords.OutOfBoundsError

// InvalidDimensionError reports a NaN, infinite or negative size.
type InvalidDimensionError = coords.InvalidDimensionError

// PageOutOfRangeError reports a field placed on a page the document does
// not have.
type PageOutOfRangeError struct {
	Page      int
	PageCount int
}

func (e *PageOutOfRangeError) Error() string {
	return fmt.Sprintf("page %d out of range (1-%d)", e.Page, e.PageCount)
}

// DuplicateRoleError reports a second field for a role that already has one.
type DuplicateRoleError struct {
	Role     Role
	Existing string
}

func (e *DuplicateRoleError) Error() string {
	return fmt.Sprintf("role %s already has field %s", e.Role, e.Existing)
}

// UnsupportedImageFormatError reports an image that is neither PNG nor JPEG.
type UnsupportedImageFormatError struct {
	Format string
}

func (e *UnsupportedImageFormatError) Error() string {
	if e.Format == "" {
		return "unsupported image format"
	}
	return fmt.Sprintf("unsupported image format %q (want image/png or image/jpeg)", e.Format)
}

// ImageTooLargeError reports an image that exceeds a boundary limit.
type ImageTooLargeError struct {
	What  string
	Size  int64
	Limit int64
}

func (e *ImageTooLargeError) Error() string {
	return fmt.Sprintf("image %s %d exceeds limit %d", e.What, e.Size, e.Limit)
}

// PageIndexError reports a zero-based page index outside [0, PageCount).
type PageIndexError struct {
	Index     int
	PageCount int
}

func (e *PageIndexError) Error() string {
	return fmt.Sprintf("page index %d out of range [0,%d)", e.Index, e.PageCount)
}

// PageRenderError reports a page that could not be rasterized. Other pages
// of the same document remain usable.
type PageRenderError struct {
	Page int
	Err  error
}

func (e *PageRenderError) Error() string {
	return fmt.Sprintf("render page %d: %v", e.Page, e.Err)
}

func (e *PageRenderError) Unwrap() error {
	return e.Err
}

// CompositeError reports a failed embed. The document the embed started
// from is untouched and can be used for a retry.
type CompositeError struct {
	Role Role
	Err  error
}

func (e *CompositeError) Error() string {
	return fmt.Sprintf("composite %s stamp: %v", e.Role, e.Err)
}

func (e *CompositeError) Unwrap() error {
	return e.Err
}

// LoadError reports a failure to fetch a document or its fields.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load document: %v", e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// SubmitError reports a failure to hand the final document to the
// submission service.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit document: %v", e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}
