package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/digitorus/pdfstamp/common"
	"github.com/digitorus/pdfstamp/images"
	"github.com/digitorus/pdfstamp/services/filestore"
	"github.com/digitorus/pdfstamp/services/httpapi"
	"github.com/digitorus/pdfstamp/session"
	"github.com/digitorus/pdfstamp/stamp"
	"github.com/spf13/cobra"
)

type runOptions struct {
	recipientImage string
	sessionID      string
	noSubmit       bool
}

func newRunCmd() *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:   "run [manifest.yaml]",
		Short: "Drive a signing session from load to submit",
		Long: `Runs a full signing session: load the document and fields, embed the
staff stamp, embed the recipient stamp and submit the result.

With a manifest the session is served from the manifest's directory and the
result is written to the manifest's output path. With --session the document
and submission services configured under [services] are used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args)
		},
	}
	cmd.Flags().StringVar(&o.recipientImage, "recipient-image", "", "Recipient image file, overriding the session's reference")
	cmd.Flags().StringVar(&o.sessionID, "session", "", "Session id at the configured document service")
	cmd.Flags().BoolVar(&o.noSubmit, "no-submit", false, "Stop once both stamps are embedded")
	return cmd
}

type collaborators struct {
	docs   session.DocumentService
	images session.ImageSource
	submit session.SubmissionService
	output func() (string, error)
}

func (o *runOptions) run(cmd *cobra.Command, args []string) error {
	var (
		id     string
		collab collaborators
		err    error
	)
	switch {
	case len(args) == 1 && o.sessionID == "":
		id, collab = manifestCollaborators(args[0])
	case len(args) == 0 && o.sessionID != "":
		id = o.sessionID
		collab, err = remoteCollaborators()
	default:
		err = errors.New("give either a manifest or --session")
	}
	if err != nil {
		return err
	}

	opts := cfg.StampOptions()
	opts.Logger = logger
	s := session.New(collab.docs, collab.images, collab.submit,
		session.WithID(id),
		session.WithCompositor(stamp.New(opts)),
		session.WithLogger(logger),
	)
	ctx := cmd.Context()

	if err := s.Load(ctx); err != nil {
		return err
	}
	if s.State() != session.AwaitingRecipientDraw {
		return fmt.Errorf("session %s is %s, staff stamp not embedded", id, s.State())
	}

	img, err := o.loadRecipientImage(cmd, s, collab.images)
	if err != nil {
		return err
	}
	if err := s.DrawRecipient(ctx, img); err != nil {
		return err
	}
	if o.noSubmit {
		cmd.Printf("session %s: %s, digest %s\n", id, s.State(), s.Document().Digest())
		return nil
	}
	if err := s.Submit(ctx); err != nil {
		return err
	}

	where := "submitted"
	if collab.output != nil {
		if where, err = collab.output(); err != nil {
			return err
		}
	}
	cmd.Printf("session %s: %s to %s, digest %s\n", id, s.State(), where, s.Document().Digest())
	return nil
}

func manifestCollaborators(path string) (string, collaborators) {
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	store := filestore.New(filepath.Dir(path), filestore.WithLimits(cfg.ImageLimits()), filestore.WithLogger(logger))
	return id, collaborators{
		docs:   store,
		images: store,
		submit: store,
		output: func() (string, error) { return store.OutputPath(id) },
	}
}

func remoteCollaborators() (collaborators, error) {
	svc := cfg.Services
	if svc.DocumentURL == "" {
		return collaborators{}, errors.New("services.document_url is not configured")
	}
	newClient := func(base string) (*httpapi.Client, error) {
		return httpapi.New(httpapi.Config{
			BaseURL:           base,
			AuthToken:         svc.AuthToken,
			Timeout:           svc.Timeout,
			RequestsPerSecond: svc.RequestsPerSecond,
			Burst:             svc.Burst,
			Limits:            cfg.ImageLimits(),
			Logger:            logger,
		})
	}

	docs, err := newClient(svc.DocumentURL)
	if err != nil {
		return collaborators{}, err
	}
	collab := collaborators{docs: docs, images: docs, submit: docs}
	if svc.SubmissionURL != "" && svc.SubmissionURL != svc.DocumentURL {
		if collab.submit, err = newClient(svc.SubmissionURL); err != nil {
			return collaborators{}, err
		}
	}
	return collab, nil
}

func (o *runOptions) loadRecipientImage(cmd *cobra.Command, s *session.Session, src session.ImageSource) (*images.Image, error) {
	if o.recipientImage != "" {
		return readImage(common.Recipient, o.recipientImage)
	}
	ref := s.ImageRef(common.Recipient)
	if ref == "" {
		return nil, errors.New("no recipient image: pass --recipient-image")
	}
	return src.FetchImage(cmd.Context(), common.Recipient, ref)
}
