package cli

import (
	"fmt"
	"os"

	"github.com/digitorus/pdfstamp/common"
	"github.com/digitorus/pdfstamp/coords"
	"github.com/digitorus/pdfstamp/document"
	"github.com/digitorus/pdfstamp/stamp"
	"github.com/spf13/cobra"
)

type stampOptions struct {
	fields     []string
	images     []string
	convention string
}

func newStampCmd() *cobra.Command {
	var o stampOptions
	cmd := &cobra.Command{
		Use:   "stamp <input.pdf> <output.pdf> --field role:page:x:y --image role=path",
		Short: "Composite signer images onto their fields",
		Long: `Embeds each role's image at its field. The staff stamp is embedded
before the recipient stamp and each embed starts from the previous result.
The input file is not modified.`,
		Example: `  pdfstamp stamp in.pdf out.pdf --field staff:1:0.1:0.8 --image staff=staff.png
  pdfstamp stamp in.pdf out.pdf --convention bottom-left --field recipient:2:0.6:0.2 --image recipient=sig.png`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args[0], args[1])
		},
	}
	cmd.Flags().StringArrayVar(&o.fields, "field", nil, "Field as role:page:x:y (repeatable)")
	cmd.Flags().StringArrayVar(&o.images, "image", nil, "Signer image as role=path (repeatable)")
	cmd.Flags().StringVar(&o.convention, "convention", "top-left", "Origin of field coordinates (top-left, bottom-left)")
	_ = cmd.MarkFlagRequired("field")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func (o *stampOptions) run(cmd *cobra.Command, input, output string) error {
	conv, err := coords.ParseConvention(o.convention)
	if err != nil {
		return err
	}
	doc, err := document.OpenFile(input)
	if err != nil {
		return err
	}
	reg, err := buildRegistry(o.fields, doc.PageCount(), conv)
	if err != nil {
		return err
	}
	imgs, err := readImages(o.images)
	if err != nil {
		return err
	}

	opts := cfg.StampOptions()
	opts.Logger = logger
	pipeline := stamp.New(opts)

	embedded := 0
	for _, role := range common.RequiredRoles {
		field, ok := reg.ByRole(role)
		img := imgs[role]
		switch {
		case !ok && img == nil:
			continue
		case !ok:
			return fmt.Errorf("image given for %s but no field", role)
		case img == nil:
			return fmt.Errorf("field given for %s but no image", role)
		}

		next, err := pipeline.Embed(cmd.Context(), doc, field, img)
		if err != nil {
			return &common.CompositeError{Role: role, Err: err}
		}
		doc = next
		embedded++
	}

	if err := os.WriteFile(output, doc.Bytes(), 0o644); err != nil {
		return err
	}
	cmd.Printf("%s: %d stamp(s), revision %d, digest %s\n", output, embedded, doc.Revision(), doc.Digest())
	return nil
}
