package cli

import (
	"encoding/json"

	"github.com/digitorus/pdfstamp/document"
	"github.com/spf13/cobra"
)

func newInfoCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "info <input.pdf>",
		Short: "Show page count, page sizes and digest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd, args[0], asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

type pageInfo struct {
	Page   int     `json:"page"`
	Width  float64 `json:"width_pt"`
	Height float64 `json:"height_pt"`
}

type documentInfo struct {
	Bytes  int        `json:"bytes"`
	Digest string     `json:"digest"`
	Pages  []pageInfo `json:"pages"`
}

func runInfo(cmd *cobra.Command, input string, asJSON bool) error {
	doc, err := document.OpenFile(input)
	if err != nil {
		return err
	}

	info := documentInfo{Bytes: doc.Len(), Digest: doc.Digest()}
	for n := 1; n <= doc.PageCount(); n++ {
		size, err := doc.PageSize(n)
		if err != nil {
			return err
		}
		info.Pages = append(info.Pages, pageInfo{Page: n, Width: size.Width, Height: size.Height})
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	cmd.Printf("File:   %s\n", input)
	cmd.Printf("Bytes:  %d\n", info.Bytes)
	cmd.Printf("Digest: %s\n", info.Digest)
	cmd.Printf("Pages:  %d\n", len(info.Pages))
	for _, p := range info.Pages {
		cmd.Printf("  %d: %g x %g pt\n", p.Page, p.Width, p.Height)
	}
	return nil
}
