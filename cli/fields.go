package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/digitorus/pdfstamp/common"
	"github.com/digitorus/pdfstamp/coords"
	"github.com/digitorus/pdfstamp/fields"
	"github.com/digitorus/pdfstamp/images"
)

// parseField parses "role:page:x:y", with x and y normalized in the given
// convention.
func parseField(s string, conv coords.Convention) (common.Role, int, coords.Normalized, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return 0, 0, coords.Normalized{}, fmt.Errorf("field %q: want role:page:x:y", s)
	}
	role, err := common.ParseRole(parts[0])
	if err != nil {
		return 0, 0, coords.Normalized{}, err
	}
	page, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, coords.Normalized{}, fmt.Errorf("field %q: invalid page: %w", s, err)
	}
	x, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, 0, coords.Normalized{}, fmt.Errorf("field %q: invalid x: %w", s, err)
	}
	y, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return 0, 0, coords.Normalized{}, fmt.Errorf("field %q: invalid y: %w", s, err)
	}
	return role, page, coords.FromConvention(coords.Normalized{X: x, Y: y}, conv), nil
}

// buildRegistry adds every "role:page:x:y" spec to a registry for a
// document of pageCount pages.
func buildRegistry(specs []string, pageCount int, conv coords.Convention) (*fields.Registry, error) {
	reg := fields.NewRegistry(pageCount)
	for _, spec := range specs {
		role, page, pos, err := parseField(spec, conv)
		if err != nil {
			return nil, err
		}
		if _, err := reg.AddField(role, page, pos); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// readImages parses "role=path" pairs and loads each image.
func readImages(specs []string) (map[common.Role]*images.Image, error) {
	out := make(map[common.Role]*images.Image, len(specs))
	for _, spec := range specs {
		name, path, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("image %q: want role=path", spec)
		}
		role, err := common.ParseRole(name)
		if err != nil {
			return nil, err
		}
		img, err := readImage(role, path)
		if err != nil {
			return nil, err
		}
		out[role] = img
	}
	return out, nil
}

func readImage(role common.Role, path string) (*images.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := images.New(role, "", data, cfg.ImageLimits())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}
