package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/borzov/photo-validation-service/pkg/schema"
)

// RealPhotoCheck distinguishes photographs from drawings, renders, and scans
// of documents by color diversity. Synthetic images use far fewer distinct
// colors than camera output.
type RealPhotoCheck struct{}

func (c *RealPhotoCheck) Describe() schema.Descriptor {
	return schema.Descriptor{
		Name:        "real_photo",
		DisplayName: "Real Photo",
		Description: "Checks that the image is a photograph, not a drawing or render",
		Category:    schema.CategoryContent,
		Version:     builtinVersion,
		Author:      builtinAuthor,
		Params: []schema.ParamSpec{
			{
				Name: "min_color_diversity", Kind: schema.ParamFloat, Default: 0.02,
				Min: fptr(0.001), Max: fptr(0.5),
				Description: "Minimum distinct-color ratio for a real photograph",
			},
		},
		EnabledByDefault: true,
		MaxDuration:      3 * time.Second,
	}
}

func (c *RealPhotoCheck) Evaluate(ctx context.Context, req *Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rgba := downsample(req.Image)
	diversity := colorDiversity(rgba)
	threshold := req.Params.Float("min_color_diversity", 0.02)

	details := map[string]any{
		"color_diversity":     diversity,
		"min_color_diversity": threshold,
	}
	if diversity < threshold {
		return failed(fmt.Sprintf("image does not look like a photograph: color diversity %.4f below %.4f", diversity, threshold), details), nil
	}
	return passed(details), nil
}
