package checks

import (
	"context"
	"fmt"

	"github.com/borzov/photo-validation-service/pkg/schema"
)

// LightingCheck flags under-exposed, over-exposed, or flat photos from the
// luminance histogram.
type LightingCheck struct{}

func (c *LightingCheck) Describe() schema.Descriptor {
	return schema.Descriptor{
		Name:        "lighting",
		DisplayName: "Lighting",
		Description: "Checks exposure and contrast",
		Category:    schema.CategoryQuality,
		Version:     builtinVersion,
		Author:      builtinAuthor,
		Params: []schema.ParamSpec{
			{
				Name: "underexposure_threshold", Kind: schema.ParamInt, Default: 25,
				Min: fptr(5), Max: fptr(100),
				Description: "Mean luminance below which the photo is under-exposed",
			},
			{
				Name: "overexposure_threshold", Kind: schema.ParamInt, Default: 240,
				Min: fptr(200), Max: fptr(255),
				Description: "Mean luminance above which the photo is over-exposed",
			},
			{
				Name: "low_contrast_threshold", Kind: schema.ParamInt, Default: 20,
				Min: fptr(5), Max: fptr(100),
				Description: "Luminance standard deviation below which the photo is flat",
			},
		},
		EnabledByDefault: true,
	}
}

func (c *LightingCheck) Evaluate(ctx context.Context, req *Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gray := grayscale(req.Image)
	mean, stddev := lumaStats(gray, gray.Bounds())

	under := float64(req.Params.Int("underexposure_threshold", 25))
	over := float64(req.Params.Int("overexposure_threshold", 240))
	contrast := float64(req.Params.Int("low_contrast_threshold", 20))

	details := map[string]any{
		"mean_luminance":          mean,
		"luminance_stddev":        stddev,
		"underexposure_threshold": under,
		"overexposure_threshold":  over,
		"low_contrast_threshold":  contrast,
	}

	switch {
	case mean < under:
		return failed(fmt.Sprintf("photo is under-exposed: mean luminance %.1f below %.0f", mean, under), details), nil
	case mean > over:
		return failed(fmt.Sprintf("photo is over-exposed: mean luminance %.1f above %.0f", mean, over), details), nil
	case stddev < contrast:
		return failed(fmt.Sprintf("photo has low contrast: stddev %.1f below %.0f", stddev, contrast), details), nil
	}
	return passed(details), nil
}
