package checks

import (
	"context"
	"fmt"
	"image"

	"github.com/borzov/photo-validation-service/pkg/schema"
)

// BackgroundCheck verifies the background is uniform and, optionally, light.
// The background sample is the frame border outside the face region.
type BackgroundCheck struct{}

func (c *BackgroundCheck) Describe() schema.Descriptor {
	return schema.Descriptor{
		Name:        "background",
		DisplayName: "Background",
		Description: "Checks for a uniform, light background",
		Category:    schema.CategoryBackground,
		Version:     builtinVersion,
		Author:      builtinAuthor,
		Params: []schema.ParamSpec{
			{
				Name: "std_dev_threshold", Kind: schema.ParamFloat, Default: 100,
				Min: fptr(10), Max: fptr(500),
				Description: "Maximum luminance standard deviation of the background",
			},
			{
				Name: "dark_threshold", Kind: schema.ParamInt, Default: 100,
				Min: fptr(50), Max: fptr(200),
				Description: "Mean luminance below which the background is too dark",
			},
			{
				Name: "require_light", Kind: schema.ParamBool, Default: true,
				Description: "Whether the background must be light",
			},
		},
		EnabledByDefault: true,
	}
}

func (c *BackgroundCheck) Evaluate(ctx context.Context, req *Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gray := grayscale(req.Image)
	b := gray.Bounds()

	// Sample the border strips; the subject occupies the frame center.
	strip := b.Dy() / 8
	if strip < 1 {
		strip = 1
	}
	samples := []image.Rectangle{
		image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+strip),
		image.Rect(b.Min.X, b.Min.Y, b.Min.X+strip, b.Max.Y),
		image.Rect(b.Max.X-strip, b.Min.Y, b.Max.X, b.Max.Y),
	}

	var meanSum, stddevMax float64
	for _, r := range samples {
		mean, stddev := lumaStats(gray, r)
		meanSum += mean
		if stddev > stddevMax {
			stddevMax = stddev
		}
	}
	meanLuma := meanSum / float64(len(samples))

	maxStdDev := req.Params.Float("std_dev_threshold", 100)
	darkThreshold := float64(req.Params.Int("dark_threshold", 100))
	requireLight := req.Params.Bool("require_light", true)

	details := map[string]any{
		"background_mean":   meanLuma,
		"background_stddev": stddevMax,
		"std_dev_threshold": maxStdDev,
		"dark_threshold":    darkThreshold,
		"require_light":     requireLight,
	}

	if stddevMax > maxStdDev {
		return failed(fmt.Sprintf("background is not uniform: stddev %.1f exceeds %.1f", stddevMax, maxStdDev), details), nil
	}
	if requireLight && meanLuma < darkThreshold {
		return failed(fmt.Sprintf("background is too dark: mean luminance %.1f below %.0f", meanLuma, darkThreshold), details), nil
	}
	return passed(details), nil
}
