package checks

import (
	"context"
	"fmt"

	"github.com/borzov/photo-validation-service/pkg/schema"
)

// BlurCheck rejects out-of-focus photos using the variance of the Laplacian.
type BlurCheck struct{}

func (c *BlurCheck) Describe() schema.Descriptor {
	return schema.Descriptor{
		Name:        "blurriness",
		DisplayName: "Blurriness",
		Description: "Checks that the photo is sharp enough",
		Category:    schema.CategoryQuality,
		Version:     builtinVersion,
		Author:      builtinAuthor,
		Params: []schema.ParamSpec{
			{
				Name: "laplacian_threshold", Kind: schema.ParamInt, Default: 40,
				Min: fptr(10), Max: fptr(200),
				Description: "Minimum Laplacian variance for a sharp image",
			},
		},
		EnabledByDefault: true,
	}
}

func (c *BlurCheck) Evaluate(ctx context.Context, req *Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gray := grayscale(req.Image)
	variance := laplacianVariance(gray)
	threshold := float64(req.Params.Int("laplacian_threshold", 40))

	details := map[string]any{
		"laplacian_variance":  variance,
		"laplacian_threshold": threshold,
	}
	if variance < threshold {
		return failed(fmt.Sprintf("image is blurry: sharpness %.1f below threshold %.0f", variance, threshold), details), nil
	}
	return passed(details), nil
}
