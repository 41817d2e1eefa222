package checks

import (
	"context"
	"fmt"

	"github.com/borzov/photo-validation-service/pkg/schema"
)

// ColorModeCheck classifies a photo as color or grayscale by mean saturation
// and compares it against the required mode.
type ColorModeCheck struct{}

func (c *ColorModeCheck) Describe() schema.Descriptor {
	return schema.Descriptor{
		Name:        "color_mode",
		DisplayName: "Color Mode",
		Description: "Checks whether the photo is color or grayscale",
		Category:    schema.CategoryQuality,
		Version:     builtinVersion,
		Author:      builtinAuthor,
		Params: []schema.ParamSpec{
			{
				Name: "required_mode", Kind: schema.ParamString, Default: "color",
				Choices:     []any{"color", "grayscale", "any"},
				Description: "Color mode the photo must be in",
			},
			{
				Name: "grayscale_saturation_threshold", Kind: schema.ParamInt, Default: 15,
				Min: fptr(5), Max: fptr(50),
				Description: "Mean saturation below which the photo counts as grayscale",
			},
		},
		EnabledByDefault: true,
	}
}

func (c *ColorModeCheck) Evaluate(ctx context.Context, req *Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rgba := downsample(req.Image)
	saturation := meanSaturation(rgba)
	threshold := float64(req.Params.Int("grayscale_saturation_threshold", 15))

	mode := "color"
	if saturation < threshold {
		mode = "grayscale"
	}

	required := req.Params.String("required_mode", "color")
	details := map[string]any{
		"detected_mode":   mode,
		"required_mode":   required,
		"mean_saturation": saturation,
		"threshold":       threshold,
	}
	if required != "any" && mode != required {
		return failed(fmt.Sprintf("photo is %s, %s required", mode, required), details), nil
	}
	return passed(details), nil
}
