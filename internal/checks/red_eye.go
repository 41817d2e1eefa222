package checks

import (
	"context"
	"fmt"
	"image"

	"github.com/borzov/photo-validation-service/pkg/schema"
)

// RedEyeCheck looks for flash red-eye artifacts in the upper face region.
type RedEyeCheck struct{}

func (c *RedEyeCheck) Describe() schema.Descriptor {
	return schema.Descriptor{
		Name:        "red_eye",
		DisplayName: "Red Eye",
		Description: "Checks for red-eye flash artifacts",
		Category:    schema.CategoryQuality,
		Version:     builtinVersion,
		Author:      builtinAuthor,
		Params: []schema.ParamSpec{
			{
				Name: "red_ratio_threshold", Kind: schema.ParamFloat, Default: 0.05,
				Min: fptr(0.01), Max: fptr(0.5),
				Description: "Fraction of strongly red pixels in the eye band that triggers a failure",
			},
		},
		Dependencies:     []string{TagFaceRegions},
		EnabledByDefault: true,
	}
}

func (c *RedEyeCheck) Evaluate(ctx context.Context, req *Request) (*Result, error) {
	regions, err := req.FaceRegions(ctx)
	if err != nil {
		return nil, err
	}
	if len(regions) == 0 {
		return skipped("no face regions available"), nil
	}

	rgba := downsample(req.Image)
	face := scaleRect(regions[0].Rect, req.Image.Width, req.Image.Height, rgba.Bounds())

	// Eyes sit roughly in the second quarter of the face box.
	eyeBand := image.Rect(
		face.Min.X,
		face.Min.Y+face.Dy()/4,
		face.Max.X,
		face.Min.Y+face.Dy()/2,
	).Intersect(rgba.Bounds())

	n := eyeBand.Dx() * eyeBand.Dy()
	if n == 0 {
		return skipped("face region too small for eye analysis"), nil
	}

	red := 0
	for y := eyeBand.Min.Y; y < eyeBand.Max.Y; y++ {
		for x := eyeBand.Min.X; x < eyeBand.Max.X; x++ {
			i := rgba.PixOffset(x, y)
			r, g, b := int(rgba.Pix[i]), int(rgba.Pix[i+1]), int(rgba.Pix[i+2])
			if r > 150 && r > 2*g && r > 2*b {
				red++
			}
		}
	}
	ratio := float64(red) / float64(n)
	threshold := req.Params.Float("red_ratio_threshold", 0.05)

	details := map[string]any{
		"red_pixel_ratio":     ratio,
		"red_ratio_threshold": threshold,
	}
	if ratio > threshold {
		return failed(fmt.Sprintf("red-eye artifact detected: red pixel ratio %.3f exceeds %.3f", ratio, threshold), details), nil
	}
	return passed(details), nil
}
