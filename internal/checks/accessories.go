package checks

import (
	"context"
	"image"
	"strings"

	"github.com/borzov/photo-validation-service/pkg/schema"
)

// AccessoriesCheck detects glasses and headwear. It is advisory: its
// findings request manual review but never reject a photo on their own.
type AccessoriesCheck struct{}

func (c *AccessoriesCheck) Describe() schema.Descriptor {
	return schema.Descriptor{
		Name:        "accessories",
		DisplayName: "Accessories",
		Description: "Detects glasses and headwear for manual review",
		Category:    schema.CategoryContent,
		Version:     builtinVersion,
		Author:      builtinAuthor,
		Params: []schema.ParamSpec{
			{
				Name: "glasses_detection", Kind: schema.ParamBool, Default: true,
				Description: "Whether to look for glasses",
			},
			{
				Name: "headwear_detection", Kind: schema.ParamBool, Default: true,
				Description: "Whether to look for headwear",
			},
		},
		Dependencies:     []string{TagFaceRegions},
		EnabledByDefault: true,
		Advisory:         true,
	}
}

func (c *AccessoriesCheck) Evaluate(ctx context.Context, req *Request) (*Result, error) {
	regions, err := req.FaceRegions(ctx)
	if err != nil {
		return nil, err
	}
	if len(regions) == 0 {
		return skipped("no face regions available"), nil
	}

	gray := grayscale(req.Image)
	face := scaleRect(regions[0].Rect, req.Image.Width, req.Image.Height, gray.Bounds())
	if face.Dx() < 8 || face.Dy() < 8 {
		return skipped("face region too small for accessory analysis"), nil
	}

	var found []string

	if req.Params.Bool("glasses_detection", true) {
		// Glasses frames produce a dense horizontal edge band at eye level.
		eyeBand := image.Rect(
			face.Min.X, face.Min.Y+face.Dy()/4,
			face.Max.X, face.Min.Y+face.Dy()/2,
		)
		if edgeFraction(gray, eyeBand, 35) > 0.25 {
			found = append(found, "glasses")
		}
	}

	if req.Params.Bool("headwear_detection", true) {
		// Headwear darkens and flattens the strip just above the face box.
		above := image.Rect(
			face.Min.X, face.Min.Y-face.Dy()/3,
			face.Max.X, face.Min.Y,
		).Intersect(gray.Bounds())
		if above.Dy() > 2 {
			mean, stddev := lumaStats(gray, above)
			faceMean, _ := lumaStats(gray, face)
			if stddev < 18 && mean < faceMean*0.7 {
				found = append(found, "headwear")
			}
		}
	}

	details := map[string]any{
		"accessories_found": found,
	}
	if len(found) > 0 {
		return needsReview("accessories detected: "+strings.Join(found, ", "), details), nil
	}
	return passed(details), nil
}
