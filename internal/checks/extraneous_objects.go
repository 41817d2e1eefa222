package checks

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/borzov/photo-validation-service/pkg/schema"
)

// ExtraneousObjectsCheck flags foreign objects in the frame by measuring
// edge activity outside the face region.
type ExtraneousObjectsCheck struct{}

func (c *ExtraneousObjectsCheck) Describe() schema.Descriptor {
	return schema.Descriptor{
		Name:        "extraneous_objects",
		DisplayName: "Extraneous Objects",
		Description: "Checks for foreign objects around the subject",
		Category:    schema.CategoryContent,
		Version:     builtinVersion,
		Author:      builtinAuthor,
		Params: []schema.ParamSpec{
			{
				Name: "min_contour_area_ratio", Kind: schema.ParamFloat, Default: 0.03,
				Min: fptr(0.001), Max: fptr(0.5),
				Description: "Edge activity outside the face above which an object is reported",
			},
			{
				Name: "edge_threshold", Kind: schema.ParamInt, Default: 40,
				Min: fptr(10), Max: fptr(100),
				Description: "Gradient magnitude that counts as an edge",
			},
		},
		Dependencies:     []string{TagFaceRegions},
		EnabledByDefault: true,
		MaxDuration:      2 * time.Second,
	}
}

func (c *ExtraneousObjectsCheck) Evaluate(ctx context.Context, req *Request) (*Result, error) {
	regions, err := req.FaceRegions(ctx)
	if err != nil {
		return nil, err
	}
	if len(regions) == 0 {
		return skipped("no face regions available"), nil
	}

	gray := grayscale(req.Image)
	b := gray.Bounds()
	face := scaleRect(regions[0].Rect, req.Image.Width, req.Image.Height, b)

	// Widen the face box so shoulders and hair do not count as objects.
	pad := face.Dy() / 3
	subject := image.Rect(face.Min.X-pad, face.Min.Y-pad, face.Max.X+pad, b.Max.Y).Intersect(b)

	edgeThreshold := float64(req.Params.Int("edge_threshold", 40))
	outside := []image.Rectangle{
		image.Rect(b.Min.X, b.Min.Y, subject.Min.X, b.Max.Y),
		image.Rect(subject.Max.X, b.Min.Y, b.Max.X, b.Max.Y),
		image.Rect(subject.Min.X, b.Min.Y, subject.Max.X, subject.Min.Y),
	}

	var worst float64
	for _, r := range outside {
		if f := edgeFraction(gray, r, edgeThreshold); f > worst {
			worst = f
		}
	}

	threshold := req.Params.Float("min_contour_area_ratio", 0.03)
	details := map[string]any{
		"edge_activity":          worst,
		"min_contour_area_ratio": threshold,
		"edge_threshold":         edgeThreshold,
	}
	if worst > threshold {
		return failed(fmt.Sprintf("extraneous objects detected: edge activity %.3f exceeds %.3f", worst, threshold), details), nil
	}
	return passed(details), nil
}
