package checks

import (
	"context"
	"fmt"

	"github.com/borzov/photo-validation-service/pkg/schema"
)

// FaceCountCheck verifies the image contains the required number of faces.
type FaceCountCheck struct{}

func (c *FaceCountCheck) Describe() schema.Descriptor {
	return schema.Descriptor{
		Name:        "face_count",
		DisplayName: "Face Count",
		Description: "Checks that the image contains the required number of faces",
		Category:    schema.CategoryFace,
		Version:     builtinVersion,
		Author:      builtinAuthor,
		Params: []schema.ParamSpec{
			{
				Name: "min_count", Kind: schema.ParamInt, Default: 1,
				Min: fptr(0), Max: fptr(10), Required: true,
				Description: "Minimum number of faces",
			},
			{
				Name: "max_count", Kind: schema.ParamInt, Default: 1,
				Min: fptr(1), Max: fptr(10), Required: true,
				Description: "Maximum number of faces",
			},
			{
				Name: "confidence_threshold", Kind: schema.ParamFloat, Default: 0.4,
				Min: fptr(0.1), Max: fptr(0.9),
				Description: "Minimum confidence for a detection to count",
			},
		},
		Dependencies:     []string{TagFaceRegions},
		EnabledByDefault: true,
	}
}

func (c *FaceCountCheck) Evaluate(ctx context.Context, req *Request) (*Result, error) {
	regions, err := req.FaceRegions(ctx)
	if err != nil {
		return nil, err
	}

	threshold := req.Params.Float("confidence_threshold", 0.4)
	minCount := req.Params.Int("min_count", 1)
	maxCount := req.Params.Int("max_count", 1)

	faces := make([]map[string]any, 0, len(regions))
	count := 0
	for i, region := range regions {
		if region.Confidence < threshold {
			continue
		}
		count++
		faces = append(faces, map[string]any{
			"id":         i + 1,
			"bbox":       []int{region.Rect.Min.X, region.Rect.Min.Y, region.Rect.Dx(), region.Rect.Dy()},
			"confidence": region.Confidence,
		})
	}

	details := map[string]any{
		"face_count":           count,
		"min_count_required":   minCount,
		"max_count_allowed":    maxCount,
		"confidence_threshold": threshold,
		"faces":                faces,
	}

	switch {
	case count < minCount:
		return failed(fmt.Sprintf("not enough faces: found %d, required minimum %d", count, minCount), details), nil
	case count > maxCount:
		return failed(fmt.Sprintf("too many faces: found %d, maximum %d", count, maxCount), details), nil
	}
	return passed(details), nil
}
