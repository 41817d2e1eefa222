package checks

import (
	"context"
	"fmt"
	"math"

	"github.com/borzov/photo-validation-service/pkg/schema"
)

// FacePositionCheck verifies the face occupies a reasonable share of the
// frame and sits close to the center.
type FacePositionCheck struct{}

func (c *FacePositionCheck) Describe() schema.Descriptor {
	return schema.Descriptor{
		Name:        "face_position",
		DisplayName: "Face Position",
		Description: "Checks face size and placement within the frame",
		Category:    schema.CategoryFace,
		Version:     builtinVersion,
		Author:      builtinAuthor,
		Params: []schema.ParamSpec{
			{
				Name: "min_area_ratio", Kind: schema.ParamFloat, Default: 0.05,
				Min: fptr(0.01), Max: fptr(0.5),
				Description: "Minimum face area as a fraction of the image",
			},
			{
				Name: "max_area_ratio", Kind: schema.ParamFloat, Default: 0.8,
				Min: fptr(0.5), Max: fptr(1.0),
				Description: "Maximum face area as a fraction of the image",
			},
			{
				Name: "max_center_offset", Kind: schema.ParamFloat, Default: 0.25,
				Min: fptr(0.05), Max: fptr(0.5),
				Description: "Maximum face-center offset from image center, as a fraction of the smaller dimension",
			},
		},
		Dependencies:     []string{TagFaceRegions},
		EnabledByDefault: true,
	}
}

func (c *FacePositionCheck) Evaluate(ctx context.Context, req *Request) (*Result, error) {
	regions, err := req.FaceRegions(ctx)
	if err != nil {
		return nil, err
	}
	if len(regions) == 0 {
		return skipped("no face regions available"), nil
	}

	face := regions[0].Rect
	imgArea := float64(req.Image.Width * req.Image.Height)
	if imgArea == 0 {
		return skipped("image has no pixels"), nil
	}

	areaRatio := float64(face.Dx()*face.Dy()) / imgArea

	faceCX := float64(face.Min.X+face.Max.X) / 2
	faceCY := float64(face.Min.Y+face.Max.Y) / 2
	imgCX := float64(req.Image.Width) / 2
	imgCY := float64(req.Image.Height) / 2
	minDim := math.Min(float64(req.Image.Width), float64(req.Image.Height))
	offset := math.Hypot(faceCX-imgCX, faceCY-imgCY) / minDim

	minArea := req.Params.Float("min_area_ratio", 0.05)
	maxArea := req.Params.Float("max_area_ratio", 0.8)
	maxOffset := req.Params.Float("max_center_offset", 0.25)

	details := map[string]any{
		"area_ratio":        areaRatio,
		"center_offset":     offset,
		"min_area_ratio":    minArea,
		"max_area_ratio":    maxArea,
		"max_center_offset": maxOffset,
	}

	switch {
	case areaRatio < minArea:
		return failed(fmt.Sprintf("face too small: occupies %.1f%% of the frame, minimum %.1f%%", areaRatio*100, minArea*100), details), nil
	case areaRatio > maxArea:
		return failed(fmt.Sprintf("face too large: occupies %.1f%% of the frame, maximum %.1f%%", areaRatio*100, maxArea*100), details), nil
	case offset > maxOffset:
		return failed(fmt.Sprintf("face off-center: offset %.2f exceeds %.2f", offset, maxOffset), details), nil
	}
	return passed(details), nil
}
