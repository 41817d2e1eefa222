package checks

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/borzov/photo-validation-service/pkg/schema"
)

// FacePoseCheck rejects faces turned or tilted beyond the configured angles.
// Angles are estimated from luminance asymmetry of the face region.
type FacePoseCheck struct{}

func (c *FacePoseCheck) Describe() schema.Descriptor {
	return schema.Descriptor{
		Name:        "face_pose",
		DisplayName: "Face Pose",
		Description: "Checks that the face looks straight at the camera",
		Category:    schema.CategoryFace,
		Version:     builtinVersion,
		Author:      builtinAuthor,
		Params: []schema.ParamSpec{
			{
				Name: "max_yaw", Kind: schema.ParamFloat, Default: 25.0,
				Min: fptr(5), Max: fptr(90),
				Description: "Maximum allowed yaw angle (degrees)",
			},
			{
				Name: "max_pitch", Kind: schema.ParamFloat, Default: 25.0,
				Min: fptr(5), Max: fptr(90),
				Description: "Maximum allowed pitch angle (degrees)",
			},
			{
				Name: "max_roll", Kind: schema.ParamFloat, Default: 25.0,
				Min: fptr(5), Max: fptr(90),
				Description: "Maximum allowed roll angle (degrees)",
			},
		},
		Dependencies:     []string{TagFaceRegions},
		EnabledByDefault: true,
	}
}

func (c *FacePoseCheck) Evaluate(ctx context.Context, req *Request) (*Result, error) {
	regions, err := req.FaceRegions(ctx)
	if err != nil {
		return nil, err
	}
	if len(regions) == 0 {
		return skipped("no face regions available"), nil
	}

	gray := grayscale(req.Image)
	face := scaleRect(regions[0].Rect, req.Image.Width, req.Image.Height, gray.Bounds())

	yaw := asymmetryDegrees(gray, face, true)
	pitch := asymmetryDegrees(gray, face, false)
	roll := rollDegrees(face)

	details := map[string]any{
		"yaw":       yaw,
		"pitch":     pitch,
		"roll":      roll,
		"max_yaw":   req.Params.Float("max_yaw", 25),
		"max_pitch": req.Params.Float("max_pitch", 25),
		"max_roll":  req.Params.Float("max_roll", 25),
	}

	switch {
	case yaw > req.Params.Float("max_yaw", 25):
		return failed(fmt.Sprintf("face turned sideways: yaw %.1f° exceeds %.1f°", yaw, req.Params.Float("max_yaw", 25)), details), nil
	case pitch > req.Params.Float("max_pitch", 25):
		return failed(fmt.Sprintf("face tilted up/down: pitch %.1f° exceeds %.1f°", pitch, req.Params.Float("max_pitch", 25)), details), nil
	case roll > req.Params.Float("max_roll", 25):
		return failed(fmt.Sprintf("face tilted: roll %.1f° exceeds %.1f°", roll, req.Params.Float("max_roll", 25)), details), nil
	}
	return passed(details), nil
}

// asymmetryDegrees maps the luminance imbalance between the two halves of
// the face box onto a rough angle estimate. horizontal=true compares left
// and right (yaw), false compares top and bottom (pitch).
func asymmetryDegrees(gray *image.NRGBA, face image.Rectangle, horizontal bool) float64 {
	var a, b image.Rectangle
	if horizontal {
		mid := (face.Min.X + face.Max.X) / 2
		a = image.Rect(face.Min.X, face.Min.Y, mid, face.Max.Y)
		b = image.Rect(mid, face.Min.Y, face.Max.X, face.Max.Y)
	} else {
		mid := (face.Min.Y + face.Max.Y) / 2
		a = image.Rect(face.Min.X, face.Min.Y, face.Max.X, mid)
		b = image.Rect(face.Min.X, mid, face.Max.X, face.Max.Y)
	}

	meanA, _ := lumaStats(gray, a)
	meanB, _ := lumaStats(gray, b)
	total := meanA + meanB
	if total == 0 {
		return 0
	}
	return math.Abs(meanA-meanB) / total * 180
}

// rollDegrees estimates roll from how far the face box deviates from the
// expected portrait aspect ratio.
func rollDegrees(face image.Rectangle) float64 {
	w, h := float64(face.Dx()), float64(face.Dy())
	if w == 0 || h == 0 {
		return 0
	}
	ratio := w / h
	const expected = 0.78
	return math.Abs(ratio-expected) / expected * 45
}
