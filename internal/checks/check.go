package checks

import (
	"context"
	"image"

	"github.com/borzov/photo-validation-service/pkg/schema"
)

// Capability tags for shared-context dependencies declared by checks.
const (
	TagFaceRegions = "face-regions"
)

// Image is the decoded, bounds-checked raster handed to the engine by the
// image source collaborator. The engine never parses container formats.
type Image struct {
	Pixels    image.Image
	Width     int
	Height    int
	SizeBytes int
}

// NewImage wraps a decoded raster with its basic metadata.
func NewImage(img image.Image, sizeBytes int) *Image {
	b := img.Bounds()
	return &Image{
		Pixels:    img,
		Width:     b.Dx(),
		Height:    b.Dy(),
		SizeBytes: sizeBytes,
	}
}

// Params holds the resolved parameter values for one check invocation:
// configured values overlaid on descriptor defaults.
type Params map[string]any

// Int returns the named parameter as int, or def when absent.
func (p Params) Int(name string, def int) int {
	if v, ok := p[name]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return def
}

// Float returns the named parameter as float64, or def when absent.
func (p Params) Float(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case int64:
			return float64(n)
		}
	}
	return def
}

// Bool returns the named parameter as bool, or def when absent.
func (p Params) Bool(name string, def bool) bool {
	if v, ok := p[name].(bool); ok {
		return v
	}
	return def
}

// String returns the named parameter as string, or def when absent.
func (p Params) String(name string, def string) string {
	if v, ok := p[name].(string); ok {
		return v
	}
	return def
}

// SharedValues is the per-run scratch space a check reads its declared
// dependencies through. The first caller for a tag computes the value;
// concurrent callers block and receive the identical result, including a
// cached failure.
type SharedValues interface {
	GetOrCompute(tag string, compute func() (any, error)) (any, error)
}

// FaceRegion is one detected face with its bounding box and confidence.
type FaceRegion struct {
	Rect       image.Rectangle `json:"rect"`
	Confidence float64         `json:"confidence"`
}

// FaceDetector supplies detected face regions. The production detector is an
// external collaborator; a heuristic default is provided for standalone use.
type FaceDetector interface {
	DetectFaces(ctx context.Context, img *Image) ([]FaceRegion, error)
}

// Request carries everything a check needs for one evaluation.
type Request struct {
	Image    *Image
	Params   Params
	Shared   SharedValues
	Detector FaceDetector
}

// FaceRegions resolves the shared face-region dependency, computing it at
// most once per validation run regardless of how many checks consume it.
func (r *Request) FaceRegions(ctx context.Context) ([]FaceRegion, error) {
	v, err := r.Shared.GetOrCompute(TagFaceRegions, func() (any, error) {
		return r.Detector.DetectFaces(ctx, r.Image)
	})
	if err != nil {
		return nil, err
	}
	regions, _ := v.([]FaceRegion)
	return regions, nil
}

// Result is what a check evaluation produces. The runner wraps it into an
// Outcome with the check name and measured duration.
type Result struct {
	Status  schema.CheckStatus
	Reason  string
	Details map[string]any
}

// Check is one independent, named unit of image analysis.
type Check interface {
	// Describe returns the static descriptor. Must be cheap and side-effect free.
	Describe() schema.Descriptor

	// Evaluate runs the analysis. A returned error is an unexpected execution
	// failure and becomes an ERROR outcome; deliberate negative results are
	// expressed through Result.Status.
	Evaluate(ctx context.Context, req *Request) (*Result, error)
}

// Factory creates a fresh check instance for one evaluation.
type Factory func() Check

func passed(details map[string]any) *Result {
	return &Result{Status: schema.StatusPassed, Details: details}
}

func failed(reason string, details map[string]any) *Result {
	return &Result{Status: schema.StatusFailed, Reason: reason, Details: details}
}

func needsReview(reason string, details map[string]any) *Result {
	return &Result{Status: schema.StatusNeedsReview, Reason: reason, Details: details}
}

func skipped(reason string) *Result {
	return &Result{Status: schema.StatusSkipped, Reason: reason}
}
