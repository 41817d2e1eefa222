package checks

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borzov/photo-validation-service/pkg/schema"
)

// fakeShared computes every tag directly without caching.
type fakeShared struct{}

func (fakeShared) GetOrCompute(_ string, compute func() (any, error)) (any, error) {
	return compute()
}

// fakeDetector returns a fixed region set.
type fakeDetector struct {
	regions []FaceRegion
	err     error
}

func (d *fakeDetector) DetectFaces(_ context.Context, _ *Image) ([]FaceRegion, error) {
	return d.regions, d.err
}

func defaultParams(c Check) Params {
	desc := c.Describe()
	params := make(Params, len(desc.Params))
	for _, spec := range desc.Params {
		if spec.Default != nil {
			params[spec.Name] = spec.Default
		}
	}
	return params
}

func newRequest(img *Image, c Check, det FaceDetector) *Request {
	return &Request{
		Image:    img,
		Params:   defaultParams(c),
		Shared:   fakeShared{},
		Detector: det,
	}
}

// uniformImage is a flat single-color frame: zero contrast, zero sharpness.
func uniformImage(w, h int, c color.NRGBA) *Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return NewImage(img, w*h*4)
}

// noisyImage fills the frame with deterministic pseudo-random colors:
// sharp edges everywhere and a wide color palette.
func noisyImage(w, h int) *Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	seed := uint32(1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			seed = seed*1664525 + 1013904223
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(seed >> 24),
				G: uint8(seed >> 16),
				B: uint8(seed >> 8),
				A: 255,
			})
		}
	}
	return NewImage(img, w*h*4)
}

func centeredFace(img *Image) FaceRegion {
	w, h := img.Width, img.Height
	return FaceRegion{
		Rect:       image.Rect(w/4, h/4, 3*w/4, 3*h/4),
		Confidence: 0.9,
	}
}

func TestFaceCount(t *testing.T) {
	img := noisyImage(64, 64)
	check := &FaceCountCheck{}

	t.Run("one face passes", func(t *testing.T) {
		req := newRequest(img, check, &fakeDetector{regions: []FaceRegion{centeredFace(img)}})
		res, err := check.Evaluate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, schema.StatusPassed, res.Status)
	})

	t.Run("no faces fails", func(t *testing.T) {
		req := newRequest(img, check, &fakeDetector{})
		res, err := check.Evaluate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, schema.StatusFailed, res.Status)
		assert.NotEmpty(t, res.Reason)
	})

	t.Run("two faces fails", func(t *testing.T) {
		req := newRequest(img, check, &fakeDetector{regions: []FaceRegion{
			centeredFace(img),
			{Rect: image.Rect(0, 0, 10, 10), Confidence: 0.8},
		}})
		res, err := check.Evaluate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, schema.StatusFailed, res.Status)
	})

	t.Run("low confidence detections are ignored", func(t *testing.T) {
		req := newRequest(img, check, &fakeDetector{regions: []FaceRegion{
			centeredFace(img),
			{Rect: image.Rect(0, 0, 10, 10), Confidence: 0.2},
		}})
		res, err := check.Evaluate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, schema.StatusPassed, res.Status)
	})
}

func TestBlur(t *testing.T) {
	check := &BlurCheck{}

	t.Run("flat image fails", func(t *testing.T) {
		req := newRequest(uniformImage(64, 64, color.NRGBA{128, 128, 128, 255}), check, nil)
		res, err := check.Evaluate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, schema.StatusFailed, res.Status)
	})

	t.Run("noisy image passes", func(t *testing.T) {
		req := newRequest(noisyImage(64, 64), check, nil)
		res, err := check.Evaluate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, schema.StatusPassed, res.Status)
	})
}

func TestColorMode(t *testing.T) {
	check := &ColorModeCheck{}

	t.Run("gray image fails color requirement", func(t *testing.T) {
		req := newRequest(uniformImage(32, 32, color.NRGBA{100, 100, 100, 255}), check, nil)
		res, err := check.Evaluate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, schema.StatusFailed, res.Status)
		assert.Equal(t, "grayscale", res.Details["detected_mode"])
	})

	t.Run("colorful image passes", func(t *testing.T) {
		req := newRequest(noisyImage(32, 32), check, nil)
		res, err := check.Evaluate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, schema.StatusPassed, res.Status)
	})

	t.Run("any mode accepts grayscale", func(t *testing.T) {
		req := newRequest(uniformImage(32, 32, color.NRGBA{100, 100, 100, 255}), check, nil)
		req.Params["required_mode"] = "any"
		res, err := check.Evaluate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, schema.StatusPassed, res.Status)
	})
}

func TestLighting(t *testing.T) {
	check := &LightingCheck{}

	t.Run("dark image fails", func(t *testing.T) {
		req := newRequest(uniformImage(32, 32, color.NRGBA{5, 5, 5, 255}), check, nil)
		res, err := check.Evaluate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, schema.StatusFailed, res.Status)
	})

	t.Run("blown-out image fails", func(t *testing.T) {
		req := newRequest(uniformImage(32, 32, color.NRGBA{250, 250, 250, 255}), check, nil)
		res, err := check.Evaluate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, schema.StatusFailed, res.Status)
	})

	t.Run("noisy image passes", func(t *testing.T) {
		req := newRequest(noisyImage(32, 32), check, nil)
		res, err := check.Evaluate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, schema.StatusPassed, res.Status)
	})
}

func TestRealPhoto(t *testing.T) {
	check := &RealPhotoCheck{}

	t.Run("flat graphic fails", func(t *testing.T) {
		req := newRequest(uniformImage(64, 64, color.NRGBA{200, 30, 30, 255}), check, nil)
		res, err := check.Evaluate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, schema.StatusFailed, res.Status)
	})

	t.Run("diverse image passes", func(t *testing.T) {
		req := newRequest(noisyImage(64, 64), check, nil)
		res, err := check.Evaluate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, schema.StatusPassed, res.Status)
	})
}

func TestFaceDependentChecksSkipWithoutFace(t *testing.T) {
	img := noisyImage(64, 64)
	noFace := &fakeDetector{}

	for _, check := range []Check{
		&FacePoseCheck{}, &FacePositionCheck{}, &RedEyeCheck{},
		&ExtraneousObjectsCheck{}, &AccessoriesCheck{},
	} {
		desc := check.Describe()
		t.Run(desc.Name, func(t *testing.T) {
			req := newRequest(img, check, noFace)
			res, err := check.Evaluate(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, schema.StatusSkipped, res.Status)
			assert.NotEmpty(t, res.Reason)
		})
	}
}

func TestFacePosition(t *testing.T) {
	check := &FacePositionCheck{}
	img := noisyImage(100, 100)

	t.Run("centered face passes", func(t *testing.T) {
		req := newRequest(img, check, &fakeDetector{regions: []FaceRegion{centeredFace(img)}})
		res, err := check.Evaluate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, schema.StatusPassed, res.Status)
	})

	t.Run("tiny face fails", func(t *testing.T) {
		req := newRequest(img, check, &fakeDetector{regions: []FaceRegion{
			{Rect: image.Rect(45, 45, 55, 55), Confidence: 0.9},
		}})
		res, err := check.Evaluate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, schema.StatusFailed, res.Status)
	})

	t.Run("corner face fails", func(t *testing.T) {
		req := newRequest(img, check, &fakeDetector{regions: []FaceRegion{
			{Rect: image.Rect(0, 0, 30, 30), Confidence: 0.9},
		}})
		res, err := check.Evaluate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, schema.StatusFailed, res.Status)
	})
}

func TestDetectorErrorPropagates(t *testing.T) {
	img := noisyImage(32, 32)
	check := &FaceCountCheck{}
	req := newRequest(img, check, &fakeDetector{err: assert.AnError})

	_, err := check.Evaluate(context.Background(), req)
	require.Error(t, err)
}
