package checks

import (
	"context"
	"image"
)

// HeuristicDetector is a dependency-free FaceDetector based on skin-tone
// segmentation. It exists so the engine runs standalone; deployments plug a
// real detector in through the FaceDetector interface.
type HeuristicDetector struct {
	// MinAreaRatio filters out blobs too small to be a face.
	MinAreaRatio float64
}

// NewHeuristicDetector returns a detector with sane defaults.
func NewHeuristicDetector() *HeuristicDetector {
	return &HeuristicDetector{MinAreaRatio: 0.01}
}

// DetectFaces finds at most one face candidate as the bounding box of
// skin-tone pixels. Confidence is the skin density inside the box.
func (d *HeuristicDetector) DetectFaces(ctx context.Context, img *Image) ([]FaceRegion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rgba := downsample(img)
	b := rgba.Bounds()

	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X, b.Min.Y
	skin := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := rgba.PixOffset(x, y)
			if isSkinTone(rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2]) {
				skin++
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}

	total := b.Dx() * b.Dy()
	if total == 0 || skin == 0 {
		return nil, nil
	}

	box := image.Rect(minX, minY, maxX+1, maxY+1)
	boxArea := box.Dx() * box.Dy()
	if float64(boxArea)/float64(total) < d.MinAreaRatio {
		return nil, nil
	}

	confidence := float64(skin) / float64(boxArea)
	if confidence > 1 {
		confidence = 1
	}

	// Map back to source-image coordinates.
	sx := float64(img.Width) / float64(b.Dx())
	sy := float64(img.Height) / float64(b.Dy())
	rect := image.Rect(
		int(float64(box.Min.X)*sx), int(float64(box.Min.Y)*sy),
		int(float64(box.Max.X)*sx), int(float64(box.Max.Y)*sy),
	)

	return []FaceRegion{{Rect: rect, Confidence: confidence}}, nil
}

// isSkinTone classifies a pixel with a broad RGB skin heuristic.
func isSkinTone(r, g, b uint8) bool {
	rf, gf, bf := int(r), int(g), int(b)
	if rf < 60 || gf < 30 || bf < 15 {
		return false
	}
	maxC := max(rf, max(gf, bf))
	minC := min(rf, min(gf, bf))
	return rf > gf && rf > bf && maxC-minC > 12 && abs(rf-gf) > 10
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
