package checks

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// analysisMaxDim bounds the working size for pixel analysis. Checks operate
// on a downsampled copy so their cost is independent of upload resolution.
const analysisMaxDim = 512

// grayscale returns a downsampled grayscale copy of the image.
func grayscale(img *Image) *image.NRGBA {
	fitted := imaging.Fit(img.Pixels, analysisMaxDim, analysisMaxDim, imaging.Box)
	return imaging.Grayscale(fitted)
}

// downsample returns a bounded-size NRGBA copy preserving color.
func downsample(img *Image) *image.NRGBA {
	return imaging.Fit(img.Pixels, analysisMaxDim, analysisMaxDim, imaging.Box)
}

// lumaAt reads the luminance channel of a grayscale NRGBA image.
func lumaAt(gray *image.NRGBA, x, y int) float64 {
	i := gray.PixOffset(gray.Bounds().Min.X+x, gray.Bounds().Min.Y+y)
	return float64(gray.Pix[i])
}

// lumaStats computes mean and standard deviation of luminance over a rect.
// An empty rect yields zeros.
func lumaStats(gray *image.NRGBA, rect image.Rectangle) (mean, stddev float64) {
	rect = rect.Intersect(gray.Bounds())
	n := rect.Dx() * rect.Dy()
	if n == 0 {
		return 0, 0
	}

	var sum, sumSq float64
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			v := float64(gray.Pix[gray.PixOffset(x, y)])
			sum += v
			sumSq += v * v
		}
	}
	mean = sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

// lumaHistogram builds a 256-bin luminance histogram over the whole image.
func lumaHistogram(gray *image.NRGBA) (hist [256]int, total int) {
	b := gray.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[gray.Pix[gray.PixOffset(x, y)]]++
			total++
		}
	}
	return hist, total
}

// laplacianVariance measures focus as the variance of a 4-neighbour Laplacian
// response over the grayscale image. Low values indicate blur.
func laplacianVariance(gray *image.NRGBA) float64 {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	var sum, sumSq float64
	n := 0
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			center := lumaAt(gray, x, y)
			lap := 4*center - lumaAt(gray, x-1, y) - lumaAt(gray, x+1, y) -
				lumaAt(gray, x, y-1) - lumaAt(gray, x, y+1)
			sum += lap
			sumSq += lap * lap
			n++
		}
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return variance
}

// meanSaturation computes the mean HSV saturation (0..255 scale) over a
// color image. Grayscale photographs score near zero.
func meanSaturation(rgba *image.NRGBA) float64 {
	b := rgba.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0
	}

	var sum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := rgba.PixOffset(x, y)
			r := float64(rgba.Pix[i])
			g := float64(rgba.Pix[i+1])
			bl := float64(rgba.Pix[i+2])
			maxC := math.Max(r, math.Max(g, bl))
			minC := math.Min(r, math.Min(g, bl))
			if maxC > 0 {
				sum += (maxC - minC) / maxC * 255
			}
		}
	}
	return sum / float64(n)
}

// edgeFraction returns the share of pixels whose horizontal or vertical
// gradient magnitude exceeds the threshold.
func edgeFraction(gray *image.NRGBA, rect image.Rectangle, threshold float64) float64 {
	rect = rect.Intersect(gray.Bounds())
	w, h := rect.Dx(), rect.Dy()
	if w < 2 || h < 2 {
		return 0
	}

	edges, n := 0, 0
	for y := rect.Min.Y; y < rect.Max.Y-1; y++ {
		for x := rect.Min.X; x < rect.Max.X-1; x++ {
			c := float64(gray.Pix[gray.PixOffset(x, y)])
			dx := math.Abs(c - float64(gray.Pix[gray.PixOffset(x+1, y)]))
			dy := math.Abs(c - float64(gray.Pix[gray.PixOffset(x, y+1)]))
			if dx > threshold || dy > threshold {
				edges++
			}
			n++
		}
	}
	return float64(edges) / float64(n)
}

// colorDiversity counts distinct coarse colors (5 bits per channel) and
// returns the count normalized by sampled pixels. Synthetic graphics tend to
// use far fewer distinct colors than real photographs.
func colorDiversity(rgba *image.NRGBA) float64 {
	b := rgba.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0
	}

	seen := make(map[uint16]struct{})
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := rgba.PixOffset(x, y)
			key := uint16(rgba.Pix[i]>>3)<<10 | uint16(rgba.Pix[i+1]>>3)<<5 | uint16(rgba.Pix[i+2]>>3)
			seen[key] = struct{}{}
		}
	}
	return float64(len(seen)) / float64(n)
}

// scaleRect maps a rectangle expressed in source-image coordinates onto the
// downsampled analysis image.
func scaleRect(r image.Rectangle, srcW, srcH int, dst image.Rectangle) image.Rectangle {
	if srcW == 0 || srcH == 0 {
		return image.Rectangle{}
	}
	sx := float64(dst.Dx()) / float64(srcW)
	sy := float64(dst.Dy()) / float64(srcH)
	return image.Rect(
		dst.Min.X+int(float64(r.Min.X)*sx),
		dst.Min.Y+int(float64(r.Min.Y)*sy),
		dst.Min.X+int(float64(r.Max.X)*sx),
		dst.Min.Y+int(float64(r.Max.Y)*sy),
	)
}
