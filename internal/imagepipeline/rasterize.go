package imagepipeline

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/prometheus/common/model"
)

// seriesColors cycles through a small fixed palette; no charting library
// appears anywhere in the retrieval pack (see DESIGN.md), so this
// rasterizer is hand-rolled on the standard image package.
var seriesColors = []color.RGBA{
	{230, 25, 75, 255},
	{60, 180, 75, 255},
	{0, 130, 200, 255},
	{245, 130, 48, 255},
	{145, 30, 180, 255},
}

const margin = 24

// RenderPNG draws up to maxSeries SampleStreams from matrix as a simple
// line chart and returns the encoded PNG bytes. An empty matrix returns
// (nil, nil): empty results are not an error.
func RenderPNG(matrix model.Matrix, maxSeries, width, height int) ([]byte, error) {
	if len(matrix) == 0 {
		return nil, nil
	}
	if len(matrix) > maxSeries {
		matrix = matrix[:maxSeries]
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	minV, maxV, minT, maxT := bounds(matrix)
	drawAxes(img, width, height)

	for i, stream := range matrix {
		c := seriesColors[i%len(seriesColors)]
		drawSeries(img, stream.Values, c, width, height, minV, maxV, minT, maxT)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func bounds(matrix model.Matrix) (minV, maxV float64, minT, maxT int64) {
	first := true
	for _, stream := range matrix {
		for _, p := range stream.Values {
			v := float64(p.Value)
			t := int64(p.Timestamp)
			if first {
				minV, maxV, minT, maxT = v, v, t, t
				first = false
				continue
			}
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
			if t < minT {
				minT = t
			}
			if t > maxT {
				maxT = t
			}
		}
	}
	if maxV == minV {
		maxV = minV + 1
	}
	if maxT == minT {
		maxT = minT + 1
	}
	return
}

func drawAxes(img *image.RGBA, width, height int) {
	axis := color.RGBA{180, 180, 180, 255}
	for x := margin; x < width-margin; x++ {
		img.Set(x, height-margin, axis)
	}
	for y := margin; y < height-margin; y++ {
		img.Set(margin, y, axis)
	}
}

func drawSeries(img *image.RGBA, values []model.SamplePair, c color.RGBA, width, height int, minV, maxV float64, minT, maxT int64) {
	plotW := float64(width - 2*margin)
	plotH := float64(height - 2*margin)

	var prevX, prevY int
	havePrev := false
	for _, p := range values {
		t := int64(p.Timestamp)
		v := float64(p.Value)

		fx := float64(t-minT) / float64(maxT-minT)
		fy := 1 - (v-minV)/(maxV-minV)

		x := margin + int(fx*plotW)
		y := margin + int(fy*plotH)

		if havePrev {
			drawLine(img, prevX, prevY, x, y, c)
		}
		prevX, prevY = x, y
		havePrev = true
	}
}

// drawLine is a minimal Bresenham rasterizer; good enough for a small
// trend sparkline, not a general-purpose renderer.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := abs(y1 - y0)
	sx, sy := 1, 1
	if x1 < x0 {
		sx = -1
	}
	if y1 < y0 {
		sy = -1
	}
	err := dx - dy
	x, y := x0, y0
	for {
		img.Set(x, y, c)
		if x == x1 && y == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x += sx
		}
		if e2 < dx {
			err += dx
			y += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
