package draw

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
)

// Canvas is a drawing buffer with 2x vertical resolution using half-block characters.
// Each sub-pixel holds an intensity in [0,1] that renders as a shade of gray.
// Supports scaling from logical coordinates to actual terminal pixels.
type Canvas struct {
	termWidth      int       // Actual terminal columns
	termHeight     int       // Actual terminal rows
	subPixelHeight int       // termHeight * 2
	pixels         []float64 // Flat slice: [y * termWidth + x] - intensity of the sub-pixel
	lit            []bool    // Cells drawn by the previous Render, erased when they go dark

	// Scaling from logical to pixel coordinates
	logicalWidth  float64
	logicalHeight float64
	scaleX        float64 // termWidth / logicalWidth
	scaleY        float64 // (termHeight*2) / logicalHeight

	// Offset for centering the render area when terminal is larger than max resolution.
	// These are 0-based terminal offsets (columns/rows to skip).
	offsetCol int
	offsetRow int

	highContrast bool

	// Reusable buffers to reduce allocations
	renderBuf       strings.Builder
	scaledBuf       []Point
	intersectionBuf []float64
	polygonBuf      []Point
}

// NewCanvas creates a canvas for the given terminal dimensions.
// No scaling is applied (1:1 mapping with sub-pixels).
func NewCanvas(width, height int) *Canvas {
	return NewScaledCanvas(width, height, float64(width), float64(height*2))
}

// NewScaledCanvas creates a canvas that scales from logical coordinates to terminal pixels.
// logicalWidth/Height define the coordinate space used by game objects.
// termWidth/Height are the actual terminal dimensions.
func NewScaledCanvas(termWidth, termHeight int, logicalWidth, logicalHeight float64) *Canvas {
	c := &Canvas{
		logicalWidth:  logicalWidth,
		logicalHeight: logicalHeight,
	}
	c.Resize(termWidth, termHeight)
	return c
}

// Resize updates the canvas for new terminal dimensions while keeping logical size.
func (c *Canvas) Resize(termWidth, termHeight int) {
	subPixelHeight := termHeight * 2
	if termWidth != c.termWidth || termHeight != c.termHeight || c.pixels == nil {
		c.pixels = make([]float64, subPixelHeight*termWidth)
		c.lit = make([]bool, termWidth*termHeight)
		c.termWidth = termWidth
		c.termHeight = termHeight
		c.subPixelHeight = subPixelHeight
	}
	c.rescale()
}

// SetLogicalSize changes the logical coordinate space.
func (c *Canvas) SetLogicalSize(width, height float64) {
	c.logicalWidth = width
	c.logicalHeight = height
	c.rescale()
}

func (c *Canvas) rescale() {
	c.scaleX, c.scaleY = 0, 0
	if c.logicalWidth > 0 {
		c.scaleX = float64(c.termWidth) / c.logicalWidth
	}
	if c.logicalHeight > 0 {
		c.scaleY = float64(c.subPixelHeight) / c.logicalHeight
	}
}

// SetHighContrast switches rendering to pure black and white.
func (c *Canvas) SetHighContrast(on bool) {
	c.highContrast = on
}

// SetOffset sets the column and row offset for centering the canvas.
// Offsets are 0-based terminal positions: the canvas starts at (offsetCol+1, offsetRow+1).
func (c *Canvas) SetOffset(col, row int) {
	c.offsetCol = col
	c.offsetRow = row
}

// OffsetCol returns the column offset used for centering.
func (c *Canvas) OffsetCol() int {
	return c.offsetCol
}

// OffsetRow returns the row offset used for centering.
func (c *Canvas) OffsetRow() int {
	return c.offsetRow
}

// Clear resets all pixels in the canvas.
func (c *Canvas) Clear() {
	clear(c.pixels)
}

// ForceRedraw forgets what the previous frame drew. Call it after the
// terminal itself has been cleared.
func (c *Canvas) ForceRedraw() {
	clear(c.lit)
}

// setPixel raises a pixel at terminal sub-pixel coordinates to at least v.
func (c *Canvas) setPixel(x, y int, v float64) {
	if x < 0 || x >= c.termWidth || y < 0 || y >= c.subPixelHeight {
		return
	}
	i := y*c.termWidth + x
	if v > c.pixels[i] {
		c.pixels[i] = v
	}
}

// At returns the intensity at terminal sub-pixel coordinates.
func (c *Canvas) At(x, y int) float64 {
	if x < 0 || x >= c.termWidth || y < 0 || y >= c.subPixelHeight {
		return 0
	}
	return c.pixels[y*c.termWidth+x]
}

// Set sets a pixel at logical coordinates (applies scaling).
func (c *Canvas) Set(x, y, intensity float64) {
	px := int(math.Round(x * c.scaleX))
	py := int(math.Round(y * c.scaleY))
	c.setPixel(px, py, intensity)
}

// DrawLine draws a line on the canvas using Bresenham's algorithm.
// Coordinates are in logical space and get scaled to pixels.
func (c *Canvas) DrawLine(p1, p2 Point, intensity float64) {
	x1 := int(math.Round(p1.X * c.scaleX))
	y1 := int(math.Round(p1.Y * c.scaleY))
	x2 := int(math.Round(p2.X * c.scaleX))
	y2 := int(math.Round(p2.Y * c.scaleY))

	dx := abs(x2 - x1)
	dy := abs(y2 - y1)

	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}

	err := dx - dy

	for {
		c.setPixel(x1, y1, intensity)

		if x1 == x2 && y1 == y2 {
			break
		}

		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// DrawPolygon draws a polygon on the canvas.
// If filled is true, the interior is filled using scanline algorithm.
func (c *Canvas) DrawPolygon(points []Point, intensity float64, filled bool) {
	if len(points) < 3 {
		return
	}

	if filled {
		c.fillPolygon(points, intensity)
	}

	n := len(points)
	for i := 0; i < n; i++ {
		c.DrawLine(points[i], points[(i+1)%n], intensity)
	}
}

// fillPolygon fills a polygon using scanline algorithm.
// Works in pixel space for proper scaling.
func (c *Canvas) fillPolygon(points []Point, intensity float64) {
	if cap(c.scaledBuf) < len(points) {
		c.scaledBuf = make([]Point, len(points))
	}
	scaled := c.scaledBuf[:len(points)]

	for i, p := range points {
		scaled[i] = Point{
			X: p.X * c.scaleX,
			Y: p.Y * c.scaleY,
		}
	}

	minY, maxY := scaled[0].Y, scaled[0].Y
	for _, p := range scaled {
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}

	yStart := max(int(math.Floor(minY)), 0)
	yEnd := min(int(math.Ceil(maxY)), c.subPixelHeight-1)

	for y := yStart; y <= yEnd; y++ {
		scanY := float64(y) + 0.5

		intersections := c.intersectionBuf[:0]

		n := len(scaled)
		for i := 0; i < n; i++ {
			p1 := scaled[i]
			p2 := scaled[(i+1)%n]

			if (p1.Y <= scanY && p2.Y > scanY) || (p2.Y <= scanY && p1.Y > scanY) {
				t := (scanY - p1.Y) / (p2.Y - p1.Y)
				x := p1.X + t*(p2.X-p1.X)
				intersections = append(intersections, x)
			}
		}

		// Store back in case it grew
		c.intersectionBuf = intersections

		sort.Float64s(intersections)

		for i := 0; i+1 < len(intersections); i += 2 {
			xStart := int(math.Ceil(intersections[i]))
			xEnd := int(math.Floor(intersections[i+1]))
			for x := xStart; x <= xEnd; x++ {
				c.setPixel(x, y, intensity)
			}
		}
	}
}

// pixelBounds returns the sub-pixel box covering a logical circle, clipped to the canvas.
func (c *Canvas) pixelBounds(center Point, radius float64) (x0, y0, x1, y1 int) {
	x0 = max(int(math.Floor((center.X-radius)*c.scaleX)), 0)
	x1 = min(int(math.Ceil((center.X+radius)*c.scaleX)), c.termWidth-1)
	y0 = max(int(math.Floor((center.Y-radius)*c.scaleY)), 0)
	y1 = min(int(math.Ceil((center.Y+radius)*c.scaleY)), c.subPixelHeight-1)
	return x0, y0, x1, y1
}

// DrawDisc fills a circle given in logical coordinates. Sub-pixels are tested at their centers.
func (c *Canvas) DrawDisc(center Point, radius, intensity float64) {
	if radius <= 0 || c.scaleX == 0 || c.scaleY == 0 {
		return
	}
	x0, y0, x1, y1 := c.pixelBounds(center, radius)
	r2 := radius * radius
	for y := y0; y <= y1; y++ {
		ly := (float64(y)+0.5)/c.scaleY - center.Y
		for x := x0; x <= x1; x++ {
			lx := (float64(x)+0.5)/c.scaleX - center.X
			if lx*lx+ly*ly <= r2 {
				c.setPixel(x, y, intensity)
			}
		}
	}
}

// DrawRing outlines a circle given in logical coordinates, one sub-pixel thick.
func (c *Canvas) DrawRing(center Point, radius, intensity float64) {
	if radius <= 0 || c.scaleX == 0 || c.scaleY == 0 {
		return
	}
	half := math.Max(1/c.scaleX, 1/c.scaleY) / 2
	x0, y0, x1, y1 := c.pixelBounds(center, radius+half)
	for y := y0; y <= y1; y++ {
		ly := (float64(y)+0.5)/c.scaleY - center.Y
		for x := x0; x <= x1; x++ {
			lx := (float64(x)+0.5)/c.scaleX - center.X
			if math.Abs(math.Hypot(lx, ly)-radius) <= half {
				c.setPixel(x, y, intensity)
			}
		}
	}
}

// maxChunkSize is the maximum bytes to write at once for optimal network flow.
// 1500 bytes matches typical MTU size for smooth SSH/network transmission.
const maxChunkSize = 1400

// level quantizes an intensity for output. High contrast collapses it to on/off.
func (c *Canvas) level(v float64) float64 {
	if !c.highContrast {
		return v
	}
	if v >= 0.25 {
		return 1
	}
	return 0
}

// Render outputs the canvas to the writer using half-block characters.
// The upper sub-pixel is the foreground gray and the lower one the background gray.
func (c *Canvas) Render(w io.Writer) {
	c.renderBuf.Reset()
	c.renderBuf.Grow(c.termWidth * c.termHeight * 12)

	lastFg, lastBg := -1, -1
	for row := 0; row < c.termHeight; row++ {
		topOffset := row * 2 * c.termWidth
		bottomOffset := topOffset + c.termWidth

		for col := 0; col < c.termWidth; col++ {
			top := c.level(c.pixels[topOffset+col])
			bottom := c.level(c.pixels[bottomOffset+col])
			cell := row*c.termWidth + col
			if top <= 0 && bottom <= 0 {
				if c.lit[cell] {
					// Went dark since the last frame
					fmt.Fprintf(&c.renderBuf, "\033[%d;%dH\033[0m ", row+1+c.offsetRow, col+1+c.offsetCol)
					lastFg, lastBg = -1, -1
					c.lit[cell] = false
				}
				continue
			}
			c.lit[cell] = true

			fg, bg := grayRamp(top), grayRamp(bottom)
			fmt.Fprintf(&c.renderBuf, "\033[%d;%dH", row+1+c.offsetRow, col+1+c.offsetCol)
			if fg == bg {
				if fg != lastFg {
					fmt.Fprintf(&c.renderBuf, "\033[38;5;%dm", fg)
					lastFg = fg
				}
				c.renderBuf.WriteRune(BlockFull)
				continue
			}
			if fg != lastFg || bg != lastBg {
				fmt.Fprintf(&c.renderBuf, "\033[38;5;%d;48;5;%dm", fg, bg)
				lastFg, lastBg = fg, bg
			}
			c.renderBuf.WriteRune(BlockUpperHalf)
		}
	}
	if lastFg >= 0 || lastBg >= 0 {
		c.renderBuf.WriteString("\033[0m")
	}
	if c.renderBuf.Len() == 0 {
		return
	}

	// Write output in chunks for optimal network flow
	data := c.renderBuf.String()
	for len(data) > 0 {
		chunk := data
		if len(chunk) > maxChunkSize {
			chunk = data[:maxChunkSize]
		}
		io.WriteString(w, chunk)
		data = data[len(chunk):]
	}
}

// RenderBorder draws a box border around the canvas area when the terminal
// exceeds the max render resolution on either axis.
func (c *Canvas) RenderBorder(w io.Writer) {
	hasH := c.offsetCol >= 1 // Room for left/right vertical bars
	hasV := c.offsetRow >= 1 // Room for top/bottom horizontal bars

	// Border positions (1-based terminal coordinates)
	left := c.offsetCol
	right := c.offsetCol + c.termWidth + 1
	top := c.offsetRow
	bottom := c.offsetRow + c.termHeight + 1

	var buf strings.Builder
	buf.Grow((c.termWidth+2)*2 + c.termHeight*2*12)

	if hasV {
		line := strings.Repeat("─", c.termWidth)
		if hasH {
			fmt.Fprintf(&buf, "\033[%d;%dH┌%s┐", top, left, line)
			fmt.Fprintf(&buf, "\033[%d;%dH└%s┘", bottom, left, line)
		} else {
			fmt.Fprintf(&buf, "\033[%d;%dH%s", top, c.offsetCol+1, line)
			fmt.Fprintf(&buf, "\033[%d;%dH%s", bottom, c.offsetCol+1, line)
		}
	}

	if hasH {
		startRow := top + 1
		endRow := bottom
		if !hasV {
			startRow = c.offsetRow + 1
			endRow = c.offsetRow + c.termHeight + 1
		}
		for row := startRow; row < endRow; row++ {
			fmt.Fprintf(&buf, "\033[%d;%dH│\033[%d;%dH│", row, left, row, right)
		}
	}

	io.WriteString(w, buf.String())
}

// LogicalWidth returns the logical width (target resolution).
func (c *Canvas) LogicalWidth() float64 {
	return c.logicalWidth
}

// LogicalHeight returns the logical height (target resolution).
func (c *Canvas) LogicalHeight() float64 {
	return c.logicalHeight
}

// TerminalWidth returns the actual terminal column count.
func (c *Canvas) TerminalWidth() int {
	return c.termWidth
}

// TerminalHeight returns the actual terminal row count.
func (c *Canvas) TerminalHeight() int {
	return c.termHeight
}

// LogicalToTerminal converts logical coordinates to 1-based canvas position (col, row).
// This is useful for placing text overlays at positions matching canvas-drawn objects.
func (c *Canvas) LogicalToTerminal(x, y float64) (col, row int) {
	px := int(math.Round(x * c.scaleX))
	py := int(math.Round(y * c.scaleY))
	return px + 1, py/2 + 1
}

// TerminalToLogical converts a 0-based terminal cell, as reported by the mouse,
// to the logical coordinates of the cell's center. ok is false outside the canvas.
func (c *Canvas) TerminalToLogical(col, row int) (p Point, ok bool) {
	col -= c.offsetCol
	row -= c.offsetRow
	if col < 0 || col >= c.termWidth || row < 0 || row >= c.termHeight || c.scaleX == 0 || c.scaleY == 0 {
		return Point{}, false
	}
	return Point{
		X: (float64(col) + 0.5) / c.scaleX,
		Y: (float64(row)*2 + 1) / c.scaleY,
	}, true
}

// BorrowPoints returns a reusable slice of Points with the given length.
// The returned slice is only valid until the next call to BorrowPoints.
func (c *Canvas) BorrowPoints(n int) []Point {
	if cap(c.polygonBuf) < n {
		c.polygonBuf = make([]Point, n)
	}
	return c.polygonBuf[:n]
}
