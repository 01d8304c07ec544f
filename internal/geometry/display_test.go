package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeDisplayRectLetterbox(t *testing.T) {
	calc := NewCalculator()

	// Широкое видео в квадратном контейнере: поля сверху и снизу
	rect := calc.ComputeDisplayRect(1920, 1080, 1000, 1000)
	assert.Equal(t, 1000.0, rect.Width)
	assert.InDelta(t, 562.5, rect.Height, 1e-9)
	assert.Equal(t, 0.0, rect.OffsetX)
	assert.InDelta(t, 218.75, rect.OffsetY, 1e-9)
}

func TestComputeDisplayRectPillarbox(t *testing.T) {
	calc := NewCalculator()

	// Вертикальное видео в широком контейнере: поля слева и справа
	rect := calc.ComputeDisplayRect(1080, 1920, 1600, 900)
	assert.Equal(t, 900.0, rect.Height)
	assert.InDelta(t, 506.25, rect.Width, 1e-9)
	assert.InDelta(t, 546.875, rect.OffsetX, 1e-9)
	assert.Equal(t, 0.0, rect.OffsetY)
}

func TestComputeDisplayRectDegenerate(t *testing.T) {
	calc := NewCalculator()
	rect := calc.ComputeDisplayRect(0, 0, 800, 600)
	assert.Equal(t, 800.0, rect.Width)
	assert.Equal(t, 600.0, rect.Height)
}

func TestNormalizePoint(t *testing.T) {
	calc := NewCalculator()
	rect := DisplayRect{OffsetX: 100, OffsetY: 50, Width: 800, Height: 450}

	x, y := calc.NormalizePoint(500, 275, rect)
	assert.InDelta(t, 0.5, x, 1e-9)
	assert.InDelta(t, 0.5, y, 1e-9)

	// Точки в полях приводятся к границам кадра
	x, y = calc.NormalizePoint(0, 0, rect)
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 0.0, y)
	x, y = calc.NormalizePoint(2000, 2000, rect)
	assert.Equal(t, 1.0, x)
	assert.Equal(t, 1.0, y)
}

func TestNormalizeRectPointOrderIrrelevant(t *testing.T) {
	calc := NewCalculator()
	rect := DisplayRect{Width: 1000, Height: 500}

	a := calc.NormalizeRect(100, 50, 300, 150, rect)
	b := calc.NormalizeRect(300, 150, 100, 50, rect)
	assert.Equal(t, a, b)
	assert.InDelta(t, 0.1, a.X, 1e-9)
	assert.InDelta(t, 0.2, a.Width, 1e-9)
	assert.InDelta(t, 0.2, a.Height, 1e-9)
}

func TestNormalizePixelRect(t *testing.T) {
	calc := NewCalculator()
	rect := DisplayRect{OffsetX: 0, OffsetY: 0, Width: 1000, Height: 1000}

	box := calc.NormalizePixelRect(PixelRect{X: 250, Y: 250, Width: 500, Height: 500}, rect)
	assert.InDelta(t, 0.25, box.X, 1e-9)
	assert.InDelta(t, 0.5, box.Width, 1e-9)
}

func TestTooSmallToDraw(t *testing.T) {
	calc := NewCalculator()
	rect := DisplayRect{Width: 1000, Height: 1000}

	tiny := calc.NormalizeRect(100, 100, 105, 105, rect)
	assert.True(t, TooSmallToDraw(tiny))

	ok := calc.NormalizeRect(100, 100, 200, 200, rect)
	assert.False(t, TooSmallToDraw(ok))
}

func TestTooSmallToResize(t *testing.T) {
	assert.True(t, TooSmallToResize(PixelRect{Width: 9, Height: 100}))
	assert.True(t, TooSmallToResize(PixelRect{Width: 100, Height: 9.5}))
	assert.False(t, TooSmallToResize(PixelRect{Width: 10, Height: 10}))
}
