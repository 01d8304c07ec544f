package geometry

import (
	"math"

	"video-annotator-go/pkg/models"
)

// MinNormalizedSize минимальный допустимый нормализованный размер
// нарисованного бокса (1% от размера кадра)
const MinNormalizedSize = 0.01

// MinPixelSize минимальный размер бокса в пикселях при изменении размера
const MinPixelSize = 10.0

// DisplayRect видимый прямоугольник видео внутри контейнера.
// Видео вписывается в контейнер с сохранением пропорций, поэтому по
// горизонтали или вертикали появляются поля (letterbox/pillarbox).
type DisplayRect struct {
	OffsetX float64 // Смещение видео от левого края контейнера
	OffsetY float64 // Смещение видео от верхнего края контейнера
	Width   float64 // Ширина видимой области видео в пикселях
	Height  float64 // Высота видимой области видео в пикселях
}

// Calculator выполняет преобразования между пиксельными координатами
// контейнера и нормализованными координатами кадра
type Calculator struct{}

// NewCalculator создает новый калькулятор
func NewCalculator() *Calculator {
	return &Calculator{}
}

// ComputeDisplayRect вычисляет видимый прямоугольник видео в контейнере.
// Пересчитывается при каждом изменении размеров контейнера или видео:
// сравнение пропорций источника и контейнера дает смещения полей.
func (c *Calculator) ComputeDisplayRect(videoWidth, videoHeight int, containerWidth, containerHeight float64) DisplayRect {
	if videoWidth <= 0 || videoHeight <= 0 || containerWidth <= 0 || containerHeight <= 0 {
		return DisplayRect{Width: containerWidth, Height: containerHeight}
	}

	videoAspect := float64(videoWidth) / float64(videoHeight)
	containerAspect := containerWidth / containerHeight

	rect := DisplayRect{}
	if videoAspect > containerAspect {
		// Видео шире контейнера: поля сверху и снизу (letterbox)
		rect.Width = containerWidth
		rect.Height = containerWidth / videoAspect
		rect.OffsetY = (containerHeight - rect.Height) / 2
	} else {
		// Видео уже контейнера: поля слева и справа (pillarbox)
		rect.Height = containerHeight
		rect.Width = containerHeight * videoAspect
		rect.OffsetX = (containerWidth - rect.Width) / 2
	}
	return rect
}

// NormalizePoint переводит пиксельную точку контейнера в нормализованные
// координаты кадра [0,1]
func (c *Calculator) NormalizePoint(px, py float64, rect DisplayRect) (float64, float64) {
	if rect.Width <= 0 || rect.Height <= 0 {
		return 0, 0
	}
	x := (px - rect.OffsetX) / rect.Width
	y := (py - rect.OffsetY) / rect.Height
	return clamp01(x), clamp01(y)
}

// NormalizeRect строит нормализованный бокс по двум пиксельным точкам
// (угол начала и конца жеста); порядок точек не важен
func (c *Calculator) NormalizeRect(startX, startY, endX, endY float64, rect DisplayRect) models.BoundingBox {
	x1, y1 := c.NormalizePoint(math.Min(startX, endX), math.Min(startY, endY), rect)
	x2, y2 := c.NormalizePoint(math.Max(startX, endX), math.Max(startY, endY), rect)
	box := models.BoundingBox{
		X:      x1,
		Y:      y1,
		Width:  x2 - x1,
		Height: y2 - y1,
	}
	box.Clamp()
	return box
}

// PixelRect прямоугольник в пиксельных координатах контейнера
type PixelRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NormalizePixelRect переводит пиксельный прямоугольник в нормализованные
// координаты кадра с приведением к границам
func (c *Calculator) NormalizePixelRect(pr PixelRect, rect DisplayRect) models.BoundingBox {
	return c.NormalizeRect(pr.X, pr.Y, pr.X+pr.Width, pr.Y+pr.Height, rect)
}

// TooSmallToDraw проверяет минимальный нормализованный размер нового бокса
func TooSmallToDraw(box models.BoundingBox) bool {
	return box.Width < MinNormalizedSize || box.Height < MinNormalizedSize
}

// TooSmallToResize проверяет минимальный пиксельный размер при трансформации
func TooSmallToResize(pr PixelRect) bool {
	return pr.Width < MinPixelSize || pr.Height < MinPixelSize
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
