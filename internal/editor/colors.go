package editor

import (
	"video-annotator-go/pkg/models"
)

// Цвета рамок боксов для фронтенда
const (
	ColorHuman        = "#3b82f6" // Человеческие боксы всегда одним акцентным цветом
	ColorHighConf     = "#22c55e" // Уверенность > 0.9
	ColorMediumConf   = "#eab308" // Уверенность > 0.7
	ColorLowConf      = "#ef4444" // Остальные
	highConfThreshold = 0.9
	medConfThreshold  = 0.7
)

// BoxColor возвращает цвет рамки бокса. Человеческие боксы окрашиваются
// фиксированным цветом независимо от уверенности, сгенерированные
// нейронной сетью — трехуровневой шкалой по порогам уверенности.
func BoxColor(box models.BoundingBox) string {
	if box.Type == models.BoxTypeHuman {
		return ColorHuman
	}
	switch {
	case box.Confidence > highConfThreshold:
		return ColorHighConf
	case box.Confidence > medConfThreshold:
		return ColorMediumConf
	default:
		return ColorLowConf
	}
}
