package models

import (
	"encoding/json"
	"fmt"
)

// Тип происхождения бокса
const (
	BoxTypeAI    = "ai-generated" // Бокс создан нейронной сетью
	BoxTypeHuman = "human"        // Бокс создан или изменен человеком
)

// VideoInfo содержит метаданные видео файла
type VideoInfo struct {
	Filename   string  `json:"filename"`    // Имя видео файла
	Width      int     `json:"width"`       // Ширина кадра в пикселях
	Height     int     `json:"height"`      // Высота кадра в пикселях
	FPS        float64 `json:"fps"`         // Частота кадров
	FrameCount int     `json:"frame_count"` // Общее количество кадров
	Duration   float64 `json:"duration"`    // Длительность в секундах
}

// BoundingBox представляет один ограничивающий прямоугольник на кадре.
// Координаты нормализованы в диапазон [0,1] относительно размеров кадра.
type BoundingBox struct {
	ID         string  `json:"id"`         // Идентификатор (общий для сгруппированных боксов)
	X          float64 `json:"x"`          // Нормализованная координата X левого верхнего угла
	Y          float64 `json:"y"`          // Нормализованная координата Y левого верхнего угла
	Width      float64 `json:"width"`      // Нормализованная ширина
	Height     float64 `json:"height"`     // Нормализованная высота
	Confidence float64 `json:"confidence"` // Уверенность детектора [0,1]
	Type       string  `json:"type"`       // Происхождение: ai-generated или human
	Class      string  `json:"class"`      // Класс объекта (face, license_plate, manual...)
}

// AnnotationDocument полный документ аннотаций для одного видео.
// Ключи annotations — номера кадров; отсутствующий кадр означает ноль боксов.
// В JSON ключи сериализуются как строки.
type AnnotationDocument struct {
	VideoInfo   VideoInfo             `json:"video_info"`
	Annotations map[int][]BoundingBox `json:"annotations"`
}

// Clamp приводит координаты бокса в допустимые границы [0,1]
func (b *BoundingBox) Clamp() {
	b.X = clamp01(b.X)
	b.Y = clamp01(b.Y)
	if b.Width < 0 {
		b.Width = 0
	}
	if b.Height < 0 {
		b.Height = 0
	}
	if b.X+b.Width > 1 {
		b.Width = 1 - b.X
	}
	if b.Y+b.Height > 1 {
		b.Height = 1 - b.Y
	}
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

// CloneBoxes создает глубокую копию списка боксов
func CloneBoxes(boxes []BoundingBox) []BoundingBox {
	if boxes == nil {
		return nil
	}
	out := make([]BoundingBox, len(boxes))
	copy(out, boxes)
	return out
}

// CloneFrameMap создает глубокую копию отображения кадр -> боксы
func CloneFrameMap(frames map[int][]BoundingBox) map[int][]BoundingBox {
	out := make(map[int][]BoundingBox, len(frames))
	for frame, boxes := range frames {
		out[frame] = CloneBoxes(boxes)
	}
	return out
}

// Clone создает глубокую копию документа
func (d *AnnotationDocument) Clone() *AnnotationDocument {
	return &AnnotationDocument{
		VideoInfo:   d.VideoInfo,
		Annotations: CloneFrameMap(d.Annotations),
	}
}

// ObjectCounts возвращает ряд количества объектов по всем кадрам видео.
// Длина ряда равна frame_count, неаннотированные кадры дают ноль.
func (d *AnnotationDocument) ObjectCounts() []int {
	counts := make([]int, d.VideoInfo.FrameCount)
	for frame, boxes := range d.Annotations {
		if frame >= 0 && frame < len(counts) {
			counts[frame] = len(boxes)
		}
	}
	return counts
}

// ParseDocument разбирает и валидирует JSON документ аннотаций.
// Документ без video_info или annotations отклоняется целиком —
// частичный документ не принимается.
func ParseDocument(data []byte) (*AnnotationDocument, error) {
	var raw struct {
		VideoInfo   *VideoInfo            `json:"video_info"`
		Annotations map[int][]BoundingBox `json:"annotations"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse annotation document: %w", err)
	}
	if raw.VideoInfo == nil {
		return nil, fmt.Errorf("annotation document is missing video_info")
	}
	if raw.Annotations == nil {
		return nil, fmt.Errorf("annotation document is missing annotations")
	}
	doc := &AnnotationDocument{
		VideoInfo:   *raw.VideoInfo,
		Annotations: raw.Annotations,
	}
	return doc, nil
}

// DetectorHealth представляет ответ проверки здоровья сервиса детекции
type DetectorHealth struct {
	Status      string `json:"status"`       // Статус сервиса (healthy/unhealthy)
	ModelLoaded bool   `json:"model_loaded"` // Загружена ли модель нейронной сети
	Version     string `json:"version"`      // Версия сервиса
}
