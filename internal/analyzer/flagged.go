package analyzer

import (
	"sort"

	"video-annotator-go/pkg/models"
)

// Причины пометки кадра
const (
	ReasonCountDeviation = "object-count-deviation"  // Короткий провал/всплеск количества объектов
	ReasonLowConfidence  = "low-confidence-detection" // Детекция с низкой уверенностью
	ReasonBoth           = "both"                      // Обе причины сразу
)

// LowConfidenceThreshold порог уверенности, ниже которого кадр помечается
const LowConfidenceThreshold = 0.7

// MaxDeviationRunLength максимальная длина аномального отрезка в кадрах
const MaxDeviationRunLength = 3

// FlaggedFrame помеченный кадр. Производное значение — не хранится,
// пересчитывается из документа при каждом изменении.
type FlaggedFrame struct {
	Frame       int    `json:"frame"`        // Номер кадра
	ObjectCount int    `json:"object_count"` // Текущее количество объектов на кадре
	Reason      string `json:"reason"`       // Причина пометки
}

// segment максимальный непрерывный отрезок кадров с одинаковым количеством объектов
type segment struct {
	start  int
	length int
	count  int
}

// FlagFrames находит аномальные кадры в документе.
//
// Ряд количества объектов по кадрам кодируется в отрезки постоянного
// значения. Внутренний отрезок длиной не более трех кадров, количество
// в котором отличается от соседей, а соседние отрезки равны между собой,
// помечается целиком — это ловит краткие провалы и всплески, ограниченные
// стабильным количеством с обеих сторон. Монотонный переход или изменение,
// которое сохраняется, так не помечается.
//
// Независимо от этого любой кадр с боксом уверенности ниже порога
// помечается как low-confidence-detection; совпадение причин дает "both".
func FlagFrames(doc *models.AnnotationDocument) []FlaggedFrame {
	counts := doc.ObjectCounts()
	flagged := make(map[int]string)

	segments := encodeRuns(counts)
	for i := 1; i < len(segments)-1; i++ {
		seg := segments[i]
		prev := segments[i-1]
		next := segments[i+1]
		if seg.length <= MaxDeviationRunLength &&
			seg.count != prev.count &&
			seg.count != next.count &&
			prev.count == next.count {
			for f := seg.start; f < seg.start+seg.length; f++ {
				flagged[f] = ReasonCountDeviation
			}
		}
	}

	for frame, boxes := range doc.Annotations {
		if frame < 0 || frame >= len(counts) {
			continue
		}
		for _, box := range boxes {
			if box.Confidence < LowConfidenceThreshold {
				if flagged[frame] == ReasonCountDeviation {
					flagged[frame] = ReasonBoth
				} else if flagged[frame] == "" {
					flagged[frame] = ReasonLowConfidence
				}
				break
			}
		}
	}

	result := make([]FlaggedFrame, 0, len(flagged))
	for frame, reason := range flagged {
		result = append(result, FlaggedFrame{
			Frame:       frame,
			ObjectCount: counts[frame],
			Reason:      reason,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Frame < result[j].Frame })
	return result
}

// encodeRuns кодирует ряд в максимальные отрезки постоянного значения
func encodeRuns(counts []int) []segment {
	var segments []segment
	for i := 0; i < len(counts); {
		j := i
		for j < len(counts) && counts[j] == counts[i] {
			j++
		}
		segments = append(segments, segment{start: i, length: j - i, count: counts[i]})
		i = j
	}
	return segments
}

// FilterResolved скрывает кадры, помеченные пользователем как разрешенные.
// Кадр считается разрешенным только если сохраненное при разрешении
// количество объектов совпадает с текущим: правка, меняющая количество,
// делает отметку устаревшей и кадр снова появляется в списке.
func FilterResolved(flagged []FlaggedFrame, resolved map[int]int) []FlaggedFrame {
	if len(resolved) == 0 {
		return flagged
	}
	out := make([]FlaggedFrame, 0, len(flagged))
	for _, f := range flagged {
		if count, ok := resolved[f.Frame]; ok && count == f.ObjectCount {
			continue
		}
		out = append(out, f)
	}
	return out
}
