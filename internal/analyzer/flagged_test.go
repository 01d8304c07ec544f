package analyzer

import (
	"testing"

	"video-annotator-go/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// docWithCounts строит документ с заданным количеством объектов по кадрам
func docWithCounts(counts []int) *models.AnnotationDocument {
	annotations := make(map[int][]models.BoundingBox)
	for frame, count := range counts {
		if count == 0 {
			continue
		}
		boxes := make([]models.BoundingBox, count)
		for i := range boxes {
			boxes[i] = models.BoundingBox{ID: "box", Confidence: 0.95, Type: models.BoxTypeAI}
		}
		annotations[frame] = boxes
	}
	return &models.AnnotationDocument{
		VideoInfo:   models.VideoInfo{FrameCount: len(counts)},
		Annotations: annotations,
	}
}

func TestFlagFramesShortDip(t *testing.T) {
	// Провал 2,2,2 -> 0,0 -> 2,2,2 помечает оба нулевых кадра
	flagged := FlagFrames(docWithCounts([]int{2, 2, 2, 0, 0, 2, 2, 2}))
	require.Len(t, flagged, 2)
	assert.Equal(t, 3, flagged[0].Frame)
	assert.Equal(t, 4, flagged[1].Frame)
	assert.Equal(t, ReasonCountDeviation, flagged[0].Reason)
	assert.Equal(t, 0, flagged[0].ObjectCount)
}

func TestFlagFramesShortSpike(t *testing.T) {
	flagged := FlagFrames(docWithCounts([]int{1, 1, 3, 1, 1}))
	require.Len(t, flagged, 1)
	assert.Equal(t, 2, flagged[0].Frame)
	assert.Equal(t, 3, flagged[0].ObjectCount)
}

func TestFlagFramesLongRunNotFlagged(t *testing.T) {
	// Отрезок длиной четыре кадра превышает предел и не помечается
	flagged := FlagFrames(docWithCounts([]int{2, 2, 0, 0, 0, 0, 2, 2}))
	assert.Empty(t, flagged)
}

func TestFlagFramesSustainedChangeNotFlagged(t *testing.T) {
	// Ступенчатый переход 1 -> 2 -> 3 не аномалия: соседи не равны между собой
	flagged := FlagFrames(docWithCounts([]int{1, 1, 1, 2, 2, 3, 3, 3}))
	assert.Empty(t, flagged)

	// Изменение в начале и конце ряда не помечается: нет соседа с обеих сторон
	flagged = FlagFrames(docWithCounts([]int{5, 2, 2, 2, 2, 5}))
	assert.Empty(t, flagged)
}

func TestFlagFramesLowConfidence(t *testing.T) {
	doc := docWithCounts([]int{1, 1, 1})
	doc.Annotations[1][0].Confidence = 0.5

	flagged := FlagFrames(doc)
	require.Len(t, flagged, 1)
	assert.Equal(t, 1, flagged[0].Frame)
	assert.Equal(t, ReasonLowConfidence, flagged[0].Reason)
}

func TestFlagFramesBothReasons(t *testing.T) {
	doc := docWithCounts([]int{2, 2, 1, 2, 2})
	doc.Annotations[2][0].Confidence = 0.3

	flagged := FlagFrames(doc)
	require.Len(t, flagged, 1)
	assert.Equal(t, ReasonBoth, flagged[0].Reason)
}

func TestFlagFramesSortedAscending(t *testing.T) {
	doc := docWithCounts([]int{1, 1, 2, 1, 1, 1, 3, 1, 1})
	flagged := FlagFrames(doc)
	require.Len(t, flagged, 2)
	assert.Less(t, flagged[0].Frame, flagged[1].Frame)
}

func TestFilterResolved(t *testing.T) {
	flagged := []FlaggedFrame{
		{Frame: 3, ObjectCount: 0, Reason: ReasonCountDeviation},
		{Frame: 7, ObjectCount: 2, Reason: ReasonLowConfidence},
	}

	// Совпадающее количество скрывает кадр
	out := FilterResolved(flagged, map[int]int{3: 0})
	require.Len(t, out, 1)
	assert.Equal(t, 7, out[0].Frame)

	// Устаревшая отметка (количество изменилось) не скрывает
	out = FilterResolved(flagged, map[int]int{3: 1})
	assert.Len(t, out, 2)

	// Без отметок список возвращается как есть
	assert.Equal(t, flagged, FilterResolved(flagged, nil))
}
