package history

import (
	"fmt"
	"sync"
	"testing"

	"video-annotator-go/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(id string) models.BoundingBox {
	return models.BoundingBox{ID: id, X: 0.1, Y: 0.1, Width: 0.2, Height: 0.2, Type: models.BoxTypeHuman}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindAdd, Classify(nil, []models.BoundingBox{box("a")}))
	assert.Equal(t, KindDelete, Classify([]models.BoundingBox{box("a")}, nil))
	assert.Equal(t, KindEdit, Classify([]models.BoundingBox{box("a")}, []models.BoundingBox{box("b")}))
	assert.Equal(t, KindEdit, Classify(nil, nil))
}

func TestUndoRedoRoundTrip(t *testing.T) {
	log := NewLog(10)

	before := []models.BoundingBox{box("a")}
	after := []models.BoundingBox{box("a"), box("b")}
	log.RecordSingleFrame(KindEdit, 5, before, after)

	action, ok := log.Undo()
	require.True(t, ok)
	assert.Equal(t, before, action.Before)
	assert.Equal(t, 5, action.Anchor())
	assert.False(t, log.CanUndo())

	redone, ok := log.Redo()
	require.True(t, ok)
	assert.Equal(t, after, redone.After)
	assert.False(t, log.CanRedo())

	// Повторный undo возвращает то же самое действие
	again, ok := log.Undo()
	require.True(t, ok)
	assert.Equal(t, action, again)
}

func TestUndoAllRestoresInOrder(t *testing.T) {
	log := NewLog(10)
	for i := 0; i < 5; i++ {
		log.RecordSingleFrame(KindEdit, i, []models.BoundingBox{box(fmt.Sprintf("v%d", i))}, []models.BoundingBox{box(fmt.Sprintf("v%d", i+1))})
	}

	// Отмена идет от последнего действия к первому
	for i := 4; i >= 0; i-- {
		action, ok := log.Undo()
		require.True(t, ok)
		assert.Equal(t, i, action.Frame)
	}
	_, ok := log.Undo()
	assert.False(t, ok)
}

func TestRecordTruncatesRedoBranch(t *testing.T) {
	log := NewLog(10)
	log.RecordSingleFrame(KindAdd, 0, nil, []models.BoundingBox{box("A")})
	log.RecordSingleFrame(KindAdd, 1, nil, []models.BoundingBox{box("B")})
	log.RecordSingleFrame(KindAdd, 2, nil, []models.BoundingBox{box("C")})

	log.Undo()
	log.Undo()
	assert.True(t, log.CanRedo())

	// Новая запись уничтожает ветку redo: остаются A и D
	log.RecordSingleFrame(KindAdd, 3, nil, []models.BoundingBox{box("D")})
	assert.False(t, log.CanRedo())
	assert.Equal(t, 2, log.Len())

	action, ok := log.Undo()
	require.True(t, ok)
	assert.Equal(t, 3, action.Frame)
	action, ok = log.Undo()
	require.True(t, ok)
	assert.Equal(t, 0, action.Frame)
}

func TestCapacityEvictsOldest(t *testing.T) {
	log := NewLog(3)
	for i := 0; i < 5; i++ {
		log.RecordSingleFrame(KindAdd, i, nil, []models.BoundingBox{box(fmt.Sprintf("b%d", i))})
	}
	assert.Equal(t, 3, log.Len())

	// Доступны только три последних действия
	frames := []int{}
	for {
		action, ok := log.Undo()
		if !ok {
			break
		}
		frames = append(frames, action.Frame)
	}
	assert.Equal(t, []int{4, 3, 2}, frames)
}

func TestSnapshotsAreCopies(t *testing.T) {
	log := NewLog(10)
	before := []models.BoundingBox{box("a")}
	after := []models.BoundingBox{box("b")}
	log.RecordSingleFrame(KindEdit, 0, before, after)

	// Мутация исходных списков не трогает снимки в истории
	before[0].X = 0.99
	after[0].ID = "изменен"

	action, ok := log.Undo()
	require.True(t, ok)
	assert.Equal(t, 0.1, action.Before[0].X)
	assert.Equal(t, "b", action.After[0].ID)
}

func TestMultiFrameAction(t *testing.T) {
	log := NewLog(10)
	beforeMap := map[int][]models.BoundingBox{10: nil, 11: {box("old")}}
	afterMap := map[int][]models.BoundingBox{10: {box("n_f10")}, 11: {box("old"), box("n_f11")}}
	log.RecordMultiFrame(10, []int{10, 11}, beforeMap, afterMap)

	action, ok := log.Undo()
	require.True(t, ok)
	assert.True(t, action.Multi)
	assert.Equal(t, KindMultiAdd, action.Kind)
	assert.Equal(t, 10, action.Anchor())
	assert.Equal(t, []int{10, 11}, action.AffectedFrames)
	assert.Len(t, action.AfterMap[11], 2)
}

func TestNewLogDefaultCapacity(t *testing.T) {
	log := NewLog(0)
	for i := 0; i < DefaultCapacity+10; i++ {
		log.RecordSingleFrame(KindAdd, i, nil, []models.BoundingBox{box("x")})
	}
	assert.Equal(t, DefaultCapacity, log.Len())
}

// Запись и откат из разных горутин: гонок быть не должно (проверяется под -race),
// а курсор после любого переплетения остается в допустимых границах.
func TestConcurrentRecordAndUndoRedo(t *testing.T) {
	log := NewLog(DefaultCapacity)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			log.RecordSingleFrame(KindAdd, i, nil, []models.BoundingBox{box(fmt.Sprintf("b%d", i))})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if i%2 == 0 {
				log.Undo()
			} else {
				log.Redo()
			}
		}
	}()
	wg.Wait()

	log.mu.Lock()
	defer log.mu.Unlock()
	assert.GreaterOrEqual(t, log.cursor, -1)
	assert.Less(t, log.cursor, len(log.actions))
	assert.LessOrEqual(t, len(log.actions), DefaultCapacity)
}
