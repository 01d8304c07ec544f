package editor

import (
	"fmt"
	"sync"

	"video-annotator-go/internal/document"
	"video-annotator-go/internal/geometry"
	"video-annotator-go/internal/history"
	"video-annotator-go/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Mode режим редактора
type Mode string

const (
	ModeIdle      Mode = "idle"       // Перетаскивание и изменение размера доступны
	ModeAddSingle Mode = "add-single" // Рисование бокса на текущем кадре
	ModeAddMulti  Mode = "add-multi"  // Рисование бокса с размножением на несколько кадров
)

// ManualClass класс, присваиваемый нарисованным вручную боксам
const ManualClass = "manual"

// FrameProvider отдает текущий кадр воспроизведения
type FrameProvider interface {
	CurrentFrame() int
}

// Editor превращает жесты указателя (рисование, перетаскивание, изменение
// размера, удаление) в мутации документа. Каждая завершенная правка
// проходит через хранилище документа и записывается в историю undo —
// воспроизведение истории идет мимо редактора и потому не записывается
// повторно.
type Editor struct {
	mu     sync.Mutex
	store  *document.Store
	log    *history.Log
	calc   *geometry.Calculator
	frames FrameProvider
	logger *logrus.Logger

	mode Mode
	rect geometry.DisplayRect

	drawing                    bool
	startX, startY, endX, endY float64

	// Бокс, нарисованный в режиме add-multi и ожидающий подтверждения
	// количества кадров
	pending      *models.BoundingBox
	pendingFrame int
}

// NewEditor создает редактор поверх хранилища документа и истории
func NewEditor(store *document.Store, log *history.Log, frames FrameProvider, logger *logrus.Logger) *Editor {
	return &Editor{
		store:  store,
		log:    log,
		calc:   geometry.NewCalculator(),
		frames: frames,
		logger: logger,
		mode:   ModeIdle,
	}
}

// Mode возвращает текущий режим редактора
func (e *Editor) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// SetMode переключает режим редактора. Смена режима отменяет
// незавершенный жест рисования и неподтвержденный multi-бокс.
func (e *Editor) SetMode(mode Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = mode
	e.drawing = false
	e.pending = nil
}

// SetDisplaySize пересчитывает видимый прямоугольник видео по размерам
// контейнера. Вызывается при каждом изменении размеров контейнера или видео.
func (e *Editor) SetDisplaySize(containerWidth, containerHeight float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	info := e.store.Document().VideoInfo
	e.rect = e.calc.ComputeDisplayRect(info.Width, info.Height, containerWidth, containerHeight)
}

// BeginDraw начинает жест рисования в пиксельных координатах контейнера.
// Вне режимов добавления жест игнорируется.
func (e *Editor) BeginDraw(px, py float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode != ModeAddSingle && e.mode != ModeAddMulti {
		return
	}
	e.drawing = true
	e.startX, e.startY = px, py
	e.endX, e.endY = px, py
}

// UpdateDraw обновляет конечную точку жеста (только превью, без коммита)
func (e *Editor) UpdateDraw(px, py float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.drawing {
		return
	}
	e.endX, e.endY = px, py
}

// EndDraw завершает жест рисования. Бокс меньше минимального размера
// молча отбрасывается без мутации документа и записи в историю.
// В режиме add-single бокс сразу коммитится на текущий кадр, в режиме
// add-multi возвращается как ожидающий подтверждения количества кадров.
func (e *Editor) EndDraw() (committed bool, pending *models.BoundingBox) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.drawing {
		return false, nil
	}
	e.drawing = false

	box := e.calc.NormalizeRect(e.startX, e.startY, e.endX, e.endY, e.rect)
	if geometry.TooSmallToDraw(box) {
		e.logger.Debug("Нарисованный бокс меньше минимального размера, отменяем")
		return false, nil
	}

	frame := e.frames.CurrentFrame()
	box.ID = fmt.Sprintf("manual_%s", uuid.New().String()[:8])
	box.Confidence = 1.0
	box.Type = models.BoxTypeHuman
	box.Class = ManualClass

	if e.mode == ModeAddMulti {
		e.pending = &box
		e.pendingFrame = frame
		return false, &box
	}

	before := e.store.Get(frame)
	after := append(models.CloneBoxes(before), box)
	e.store.Replace(frame, after)
	e.log.RecordSingleFrame(history.Classify(before, after), frame, before, after)
	e.logger.Infof("Добавлен бокс %s на кадр %d", box.ID, frame)
	return true, nil
}

// ConfirmMultiAdd размножает ожидающий бокс на count кадров начиная с
// кадра рисования (с отсечением по последнему кадру видео). Все кадры
// заменяются одной атомарной операцией, в историю записывается одно
// многокадровое действие.
func (e *Editor) ConfirmMultiAdd(count int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil || count < 1 {
		e.pending = nil
		return false
	}
	base := *e.pending
	e.pending = nil

	info := e.store.Document().VideoInfo
	start := e.pendingFrame
	end := start + count - 1
	if max := info.FrameCount - 1; end > max {
		end = max
	}

	affected := make([]int, 0, end-start+1)
	beforeMap := make(map[int][]models.BoundingBox)
	afterMap := make(map[int][]models.BoundingBox)
	for frame := start; frame <= end; frame++ {
		replica := base
		// Уникальный в пределах кадра идентификатор, производный от базового
		replica.ID = fmt.Sprintf("%s_f%d", base.ID, frame)
		before := e.store.Get(frame)
		beforeMap[frame] = models.CloneBoxes(before)
		afterMap[frame] = append(models.CloneBoxes(before), replica)
		affected = append(affected, frame)
	}

	e.store.ReplaceMany(afterMap)
	e.log.RecordMultiFrame(start, affected, beforeMap, afterMap)
	e.logger.Infof("Бокс %s размножен на кадры %d..%d", base.ID, start, end)
	return true
}

// CancelMultiAdd отбрасывает ожидающий multi-бокс без мутаций
func (e *Editor) CancelMultiAdd() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = nil
}

// TransformBox применяет завершенное перетаскивание или изменение размера.
// Новая геометрия приходит в пиксельных координатах контейнера и
// пересчитывается относительно видимой области видео. Размер меньше
// пиксельного порога отклоняется — геометрия остается прежней.
// Тронутый бокс перетегируется как human.
func (e *Editor) TransformBox(frame int, boxID string, pr geometry.PixelRect) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if geometry.TooSmallToResize(pr) {
		e.logger.Debugf("Изменение размера бокса %s отклонено: меньше минимума", boxID)
		return false
	}

	before := e.store.Get(frame)
	idx := indexOfBox(before, boxID)
	if idx < 0 {
		return false
	}

	norm := e.calc.NormalizePixelRect(pr, e.rect)
	after := models.CloneBoxes(before)
	after[idx].X = norm.X
	after[idx].Y = norm.Y
	after[idx].Width = norm.Width
	after[idx].Height = norm.Height
	after[idx].Type = models.BoxTypeHuman

	e.store.Replace(frame, after)
	e.log.RecordSingleFrame(history.KindEdit, frame, before, after)
	return true
}

// DeleteBox удаляет бокс с кадра. Последний бокс кадра дает действие
// delete, иначе edit.
func (e *Editor) DeleteBox(frame int, boxID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.store.Get(frame)
	idx := indexOfBox(before, boxID)
	if idx < 0 {
		return false
	}

	after := make([]models.BoundingBox, 0, len(before)-1)
	after = append(after, before[:idx]...)
	after = append(after, before[idx+1:]...)

	e.store.Replace(frame, after)
	e.log.RecordSingleFrame(history.Classify(before, after), frame, before, after)
	e.logger.Infof("Удален бокс %s с кадра %d", boxID, frame)
	return true
}

func indexOfBox(boxes []models.BoundingBox, id string) int {
	for i, box := range boxes {
		if box.ID == id {
			return i
		}
	}
	return -1
}
