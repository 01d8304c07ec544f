package history

import (
	"sync"

	"video-annotator-go/pkg/models"
)

// ActionKind вид действия в истории
type ActionKind string

const (
	KindAdd      ActionKind = "add"       // Пустой кадр стал непустым
	KindEdit     ActionKind = "edit"      // Непустой кадр остался непустым
	KindDelete   ActionKind = "delete"    // Непустой кадр стал пустым
	KindMultiAdd ActionKind = "multi-add" // Добавление бокса сразу на несколько кадров
)

// DefaultCapacity размер истории по умолчанию
const DefaultCapacity = 50

// Action одно атомарное действие в истории undo/redo.
// Содержит полные снимки состояния "до" и "после" — применение любого из них
// к документу полностью восстанавливает соответствующее состояние.
// Снимки копируются при записи и далее неизменяемы.
type Action struct {
	Kind ActionKind

	// Поля однокадрового действия
	Frame  int
	Before []models.BoundingBox
	After  []models.BoundingBox

	// Поля многокадрового действия
	Multi          bool
	OriginFrame    int   // Кадр, на котором находился пользователь при начале действия
	AffectedFrames []int // Затронутые кадры в порядке возрастания
	BeforeMap      map[int][]models.BoundingBox
	AfterMap       map[int][]models.BoundingBox
}

// Anchor возвращает кадр, к которому нужно перейти при undo/redo этого действия
func (a *Action) Anchor() int {
	if a.Multi {
		return a.OriginFrame
	}
	return a.Frame
}

// Log ограниченная линейная история действий с курсором.
// Инвариант: -1 <= cursor < len(actions). Запись нового действия не на
// вершине истории уничтожает ветку redo. При превышении емкости самое
// старое действие вытесняется (FIFO) со сдвигом курсора.
// Безопасен для конкурентного использования: запись из редактора и
// чтение курсора из сессии идут под одним и тем же мьютексом.
type Log struct {
	mu       sync.Mutex
	actions  []Action
	cursor   int
	capacity int
}

// NewLog создает историю с заданной емкостью (<=0 дает DefaultCapacity)
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		actions:  make([]Action, 0, capacity),
		cursor:   -1,
		capacity: capacity,
	}
}

// Classify определяет вид однокадрового действия по снимкам до и после.
// Классификация чисто косметическая (описание в UI), корректность undo/redo
// от нее не зависит.
func Classify(before, after []models.BoundingBox) ActionKind {
	switch {
	case len(before) == 0 && len(after) > 0:
		return KindAdd
	case len(before) > 0 && len(after) == 0:
		return KindDelete
	default:
		return KindEdit
	}
}

// RecordSingleFrame записывает однокадровое действие.
// Оба списка боксов копируются, хвост redo отбрасывается.
func (l *Log) RecordSingleFrame(kind ActionKind, frame int, before, after []models.BoundingBox) {
	l.append(Action{
		Kind:   kind,
		Frame:  frame,
		Before: models.CloneBoxes(before),
		After:  models.CloneBoxes(after),
	})
}

// RecordMultiFrame записывает многокадровое действие
func (l *Log) RecordMultiFrame(originFrame int, affectedFrames []int, beforeMap, afterMap map[int][]models.BoundingBox) {
	frames := make([]int, len(affectedFrames))
	copy(frames, affectedFrames)
	l.append(Action{
		Kind:           KindMultiAdd,
		Multi:          true,
		OriginFrame:    originFrame,
		AffectedFrames: frames,
		BeforeMap:      models.CloneFrameMap(beforeMap),
		AfterMap:       models.CloneFrameMap(afterMap),
	})
}

func (l *Log) append(action Action) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Отбрасываем ветку redo, если курсор не на вершине
	if l.cursor < len(l.actions)-1 {
		l.actions = l.actions[:l.cursor+1]
	}

	l.actions = append(l.actions, action)
	l.cursor = len(l.actions) - 1

	// Вытесняем самое старое действие при превышении емкости
	if len(l.actions) > l.capacity {
		l.actions = l.actions[1:]
		l.cursor--
	}
}

// CanUndo сообщает, есть ли что отменять
func (l *Log) CanUndo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor >= 0
}

// CanRedo сообщает, есть ли что повторять
func (l *Log) CanRedo() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor < len(l.actions)-1
}

// Undo возвращает действие под курсором и сдвигает курсор назад.
// Вызывающий обязан применить состояние Before к документу и перейти
// к кадру Anchor. При пустой истории возвращает ok=false без ошибки.
func (l *Log) Undo() (Action, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cursor < 0 {
		return Action{}, false
	}
	action := l.actions[l.cursor]
	l.cursor--
	return action, true
}

// Redo сдвигает курсор вперед и возвращает действие под ним.
// Вызывающий применяет состояние After. На вершине истории — ok=false.
func (l *Log) Redo() (Action, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cursor >= len(l.actions)-1 {
		return Action{}, false
	}
	l.cursor++
	return l.actions[l.cursor], true
}

// Len возвращает текущую длину истории
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.actions)
}
