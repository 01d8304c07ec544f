package grouping

import (
	"sort"
	"sync"

	"video-annotator-go/internal/document"
	"video-annotator-go/pkg/models"
)

// Engine интерактивное связывание объектов между кадрами: пользователь
// выбирает по одному боксу на кадр и присваивает им общий идентификатор.
type Engine struct {
	mu       sync.Mutex
	store    *document.Store
	active   bool
	name     string
	selected map[int]string // кадр -> id выбранного бокса, не более одного на кадр
}

// NewEngine создает движок группировки поверх хранилища документа
func NewEngine(store *document.Store) *Engine {
	return &Engine{
		store:    store,
		selected: make(map[int]string),
	}
}

// Start включает режим выбора с заданным именем группы
func (e *Engine) Start(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = true
	e.name = name
	e.selected = make(map[int]string)
}

// Active сообщает, включен ли режим выбора
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Select переключает выбор бокса. Повторный щелчок по выбранному боксу
// снимает выбор; выбор другого бокса на уже представленном кадре заменяет
// прежний, а не добавляется к нему.
func (e *Engine) Select(frame int, boxID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return
	}
	if e.selected[frame] == boxID {
		delete(e.selected, frame)
		return
	}
	e.selected[frame] = boxID
}

// Selection возвращает текущий набор выбранных боксов (кадр -> id)
func (e *Engine) Selection() map[int]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[int]string, len(e.selected))
	for frame, id := range e.selected {
		out[frame] = id
	}
	return out
}

// Commit переписывает идентификаторы всех выбранных боксов на имя группы
// одной массовой заменой. В историю undo коммит не записывается —
// это одно сохранение документа, как и задумано.
func (e *Engine) Commit() bool {
	e.mu.Lock()
	if !e.active || len(e.selected) == 0 {
		e.active = false
		e.selected = make(map[int]string)
		e.mu.Unlock()
		return false
	}
	name := e.name
	selected := e.selected
	e.active = false
	e.selected = make(map[int]string)
	e.mu.Unlock()

	updates := make(map[int][]models.BoundingBox, len(selected))
	for frame, boxID := range selected {
		boxes := models.CloneBoxes(e.store.Get(frame))
		changed := false
		for i := range boxes {
			if boxes[i].ID == boxID {
				boxes[i].ID = name
				changed = true
			}
		}
		if changed {
			updates[frame] = boxes
		}
	}
	if len(updates) == 0 {
		return false
	}
	e.store.ReplaceMany(updates)
	return true
}

// Cancel выключает режим выбора без изменений документа
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = false
	e.selected = make(map[int]string)
}

// Group производное представление существующей группы: идентификатор,
// встречающийся минимум на двух кадрах
type Group struct {
	ID         string `json:"id"`
	Frames     []int  `json:"frames"`      // Кадры группы по возрастанию
	TotalBoxes int    `json:"total_boxes"` // Общее количество боксов группы
}

// Groups сканирует документ и возвращает все идентификаторы, встречающиеся
// минимум на двух кадрах. Через этот список ранее созданные группы
// находятся и перенавигируются (щелчок ведет на первый кадр группы).
func (e *Engine) Groups() []Group {
	doc := e.store.Document()

	frames := make(map[string]map[int]bool)
	totals := make(map[string]int)
	for frame, boxes := range doc.Annotations {
		for _, box := range boxes {
			if frames[box.ID] == nil {
				frames[box.ID] = make(map[int]bool)
			}
			frames[box.ID][frame] = true
			totals[box.ID]++
		}
	}

	var groups []Group
	for id, frameSet := range frames {
		if len(frameSet) < 2 {
			continue
		}
		list := make([]int, 0, len(frameSet))
		for frame := range frameSet {
			list = append(list, frame)
		}
		sort.Ints(list)
		groups = append(groups, Group{ID: id, Frames: list, TotalBoxes: totals[id]})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups
}
