package document

import (
	"context"
	"sync"

	"video-annotator-go/pkg/models"

	"github.com/sirupsen/logrus"
)

// Saver порт сохранения полного документа во внешнее хранилище.
// Каждое сохранение передает документ целиком (перезапись, не дельта).
type Saver interface {
	SaveDocument(ctx context.Context, doc *models.AnnotationDocument) error
}

// SaveState состояние фонового сохранения для индикатора в UI
type SaveState string

const (
	SaveStateSaving SaveState = "saving"
	SaveStateSaved  SaveState = "saved"
	SaveStateError  SaveState = "error"
)

// Listener получает уведомления об изменениях документа и состоянии сохранения
type Listener func(version uint64, state SaveState)

// Store единственный источник истины для аннотаций текущего видео.
// Все мутации проходят через Replace/ReplaceMany — это единая точка,
// где подключаются запись в историю и сохранение. Документ заменяется
// целиком (копирование на уровне списков кадров), списки боксов других
// кадров разделяются между версиями документа.
type Store struct {
	mu      sync.Mutex
	doc     *models.AnnotationDocument
	version uint64

	saver     Saver
	logger    *logrus.Logger
	listeners []Listener

	// Защита от перекрывающихся сохранений: пока одно сохранение в полете,
	// новые запросы сводятся к одной повторной отправке последнего документа
	saving  bool
	pending bool
}

// NewStore создает хранилище для документа. saver может быть nil —
// тогда сохранение отключено (используется в тестах).
func NewStore(doc *models.AnnotationDocument, saver Saver, logger *logrus.Logger) *Store {
	if doc.Annotations == nil {
		doc.Annotations = make(map[int][]models.BoundingBox)
	}
	return &Store{
		doc:    doc,
		saver:  saver,
		logger: logger,
	}
}

// Subscribe добавляет слушателя изменений документа
func (s *Store) Subscribe(listener Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// Document возвращает текущий документ. Результат только для чтения:
// мутации допустимы исключительно через Replace/ReplaceMany.
func (s *Store) Document() *models.AnnotationDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Version возвращает номер текущей версии документа
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Get возвращает боксы кадра (пустой список для неаннотированного кадра).
// Результат только для чтения.
func (s *Store) Get(frame int) []models.BoundingBox {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Annotations[frame]
}

// Replace создает новую версию документа с замененным списком боксов
// одного кадра. Списки остальных кадров разделяются со старой версией.
// Пустой список удаляет кадр из отображения (отсутствие кадра = ноль боксов).
func (s *Store) Replace(frame int, boxes []models.BoundingBox) {
	s.ReplaceMany(map[int][]models.BoundingBox{frame: boxes})
}

// ReplaceMany применяет замену нескольких кадров как одну логическую
// операцию: либо все кадры обновляются вместе, либо ни один. Частичное
// применение рассинхронизировало бы снимок "после" в истории undo
// с видимым документом.
func (s *Store) ReplaceMany(frameToBoxes map[int][]models.BoundingBox) {
	s.mu.Lock()

	next := make(map[int][]models.BoundingBox, len(s.doc.Annotations)+len(frameToBoxes))
	for frame, boxes := range s.doc.Annotations {
		next[frame] = boxes
	}
	for frame, boxes := range frameToBoxes {
		if len(boxes) == 0 {
			delete(next, frame)
			continue
		}
		next[frame] = models.CloneBoxes(boxes)
	}

	s.doc = &models.AnnotationDocument{
		VideoInfo:   s.doc.VideoInfo,
		Annotations: next,
	}
	s.version++
	version := s.version
	listeners := s.listeners

	startSave := false
	if s.saver != nil {
		if s.saving {
			s.pending = true
		} else {
			s.saving = true
			startSave = true
		}
	}
	doc := s.doc
	s.mu.Unlock()

	s.notify(listeners, version, SaveStateSaving)

	if startSave {
		go s.saveLoop(doc)
	}
}

// saveLoop отправляет документ во внешнее хранилище. Пока сохранение шло,
// могли накопиться новые изменения — тогда отправляем последний документ
// еще раз, чтобы финальное сохраненное состояние совпало с состоянием в памяти.
func (s *Store) saveLoop(doc *models.AnnotationDocument) {
	for {
		err := s.saver.SaveDocument(context.Background(), doc)

		s.mu.Lock()
		version := s.version
		listeners := s.listeners
		if err != nil {
			// Документ в памяти не откатываем: локальное состояние —
			// источник истины до следующей успешной загрузки
			s.logger.Errorf("Ошибка сохранения документа аннотаций: %v", err)
		}
		if !s.pending {
			s.saving = false
			s.mu.Unlock()
			if err != nil {
				s.notify(listeners, version, SaveStateError)
			} else {
				s.notify(listeners, version, SaveStateSaved)
			}
			return
		}
		s.pending = false
		doc = s.doc
		s.mu.Unlock()
	}
}

func (s *Store) notify(listeners []Listener, version uint64, state SaveState) {
	for _, listener := range listeners {
		listener(version, state)
	}
}
