package service

import (
	"context"
	"sync"
	"time"

	"video-annotator-go/internal/analyzer"
	"video-annotator-go/internal/document"
	"video-annotator-go/internal/editor"
	"video-annotator-go/internal/geometry"
	"video-annotator-go/internal/grouping"
	"video-annotator-go/internal/history"
	"video-annotator-go/internal/player"
	"video-annotator-go/internal/repository"
	"video-annotator-go/pkg/models"

	"github.com/sirupsen/logrus"
)

// Session сессия аннотирования одного видео: документ, история undo/redo,
// контроллер воспроизведения, редактор и группировка, связанные вместе.
// Все мутации документа (правки редактора, undo/redo, коммит группировки)
// идут только через методы сессии и сериализуются ее мьютексом — у общего
// документа один писатель. Редактор и группировка наружу не отдаются.
type Session struct {
	mu        sync.Mutex
	videoName string

	store    *document.Store
	log      *history.Log
	player   *player.Player
	editor   *editor.Editor
	grouping *grouping.Engine
	resolved repository.ResolvedStore

	logger *logrus.Logger
}

// repoSaver адаптирует репозиторий документов под порт сохранения хранилища
type repoSaver struct {
	repo      repository.DocumentRepository
	videoName string
}

// SaveDocument сохраняет полный документ в репозиторий
func (s *repoSaver) SaveDocument(_ context.Context, doc *models.AnnotationDocument) error {
	return s.repo.Save(s.videoName, doc)
}

// NewSession создает сессию аннотирования для загруженного документа
func NewSession(videoName string, doc *models.AnnotationDocument, repo repository.DocumentRepository,
	resolved repository.ResolvedStore, historyLimit int, stepInterval time.Duration, logger *logrus.Logger) *Session {

	var saver document.Saver
	if repo != nil {
		saver = &repoSaver{repo: repo, videoName: videoName}
	}

	store := document.NewStore(doc, saver, logger)
	log := history.NewLog(historyLimit)
	dec := player.NewVirtualDecoder(doc.VideoInfo.Duration)
	pl := player.NewPlayer(dec, doc.VideoInfo, stepInterval, logger)

	return &Session{
		videoName: videoName,
		store:     store,
		log:       log,
		player:    pl,
		editor:    editor.NewEditor(store, log, pl, logger),
		grouping:  grouping.NewEngine(store),
		resolved:  resolved,
		logger:    logger,
	}
}

// VideoName возвращает имя видео сессии
func (s *Session) VideoName() string {
	return s.videoName
}

// Store возвращает хранилище документа сессии (только чтение и подписка)
func (s *Session) Store() *document.Store {
	return s.store
}

// Player возвращает контроллер воспроизведения сессии. Воспроизведение
// документ не мутирует, поэтому управляется напрямую.
func (s *Session) Player() *player.Player {
	return s.player
}

// EditorMode возвращает текущий режим редактора
func (s *Session) EditorMode() editor.Mode {
	return s.editor.Mode()
}

// SetEditorMode переключает режим редактора
func (s *Session) SetEditorMode(mode editor.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editor.SetMode(mode)
}

// SetDisplaySize сообщает редактору размеры контейнера видео
func (s *Session) SetDisplaySize(containerWidth, containerHeight float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editor.SetDisplaySize(containerWidth, containerHeight)
}

// Draw выполняет завершенный жест рисования как одну операцию сессии
func (s *Session) Draw(startX, startY, endX, endY float64) (committed bool, pending *models.BoundingBox) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editor.BeginDraw(startX, startY)
	s.editor.UpdateDraw(endX, endY)
	return s.editor.EndDraw()
}

// ConfirmMultiAdd размножает ожидающий бокс на count кадров
func (s *Session) ConfirmMultiAdd(count int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.ConfirmMultiAdd(count)
}

// CancelMultiAdd отбрасывает ожидающий multi-бокс
func (s *Session) CancelMultiAdd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editor.CancelMultiAdd()
}

// TransformBox применяет перетаскивание или изменение размера бокса
func (s *Session) TransformBox(frame int, boxID string, pr geometry.PixelRect) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.TransformBox(frame, boxID, pr)
}

// DeleteBox удаляет бокс с кадра
func (s *Session) DeleteBox(frame int, boxID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.DeleteBox(frame, boxID)
}

// StartGrouping включает режим выбора боксов с именем группы
func (s *Session) StartGrouping(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grouping.Start(name)
}

// GroupingActive сообщает, включен ли режим группировки
func (s *Session) GroupingActive() bool {
	return s.grouping.Active()
}

// SelectForGrouping переключает выбор бокса для группировки
func (s *Session) SelectForGrouping(frame int, boxID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grouping.Select(frame, boxID)
}

// GroupingSelection возвращает текущий набор выбранных боксов
func (s *Session) GroupingSelection() map[int]string {
	return s.grouping.Selection()
}

// CommitGrouping переписывает идентификаторы выбранных боксов на имя
// группы. Чтение и массовая замена идут под мьютексом сессии, поэтому
// параллельная правка редактора не может вклиниться между ними.
func (s *Session) CommitGrouping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grouping.Commit()
}

// CancelGrouping выключает режим группировки без изменений
func (s *Session) CancelGrouping() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grouping.Cancel()
}

// Groups возвращает существующие группы документа
func (s *Session) Groups() []grouping.Group {
	return s.grouping.Groups()
}

// CanUndo сообщает, есть ли что отменять
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.CanUndo()
}

// CanRedo сообщает, есть ли что повторять
func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log.CanRedo()
}

// Undo отменяет последнее действие: применяет снимок "до" к документу
// и переводит воспроизведение в покадровый режим на якорном кадре
// действия. Применение идет напрямую через хранилище, мимо редактора,
// поэтому повторной записи в историю не возникает. Пустая история — no-op.
func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	action, ok := s.log.Undo()
	if !ok {
		return false
	}
	s.applyAction(action, true)
	s.player.EnterFrameByFrameAt(action.Anchor())
	s.logger.Infof("Отменено действие %s (кадр %d)", action.Kind, action.Anchor())
	return true
}

// Redo повторяет отмененное действие, применяя снимок "после"
func (s *Session) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	action, ok := s.log.Redo()
	if !ok {
		return false
	}
	s.applyAction(action, false)
	s.player.EnterFrameByFrameAt(action.Anchor())
	s.logger.Infof("Повторено действие %s (кадр %d)", action.Kind, action.Anchor())
	return true
}

func (s *Session) applyAction(action history.Action, before bool) {
	if action.Multi {
		if before {
			s.store.ReplaceMany(action.BeforeMap)
		} else {
			s.store.ReplaceMany(action.AfterMap)
		}
		return
	}
	if before {
		s.store.Replace(action.Frame, action.Before)
	} else {
		s.store.Replace(action.Frame, action.After)
	}
}

// FlaggedFrames возвращает помеченные кадры документа за вычетом
// разрешенных. Ошибка чтения отметок не фатальна: список возвращается
// без фильтра.
func (s *Session) FlaggedFrames(ctx context.Context) []analyzer.FlaggedFrame {
	flagged := analyzer.FlagFrames(s.store.Document())
	if s.resolved == nil {
		return flagged
	}
	marks, err := s.resolved.GetMarks(ctx, s.videoName)
	if err != nil {
		s.logger.Warnf("Не удалось прочитать отметки разрешенных кадров: %v", err)
		return flagged
	}
	return analyzer.FilterResolved(flagged, marks)
}

// ResolveFrame отмечает кадр как разрешенный при его текущем количестве
// объектов. Если правки позже изменят количество, отметка устареет и кадр
// снова появится в списке. Без хранилища отметок — no-op, как и фильтр.
func (s *Session) ResolveFrame(ctx context.Context, frame int) error {
	if s.resolved == nil {
		return nil
	}
	count := len(s.store.Get(frame))
	return s.resolved.SetMark(ctx, s.videoName, frame, count)
}

// UnresolveFrame снимает отметку разрешения с кадра
func (s *Session) UnresolveFrame(ctx context.Context, frame int) error {
	if s.resolved == nil {
		return nil
	}
	return s.resolved.DeleteMark(ctx, s.videoName, frame)
}

// JumpToFrame перемещает воспроизведение на кадр в покадровом режиме.
// Используется щелчками по спискам помеченных кадров и группировок.
func (s *Session) JumpToFrame(frame int) {
	s.player.EnterFrameByFrameAt(frame)
}

// Close освобождает ресурсы сессии (останавливает таймеры воспроизведения)
func (s *Session) Close() {
	s.player.Close()
}
