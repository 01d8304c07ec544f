package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"video-annotator-go/internal/editor"
	"video-annotator-go/internal/player"
	"video-annotator-go/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testDoc() *models.AnnotationDocument {
	return &models.AnnotationDocument{
		VideoInfo: models.VideoInfo{Filename: "test.mp4", Width: 1000, Height: 1000, FPS: 30, FrameCount: 90, Duration: 3.0},
		Annotations: map[int][]models.BoundingBox{
			0: {{ID: "face_0_0", X: 0.1, Y: 0.1, Width: 0.2, Height: 0.2, Confidence: 0.95, Type: models.BoxTypeAI, Class: "face"}},
		},
	}
}

// fakeResolvedStore отметки разрешенных кадров в памяти
type fakeResolvedStore struct {
	mu    sync.Mutex
	marks map[string]map[int]int
	err   error
}

func newFakeResolvedStore() *fakeResolvedStore {
	return &fakeResolvedStore{marks: make(map[string]map[int]int)}
}

func (s *fakeResolvedStore) GetMarks(_ context.Context, videoName string) (map[int]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[int]int, len(s.marks[videoName]))
	for frame, count := range s.marks[videoName] {
		out[frame] = count
	}
	return out, nil
}

func (s *fakeResolvedStore) SetMark(_ context.Context, videoName string, frame, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.marks[videoName] == nil {
		s.marks[videoName] = make(map[int]int)
	}
	s.marks[videoName][frame] = count
	return nil
}

func (s *fakeResolvedStore) DeleteMark(_ context.Context, videoName string, frame int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.marks[videoName], frame)
	return nil
}

func newTestSession(resolved *fakeResolvedStore) *Session {
	var session *Session
	if resolved != nil {
		session = NewSession("test.mp4", testDoc(), nil, resolved, 50, time.Hour, testLogger())
	} else {
		session = NewSession("test.mp4", testDoc(), nil, nil, 50, time.Hour, testLogger())
	}
	session.SetDisplaySize(1000, 1000)
	return session
}

func drawBox(t *testing.T, session *Session) {
	t.Helper()
	session.SetEditorMode(editor.ModeAddSingle)
	committed, _ := session.Draw(400, 400, 600, 600)
	require.True(t, committed)
	session.SetEditorMode(editor.ModeIdle)
}

func TestUndoRestoresDocumentAndJumps(t *testing.T) {
	session := newTestSession(nil)
	defer session.Close()

	session.Player().SeekToFrame(0)
	drawBox(t, session)
	require.Len(t, session.Store().Get(0), 2)
	require.True(t, session.CanUndo())

	require.True(t, session.Undo())

	// Снимок "до" восстановлен, воспроизведение в покадровом режиме на кадре правки
	boxes := session.Store().Get(0)
	require.Len(t, boxes, 1)
	assert.Equal(t, "face_0_0", boxes[0].ID)
	assert.Equal(t, player.StateStepPaused, session.Player().State())
	assert.Equal(t, 0, session.Player().CurrentFrame())
	assert.False(t, session.CanUndo())
	assert.True(t, session.CanRedo())
}

func TestRedoReappliesAction(t *testing.T) {
	session := newTestSession(nil)
	defer session.Close()

	drawBox(t, session)
	require.True(t, session.Undo())
	require.True(t, session.Redo())

	assert.Len(t, session.Store().Get(0), 2)
	assert.False(t, session.CanRedo())

	// Undo после redo возвращает исходное состояние байт в байт
	require.True(t, session.Undo())
	assert.Equal(t, testDoc().Annotations[0], session.Store().Get(0))
}

func TestUndoMultiAddRestoresAllFrames(t *testing.T) {
	session := newTestSession(nil)
	defer session.Close()

	session.SetEditorMode(editor.ModeAddMulti)
	_, pending := session.Draw(400, 400, 600, 600)
	require.NotNil(t, pending)
	require.True(t, session.ConfirmMultiAdd(5))

	for frame := 0; frame <= 4; frame++ {
		require.NotEmpty(t, session.Store().Get(frame), "кадр %d", frame)
	}

	// Один undo откатывает все пять кадров разом
	require.True(t, session.Undo())
	require.Len(t, session.Store().Get(0), 1) // Исходный бокс детектора остался
	for frame := 1; frame <= 4; frame++ {
		assert.Empty(t, session.Store().Get(frame), "кадр %d", frame)
	}
	assert.Equal(t, player.StateStepPaused, session.Player().State())
	assert.Equal(t, 0, session.Player().CurrentFrame())
}

func TestUndoEmptyHistoryIsNoop(t *testing.T) {
	session := newTestSession(nil)
	defer session.Close()

	assert.False(t, session.Undo())
	assert.False(t, session.Redo())
	assert.Len(t, session.Store().Get(0), 1)
}

func TestUndoDoesNotReRecord(t *testing.T) {
	session := newTestSession(nil)
	defer session.Close()

	drawBox(t, session)

	// Цикл undo/redo не раздувает историю
	require.True(t, session.Undo())
	require.True(t, session.Redo())
	require.True(t, session.Undo())
	assert.False(t, session.CanUndo())
}

// dipDocument ряд 2,2,2,2,0,2,2,2,2 по кадрам 0..8: провал на кадре 4,
// стабильные отрезки длиннее предела и сами не помечаются
func dipDocument() map[int][]models.BoundingBox {
	doc := map[int][]models.BoundingBox{}
	for _, frame := range []int{0, 1, 2, 3, 5, 6, 7, 8} {
		doc[frame] = []models.BoundingBox{
			{ID: "a", Width: 0.1, Height: 0.1, Confidence: 0.9},
			{ID: "b", Width: 0.1, Height: 0.1, Confidence: 0.9},
		}
	}
	doc[4] = nil
	return doc
}

func TestFlaggedFramesFilterResolved(t *testing.T) {
	resolved := newFakeResolvedStore()
	session := newTestSession(resolved)
	defer session.Close()

	// Провал в один кадр между двумя длинными стабильными отрезками
	session.Store().ReplaceMany(dipDocument())

	ctx := context.Background()
	flagged := session.FlaggedFrames(ctx)
	require.Len(t, flagged, 1)
	assert.Equal(t, 4, flagged[0].Frame)

	// Разрешение скрывает кадр
	require.NoError(t, session.ResolveFrame(ctx, 4))
	assert.Empty(t, session.FlaggedFrames(ctx))

	// Правка, меняющая количество, делает отметку устаревшей
	session.Store().Replace(4, []models.BoundingBox{{ID: "c", Width: 0.1, Height: 0.1, Confidence: 0.9}})
	flagged = session.FlaggedFrames(ctx)
	require.Len(t, flagged, 1)
	assert.Equal(t, 4, flagged[0].Frame)

	// Снятие отметки возвращает кадр в список при совпадающем количестве
	require.NoError(t, session.ResolveFrame(ctx, 4))
	assert.Empty(t, session.FlaggedFrames(ctx))
	require.NoError(t, session.UnresolveFrame(ctx, 4))
	assert.Len(t, session.FlaggedFrames(ctx), 1)
}

func TestFlaggedFramesDegradesOnStoreError(t *testing.T) {
	resolved := newFakeResolvedStore()
	resolved.err = errors.New("redis недоступен")
	session := newTestSession(resolved)
	defer session.Close()

	session.Store().ReplaceMany(dipDocument())

	// Ошибка чтения отметок не прячет список: он возвращается без фильтра
	flagged := session.FlaggedFrames(context.Background())
	require.Len(t, flagged, 1)
	assert.Equal(t, 4, flagged[0].Frame)
}

func TestJumpToFrame(t *testing.T) {
	session := newTestSession(nil)
	defer session.Close()

	session.JumpToFrame(42)
	assert.Equal(t, player.StateStepPaused, session.Player().State())
	assert.Equal(t, 42, session.Player().CurrentFrame())
}

// Правки и откаты из разных горутин идут через мьютекс сессии,
// гонок по документу и истории нет (проверяется под -race).
func TestConcurrentDrawAndUndo(t *testing.T) {
	session := newTestSession(nil)
	defer session.Close()
	session.SetEditorMode(editor.ModeAddSingle)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			session.Draw(100, 100, 300, 300)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			session.Undo()
		}
	}()
	wg.Wait()

	doc := session.Store().Document()
	require.NotNil(t, doc)
	// Исходная рамка детектора переживает любое переплетение правок и откатов
	require.NotEmpty(t, doc.Annotations[0])
	assert.Equal(t, "face_0_0", doc.Annotations[0][0].ID)
}

// Групповая замена читает и переписывает документ под мьютексом сессии,
// параллельные правки не рвут ее на части.
func TestConcurrentGroupingCommitAndDraw(t *testing.T) {
	session := newTestSession(nil)
	defer session.Close()
	session.SetEditorMode(editor.ModeAddSingle)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			session.Draw(100, 100, 300, 300)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			session.StartGrouping("Alice")
			session.SelectForGrouping(0, "face_0_0")
			session.CommitGrouping()
		}
	}()
	wg.Wait()

	doc := session.Store().Document()
	require.NotNil(t, doc)
	require.NotEmpty(t, doc.Annotations[0])
}

func TestResolveFrameWithoutStore(t *testing.T) {
	session := newTestSession(nil)
	defer session.Close()

	// Без хранилища отметок разрешение кадра — no-op, а не паника
	assert.NoError(t, session.ResolveFrame(context.Background(), 0))
	assert.NoError(t, session.UnresolveFrame(context.Background(), 0))
}
