package service

import (
	"fmt"
	"sync"
	"time"

	"video-annotator-go/internal/client"
	"video-annotator-go/internal/model"
	"video-annotator-go/internal/repository"
	"video-annotator-go/pkg/models"

	"github.com/sirupsen/logrus"
)

// Manager управляет сессиями аннотирования: по одной на видео.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	repo     repository.DocumentRepository
	resolved repository.ResolvedStore
	detector *client.DetectorAPIClient

	historyLimit int
	stepInterval time.Duration
	confidence   float64

	logger *logrus.Logger
}

// NewManager создает менеджер сессий
func NewManager(repo repository.DocumentRepository, resolved repository.ResolvedStore,
	detector *client.DetectorAPIClient, historyLimit, stepIntervalMs int, confidence float64,
	logger *logrus.Logger) *Manager {

	return &Manager{
		sessions:     make(map[string]*Session),
		repo:         repo,
		resolved:     resolved,
		detector:     detector,
		historyLimit: historyLimit,
		stepInterval: time.Duration(stepIntervalMs) * time.Millisecond,
		confidence:   confidence,
		logger:       logger,
	}
}

// Open открывает сессию для видео, загружая документ из хранилища.
// Повторное открытие возвращает существующую сессию.
func (m *Manager) Open(videoName string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[videoName]; ok {
		return session, nil
	}

	doc, err := m.repo.GetByVideo(videoName)
	if err != nil {
		return nil, fmt.Errorf("failed to load annotation document: %w", err)
	}

	session := NewSession(videoName, doc, m.repo, m.resolved, m.historyLimit, m.stepInterval, m.logger)
	m.sessions[videoName] = session
	m.logger.Infof("Открыта сессия аннотирования для видео %s (%d кадров)", videoName, doc.VideoInfo.FrameCount)
	return session, nil
}

// Get возвращает открытую сессию, если она есть
func (m *Manager) Get(videoName string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[videoName]
	return session, ok
}

// Close закрывает сессию видео и освобождает ее ресурсы
func (m *Manager) Close(videoName string) {
	m.mu.Lock()
	session, ok := m.sessions[videoName]
	delete(m.sessions, videoName)
	m.mu.Unlock()

	if ok {
		session.Close()
		m.logger.Infof("Сессия аннотирования для видео %s закрыта", videoName)
	}
}

// ImportFromDetector прогоняет видео через Python сервис детекции,
// сохраняет полученный документ и возвращает его. Открытая сессия видео
// закрывается: следующая откроется уже на новом документе.
func (m *Manager) ImportFromDetector(videoName string, videoData []byte) (*models.AnnotationDocument, error) {
	doc, err := m.detector.AnalyzeVideo(videoName, videoData, m.confidence)
	if err != nil {
		return nil, fmt.Errorf("detector analysis failed: %w", err)
	}

	if err := m.repo.Save(videoName, doc); err != nil {
		return nil, fmt.Errorf("failed to save detector output: %w", err)
	}

	m.Close(videoName)
	return doc, nil
}

// ReplaceDocument перезаписывает сохраненный документ видео целиком.
// Открытая сессия закрывается, чтобы не редактировать устаревшую копию.
func (m *Manager) ReplaceDocument(videoName string, doc *models.AnnotationDocument) error {
	if err := m.repo.Save(videoName, doc); err != nil {
		return fmt.Errorf("failed to overwrite annotation document: %w", err)
	}
	m.Close(videoName)
	return nil
}

// LoadDocument читает документ видео из хранилища, не открывая сессию
func (m *Manager) LoadDocument(videoName string) (*models.AnnotationDocument, error) {
	return m.repo.GetByVideo(videoName)
}

// ListDocuments возвращает список сохраненных документов с пагинацией
func (m *Manager) ListDocuments(page, pageSize int) ([]*model.AnnotationRecord, int64, error) {
	return m.repo.List(page, pageSize)
}

// CloseAll закрывает все открытые сессии
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}
