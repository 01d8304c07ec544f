package repository

import (
	"encoding/json"
	"fmt"

	"video-annotator-go/internal/model"
	"video-annotator-go/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentRepository интерфейс хранилища документов аннотаций.
// Частичного обновления нет: каждое сохранение перезаписывает документ
// целиком.
type DocumentRepository interface {
	Save(videoName string, doc *models.AnnotationDocument) error
	GetByVideo(videoName string) (*models.AnnotationDocument, error)
	List(page, pageSize int) ([]*model.AnnotationRecord, int64, error)
	Delete(videoName string) error
}

// documentRepository реализация DocumentRepository
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository создает новый instance DocumentRepository
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{
		db: db,
	}
}

// Save сохраняет документ целиком (upsert по имени видео)
func (r *documentRepository) Save(videoName string, doc *models.AnnotationDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal annotation document: %w", err)
	}

	record := model.AnnotationRecord{
		VideoName:  videoName,
		Width:      doc.VideoInfo.Width,
		Height:     doc.VideoInfo.Height,
		FPS:        doc.VideoInfo.FPS,
		FrameCount: doc.VideoInfo.FrameCount,
		Duration:   doc.VideoInfo.Duration,
		Payload:    string(payload),
	}

	var existing model.AnnotationRecord
	err = r.db.Where("video_name = ?", videoName).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return fmt.Errorf("failed to look up annotation document: %w", err)
		}
		record.ID = uuid.New().String()
		if err := r.db.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to create annotation document: %w", err)
		}
		return nil
	}

	record.ID = existing.ID
	if err := r.db.Model(&existing).Updates(map[string]interface{}{
		"width":       record.Width,
		"height":      record.Height,
		"fps":         record.FPS,
		"frame_count": record.FrameCount,
		"duration":    record.Duration,
		"payload":     record.Payload,
	}).Error; err != nil {
		return fmt.Errorf("failed to update annotation document: %w", err)
	}
	return nil
}

// GetByVideo получает документ по имени видео
func (r *documentRepository) GetByVideo(videoName string) (*models.AnnotationDocument, error) {
	var record model.AnnotationRecord
	err := r.db.Where("video_name = ?", videoName).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("annotation document for video %s not found", videoName)
		}
		return nil, fmt.Errorf("failed to get annotation document: %w", err)
	}

	doc, err := models.ParseDocument([]byte(record.Payload))
	if err != nil {
		return nil, fmt.Errorf("stored annotation document is malformed: %w", err)
	}
	return doc, nil
}

// List получает список документов с пагинацией
func (r *documentRepository) List(page, pageSize int) ([]*model.AnnotationRecord, int64, error) {
	var records []*model.AnnotationRecord
	var total int64

	if err := r.db.Model(&model.AnnotationRecord{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count annotation documents: %w", err)
	}

	offset := (page - 1) * pageSize
	err := r.db.
		Select("id", "video_name", "width", "height", "fps", "frame_count", "duration", "created_at", "updated_at").
		Offset(offset).
		Limit(pageSize).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list annotation documents: %w", err)
	}

	return records, total, nil
}

// Delete удаляет документ по имени видео
func (r *documentRepository) Delete(videoName string) error {
	result := r.db.Where("video_name = ?", videoName).Delete(&model.AnnotationRecord{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete annotation document: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("annotation document for video %s not found", videoName)
	}
	return nil
}
