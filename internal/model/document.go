package model

import (
	"time"

	"gorm.io/gorm"
)

// AnnotationRecord представляет документ аннотаций в базе данных.
// Полный JSON документа хранится в колонке payload и всегда
// перезаписывается целиком; метаданные видео продублированы в колонках
// для выборок списков без разбора JSON.
type AnnotationRecord struct {
	ID        string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	VideoName string `gorm:"type:varchar(255);uniqueIndex;not null" json:"video_name"`

	Width      int     `gorm:"not null;default:0" json:"width"`
	Height     int     `gorm:"not null;default:0" json:"height"`
	FPS        float64 `gorm:"not null;default:0" json:"fps"`
	FrameCount int     `gorm:"not null;default:0" json:"frame_count"`
	Duration   float64 `gorm:"not null;default:0" json:"duration"`

	Payload string `gorm:"type:jsonb;not null" json:"-"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// TableName указывает имя таблицы для AnnotationRecord
func (AnnotationRecord) TableName() string {
	return "annotation_documents"
}
