package service

import (
	"video-annotator-go/internal/model"
)

// SessionState снимок состояния сессии для UI
type SessionState struct {
	VideoName     string `json:"video_name"`
	PlaybackState string `json:"playback_state"` // normal-/step- playing/paused
	CurrentFrame  int    `json:"current_frame"`
	EditorMode    string `json:"editor_mode"`
	CanUndo       bool   `json:"can_undo"`
	CanRedo       bool   `json:"can_redo"`
	FlaggedCount  int    `json:"flagged_count"`
	GroupingOn    bool   `json:"grouping_on"`
}

// ListDocumentsResponse ответ со списком документов аннотаций
type ListDocumentsResponse struct {
	Documents []*model.AnnotationRecord `json:"documents"`
	Total     int64                     `json:"total"`
	Page      int                       `json:"page"`
	Size      int                       `json:"size"`
}
