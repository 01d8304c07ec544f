package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"video-annotator-go/internal/analyzer"
	"video-annotator-go/internal/client"
	"video-annotator-go/internal/editor"
	"video-annotator-go/internal/geometry"
	"video-annotator-go/internal/service"
	"video-annotator-go/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SessionHandler обрабатывает HTTP запросы инструмента аннотирования
type SessionHandler struct {
	manager  *service.Manager
	detector *client.DetectorAPIClient
	hub      *EventHub
	logger   *logrus.Logger
}

// NewSessionHandler создает новый экземпляр SessionHandler
func NewSessionHandler(manager *service.Manager, detector *client.DetectorAPIClient, hub *EventHub, logger *logrus.Logger) *SessionHandler {
	return &SessionHandler{
		manager:  manager,
		detector: detector,
		hub:      hub,
		logger:   logger,
	}
}

// RegisterRoutes регистрирует маршруты API
func (h *SessionHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/health", h.CheckHealth)
		api.GET("/videos", h.ListDocuments)

		api.POST("/videos/:name/analyze", h.AnalyzeVideo)
		api.GET("/videos/:name/annotations", h.GetAnnotations)
		api.POST("/videos/:name/annotations", h.SaveAnnotations)

		api.POST("/videos/:name/session", h.OpenSession)
		api.GET("/videos/:name/session", h.GetSessionState)
		api.DELETE("/videos/:name/session", h.CloseSession)

		api.POST("/videos/:name/editor/mode", h.SetEditorMode)
		api.POST("/videos/:name/editor/display", h.SetDisplaySize)
		api.POST("/videos/:name/editor/draw", h.Draw)
		api.POST("/videos/:name/editor/multi-add", h.ConfirmMultiAdd)
		api.DELETE("/videos/:name/editor/multi-add", h.CancelMultiAdd)
		api.PUT("/videos/:name/frames/:frame/boxes/:box", h.TransformBox)
		api.DELETE("/videos/:name/frames/:frame/boxes/:box", h.DeleteBox)

		api.POST("/videos/:name/undo", h.Undo)
		api.POST("/videos/:name/redo", h.Redo)

		api.POST("/videos/:name/playback/toggle-mode", h.ToggleMode)
		api.POST("/videos/:name/playback/toggle-play", h.TogglePlayPause)
		api.POST("/videos/:name/playback/seek", h.Seek)
		api.POST("/videos/:name/playback/step", h.Step)
		api.POST("/videos/:name/playback/goto", h.GoToFrame)
		api.GET("/videos/:name/thumbnail/:frame", h.Thumbnail)

		api.GET("/videos/:name/flagged", h.FlaggedFrames)
		api.POST("/videos/:name/flagged/:frame/resolve", h.ResolveFrame)
		api.DELETE("/videos/:name/flagged/:frame/resolve", h.UnresolveFrame)

		api.POST("/videos/:name/grouping/start", h.StartGrouping)
		api.POST("/videos/:name/grouping/select", h.SelectForGrouping)
		api.POST("/videos/:name/grouping/commit", h.CommitGrouping)
		api.DELETE("/videos/:name/grouping", h.CancelGrouping)
		api.GET("/videos/:name/groups", h.ListGroups)
		api.POST("/videos/:name/groups/jump", h.JumpToGroup)

		api.GET("/videos/:name/events", h.Events)
	}
}

// session достает открытую сессию по имени видео из пути запроса
func (h *SessionHandler) session(c *gin.Context) (*service.Session, bool) {
	videoName := c.Param("name")
	session, ok := h.manager.Get(videoName)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Сессия для этого видео не открыта"})
		return nil, false
	}
	return session, true
}

// AnalyzeVideo отправляет видео в Python сервис детекции и сохраняет
// полученный документ аннотаций как начальное состояние
func (h *SessionHandler) AnalyzeVideo(c *gin.Context) {
	videoName := c.Param("name")
	h.logger.Infof("Получен запрос на детекцию для видео %s", videoName)

	// Парсим multipart form
	if err := c.Request.ParseMultipartForm(256 << 20); err != nil {
		h.logger.Errorf("Ошибка парсинга multipart form: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ошибка парсинга формы"})
		return
	}

	// Получаем видео файл
	file, header, err := c.Request.FormFile("video")
	if err != nil {
		h.logger.Errorf("Ошибка получения видео файла: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Видео файл обязателен"})
		return
	}
	defer file.Close()

	videoData, err := io.ReadAll(file)
	if err != nil {
		h.logger.Errorf("Ошибка чтения видео файла: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ошибка чтения видео файла"})
		return
	}
	h.logger.Infof("Прочитано %d байт видео данных из файла %s", len(videoData), header.Filename)

	doc, err := h.manager.ImportFromDetector(videoName, videoData)
	if err != nil {
		h.logger.Errorf("Ошибка детекции: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка анализа видео"})
		return
	}

	h.logger.Infof("Детекция для видео %s завершена успешно", videoName)
	c.JSON(http.StatusOK, doc)
}

// GetAnnotations возвращает полный документ аннотаций видео.
// Открытая сессия дает текущее состояние из памяти, иначе документ
// читается из хранилища.
func (h *SessionHandler) GetAnnotations(c *gin.Context) {
	videoName := c.Param("name")

	if session, ok := h.manager.Get(videoName); ok {
		c.JSON(http.StatusOK, session.Store().Document())
		return
	}

	doc, err := h.manager.LoadDocument(videoName)
	if err != nil {
		h.logger.Errorf("Ошибка загрузки документа: %v", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Документ аннотаций не найден"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

// SaveAnnotations перезаписывает документ аннотаций целиком.
// Неполный документ (без video_info или annotations) отклоняется —
// частичное состояние не принимается.
func (h *SessionHandler) SaveAnnotations(c *gin.Context) {
	videoName := c.Param("name")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Ошибка чтения тела запроса"})
		return
	}

	doc, err := models.ParseDocument(body)
	if err != nil {
		h.logger.Errorf("Получен некорректный документ аннотаций: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный документ аннотаций"})
		return
	}

	if err := h.manager.ReplaceDocument(videoName, doc); err != nil {
		h.logger.Errorf("Ошибка сохранения документа: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка сохранения документа"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Документ аннотаций сохранен"})
}

// OpenSession открывает сессию аннотирования для видео
func (h *SessionHandler) OpenSession(c *gin.Context) {
	videoName := c.Param("name")

	session, err := h.manager.Open(videoName)
	if err != nil {
		h.logger.Errorf("Ошибка открытия сессии: %v", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Документ аннотаций для видео не найден"})
		return
	}

	// Подписываем рассылку событий на изменения документа
	h.hub.Attach(session)

	c.JSON(http.StatusOK, h.sessionState(session))
}

// GetSessionState возвращает текущее состояние сессии
func (h *SessionHandler) GetSessionState(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.sessionState(session))
}

func (h *SessionHandler) sessionState(session *service.Session) service.SessionState {
	return service.SessionState{
		VideoName:     session.VideoName(),
		PlaybackState: session.Player().State().String(),
		CurrentFrame:  session.Player().CurrentFrame(),
		EditorMode:    string(session.EditorMode()),
		CanUndo:       session.CanUndo(),
		CanRedo:       session.CanRedo(),
		FlaggedCount:  len(session.FlaggedFrames(context.Background())),
		GroupingOn:    session.GroupingActive(),
	}
}

// CloseSession закрывает сессию аннотирования
func (h *SessionHandler) CloseSession(c *gin.Context) {
	videoName := c.Param("name")
	h.manager.Close(videoName)
	c.JSON(http.StatusOK, gin.H{"message": "Сессия закрыта"})
}

// SetEditorMode переключает режим редактора
func (h *SessionHandler) SetEditorMode(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		Mode string `json:"mode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Поле mode обязательно"})
		return
	}

	switch editor.Mode(req.Mode) {
	case editor.ModeIdle, editor.ModeAddSingle, editor.ModeAddMulti:
		session.SetEditorMode(editor.Mode(req.Mode))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неизвестный режим редактора"})
		return
	}
	c.JSON(http.StatusOK, h.sessionState(session))
}

// SetDisplaySize сообщает редактору размеры контейнера видео
func (h *SessionHandler) SetDisplaySize(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		Width  float64 `json:"width" binding:"required"`
		Height float64 `json:"height" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Поля width и height обязательны"})
		return
	}

	session.SetDisplaySize(req.Width, req.Height)
	c.JSON(http.StatusOK, gin.H{"message": "Размеры контейнера обновлены"})
}

// Draw выполняет завершенный жест рисования бокса
func (h *SessionHandler) Draw(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		StartX float64 `json:"start_x"`
		StartY float64 `json:"start_y"`
		EndX   float64 `json:"end_x"`
		EndY   float64 `json:"end_y"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные координаты жеста"})
		return
	}

	committed, pending := session.Draw(req.StartX, req.StartY, req.EndX, req.EndY)

	c.JSON(http.StatusOK, gin.H{
		"committed": committed,
		"pending":   pending,
	})
}

// ConfirmMultiAdd подтверждает размножение нарисованного бокса на несколько кадров
func (h *SessionHandler) ConfirmMultiAdd(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		Count int `json:"count" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Count < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Поле count должно быть положительным числом"})
		return
	}

	if !session.ConfirmMultiAdd(req.Count) {
		c.JSON(http.StatusConflict, gin.H{"error": "Нет бокса, ожидающего подтверждения"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Бокс размножен"})
}

// CancelMultiAdd отменяет ожидающий multi-бокс
func (h *SessionHandler) CancelMultiAdd(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	session.CancelMultiAdd()
	c.JSON(http.StatusOK, gin.H{"message": "Добавление отменено"})
}

// TransformBox применяет перетаскивание или изменение размера бокса
func (h *SessionHandler) TransformBox(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	frame, err := strconv.Atoi(c.Param("frame"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный номер кадра"})
		return
	}

	var rect geometry.PixelRect
	if err := c.ShouldBindJSON(&rect); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректная геометрия бокса"})
		return
	}

	if !session.TransformBox(frame, c.Param("box"), rect) {
		// Отклоненный жест — не ошибка: геометрия просто осталась прежней
		c.JSON(http.StatusOK, gin.H{"applied": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"applied": true})
}

// DeleteBox удаляет бокс с кадра
func (h *SessionHandler) DeleteBox(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	frame, err := strconv.Atoi(c.Param("frame"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный номер кадра"})
		return
	}

	if !session.DeleteBox(frame, c.Param("box")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Бокс не найден"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Бокс удален"})
}

// Undo отменяет последнее действие
func (h *SessionHandler) Undo(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	// Пустая история — no-op, не ошибка
	applied := session.Undo()
	c.JSON(http.StatusOK, gin.H{"applied": applied, "state": h.sessionState(session)})
}

// Redo повторяет отмененное действие
func (h *SessionHandler) Redo(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	applied := session.Redo()
	c.JSON(http.StatusOK, gin.H{"applied": applied, "state": h.sessionState(session)})
}

// ToggleMode переключает обычный и покадровый режимы воспроизведения
func (h *SessionHandler) ToggleMode(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	session.Player().ToggleMode()
	c.JSON(http.StatusOK, h.sessionState(session))
}

// TogglePlayPause запускает или останавливает воспроизведение
func (h *SessionHandler) TogglePlayPause(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	session.Player().TogglePlayPause()
	c.JSON(http.StatusOK, h.sessionState(session))
}

// Seek перематывает на кадр
func (h *SessionHandler) Seek(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		Frame int `json:"frame"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Поле frame обязательно"})
		return
	}

	session.Player().SeekToFrame(req.Frame)
	c.JSON(http.StatusOK, h.sessionState(session))
}

// Step сдвигает позицию на один кадр вперед или назад
func (h *SessionHandler) Step(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		Direction int `json:"direction"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Поле direction обязательно"})
		return
	}

	session.Player().StepFrame(req.Direction)
	c.JSON(http.StatusOK, h.sessionState(session))
}

// GoToFrame переходит на кадр в покадровом режиме
func (h *SessionHandler) GoToFrame(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		Frame int `json:"frame"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Поле frame обязательно"})
		return
	}

	session.JumpToFrame(req.Frame)
	c.JSON(http.StatusOK, h.sessionState(session))
}

// Thumbnail возвращает миниатюру кадра (PNG). Неудачный захват отдает заглушку.
func (h *SessionHandler) Thumbnail(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	frame, err := strconv.Atoi(c.Param("frame"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный номер кадра"})
		return
	}

	c.Data(http.StatusOK, "image/png", session.Player().CaptureThumbnail(frame))
}

// FlaggedFrames возвращает помеченные кадры без разрешенных
func (h *SessionHandler) FlaggedFrames(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	flagged := session.FlaggedFrames(c.Request.Context())
	if flagged == nil {
		flagged = []analyzer.FlaggedFrame{}
	}
	c.JSON(http.StatusOK, gin.H{"flagged": flagged, "total": len(flagged)})
}

// ResolveFrame отмечает помеченный кадр как разрешенный
func (h *SessionHandler) ResolveFrame(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	frame, err := strconv.Atoi(c.Param("frame"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный номер кадра"})
		return
	}

	if err := session.ResolveFrame(c.Request.Context(), frame); err != nil {
		h.logger.Errorf("Ошибка сохранения отметки разрешения: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка сохранения отметки"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Кадр отмечен как разрешенный"})
}

// UnresolveFrame снимает отметку разрешения
func (h *SessionHandler) UnresolveFrame(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	frame, err := strconv.Atoi(c.Param("frame"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверный номер кадра"})
		return
	}

	if err := session.UnresolveFrame(c.Request.Context(), frame); err != nil {
		h.logger.Errorf("Ошибка удаления отметки разрешения: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка удаления отметки"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Отметка снята"})
}

// StartGrouping включает режим выбора боксов для группировки
func (h *SessionHandler) StartGrouping(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Поле name обязательно"})
		return
	}

	session.StartGrouping(req.Name)
	c.JSON(http.StatusOK, gin.H{"message": "Режим группировки включен"})
}

// SelectForGrouping переключает выбор бокса для группировки
func (h *SessionHandler) SelectForGrouping(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		Frame int    `json:"frame"`
		BoxID string `json:"box_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Поля frame и box_id обязательны"})
		return
	}

	session.SelectForGrouping(req.Frame, req.BoxID)
	c.JSON(http.StatusOK, gin.H{"selection": session.GroupingSelection()})
}

// CommitGrouping присваивает выбранным боксам общий идентификатор
func (h *SessionHandler) CommitGrouping(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	if !session.CommitGrouping() {
		c.JSON(http.StatusConflict, gin.H{"error": "Нет выбранных боксов для группировки"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": session.Groups()})
}

// CancelGrouping выключает режим группировки без изменений
func (h *SessionHandler) CancelGrouping(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	session.CancelGrouping()
	c.JSON(http.StatusOK, gin.H{"message": "Группировка отменена"})
}

// ListGroups возвращает существующие группы документа
func (h *SessionHandler) ListGroups(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": session.Groups()})
}

// JumpToGroup переводит воспроизведение на первый кадр группы
func (h *SessionHandler) JumpToGroup(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}

	var req struct {
		ID string `json:"id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Поле id обязательно"})
		return
	}

	for _, group := range session.Groups() {
		if group.ID == req.ID && len(group.Frames) > 0 {
			session.JumpToFrame(group.Frames[0])
			c.JSON(http.StatusOK, h.sessionState(session))
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "Группа не найдена"})
}

// ListDocuments возвращает список документов аннотаций с пагинацией
func (h *SessionHandler) ListDocuments(c *gin.Context) {
	pageStr := c.DefaultQuery("page", "1")
	sizeStr := c.DefaultQuery("size", "10")

	page, err := strconv.Atoi(pageStr)
	if err != nil || page < 1 {
		page = 1
	}

	size, err := strconv.Atoi(sizeStr)
	if err != nil || size < 1 || size > 100 {
		size = 10
	}

	documents, total, err := h.manager.ListDocuments(page, size)
	if err != nil {
		h.logger.Errorf("Ошибка получения списка документов: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка получения списка документов"})
		return
	}

	c.JSON(http.StatusOK, service.ListDocumentsResponse{
		Documents: documents,
		Total:     total,
		Page:      page,
		Size:      size,
	})
}

// CheckHealth проверяет состояние сервиса и его зависимостей
func (h *SessionHandler) CheckHealth(c *gin.Context) {
	h.logger.Debug("Получен запрос проверки здоровья сервиса")

	health, err := h.detector.CheckHealth()
	if err != nil {
		h.logger.Errorf("Сервис детекции недоступен: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "Сервис детекции недоступен",
		})
		return
	}

	c.JSON(http.StatusOK, health)
}

// Events открывает websocket поток событий сессии
func (h *SessionHandler) Events(c *gin.Context) {
	videoName := c.Param("name")
	if _, ok := h.manager.Get(videoName); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Сессия для этого видео не открыта"})
		return
	}
	h.hub.Handle(c.Writer, c.Request, videoName)
}
