package handler

import (
	"net/http"
	"sync"
	"time"

	"video-annotator-go/internal/analyzer"
	"video-annotator-go/internal/document"
	"video-annotator-go/internal/service"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// writeTimeout предел на отправку одного события: медленный клиент
// не должен тормозить горутину, которая правит документ
const writeTimeout = 5 * time.Second

// DocumentEvent событие изменения документа для фронтенда: номер версии,
// состояние фонового сохранения (индикатор "saving") и количество
// помеченных кадров
type DocumentEvent struct {
	VideoName    string `json:"video_name"`
	Version      uint64 `json:"version"`
	SaveState    string `json:"save_state"`
	FlaggedCount int    `json:"flagged_count"`
}

// EventHub рассылает события сессий подключенным websocket клиентам
type EventHub struct {
	mu       sync.Mutex
	conns    map[string]map[*websocket.Conn]bool
	attached map[string]bool
	upgrader websocket.Upgrader
	logger   *logrus.Logger
}

// NewEventHub создает новый хаб событий
func NewEventHub(logger *logrus.Logger) *EventHub {
	return &EventHub{
		conns:    make(map[string]map[*websocket.Conn]bool),
		attached: make(map[string]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// CORS обрабатывается middleware, здесь пропускаем все источники
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Attach подписывает хаб на изменения документа сессии. Повторное
// открытие той же сессии не добавляет вторую подписку.
func (h *EventHub) Attach(session *service.Session) {
	h.mu.Lock()
	if h.attached[session.VideoName()] {
		h.mu.Unlock()
		return
	}
	h.attached[session.VideoName()] = true
	h.mu.Unlock()

	videoName := session.VideoName()
	store := session.Store()
	store.Subscribe(func(version uint64, state document.SaveState) {
		h.Broadcast(videoName, DocumentEvent{
			VideoName:    videoName,
			Version:      version,
			SaveState:    string(state),
			FlaggedCount: len(analyzer.FlagFrames(store.Document())),
		})
	})
}

// Handle превращает HTTP запрос в websocket подключение и держит его
// до отключения клиента
func (h *EventHub) Handle(w http.ResponseWriter, r *http.Request, videoName string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("Ошибка апгрейда websocket: %v", err)
		return
	}

	h.mu.Lock()
	if h.conns[videoName] == nil {
		h.conns[videoName] = make(map[*websocket.Conn]bool)
	}
	h.conns[videoName][conn] = true
	h.mu.Unlock()

	h.logger.Debugf("Открыт websocket событий для видео %s", videoName)

	// Читаем до закрытия, чтобы обрабатывать control-фреймы
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.conns[videoName], conn)
	h.mu.Unlock()
	conn.Close()
}

// Broadcast рассылает событие всем подключениям видео. На отправку
// каждому клиенту отводится writeTimeout; не уложившееся или
// неотправляемое подключение закрывается и выбрасывается.
func (h *EventHub) Broadcast(videoName string, event DocumentEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns[videoName] {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(event); err != nil {
			h.logger.Debugf("Закрываем отвалившийся websocket: %v", err)
			conn.Close()
			delete(h.conns[videoName], conn)
		}
	}
}
