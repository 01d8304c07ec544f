package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"video-annotator-go/pkg/models"

	"github.com/sirupsen/logrus"
)

// DetectorAPIClient клиент для взаимодействия с Python сервисом детекции.
// Сервис прогоняет видео через нейронную сеть и возвращает начальный
// документ аннотаций — ровно в том же JSON формате, что и хранилище.
type DetectorAPIClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewDetectorAPIClient создает новый клиент для сервиса детекции
func NewDetectorAPIClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *DetectorAPIClient {
	return &DetectorAPIClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// AnalyzeVideo отправляет видео на детекцию и возвращает начальный документ аннотаций
func (c *DetectorAPIClient) AnalyzeVideo(videoFilename string, videoData []byte, confidence float64) (*models.AnnotationDocument, error) {
	c.logger.Infof("Отправка видео %s на детекцию в Python API", videoFilename)

	// Создаем multipart form-data
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	// Добавляем видео файл
	videoWriter, err := writer.CreateFormFile("video", videoFilename)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания form field для видео: %w", err)
	}

	if _, err := videoWriter.Write(videoData); err != nil {
		return nil, fmt.Errorf("ошибка записи видео данных: %w", err)
	}

	// Добавляем порог уверенности
	if confidence > 0 {
		if err := writer.WriteField("confidence", fmt.Sprintf("%.2f", confidence)); err != nil {
			return nil, fmt.Errorf("ошибка записи confidence: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("ошибка закрытия multipart writer: %w", err)
	}

	// Создаем HTTP запрос
	url := fmt.Sprintf("%s/analyze", c.baseURL)
	req, err := http.NewRequest("POST", url, &body)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания HTTP запроса: %w", err)
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())

	// Отправляем запрос
	c.logger.Debugf("Отправка POST запроса на %s", url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка отправки HTTP запроса: %w", err)
	}
	defer resp.Body.Close()

	// Читаем ответ
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Python API вернул ошибку: статус %d, тело: %s", resp.StatusCode, string(respBody))
	}

	// Разбираем и валидируем документ — частичный документ не принимается
	doc, err := models.ParseDocument(respBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора документа аннотаций: %w", err)
	}

	total := 0
	for _, boxes := range doc.Annotations {
		total += len(boxes)
	}
	c.logger.Infof("Детекция завершена: %d кадров с аннотациями, %d боксов", len(doc.Annotations), total)
	return doc, nil
}

// CheckHealth проверяет состояние сервиса детекции
func (c *DetectorAPIClient) CheckHealth() (*models.DetectorHealth, error) {
	c.logger.Debug("Проверка здоровья Python API")

	url := fmt.Sprintf("%s/health", c.baseURL)
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания HTTP запроса: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка отправки HTTP запроса: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Python API вернул ошибку: статус %d, тело: %s", resp.StatusCode, string(respBody))
	}

	var health models.DetectorHealth
	if err := json.Unmarshal(respBody, &health); err != nil {
		return nil, fmt.Errorf("ошибка парсинга JSON ответа: %w", err)
	}

	return &health, nil
}
