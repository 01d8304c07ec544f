package main

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

func main() {
	// Проверяем health endpoint
	fmt.Println("Проверяем health endpoint...")
	resp, err := http.Get("http://localhost:8080/api/v1/health")
	if err != nil {
		fmt.Printf("Ошибка при обращении к health endpoint: %v\n", err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("Ошибка чтения ответа: %v\n", err)
		return
	}

	fmt.Printf("Health check ответ (статус %d):\n%s\n\n", resp.StatusCode, string(body))

	// Если передано тестовое видео, отправляем его на детекцию
	if len(os.Args) > 1 {
		videoPath := os.Args[1]
		fmt.Printf("Отправляем видео %s на детекцию...\n", videoPath)

		if err := testAnalyze(videoPath); err != nil {
			fmt.Printf("Ошибка при тестировании детекции: %v\n", err)
		}
	} else {
		fmt.Println("Для тестирования детекции запустите: go run test_client.go <путь_к_видео>")
	}
}

func testAnalyze(videoPath string) error {
	// Читаем видео файл
	videoData, err := os.ReadFile(videoPath)
	if err != nil {
		return fmt.Errorf("ошибка чтения видео файла: %w", err)
	}

	videoName := filepath.Base(videoPath)

	// Создаем multipart form
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	videoWriter, err := writer.CreateFormFile("video", videoName)
	if err != nil {
		return fmt.Errorf("ошибка создания form field: %w", err)
	}

	if _, err := videoWriter.Write(videoData); err != nil {
		return fmt.Errorf("ошибка записи видео: %w", err)
	}

	writer.Close()

	// Отправляем запрос
	client := &http.Client{Timeout: 5 * time.Minute}
	url := fmt.Sprintf("http://localhost:8080/api/v1/videos/%s/analyze", videoName)
	req, err := http.NewRequest("POST", url, &body)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())

	fmt.Println("Отправляем запрос на детекцию...")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка отправки запроса: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	fmt.Printf("Ответ детекции (статус %d):\n%s\n\n", resp.StatusCode, string(respBody))

	// Открываем сессию аннотирования и смотрим её состояние
	sessionURL := fmt.Sprintf("http://localhost:8080/api/v1/videos/%s/session", videoName)
	sessResp, err := client.Post(sessionURL, "application/json", nil)
	if err != nil {
		return fmt.Errorf("ошибка открытия сессии: %w", err)
	}
	defer sessResp.Body.Close()

	sessBody, err := io.ReadAll(sessResp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	fmt.Printf("Состояние сессии (статус %d):\n%s\n", sessResp.StatusCode, string(sessBody))
	return nil
}
