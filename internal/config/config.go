package config

import (
	"os"
	"strconv"
)

// Config структура конфигурации приложения
type Config struct {
	Server struct {
		Port        string
		Host        string
		Environment string
	}
	DetectorAPI struct {
		BaseURL    string
		Timeout    int // в секундах
		Confidence float64
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Annotation struct {
		HistoryLimit   int // Максимальный размер истории undo/redo
		StepIntervalMs int // Такт покадрового воспроизведения в миллисекундах
	}
	Logging struct {
		Level string
	}
}

// LoadConfig загружает конфигурацию из переменных окружения
func LoadConfig() *Config {
	cfg := &Config{}

	// Конфигурация сервера
	cfg.Server.Port = getEnv("SERVER_PORT", "8080")
	cfg.Server.Host = getEnv("SERVER_HOST", "0.0.0.0")
	cfg.Server.Environment = getEnv("ENVIRONMENT", "development")

	// Конфигурация Python API детекции
	cfg.DetectorAPI.BaseURL = getEnv("PYTHON_API_BASE_URL", "http://localhost:8000")
	cfg.DetectorAPI.Timeout = getEnvInt("PYTHON_API_TIMEOUT_SECONDS", 300) // 5 минут по умолчанию
	cfg.DetectorAPI.Confidence = getEnvFloat("DETECTOR_CONFIDENCE", 0.25)

	// Конфигурация Redis (отметки разрешенных кадров)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	// Конфигурация движка аннотаций
	cfg.Annotation.HistoryLimit = getEnvInt("UNDO_HISTORY_LIMIT", 50)
	cfg.Annotation.StepIntervalMs = getEnvInt("STEP_INTERVAL_MS", 500)

	// Конфигурация логирования
	cfg.Logging.Level = getEnv("LOG_LEVEL", "info")

	return cfg
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает int значение переменной окружения или возвращает значение по умолчанию
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat получает float значение переменной окружения или возвращает значение по умолчанию
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
