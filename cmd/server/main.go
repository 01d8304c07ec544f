package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"video-annotator-go/internal/client"
	"video-annotator-go/internal/config"
	"video-annotator-go/internal/database"
	"video-annotator-go/internal/handler"
	"video-annotator-go/internal/repository"
	"video-annotator-go/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	// Инициализируем логгер
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.Info("Запуск Video Annotator API Server")

	// Получаем конфигурацию из переменных окружения
	cfg := config.LoadConfig()

	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	// Инициализируем базу данных
	logger.Info("Подключение к базе данных...")
	if err := database.Connect(); err != nil {
		logger.Fatalf("Ошибка подключения к базе данных: %v", err)
	}

	// Выполняем миграции
	logger.Info("Выполнение миграций базы данных...")
	if err := database.Migrate(); err != nil {
		logger.Fatalf("Ошибка выполнения миграций: %v", err)
	}

	// Проверяем здоровье базы данных
	if err := database.HealthCheck(); err != nil {
		logger.Fatalf("База данных недоступна: %v", err)
	}

	logger.Info("База данных успешно подключена и готова к работе")

	// Подключаемся к Redis (отметки разрешенных кадров)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warnf("Redis недоступен, отметки разрешенных кадров работать не будут: %v", err)
	} else {
		logger.Info("Redis успешно подключен")
	}
	cancel()

	// Инициализируем репозитории
	documentRepo := repository.NewDocumentRepository(database.DB)
	resolvedStore := repository.NewResolvedStore(redisClient)

	// Инициализируем клиент Python сервиса детекции
	detectorClient := client.NewDetectorAPIClient(
		cfg.DetectorAPI.BaseURL,
		time.Duration(cfg.DetectorAPI.Timeout)*time.Second,
		logger,
	)

	// Инициализируем менеджер сессий аннотирования
	manager := service.NewManager(
		documentRepo,
		resolvedStore,
		detectorClient,
		cfg.Annotation.HistoryLimit,
		cfg.Annotation.StepIntervalMs,
		cfg.DetectorAPI.Confidence,
		logger,
	)
	defer manager.CloseAll()

	// Инициализируем обработчики
	eventHub := handler.NewEventHub(logger)
	sessionHandler := handler.NewSessionHandler(manager, detectorClient, eventHub, logger)

	// Настраиваем Gin router
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Добавляем middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Регистрируем маршруты
	sessionHandler.RegisterRoutes(router)

	// Добавляем базовый маршрут для проверки
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Video Annotator API Server",
			"version": "1.0.0",
			"status":  "running",
		})
	})

	// Запускаем сервер
	serverAddr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Infof("Сервер запущен на порту %s", cfg.Server.Port)
	logger.Infof("API доступно по адресу: http://localhost:%s/api/v1", cfg.Server.Port)

	if err := router.Run(serverAddr); err != nil {
		logger.Fatalf("Ошибка запуска сервера: %v", err)
	}
}

// corsMiddleware добавляет заголовки CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
