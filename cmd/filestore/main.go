// Точка входа файлового хранилища — сервиса загрузки, хранения
// и выдачи пользовательских файлов.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/gofilestore/internal/api/handlers"
	"github.com/bigkaa/gofilestore/internal/api/middleware"
	"github.com/bigkaa/gofilestore/internal/config"
	"github.com/bigkaa/gofilestore/internal/repository"
	"github.com/bigkaa/gofilestore/internal/server"
	"github.com/bigkaa/gofilestore/internal/service"
	"github.com/bigkaa/gofilestore/internal/storage/store"
	"github.com/bigkaa/gofilestore/internal/storage/wal"
	"github.com/bigkaa/gofilestore/internal/tags"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Файловое хранилище запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("data_dir", cfg.DataDir),
	)

	// --- Инициализация компонентов ---

	// 1. Журнал операций
	journal, err := wal.New(cfg.WALDir, logger)
	if err != nil {
		logger.Error("Ошибка инициализации журнала", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Content Store и индекс метаданных
	contentStore, err := store.New(cfg.DataDir, logger)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := contentStore.BuildIndex(); err != nil {
		logger.Error("Ошибка построения индекса", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 3. Стартовая сверка: незавершённые транзакции и осиротевшие blob
	reconciler := service.NewReconciler(contentStore, journal, logger)
	if err := reconciler.Run(); err != nil {
		logger.Error("Ошибка сверки хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Метрика количества файлов после сверки
	middleware.FilesTotal.Set(float64(contentStore.Count()))

	// 4. Репозиторий и сервис
	repo := repository.New(contentStore, journal, logger)
	validator := tags.NewValidator(cfg.AllowedTags)
	fileSvc := service.NewFileService(repo, validator, logger)

	// 5. Handlers
	filesHandler := handlers.NewFilesHandler(fileSvc, cfg.MaxFileSize)
	tagsHandler := handlers.NewTagsHandler(fileSvc)
	healthHandler := handlers.NewHealthHandler(cfg.DataDir, cfg.WALDir, contentStore)

	// 6. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, filesHandler, tagsHandler, healthHandler)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Файловое хранилище остановлено")
}
