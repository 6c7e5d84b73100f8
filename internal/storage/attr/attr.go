// Пакет attr — чтение и запись документов метаданных (attr.json).
// Каждый blob имеет сопутствующий {handle}.attr.json — единственный
// источник истины для метаданных записи Content Store.
// Все операции записи выполняются атомарно: temp → fsync → rename.
package attr

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bigkaa/gofilestore/internal/domain/model"
)

// AttrSuffix — суффикс файла метаданных.
const AttrSuffix = ".attr.json"

// maxAttrFileSize — максимальный допустимый размер attr.json (4 КБ).
// Ограничение гарантирует атомарность записи.
const maxAttrFileSize = 4096

// Path возвращает путь к attr.json для данного handle.
func Path(dir, handle string) string {
	return filepath.Join(dir, handle+AttrSuffix)
}

// HandleFromPath извлекает handle из пути attr.json.
// Пример: "/data/a1b2.attr.json" → "a1b2"
func HandleFromPath(attrPath string) string {
	return strings.TrimSuffix(filepath.Base(attrPath), AttrSuffix)
}

// IsAttrFile проверяет, является ли путь файлом метаданных.
func IsAttrFile(path string) bool {
	return strings.HasSuffix(path, AttrSuffix)
}

// Write атомарно записывает документ StoredFile в attr.json.
// Паттерн: JSON → temp файл → fsync → atomic rename.
// Возвращает ошибку, если сериализованные данные превышают 4 КБ.
func Write(dir string, sf *model.StoredFile) error {
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}

	// Проверка размера для гарантии атомарности
	if len(data) > maxAttrFileSize {
		return fmt.Errorf("размер attr.json (%d байт) превышает максимум (%d байт)", len(data), maxAttrFileSize)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}

	path := Path(dir, sf.Handle)
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}

// Read читает и десериализует документ StoredFile из attr.json.
func Read(path string) (*model.StoredFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения attr.json %s: %w", path, err)
	}

	var sf model.StoredFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("ошибка десериализации attr.json %s: %w", path, err)
	}

	return &sf, nil
}

// ReadByHandle читает документ StoredFile по handle.
func ReadByHandle(dir, handle string) (*model.StoredFile, error) {
	return Read(Path(dir, handle))
}

// Delete удаляет attr.json файл.
// Возвращает nil если файл уже не существует.
func Delete(dir, handle string) error {
	err := os.Remove(Path(dir, handle))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления attr.json %s: %w", handle, err)
	}
	return nil
}

// ScanDir сканирует директорию и возвращает все документы метаданных.
// Не рекурсивный — сканирует только указанную директорию.
// Невалидные attr.json пропускаются.
// Используется при построении in-memory индекса при старте.
func ScanDir(dir string) ([]*model.StoredFile, error) {
	pattern := filepath.Join(dir, "*"+AttrSuffix)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования директории %s: %w", dir, err)
	}

	var result []*model.StoredFile
	for _, path := range matches {
		sf, err := Read(path)
		if err != nil {
			// Пропускаем невалидные attr.json
			continue
		}
		result = append(result, sf)
	}

	return result, nil
}
