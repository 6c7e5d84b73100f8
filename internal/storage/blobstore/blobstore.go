// Пакет blobstore — операции с физическими blob на диске.
// Каждый blob хранится в отдельном файле, имя которого — opaque handle
// (UUID v4). Запись потоковая, с подсчётом SHA-256 на лету.
package blobstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// BlobSuffix — суффикс файла blob на диске.
const BlobSuffix = ".blob"

// BlobStore — хранилище физических blob в одной директории.
type BlobStore struct {
	// dataDir — корневая директория хранения (FS_DATA_DIR)
	dataDir string
}

// SaveResult — результат записи blob на диск.
type SaveResult struct {
	// Handle — сгенерированный идентификатор blob
	Handle string
	// Size — количество записанных байт
	Size int64
	// Checksum — SHA-256 hex записанных данных
	Checksum string
}

// New создаёт BlobStore. Директория создаётся, если её нет.
func New(dataDir string) (*BlobStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}
	return &BlobStore{dataDir: dataDir}, nil
}

// Save записывает данные из reader в новый blob с подсчётом SHA-256 на лету.
// Handle генерируется внутри (UUID v4) и возвращается в результате.
//
// Паттерн: temp файл → запись + SHA-256 → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (bs *BlobStore) Save(reader io.Reader) (*SaveResult, error) {
	handle := uuid.New().String()
	fullPath := bs.blobPath(handle)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	// Streaming запись с одновременным подсчётом SHA-256
	hasher := sha256.New()
	tee := io.TeeReader(reader, hasher)

	size, err := io.Copy(f, tee)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	// Атомарный rename
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		Handle:   handle,
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open открывает blob для чтения. Вызывающий код обязан закрыть файл.
func (bs *BlobStore) Open(handle string) (*os.File, error) {
	f, err := os.Open(bs.blobPath(handle))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob не найден: %s", handle)
		}
		return nil, fmt.Errorf("ошибка открытия blob %s: %w", handle, err)
	}
	return f, nil
}

// ReadAll читает содержимое blob целиком в память.
func (bs *BlobStore) ReadAll(handle string) ([]byte, error) {
	data, err := os.ReadFile(bs.blobPath(handle))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob не найден: %s", handle)
		}
		return nil, fmt.Errorf("ошибка чтения blob %s: %w", handle, err)
	}
	return data, nil
}

// Delete удаляет blob с диска.
// Возвращает ошибку, если blob не существует.
func (bs *BlobStore) Delete(handle string) error {
	err := os.Remove(bs.blobPath(handle))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("blob не найден: %s", handle)
		}
		return fmt.Errorf("ошибка удаления blob %s: %w", handle, err)
	}
	return nil
}

// Exists проверяет существование blob на диске.
func (bs *BlobStore) Exists(handle string) bool {
	_, err := os.Stat(bs.blobPath(handle))
	return err == nil
}

// Handles возвращает идентификаторы всех blob в хранилище.
// Используется при сверке для поиска осиротевших blob.
func (bs *BlobStore) Handles() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(bs.dataDir, "*"+BlobSuffix))
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования директории %s: %w", bs.dataDir, err)
	}

	handles := make([]string, 0, len(matches))
	for _, path := range matches {
		handles = append(handles, strings.TrimSuffix(filepath.Base(path), BlobSuffix))
	}
	return handles, nil
}

// DataDir возвращает путь к директории данных.
func (bs *BlobStore) DataDir() string {
	return bs.dataDir
}

// blobPath возвращает абсолютный путь файла blob.
func (bs *BlobStore) blobPath(handle string) string {
	return filepath.Join(bs.dataDir, handle+BlobSuffix)
}
