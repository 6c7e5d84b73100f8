// Пакет store — Content Store: durable-хранилище blob с документами
// метаданных, адресуемое opaque handle.
//
// Состав: blobstore (физические blob), attr (документы метаданных
// на диске), index (in-memory запросы по фильтру). Контракт:
// потоковая загрузка, скачивание в буфер, поиск по фильтру
// с сортировкой/skip/limit, атомарная замена документа метаданных,
// удаление по handle.
package store

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bigkaa/gofilestore/internal/domain/model"
	"github.com/bigkaa/gofilestore/internal/storage/attr"
	"github.com/bigkaa/gofilestore/internal/storage/blobstore"
	"github.com/bigkaa/gofilestore/internal/storage/index"
)

// Store — Content Store на локальном диске.
type Store struct {
	blobs   *blobstore.BlobStore
	idx     *index.Index
	dataDir string
	logger  *slog.Logger
}

// New создаёт Content Store поверх указанной директории.
// Индекс пустой — для заполнения вызовите BuildIndex.
func New(dataDir string, logger *slog.Logger) (*Store, error) {
	blobs, err := blobstore.New(dataDir)
	if err != nil {
		return nil, err
	}

	return &Store{
		blobs:   blobs,
		idx:     index.New(logger),
		dataDir: dataDir,
		logger:  logger.With(slog.String("component", "content_store")),
	}, nil
}

// BuildIndex строит in-memory индекс из attr.json файлов.
// Вызывается при старте, до приёма запросов.
func (s *Store) BuildIndex() error {
	return s.idx.BuildFromDir(s.dataDir)
}

// IndexReady возвращает true, если индекс построен.
func (s *Store) IndexReady() bool {
	return s.idx.IsReady()
}

// Count возвращает количество записей в хранилище.
func (s *Store) Count() int {
	return s.idx.Count()
}

// Upload принимает поток, записывает blob и документ метаданных,
// возвращает созданную запись. FileSize в документе выставляется
// из фактически записанного размера потока.
//
// Порядок: blob → attr.json → индекс. При ошибке записи attr.json
// blob удаляется, запись не становится видимой.
func (s *Store) Upload(fileName string, r io.Reader, md model.Metadata) (*model.StoredFile, error) {
	saved, err := s.blobs.Save(r)
	if err != nil {
		return nil, fmt.Errorf("ошибка записи blob: %w", err)
	}

	md.FileSize = saved.Size

	sf := &model.StoredFile{
		Handle:     saved.Handle,
		FileName:   fileName,
		Length:     saved.Size,
		UploadDate: time.Now().UTC(),
		Metadata:   md,
	}

	if err := attr.Write(s.dataDir, sf); err != nil {
		// Blob без attr.json не существует с точки зрения хранилища
		if delErr := s.blobs.Delete(saved.Handle); delErr != nil {
			s.logger.Error("Не удалось удалить blob после ошибки записи метаданных",
				slog.String("handle", saved.Handle),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("ошибка записи метаданных: %w", err)
	}

	s.idx.Add(sf)

	return sf, nil
}

// DownloadToBuffer читает blob целиком в память.
func (s *Store) DownloadToBuffer(handle string) ([]byte, error) {
	return s.blobs.ReadAll(handle)
}

// Find возвращает записи по фильтру с сортировкой и пагинацией.
func (s *Store) Find(f index.Filter, opts index.FindOptions) []*model.StoredFile {
	return s.idx.Find(f, opts)
}

// FindOne возвращает первую запись по фильтру или nil.
func (s *Store) FindOne(f index.Filter) *model.StoredFile {
	found := s.idx.Find(f, index.FindOptions{Limit: 1})
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

// Exists проверяет наличие хотя бы одной записи по фильтру.
func (s *Store) Exists(f index.Filter) bool {
	return s.FindOne(f) != nil
}

// UpdateMetadata атомарно заменяет документ метаданных записи.
// fileName, если непустой, заменяет и имя записи. Содержимое blob
// и дата загрузки не меняются. Возвращает количество затронутых
// записей: 0, если handle не найден (stale/гонка), иначе 1.
func (s *Store) UpdateMetadata(handle, fileName string, md model.Metadata) (int, error) {
	sf := s.idx.Get(handle)
	if sf == nil {
		return 0, nil
	}

	sf.Metadata = md
	if fileName != "" {
		sf.FileName = fileName
	}

	if err := attr.Write(s.dataDir, sf); err != nil {
		return 0, fmt.Errorf("ошибка записи метаданных: %w", err)
	}

	if err := s.idx.Update(sf); err != nil {
		return 0, fmt.Errorf("ошибка обновления индекса: %w", err)
	}

	return 1, nil
}

// Delete удаляет запись: blob, attr.json и элемент индекса.
// Возвращает ошибку, если handle не найден.
func (s *Store) Delete(handle string) error {
	sf := s.idx.Get(handle)
	if sf == nil && !s.blobs.Exists(handle) {
		return fmt.Errorf("запись %s не найдена", handle)
	}

	if s.blobs.Exists(handle) {
		if err := s.blobs.Delete(handle); err != nil {
			return fmt.Errorf("ошибка удаления blob %s: %w", handle, err)
		}
	}

	if err := attr.Delete(s.dataDir, handle); err != nil {
		return err
	}

	s.idx.Remove(handle)
	return nil
}

// BlobHandles возвращает идентификаторы всех blob на диске.
// Используется сверкой для поиска осиротевших blob.
func (s *Store) BlobHandles() ([]string, error) {
	return s.blobs.Handles()
}

// HasBlob проверяет существование blob на диске.
func (s *Store) HasBlob(handle string) bool {
	return s.blobs.Exists(handle)
}

// Get возвращает запись по handle или nil.
func (s *Store) Get(handle string) *model.StoredFile {
	return s.idx.Get(handle)
}

// DataDir возвращает путь к директории данных.
func (s *Store) DataDir() string {
	return s.dataDir
}
