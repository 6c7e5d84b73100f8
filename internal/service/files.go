// Пакет service — бизнес-логика файлового хранилища.
// files.go — валидация, дедупликация и оркестрация операций
// загрузки, скачивания, обновления, листинга и удаления.
package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	apierrors "github.com/bigkaa/gofilestore/internal/api/errors"
	"github.com/bigkaa/gofilestore/internal/api/middleware"
	"github.com/bigkaa/gofilestore/internal/domain/model"
	"github.com/bigkaa/gofilestore/internal/hashutil"
	"github.com/bigkaa/gofilestore/internal/repository"
	"github.com/bigkaa/gofilestore/internal/tags"
)

const (
	// maxAllowedTags — максимальное количество тегов у файла.
	maxAllowedTags = 5
	// maxPageSize — максимальный размер страницы листинга.
	maxPageSize = 100
	// maxFileNameLength — предел длины имени файла; документ
	// метаданных с более длинным именем не гарантирует
	// атомарную запись attr.json.
	maxFileNameLength = 255
)

// fileNameRe — допустимый формат имени файла: base.ext,
// латиница, цифры и подчёркивание, ровно одно расширение.
var fileNameRe = regexp.MustCompile(`^[A-Za-z0-9_]+\.[A-Za-z0-9_]+$`)

// Error — ошибка сервисного слоя с HTTP-кодом.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func badRequest(message string) *Error {
	return &Error{StatusCode: 400, Code: apierrors.CodeValidationError, Message: message}
}

func conflict(message string) *Error {
	return &Error{StatusCode: 409, Code: apierrors.CodeConflict, Message: message}
}

func notFound(message string) *Error {
	return &Error{StatusCode: 404, Code: apierrors.CodeNotFound, Message: message}
}

func internal(message string) *Error {
	return &Error{StatusCode: 500, Code: apierrors.CodeInternalError, Message: message}
}

// UploadMeta — метаданные загрузки, поступающие от клиента.
type UploadMeta struct {
	// AccessLevel — уровень доступа (PUBLIC/PRIVATE)
	AccessLevel model.AccessLevel
	// FileName — имя файла в формате base.ext
	FileName string
	// Tags — теги (опционально)
	Tags []string
	// ContentTypeHint — задекларированный MIME-тип из multipart part.
	// При пустом значении тип определяется по сигнатуре байтов.
	ContentTypeHint string
}

// UploadResponse — результат загрузки файла.
type UploadResponse struct {
	FileDownloadURL string `json:"fileDownloadUrl"`
	FileID          string `json:"fileId"`
}

// DownloadResult — содержимое файла и исходное имя для отдачи клиенту.
type DownloadResult struct {
	Content     []byte
	FileName    string
	ContentType string
}

// FileInfo — элемент листинга файлов.
type FileInfo struct {
	FileDownloadURL  string   `json:"fileDownloadUrl"`
	FileID           string   `json:"fileId"`
	FileName         string   `json:"fileName"`
	Size             int64    `json:"size"`
	ContentType      string   `json:"contentType"`
	Tags             []string `json:"tags,omitempty"`
	CreationTime     string   `json:"creationTime"`
	ModificationTime string   `json:"modificationTime"`
	Owner            string   `json:"owner"`
}

// FileService — сервис файловых операций.
type FileService struct {
	repo      *repository.Repository
	validator *tags.Validator
	logger    *slog.Logger
}

// NewFileService создаёт сервис файловых операций.
// validator — неизменяемый allow-list тегов, внедряется при создании.
func NewFileService(repo *repository.Repository, validator *tags.Validator, logger *slog.Logger) *FileService {
	return &FileService{
		repo:      repo,
		validator: validator,
		logger:    logger.With(slog.String("component", "file_service")),
	}
}

// UploadFile загружает новый файл.
//
// Поток проверок (каждое нарушение — своя ошибка, short-circuit):
//  1. Пустое содержимое
//  2. Формат имени файла
//  3. Количество и словарь тегов
//  4. SHA-256 содержимого
//  5. Коллизии (owner, name) и (owner, hash) — сообщение конфликта
//     собирается из обеих фраз до проверки
//  6. Генерация id, дат, определение Content-Type
//  7. Приведение тегов к нижнему регистру
//  8. Сохранение через репозиторий
func (s *FileService) UploadFile(content []byte, meta UploadMeta, ownerEmail, downloadPathPrefix string) (*UploadResponse, *Error) {
	// 1. Пустой файл не принимается
	if len(content) == 0 {
		return nil, badRequest("Файл пуст")
	}

	// 2. Формат и длина имени: base.ext
	if !fileNameRe.MatchString(meta.FileName) {
		return nil, badRequest("Имя файла должно иметь формат file_name.extension")
	}
	if len(meta.FileName) > maxFileNameLength {
		return nil, badRequest(fmt.Sprintf("Имя файла не может быть длиннее %d символов", maxFileNameLength))
	}

	// 3. Теги: количество и словарь
	if len(meta.Tags) > maxAllowedTags {
		return nil, badRequest(fmt.Sprintf("Слишком много тегов, максимум %d", maxAllowedTags))
	}
	for _, tag := range meta.Tags {
		if !s.validator.IsValid(tag) {
			return nil, badRequest(fmt.Sprintf("Недопустимый тег: %s", tag))
		}
	}

	// 4. Отпечаток содержимого
	hash, err := hashutil.SHA256Hex(bytes.NewReader(content))
	if err != nil {
		s.logger.Error("Ошибка вычисления отпечатка", slog.String("error", err.Error()))
		return nil, internal("Внутренняя ошибка хранилища")
	}

	// 5. Обе фразы конфликта собираются до принятия решения;
	// от результата проверок зависит только само решение
	namePhrase := " "
	if s.repo.ExistsByName(meta.FileName, ownerEmail) {
		namePhrase = "Файл с таким именем уже существует. "
	}
	hashPhrase := " "
	if s.repo.ExistsByHash(hash, ownerEmail) {
		hashPhrase = "Такой же файл уже загружен. "
	}
	if strings.TrimSpace(namePhrase) != "" || strings.TrimSpace(hashPhrase) != "" {
		middleware.OperationsTotal.WithLabelValues("upload", "conflict").Inc()
		return nil, conflict(namePhrase + hashPhrase)
	}

	// 6. Идентификатор, даты, Content-Type
	fileID := uuid.New().String()
	today := time.Now().UTC().Truncate(24 * time.Hour)
	contentType := detectContentType(meta.ContentTypeHint, content)

	// 7. Теги приводятся к нижнему регистру перед сохранением
	lowered := lowerTags(meta.Tags)

	rec := &model.FileRecord{
		ID:          fileID,
		Name:        meta.FileName,
		ContentType: contentType,
		Tags:        lowered,
		CreatedAt:   today,
		ModifiedAt:  today,
		Owner:       ownerEmail,
		AccessLevel: meta.AccessLevel,
		ContentHash: hash,
	}

	// 8. Сохранение: документ метаданных и blob одной операцией
	if err := s.repo.Upload(rec, bytes.NewReader(content), hash, ownerEmail); err != nil {
		middleware.OperationsTotal.WithLabelValues("upload", "error").Inc()
		s.logger.Error("Ошибка сохранения файла",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		return nil, internal("Внутренняя ошибка хранилища")
	}

	middleware.OperationsTotal.WithLabelValues("upload", "success").Inc()
	middleware.FilesTotal.Set(float64(s.repo.Count()))

	s.logger.Info("Файл загружен",
		slog.String("file_id", fileID),
		slog.String("file_name", meta.FileName),
		slog.Int64("size", rec.Size),
		slog.String("owner", ownerEmail),
		slog.String("access_level", string(meta.AccessLevel)),
	)

	return &UploadResponse{
		FileDownloadURL: downloadURL(downloadPathPrefix, fileID),
		FileID:          fileID,
	}, nil
}

// DownloadFile отдаёт содержимое файла по публичному идентификатору.
// Проверка владельца не выполняется намеренно: скачивание по id
// доступно любому, у кого есть ссылка.
func (s *FileService) DownloadFile(fileID string) (*DownloadResult, *Error) {
	s.logger.Info("Запрос скачивания", slog.String("file_id", fileID))

	rec, err := s.repo.FindByID(fileID)
	if err != nil {
		s.logger.Error("Ошибка поиска файла",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		return nil, internal("Внутренняя ошибка хранилища")
	}
	if rec == nil {
		return nil, badRequest("Файл не найден")
	}

	content, err := s.repo.DownloadToBuffer(rec.StorageHandle)
	if err != nil {
		s.logger.Error("Ошибка чтения blob",
			slog.String("file_id", fileID),
			slog.String("handle", rec.StorageHandle),
			slog.String("error", err.Error()),
		)
		return nil, internal("Внутренняя ошибка хранилища")
	}

	middleware.OperationsTotal.WithLabelValues("download", "success").Inc()

	return &DownloadResult{
		Content:     content,
		FileName:    rec.Name,
		ContentType: rec.ContentType,
	}, nil
}

// UpdateFile обновляет имя и/или содержимое существующего файла.
// Отсутствующие поля передаются репозиторию пустыми — он сам выбирает
// лёгкий (только документ метаданных) или тяжёлый (перезагрузка blob)
// путь.
func (s *FileService) UpdateFile(ownerEmail, fileID, newName string, newContent []byte) *Error {
	// 1. Запись должна существовать у данного владельца
	existing, err := s.repo.FindByIDAndOwner(fileID, ownerEmail)
	if err != nil {
		s.logger.Error("Ошибка поиска файла",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		return internal("Внутренняя ошибка хранилища")
	}
	if existing == nil {
		return notFound("Файл для обновления не найден")
	}

	// 2. Новое имя: формат, длина и уникальность в пределах владельца
	nameChanged := newName != "" && newName != existing.Name
	if nameChanged {
		if !fileNameRe.MatchString(newName) {
			return badRequest("Имя файла должно иметь формат file_name.extension")
		}
		if len(newName) > maxFileNameLength {
			return badRequest(fmt.Sprintf("Имя файла не может быть длиннее %d символов", maxFileNameLength))
		}
		if s.repo.ExistsByName(newName, ownerEmail) {
			return conflict("Файл с таким именем уже существует.")
		}
	}

	// 3. Новое содержимое: непустое и без дубликата по отпечатку
	var newHash string
	if newContent != nil {
		if len(newContent) == 0 {
			return badRequest("Файл пуст")
		}
		newHash, err = hashutil.SHA256Hex(bytes.NewReader(newContent))
		if err != nil {
			s.logger.Error("Ошибка вычисления отпечатка", slog.String("error", err.Error()))
			return internal("Внутренняя ошибка хранилища")
		}
		if s.repo.ExistsByHash(newHash, ownerEmail) {
			return conflict("Такой же файл уже загружен.")
		}
	}

	// 4. Делегируем репозиторию; неизменённые поля — пустые
	var contentReader *bytes.Reader
	if newContent != nil {
		contentReader = bytes.NewReader(newContent)
	}
	if err := s.repo.Update(existing, newName, newHash, readerOrNil(contentReader)); err != nil {
		middleware.OperationsTotal.WithLabelValues("update", "error").Inc()
		return s.mapRepoError(err, fileID)
	}

	middleware.OperationsTotal.WithLabelValues("update", "success").Inc()

	s.logger.Info("Файл обновлён",
		slog.String("file_id", fileID),
		slog.Bool("name_changed", nameChanged),
		slog.Bool("content_changed", newContent != nil),
	)

	return nil
}

// GetFileList возвращает страницу листинга с download-ссылкой
// на каждый элемент.
func (s *FileService) GetFileList(ownerEmail string, level model.AccessLevel, tagSet []string,
	orderBy *model.OrderBy, direction *model.SortDirection, page, size int, downloadPathPrefix string) ([]FileInfo, *Error) {

	// Ограничение размера страницы проверяется до запроса
	if size > maxPageSize {
		return nil, badRequest(fmt.Sprintf("Размер страницы не может превышать %d", maxPageSize))
	}

	records, err := s.repo.ListPaginated(ownerEmail, level, tagSet, orderBy, direction, page, size)
	if err != nil {
		return nil, s.mapRepoError(err, "")
	}

	result := make([]FileInfo, 0, len(records))
	for _, rec := range records {
		result = append(result, FileInfo{
			FileDownloadURL:  downloadURL(downloadPathPrefix, rec.ID),
			FileID:           rec.ID,
			FileName:         rec.Name,
			Size:             rec.Size,
			ContentType:      rec.ContentType,
			Tags:             rec.Tags,
			CreationTime:     rec.CreatedAt.Format(model.DateFormat),
			ModificationTime: rec.ModifiedAt.Format(model.DateFormat),
			Owner:            rec.Owner,
		})
	}

	return result, nil
}

// DeleteFile удаляет файл владельца: blob и метаданные, без tombstone.
func (s *FileService) DeleteFile(ownerEmail, fileID string) *Error {
	if err := s.repo.Delete(fileID, ownerEmail); err != nil {
		middleware.OperationsTotal.WithLabelValues("delete", "error").Inc()
		return s.mapRepoError(err, fileID)
	}

	middleware.OperationsTotal.WithLabelValues("delete", "success").Inc()
	middleware.FilesTotal.Set(float64(s.repo.Count()))

	s.logger.Info("Файл удалён",
		slog.String("file_id", fileID),
		slog.String("owner", ownerEmail),
	)

	return nil
}

// AllowedTags возвращает словарь разрешённых тегов.
func (s *FileService) AllowedTags() []string {
	return s.validator.Allowed()
}

// mapRepoError сопоставляет ошибки репозитория с ошибками сервиса.
// Детали внутренних ошибок остаются в логах и не покидают границу API.
func (s *FileService) mapRepoError(err error, fileID string) *Error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFound("Файл не найден")
	case errors.Is(err, repository.ErrMissingDirection):
		return badRequest("Направление сортировки должно быть задано вместе с полем сортировки")
	case errors.Is(err, repository.ErrInvalidOrder):
		return badRequest(err.Error())
	default:
		s.logger.Error("Ошибка репозитория",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		return internal("Внутренняя ошибка хранилища")
	}
}

// downloadURL собирает download-ссылку для файла.
func downloadURL(prefix, fileID string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + fileID
}

// lowerTags приводит теги к нижнему регистру.
func lowerTags(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, t := range in {
		out = append(out, strings.ToLower(t))
	}
	return out
}

// detectContentType выбирает MIME-тип содержимого.
// Политика: задекларированный тип имеет приоритет (параметры вида
// charset отбрасываются); при пустом типе выполняется определение
// по сигнатуре байтов.
func detectContentType(declared string, content []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" {
		if i := strings.Index(declared, ";"); i != -1 {
			declared = strings.TrimSpace(declared[:i])
		}
		return declared
	}
	return mimetype.Detect(content).String()
}

// readerOrNil возвращает типизированный nil-интерфейс для отсутствующего
// содержимого: иначе nil *bytes.Reader в io.Reader был бы ненулевым.
func readerOrNil(r *bytes.Reader) io.Reader {
	if r == nil {
		return nil
	}
	return r
}
