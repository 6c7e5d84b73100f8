// files.go — HTTP handlers для файловых операций.
// Upload, Download, Update, List, Delete. Handlers только связывают
// HTTP с сервисным слоем, бизнес-правила живут в service.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/gofilestore/internal/api/errors"
	"github.com/bigkaa/gofilestore/internal/domain/model"
	"github.com/bigkaa/gofilestore/internal/service"
)

// DownloadPathPrefix — префикс download-ссылок, отдаваемых клиенту.
const DownloadPathPrefix = "/api/v1/files/download"

const (
	// defaultPageSize — размер страницы листинга по умолчанию.
	defaultPageSize = 50
	// multipartMemory — буфер парсинга multipart form в памяти.
	multipartMemory = 32 << 20 // 32 MB
)

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	svc         *service.FileService
	maxFileSize int64
}

// NewFilesHandler создаёт обработчик файловых endpoints.
// maxFileSize — ограничение размера загружаемого файла в байтах,
// 0 отключает проверку.
func NewFilesHandler(svc *service.FileService, maxFileSize int64) *FilesHandler {
	return &FilesHandler{
		svc:         svc,
		maxFileSize: maxFileSize,
	}
}

// UploadFile обрабатывает POST /api/v1/files/upload.
// Multipart form: file (обязательно), email (обязательно),
// accessLevel (обязательно), fileName (опционально, иначе имя part),
// tags (опционально, повторяемое или через запятую).
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	// Тело ограничивается с запасом на заголовки multipart
	if h.maxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartMemory)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.FileTooLarge(w, fmt.Sprintf("Размер файла превышает %d байт", h.maxFileSize))
			return
		}
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	if h.maxFileSize > 0 && header.Size > h.maxFileSize {
		apierrors.FileTooLarge(w, fmt.Sprintf("Размер файла превышает %d байт", h.maxFileSize))
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	if email == "" {
		apierrors.ValidationError(w, "Поле 'email' обязательно")
		return
	}

	level, err := model.ParseAccessLevel(r.FormValue("accessLevel"))
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	fileName := strings.TrimSpace(r.FormValue("fileName"))
	if fileName == "" {
		fileName = header.Filename
	}

	content, err := io.ReadAll(file)
	if err != nil {
		apierrors.InternalError(w, "Ошибка чтения содержимого файла")
		return
	}

	resp, svcErr := h.svc.UploadFile(content, service.UploadMeta{
		AccessLevel:     level,
		FileName:        fileName,
		Tags:            formTags(r),
		ContentTypeHint: header.Header.Get("Content-Type"),
	}, email, DownloadPathPrefix)
	if svcErr != nil {
		apierrors.WriteError(w, svcErr.StatusCode, svcErr.Code, svcErr.Message)
		return
	}

	w.Header().Set("Location", resp.FileDownloadURL)
	writeJSON(w, http.StatusCreated, resp)
}

// DownloadFile обрабатывает GET /api/v1/files/download/{fileId}.
// Отдаёт содержимое целиком с Content-Disposition attachment.
func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileId")

	res, svcErr := h.svc.DownloadFile(fileID)
	if svcErr != nil {
		apierrors.WriteError(w, svcErr.StatusCode, svcErr.Code, svcErr.Message)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.FileName))
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Content)
}

// UpdateFile обрабатывает PATCH /api/v1/files/{fileId}.
// Multipart form: email (обязательно), fileName (опционально),
// file (опционально — замена содержимого).
func (h *FilesHandler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileId")

	if h.maxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartMemory)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.FileTooLarge(w, fmt.Sprintf("Размер файла превышает %d байт", h.maxFileSize))
			return
		}
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	if email == "" {
		apierrors.ValidationError(w, "Поле 'email' обязательно")
		return
	}

	newName := strings.TrimSpace(r.FormValue("fileName"))

	// Part file опционален: его отсутствие означает обновление
	// только метаданных
	var content []byte
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		if h.maxFileSize > 0 && header.Size > h.maxFileSize {
			apierrors.FileTooLarge(w, fmt.Sprintf("Размер файла превышает %d байт", h.maxFileSize))
			return
		}
		content, err = io.ReadAll(file)
		if err != nil {
			apierrors.InternalError(w, "Ошибка чтения содержимого файла")
			return
		}
	case errors.Is(err, http.ErrMissingFile):
		// содержимое не меняется
	default:
		apierrors.ValidationError(w, fmt.Sprintf("Ошибка чтения part 'file': %s", err.Error()))
		return
	}

	if svcErr := h.svc.UpdateFile(email, fileID, newName, content); svcErr != nil {
		apierrors.WriteError(w, svcErr.StatusCode, svcErr.Code, svcErr.Message)
		return
	}

	writeText(w, http.StatusOK, "File updated")
}

// ListFiles обрабатывает GET /api/v1/files.
// Query: email (обязательно), accessLevel (обязательно),
// page (default 0), size (default 50), sortBy, order, tag (повторяемый).
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	email := strings.TrimSpace(q.Get("email"))
	if email == "" {
		apierrors.ValidationError(w, "Параметр 'email' обязателен")
		return
	}

	level, err := model.ParseAccessLevel(q.Get("accessLevel"))
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	page := 0
	if s := q.Get("page"); s != "" {
		page, err = strconv.Atoi(s)
		if err != nil || page < 0 {
			apierrors.ValidationError(w, "Параметр 'page' должен быть неотрицательным числом")
			return
		}
	}

	size := defaultPageSize
	if s := q.Get("size"); s != "" {
		size, err = strconv.Atoi(s)
		if err != nil || size <= 0 {
			apierrors.ValidationError(w, "Параметр 'size' должен быть положительным числом")
			return
		}
	}

	var orderBy *model.OrderBy
	if s := q.Get("sortBy"); s != "" {
		v, err := model.ParseOrderBy(s)
		if err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
		orderBy = &v
	}

	var direction *model.SortDirection
	if s := q.Get("order"); s != "" {
		v, err := model.ParseSortDirection(s)
		if err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
		direction = &v
	}

	files, svcErr := h.svc.GetFileList(email, level, q["tag"], orderBy, direction, page, size, DownloadPathPrefix)
	if svcErr != nil {
		apierrors.WriteError(w, svcErr.StatusCode, svcErr.Code, svcErr.Message)
		return
	}

	writeJSON(w, http.StatusOK, files)
}

// DeleteFile обрабатывает DELETE /api/v1/files/{fileId}?email=.
// Удаление физическое: blob и метаданные, без tombstone.
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileId")

	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		apierrors.ValidationError(w, "Параметр 'email' обязателен")
		return
	}

	if svcErr := h.svc.DeleteFile(email, fileID); svcErr != nil {
		apierrors.WriteError(w, svcErr.StatusCode, svcErr.Code, svcErr.Message)
		return
	}

	writeText(w, http.StatusOK, "File deleted")
}

// formTags собирает теги из multipart form: повторяемые значения
// и значения через запятую, пустые отбрасываются.
func formTags(r *http.Request) []string {
	if r.MultipartForm == nil {
		return nil
	}
	var out []string
	for _, raw := range r.MultipartForm.Value["tags"] {
		for _, t := range strings.Split(raw, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

// writeJSON записывает JSON-ответ.
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeText записывает текстовый ответ.
func writeText(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(body))
}
