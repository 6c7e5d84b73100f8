// Пакет model — доменные модели файлового хранилища.
// FileRecord — каноническое представление файла: метаданные плюс
// ссылка на физический blob в Content Store.
package model

import (
	"fmt"
	"time"
)

// DateFormat — формат календарных дат (гранулярность — день).
// Используется для createTime в метаданных и дат в API-ответах.
const DateFormat = "2006-01-02"

// AccessLevel — уровень доступа к файлу.
type AccessLevel string

const (
	// AccessPublic — файл виден в листингах всем пользователям
	AccessPublic AccessLevel = "PUBLIC"
	// AccessPrivate — файл виден только владельцу
	AccessPrivate AccessLevel = "PRIVATE"
)

// ParseAccessLevel разбирает строковое значение уровня доступа.
func ParseAccessLevel(s string) (AccessLevel, error) {
	switch AccessLevel(s) {
	case AccessPublic, AccessPrivate:
		return AccessLevel(s), nil
	}
	return "", fmt.Errorf("недопустимый уровень доступа %q, допустимые: PUBLIC, PRIVATE", s)
}

// SortDirection — направление сортировки листинга.
type SortDirection string

const (
	// SortAsc — по возрастанию
	SortAsc SortDirection = "ASC"
	// SortDesc — по убыванию
	SortDesc SortDirection = "DESC"
)

// ParseSortDirection разбирает строковое значение направления сортировки.
func ParseSortDirection(s string) (SortDirection, error) {
	switch SortDirection(s) {
	case SortAsc, SortDesc:
		return SortDirection(s), nil
	}
	return "", fmt.Errorf("недопустимое направление сортировки %q, допустимые: ASC, DESC", s)
}

// OrderBy — поле сортировки листинга файлов.
type OrderBy string

const (
	OrderByFileName    OrderBy = "FILE_NAME"
	OrderByUploadDate  OrderBy = "UPLOAD_DATE"
	OrderByTag         OrderBy = "TAG"
	OrderByContentType OrderBy = "CONTENT_TYPE"
	OrderByFileSize    OrderBy = "FILE_SIZE"
)

// ParseOrderBy разбирает строковое значение поля сортировки.
func ParseOrderBy(s string) (OrderBy, error) {
	switch OrderBy(s) {
	case OrderByFileName, OrderByUploadDate, OrderByTag, OrderByContentType, OrderByFileSize:
		return OrderBy(s), nil
	}
	return "", fmt.Errorf("недопустимое поле сортировки %q", s)
}

// SortKey возвращает ключ метаданных, соответствующий полю сортировки.
// Сортировка по тегам не поддерживается (у файла несколько тегов,
// порядок не определён) — известное ограничение, унаследованное от
// первой версии сервиса.
func (o OrderBy) SortKey() (string, error) {
	switch o {
	case OrderByFileName:
		return KeyFileName, nil
	case OrderByUploadDate:
		return KeyCreateTime, nil
	case OrderByContentType:
		return KeyContentType, nil
	case OrderByFileSize:
		return KeyFileSize, nil
	case OrderByTag:
		return "", fmt.Errorf("сортировка по тегам не поддерживается")
	}
	return "", fmt.Errorf("неизвестное поле сортировки %q", o)
}

// Стабильные ключи документа метаданных. Контракт совместимости
// с существующим хранилищем — не переименовывать.
const (
	KeyContentType = "contentType"
	KeyOwner       = "owner"
	KeyAccessLevel = "accessLevel"
	KeyCreateTime  = "createTime"
	KeyTags        = "tags"
	KeyFileHash    = "fileHash"
	KeyID          = "id"
	KeyFileName    = "fileName"
	KeyFileSize    = "fileSize"
)

// Metadata — документ метаданных, встраиваемый в каждую запись
// Content Store. JSON-ключи — стабильный контракт хранения.
type Metadata struct {
	// ContentType — MIME-тип содержимого
	ContentType string `json:"contentType"`

	// Owner — идентификатор владельца (email, принимается как есть)
	Owner string `json:"owner"`

	// AccessLevel — уровень доступа (PUBLIC/PRIVATE)
	AccessLevel string `json:"accessLevel"`

	// CreateTime — дата создания записи (гранулярность — день)
	CreateTime string `json:"createTime"`

	// Tags — теги файла в нижнем регистре
	Tags []string `json:"tags,omitempty"`

	// FileHash — SHA-256 hex-дайджест содержимого.
	// Используется только для дедупликации, наружу не отдаётся.
	FileHash string `json:"fileHash"`

	// ID — публичный идентификатор файла (UUID v4), неизменяемый
	ID string `json:"id"`

	// FileName — имя файла, уникальное в пределах владельца
	FileName string `json:"fileName"`

	// FileSize — размер содержимого в байтах.
	// Выставляется Content Store при записи потока.
	FileSize int64 `json:"fileSize"`
}

// StoredFile — запись Content Store: handle физического blob,
// служебные атрибуты и документ метаданных.
type StoredFile struct {
	// Handle — внутренний идентификатор blob. Виден только
	// репозиторию, наружу не отдаётся.
	Handle string `json:"handle"`

	// FileName — имя, под которым blob был загружен
	FileName string `json:"file_name"`

	// Length — размер blob в байтах
	Length int64 `json:"length"`

	// UploadDate — дата и время загрузки blob (UTC).
	// Продвигается при замене содержимого — служит modifiedAt.
	UploadDate time.Time `json:"upload_date"`

	// Metadata — документ метаданных
	Metadata Metadata `json:"metadata"`
}

// FileRecord — доменная запись файла, восстановленная из StoredFile.
type FileRecord struct {
	// ID — публичный идентификатор файла
	ID string
	// Name — имя файла (формат base.ext)
	Name string
	// Size — размер содержимого в байтах
	Size int64
	// ContentType — MIME-тип
	ContentType string
	// Tags — теги в нижнем регистре
	Tags []string
	// CreatedAt — дата создания (день)
	CreatedAt time.Time
	// ModifiedAt — дата последнего изменения содержимого (день)
	ModifiedAt time.Time
	// Owner — владелец
	Owner string
	// AccessLevel — уровень доступа
	AccessLevel AccessLevel
	// ContentHash — SHA-256 hex-дайджест содержимого
	ContentHash string
	// StorageHandle — внутренний handle blob в Content Store
	StorageHandle string
}

// RecordFromStored восстанавливает доменную запись из записи Content Store.
func RecordFromStored(sf *StoredFile) (*FileRecord, error) {
	createdAt, err := time.Parse(DateFormat, sf.Metadata.CreateTime)
	if err != nil {
		return nil, fmt.Errorf("некорректная дата создания %q: %w", sf.Metadata.CreateTime, err)
	}

	return &FileRecord{
		ID:            sf.Metadata.ID,
		Name:          sf.Metadata.FileName,
		Size:          sf.Length,
		ContentType:   sf.Metadata.ContentType,
		Tags:          sf.Metadata.Tags,
		CreatedAt:     createdAt,
		ModifiedAt:    sf.UploadDate.UTC().Truncate(24 * time.Hour),
		Owner:         sf.Metadata.Owner,
		AccessLevel:   AccessLevel(sf.Metadata.AccessLevel),
		ContentHash:   sf.Metadata.FileHash,
		StorageHandle: sf.Handle,
	}, nil
}

// ToMetadata собирает документ метаданных из доменной записи.
// FileSize не заполняется — его выставляет Content Store при записи.
func (r *FileRecord) ToMetadata() Metadata {
	return Metadata{
		ContentType: r.ContentType,
		Owner:       r.Owner,
		AccessLevel: string(r.AccessLevel),
		CreateTime:  r.CreatedAt.Format(DateFormat),
		Tags:        r.Tags,
		FileHash:    r.ContentHash,
		ID:          r.ID,
		FileName:    r.Name,
	}
}
