// Пакет repository — репозиторий метаданных файлов.
// Транслирует доменные операции (проверки уникальности, загрузка,
// поиск, обновление, листинг, удаление) в вызовы Content Store
// и восстанавливает типизированные записи из хранимых документов.
package repository

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/bigkaa/gofilestore/internal/domain/model"
	"github.com/bigkaa/gofilestore/internal/storage/index"
	"github.com/bigkaa/gofilestore/internal/storage/store"
	"github.com/bigkaa/gofilestore/internal/storage/wal"
)

// Ошибки репозитория. Сервисный слой сопоставляет их с HTTP-статусами.
var (
	// ErrNotFound — запись по заданным id/owner отсутствует
	ErrNotFound = errors.New("файл не найден")

	// ErrMissingDirection — поле сортировки задано без направления
	ErrMissingDirection = errors.New("направление сортировки должно быть задано вместе с полем сортировки")

	// ErrInvalidOrder — поле сортировки не поддерживается
	ErrInvalidOrder = errors.New("некорректные параметры сортировки")

	// ErrStaleHandle — замена документа метаданных не затронула
	// ни одной записи (handle устарел или была гонка)
	ErrStaleHandle = errors.New("обновление метаданных не затронуло ни одной записи")

	// ErrReplaceCleanup — при замене содержимого не удалось удалить
	// прежний blob; новый blob удалён компенсирующим действием
	ErrReplaceCleanup = errors.New("не удалось удалить прежний blob при замене содержимого")
)

// Repository — репозиторий метаданных поверх Content Store.
type Repository struct {
	store  *store.Store
	wal    *wal.WAL
	logger *slog.Logger
}

// New создаёт репозиторий.
func New(st *store.Store, journal *wal.WAL, logger *slog.Logger) *Repository {
	return &Repository{
		store:  st,
		wal:    journal,
		logger: logger.With(slog.String("component", "repository")),
	}
}

// ExistsByName проверяет занятость имени в пределах владельца.
func (r *Repository) ExistsByName(name, owner string) bool {
	return r.store.Exists(index.Filter{FileName: name, Owner: owner})
}

// ExistsByHash проверяет наличие содержимого с таким дайджестом
// в пределах владельца.
func (r *Repository) ExistsByHash(hash, owner string) bool {
	return r.store.Exists(index.Filter{FileHash: hash, Owner: owner})
}

// Upload создаёт запись: документ метаданных со всеми полями записи
// (включая id и дайджест) и blob из потока — одной операцией Content
// Store. Ошибки хранилища пробрасываются без преобразования.
// После успеха в rec заполняются StorageHandle и фактический Size.
func (r *Repository) Upload(rec *model.FileRecord, content io.Reader, hash, owner string) error {
	md := rec.ToMetadata()
	md.Owner = owner
	md.FileHash = hash

	entry, err := r.wal.Begin(wal.OpFileCreate, rec.ID, "")
	if err != nil {
		return fmt.Errorf("ошибка создания транзакции журнала: %w", err)
	}

	sf, err := r.store.Upload(rec.Name, content, md)
	if err != nil {
		if rbErr := r.wal.Rollback(entry.TransactionID); rbErr != nil {
			r.logger.Error("Ошибка отката журнала",
				slog.String("tx_id", entry.TransactionID),
				slog.String("error", rbErr.Error()),
			)
		}
		return err
	}

	if err := r.wal.SetNewHandle(entry.TransactionID, sf.Handle); err != nil {
		r.logger.Warn("Не удалось зафиксировать handle в журнале",
			slog.String("tx_id", entry.TransactionID),
			slog.String("error", err.Error()),
		)
	}
	if err := r.wal.Commit(entry.TransactionID); err != nil {
		// Данные уже записаны, коммит журнала — best effort
		r.logger.Error("Ошибка коммита журнала (данные сохранены)",
			slog.String("tx_id", entry.TransactionID),
			slog.String("file_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}

	rec.StorageHandle = sf.Handle
	rec.Size = sf.Length
	return nil
}

// FindByID ищет запись по публичному идентификатору.
// Отсутствие записи — нормальный исход: возвращается (nil, nil).
func (r *Repository) FindByID(id string) (*model.FileRecord, error) {
	return r.reconstruct(r.store.FindOne(index.Filter{ID: id}))
}

// FindByIDAndOwner ищет запись по идентификатору в пределах владельца.
// Отсутствие записи — нормальный исход: возвращается (nil, nil).
func (r *Repository) FindByIDAndOwner(id, owner string) (*model.FileRecord, error) {
	return r.reconstruct(r.store.FindOne(index.Filter{ID: id, Owner: owner}))
}

// DownloadToBuffer читает содержимое blob целиком в память.
// Для целевого конверта размеров буферизация приемлема; вызывающий
// код отдаёт буфер напрямую в ответ.
func (r *Repository) DownloadToBuffer(handle string) ([]byte, error) {
	return r.store.DownloadToBuffer(handle)
}

// Update обновляет запись двумя путями.
//
// Содержимое не меняется: новое имя сливается в документ метаданных,
// выполняется одна атомарная замена документа по handle; ноль
// затронутых записей — ErrStaleHandle.
//
// Содержимое меняется: новый поток загружается под новым handle
// с обновлёнными дайджестом и размером, затем прежний blob удаляется.
// Если удалить прежний blob не удалось, новый blob удаляется
// компенсирующим действием и операция завершается ErrReplaceCleanup —
// запись не должна указывать на два живых blob.
func (r *Repository) Update(existing *model.FileRecord, newName, newHash string, newContent io.Reader) error {
	md := existing.ToMetadata()
	md.FileSize = existing.Size

	if newName != "" && newName != existing.Name {
		md.FileName = newName
	}

	if newContent == nil {
		matched, err := r.store.UpdateMetadata(existing.StorageHandle, md.FileName, md)
		if err != nil {
			return err
		}
		if matched == 0 {
			return ErrStaleHandle
		}
		return nil
	}

	md.FileHash = newHash

	entry, err := r.wal.Begin(wal.OpContentReplace, existing.ID, existing.StorageHandle)
	if err != nil {
		return fmt.Errorf("ошибка создания транзакции журнала: %w", err)
	}

	sf, err := r.store.Upload(md.FileName, newContent, md)
	if err != nil {
		if rbErr := r.wal.Rollback(entry.TransactionID); rbErr != nil {
			r.logger.Error("Ошибка отката журнала",
				slog.String("tx_id", entry.TransactionID),
				slog.String("error", rbErr.Error()),
			)
		}
		return err
	}

	if err := r.wal.SetNewHandle(entry.TransactionID, sf.Handle); err != nil {
		r.logger.Warn("Не удалось зафиксировать handle в журнале",
			slog.String("tx_id", entry.TransactionID),
			slog.String("error", err.Error()),
		)
	}

	if err := r.store.Delete(existing.StorageHandle); err != nil {
		r.logger.Error("Не удалось удалить прежний blob, откатываем замену",
			slog.String("file_id", existing.ID),
			slog.String("old_handle", existing.StorageHandle),
			slog.String("new_handle", sf.Handle),
			slog.String("error", err.Error()),
		)
		if delErr := r.store.Delete(sf.Handle); delErr != nil {
			r.logger.Error("Не удалось удалить новый blob при компенсации",
				slog.String("new_handle", sf.Handle),
				slog.String("error", delErr.Error()),
			)
		}
		if rbErr := r.wal.Rollback(entry.TransactionID); rbErr != nil {
			r.logger.Error("Ошибка отката журнала",
				slog.String("tx_id", entry.TransactionID),
				slog.String("error", rbErr.Error()),
			)
		}
		return fmt.Errorf("%w: %v", ErrReplaceCleanup, err)
	}

	if err := r.wal.Commit(entry.TransactionID); err != nil {
		r.logger.Error("Ошибка коммита журнала (замена выполнена)",
			slog.String("tx_id", entry.TransactionID),
			slog.String("file_id", existing.ID),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// ListPaginated возвращает страницу записей по единому фильтру.
// PUBLIC соответствует глобальному публичному множеству независимо
// от владельца; любой другой уровень — точному совпадению владельца.
// Теги сопоставляются как «любой из» (регистронезависимо).
// Поле сортировки требует направления, пагинация — offset-based:
// пропустить page*size, взять size.
func (r *Repository) ListPaginated(owner string, level model.AccessLevel, tagSet []string,
	orderBy *model.OrderBy, direction *model.SortDirection, page, size int) ([]*model.FileRecord, error) {

	filter := index.Filter{}
	if level == model.AccessPublic {
		filter.AccessLevel = string(model.AccessPublic)
	} else {
		filter.Owner = owner
	}

	for _, t := range tagSet {
		filter.AnyTags = append(filter.AnyTags, strings.ToLower(t))
	}

	// page*size переполняется при больших номерах страниц;
	// такая страница заведомо за пределами набора
	if size > 0 && page > math.MaxInt/size {
		return []*model.FileRecord{}, nil
	}

	opts := index.FindOptions{
		Skip:  page * size,
		Limit: size,
	}
	if orderBy != nil {
		if direction == nil {
			return nil, ErrMissingDirection
		}
		key, err := orderBy.SortKey()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
		}
		opts.SortKey = key
		opts.Descending = *direction == model.SortDesc
	}

	found := r.store.Find(filter, opts)

	records := make([]*model.FileRecord, 0, len(found))
	for _, sf := range found {
		rec, err := model.RecordFromStored(sf)
		if err != nil {
			r.logger.Warn("Пропущена запись с повреждёнными метаданными",
				slog.String("handle", sf.Handle),
				slog.String("error", err.Error()),
			)
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// Delete удаляет запись по (owner, id): blob и документ метаданных.
// Без soft delete. Отсутствие записи — ErrNotFound.
func (r *Repository) Delete(id, owner string) error {
	sf := r.store.FindOne(index.Filter{ID: id, Owner: owner})
	if sf == nil {
		return ErrNotFound
	}
	return r.store.Delete(sf.Handle)
}

// Count возвращает количество записей в хранилище.
func (r *Repository) Count() int {
	return r.store.Count()
}

// reconstruct восстанавливает доменную запись из записи хранилища.
func (r *Repository) reconstruct(sf *model.StoredFile) (*model.FileRecord, error) {
	if sf == nil {
		return nil, nil
	}
	rec, err := model.RecordFromStored(sf)
	if err != nil {
		return nil, fmt.Errorf("ошибка восстановления записи: %w", err)
	}
	return rec, nil
}
