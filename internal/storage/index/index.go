// Пакет index — потокобезопасный in-memory индекс записей Content Store.
//
// Индекс строится при старте из attr.json файлов (BuildFromDir)
// и обновляется синхронно при операциях записи (Add, Update, Remove).
// Реализует запрос по фильтру метаданных с сортировкой, skip и limit
// без обращения к диску.
//
// Не персистентный: при рестарте пересобирается из attr.json.
package index

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/bigkaa/gofilestore/internal/domain/model"
	"github.com/bigkaa/gofilestore/internal/storage/attr"
)

// Filter — фильтр записей по полям документа метаданных.
// Непустые поля объединяются по И; AnyTags — вхождение любого
// из тегов (регистронезависимо).
type Filter struct {
	ID          string
	Owner       string
	FileName    string
	FileHash    string
	AccessLevel string
	AnyTags     []string
}

// FindOptions — сортировка и пагинация результата Find.
type FindOptions struct {
	// SortKey — ключ документа метаданных (model.Key*).
	// Пустая строка — порядок по дате загрузки, новые первые.
	SortKey string
	// Descending — сортировка по убыванию
	Descending bool
	// Skip — количество пропускаемых записей
	Skip int
	// Limit — максимальное количество записей (0 = без ограничения)
	Limit int
}

// Index — потокобезопасный in-memory индекс записей.
// Использует sync.RWMutex для конкурентного чтения и
// эксклюзивной записи.
type Index struct {
	mu     sync.RWMutex
	files  map[string]*model.StoredFile // handle → запись
	ready  bool                         // индекс построен и готов
	logger *slog.Logger
}

// New создаёт пустой индекс. Для заполнения вызовите BuildFromDir.
func New(logger *slog.Logger) *Index {
	return &Index{
		files:  make(map[string]*model.StoredFile),
		logger: logger.With(slog.String("component", "index")),
	}
}

// BuildFromDir строит индекс из attr.json файлов в указанной директории.
// Вызывается при старте сервера. Заменяет текущее содержимое индекса.
// После успешного построения индекс помечается как ready.
func (idx *Index) BuildFromDir(dataDir string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	stored, err := attr.ScanDir(dataDir)
	if err != nil {
		return fmt.Errorf("ошибка сканирования директории %s: %w", dataDir, err)
	}

	idx.files = make(map[string]*model.StoredFile, len(stored))
	for _, sf := range stored {
		idx.files[sf.Handle] = sf
	}

	idx.ready = true

	idx.logger.Info("Индекс метаданных построен",
		slog.Int("files", len(idx.files)),
		slog.String("data_dir", dataDir),
	)

	return nil
}

// IsReady возвращает true, если индекс построен и готов к использованию.
func (idx *Index) IsReady() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.ready
}

// Add добавляет запись в индекс.
// Если запись с таким handle уже существует, она будет перезаписана.
func (idx *Index) Add(sf *model.StoredFile) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	// Создаём копию, чтобы избежать data race при внешних изменениях
	copied := *sf
	idx.files[sf.Handle] = &copied
}

// Update обновляет запись в индексе.
// Возвращает ошибку, если запись не найдена.
func (idx *Index) Update(sf *model.StoredFile) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.files[sf.Handle]; !ok {
		return fmt.Errorf("запись %s не найдена в индексе", sf.Handle)
	}

	copied := *sf
	idx.files[sf.Handle] = &copied
	return nil
}

// Remove удаляет запись из индекса по handle.
// Возвращает true, если запись была найдена и удалена.
func (idx *Index) Remove(handle string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.files[handle]; !ok {
		return false
	}
	delete(idx.files, handle)
	return true
}

// Get возвращает запись по handle.
// Возвращает nil, если запись не найдена.
func (idx *Index) Get(handle string) *model.StoredFile {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	sf, ok := idx.files[handle]
	if !ok {
		return nil
	}

	// Возвращаем копию для потокобезопасности
	copied := *sf
	return &copied
}

// Find возвращает записи, удовлетворяющие фильтру, с сортировкой
// и пагинацией согласно opts.
func (idx *Index) Find(filter Filter, opts FindOptions) []*model.StoredFile {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var matched []*model.StoredFile
	for _, sf := range idx.files {
		if !matches(sf, filter) {
			continue
		}
		copied := *sf
		matched = append(matched, &copied)
	}

	sortStored(matched, opts)

	// Применяем пагинацию; отрицательный Skip означает смещение
	// за пределами адресуемого диапазона
	if opts.Skip < 0 || opts.Skip >= len(matched) {
		return nil
	}

	end := len(matched)
	if opts.Limit > 0 && opts.Skip+opts.Limit < end {
		end = opts.Skip + opts.Limit
	}

	return matched[opts.Skip:end]
}

// Count возвращает общее количество записей в индексе.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.files)
}

// matches проверяет запись на соответствие фильтру.
func matches(sf *model.StoredFile, f Filter) bool {
	md := sf.Metadata
	if f.ID != "" && md.ID != f.ID {
		return false
	}
	if f.Owner != "" && md.Owner != f.Owner {
		return false
	}
	if f.FileName != "" && md.FileName != f.FileName {
		return false
	}
	if f.FileHash != "" && md.FileHash != f.FileHash {
		return false
	}
	if f.AccessLevel != "" && md.AccessLevel != f.AccessLevel {
		return false
	}
	if len(f.AnyTags) > 0 && !hasAnyTag(md.Tags, f.AnyTags) {
		return false
	}
	return true
}

// hasAnyTag проверяет наличие хотя бы одного из искомых тегов
// (регистронезависимо).
func hasAnyTag(tags, wanted []string) bool {
	for _, w := range wanted {
		for _, t := range tags {
			if strings.EqualFold(t, w) {
				return true
			}
		}
	}
	return false
}

// sortStored сортирует записи согласно opts.
// Без ключа сортировки — по дате загрузки, новые первые.
func sortStored(files []*model.StoredFile, opts FindOptions) {
	if opts.SortKey == "" {
		sort.Slice(files, func(i, j int) bool {
			return files[i].UploadDate.After(files[j].UploadDate)
		})
		return
	}

	less := lessBySortKey(opts.SortKey)
	sort.SliceStable(files, func(i, j int) bool {
		if opts.Descending {
			i, j = j, i
		}
		return less(files[i], files[j])
	})
}

// lessBySortKey возвращает компаратор для ключа документа метаданных.
// Неизвестный ключ сортирует по дате загрузки.
func lessBySortKey(key string) func(a, b *model.StoredFile) bool {
	switch key {
	case model.KeyFileName:
		return func(a, b *model.StoredFile) bool {
			return a.Metadata.FileName < b.Metadata.FileName
		}
	case model.KeyCreateTime:
		// Даты в формате YYYY-MM-DD упорядочены лексикографически
		return func(a, b *model.StoredFile) bool {
			return a.Metadata.CreateTime < b.Metadata.CreateTime
		}
	case model.KeyContentType:
		return func(a, b *model.StoredFile) bool {
			return a.Metadata.ContentType < b.Metadata.ContentType
		}
	case model.KeyFileSize:
		return func(a, b *model.StoredFile) bool {
			return a.Metadata.FileSize < b.Metadata.FileSize
		}
	default:
		return func(a, b *model.StoredFile) bool {
			return a.UploadDate.Before(b.UploadDate)
		}
	}
}
