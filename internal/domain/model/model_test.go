package model

import (
	"reflect"
	"testing"
	"time"
)

// TestParseAccessLevel проверяет разбор уровня доступа.
func TestParseAccessLevel(t *testing.T) {
	if _, err := ParseAccessLevel("PUBLIC"); err != nil {
		t.Errorf("PUBLIC должен быть валидным: %v", err)
	}
	if _, err := ParseAccessLevel("PRIVATE"); err != nil {
		t.Errorf("PRIVATE должен быть валидным: %v", err)
	}
	if _, err := ParseAccessLevel("public"); err == nil {
		t.Error("значение в нижнем регистре должно быть отвергнуто")
	}
	if _, err := ParseAccessLevel(""); err == nil {
		t.Error("пустое значение должно быть отвергнуто")
	}
}

// TestOrderBy_SortKey проверяет соответствие полей сортировки
// ключам документа метаданных.
func TestOrderBy_SortKey(t *testing.T) {
	cases := []struct {
		orderBy OrderBy
		want    string
	}{
		{OrderByFileName, KeyFileName},
		{OrderByUploadDate, KeyCreateTime},
		{OrderByContentType, KeyContentType},
		{OrderByFileSize, KeyFileSize},
	}

	for _, c := range cases {
		key, err := c.orderBy.SortKey()
		if err != nil {
			t.Errorf("%s: неожиданная ошибка %v", c.orderBy, err)
			continue
		}
		if key != c.want {
			t.Errorf("%s: ожидалось %s, получено %s", c.orderBy, c.want, key)
		}
	}
}

// TestOrderBy_TagUnsupported проверяет отказ сортировки по тегам.
func TestOrderBy_TagUnsupported(t *testing.T) {
	if _, err := OrderByTag.SortKey(); err == nil {
		t.Error("сортировка по тегам должна возвращать ошибку")
	}
}

// TestRecordFromStored проверяет восстановление доменной записи.
func TestRecordFromStored(t *testing.T) {
	uploadDate := time.Date(2026, 5, 20, 15, 45, 30, 0, time.UTC)
	sf := &StoredFile{
		Handle:     "h1",
		FileName:   "report.pdf",
		Length:     2048,
		UploadDate: uploadDate,
		Metadata: Metadata{
			ContentType: "application/pdf",
			Owner:       "user@example.com",
			AccessLevel: "PUBLIC",
			CreateTime:  "2026-05-18",
			Tags:        []string{"document"},
			FileHash:    "hash1",
			ID:          "id1",
			FileName:    "report.pdf",
			FileSize:    2048,
		},
	}

	rec, err := RecordFromStored(sf)
	if err != nil {
		t.Fatalf("ошибка восстановления: %v", err)
	}

	if rec.ID != "id1" || rec.Name != "report.pdf" || rec.Size != 2048 {
		t.Errorf("базовые поля восстановлены неверно: %+v", rec)
	}
	if rec.CreatedAt.Format(DateFormat) != "2026-05-18" {
		t.Errorf("дата создания: ожидалось 2026-05-18, получено %s", rec.CreatedAt.Format(DateFormat))
	}
	// Дата изменения — день даты загрузки
	if rec.ModifiedAt.Format(DateFormat) != "2026-05-20" {
		t.Errorf("дата изменения: ожидалось 2026-05-20, получено %s", rec.ModifiedAt.Format(DateFormat))
	}
	if rec.AccessLevel != AccessPublic {
		t.Errorf("уровень доступа: ожидалось PUBLIC, получено %s", rec.AccessLevel)
	}
	if rec.StorageHandle != "h1" {
		t.Errorf("handle: ожидалось h1, получено %s", rec.StorageHandle)
	}
}

// TestRecordFromStored_BadDate проверяет ошибку при повреждённой дате.
func TestRecordFromStored_BadDate(t *testing.T) {
	sf := &StoredFile{
		Handle:   "h1",
		Metadata: Metadata{CreateTime: "не дата"},
	}
	if _, err := RecordFromStored(sf); err == nil {
		t.Error("ожидалась ошибка для повреждённой даты создания")
	}
}

// TestToMetadata проверяет сборку документа из доменной записи.
func TestToMetadata(t *testing.T) {
	rec := &FileRecord{
		ID:          "id1",
		Name:        "a.txt",
		ContentType: "text/plain",
		Tags:        []string{"backup"},
		CreatedAt:   time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		Owner:       "user@example.com",
		AccessLevel: AccessPrivate,
		ContentHash: "hash1",
	}

	md := rec.ToMetadata()

	want := Metadata{
		ContentType: "text/plain",
		Owner:       "user@example.com",
		AccessLevel: "PRIVATE",
		CreateTime:  "2026-01-02",
		Tags:        []string{"backup"},
		FileHash:    "hash1",
		ID:          "id1",
		FileName:    "a.txt",
	}
	if !reflect.DeepEqual(md, want) {
		t.Errorf("ожидалось %+v, получено %+v", want, md)
	}
}
