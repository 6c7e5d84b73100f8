package service

import (
	"bytes"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/bigkaa/gofilestore/internal/domain/model"
	"github.com/bigkaa/gofilestore/internal/repository"
	"github.com/bigkaa/gofilestore/internal/storage/store"
	"github.com/bigkaa/gofilestore/internal/storage/wal"
	"github.com/bigkaa/gofilestore/internal/tags"
)

const testPrefix = "/api/v1/files/download"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) *FileService {
	t.Helper()

	st, err := store.New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания хранилища: %v", err)
	}
	if err := st.BuildIndex(); err != nil {
		t.Fatalf("ошибка построения индекса: %v", err)
	}

	journal, err := wal.New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("ошибка создания журнала: %v", err)
	}

	repo := repository.New(st, journal, testLogger())
	validator := tags.NewValidator([]string{"document", "image", "video", "backup"})
	return NewFileService(repo, validator, testLogger())
}

func mustUploadFile(t *testing.T, svc *FileService, owner, name string, content []byte, level model.AccessLevel, fileTags []string) *UploadResponse {
	t.Helper()
	resp, svcErr := svc.UploadFile(content, UploadMeta{
		AccessLevel: level,
		FileName:    name,
		Tags:        fileTags,
	}, owner, testPrefix)
	if svcErr != nil {
		t.Fatalf("ошибка загрузки: %v", svcErr)
	}
	return resp
}

// TestUploadFile проверяет успешную загрузку и формат download-ссылки.
func TestUploadFile(t *testing.T) {
	svc := newTestService(t)

	resp := mustUploadFile(t, svc, "user@example.com", "report.pdf", []byte("содержимое"), model.AccessPrivate, []string{"Document"})

	if resp.FileID == "" {
		t.Fatal("fileId не заполнен")
	}
	want := testPrefix + "/" + resp.FileID
	if resp.FileDownloadURL != want {
		t.Errorf("ссылка: ожидалось %s, получено %s", want, resp.FileDownloadURL)
	}
}

// TestUploadFile_Validation проверяет цепочку проверок загрузки.
func TestUploadFile_Validation(t *testing.T) {
	svc := newTestService(t)

	cases := []struct {
		name    string
		content []byte
		meta    UploadMeta
	}{
		{"пустой файл", nil, UploadMeta{AccessLevel: model.AccessPrivate, FileName: "a.txt"}},
		{"имя без расширения", []byte("x"), UploadMeta{AccessLevel: model.AccessPrivate, FileName: "file"}},
		{"имя с дефисом", []byte("x"), UploadMeta{AccessLevel: model.AccessPrivate, FileName: "my-file.txt"}},
		{"два расширения", []byte("x"), UploadMeta{AccessLevel: model.AccessPrivate, FileName: "a.tar.gz"}},
		{"слишком длинное имя", []byte("x"), UploadMeta{
			AccessLevel: model.AccessPrivate, FileName: strings.Repeat("a", 300) + ".txt",
		}},
		{"слишком много тегов", []byte("x"), UploadMeta{
			AccessLevel: model.AccessPrivate, FileName: "a.txt",
			Tags: []string{"document", "image", "video", "backup", "document", "image"},
		}},
		{"недопустимый тег", []byte("x"), UploadMeta{
			AccessLevel: model.AccessPrivate, FileName: "a.txt", Tags: []string{"archive"},
		}},
	}

	for _, c := range cases {
		_, svcErr := svc.UploadFile(c.content, c.meta, "user@example.com", testPrefix)
		if svcErr == nil {
			t.Errorf("%s: ожидалась ошибка", c.name)
			continue
		}
		if svcErr.StatusCode != 400 {
			t.Errorf("%s: ожидался статус 400, получен %d", c.name, svcErr.StatusCode)
		}
	}
}

// TestUploadFile_Conflict проверяет сообщение конфликта: фразы
// об имени и содержимом комбинируются независимо.
func TestUploadFile_Conflict(t *testing.T) {
	svc := newTestService(t)
	mustUploadFile(t, svc, "user@example.com", "report.pdf", []byte("оригинал"), model.AccessPrivate, nil)

	// То же имя, другое содержимое
	_, svcErr := svc.UploadFile([]byte("другое"), UploadMeta{
		AccessLevel: model.AccessPrivate, FileName: "report.pdf",
	}, "user@example.com", testPrefix)
	if svcErr == nil || svcErr.StatusCode != 409 {
		t.Fatalf("ожидался конфликт 409, получено %v", svcErr)
	}
	if !strings.Contains(svcErr.Message, "Файл с таким именем уже существует.") {
		t.Errorf("нет фразы об имени: %q", svcErr.Message)
	}
	if strings.Contains(svcErr.Message, "Такой же файл уже загружен.") {
		t.Errorf("лишняя фраза о содержимом: %q", svcErr.Message)
	}

	// Другое имя, то же содержимое
	_, svcErr = svc.UploadFile([]byte("оригинал"), UploadMeta{
		AccessLevel: model.AccessPrivate, FileName: "copy.pdf",
	}, "user@example.com", testPrefix)
	if svcErr == nil || svcErr.StatusCode != 409 {
		t.Fatalf("ожидался конфликт 409, получено %v", svcErr)
	}
	if !strings.Contains(svcErr.Message, "Такой же файл уже загружен.") {
		t.Errorf("нет фразы о содержимом: %q", svcErr.Message)
	}

	// То же имя и то же содержимое — обе фразы
	_, svcErr = svc.UploadFile([]byte("оригинал"), UploadMeta{
		AccessLevel: model.AccessPrivate, FileName: "report.pdf",
	}, "user@example.com", testPrefix)
	if svcErr == nil {
		t.Fatal("ожидался конфликт")
	}
	if !strings.Contains(svcErr.Message, "Файл с таким именем уже существует.") ||
		!strings.Contains(svcErr.Message, "Такой же файл уже загружен.") {
		t.Errorf("ожидались обе фразы конфликта: %q", svcErr.Message)
	}

	// Другой владелец — конфликта нет
	if _, svcErr := svc.UploadFile([]byte("оригинал"), UploadMeta{
		AccessLevel: model.AccessPrivate, FileName: "report.pdf",
	}, "other@example.com", testPrefix); svcErr != nil {
		t.Errorf("уникальность должна быть в пределах владельца: %v", svcErr)
	}
}

// TestDownloadFile проверяет round trip загрузка → скачивание.
func TestDownloadFile(t *testing.T) {
	svc := newTestService(t)
	content := []byte("содержимое для скачивания")
	resp := mustUploadFile(t, svc, "user@example.com", "notes.txt", content, model.AccessPrivate, nil)

	res, svcErr := svc.DownloadFile(resp.FileID)
	if svcErr != nil {
		t.Fatalf("ошибка скачивания: %v", svcErr)
	}
	if !bytes.Equal(res.Content, content) {
		t.Error("содержимое не совпадает")
	}
	if res.FileName != "notes.txt" {
		t.Errorf("имя: ожидалось notes.txt, получено %s", res.FileName)
	}
	if res.ContentType == "" {
		t.Error("тип содержимого не определён")
	}
}

// TestDownloadFile_NotFound проверяет ответ на несуществующий id.
func TestDownloadFile_NotFound(t *testing.T) {
	svc := newTestService(t)

	_, svcErr := svc.DownloadFile("нет-такого")
	if svcErr == nil {
		t.Fatal("ожидалась ошибка")
	}
	if svcErr.StatusCode != 400 {
		t.Errorf("ожидался статус 400, получен %d", svcErr.StatusCode)
	}
}

// TestUpdateFile_Rename проверяет переименование без замены содержимого.
func TestUpdateFile_Rename(t *testing.T) {
	svc := newTestService(t)
	content := []byte("данные")
	resp := mustUploadFile(t, svc, "user@example.com", "old.txt", content, model.AccessPrivate, nil)

	if svcErr := svc.UpdateFile("user@example.com", resp.FileID, "new.txt", nil); svcErr != nil {
		t.Fatalf("ошибка обновления: %v", svcErr)
	}

	res, svcErr := svc.DownloadFile(resp.FileID)
	if svcErr != nil {
		t.Fatalf("ошибка скачивания: %v", svcErr)
	}
	if res.FileName != "new.txt" {
		t.Errorf("имя: ожидалось new.txt, получено %s", res.FileName)
	}
	if !bytes.Equal(res.Content, content) {
		t.Error("содержимое изменилось при переименовании")
	}
}

// TestUpdateFile_Content проверяет замену содержимого.
func TestUpdateFile_Content(t *testing.T) {
	svc := newTestService(t)
	resp := mustUploadFile(t, svc, "user@example.com", "doc.txt", []byte("старое"), model.AccessPrivate, nil)

	newContent := []byte("новое содержимое")
	if svcErr := svc.UpdateFile("user@example.com", resp.FileID, "", newContent); svcErr != nil {
		t.Fatalf("ошибка обновления: %v", svcErr)
	}

	res, svcErr := svc.DownloadFile(resp.FileID)
	if svcErr != nil {
		t.Fatalf("ошибка скачивания: %v", svcErr)
	}
	if !bytes.Equal(res.Content, newContent) {
		t.Error("содержимое не заменилось")
	}
}

// TestUpdateFile_Errors проверяет ошибки обновления.
func TestUpdateFile_Errors(t *testing.T) {
	svc := newTestService(t)
	resp := mustUploadFile(t, svc, "user@example.com", "doc.txt", []byte("данные"), model.AccessPrivate, nil)
	mustUploadFile(t, svc, "user@example.com", "other.txt", []byte("другие данные"), model.AccessPrivate, nil)

	// Чужой файл не найден
	if svcErr := svc.UpdateFile("other@example.com", resp.FileID, "new.txt", nil); svcErr == nil || svcErr.StatusCode != 404 {
		t.Errorf("ожидался 404 для чужого файла, получено %v", svcErr)
	}

	// Занятое имя; сообщение одиночное, без хвостового пробела
	svcErr := svc.UpdateFile("user@example.com", resp.FileID, "other.txt", nil)
	if svcErr == nil || svcErr.StatusCode != 409 {
		t.Errorf("ожидался 409 для занятого имени, получено %v", svcErr)
	} else if svcErr.Message != "Файл с таким именем уже существует." {
		t.Errorf("неверное сообщение конфликта имени: %q", svcErr.Message)
	}

	// Некорректное новое имя
	if svcErr := svc.UpdateFile("user@example.com", resp.FileID, "bad-name", nil); svcErr == nil || svcErr.StatusCode != 400 {
		t.Errorf("ожидался 400 для некорректного имени, получено %v", svcErr)
	}

	// Слишком длинное новое имя
	longName := strings.Repeat("a", 300) + ".txt"
	if svcErr := svc.UpdateFile("user@example.com", resp.FileID, longName, nil); svcErr == nil || svcErr.StatusCode != 400 {
		t.Errorf("ожидался 400 для слишком длинного имени, получено %v", svcErr)
	}

	// Дубликат содержимого; сообщение одиночное, без хвостового пробела
	svcErr = svc.UpdateFile("user@example.com", resp.FileID, "", []byte("другие данные"))
	if svcErr == nil || svcErr.StatusCode != 409 {
		t.Errorf("ожидался 409 для дубликата содержимого, получено %v", svcErr)
	} else if svcErr.Message != "Такой же файл уже загружен." {
		t.Errorf("неверное сообщение конфликта содержимого: %q", svcErr.Message)
	}
}

// TestGetFileList проверяет листинг, область видимости и лимит страницы.
func TestGetFileList(t *testing.T) {
	svc := newTestService(t)
	mustUploadFile(t, svc, "a@x.ru", "a_pub.txt", []byte("1"), model.AccessPublic, nil)
	mustUploadFile(t, svc, "a@x.ru", "a_priv.txt", []byte("2"), model.AccessPrivate, nil)
	mustUploadFile(t, svc, "b@x.ru", "b_pub.txt", []byte("3"), model.AccessPublic, nil)

	// PUBLIC: видны чужие публичные файлы
	files, svcErr := svc.GetFileList("a@x.ru", model.AccessPublic, nil, nil, nil, 0, 50, testPrefix)
	if svcErr != nil {
		t.Fatalf("ошибка листинга: %v", svcErr)
	}
	if len(files) != 2 {
		t.Errorf("PUBLIC: ожидалось 2 файла, получено %d", len(files))
	}
	for _, f := range files {
		if f.FileDownloadURL != testPrefix+"/"+f.FileID {
			t.Errorf("неверная download-ссылка: %s", f.FileDownloadURL)
		}
	}

	// Превышение лимита страницы
	_, svcErr = svc.GetFileList("a@x.ru", model.AccessPublic, nil, nil, nil, 0, 101, testPrefix)
	if svcErr == nil || svcErr.StatusCode != 400 {
		t.Errorf("ожидался 400 для size > 100, получено %v", svcErr)
	}

	// Сортировка по тегам отклоняется
	tagOrder := model.OrderByTag
	direction := model.SortAsc
	_, svcErr = svc.GetFileList("a@x.ru", model.AccessPublic, nil, &tagOrder, &direction, 0, 50, testPrefix)
	if svcErr == nil || svcErr.StatusCode != 400 {
		t.Errorf("ожидался 400 для сортировки по тегам, получено %v", svcErr)
	}
}

// TestGetFileList_PageOverflow проверяет, что максимально большой
// номер страницы даёт пустой листинг, а не панику.
func TestGetFileList_PageOverflow(t *testing.T) {
	svc := newTestService(t)
	mustUploadFile(t, svc, "u@x.ru", "doc.txt", []byte("данные"), model.AccessPrivate, nil)

	files, svcErr := svc.GetFileList("u@x.ru", model.AccessPrivate, nil, nil, nil, math.MaxInt, 2, testPrefix)
	if svcErr != nil {
		t.Fatalf("ошибка листинга: %v", svcErr)
	}
	if len(files) != 0 {
		t.Errorf("ожидался пустой листинг, получено %d файлов", len(files))
	}
}

// TestDeleteFile проверяет удаление и повторное обращение.
func TestDeleteFile(t *testing.T) {
	svc := newTestService(t)
	resp := mustUploadFile(t, svc, "user@example.com", "doc.txt", []byte("данные"), model.AccessPrivate, nil)

	// Чужой файл не удаляется
	if svcErr := svc.DeleteFile("other@example.com", resp.FileID); svcErr == nil || svcErr.StatusCode != 404 {
		t.Errorf("ожидался 404 для чужого файла, получено %v", svcErr)
	}

	if svcErr := svc.DeleteFile("user@example.com", resp.FileID); svcErr != nil {
		t.Fatalf("ошибка удаления: %v", svcErr)
	}

	if _, svcErr := svc.DownloadFile(resp.FileID); svcErr == nil {
		t.Error("файл доступен после удаления")
	}

	if svcErr := svc.DeleteFile("user@example.com", resp.FileID); svcErr == nil || svcErr.StatusCode != 404 {
		t.Errorf("ожидался 404 при повторном удалении, получено %v", svcErr)
	}
}

// TestAllowedTags проверяет словарь тегов сервиса.
func TestAllowedTags(t *testing.T) {
	svc := newTestService(t)

	got := svc.AllowedTags()
	if len(got) != 4 {
		t.Errorf("ожидалось 4 тега, получено %d", len(got))
	}
}

// TestDetectContentType проверяет политику выбора MIME-типа.
func TestDetectContentType(t *testing.T) {
	// Задекларированный тип имеет приоритет, параметры отбрасываются
	if got := detectContentType("text/plain; charset=utf-8", []byte("hello")); got != "text/plain" {
		t.Errorf("ожидалось text/plain, получено %s", got)
	}

	// Пустой тип — определение по сигнатуре
	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	if got := detectContentType("", png); got != "image/png" {
		t.Errorf("ожидалось image/png, получено %s", got)
	}
}
