package config

import (
	"log/slog"
	"reflect"
	"testing"
	"time"
)

// setRequired задаёт минимальный набор обязательных переменных.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("FS_DATA_DIR", "/data")
	t.Setenv("FS_WAL_DIR", "/wal")
}

// TestLoad_Defaults проверяет значения по умолчанию.
func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("ошибка загрузки: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("порт: ожидалось 8080, получено %d", cfg.Port)
	}
	if cfg.MaxFileSize != 1073741824 {
		t.Errorf("лимит размера: ожидался 1 GB, получено %d", cfg.MaxFileSize)
	}
	if want := []string{"document", "image", "video", "backup"}; !reflect.DeepEqual(cfg.AllowedTags, want) {
		t.Errorf("теги: ожидалось %v, получено %v", want, cfg.AllowedTags)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("уровень логов: ожидался info, получено %v", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("формат логов: ожидался json, получено %s", cfg.LogFormat)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("таймаут shutdown: ожидалось 5s, получено %v", cfg.ShutdownTimeout)
	}
}

// TestLoad_RequiredMissing проверяет ошибки для незаданных обязательных переменных.
func TestLoad_RequiredMissing(t *testing.T) {
	t.Setenv("FS_DATA_DIR", "")
	t.Setenv("FS_WAL_DIR", "/wal")
	if _, err := Load(); err == nil {
		t.Error("ожидалась ошибка без FS_DATA_DIR")
	}

	t.Setenv("FS_DATA_DIR", "/data")
	t.Setenv("FS_WAL_DIR", "")
	if _, err := Load(); err == nil {
		t.Error("ожидалась ошибка без FS_WAL_DIR")
	}
}

// TestLoad_AllowedTags проверяет разбор словаря тегов.
func TestLoad_AllowedTags(t *testing.T) {
	setRequired(t)
	t.Setenv("FS_ALLOWED_TAGS", " report , photo ,,archive ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("ошибка загрузки: %v", err)
	}

	want := []string{"report", "photo", "archive"}
	if !reflect.DeepEqual(cfg.AllowedTags, want) {
		t.Errorf("ожидалось %v, получено %v", want, cfg.AllowedTags)
	}
}

// TestLoad_Invalid проверяет отказ для некорректных значений.
func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"порт не число", "FS_PORT", "восемь"},
		{"порт вне диапазона", "FS_PORT", "70000"},
		{"отрицательный лимит", "FS_MAX_FILE_SIZE", "-1"},
		{"неизвестный уровень логов", "FS_LOG_LEVEL", "trace"},
		{"неизвестный формат логов", "FS_LOG_FORMAT", "xml"},
		{"некорректная длительность", "FS_SHUTDOWN_TIMEOUT", "скоро"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(c.key, c.value)
			if _, err := Load(); err == nil {
				t.Errorf("%s: ожидалась ошибка для %s=%q", c.name, c.key, c.value)
			}
		})
	}
}

// TestLoad_TLSPair проверяет, что сертификат и ключ задаются только парой.
func TestLoad_TLSPair(t *testing.T) {
	setRequired(t)
	t.Setenv("FS_TLS_CERT", "/certs/tls.crt")

	if _, err := Load(); err == nil {
		t.Error("ожидалась ошибка для сертификата без ключа")
	}

	t.Setenv("FS_TLS_KEY", "/certs/tls.key")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("ошибка загрузки: %v", err)
	}
	if cfg.TLSCert == "" || cfg.TLSKey == "" {
		t.Error("TLS пара не загружена")
	}
}
