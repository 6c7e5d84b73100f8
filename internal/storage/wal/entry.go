// Пакет wal — файловый журнал неатомарных операций Content Store.
// Каждая транзакция — отдельный файл {tx_id}.wal.json в FS_WAL_DIR.
// Записи pending, пережившие рестарт, обрабатываются сверкой при старте.
package wal

import (
	"time"
)

// OperationType — тип операции, записываемой в журнал.
type OperationType string

const (
	// OpFileCreate — первичная загрузка файла
	OpFileCreate OperationType = "file_create"
	// OpContentReplace — замена содержимого: новый blob загружается
	// под новым handle, старый blob удаляется
	OpContentReplace OperationType = "content_replace"
)

// TransactionStatus — статус транзакции журнала.
type TransactionStatus string

const (
	// StatusPending — транзакция начата, операция в процессе
	StatusPending TransactionStatus = "pending"
	// StatusCommitted — транзакция успешно завершена
	StatusCommitted TransactionStatus = "committed"
	// StatusRolledBack — транзакция отменена (ошибка или recovery)
	StatusRolledBack TransactionStatus = "rolled_back"
)

// Entry — запись журнала. Хранится как JSON-файл {tx_id}.wal.json.
type Entry struct {
	// TransactionID — уникальный идентификатор транзакции (UUID v4)
	TransactionID string `json:"transaction_id"`

	// Operation — тип операции
	Operation OperationType `json:"operation"`

	// Status — текущий статус транзакции
	Status TransactionStatus `json:"status"`

	// FileID — публичный идентификатор файла, над которым
	// выполняется операция
	FileID string `json:"file_id"`

	// OldHandle — handle заменяемого blob.
	// Заполнен только для content_replace.
	OldHandle string `json:"old_handle,omitempty"`

	// NewHandle — handle нового blob. Заполняется после того,
	// как Content Store принял поток.
	NewHandle string `json:"new_handle,omitempty"`

	// StartedAt — время начала транзакции (UTC)
	StartedAt time.Time `json:"started_at"`

	// CompletedAt — время завершения транзакции (UTC).
	// nil для pending транзакций.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// walFileName возвращает имя файла журнала для данной транзакции.
func walFileName(txID string) string {
	return txID + ".wal.json"
}
