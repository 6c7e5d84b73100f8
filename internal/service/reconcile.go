// reconcile.go — стартовая сверка хранилища.
//
// Разрешает незавершённые транзакции журнала и устраняет последствия
// падения в окне между загрузкой нового blob и удалением старого:
//   - pending file_create: загрузка не была подтверждена клиенту,
//     запись и blob удаляются;
//   - pending content_replace: если живы оба blob, новый удаляется
//     (логическая запись продолжает указывать на старый); если старый
//     уже удалён, замена считается состоявшейся;
//   - orphaned_blob: blob без attr.json — остаток прерванной записи;
//   - missing_blob: attr.json без blob — запись без содержимого
//     не существует.
//
// Запускается один раз при старте, до приёма запросов.
package service

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/gofilestore/internal/storage/index"
	"github.com/bigkaa/gofilestore/internal/storage/store"
	"github.com/bigkaa/gofilestore/internal/storage/wal"
)

// Prometheus метрики сверки
var (
	// reconcileRunsTotal — количество запусков сверки.
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_reconcile_runs_total",
		Help: "Общее количество запусков сверки хранилища",
	})

	// reconcileIssuesTotal — количество устранённых проблем по типу.
	reconcileIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fs_reconcile_issues_total",
		Help: "Общее количество проблем, устранённых сверкой",
	}, []string{"type"})
)

// Reconciler — сверка Content Store с журналом операций.
type Reconciler struct {
	store  *store.Store
	wal    *wal.WAL
	logger *slog.Logger
}

// NewReconciler создаёт сверку хранилища.
func NewReconciler(st *store.Store, journal *wal.WAL, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:  st,
		wal:    journal,
		logger: logger.With(slog.String("component", "reconcile")),
	}
}

// Run выполняет один проход сверки: незавершённые транзакции журнала,
// затем осиротевшие blob и записи без содержимого, затем очистка
// завершённых записей журнала.
func (rc *Reconciler) Run() error {
	reconcileRunsTotal.Inc()

	pending, err := rc.wal.RecoverPending()
	if err != nil {
		return fmt.Errorf("ошибка восстановления журнала: %w", err)
	}

	for _, entry := range pending {
		rc.resolvePending(entry)
	}

	if err := rc.sweepOrphans(); err != nil {
		return err
	}

	if _, err := rc.wal.CleanCompleted(); err != nil {
		rc.logger.Warn("Не удалось очистить журнал", slog.String("error", err.Error()))
	}

	return nil
}

// resolvePending разрешает одну незавершённую транзакцию.
func (rc *Reconciler) resolvePending(entry *wal.Entry) {
	switch entry.Operation {
	case wal.OpFileCreate:
		rc.resolveCreate(entry)
	case wal.OpContentReplace:
		rc.resolveReplace(entry)
	default:
		rc.logger.Warn("Неизвестная операция в журнале",
			slog.String("tx_id", entry.TransactionID),
			slog.String("operation", string(entry.Operation)),
		)
		rc.rollback(entry)
	}
}

// resolveCreate откатывает незавершённую загрузку: клиент не получил
// подтверждения, поэтому ставшая видимой запись удаляется.
func (rc *Reconciler) resolveCreate(entry *wal.Entry) {
	for _, sf := range rc.store.Find(index.Filter{ID: entry.FileID}, index.FindOptions{}) {
		if err := rc.store.Delete(sf.Handle); err != nil {
			rc.logger.Error("Не удалось удалить запись незавершённой загрузки",
				slog.String("tx_id", entry.TransactionID),
				slog.String("handle", sf.Handle),
				slog.String("error", err.Error()),
			)
			continue
		}
		reconcileIssuesTotal.WithLabelValues("pending_create").Inc()
		rc.logger.Info("Откачена незавершённая загрузка",
			slog.String("tx_id", entry.TransactionID),
			slog.String("file_id", entry.FileID),
			slog.String("handle", sf.Handle),
		)
	}
	rc.rollback(entry)
}

// resolveReplace разрешает незавершённую замену содержимого.
// Запись не должна указывать на два живых blob: пока жив старый,
// новый считается неподтверждённым и удаляется.
func (rc *Reconciler) resolveReplace(entry *wal.Entry) {
	records := rc.store.Find(index.Filter{ID: entry.FileID}, index.FindOptions{})

	oldAlive := false
	for _, sf := range records {
		if sf.Handle == entry.OldHandle {
			oldAlive = true
		}
	}

	if oldAlive {
		// Старый blob жив — удаляем все прочие записи этого id
		for _, sf := range records {
			if sf.Handle == entry.OldHandle {
				continue
			}
			if err := rc.store.Delete(sf.Handle); err != nil {
				rc.logger.Error("Не удалось удалить новый blob при откате замены",
					slog.String("tx_id", entry.TransactionID),
					slog.String("handle", sf.Handle),
					slog.String("error", err.Error()),
				)
				continue
			}
			reconcileIssuesTotal.WithLabelValues("pending_replace").Inc()
			rc.logger.Info("Откачена незавершённая замена содержимого",
				slog.String("tx_id", entry.TransactionID),
				slog.String("file_id", entry.FileID),
				slog.String("handle", sf.Handle),
			)
		}
		rc.rollback(entry)
		return
	}

	// Старый blob уже удалён — замена фактически состоялась
	if err := rc.wal.Commit(entry.TransactionID); err != nil {
		rc.logger.Error("Ошибка коммита журнала при сверке",
			slog.String("tx_id", entry.TransactionID),
			slog.String("error", err.Error()),
		)
	}
}

// sweepOrphans устраняет рассинхронизацию blob и документов метаданных.
func (rc *Reconciler) sweepOrphans() error {
	// Blob без attr.json не существует с точки зрения хранилища
	handles, err := rc.store.BlobHandles()
	if err != nil {
		return fmt.Errorf("ошибка сканирования blob: %w", err)
	}
	for _, handle := range handles {
		if rc.store.Get(handle) != nil {
			continue
		}
		if err := rc.store.Delete(handle); err != nil {
			rc.logger.Error("Не удалось удалить осиротевший blob",
				slog.String("handle", handle),
				slog.String("error", err.Error()),
			)
			continue
		}
		reconcileIssuesTotal.WithLabelValues("orphaned_blob").Inc()
		rc.logger.Warn("Удалён осиротевший blob", slog.String("handle", handle))
	}

	// Запись без blob не существует
	for _, sf := range rc.store.Find(index.Filter{}, index.FindOptions{}) {
		if rc.store.HasBlob(sf.Handle) {
			continue
		}
		if err := rc.store.Delete(sf.Handle); err != nil {
			rc.logger.Error("Не удалось удалить запись без содержимого",
				slog.String("handle", sf.Handle),
				slog.String("error", err.Error()),
			)
			continue
		}
		reconcileIssuesTotal.WithLabelValues("missing_blob").Inc()
		rc.logger.Warn("Удалена запись без содержимого",
			slog.String("handle", sf.Handle),
			slog.String("file_id", sf.Metadata.ID),
		)
	}

	return nil
}

// rollback откатывает запись журнала с логированием ошибки.
func (rc *Reconciler) rollback(entry *wal.Entry) {
	if err := rc.wal.Rollback(entry.TransactionID); err != nil {
		rc.logger.Error("Ошибка отката журнала при сверке",
			slog.String("tx_id", entry.TransactionID),
			slog.String("error", err.Error()),
		)
	}
}
