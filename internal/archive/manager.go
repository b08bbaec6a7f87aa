// Package archive exports the audit trail to object storage, on demand and on
// a fixed interval.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"user-admin/internal/domain"
	"user-admin/internal/service"
	"user-admin/internal/storage"
)

// ErrDisabled is returned by Archive when no bucket is configured.
var ErrDisabled = errors.New("archive bucket is not configured")

// Manager coordinates audit exports and the periodic export loop.
type Manager interface {
	Start(ctx context.Context) error
	Shutdown()
	Archive(ctx context.Context) (Result, error)
	List(ctx context.Context) ([]storage.ObjectInfo, error)
}

type Config struct {
	Bucket    string
	KeyPrefix string
	// Interval enables periodic exports when positive.
	Interval time.Duration
	Logger   *logrus.Logger
	Now      func() time.Time
}

// Result describes one finished export.
type Result struct {
	Location string    `json:"location"`
	Entries  int       `json:"entries"`
	At       time.Time `json:"exportedAt"`
}

type manager struct {
	cfg     Config
	logs    service.LogService
	storage storage.Service

	wg     sync.WaitGroup
	cancel context.CancelFunc
	// mu keeps concurrent exports from interleaving.
	mu sync.Mutex
}

func NewManager(cfg Config, logs service.LogService, store storage.Service) Manager {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyPrefix = strings.Trim(cfg.KeyPrefix, "/")
	return &manager{
		cfg:     cfg,
		logs:    logs,
		storage: store,
	}
}

func (m *manager) enabled() bool {
	return m.cfg.Bucket != "" && m.storage != nil
}

func (m *manager) Start(ctx context.Context) error {
	if !m.enabled() || m.cfg.Interval <= 0 {
		m.cfg.Logger.Debug("periodic audit archive disabled")
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.loop(loopCtx)
	}()

	m.cfg.Logger.Infof("audit archive started, every %s to s3://%s/%s", m.cfg.Interval, m.cfg.Bucket, m.cfg.KeyPrefix)
	return nil
}

func (m *manager) loop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Archive(ctx); err != nil && !errors.Is(err, context.Canceled) {
				m.cfg.Logger.Errorf("periodic audit archive: %v", err)
			}
		}
	}
}

func (m *manager) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.cfg.Logger.Info("audit archive stopped")
}

type exportDocument struct {
	ExportedAt time.Time     `json:"exportedAt"`
	Count      int           `json:"count"`
	Entries    []exportEntry `json:"entries"`
}

type exportEntry struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"userId"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// Archive uploads the whole audit trail, newest entry first, as one JSON
// document.
func (m *manager) Archive(ctx context.Context) (Result, error) {
	if !m.enabled() {
		return Result{}, ErrDisabled
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.logs.GetAllLogs(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read audit trail: %w", err)
	}

	at := m.cfg.Now().UTC()
	doc := exportDocument{
		ExportedAt: at,
		Count:      len(entries),
		Entries:    make([]exportEntry, len(entries)),
	}
	for i, e := range entries {
		doc.Entries[i] = exportEntry{
			ID:        e.ID,
			UserID:    e.UserID,
			Action:    e.Action,
			Details:   e.Details,
			Timestamp: e.Timestamp.UTC(),
		}
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return Result{}, fmt.Errorf("encode audit trail: %w", err)
	}

	key := m.objectKey(at)
	loc, err := m.storage.PutObject(ctx, storage.Object{
		Bucket:      m.cfg.Bucket,
		Key:         key,
		Body:        bytes.NewReader(body),
		ContentType: "application/json",
	})
	if err != nil {
		return Result{}, domain.StorageFault("archive audit trail", err)
	}

	m.cfg.Logger.WithFields(logrus.Fields{
		"entries":  len(entries),
		"location": loc,
	}).Info("audit trail archived")
	return Result{Location: loc, Entries: len(entries), At: at}, nil
}

func (m *manager) objectKey(at time.Time) string {
	name := fmt.Sprintf("audit-%s-%s.json", at.Format("20060102T150405Z"), uuid.NewString())
	if m.cfg.KeyPrefix == "" {
		return name
	}
	return m.cfg.KeyPrefix + "/" + name
}

// List returns the archives stored under the configured prefix.
func (m *manager) List(ctx context.Context) ([]storage.ObjectInfo, error) {
	if !m.enabled() {
		return nil, ErrDisabled
	}
	prefix := m.cfg.KeyPrefix
	if prefix != "" {
		prefix += "/"
	}
	return m.storage.ListObjects(ctx, m.cfg.Bucket, prefix+"audit-")
}

var _ Manager = (*manager)(nil)
