// Package backup takes encrypted snapshots of the database and uploads them
// to S3-compatible storage.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dukerupert/zaikon/internal/model"
	"github.com/dukerupert/zaikon/internal/store"
)

var (
	ErrNotConfigured = errors.New("backup not configured: S3 credentials or passphrase missing")
	ErrInProgress    = errors.New("a backup is already running")
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
}

func (c S3Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type Config struct {
	S3         S3Config
	Passphrase string
	// RetentionDays prunes older backups after each run. Zero keeps all.
	RetentionDays int
}

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Manager runs backups one at a time.
type Manager struct {
	mu      sync.Mutex
	cfg     Config
	status  Status
	db      *sql.DB
	backups *store.BackupStore
	client  s3Client
	logger  *slog.Logger
}

func NewManager(cfg Config, db *sql.DB, backups *store.BackupStore, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:     cfg,
		db:      db,
		backups: backups,
		logger:  logger,
		status:  Status{State: StateDisabled},
	}
	if cfg.S3.complete() && cfg.Passphrase != "" {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (m *Manager) Configured() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client != nil
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) List(limit int) ([]model.Backup, error) {
	list, err := m.backups.List(limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Backup{}
	}
	return list, nil
}

// RunNow snapshots, encrypts and uploads the database, returning the
// backup record.
func (m *Manager) RunNow(ctx context.Context) (*model.Backup, error) {
	m.mu.Lock()
	if m.client == nil {
		m.mu.Unlock()
		return nil, ErrNotConfigured
	}
	if m.status.State == StateRunning {
		m.mu.Unlock()
		return nil, ErrInProgress
	}
	last := m.status.LastBackup
	m.status = Status{State: StateRunning, LastBackup: last}
	client, cfg := m.client, m.cfg
	m.mu.Unlock()

	record, err := m.run(ctx, client, cfg)

	m.mu.Lock()
	if err != nil {
		m.status = Status{State: StateError, LastBackup: last, Error: err.Error()}
	} else {
		now := time.Now().UTC()
		m.status = Status{State: StateIdle, LastBackup: &now}
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("backup failed", "error", err)
		return record, err
	}
	m.logger.Info("backup completed", "backup_id", record.ID, "size_bytes", record.SizeBytes)

	if cfg.RetentionDays > 0 {
		if err := m.Prune(ctx, cfg.RetentionDays); err != nil {
			m.logger.Warn("backup prune", "error", err)
		}
	}
	return record, nil
}

func (m *Manager) run(ctx context.Context, client s3Client, cfg Config) (*model.Backup, error) {
	filename := fmt.Sprintf("zaikon-%s.db.enc", time.Now().UTC().Format("20060102-150405"))
	key := filename
	if cfg.S3.Prefix != "" {
		key = cfg.S3.Prefix + "/" + filename
	}

	record, err := m.backups.Create(filename, key)
	if err != nil {
		return nil, fmt.Errorf("create backup record: %w", err)
	}
	fail := func(err error) (*model.Backup, error) {
		if uerr := m.backups.UpdateStatus(record.ID, model.BackupStatusFailed, err.Error()); uerr != nil {
			m.logger.Error("mark backup failed", "backup_id", record.ID, "error", uerr)
		}
		return record, err
	}

	snapshot, err := m.snapshot(ctx, record.ID)
	if err != nil {
		return fail(err)
	}
	sealed, err := Seal(snapshot, cfg.Passphrase)
	if err != nil {
		return fail(fmt.Errorf("encrypt: %w", err))
	}

	if err := m.backups.UpdateStatus(record.ID, model.BackupStatusUploading, ""); err != nil {
		return fail(err)
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(cfg.S3.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return fail(fmt.Errorf("upload to s3: %w", err))
	}

	if err := m.backups.UpdateCompleted(record.ID, int64(len(sealed))); err != nil {
		return record, err
	}
	return m.backups.GetByID(record.ID)
}

// snapshot writes a consistent copy of the live database with VACUUM INTO
// and returns its bytes.
func (m *Manager) snapshot(ctx context.Context, id int64) ([]byte, error) {
	dir, err := os.MkdirTemp("", "zaikon-backup-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, fmt.Sprintf("snapshot-%d.db", id))
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return nil, fmt.Errorf("snapshot database: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

// Download streams an encrypted backup from S3.
func (m *Manager) Download(ctx context.Context, backupID int64) (io.ReadCloser, *model.Backup, error) {
	m.mu.Lock()
	client, bucket := m.client, m.cfg.S3.Bucket
	m.mu.Unlock()
	if client == nil {
		return nil, nil, ErrNotConfigured
	}

	record, err := m.backups.GetByID(backupID)
	if err != nil {
		return nil, nil, err
	}
	if record == nil || record.Status != model.BackupStatusCompleted {
		return nil, nil, nil
	}
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(record.S3Key),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("download from s3: %w", err)
	}
	return result.Body, record, nil
}

// Prune deletes backups older than the retention period, records first.
// Objects that fail to delete are logged and left behind.
func (m *Manager) Prune(ctx context.Context, retentionDays int) error {
	m.mu.Lock()
	client, bucket := m.client, m.cfg.S3.Bucket
	m.mu.Unlock()
	if client == nil {
		return nil
	}

	keys, err := m.backups.DeleteOlderThan(time.Now().UTC().AddDate(0, 0, -retentionDays))
	if err != nil {
		return fmt.Errorf("delete old backups: %w", err)
	}
	for _, key := range keys {
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("delete backup object", "key", key, "error", err)
		}
	}
	return nil
}
