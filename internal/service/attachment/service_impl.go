package attachment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tasktrack/attachments/internal/domain"
	"github.com/tasktrack/attachments/internal/platform/logger"
	"github.com/tasktrack/attachments/internal/platform/metrics"
	"github.com/tasktrack/attachments/internal/platform/s3"
	"github.com/tasktrack/attachments/internal/store"
)

// Verify interface compliance at compile time
var _ Service = (*serviceImpl)(nil)

// errSourceGone marks a copy item whose bytes lost their last reference
// between listing the source task and locking the key.
var errSourceGone = errors.New("source attachment no longer referenced")

// serviceImpl implements the Service interface.
type serviceImpl struct {
	repo      Repository
	blobs     BlobStore
	validator *Validator
	keys      *KeyGenerator
	cfg       Config
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewService creates a new attachment Service.
// metrics may be nil.
func NewService(
	repo Repository,
	blobs BlobStore,
	cfg Config,
	m *metrics.Metrics,
	logger *slog.Logger,
) Service {
	if repo == nil {
		panic("repo cannot be nil")
	}
	if blobs == nil {
		panic("blobs cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = time.Hour
	}

	return &serviceImpl{
		repo:      repo,
		blobs:     blobs,
		validator: NewValidator(cfg.Policy, repo),
		keys:      NewKeyGenerator(),
		cfg:       cfg,
		metrics:   m,
		logger:    logger.With(slog.String("component", "attachment_service")),
	}
}

func (s *serviceImpl) log(ctx context.Context) *slog.Logger {
	return logger.FromContextOrDefault(ctx, s.logger)
}

// bounded derives a context limited by the configured operation timeout.
func (s *serviceImpl) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.OperationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.OperationTimeout)
}

// detached is bounded, but survives cancellation of ctx. Cleanup after a
// failed or committed step must still run when the caller has gone away.
func (s *serviceImpl) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return s.bounded(context.WithoutCancel(ctx))
}

func resultOf(err error) string {
	if err != nil {
		return metrics.ResultFailure
	}
	return metrics.ResultSuccess
}

// Upload implements Service.Upload.
func (s *serviceImpl) Upload(ctx context.Context, req UploadRequest) (*domain.Attachment, error) {
	started := time.Now()
	created, err := s.upload(ctx, req)
	s.metrics.ObserveOperation("upload", resultOf(err), started)
	if err == nil {
		s.metrics.AddUploadedBytes(created.FileSize)
	}
	return created, err
}

func (s *serviceImpl) upload(ctx context.Context, req UploadRequest) (*domain.Attachment, error) {
	log := s.log(ctx).With(
		slog.Int64("task_id", req.TaskID),
		slog.String("file_name", req.FileName),
		slog.Int64("size", req.Size))

	if req.TaskID <= 0 {
		return nil, fmt.Errorf("%w: task ID must be positive", ErrInvalidRequest)
	}
	if req.FileName == "" {
		return nil, fmt.Errorf("%w: file name is required", ErrInvalidRequest)
	}
	if req.Content == nil {
		return nil, fmt.Errorf("%w: file content is required", ErrInvalidRequest)
	}

	// 1. Validate. The quota is checked again under the task lock below;
	// this early check avoids uploading bytes that are bound to be rejected.
	vctx, cancel := s.bounded(ctx)
	mimeType, err := s.validator.Validate(vctx, req.FileName, req.MimeType, req.Size, req.TaskID)
	cancel()
	if err != nil {
		log.Info("upload rejected", slog.String("reason", err.Error()))
		return nil, err
	}

	// 2. Generate a key no other upload will use
	key := s.keys.Generate(req.TaskID, req.FileName)
	log = log.With(slog.String("storage_key", key))

	// 3. Store the bytes
	pctx, cancel := s.bounded(ctx)
	err = s.blobs.Put(pctx, key, req.Content, req.Size, mimeType)
	cancel()
	if err != nil {
		log.Error("failed to store attachment bytes", slog.String("error", err.Error()))
		return nil, newServiceError("upload", "failed to store file", ErrStorageWriteFailure, err)
	}

	// 4. Record it, re-checking the quota atomically with the insert
	record, err := domain.NewAttachment(req.TaskID, req.FileName, key, req.Size, mimeType, req.UploadedBy)
	if err != nil {
		s.compensateUpload(ctx, log, key)
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	var created *domain.Attachment
	tctx, cancel := s.bounded(ctx)
	err = s.repo.RunInTx(tctx, func(ctx context.Context, repo Repository) error {
		if err := repo.LockTask(ctx, req.TaskID); err != nil {
			return err
		}
		current, err := repo.TotalSizeForTask(ctx, req.TaskID)
		if err != nil {
			return err
		}
		if err := s.validator.CheckQuota(req.TaskID, current, req.Size); err != nil {
			return err
		}
		created, err = repo.Create(ctx, record)
		return err
	})
	cancel()
	if err != nil {
		s.compensateUpload(ctx, log, key)

		var quotaErr *QuotaExceededError
		if errors.As(err, &quotaErr) {
			log.Info("upload rejected at commit", slog.String("reason", err.Error()))
			return nil, quotaErr
		}
		log.Error("failed to record attachment", slog.String("error", err.Error()))
		return nil, newServiceError("upload", "failed to save attachment record", ErrMetadataWriteFailure, err)
	}

	log.Info("attachment uploaded",
		slog.String("attachment_id", created.ID.String()),
		slog.String("mime_type", created.MimeType))
	return created, nil
}

// deleteBlob removes the bytes under key. An object that is already gone
// counts as removed.
func (s *serviceImpl) deleteBlob(ctx context.Context, key string) error {
	err := s.blobs.Delete(ctx, key)
	if errors.Is(err, s3.ErrObjectNotFound) {
		s.log(ctx).Debug("bytes already absent", slog.String("storage_key", key))
		return nil
	}
	return err
}

// compensateUpload deletes bytes whose record was never committed. Failure
// leaves an orphaned object behind; it is logged and never returned.
func (s *serviceImpl) compensateUpload(ctx context.Context, log *slog.Logger, key string) {
	cctx, cancel := s.detached(ctx)
	defer cancel()

	if err := s.deleteBlob(cctx, key); err != nil {
		s.metrics.CompensationFailed("upload")
		log.Warn("failed to delete bytes of unrecorded upload; object is orphaned",
			slog.String("error", err.Error()))
		return
	}
	log.Debug("deleted bytes of unrecorded upload")
}

// List implements Service.List.
func (s *serviceImpl) List(ctx context.Context, taskID int64) ([]AttachmentView, error) {
	started := time.Now()
	views, err := s.list(ctx, taskID)
	s.metrics.ObserveOperation("list", resultOf(err), started)
	return views, err
}

func (s *serviceImpl) list(ctx context.Context, taskID int64) ([]AttachmentView, error) {
	log := s.log(ctx).With(slog.Int64("task_id", taskID))

	qctx, cancel := s.bounded(ctx)
	records, err := s.repo.FindByTaskID(qctx, taskID)
	cancel()
	if err != nil {
		log.Error("failed to list attachments", slog.String("error", err.Error()))
		return nil, newServiceError("list", "failed to read attachments", ErrMetadataReadFailure, err)
	}

	views := make([]AttachmentView, 0, len(records))
	for _, record := range records {
		view := AttachmentView{Attachment: *record}

		uctx, cancel := s.bounded(ctx)
		url, err := s.blobs.SignedURL(uctx, record.StorageKey, s.cfg.SignedURLTTL, record.FileName)
		cancel()
		if err != nil {
			log.Warn("failed to mint download URL; listing attachment without it",
				slog.String("attachment_id", record.ID.String()),
				slog.String("error", err.Error()))
		} else {
			view.DownloadURL = url
		}

		views = append(views, view)
	}

	return views, nil
}

// Get implements Service.Get.
func (s *serviceImpl) Get(ctx context.Context, id uuid.UUID) (*domain.Attachment, error) {
	started := time.Now()
	record, err := s.get(ctx, "get", id)
	s.metrics.ObserveOperation("get", resultOf(err), started)
	return record, err
}

func (s *serviceImpl) get(ctx context.Context, operation string, id uuid.UUID) (*domain.Attachment, error) {
	qctx, cancel := s.bounded(ctx)
	defer cancel()

	record, err := s.repo.FindByID(qctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrAttachmentNotFound
		}
		s.log(ctx).Error("failed to read attachment",
			slog.String("attachment_id", id.String()),
			slog.String("error", err.Error()))
		return nil, newServiceError(operation, "failed to read attachment", ErrMetadataReadFailure, err)
	}
	return record, nil
}

// DownloadURL implements Service.DownloadURL.
func (s *serviceImpl) DownloadURL(ctx context.Context, id uuid.UUID) (string, error) {
	started := time.Now()
	url, err := s.downloadURL(ctx, id)
	s.metrics.ObserveOperation("download_url", resultOf(err), started)
	return url, err
}

func (s *serviceImpl) downloadURL(ctx context.Context, id uuid.UUID) (string, error) {
	record, err := s.get(ctx, "download_url", id)
	if err != nil {
		return "", err
	}

	uctx, cancel := s.bounded(ctx)
	defer cancel()

	url, err := s.blobs.SignedURL(uctx, record.StorageKey, s.cfg.SignedURLTTL, record.FileName)
	if err != nil {
		s.log(ctx).Error("failed to mint download URL",
			slog.String("attachment_id", id.String()),
			slog.String("error", err.Error()))
		return "", newServiceError("download_url", "failed to create download URL", ErrStorageReadFailure, err)
	}
	return url, nil
}

// Delete implements Service.Delete.
func (s *serviceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	started := time.Now()
	err := s.delete(ctx, id)
	s.metrics.ObserveOperation("delete", resultOf(err), started)
	return err
}

func (s *serviceImpl) delete(ctx context.Context, id uuid.UUID) error {
	log := s.log(ctx).With(slog.String("attachment_id", id.String()))

	var (
		deleted   *domain.Attachment
		remaining int
	)

	tctx, cancel := s.bounded(ctx)
	err := s.repo.RunInTx(tctx, func(ctx context.Context, repo Repository) error {
		record, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		// Serializes against copies and deletes of records sharing the key
		if err := repo.LockStorageKey(ctx, record.StorageKey); err != nil {
			return err
		}
		if deleted, err = repo.DeleteByID(ctx, id); err != nil {
			return err
		}
		remaining, err = repo.CountReferences(ctx, deleted.StorageKey, id)
		return err
	})
	cancel()
	if err != nil {
		if store.IsNotFoundError(err) {
			return ErrAttachmentNotFound
		}
		log.Error("failed to delete attachment record", slog.String("error", err.Error()))
		return newServiceError("delete", "failed to delete attachment record", ErrMetadataWriteFailure, err)
	}

	log = log.With(slog.String("storage_key", deleted.StorageKey))
	if remaining > 0 {
		log.Info("attachment deleted; bytes still referenced", slog.Int("references", remaining))
		return nil
	}

	// The record deletion has committed and is what the caller observes
	dctx, cancel := s.detached(ctx)
	defer cancel()
	if err := s.deleteBlob(dctx, deleted.StorageKey); err != nil {
		s.metrics.CompensationFailed("delete")
		log.Warn("attachment deleted but its bytes could not be removed",
			slog.String("error", err.Error()))
		return nil
	}

	s.metrics.BlobReclaimed()
	log.Info("attachment deleted; bytes removed")
	return nil
}

// Copy implements Service.Copy.
func (s *serviceImpl) Copy(ctx context.Context, sourceTaskID, targetTaskID int64) ([]*domain.Attachment, error) {
	started := time.Now()
	copied, err := s.copy(ctx, sourceTaskID, targetTaskID)
	s.metrics.ObserveOperation("copy", resultOf(err), started)
	return copied, err
}

func (s *serviceImpl) copy(ctx context.Context, sourceTaskID, targetTaskID int64) ([]*domain.Attachment, error) {
	log := s.log(ctx).With(
		slog.Int64("source_task_id", sourceTaskID),
		slog.Int64("target_task_id", targetTaskID))

	if sourceTaskID <= 0 || targetTaskID <= 0 {
		return nil, fmt.Errorf("%w: task IDs must be positive", ErrInvalidRequest)
	}
	if sourceTaskID == targetTaskID {
		// A task already holds its own attachments
		log.Debug("copy onto the source task is a no-op")
		return []*domain.Attachment{}, nil
	}

	qctx, cancel := s.bounded(ctx)
	sources, err := s.repo.FindByTaskID(qctx, sourceTaskID)
	cancel()
	if err != nil {
		log.Error("failed to read source attachments", slog.String("error", err.Error()))
		return nil, newServiceError("copy", "failed to read source attachments", ErrMetadataReadFailure, err)
	}

	copied := make([]*domain.Attachment, 0, len(sources))
	for _, source := range sources {
		created, err := s.copyOne(ctx, source, targetTaskID)
		if err != nil {
			s.metrics.CountOperation("copy_item", metrics.ResultSkipped)
			log.Warn("skipped attachment during copy",
				slog.String("attachment_id", source.ID.String()),
				slog.String("error", err.Error()))
			continue
		}
		s.metrics.CountOperation("copy_item", metrics.ResultSuccess)
		copied = append(copied, created)
	}

	log.Info("attachments copied",
		slog.Int("copied", len(copied)),
		slog.Int("skipped", len(sources)-len(copied)))
	return copied, nil
}

// copyOne inserts one inherited record in its own transaction, holding the
// target task lock for the quota check and the key lock so a concurrent
// delete can't reclaim the bytes underneath the new record.
func (s *serviceImpl) copyOne(
	ctx context.Context,
	source *domain.Attachment,
	targetTaskID int64,
) (*domain.Attachment, error) {
	inherited, err := source.InheritTo(targetTaskID)
	if err != nil {
		return nil, err
	}

	var created *domain.Attachment
	tctx, cancel := s.bounded(ctx)
	defer cancel()

	err = s.repo.RunInTx(tctx, func(ctx context.Context, repo Repository) error {
		if err := repo.LockTask(ctx, targetTaskID); err != nil {
			return err
		}
		if err := repo.LockStorageKey(ctx, source.StorageKey); err != nil {
			return err
		}

		refs, err := repo.CountReferences(ctx, source.StorageKey, uuid.Nil)
		if err != nil {
			return err
		}
		if refs == 0 {
			return errSourceGone
		}

		current, err := repo.TotalSizeForTask(ctx, targetTaskID)
		if err != nil {
			return err
		}
		if err := s.validator.CheckQuota(targetTaskID, current, inherited.FileSize); err != nil {
			return err
		}

		created, err = repo.Create(ctx, inherited)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
