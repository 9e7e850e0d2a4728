package attachment

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// extension lookups that must not depend on the host's mime.types files
var knownExtensions = map[string]string{
	".pdf":  "application/pdf",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".csv":  "text/csv",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".exe":  "application/x-msdownload",
}

// UsageReader reports how many bytes a task's attachments occupy.
type UsageReader interface {
	TotalSizeForTask(ctx context.Context, taskID int64) (int64, error)
}

// Policy is the upload policy enforced by the Validator.
type Policy struct {
	AllowedMimeTypes []string
	MaxFileSize      int64
	TaskQuota        int64
}

// Validator checks candidate uploads against the Policy. It never writes.
type Validator struct {
	allowed     map[string]struct{}
	maxFileSize int64
	taskQuota   int64
	usage       UsageReader
}

// NewValidator creates a Validator. A non-positive limit disables that check.
func NewValidator(policy Policy, usage UsageReader) *Validator {
	allowed := make(map[string]struct{}, len(policy.AllowedMimeTypes))
	for _, t := range policy.AllowedMimeTypes {
		allowed[normalizeMediaType(t)] = struct{}{}
	}
	return &Validator{
		allowed:     allowed,
		maxFileSize: policy.MaxFileSize,
		taskQuota:   policy.TaskQuota,
		usage:       usage,
	}
}

// normalizeMediaType lowercases a content type and drops its parameters.
func normalizeMediaType(t string) string {
	t = strings.TrimSpace(t)
	if t == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	return strings.ToLower(t)
}

// GuessMimeType infers a content type from the file name's extension.
// It returns "" when the extension is unknown.
func GuessMimeType(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		return ""
	}
	if t, ok := knownExtensions[ext]; ok {
		return t
	}
	return normalizeMediaType(mime.TypeByExtension(ext))
}

// EffectiveMimeType is the declared type when present, otherwise the guess.
func (v *Validator) EffectiveMimeType(fileName, declared string) string {
	if t := normalizeMediaType(declared); t != "" {
		return t
	}
	return GuessMimeType(fileName)
}

// CheckFile validates type and size and returns the effective MIME type.
func (v *Validator) CheckFile(fileName, declared string, size int64) (string, error) {
	effective := v.EffectiveMimeType(fileName, declared)
	if _, ok := v.allowed[effective]; !ok {
		if effective == "" {
			return "", fmt.Errorf("%w: cannot determine type of %q", ErrInvalidFileType, fileName)
		}
		return "", fmt.Errorf("%w: %s is not allowed", ErrInvalidFileType, effective)
	}

	if size < 0 {
		return "", fmt.Errorf("%w: negative file size", ErrInvalidRequest)
	}
	if v.maxFileSize > 0 && size > v.maxFileSize {
		return "", &FileTooLargeError{SizeBytes: size, LimitBytes: v.maxFileSize}
	}

	return effective, nil
}

// CheckQuota fails with a *QuotaExceededError when current+size would exceed the quota.
func (v *Validator) CheckQuota(taskID, current, size int64) error {
	if v.taskQuota > 0 && current+size > v.taskQuota {
		return &QuotaExceededError{
			TaskID:            taskID,
			CurrentUsageBytes: current,
			RequestedBytes:    size,
			LimitBytes:        v.taskQuota,
		}
	}
	return nil
}

// Validate runs every check for an upload of size bytes to taskID and
// returns the effective MIME type. The task's current usage is read from
// the UsageReader.
func (v *Validator) Validate(
	ctx context.Context,
	fileName string,
	declared string,
	size int64,
	taskID int64,
) (string, error) {
	effective, err := v.CheckFile(fileName, declared, size)
	if err != nil {
		return "", err
	}

	current, err := v.usage.TotalSizeForTask(ctx, taskID)
	if err != nil {
		return "", newServiceError("validate", "failed to read task storage usage", ErrMetadataReadFailure, err)
	}

	if err := v.CheckQuota(taskID, current, size); err != nil {
		return "", err
	}

	return effective, nil
}
