package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"labdesk/internal/config"
	"labdesk/internal/domain"
	"labdesk/internal/port"
)

// ReceiptService validates payment receipts and archives them so a failed
// remote write can be replayed with the same file.
type ReceiptService interface {
	// Prepare reads and validates an uploaded receipt. It never touches the
	// network.
	Prepare(fileName string, r io.Reader) (*domain.ReceiptFile, error)
	Archive(ctx context.Context, billID string, f *domain.ReceiptFile) (string, error)
	Fetch(ctx context.Context, ref string) (*domain.ReceiptFile, error)
	Discard(ctx context.Context, ref string) error
	DownloadURL(ctx context.Context, ref string) (string, error)
}

type receiptService struct {
	storage  port.ObjectStorage
	s3cfg    *config.S3Config
	maxBytes int64
	log      *zap.Logger
}

// NewReceiptService creates a new ReceiptService implementation.
func NewReceiptService(
	storage port.ObjectStorage,
	s3cfg *config.S3Config,
	receiptCfg *config.ReceiptConfig,
	log *zap.Logger,
) ReceiptService {
	return &receiptService{
		storage:  storage,
		s3cfg:    s3cfg,
		maxBytes: receiptCfg.MaxBytes(),
		log:      log,
	}
}

func (s *receiptService) Prepare(fileName string, r io.Reader) (*domain.ReceiptFile, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading receipt: %w", err)
	}
	if len(data) == 0 {
		return nil, domain.NewValidationError("receipt", "receipt file is empty")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, domain.NewValidationError("receipt", "receipt must not exceed %d MB", s.maxBytes/(1024*1024)).
			WithCause(domain.ErrFileTooLarge)
	}

	contentType, ok := sniffReceipt(data)
	if !ok {
		return nil, domain.NewValidationError("receipt", "receipt must be a PDF, JPEG, PNG, GIF or WebP file").
			WithCause(domain.ErrUnsupportedFileType)
	}

	name := filepath.Base(strings.TrimSpace(fileName))
	if name == "." || name == "/" || name == "" {
		name = "receipt." + string(domain.AllowedContentTypes[contentType])
	}
	return &domain.ReceiptFile{FileName: name, ContentType: contentType, Data: data}, nil
}

func (s *receiptService) Archive(ctx context.Context, billID string, f *domain.ReceiptFile) (string, error) {
	ext := domain.AllowedContentTypes[f.ContentType]
	key := fmt.Sprintf("receipts/%s/%s.%s", billID, ulid.Make().String(), ext)

	s.log.Debug("archiving receipt",
		zap.String("bill_id", billID),
		zap.String("key", key),
		zap.String("content_type", f.ContentType),
		zap.Int("size", len(f.Data)),
	)

	_, err := s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.s3cfg.Bucket,
		Key:         key,
		Body:        bytes.NewReader(f.Data),
		ContentType: f.ContentType,
		Size:        int64(len(f.Data)),
		Metadata:    map[string]string{"bill-id": billID, "original-name": f.FileName},
	})
	if err != nil {
		s.log.Error("receipt upload failed", zap.String("bill_id", billID), zap.Error(err))
		return "", fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}
	return key, nil
}

func (s *receiptService) Fetch(ctx context.Context, ref string) (*domain.ReceiptFile, error) {
	data, err := s.storage.Download(ctx, s.s3cfg.Bucket, ref)
	if err != nil {
		return nil, fmt.Errorf("receiptService.Fetch: %w", err)
	}
	contentType, ok := sniffReceipt(data)
	if !ok {
		// archived keys always carry the extension chosen at upload
		ext := domain.FileType(strings.TrimPrefix(path.Ext(ref), "."))
		if contentType, ok = domain.AllowedFileTypes[ext]; !ok {
			contentType = "application/octet-stream"
		}
	}
	return &domain.ReceiptFile{FileName: path.Base(ref), ContentType: contentType, Data: data}, nil
}

func (s *receiptService) Discard(ctx context.Context, ref string) error {
	return s.storage.Delete(ctx, s.s3cfg.Bucket, ref)
}

func (s *receiptService) DownloadURL(ctx context.Context, ref string) (string, error) {
	return s.storage.GetPresignedURL(ctx, s.s3cfg.Bucket, ref, s.s3cfg.PresignExpiry)
}

// sniffReceipt detects the content type from magic bytes and reports whether
// it is an accepted receipt type.
func sniffReceipt(data []byte) (string, bool) {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return "", false
	}
	if _, ok := domain.AllowedContentTypes[kind.MIME.Value]; !ok {
		return "", false
	}
	return kind.MIME.Value, true
}
