package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Result describes where an upload ended up
type Result struct {
	Path      string // final path: the stored upload, or the converted file
	Converted bool   // true when the upload was audio and was transcoded
}

// Pipeline stores uploaded files and routes audio uploads through the
// transcoder. Both upload endpoints share it so their behavior only differs
// in response shape.
type Pipeline struct {
	uploadDir    string
	outputFormat Format
	timeout      time.Duration
	transcoder   *Transcoder
	logger       *slog.Logger
}

// NewPipeline creates an upload pipeline writing into uploadDir
func NewPipeline(uploadDir string, outputFormat Format, timeout time.Duration, transcoder *Transcoder, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		uploadDir:    uploadDir,
		outputFormat: outputFormat,
		timeout:      timeout,
		transcoder:   transcoder,
		logger:       logger,
	}
}

// ProcessUpload saves one multipart file and, when its declared media type is
// audio, converts it to the configured output format. On successful
// conversion the stored original is removed and the converted path returned.
// On a failed conversion the stored original is removed as well and the
// error surfaced, so the filesystem never keeps half-processed uploads.
func (p *Pipeline) ProcessUpload(ctx context.Context, file multipart.File, header *multipart.FileHeader) (Result, error) {
	storedPath, err := p.store(file, header)
	if err != nil {
		return Result{}, err
	}

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "audio/") {
		return Result{Path: storedPath}, nil
	}

	convertCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		convertCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	convertedPath, err := p.transcoder.Convert(convertCtx, storedPath, p.outputFormat)

	// The stored original goes away on both outcomes: after a successful
	// conversion it is redundant, after a failed one it is unusable.
	if removeErr := os.Remove(storedPath); removeErr != nil {
		p.logger.Warn("Failed to remove uploaded original",
			slog.String("path", storedPath),
			slog.String("error", removeErr.Error()),
		)
	}

	if err != nil {
		return Result{}, err
	}

	p.logger.Info("Audio upload converted",
		slog.String("original", storedPath),
		slog.String("converted", convertedPath),
		slog.String("format", string(p.outputFormat)),
	)

	return Result{Path: convertedPath, Converted: true}, nil
}

// store writes the upload to <uploadDir>/<unix-ms>-<original-name>. The
// timestamp prefix keeps concurrent uploads from colliding.
func (p *Pipeline) store(file multipart.File, header *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(p.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filepath.Base(header.Filename))
	storedPath := filepath.Join(p.uploadDir, name)

	dst, err := os.Create(storedPath)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(storedPath)
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}

	return storedPath, nil
}
