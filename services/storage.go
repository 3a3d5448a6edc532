package services

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"study-assistant-platform/internal/logger"

	"github.com/google/uuid"
)

var pdfMagic = []byte("%PDF")

// FileStorageManager keeps uploaded source files under <base>/documents/<user>.
type FileStorageManager struct {
	uploadDir string
	tempDir   string
	maxSize   int64
}

type StoredFile struct {
	Path       string
	SecureName string
	Hash       string // md5, hex
	Size       int64
}

func NewFileStorageManager(baseDir string, maxSize int64) (*FileStorageManager, error) {
	if baseDir == "" {
		baseDir = "./storage"
	}
	sm := &FileStorageManager{
		uploadDir: filepath.Join(baseDir, "documents"),
		tempDir:   filepath.Join(baseDir, "temp"),
		maxSize:   maxSize,
	}
	for _, dir := range []string{sm.uploadDir, sm.tempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
		}
	}
	return sm, nil
}

// Store streams r to a temp file while hashing it, checks the PDF header and
// renames the file into place.
func (sm *FileStorageManager) Store(r io.Reader, originalName, userID string) (*StoredFile, error) {
	if err := validateFilename(originalName); err != nil {
		return nil, err
	}

	userDir := filepath.Join(sm.uploadDir, userID)
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create user directory: %w", err)
	}

	tempPath := filepath.Join(sm.tempDir, uuid.NewString()+".tmp")
	tempFile, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	hasher := md5.New()
	src := r
	if sm.maxSize > 0 {
		// one extra byte tells us the limit was exceeded
		src = io.LimitReader(r, sm.maxSize+1)
	}
	written, err := io.Copy(io.MultiWriter(tempFile, hasher), src)
	if closeErr := tempFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	if written == 0 {
		os.Remove(tempPath)
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidUpload)
	}
	if sm.maxSize > 0 && written > sm.maxSize {
		os.Remove(tempPath)
		return nil, fmt.Errorf("%w: file exceeds maximum size of %d bytes", ErrInvalidUpload, sm.maxSize)
	}
	if err := checkPDFHeader(tempPath); err != nil {
		os.Remove(tempPath)
		return nil, err
	}

	secureName := secureFilename(originalName)
	finalPath := filepath.Join(userDir, secureName)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("failed to move file to final location: %w", err)
	}

	return &StoredFile{
		Path:       finalPath,
		SecureName: secureName,
		Hash:       hex.EncodeToString(hasher.Sum(nil)),
		Size:       written,
	}, nil
}

// Remove deletes a stored file. A missing file is not an error.
func (sm *FileStorageManager) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to remove stored file", "path", path, "error", err)
	}
}

func checkPDFHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file for validation: %w", err)
	}
	defer f.Close()

	header := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, header); err != nil || !bytes.Equal(header, pdfMagic) {
		return fmt.Errorf("%w: file is not a PDF document", ErrInvalidUpload)
	}
	return nil
}

func validateFilename(name string) error {
	if name == "" {
		return fmt.Errorf("%w: filename is required", ErrInvalidUpload)
	}
	if len(name) > 255 {
		return fmt.Errorf("%w: filename too long (max 255 characters)", ErrInvalidUpload)
	}
	for _, bad := range []string{"../", "..\\", "<", ">", ":", "\"", "|", "?", "*", "\x00"} {
		if strings.Contains(name, bad) {
			return fmt.Errorf("%w: filename contains invalid characters", ErrInvalidUpload)
		}
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return fmt.Errorf("%w: only PDF files are allowed", ErrInvalidUpload)
	}
	return nil
}

func secureFilename(original string) string {
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(filepath.Base(original), ext)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.ReplaceAll(base, "..", "")
	if len(base) > 50 {
		base = base[:50]
	}
	return fmt.Sprintf("%s_%s_%s%s", time.Now().UTC().Format("20060102_150405"), uuid.NewString()[:8], base, strings.ToLower(ext))
}
