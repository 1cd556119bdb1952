package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultBaseDir   = "uploads"
	DefaultMaxSizeMB = 10
)

var (
	ErrFileTooLarge    = errors.New("file size exceeds the upload limit")
	ErrUnsupportedType = errors.New("unsupported file type, allowed: jpg, png, webp, pdf")
	ErrOutsideBaseDir  = errors.New("path escapes the upload directory")
)

type Kind string

const (
	KindPhoto Kind = "photo"
	KindFile  Kind = "file"
)

// SavedFile describes a stored attachment. Path is relative to the
// working directory and always uses forward slashes, matching what the
// static file route serves.
type SavedFile struct {
	Path         string
	Kind         Kind
	ContentType  string
	SizeBytes    int64
	OriginalName string
}

type FileUploader struct {
	baseDir string
	maxSize int64
}

func NewFileUploader(baseDir string, maxSizeMB int64) *FileUploader {
	if baseDir == "" {
		baseDir = DefaultBaseDir
	}
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxSizeMB
	}
	return &FileUploader{baseDir: baseDir, maxSize: maxSizeMB * 1024 * 1024}
}

// DetectKind sniffs the file header and maps the real content type to
// an attachment kind and canonical extension. The client-supplied
// filename is never trusted for the type decision.
func DetectKind(file multipart.File) (Kind, string, string, error) {
	header := make([]byte, 512)
	n, err := file.Read(header)
	if err != nil && err != io.EOF {
		return "", "", "", fmt.Errorf("read file header: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", "", "", fmt.Errorf("rewind file: %w", err)
	}

	contentType := http.DetectContentType(header[:n])
	switch contentType {
	case "image/jpeg":
		return KindPhoto, ".jpg", contentType, nil
	case "image/png":
		return KindPhoto, ".png", contentType, nil
	case "image/webp":
		return KindPhoto, ".webp", contentType, nil
	case "application/pdf":
		return KindFile, ".pdf", contentType, nil
	default:
		return "", "", "", ErrUnsupportedType
	}
}

// SaveJobAttachment stores an uploaded file under
// {base}/jobs/{job_id}/{kind}/ and returns its stored path.
func (u *FileUploader) SaveJobAttachment(jobID int64, file multipart.File, header *multipart.FileHeader) (SavedFile, error) {
	if header.Size > u.maxSize {
		return SavedFile{}, ErrFileTooLarge
	}

	kind, ext, contentType, err := DetectKind(file)
	if err != nil {
		return SavedFile{}, err
	}

	dir := filepath.Join(u.baseDir, "jobs", fmt.Sprintf("%d", jobID), string(kind))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return SavedFile{}, fmt.Errorf("create upload directory: %w", err)
	}

	filename := fmt.Sprintf("%s_%d%s", uuid.New().String(), time.Now().Unix(), ext)
	filePath := filepath.Join(dir, filename)

	dst, err := os.Create(filePath)
	if err != nil {
		return SavedFile{}, fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, file)
	if err != nil {
		os.Remove(filePath)
		return SavedFile{}, fmt.Errorf("write file: %w", err)
	}

	return SavedFile{
		Path:         filepath.ToSlash(filePath),
		Kind:         kind,
		ContentType:  contentType,
		SizeBytes:    written,
		OriginalName: header.Filename,
	}, nil
}

// Delete removes a stored attachment. The path must have come from
// SaveJobAttachment; anything resolving outside the base dir is
// rejected.
func (u *FileUploader) Delete(storedPath string) error {
	clean, err := u.resolve(storedPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(clean); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", storedPath)
	}
	if err := os.Remove(clean); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func (u *FileUploader) Exists(storedPath string) bool {
	clean, err := u.resolve(storedPath)
	if err != nil {
		return false
	}
	_, err = os.Stat(clean)
	return err == nil
}

func (u *FileUploader) BaseDir() string {
	return u.baseDir
}

func (u *FileUploader) resolve(storedPath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(storedPath))
	if clean != u.baseDir && !strings.HasPrefix(clean, u.baseDir+string(os.PathSeparator)) {
		return "", ErrOutsideBaseDir
	}
	return clean, nil
}
