package upload

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var (
	jpegHeader = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x10}, 64)...)
	pngHeader  = append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, bytes.Repeat([]byte{0x10}, 64)...)
	pdfHeader  = []byte("%PDF-1.4\n%some pdf body here padded out to look real enough\n")
)

func formFile(t *testing.T, name string, content []byte) (multipart.File, *multipart.FileHeader) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	w.Close()

	req := httptest.NewRequest("POST", "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	file, header, err := req.FormFile("file")
	if err != nil {
		t.Fatalf("parse form file: %v", err)
	}
	return file, header
}

func newTestUploader(t *testing.T) *FileUploader {
	t.Helper()
	return NewFileUploader(filepath.Join(t.TempDir(), "uploads"), 1)
}

func TestSaveJobAttachmentPhoto(t *testing.T) {
	u := newTestUploader(t)
	file, header := formFile(t, "before.jpg", jpegHeader)
	defer file.Close()

	saved, err := u.SaveJobAttachment(42, file, header)
	if err != nil {
		t.Fatalf("SaveJobAttachment: %v", err)
	}
	if saved.Kind != KindPhoto {
		t.Fatalf("kind = %s, want %s", saved.Kind, KindPhoto)
	}
	if saved.ContentType != "image/jpeg" {
		t.Fatalf("content type = %s, want image/jpeg", saved.ContentType)
	}
	if saved.OriginalName != "before.jpg" {
		t.Fatalf("original name = %s, want before.jpg", saved.OriginalName)
	}
	if !strings.Contains(saved.Path, "/jobs/42/photo/") {
		t.Fatalf("path = %s, want jobs/42/photo segment", saved.Path)
	}
	if !strings.HasSuffix(saved.Path, ".jpg") {
		t.Fatalf("path = %s, want .jpg suffix", saved.Path)
	}
	if !u.Exists(saved.Path) {
		t.Fatalf("stored file does not exist at %s", saved.Path)
	}
	if saved.SizeBytes != int64(len(jpegHeader)) {
		t.Fatalf("size = %d, want %d", saved.SizeBytes, len(jpegHeader))
	}
}

func TestSaveJobAttachmentPDFIsFile(t *testing.T) {
	u := newTestUploader(t)
	file, header := formFile(t, "invoice.pdf", pdfHeader)
	defer file.Close()

	saved, err := u.SaveJobAttachment(7, file, header)
	if err != nil {
		t.Fatalf("SaveJobAttachment: %v", err)
	}
	if saved.Kind != KindFile {
		t.Fatalf("kind = %s, want %s", saved.Kind, KindFile)
	}
	if !strings.Contains(saved.Path, "/jobs/7/file/") {
		t.Fatalf("path = %s, want jobs/7/file segment", saved.Path)
	}
}

func TestSaveJobAttachmentIgnoresFakeExtension(t *testing.T) {
	u := newTestUploader(t)
	// png bytes behind a .pdf name must still land as a photo
	file, header := formFile(t, "sneaky.pdf", pngHeader)
	defer file.Close()

	saved, err := u.SaveJobAttachment(1, file, header)
	if err != nil {
		t.Fatalf("SaveJobAttachment: %v", err)
	}
	if saved.Kind != KindPhoto {
		t.Fatalf("kind = %s, want %s", saved.Kind, KindPhoto)
	}
	if !strings.HasSuffix(saved.Path, ".png") {
		t.Fatalf("path = %s, want detected .png suffix", saved.Path)
	}
}

func TestSaveJobAttachmentRejectsUnknownType(t *testing.T) {
	u := newTestUploader(t)
	file, header := formFile(t, "script.sh", []byte("#!/bin/sh\nrm -rf /\n"))
	defer file.Close()

	if _, err := u.SaveJobAttachment(1, file, header); err != ErrUnsupportedType {
		t.Fatalf("err = %v, want ErrUnsupportedType", err)
	}
}

func TestSaveJobAttachmentRejectsOversizedFile(t *testing.T) {
	u := newTestUploader(t)
	big := append(append([]byte{}, jpegHeader...), bytes.Repeat([]byte{0x20}, 2*1024*1024)...)
	file, header := formFile(t, "huge.jpg", big)
	defer file.Close()

	if _, err := u.SaveJobAttachment(1, file, header); err != ErrFileTooLarge {
		t.Fatalf("err = %v, want ErrFileTooLarge", err)
	}
}

func TestDeleteRemovesStoredFile(t *testing.T) {
	u := newTestUploader(t)
	file, header := formFile(t, "gone.png", pngHeader)
	defer file.Close()

	saved, err := u.SaveJobAttachment(3, file, header)
	if err != nil {
		t.Fatalf("SaveJobAttachment: %v", err)
	}
	if err := u.Delete(saved.Path); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if u.Exists(saved.Path) {
		t.Fatalf("file still exists after delete")
	}
	if err := u.Delete(saved.Path); err == nil {
		t.Fatalf("deleting a missing file should fail")
	}
}

func TestDeleteRejectsPathTraversal(t *testing.T) {
	base := filepath.Join(t.TempDir(), "uploads")
	u := NewFileUploader(base, 1)

	victim := filepath.Join(filepath.Dir(base), "secret.txt")
	if err := os.WriteFile(victim, []byte("keep out"), 0644); err != nil {
		t.Fatalf("write victim file: %v", err)
	}

	err := u.Delete(base + "/../secret.txt")
	if err != ErrOutsideBaseDir {
		t.Fatalf("err = %v, want ErrOutsideBaseDir", err)
	}
	if _, err := os.Stat(victim); err != nil {
		t.Fatalf("victim file was touched: %v", err)
	}
}
