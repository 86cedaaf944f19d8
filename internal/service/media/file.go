package media

import (
	"mime"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

const defaultContentType = "application/octet-stream"

type UploadedFile interface {
	Open() (multipart.File, error)
	GetFilename() string
	GetSize() int64
	GetHeader() textproto.MIMEHeader
}

type FileHeaderWrapper struct {
	*multipart.FileHeader
}

func (w *FileHeaderWrapper) Open() (multipart.File, error) {
	return w.FileHeader.Open()
}

func (w *FileHeaderWrapper) GetFilename() string {
	return w.Filename
}

func (w *FileHeaderWrapper) GetSize() int64 {
	return w.Size
}

func (w *FileHeaderWrapper) GetHeader() textproto.MIMEHeader {
	return w.Header
}

// LocalFile is an UploadedFile read from disk, used by the push CLI.
type LocalFile struct {
	Path string
	Size int64
}

// NewLocalFile stats path and wraps it.
func NewLocalFile(path string) (*LocalFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &LocalFile{Path: path, Size: info.Size()}, nil
}

func (f *LocalFile) Open() (multipart.File, error) {
	return os.Open(f.Path)
}

func (f *LocalFile) GetFilename() string {
	return filepath.Base(f.Path)
}

func (f *LocalFile) GetSize() int64 {
	return f.Size
}

func (f *LocalFile) GetHeader() textproto.MIMEHeader {
	header := make(textproto.MIMEHeader)
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(f.Path))); ct != "" {
		header.Set("Content-Type", ct)
	}
	return header
}

// contentTypeOf returns the declared content type, falling back to the file extension.
func contentTypeOf(file UploadedFile) string {
	if ct := strings.TrimSpace(file.GetHeader().Get("Content-Type")); ct != "" {
		return ct
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(file.GetFilename()))); ct != "" {
		return ct
	}
	return defaultContentType
}
