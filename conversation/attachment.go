package conversation

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxAttachmentKB caps staged files at 10 MB.
const DefaultMaxAttachmentKB = 10240

// Attachment is a single file pending inclusion in the next message. Files
// staged from disk are read at Encode time.
type Attachment struct {
	Name     string
	MimeType string
	Size     int64

	data     []byte
	path     string
	maxBytes int64
}

// Encoded is an attachment ready for the payload: base64 body without the
// data URL prefix.
type Encoded struct {
	MimeType      string
	Base64Payload string
}

// NewAttachment stages bytes already in memory.
func NewAttachment(name, mimeType string, data []byte) *Attachment {
	if mimeType == "" {
		mimeType = detectMime(name, data)
	}
	return &Attachment{Name: name, MimeType: mimeType, Size: int64(len(data)), data: data}
}

// Encode reads the bytes and returns the base64 body. Any read failure is
// returned as is; no partial body is ever produced.
func (a *Attachment) Encode() (Encoded, error) {
	data := a.data
	if data == nil {
		var err error
		data, err = a.read()
		if err != nil {
			return Encoded{}, err
		}
	}

	url := DataURL(a.MimeType, base64.StdEncoding.EncodeToString(data))
	body, err := StripDataURLPrefix(url)
	if err != nil {
		return Encoded{}, err
	}
	return Encoded{MimeType: a.MimeType, Base64Payload: body}, nil
}

func (a *Attachment) read() ([]byte, error) {
	f, err := os.Open(a.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open attachment %s: %w", a.Name, err)
	}
	defer f.Close()

	// One byte over the limit is enough to detect growth since staging
	data, err := io.ReadAll(io.LimitReader(f, a.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment %s: %w", a.Name, err)
	}
	if int64(len(data)) > a.maxBytes {
		return nil, fmt.Errorf("attachment too large: %s exceeds %d KB", a.Name, a.maxBytes/1024)
	}
	return data, nil
}

// DataURL formats data:<mime>;base64,<payload>.
func DataURL(mimeType, b64 string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, b64)
}

// StripDataURLPrefix returns the part after the first comma.
func StripDataURLPrefix(url string) (string, error) {
	if !strings.HasPrefix(url, "data:") {
		return "", fmt.Errorf("malformed data URL")
	}
	comma := strings.Index(url, ",")
	if comma == -1 {
		return "", fmt.Errorf("malformed data URL")
	}
	return url[comma+1:], nil
}

// Stager holds at most one attachment.
type Stager struct {
	staged *Attachment
	maxKB  int
}

func NewStager(maxKB int) *Stager {
	if maxKB <= 0 {
		maxKB = DefaultMaxAttachmentKB
	}
	return &Stager{maxKB: maxKB}
}

// Stage replaces any previously staged attachment.
func (s *Stager) Stage(a *Attachment) {
	s.staged = a
}

// StageFile validates path and stages it. Content is read later by Encode.
func (s *Stager) StageFile(path string) (*Attachment, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("file not found: %s", absPath)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory: %s", absPath)
	}

	maxBytes := int64(s.maxKB) * 1024
	if info.Size() > maxBytes {
		return nil, fmt.Errorf("file too large: %s (%d KB exceeds limit %d KB)",
			absPath, info.Size()/1024, s.maxKB)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", absPath, err)
	}
	defer file.Close()

	// First 512 bytes are all DetectContentType looks at
	header := make([]byte, 512)
	n, err := file.Read(header)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read header from %s: %w", absPath, err)
	}

	a := &Attachment{
		Name:     filepath.Base(absPath),
		MimeType: detectMime(absPath, header[:n]),
		Size:     info.Size(),
		path:     absPath,
		maxBytes: maxBytes,
	}
	s.Stage(a)
	return a, nil
}

func (s *Stager) Staged() *Attachment {
	return s.staged
}

// Encode encodes the staged attachment.
func (s *Stager) Encode() (Encoded, error) {
	if s.staged == nil {
		return Encoded{}, fmt.Errorf("no attachment staged")
	}
	return s.staged.Encode()
}

func (s *Stager) Clear() {
	s.staged = nil
}

// detectMime prefers the extension when sniffing only finds generic types.
func detectMime(name string, header []byte) string {
	sniffed := http.DetectContentType(header)
	if !strings.HasPrefix(sniffed, "application/octet-stream") && !strings.HasPrefix(sniffed, "text/plain") {
		return stripParams(sniffed)
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		return stripParams(byExt)
	}
	return stripParams(sniffed)
}

func stripParams(contentType string) string {
	if i := strings.Index(contentType, ";"); i != -1 {
		return strings.TrimSpace(contentType[:i])
	}
	return contentType
}
