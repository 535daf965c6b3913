package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/helmcode/labellens/pkg/model"
)

// Form field names expected by the analysis service.
const (
	FieldFile    = "file"
	FieldLens    = "lens"
	FieldProfile = "user_profile"
)

// Payload is a fully built multipart body.
type Payload struct {
	Body        []byte
	ContentType string
}

// Build encodes req as the multipart form the analysis service reads.
// It does no I/O beyond memory and returns a new body on every call.
func Build(req model.AnalysisRequest) (*Payload, error) {
	if len(req.Image) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	if !req.Lens.Valid() {
		return nil, fmt.Errorf("unknown lens %q", req.Lens)
	}

	profileJSON, err := json.Marshal(req.Profile)
	if err != nil {
		return nil, fmt.Errorf("marshal profile: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FieldFile, filepath.Base(req.Filename)))
	h.Set("Content-Type", ImageContentType(req.Filename, req.Image))
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(req.Image); err != nil {
		return nil, fmt.Errorf("write image: %w", err)
	}

	if err := w.WriteField(FieldLens, string(req.Lens)); err != nil {
		return nil, fmt.Errorf("write lens: %w", err)
	}
	if err := w.WriteField(FieldProfile, string(profileJSON)); err != nil {
		return nil, fmt.Errorf("write profile: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	return &Payload{Body: buf.Bytes(), ContentType: w.FormDataContentType()}, nil
}

// ImageContentType guesses the image type from the file extension, falling
// back to sniffing the first bytes.
func ImageContentType(filename string, data []byte) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	case ".gif":
		return "image/gif"
	}
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg"
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return "image/png"
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "image/webp"
	}
	return "application/octet-stream"
}
