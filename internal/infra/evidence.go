package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// Maximum size accepted for one evidence upload.
const MaxEvidenceBytes = 8 << 20

// Images wider than this are downscaled before storage.
const evidenceMaxWidth = 1600

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9.\-_]+`)

// ErrEvidenceTooLarge is returned when the upload exceeds MaxEvidenceBytes.
var ErrEvidenceTooLarge = errors.New("evidencia: archivo demasiado grande")

// EvidenceStore keeps transfer receipts, justification documents and work
// order photos on local disk. Images are normalized to JPEG; other files
// (PDF receipts) are stored as received.
type EvidenceStore struct {
	root string
}

func NewEvidenceStore(root string) (*EvidenceStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("evidencia: create storage dir: %w", err)
	}
	return &EvidenceStore{root: root}, nil
}

// Save writes r under folder and returns the path relative to the store root.
func (s *EvidenceStore) Save(ctx context.Context, folder, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxEvidenceBytes+1))
	if err != nil {
		return "", fmt.Errorf("evidencia: read: %w", err)
	}
	if len(data) > MaxEvidenceBytes {
		return "", ErrEvidenceTooLarge
	}

	name := uniqueFilename(filename)
	if img, _, decErr := image.Decode(bytes.NewReader(data)); decErr == nil {
		if img.Bounds().Dx() > evidenceMaxWidth {
			img = imaging.Resize(img, evidenceMaxWidth, 0, imaging.Lanczos)
		}
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
			return "", fmt.Errorf("evidencia: encode: %w", err)
		}
		data = buf.Bytes()
		name = strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
	}

	rel := filepath.Join(folder, name)
	full := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("evidencia: create dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o640); err != nil {
		return "", fmt.Errorf("evidencia: write: %w", err)
	}
	return rel, nil
}

// Open returns the stored file for download.
func (s *EvidenceStore) Open(rel string) (io.ReadCloser, error) {
	full, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// Delete removes a stored file. Missing files are not an error.
func (s *EvidenceStore) Delete(_ context.Context, rel string) error {
	if rel == "" {
		return nil
	}
	full, err := s.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("evidencia: delete: %w", err)
	}
	return nil
}

func (s *EvidenceStore) resolve(rel string) (string, error) {
	full := filepath.Join(s.root, filepath.Clean("/"+rel))
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("evidencia: invalid path %q", rel)
	}
	return full, nil
}

func uniqueFilename(original string) string {
	safe := unsafeFilename.ReplaceAllString(filepath.Base(original), "_")
	return fmt.Sprintf("%s-%s-%s", time.Now().Format("20060102"), uuid.NewString(), safe)
}
