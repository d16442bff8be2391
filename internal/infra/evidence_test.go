package infra

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestEvidenceStore_ImageIsDownscaledToJPEG(t *testing.T) {
	store, err := NewEvidenceStore(t.TempDir())
	require.NoError(t, err)

	rel, err := store.Save(context.Background(), "pagos", "comprobante.png", bytes.NewReader(pngBytes(t, 2400, 100)))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(rel, ".jpg"))
	assert.Equal(t, "pagos", filepath.Dir(rel))

	f, err := store.Open(rel)
	require.NoError(t, err)
	defer f.Close()
	img, err := imaging.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, evidenceMaxWidth, img.Bounds().Dx())
}

func TestEvidenceStore_NonImageStoredAsIs(t *testing.T) {
	store, err := NewEvidenceStore(t.TempDir())
	require.NoError(t, err)

	payload := []byte("%PDF-1.4 transferencia")
	rel, err := store.Save(context.Background(), "justificaciones", "certificado medico.pdf", bytes.NewReader(payload))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(rel, "certificado_medico.pdf"))

	f, err := store.Open(rel)
	require.NoError(t, err)
	got, _ := io.ReadAll(f)
	f.Close()
	assert.Equal(t, payload, got)

	require.NoError(t, store.Delete(context.Background(), rel))
	_, err = os.Stat(filepath.Join(store.root, rel))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, store.Delete(context.Background(), rel), "deleting twice is a no-op")
}

func TestEvidenceStore_RejectsOversizedAndTraversal(t *testing.T) {
	store, err := NewEvidenceStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "pagos", "big.bin", bytes.NewReader(make([]byte, MaxEvidenceBytes+1)))
	assert.ErrorIs(t, err, ErrEvidenceTooLarge)

	_, err = store.Open("../../etc/passwd")
	assert.Error(t, err)
}
