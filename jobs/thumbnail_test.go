package jobs

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestThumbnailWritesPlaceholderForValidImage(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	dst := filepath.Join(dir, "photo.thumb.txt")

	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(0, 0, color.White)
	f, err := os.Create(src)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	ctx, _ := newTestContext(t, "thumbnail-1")
	th := &Thumbnail{state: ThumbnailState{Source: src, Destination: dst}}
	out, err := th.Run(ctx)
	require.NoError(t, err)
	require.Contains(t, out.Summary, "4x3")

	placeholder, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Contains(t, string(placeholder), "4x3")
}

func TestThumbnailFailsOnUndecodableSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "not-an-image.txt")
	require.NoError(t, os.WriteFile(src, []byte("not an image"), 0o644))

	ctx, _ := newTestContext(t, "thumbnail-2")
	th := &Thumbnail{state: ThumbnailState{Source: src, Destination: filepath.Join(dir, "out.txt")}}
	_, err := th.Run(ctx)
	require.Error(t, err)
}
