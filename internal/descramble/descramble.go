// Package descramble rebuilds readable page images from the tile-shuffled
// ones the image host serves. Scrambled pages are cut into a rows by cols
// grid of equal tiles and the tiles are permuted with a shuffle seeded by
// the page's scramble key. Pixels right and below the grid, when the
// image size is not a multiple of the tile size, are never moved.
package descramble

import (
	"crypto/sha256"
	"image"
	"image/draw"
	"io"
	"math/rand/v2"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Decode reads one page image. JPEG, PNG and WebP cover everything the
// image host serves.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	return img, nil
}

// Descramble restores the original tile order of a scrambled page. The
// input image is left untouched.
func Descramble(img image.Image, key string, rows, cols int) (image.Image, error) {
	return permuteTiles(img, key, rows, cols, false)
}

// Scramble applies the tile shuffle a page with this key would arrive
// with. It is the exact inverse of Descramble.
func Scramble(img image.Image, key string, rows, cols int) (image.Image, error) {
	return permuteTiles(img, key, rows, cols, true)
}

func permuteTiles(src image.Image, key string, rows, cols int, forward bool) (image.Image, error) {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	paramErr := func(reason string) error {
		return &ScrambleParamError{Rows: rows, Cols: cols, Width: width, Height: height, Reason: reason}
	}

	if key == "" {
		return nil, paramErr("empty scramble key")
	}
	if rows <= 0 || cols <= 0 {
		return nil, paramErr("grid has no tiles")
	}

	tileW, tileH := width/cols, height/rows
	if tileW == 0 || tileH == 0 {
		return nil, paramErr("image smaller than its grid")
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))

	// Copy everything first so the remainder strips survive, then land
	// each tile where the permutation sends it.
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)

	for i, p := range permutation(key, rows*cols) {
		from, to := i, p
		if !forward {
			from, to = p, i
		}

		sr := tileRect(from, cols, tileW, tileH)
		dr := tileRect(to, cols, tileW, tileH)
		draw.Draw(dst, dr, src, bounds.Min.Add(sr.Min), draw.Src)
	}

	return dst, nil
}

// permutation is the key's tile shuffle. The key seeds a ChaCha8 stream
// through SHA-256, so equal keys always shuffle equally and the shuffle
// never depends on anything but the key.
func permutation(key string, n int) []int {
	seed := sha256.Sum256([]byte(key))

	return rand.New(rand.NewChaCha8(seed)).Perm(n)
}

// tileRect locates tile i in a row-major grid.
func tileRect(i, cols, tileW, tileH int) image.Rectangle {
	row, col := i/cols, i%cols

	return image.Rect(col*tileW, row*tileH, (col+1)*tileW, (row+1)*tileH)
}
