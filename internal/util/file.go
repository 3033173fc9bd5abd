package util

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
)

var (
	trailingJunk = regexp.MustCompile(`[\. ]+$`)
	illegalChars = regexp.MustCompile(`[/\?<>\\:\*\|"]`)
)

// SanitizeName makes a title safe as a file name on every platform the
// tool runs on. Trailing dots and spaces go first, so names like
// "foo. . " collapse before reserved characters become underscores.
func SanitizeName(name string) string {
	name = trailingJunk.ReplaceAllString(name, "")

	return illegalChars.ReplaceAllString(name, "_")
}

// ArchiveFile is one page ready to land in an archive.
type ArchiveFile struct {
	Name string
	Data []byte
}

// WriteCBZ writes a comic archive atomically. The zip grows under a
// .part name and only a complete archive ever takes the final path, so
// an interrupted run leaves no half-readable book behind.
func WriteCBZ(path string, files []ArchiveFile) error {
	part := path + ".part"

	out, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("cbz: %w", err)
	}

	if err := writeZip(out, files); err != nil {
		_ = out.Close()
		_ = os.Remove(part)
		return fmt.Errorf("cbz: %w", err)
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("cbz: %w", err)
	}

	if err := os.Rename(part, path); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("cbz: %w", err)
	}

	return nil
}

func writeZip(out io.Writer, files []ArchiveFile) error {
	sorted := make([]ArchiveFile, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	z := zip.NewWriter(out)
	for _, f := range sorted {
		w, err := z.CreateHeader(&zip.FileHeader{
			Name:   f.Name,
			Method: zip.Deflate,
		})
		if err != nil {
			return err
		}

		if _, err := w.Write(f.Data); err != nil {
			return err
		}
	}

	return z.Close()
}
