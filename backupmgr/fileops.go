package backupmgr

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// compressedSuffix marks a file compressed by CompressFolder.
const compressedSuffix = ".zst"

// FileOperations is the disk capability the scheduler works through. It never
// interprets save file contents.
type FileOperations interface {
	DirectoryExists(path string) bool
	FileExists(path string) bool
	CopyDirectory(src, dst string) error
	DeleteFile(path string) error
	DeleteDirectory(path string) error
	// ListDirectories returns the names of the direct subdirectories of path.
	// A missing path yields an error matching fs.ErrNotExist.
	ListDirectories(path string) ([]string, error)
	CreateFile(path string) error
	CompressFolder(path string) error
	DecompressFolder(path string) bool
	GetFileName(path string) string
}

// LocalFileOperations implements FileOperations on the local filesystem
type LocalFileOperations struct{}

func (LocalFileOperations) DirectoryExists(path string) bool {
	stat, err := os.Stat(path)
	return err == nil && stat.IsDir()
}

func (LocalFileOperations) FileExists(path string) bool {
	stat, err := os.Stat(path)
	return err == nil && stat.Mode().IsRegular()
}

// CopyDirectory copies src recursively into dst, overwriting existing files.
func (LocalFileOperations) CopyDirectory(src, dst string) error {
	stat, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source directory: %w", err)
	}
	if !stat.IsDir() {
		return fmt.Errorf("source %s is not a directory", src)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, os.ModePerm)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

func (LocalFileOperations) DeleteFile(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete file %s: %w", path, err)
	}
	return nil
}

func (LocalFileOperations) DeleteDirectory(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to delete directory %s: %w", path, err)
	}
	return nil
}

func (LocalFileOperations) ListDirectories(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", path, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (LocalFileOperations) CreateFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	return f.Close()
}

// CompressFolder replaces every regular file below path with a zstd
// compressed copy. Marker files stay as they are.
func (LocalFileOperations) CompressFolder(path string) error {
	return filepath.WalkDir(path, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() || isMarker(d.Name()) || strings.HasSuffix(d.Name(), compressedSuffix) {
			return nil
		}
		if err := compressFile(file, file+compressedSuffix); err != nil {
			return err
		}
		return os.Remove(file)
	})
}

// DecompressFolder expands every compressed file below path in place.
func (LocalFileOperations) DecompressFolder(path string) bool {
	err := filepath.WalkDir(path, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), compressedSuffix) {
			return nil
		}
		if err := decompressFile(file, strings.TrimSuffix(file, compressedSuffix)); err != nil {
			return err
		}
		return os.Remove(file)
	})
	return err == nil
}

func (LocalFileOperations) GetFileName(path string) string {
	return filepath.Base(filepath.Clean(path))
}

func isMarker(name string) bool {
	return name == MarkerBackupOK || name == MarkerRestored
}

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer func() {
		_ = sourceFile.Close()
	}()

	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	destFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer func() {
		_ = destFile.Close()
	}()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("failed to copy file: %w", err)
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}
	if err := destFile.Chmod(srcInfo.Mode()); err != nil {
		return fmt.Errorf("failed to set file permissions: %w", err)
	}

	return destFile.Sync()
}

func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	zw, err := zstd.NewWriter(out)
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	if _, err := io.Copy(zw, in); err != nil {
		_ = zw.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("failed to compress %s: %w", src, err)
	}
	if err := zw.Close(); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("failed to finish %s: %w", dst, err)
	}
	return out.Sync()
}

func decompressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	zr, err := zstd.NewReader(in)
	if err != nil {
		return fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, zr); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("failed to decompress %s: %w", src, err)
	}
	return out.Sync()
}
