package backupmgr

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func TestCopyDirectoryNestedOverwrite(t *testing.T) {
	ops := LocalFileOperations{}
	src := filepath.Join(t.TempDir(), "src")
	dst := filepath.Join(t.TempDir(), "a", "b", "dst")
	writeTree(t, src, map[string]string{
		"persistent.sfs":         "new",
		"Ships/VAB/rocket.craft": "craft",
	})
	writeTree(t, dst, map[string]string{
		"persistent.sfs": "old",
		"keep.txt":       "untouched",
	})

	require.NoError(t, ops.CopyDirectory(src, dst))

	assert.Equal(t, "new", readFile(t, filepath.Join(dst, "persistent.sfs")))
	assert.Equal(t, "craft", readFile(t, filepath.Join(dst, "Ships", "VAB", "rocket.craft")))
	assert.Equal(t, "untouched", readFile(t, filepath.Join(dst, "keep.txt")))

	assert.Error(t, ops.CopyDirectory(filepath.Join(src, "missing"), dst))
	assert.Error(t, ops.CopyDirectory(filepath.Join(src, "persistent.sfs"), dst))
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	ops := LocalFileOperations{}
	dir := t.TempDir()
	large := strings.Repeat("PART { name = fuelTank }\n", 500)
	writeTree(t, dir, map[string]string{
		"persistent.sfs":         large,
		"Ships/VAB/rocket.craft": "craft",
		MarkerBackupOK:           "",
	})

	require.NoError(t, ops.CompressFolder(dir))

	assert.NoFileExists(t, filepath.Join(dir, "persistent.sfs"))
	assert.FileExists(t, filepath.Join(dir, "persistent.sfs"+compressedSuffix))
	assert.FileExists(t, filepath.Join(dir, "Ships", "VAB", "rocket.craft"+compressedSuffix))
	assert.FileExists(t, filepath.Join(dir, MarkerBackupOK))
	assert.NoFileExists(t, filepath.Join(dir, MarkerBackupOK+compressedSuffix))

	stat, err := os.Stat(filepath.Join(dir, "persistent.sfs"+compressedSuffix))
	require.NoError(t, err)
	assert.Less(t, stat.Size(), int64(len(large)))

	// compressing twice leaves compressed files alone
	require.NoError(t, ops.CompressFolder(dir))
	assert.NoFileExists(t, filepath.Join(dir, "persistent.sfs"+compressedSuffix+compressedSuffix))

	require.True(t, ops.DecompressFolder(dir))
	assert.Equal(t, large, readFile(t, filepath.Join(dir, "persistent.sfs")))
	assert.Equal(t, "craft", readFile(t, filepath.Join(dir, "Ships", "VAB", "rocket.craft")))
	assert.NoFileExists(t, filepath.Join(dir, "persistent.sfs"+compressedSuffix))
}

func TestDecompressFolderRejectsCorruptData(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"persistent.sfs" + compressedSuffix: "not zstd"})

	assert.False(t, LocalFileOperations{}.DecompressFolder(dir))
}

func TestListDirectories(t *testing.T) {
	ops := LocalFileOperations{}
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"zeta/persistent.sfs":  "",
		"alpha/persistent.sfs": "",
		"loose.txt":            "",
	})

	names, err := ops.ListDirectories(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, names)

	_, err = ops.ListDirectories(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestFileHelpers(t *testing.T) {
	ops := LocalFileOperations{}
	dir := t.TempDir()
	marker := filepath.Join(dir, "slot", MarkerBackupOK)

	require.NoError(t, ops.CreateFile(marker))
	assert.True(t, ops.FileExists(marker))
	assert.False(t, ops.DirectoryExists(marker))
	assert.True(t, ops.DirectoryExists(filepath.Dir(marker)))

	require.NoError(t, ops.DeleteFile(marker))
	assert.False(t, ops.FileExists(marker))
	assert.Error(t, ops.DeleteFile(marker))

	require.NoError(t, ops.DeleteDirectory(filepath.Join(dir, "slot")))
	require.NoError(t, ops.DeleteDirectory(filepath.Join(dir, "slot")))
	assert.False(t, ops.DirectoryExists(filepath.Join(dir, "slot")))

	assert.Equal(t, "career", ops.GetFileName(filepath.Join(dir, "career")+string(filepath.Separator)))
}
