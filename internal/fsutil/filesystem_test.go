package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fsys := OSFileSystem{}

	if !fsys.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}

	if fsys.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_WriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	fsys := OSFileSystem{}
	target := filepath.Join(dir, "snap.bin")

	if err := WriteFileAtomic(fsys, target, []byte("first"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	if err := WriteFileAtomic(fsys, target, []byte("second"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic overwrite failed: %v", err)
	}

	data, err := fsys.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("expected %q, got %q", "second", data)
	}

	entries, err := fsys.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target to remain, got %d entries", len(entries))
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	testData := []byte("hello, world")
	if err := mfs.WriteFile("/test.txt", testData, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := mfs.ReadFile("/test.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	if string(data) != string(testData) {
		t.Errorf("expected %q, got %q", testData, data)
	}
}

func TestMemoryFileSystem_Open(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/data/a.csv", []byte("1,2,3"), 0644)

	f, err := mfs.Open("/data/a.csv")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "1,2,3" {
		t.Errorf("expected '1,2,3', got %q", data)
	}

	info, err := f.Stat()
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Name() != "a.csv" || info.Size() != 5 {
		t.Errorf("unexpected stat: %s %d", info.Name(), info.Size())
	}
}

func TestMemoryFileSystem_OpenMissing(t *testing.T) {
	mfs := NewMemoryFileSystem()

	_, err := mfs.Open("/missing.csv")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_ReadDir(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/exp/IV_Curve_2.csv", []byte("x"), 0644)
	_ = mfs.WriteFile("/exp/IV_Curve_1.csv", []byte("x"), 0644)
	_ = mfs.WriteFile("/exp/sub/IV_Curve_1.csv", []byte("x"), 0644)
	_ = mfs.WriteFile("/other/file.txt", []byte("x"), 0644)

	entries, err := mfs.ReadDir("/exp")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}

	want := []struct {
		name  string
		isDir bool
	}{
		{"IV_Curve_1.csv", false},
		{"IV_Curve_2.csv", false},
		{"sub", true},
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for i, w := range want {
		if entries[i].Name() != w.name || entries[i].IsDir() != w.isDir {
			t.Errorf("entry %d: expected %s (dir=%v), got %s (dir=%v)",
				i, w.name, w.isDir, entries[i].Name(), entries[i].IsDir())
		}
	}

	if _, err := mfs.ReadDir("/nope"); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestMemoryFileSystem_Rename(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/a.tmp", []byte("payload"), 0644)

	if err := mfs.Rename("/a.tmp", "/dir/a.bin"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if mfs.Exists("/a.tmp") {
		t.Error("expected source to be gone")
	}
	data, err := mfs.ReadFile("/dir/a.bin")
	if err != nil || string(data) != "payload" {
		t.Errorf("expected payload at destination, got %q (%v)", data, err)
	}
	if !mfs.Exists("/dir") {
		t.Error("expected parent directory to exist")
	}

	if err := mfs.Rename("/missing", "/x"); err == nil {
		t.Error("expected error renaming missing file")
	}
}

func TestMemoryFileSystem_StatDirectory(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if err := mfs.MkdirAll("/a/b/c", 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	for _, p := range []string{"/a", "/a/b", "/a/b/c"} {
		info, err := mfs.Stat(p)
		if err != nil {
			t.Fatalf("Stat(%s) failed: %v", p, err)
		}
		if !info.IsDir() {
			t.Errorf("expected %s to be a directory", p)
		}
	}
}

func TestMemoryFileSystem_Remove(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/d/f.txt", []byte("x"), 0644)

	if err := mfs.Remove("/d"); err == nil {
		t.Error("expected error removing non-empty directory")
	}
	if err := mfs.Remove("/d/f.txt"); err != nil {
		t.Fatalf("Remove file failed: %v", err)
	}
	if err := mfs.Remove("/d"); err != nil {
		t.Fatalf("Remove empty dir failed: %v", err)
	}
	if mfs.Exists("/d") {
		t.Error("expected directory to be removed")
	}
	if err := mfs.Remove("/d"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestWriteFileAtomic_Memory(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if err := WriteFileAtomic(mfs, "/snap/experiment.ivsnap", []byte("v1"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}

	entries, err := mfs.ReadDir("/snap")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "experiment.ivsnap" {
		t.Errorf("expected only experiment.ivsnap, got %v", entries)
	}
}
