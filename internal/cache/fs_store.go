package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// NewStore 以 basePath 为根目录构建磁盘缓存，整个进程复用一份实例。
func NewStore(basePath string) (Store, error) {
	return NewStoreWithFs(afero.NewOsFs(), basePath)
}

// NewStoreWithFs 允许注入 afero.Fs，测试中通常传入 afero.NewMemMapFs()。
func NewStoreWithFs(filesystem afero.Fs, basePath string) (Store, error) {
	if filesystem == nil {
		return nil, errors.New("filesystem required")
	}
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := filesystem.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &fileStore{
		fs:       filesystem,
		basePath: abs,
		now:      time.Now,
		locks:    make(map[string]*entryLock),
	}, nil
}

// fileStore 通过 entryLock 避免同一路径并发写入互相踩踏，rename 保证单次写入原子性。
type fileStore struct {
	fs       afero.Fs
	basePath string
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (s *fileStore) Locate(key string, dest Destination) (Handle, error) {
	filePath, err := s.entryPath(key, dest)
	if err != nil {
		return Handle{}, err
	}
	return Handle{path: filePath}, nil
}

func (s *fileStore) Exists(ctx context.Context, key string, dest Destination) (Handle, bool) {
	if ctx.Err() != nil {
		return Handle{}, false
	}
	filePath, err := s.entryPath(key, dest)
	if err != nil {
		return Handle{}, false
	}
	info, err := s.fs.Stat(filePath)
	if err != nil || info.IsDir() {
		return Handle{}, false
	}
	return Handle{path: filePath}, true
}

func (s *fileStore) Timestamp(ctx context.Context, h Handle) (time.Time, bool) {
	if ctx.Err() != nil || h.IsZero() {
		return time.Time{}, false
	}
	info, err := s.fs.Stat(h.path)
	if err != nil || info.IsDir() {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

func (s *fileStore) CreateOrReplace(ctx context.Context, data []byte, key string, dest Destination) (Handle, error) {
	filePath, err := s.entryPath(key, dest)
	if err != nil {
		return Handle{}, &StorageError{Op: OpCreateOrReplace, Path: key, Err: err}
	}

	unlock := s.lockEntry(filePath)
	defer unlock()

	if err := s.writeAtomic(ctx, filePath, bytes.NewReader(data)); err != nil {
		return Handle{}, &StorageError{Op: OpCreateOrReplace, Path: filePath, Err: err}
	}

	modTime := s.now()
	if err := s.fs.Chtimes(filePath, modTime, modTime); err != nil {
		return Handle{}, &StorageError{Op: OpCreateOrReplace, Path: filePath, Err: err}
	}
	return Handle{path: filePath}, nil
}

func (s *fileStore) Read(ctx context.Context, h Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StorageError{Op: OpReadSource, Path: h.path, Err: err}
	}
	f, err := s.fs.Open(h.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &StorageError{Op: OpReadMissingSource, Path: h.path, Err: err}
		}
		return nil, &StorageError{Op: OpReadSource, Path: h.path, Err: err}
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := copyWithContext(ctx, &buf, f); err != nil {
		return nil, &StorageError{Op: OpReadSource, Path: h.path, Err: err}
	}
	return buf.Bytes(), nil
}

func (s *fileStore) Delete(ctx context.Context, h Handle) error {
	if err := ctx.Err(); err != nil {
		return &StorageError{Op: OpDelete, Path: h.path, Err: err}
	}
	if !s.within(h.path) {
		return &StorageError{Op: OpDelete, Path: h.path, Err: ErrInvalidKey}
	}

	unlock := s.lockEntry(h.path)
	defer unlock()

	if err := s.fs.Remove(h.path); err != nil {
		return &StorageError{Op: OpDelete, Path: h.path, Err: err}
	}
	return nil
}

func (s *fileStore) Copy(ctx context.Context, from, to Handle) error {
	if !s.within(to.path) {
		return &StorageError{Op: OpCopy, Source: from.path, Path: to.path, Err: ErrInvalidKey}
	}

	src, err := s.fs.Open(from.path)
	if err != nil {
		return &StorageError{Op: OpCopy, Source: from.path, Path: to.path, Err: err}
	}
	defer src.Close()

	unlock := s.lockEntry(to.path)
	defer unlock()

	if err := s.writeAtomic(ctx, to.path, src); err != nil {
		return &StorageError{Op: OpCopy, Source: from.path, Path: to.path, Err: err}
	}
	return nil
}

func (s *fileStore) Purge(ctx context.Context, dest Destination) PurgeReport {
	report := PurgeReport{Destination: dest}

	dir, err := s.destinationDir(dest)
	if err != nil {
		return report
	}
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return report
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return report
		}
		target := filepath.Join(dir, entry.Name())
		unlock := s.lockEntry(target)
		err := s.fs.RemoveAll(target)
		unlock()
		if err != nil {
			report.Failures = append(report.Failures, &StorageError{Op: OpDelete, Path: target, Err: err})
			continue
		}
		report.Removed++
	}
	return report
}

// writeAtomic 先写入同目录下的临时文件，再 rename 到目标路径，失败时清理临时文件。
func (s *fileStore) writeAtomic(ctx context.Context, filePath string, body io.Reader) error {
	dir := filepath.Dir(filePath)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tempName := filepath.Join(dir, ".cache-"+uuid.NewString())
	tempFile, err := s.fs.OpenFile(tempName, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	_, err = copyWithContext(ctx, tempFile, body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = s.fs.Remove(tempName)
		return err
	}

	if err := s.fs.Rename(tempName, filePath); err != nil {
		_ = s.fs.Remove(tempName)
		return err
	}
	return nil
}

func (s *fileStore) lockEntry(key string) func() {
	s.mu.Lock()
	lock := s.locks[key]
	if lock == nil {
		lock = &entryLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

func (s *fileStore) destinationDir(dest Destination) (string, error) {
	name := strings.TrimSpace(string(dest))
	if name == "" {
		name = string(DestinationDocuments)
	}
	if !isSingleElement(name) {
		return "", fmt.Errorf("%w: destination %q", ErrInvalidKey, dest)
	}
	return filepath.Join(s.basePath, name), nil
}

func (s *fileStore) entryPath(key string, dest Destination) (string, error) {
	if !isSingleElement(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	dir, err := s.destinationDir(dest)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, key), nil
}

func (s *fileStore) within(filePath string) bool {
	if filePath == "" {
		return false
	}
	rel, err := filepath.Rel(s.basePath, filePath)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..")
}

func isSingleElement(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.ContainsRune(name, 0)
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
