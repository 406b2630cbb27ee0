package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/Skryldev/image-resizer/errors"
)

const metaSuffix = ".meta.json"

// Local stores originals and rendered results on the local filesystem.
// Bucket maps to a subdirectory under the root, Path to the file below it.
// Writes land in a temp file and are renamed into place, so concurrent
// fetches rendering the same key never observe a half-written object.
type Local struct {
	root string
	perm os.FileMode
}

// NewLocal creates a Local storage adapter rooted at dir.
func NewLocal(dir string, perm os.FileMode) (*Local, error) {
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.init", err)
	}
	return &Local{root: filepath.Clean(dir), perm: perm}, nil
}

// resolve maps key to a path under the root.  Keys whose cleaned path would
// escape the root are rejected; request paths reach this point unfiltered.
func (l *Local) resolve(key Key) (string, error) {
	p := filepath.Clean(filepath.Join(l.root, key.Bucket, key.Path))
	if p != l.root && !strings.HasPrefix(p, l.root+string(filepath.Separator)) {
		return "", apperrors.New(apperrors.CategoryStorage, "local.key",
			fmt.Errorf("key escapes storage root: %v", key))
	}
	return p, nil
}

func (l *Local) Put(ctx context.Context, key Key, r io.Reader, meta map[string]string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.put", err)
	}
	dst, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.put", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".put-*")
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.put", err)
	}
	defer os.Remove(tmp.Name())

	_, err = io.Copy(tmp, r)
	if err == nil {
		err = tmp.Chmod(l.perm)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.put", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.put", err)
	}

	if len(meta) > 0 {
		data, err := json.Marshal(meta)
		if err != nil {
			return apperrors.Wrap(apperrors.CategoryStorage, "local.put.meta", err)
		}
		if err := os.WriteFile(dst+metaSuffix, data, l.perm); err != nil {
			return apperrors.Wrap(apperrors.CategoryStorage, "local.put.meta", err)
		}
	}
	return nil
}

func (l *Local) Get(ctx context.Context, key Key) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.get", err)
	}
	p, err := l.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.New(apperrors.CategoryStorage, "local.get",
				fmt.Errorf("no object for key %v", key))
		}
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.get", err)
	}
	return f, nil
}

// Meta returns the metadata stored alongside key.  A missing side-car is an
// empty map, not an error.
func (l *Local) Meta(ctx context.Context, key Key) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.meta", err)
	}
	p, err := l.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p + metaSuffix)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.meta", err)
	}
	meta := map[string]string{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.meta", err)
	}
	return meta, nil
}

func (l *Local) Delete(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.delete", err)
	}
	p, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.Wrap(apperrors.CategoryStorage, "local.delete", err)
	}
	_ = os.Remove(p + metaSuffix)
	return nil
}

func (l *Local) Exists(ctx context.Context, key Key) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, apperrors.Wrap(apperrors.CategoryStorage, "local.exists", err)
	}
	p, err := l.resolve(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, apperrors.Wrap(apperrors.CategoryStorage, "local.exists", err)
}

var _ Adapter = (*Local)(nil)
