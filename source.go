package imageresizer

import (
	"bytes"
	"context"
	"path"

	"github.com/Skryldev/image-resizer/adapters/storage"
	"github.com/Skryldev/image-resizer/core"
	apperrors "github.com/Skryldev/image-resizer/errors"
	"github.com/Skryldev/image-resizer/utils"
)

// Source serves processed images out of a storage adapter, transforming on
// miss.  Processed results are stored next to the original under a
// params-named directory, so repeated requests for the same geometry are
// served straight from storage.
type Source struct {
	store  storage.Adapter
	trans  *Transformer
	bucket string
}

// NewSource creates a Source over store and trans.  bucket may be empty for
// adapters without bucket scoping.
func NewSource(store storage.Adapter, trans *Transformer, bucket string) *Source {
	return &Source{store: store, trans: trans, bucket: bucket}
}

// Fetch returns the processed rendition of the image at imgPath for the
// given params, transforming and storing it if no cached rendition exists.
func (s *Source) Fetch(ctx context.Context, imgPath, params string) ([]byte, core.Format, error) {
	if imgPath == "" {
		return nil, core.FormatUnknown, apperrors.New(apperrors.CategoryInput, "source.fetch",
			apperrors.ErrEmptyInput)
	}

	dir, file := path.Split(imgPath)
	procKey := storage.Key{Bucket: s.bucket, Path: path.Join(dir, params, file)}

	// Serve an existing processed rendition, if any.
	if data, err := s.read(ctx, procKey); err == nil {
		format, err := DetectFormat(data)
		if err == nil {
			return data, format, nil
		}
	}

	orig, err := s.read(ctx, storage.Key{Bucket: s.bucket, Path: imgPath})
	if err != nil {
		return nil, core.FormatUnknown, err
	}

	out, format, err := s.trans.Transform(ctx, orig, params)
	if err != nil {
		return nil, core.FormatUnknown, err
	}

	meta := map[string]string{"Content-Type": format.MIME()}
	if err := s.store.Put(ctx, procKey, bytes.NewReader(out), meta); err != nil {
		return nil, core.FormatUnknown, err
	}
	return out, format, nil
}

// Purge removes the original at imgPath and the processed rendition for
// params, if present.
func (s *Source) Purge(ctx context.Context, imgPath, params string) error {
	dir, file := path.Split(imgPath)
	if err := s.store.Delete(ctx, storage.Key{Bucket: s.bucket, Path: path.Join(dir, params, file)}); err != nil {
		return err
	}
	return s.store.Delete(ctx, storage.Key{Bucket: s.bucket, Path: imgPath})
}

func (s *Source) read(ctx context.Context, key storage.Key) ([]byte, error) {
	rc, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	buf, err := utils.DrainReader(ctx, rc, 0)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "source.read", err)
	}
	data := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)
	return data, nil
}
