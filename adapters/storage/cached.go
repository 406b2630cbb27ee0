package storage

import (
	"bytes"
	"container/list"
	"context"
	"io"
	"sync"

	"github.com/Skryldev/image-resizer/utils"
)

// Cached wraps an Adapter with an in-memory cache bounded by a byte quota.
// Reads served from the cache never touch the backing store; eviction drops
// the least recently used entries first.
type Cached struct {
	backing Adapter
	quota   int64 // 0 = unbounded

	mu    sync.Mutex
	usage int64
	order *list.List // most recently used at front
	index map[Key]*list.Element
}

type cacheEntry struct {
	key  Key
	data []byte
}

// NewCached wraps backing with a cache holding at most quota bytes.
func NewCached(backing Adapter, quota int64) *Cached {
	return &Cached{
		backing: backing,
		quota:   quota,
		order:   list.New(),
		index:   make(map[Key]*list.Element),
	}
}

func (c *Cached) Put(ctx context.Context, key Key, r io.Reader, meta map[string]string) error {
	buf, err := utils.DrainReader(ctx, r, 0)
	if err != nil {
		return err
	}
	data := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	if err := c.backing.Put(ctx, key, bytes.NewReader(data), meta); err != nil {
		return err
	}
	c.add(key, data)
	return nil
}

func (c *Cached) Get(ctx context.Context, key Key) (io.ReadCloser, error) {
	if data, ok := c.lookup(key); ok {
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	rc, err := c.backing.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	buf, err := utils.DrainReader(ctx, rc, 0)
	if err != nil {
		return nil, err
	}
	data := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	c.add(key, data)
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (c *Cached) Delete(ctx context.Context, key Key) error {
	c.mu.Lock()
	if el, ok := c.index[key]; ok {
		c.remove(el)
	}
	c.mu.Unlock()
	return c.backing.Delete(ctx, key)
}

func (c *Cached) Exists(ctx context.Context, key Key) (bool, error) {
	c.mu.Lock()
	_, ok := c.index[key]
	c.mu.Unlock()
	if ok {
		return true, nil
	}
	return c.backing.Exists(ctx, key)
}

// Usage returns the bytes currently held in the cache.
func (c *Cached) Usage() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

func (c *Cached) lookup(key Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).data, true
}

func (c *Cached) add(key Key, data []byte) {
	size := int64(len(data))
	// Entries larger than the whole quota are never cached.
	if c.quota > 0 && size > c.quota {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		c.remove(el)
	}
	// Evict least recently used entries until the new one fits.
	for c.quota > 0 && c.usage+size > c.quota {
		back := c.order.Back()
		if back == nil {
			break
		}
		c.remove(back)
	}

	el := c.order.PushFront(&cacheEntry{key: key, data: data})
	c.index[key] = el
	c.usage += size
}

// remove must be called with c.mu held.
func (c *Cached) remove(el *list.Element) {
	entry := el.Value.(*cacheEntry)
	c.order.Remove(el)
	delete(c.index, entry.key)
	c.usage -= int64(len(entry.data))
}

var _ Adapter = (*Cached)(nil)
