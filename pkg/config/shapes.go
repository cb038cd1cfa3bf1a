package config

import (
	"io/fs"
	"sync"

	"github.com/RaccoonTwigs/vsmod-AnimationManagerLib/internal/shape"
)

// ShapeCache 按路径缓存已解析的形状
// 热重载时用 Invalidate 丢弃单个文件
type ShapeCache struct {
	fsys   fs.FS
	mu     sync.RWMutex
	shapes map[string]*shape.Shape
}

// NewShapeCache 创建形状缓存
func NewShapeCache(fsys fs.FS) *ShapeCache {
	return &ShapeCache{fsys: fsys, shapes: make(map[string]*shape.Shape)}
}

// Load 加载形状（命中缓存时直接返回）
func (c *ShapeCache) Load(path string) (*shape.Shape, error) {
	c.mu.RLock()
	s, ok := c.shapes[path]
	c.mu.RUnlock()
	if ok {
		return s, nil
	}

	s, err := shape.ParseShapeFS(c.fsys, path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.shapes[path] = s
	c.mu.Unlock()
	return s, nil
}

// Invalidate 丢弃单个形状，返回是否曾缓存
func (c *ShapeCache) Invalidate(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.shapes[path]
	delete(c.shapes, path)
	return ok
}

// Len 缓存的形状数量
func (c *ShapeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.shapes)
}
