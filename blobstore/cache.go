package blobstore

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// BlockKey identifies a cached block of a blob.
type BlockKey struct {
	Name  string
	Block int64
}

// BlockCache caches fixed-size blocks of blob data.
type BlockCache interface {
	Get(key BlockKey) ([]byte, bool)
	Set(key BlockKey, data []byte)
	// Invalidate drops every block of the named blob.
	Invalidate(name string)
}

// LRUBlockCache is a BlockCache bounded by the number of blocks.
type LRUBlockCache struct {
	lru *lru.Cache[BlockKey, []byte]
}

// NewLRUBlockCache creates a cache holding up to blocks entries.
func NewLRUBlockCache(blocks int) (*LRUBlockCache, error) {
	c, err := lru.New[BlockKey, []byte](blocks)
	if err != nil {
		return nil, err
	}
	return &LRUBlockCache{lru: c}, nil
}

func (c *LRUBlockCache) Get(key BlockKey) ([]byte, bool) {
	return c.lru.Get(key)
}

func (c *LRUBlockCache) Set(key BlockKey, data []byte) {
	c.lru.Add(key, data)
}

func (c *LRUBlockCache) Invalidate(name string) {
	for _, k := range c.lru.Keys() {
		if k.Name == name {
			c.lru.Remove(k)
		}
	}
}

// Len returns the number of cached blocks.
func (c *LRUBlockCache) Len() int {
	return c.lru.Len()
}
