package snapshot

import (
	"time"

	"github.com/hupe1980/docstore/value"
)

// KeyField is one key pattern component. Type is set for special index
// types and Dir otherwise.
type KeyField struct {
	Path string `json:"path"`
	Dir  int    `json:"dir,omitempty"`
	Type string `json:"type,omitempty"`
}

// Index is a persisted index spec.
type Index struct {
	Name   string     `json:"name"`
	Key    []KeyField `json:"key"`
	Sparse bool       `json:"sparse,omitempty"`
	Hidden bool       `json:"hidden,omitempty"`
	Unique bool       `json:"unique,omitempty"`
}

// Timeseries holds the options of a time-series view.
type Timeseries struct {
	TimeField      string        `json:"timeField"`
	MetaField      string        `json:"metaField,omitempty"`
	Granularity    string        `json:"granularity"`
	BucketMaxCount int           `json:"bucketMaxCount"`
	BucketMaxSpan  time.Duration `json:"bucketMaxSpan"`
}

// Collection is one namespace. A time-series view has Timeseries set and no
// records; its buckets are a separate collection.
type Collection struct {
	Name       string      `json:"name"`
	Timeseries *Timeseries `json:"timeseries,omitempty"`
	Indexes    []Index     `json:"indexes,omitempty"`
	Count      int         `json:"count"`

	Docs []value.Document `json:"-" bson:"-"`
}

// Catalog is the database state at a WAL sequence number.
type Catalog struct {
	Seq         uint64       `json:"seq"`
	Created     time.Time    `json:"created"`
	Collections []Collection `json:"collections"`
}

// Collection returns the named collection.
func (c *Catalog) Collection(name string) (*Collection, bool) {
	for i := range c.Collections {
		if c.Collections[i].Name == name {
			return &c.Collections[i], true
		}
	}
	return nil, false
}

// Records returns the total number of records.
func (c *Catalog) Records() int {
	n := 0
	for _, coll := range c.Collections {
		n += coll.Count
	}
	return n
}
