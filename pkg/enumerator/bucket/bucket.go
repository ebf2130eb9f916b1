// Package bucket enumerates the objects stored under a prefix of an object
// store, one fragment per object.
package bucket

import (
	"context"
	"fmt"
	"strings"

	"github.com/thanos-io/objstore"

	"github.com/fedscan/fedscan/pkg/enumerator"
	"github.com/fedscan/fedscan/pkg/fragment"
)

// Name under which the bucket enumerator is registered.
const Name = "bucket"

// Metadata identifies the object covered by a fragment.
type Metadata struct {
	Object string `json:"object"`
	Size   int64  `json:"size"`
}

// Enumerator lists the objects under a prefix.
type Enumerator struct {
	bkt    objstore.BucketReader
	prefix string
}

// NewFactory returns a factory for enumerators listing bkt.
func NewFactory(bkt objstore.BucketReader) enumerator.Factory {
	return func(req *fragment.RequestContext) (enumerator.Enumerator, error) {
		return &Enumerator{bkt: bkt, prefix: strings.TrimPrefix(req.DataSource, "/")}, nil
	}
}

// Fragments implements enumerator.Enumerator.
func (e *Enumerator) Fragments(ctx context.Context) ([]fragment.Fragment, error) {
	var fragments []fragment.Fragment
	err := e.bkt.Iter(ctx, e.prefix, func(name string) error {
		if strings.HasSuffix(name, objstore.DirDelim) {
			return nil
		}
		attrs, err := e.bkt.Attributes(ctx, name)
		if err != nil {
			return err
		}
		fragments = append(fragments, fragment.New(name, Metadata{Object: name, Size: attrs.Size}))
		return nil
	}, objstore.WithRecursiveIter)
	if err != nil {
		return nil, err
	}
	if len(fragments) == 0 {
		return nil, fmt.Errorf("prefix %s produced 0 objects", e.prefix)
	}
	return fragments, nil
}
