// Package demo provides an enumerator that needs no external system. It is
// used to smoke test a deployment end to end.
package demo

import (
	"context"
	"strconv"

	"github.com/fedscan/fedscan/pkg/enumerator"
	"github.com/fedscan/fedscan/pkg/fragment"
)

// Name under which the demo enumerator is registered.
const Name = "demo"

// FragmentCount is the number of fragments every data source is split into.
const FragmentCount = 3

// Metadata identifies one demo fragment.
type Metadata struct {
	Path string `json:"path"`
}

// Enumerator splits any data source into FragmentCount fragments.
type Enumerator struct {
	dataSource string
}

// NewFactory returns the factory registered under Name.
func NewFactory() enumerator.Factory {
	return func(req *fragment.RequestContext) (enumerator.Enumerator, error) {
		return &Enumerator{dataSource: req.DataSource}, nil
	}
}

// Fragments implements enumerator.Enumerator.
func (e *Enumerator) Fragments(ctx context.Context) ([]fragment.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fragments := make([]fragment.Fragment, 0, FragmentCount)
	for i := 1; i <= FragmentCount; i++ {
		path := e.dataSource + "." + strconv.Itoa(i)
		fragments = append(fragments, fragment.New(e.dataSource, Metadata{Path: path}))
	}
	return fragments, nil
}
