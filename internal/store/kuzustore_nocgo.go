//go:build !cgo

package store

import "errors"

// ErrKuzuUnavailable is returned when the binary was built without CGO
// and the KuzuDB backend cannot be used.
var ErrKuzuUnavailable = errors.New("store: kuzu backend requires a cgo build")

// NewKuzuStore is unavailable without CGO.
func NewKuzuStore() (Store, error) {
	return nil, ErrKuzuUnavailable
}

// NewKuzuFileStore is unavailable without CGO.
func NewKuzuFileStore(string) (Store, error) {
	return nil, ErrKuzuUnavailable
}
