// Package raw adapts concrete byte resources to stream.Stream. Adapters
// report would-block outcomes instead of blocking whenever the resource
// allows it; the blocking package turns those into waits.
package raw

import "github.com/pkg/errors"

// Access is the direction(s) a resource was opened for.
type Access uint8

const (
	ReadOnly Access = 1 << iota
	WriteOnly

	ReadWrite = ReadOnly | WriteOnly
)

func (a Access) Readable() bool { return a&ReadOnly != 0 }

func (a Access) Writable() bool { return a&WriteOnly != 0 }

var errInvalidSeek = errors.New("raw: invalid seek")
