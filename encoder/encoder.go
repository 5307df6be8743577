// Package encoder compresses finished voice takes for archival.
package encoder

import "time"

const BlockSize = 4096

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	AddEncodeTime(d time.Duration)
	EncodeTime() time.Duration
}
