package encoder

import "time"

// Blocker buffers an arbitrary sample stream into fixed-size blocks for an
// Encoder. The stream format requires every block except the last to be
// exactly BlockSize samples.
type Blocker struct {
	enc Encoder
	buf []int16
}

func NewBlocker(enc Encoder) *Blocker {
	return &Blocker{enc: enc}
}

func (b *Blocker) Write(samples []int16) error {
	b.buf = append(b.buf, samples...)
	for len(b.buf) >= BlockSize {
		start := time.Now()
		if err := b.enc.EncodeBlock(b.buf[:BlockSize]); err != nil {
			return err
		}
		b.enc.AddEncodeTime(time.Since(start))
		b.buf = b.buf[BlockSize:]
	}
	return nil
}

// Flush encodes the partial tail block and finalizes the encoder.
func (b *Blocker) Flush() error {
	if len(b.buf) > 0 {
		start := time.Now()
		if err := b.enc.EncodeBlock(b.buf); err != nil {
			return err
		}
		b.enc.AddEncodeTime(time.Since(start))
		b.buf = nil
	}
	return b.enc.Close()
}

func (b *Blocker) Bytes() []byte { return b.enc.Bytes() }
