// Package prompt holds the shared prompt text that both manual edits and
// live transcript fragments write into.
package prompt

import "unicode"

// MergeFragment appends fragment to buffer, inserting exactly one space
// when buffer is non-empty and does not already end with whitespace.
// Fragments are appended in delivery order; prior buffer content is never
// rewritten.
func MergeFragment(buffer, fragment string) string {
	if fragment == "" {
		return buffer
	}
	if buffer == "" {
		return fragment
	}
	runes := []rune(buffer)
	if unicode.IsSpace(runes[len(runes)-1]) {
		return buffer + fragment
	}
	return buffer + " " + fragment
}

// Buffer is the prompt text shared between the keyboard and the
// transcription pipeline. Both writers run on the UI timeline, so access
// is sequenced rather than locked.
type Buffer struct {
	text string
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append merges a transcript fragment onto the end of the buffer.
func (b *Buffer) Append(fragment string) {
	b.text = MergeFragment(b.text, fragment)
}

// Set replaces the buffer content verbatim (manual keyboard edit path).
func (b *Buffer) Set(text string) {
	b.text = text
}

func (b *Buffer) Text() string {
	return b.text
}

func (b *Buffer) Clear() {
	b.text = ""
}
