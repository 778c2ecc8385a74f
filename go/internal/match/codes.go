package match

import (
	"crypto/rand"
	"math/big"
)

// codeAlphabet omits the easily confused I, O, 0 and 1.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const defaultCodeLength = 6

// CodeAllocator hands out short room codes.
type CodeAllocator struct {
	length int
	index  func(n int) int
}

// NewCodeAllocator returns an allocator producing codes of the given length
// from a cryptographic source.
func NewCodeAllocator(length int) *CodeAllocator {
	if length <= 0 {
		length = defaultCodeLength
	}
	return &CodeAllocator{length: length, index: cryptoIndex}
}

// Next returns a code for which taken reports false. Callers must keep the
// set behind taken stable for the duration of the call.
func (a *CodeAllocator) Next(taken func(code string) bool) string {
	for {
		code := a.generate()
		if !taken(code) {
			return code
		}
	}
}

func (a *CodeAllocator) generate() string {
	b := make([]byte, a.length)
	for i := range b {
		b[i] = codeAlphabet[a.index(len(codeAlphabet))]
	}
	return string(b)
}

func cryptoIndex(n int) int {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return int(idx.Int64())
}
