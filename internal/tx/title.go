package tx

import (
	"bytes"
	"encoding/binary"
	"unicode/utf8"

	"github.com/atmx/prediction-amm/internal/result"
)

// MaxTitleWords caps a packed title.
const MaxTitleWords = 9

// EncodeTitle packs s little-endian, 8 bytes per word, zero padding the
// last word.
func EncodeTitle(s string) []uint64 {
	n := (len(s) + 7) / 8
	buf := make([]byte, n*8)
	copy(buf, s)
	words := make([]uint64, n)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(buf[i*8:])
	}
	return words
}

// DecodeTitle unpacks words produced by EncodeTitle. Trailing NUL padding
// is stripped; the remainder must be valid UTF-8.
func DecodeTitle(words []uint64) (string, error) {
	if len(words) > MaxTitleWords {
		return "", result.ErrInvalidMarketTitle
	}
	buf := make([]byte, len(words)*8)
	for i, w := range words {
		binary.LittleEndian.PutUint64(buf[i*8:], w)
	}
	buf = bytes.TrimRight(buf, "\x00")
	if !utf8.Valid(buf) {
		return "", result.ErrInvalidMarketTitle
	}
	return string(buf), nil
}
