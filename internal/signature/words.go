package signature

import (
	"errors"
	"fmt"
)

// ErrInvalidWords is returned when stored words have the wrong length.
var ErrInvalidWords = errors.New("invalid signature words")

// Words are the index keys of a signature. Word i always carries i in its
// lowest base-3 digits, so two signatures only share a word when the same
// window matches.
type Words [NumWords]int32

// GenerateWords derives the index words of a compressed signature. Each word
// covers NumLetters consecutive values reduced to darker, same or lighter.
func GenerateWords(c Compressed) Words {
	sig := Decode(c)
	positions := linspace(0, Len-NumLetters, NumWords)

	var words Words
	for w, pos := range positions {
		var letters, weight int64 = 0, 1
		for _, v := range sig[pos : pos+NumLetters] {
			letter := max(-1, min(1, int64(v)-LuminanceLevels)) + 1
			letters += letter * weight
			weight *= reducedSymbols
		}
		words[w] = int32(int64(w) + wordIndexBase*letters)
	}
	return words
}

// Matches counts the positions at which both word sets hold the same word.
func (w Words) Matches(other Words) int {
	n := 0
	for i := range w {
		if w[i] == other[i] {
			n++
		}
	}
	return n
}

// Slice returns the words as a slice, for storage.
func (w Words) Slice() []int32 {
	return w[:]
}

// WordsFromSlice converts stored words.
func WordsFromSlice(values []int32) (Words, error) {
	var w Words
	if len(values) != NumWords {
		return w, fmt.Errorf("%w: got %d words, want %d", ErrInvalidWords, len(values), NumWords)
	}
	copy(w[:], values)
	return w, nil
}
