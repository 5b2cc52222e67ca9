package agents

import (
	"strings"

	"github.com/talgya/worldhistory/internal/rng"
)

var onsets = []string{
	"b", "d", "g", "h", "k", "l", "m", "n", "r", "s", "t", "v", "z",
	"br", "dr", "gr", "kr", "th", "sh", "ny", "ts",
}

var vowels = []string{"a", "e", "i", "o", "u", "aa", "ei", "ou"}

var codas = []string{"", "", "", "n", "r", "k", "m", "l", "s"}

// GenerateName builds a two or three syllable name from the stream.
// Each syllable draws from offset+syllable index on a derived entity so
// different call sites do not share syllables.
func GenerateName(stream rng.Stream, entityID, date int64, offset rng.Offset) string {
	syllables := 2 + stream.Int(entityID, date, offset, 2)
	var b strings.Builder
	for i := 0; i < syllables; i++ {
		sub := entityID*31 + int64(i)
		b.WriteString(onsets[stream.Int(sub, date, offset, len(onsets))])
		b.WriteString(vowels[stream.Int(sub+7, date, offset, len(vowels))])
		if i == syllables-1 {
			b.WriteString(codas[stream.Int(sub+13, date, offset, len(codas))])
		}
	}
	name := b.String()
	return strings.ToUpper(name[:1]) + name[1:]
}
