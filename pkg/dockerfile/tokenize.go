package dockerfile

import (
	"unicode"
	"unicode/utf8"
)

// pair is a single key/value assignment in the order it was first seen.
type pair struct {
	Key   string
	Value string
}

// Tokenize splits an instruction payload such as `a=1 b="two words" c='x'`
// into a key/value map. Tokens alternate key, value; an odd trailing key is
// dropped. Quotes cannot be escaped inside quoted values, and an unterminated
// quote produces no token at that position.
func Tokenize(payload string) map[string]string {
	pairs := tokenizePairs(payload)
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		out[p.Key] = p.Value
	}
	return out
}

// tokenizePairs is Tokenize keeping first-insertion order. A key assigned
// twice keeps its first position and takes the later value.
func tokenizePairs(payload string) []pair {
	var (
		pairs   []pair
		index   = make(map[string]int)
		key     string
		pending bool
	)

	emit := func(tok string) {
		// An empty key never stays pending; the next token takes its place.
		if !pending || key == "" {
			key, pending = tok, true
			return
		}
		if i, ok := index[key]; ok {
			pairs[i].Value = tok
		} else {
			index[key] = len(pairs)
			pairs = append(pairs, pair{Key: key, Value: tok})
		}
		key, pending = "", false
	}

	s := payload
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case unicode.IsSpace(r):
			j := skipSpace(s, i)
			if j < len(s) && s[j] == '=' {
				j++
			}
			i = j
		case r == '=':
			i++
		case r == '"' || r == '\'':
			end := indexByteFrom(s, i+1, byte(r))
			if end < 0 {
				i += size
				continue
			}
			emit(s[i+1 : end])
			i = end + 1
		default:
			j := i
			for j < len(s) {
				r2, sz := utf8.DecodeRuneInString(s[j:])
				if unicode.IsSpace(r2) || r2 == '=' || r2 == '"' || r2 == '\'' {
					break
				}
				j += sz
			}
			emit(s[i:j])
			i = j
		}
	}
	return pairs
}

func skipSpace(s string, i int) int {
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i
}

func indexByteFrom(s string, from int, b byte) int {
	for i := from; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
