package service

import (
	"strconv"
	"strings"
)

// suffixRange bounds the numeric suffix appended to generated usernames.
const suffixRange = 100

func firstWord(name string) string {
	f := strings.Fields(name)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

func (s *AccountServiceImpl) candidate(base string) (string, error) {
	n, err := s.randIntn(suffixRange)
	if err != nil {
		return "", err
	}
	return base + strconv.Itoa(n), nil
}

// suggestions derives alternatives from a name or taken username: two from
// the first word and, for multi-word input, two from the second word and
// two from both words joined by a dash. Duplicates are dropped.
func (s *AccountServiceImpl) suggestions(name string) ([]string, error) {
	words := strings.Fields(name)
	if len(words) == 0 {
		return nil, nil
	}
	bases := []string{words[0], words[0]}
	if len(words) > 1 {
		joined := words[0] + "-" + words[1]
		bases = append(bases, words[1], words[1], joined, joined)
	}

	seen := make(map[string]struct{}, len(bases))
	out := make([]string, 0, len(bases))
	for _, b := range bases {
		c, err := s.candidate(b)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}
