// Portions of this file are derived from diff-match-patch
// (Copyright 2018 The diff-match-patch Authors, Apache License 2.0,
// https://github.com/google/diff-match-patch) and from its Go port go-diff
// (Copyright (c) 2012-2016 The go-diff Authors, MIT License,
// https://github.com/sergi/go-diff). See NOTICE at the module root.

package diff

import "math"

// Match locates the best fuzzy instance of pattern in text near loc using
// the engine's threshold and distance. It returns -1 when nothing scores
// within the threshold. Patterns longer than 32 runes only match exactly.
func (e *Engine) Match(text, pattern string, loc int) int {
	return e.matchRunes([]rune(text), []rune(pattern), loc)
}

func (e *Engine) matchRunes(text, pattern []rune, loc int) int {
	loc = max(0, min(loc, len(text)))
	switch {
	case runesEqual(text, pattern):
		return 0
	case len(text) == 0:
		return -1
	case loc+len(pattern) <= len(text) && runesEqual(text[loc:loc+len(pattern)], pattern):
		return loc
	case len(pattern) > matchMaxBits:
		return runesIndex(text, pattern, 0)
	}
	return e.bitap(text, pattern, loc)
}

// bitap runs the shift-or approximate search, widening the allowed error
// count one step at a time and narrowing the window by score.
func (e *Engine) bitap(text, pattern []rune, loc int) int {
	alphabet := make(map[rune]int, len(pattern))
	for i, r := range pattern {
		alphabet[r] |= 1 << uint(len(pattern)-i-1)
	}

	score := func(errs, x int) float64 {
		accuracy := float64(errs) / float64(len(pattern))
		proximity := math.Abs(float64(loc - x))
		if e.opts.MatchDistance == 0 {
			if proximity == 0 {
				return accuracy
			}
			return 1.0
		}
		return accuracy + proximity/float64(e.opts.MatchDistance)
	}

	threshold := e.opts.MatchThreshold
	if best := runesIndex(text, pattern, loc); best != -1 {
		threshold = math.Min(score(0, best), threshold)
		if best = runesLastIndex(text, pattern, loc+len(pattern)); best != -1 {
			threshold = math.Min(score(0, best), threshold)
		}
	}

	matchMask := 1 << uint(len(pattern)-1)
	bestLoc := -1
	binMax := len(pattern) + len(text)
	var lastRd []int
	for d := 0; d < len(pattern); d++ {
		// Binary search for how far from loc this error level can stray.
		binMin, binMid := 0, binMax
		for binMin < binMid {
			if score(d, loc+binMid) <= threshold {
				binMin = binMid
			} else {
				binMax = binMid
			}
			binMid = (binMax-binMin)/2 + binMin
		}
		binMax = binMid
		start := max(1, loc-binMid+1)
		finish := min(loc+binMid, len(text)) + len(pattern)

		rd := make([]int, finish+2)
		rd[finish+1] = (1 << uint(d)) - 1
		for j := finish; j >= start; j-- {
			charMatch := 0
			if j-1 < len(text) {
				charMatch = alphabet[text[j-1]]
			}
			if d == 0 {
				rd[j] = ((rd[j+1] << 1) | 1) & charMatch
			} else {
				rd[j] = (((rd[j+1] << 1) | 1) & charMatch) |
					(((lastRd[j+1] | lastRd[j]) << 1) | 1) |
					lastRd[j+1]
			}
			if rd[j]&matchMask == 0 {
				continue
			}
			sc := score(d, j-1)
			if sc > threshold {
				continue
			}
			threshold = sc
			bestLoc = j - 1
			if bestLoc <= loc {
				break
			}
			// Past loc; don't look further right than the mirror image.
			start = max(1, 2*loc-bestLoc)
		}
		if score(d+1, loc) > threshold {
			break
		}
		lastRd = rd
	}
	return bestLoc
}
