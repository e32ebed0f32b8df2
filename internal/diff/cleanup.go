// Portions of this file are derived from diff-match-patch
// (Copyright 2018 The diff-match-patch Authors, Apache License 2.0,
// https://github.com/google/diff-match-patch) and from its Go port go-diff
// (Copyright (c) 2012-2016 The go-diff Authors, MIT License,
// https://github.com/sergi/go-diff). See NOTICE at the module root.

package diff

import "unicode"

// CleanupMerge joins adjacent runs of the same kind, factors common text out
// of delete/insert pairs and slides single edits sideways to absorb
// neighbouring equalities.
func CleanupMerge(diffs []Diff) []Diff {
	return toDiffs(cleanupMerge(toRuns(diffs)))
}

// CleanupSemantic trades minimality for readability: short equalities wedged
// between edits are folded into the edits, then boundaries are shifted to
// word and line breaks.
func CleanupSemantic(diffs []Diff) []Diff {
	return toDiffs(cleanupSemanticRuns(toRuns(diffs)))
}

// CleanupSemanticLossless only shifts single edits between equalities so that
// they line up with the best available break. The texts stay identical.
func CleanupSemanticLossless(diffs []Diff) []Diff {
	return toDiffs(cleanupSemanticLossless(toRuns(diffs)))
}

func insertRun(runs []run, at int, r run) []run {
	runs = append(runs, run{})
	copy(runs[at+1:], runs[at:])
	runs[at] = r
	return runs
}

func removeRun(runs []run, at int) []run {
	return append(runs[:at], runs[at+1:]...)
}

func spliceRuns(runs []run, at, deleteCount int, repl ...run) []run {
	out := make([]run, 0, len(runs)-deleteCount+len(repl))
	out = append(out, runs[:at]...)
	out = append(out, repl...)
	return append(out, runs[at+deleteCount:]...)
}

func cleanupMerge(runs []run) []run {
	runs = append(runs, run{OpEqual, nil}) // sentinel
	pointer := 0
	countDel, countIns := 0, 0
	var textDel, textIns []rune

	for pointer < len(runs) {
		switch runs[pointer].op {
		case OpInsert:
			countIns++
			textIns = concatRunes(textIns, runs[pointer].text)
			pointer++
		case OpDelete:
			countDel++
			textDel = concatRunes(textDel, runs[pointer].text)
			pointer++
		case OpEqual:
			if countDel+countIns > 1 {
				if countDel != 0 && countIns != 0 {
					if cl := commonPrefixLen(textIns, textDel); cl != 0 {
						x := pointer - countDel - countIns
						if x > 0 && runs[x-1].op == OpEqual {
							runs[x-1].text = concatRunes(runs[x-1].text, textIns[:cl])
						} else {
							runs = insertRun(runs, 0, run{OpEqual, textIns[:cl]})
							pointer++
						}
						textIns = textIns[cl:]
						textDel = textDel[cl:]
					}
					if cl := commonSuffixLen(textIns, textDel); cl != 0 {
						runs[pointer].text = concatRunes(textIns[len(textIns)-cl:], runs[pointer].text)
						textIns = textIns[:len(textIns)-cl]
						textDel = textDel[:len(textDel)-cl]
					}
				}
				start := pointer - countDel - countIns
				var repl []run
				if len(textDel) > 0 {
					repl = append(repl, run{OpDelete, textDel})
				}
				if len(textIns) > 0 {
					repl = append(repl, run{OpInsert, textIns})
				}
				runs = spliceRuns(runs, start, countDel+countIns, repl...)
				pointer = start + len(repl) + 1
			} else if pointer != 0 && runs[pointer-1].op == OpEqual {
				runs[pointer-1].text = concatRunes(runs[pointer-1].text, runs[pointer].text)
				runs = removeRun(runs, pointer)
			} else {
				pointer++
			}
			countDel, countIns = 0, 0
			textDel, textIns = nil, nil
		}
	}
	if len(runs) > 0 && len(runs[len(runs)-1].text) == 0 {
		runs = runs[:len(runs)-1]
	}

	// Second pass: shift single edits surrounded by equalities, e.g.
	// A<ins>BA</ins>C -> <ins>AB</ins>AC.
	changes := false
	for pointer = 1; pointer < len(runs)-1; pointer++ {
		if runs[pointer-1].op != OpEqual || runs[pointer+1].op != OpEqual {
			continue
		}
		prev, cur, next := runs[pointer-1].text, runs[pointer].text, runs[pointer+1].text
		switch {
		case hasRuneSuffix(cur, prev):
			runs[pointer].text = concatRunes(prev, cur[:len(cur)-len(prev)])
			runs[pointer+1].text = concatRunes(prev, next)
			runs = removeRun(runs, pointer-1)
			changes = true
		case hasRunePrefix(cur, next):
			runs[pointer-1].text = concatRunes(prev, next)
			runs[pointer].text = concatRunes(cur[len(next):], next)
			runs = removeRun(runs, pointer+1)
			changes = true
		}
	}
	if changes {
		return cleanupMerge(runs)
	}
	return runs
}

func cleanupSemanticRuns(runs []run) []run {
	changes := false
	var equalities []int
	var lastEquality []rune
	hasLast := false
	lenIns1, lenDel1, lenIns2, lenDel2 := 0, 0, 0, 0

	for pointer := 0; pointer < len(runs); pointer++ {
		if runs[pointer].op == OpEqual {
			equalities = append(equalities, pointer)
			lenIns1, lenDel1 = lenIns2, lenDel2
			lenIns2, lenDel2 = 0, 0
			lastEquality = runs[pointer].text
			hasLast = true
			continue
		}
		if runs[pointer].op == OpInsert {
			lenIns2 += len(runs[pointer].text)
		} else {
			lenDel2 += len(runs[pointer].text)
		}
		// An equality no longer than the edits on both sides is cheaper to
		// express as part of the edit.
		if hasLast && len(lastEquality) <= max(lenIns1, lenDel1) && len(lastEquality) <= max(lenIns2, lenDel2) {
			at := equalities[len(equalities)-1]
			runs = insertRun(runs, at, run{OpDelete, lastEquality})
			runs[at+1].op = OpInsert
			equalities = equalities[:len(equalities)-1]
			if len(equalities) > 0 {
				equalities = equalities[:len(equalities)-1]
			}
			pointer = -1
			if len(equalities) > 0 {
				pointer = equalities[len(equalities)-1]
			}
			lenIns1, lenDel1, lenIns2, lenDel2 = 0, 0, 0, 0
			lastEquality = nil
			hasLast = false
			changes = true
		}
	}
	if changes {
		runs = cleanupMerge(runs)
	}
	runs = cleanupSemanticLossless(runs)

	// Pull overlaps between a deletion and the following insertion out into
	// an equality when the overlap is at least half of either side.
	for pointer := 1; pointer < len(runs); pointer++ {
		if runs[pointer-1].op != OpDelete || runs[pointer].op != OpInsert {
			continue
		}
		del, ins := runs[pointer-1].text, runs[pointer].text
		o1 := commonOverlapLen(del, ins)
		o2 := commonOverlapLen(ins, del)
		if o1 >= o2 {
			if 2*o1 >= len(del) || 2*o1 >= len(ins) {
				runs = insertRun(runs, pointer, run{OpEqual, ins[:o1]})
				runs[pointer-1].text = del[:len(del)-o1]
				runs[pointer+1].text = ins[o1:]
				pointer++
			}
		} else if 2*o2 >= len(del) || 2*o2 >= len(ins) {
			runs = insertRun(runs, pointer, run{OpEqual, del[:o2]})
			runs[pointer-1] = run{OpInsert, ins[:len(ins)-o2]}
			runs[pointer+1] = run{OpDelete, del[o2:]}
			pointer++
		}
		pointer++
	}
	return compactRuns(runs)
}

func cleanupSemanticLossless(runs []run) []run {
	for pointer := 1; pointer < len(runs)-1; pointer++ {
		if runs[pointer-1].op != OpEqual || runs[pointer+1].op != OpEqual {
			continue
		}
		eq1, edit, eq2 := runs[pointer-1].text, runs[pointer].text, runs[pointer+1].text

		// Shift the edit as far left as possible first.
		if off := commonSuffixLen(eq1, edit); off > 0 {
			common := edit[len(edit)-off:]
			eq1 = eq1[:len(eq1)-off]
			edit = concatRunes(common, edit[:len(edit)-off])
			eq2 = concatRunes(common, eq2)
		}

		// Then walk it right one rune at a time, keeping the best scoring spot.
		bestEq1, bestEdit, bestEq2 := eq1, edit, eq2
		bestScore := boundaryScore(eq1, edit) + boundaryScore(edit, eq2)
		for len(edit) > 0 && len(eq2) > 0 && edit[0] == eq2[0] {
			eq1 = concatRunes(eq1, edit[:1])
			edit = concatRunes(edit[1:], eq2[:1])
			eq2 = eq2[1:]
			score := boundaryScore(eq1, edit) + boundaryScore(edit, eq2)
			// >= prefers the rightmost of equally good positions.
			if score >= bestScore {
				bestScore = score
				bestEq1, bestEdit, bestEq2 = eq1, edit, eq2
			}
		}

		if runesEqual(runs[pointer-1].text, bestEq1) {
			continue
		}
		if len(bestEq1) > 0 {
			runs[pointer-1].text = bestEq1
		} else {
			runs = removeRun(runs, pointer-1)
			pointer--
		}
		runs[pointer].text = bestEdit
		if len(bestEq2) > 0 {
			runs[pointer+1].text = bestEq2
		} else {
			runs = removeRun(runs, pointer+1)
			pointer--
		}
	}
	return runs
}

// Boundary scores, best first.
const (
	scoreEdge       = 6
	scoreBlankLine  = 5
	scoreLineBreak  = 4
	scoreSentence   = 3
	scoreWhitespace = 2
	scorePunct      = 1
	scoreNone       = 0
)

// boundaryScore rates the break between the end of one and the start of two.
func boundaryScore(one, two []rune) int {
	if len(one) == 0 || len(two) == 0 {
		return scoreEdge
	}
	c1, c2 := one[len(one)-1], two[0]
	nonAlnum1 := !unicode.IsLetter(c1) && !unicode.IsDigit(c1)
	nonAlnum2 := !unicode.IsLetter(c2) && !unicode.IsDigit(c2)
	ws1 := nonAlnum1 && unicode.IsSpace(c1)
	ws2 := nonAlnum2 && unicode.IsSpace(c2)
	lb1 := ws1 && (c1 == '\n' || c1 == '\r')
	lb2 := ws2 && (c2 == '\n' || c2 == '\r')
	blank1 := lb1 && endsWithBlankLine(one)
	blank2 := lb2 && startsWithBlankLine(two)

	switch {
	case blank1 || blank2:
		return scoreBlankLine
	case lb1 || lb2:
		return scoreLineBreak
	case nonAlnum1 && !ws1 && ws2:
		return scoreSentence
	case ws1 || ws2:
		return scoreWhitespace
	case nonAlnum1 || nonAlnum2:
		return scorePunct
	}
	return scoreNone
}

func endsWithBlankLine(r []rune) bool {
	return hasRuneSuffix(r, []rune("\n\n")) || hasRuneSuffix(r, []rune("\n\r\n"))
}

func startsWithBlankLine(r []rune) bool {
	for _, p := range []string{"\n\n", "\n\r\n", "\r\n\n", "\r\n\r\n"} {
		if hasRunePrefix(r, []rune(p)) {
			return true
		}
	}
	return false
}

func hasRunePrefix(r, prefix []rune) bool {
	return len(r) >= len(prefix) && runesEqual(r[:len(prefix)], prefix)
}

func hasRuneSuffix(r, suffix []rune) bool {
	return len(r) >= len(suffix) && runesEqual(r[len(r)-len(suffix):], suffix)
}

func compactRuns(runs []run) []run {
	out := runs[:0]
	for _, r := range runs {
		if len(r.text) > 0 {
			out = append(out, r)
		}
	}
	return out
}
