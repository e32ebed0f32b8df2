package diff

import "strings"

// LineType tags a line of a hunk.
type LineType int

const (
	LineContext LineType = iota
	LineAdded
	LineRemoved
)

// Line is one line of a hunk. Num is 1-based in the old text for context and
// removed lines, and in the new text for added lines.
type Line struct {
	Num     int
	Content string
	Type    LineType
}

// Hunk groups nearby changed lines with surrounding context.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// Hunks renders a line-level view of the differences between two texts, for
// display only. Position-exact edits come from Changes.
func (e *Engine) Hunks(oldText, newText string, contextLines int) []Hunk {
	if oldText == newText {
		return nil
	}
	ea, eb, lines := linesToRunes([]rune(oldText), []rune(newText))
	c := computer{deadline: e.deadline(), lineThreshold: e.opts.LineModeThreshold}
	runs := runesToLines(c.main(ea, eb, false), lines)
	return groupHunks(lineOps(runs), contextLines)
}

type lineOp struct {
	typ     LineType
	oldLine int
	newLine int
	content string
}

func lineOps(runs []run) []lineOp {
	var ops []lineOp
	oldLine, newLine := 0, 0
	for _, r := range runs {
		text := strings.TrimSuffix(string(r.text), "\n")
		for _, line := range strings.Split(text, "\n") {
			switch r.op {
			case OpEqual:
				ops = append(ops, lineOp{LineContext, oldLine, newLine, line})
				oldLine++
				newLine++
			case OpDelete:
				ops = append(ops, lineOp{LineRemoved, oldLine, newLine, line})
				oldLine++
			case OpInsert:
				ops = append(ops, lineOp{LineAdded, oldLine, newLine, line})
				newLine++
			}
		}
	}
	return ops
}

func groupHunks(ops []lineOp, contextLines int) []Hunk {
	var hunks []Hunk
	var cur *Hunk
	lastChange, closedAt := -1, -1

	closeHunk := func() {
		countHunk(cur)
		hunks = append(hunks, *cur)
		cur = nil
	}

	for i, op := range ops {
		if op.typ != LineContext {
			if cur == nil {
				cur = &Hunk{}
				start := max(0, i-contextLines, closedAt+1)
				for j := start; j < i; j++ {
					cur.Lines = append(cur.Lines, Line{ops[j].oldLine + 1, ops[j].content, LineContext})
				}
				cur.OldStart = ops[start].oldLine + 1
				cur.NewStart = ops[start].newLine + 1
			}
			lastChange = i
		}
		if cur == nil {
			continue
		}
		if op.typ == LineContext && i-lastChange > contextLines {
			closeHunk()
			closedAt = i - 1
			continue
		}
		num := op.oldLine + 1
		if op.typ == LineAdded {
			num = op.newLine + 1
		}
		cur.Lines = append(cur.Lines, Line{num, op.content, op.typ})
	}
	if cur != nil {
		closeHunk()
	}
	return hunks
}

func countHunk(h *Hunk) {
	for _, l := range h.Lines {
		if l.Type != LineAdded {
			h.OldCount++
		}
		if l.Type != LineRemoved {
			h.NewCount++
		}
	}
}
