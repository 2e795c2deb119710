package detect

import (
	"sort"
	"strings"
)

// safeRegions is the set of byte ranges in a file where a match is never
// reportable: single-line comments, block comments (including ones left open
// at EOF), fenced code blocks and inline code spans.
type safeRegions struct {
	intervals [][2]int
}

// Contains reports whether pos falls inside a safe region.
func (s safeRegions) Contains(pos int) bool {
	i := sort.Search(len(s.intervals), func(i int) bool {
		return s.intervals[i][1] > pos
	})
	return i < len(s.intervals) && s.intervals[i][0] <= pos
}

// computeSafeRegions walks the content once and records every safe interval
// in order. This is lexical only: comment markers inside string literals are
// treated as comments, which errs on the suppression side.
func computeSafeRegions(content []byte) safeRegions {
	var s safeRegions
	add := func(start, end int) {
		if end > start {
			s.intervals = append(s.intervals, [2]int{start, end})
		}
	}

	text := string(content)
	inFence := false
	inBlock := false
	blockStart := 0

	off := 0
	for off <= len(text) {
		nl := strings.IndexByte(text[off:], '\n')
		var line string
		lineEnd := len(text)
		if nl >= 0 {
			line = text[off : off+nl]
			lineEnd = off + nl
		} else {
			line = text[off:]
		}

		trimmed := strings.TrimSpace(line)
		switch {
		case inBlock:
			if i := strings.Index(line, "*/"); i >= 0 {
				add(blockStart, off+i+2)
				inBlock = false
				scanLine(&s, line[i+2:], off+i+2, &inBlock, &blockStart)
			}
		case !inBlock && strings.HasPrefix(trimmed, "```"):
			inFence = !inFence
			add(off, lineEnd)
		case inFence:
			add(off, lineEnd)
		default:
			scanLine(&s, line, off, &inBlock, &blockStart)
		}

		if nl < 0 {
			break
		}
		off = lineEnd + 1
	}

	if inBlock {
		// block comment still open at EOF: everything after it is safe
		add(blockStart, len(text))
	}
	return s
}

// scanLine handles line comments, block comment openings and inline code
// spans within a single line that starts outside any fence or block comment.
func scanLine(s *safeRegions, line string, off int, inBlock *bool, blockStart *int) {
	add := func(start, end int) {
		if end > start {
			s.intervals = append(s.intervals, [2]int{start, end})
		}
	}
	j := 0
	for j < len(line) {
		if *inBlock {
			if i := strings.Index(line[j:], "*/"); i >= 0 {
				add(*blockStart, off+j+i+2)
				*inBlock = false
				j += i + 2
				continue
			}
			return
		}
		rest := line[j:]
		switch {
		case strings.HasPrefix(rest, "/*"):
			*inBlock = true
			*blockStart = off + j
			j += 2
		case strings.HasPrefix(rest, "//"), rest[0] == '#':
			add(off+j, off+len(line))
			return
		case rest[0] == '`':
			if k := strings.IndexByte(rest[1:], '`'); k >= 0 {
				add(off+j, off+j+k+2)
				j += k + 2
			} else {
				j++
			}
		default:
			j++
		}
	}
}
