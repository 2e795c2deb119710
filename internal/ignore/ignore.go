package ignore

import (
	"bufio"
	"os"
	"path"
	"strings"
)

// Matcher holds patterns loaded from a .malscanignore file. Three pattern
// forms are supported: "dir/" ignores everything under any directory of that
// name, patterns with glob metacharacters match the base name, and anything
// else matches the base name or full relative path exactly. Lines starting
// with # are comments.
type Matcher struct {
	dirs   []string
	globs  []string
	exacts []string
}

// Load reads an ignore file. A missing file yields an empty matcher and no
// error.
func Load(p string) (Matcher, error) {
	var m Matcher
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return m, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch {
		case strings.HasSuffix(line, "/"):
			m.dirs = append(m.dirs, strings.TrimSuffix(line, "/"))
		case strings.ContainsAny(line, "*?["):
			m.globs = append(m.globs, line)
		default:
			m.exacts = append(m.exacts, line)
		}
	}
	return m, sc.Err()
}

// Match reports whether the relative path is ignored.
func (m Matcher) Match(rel string) bool {
	rel = strings.ReplaceAll(rel, "\\", "/")
	base := path.Base(rel)

	segs := strings.Split(rel, "/")
	for _, d := range m.dirs {
		for _, seg := range segs[:len(segs)-1] {
			if seg == d {
				return true
			}
		}
	}
	for _, g := range m.globs {
		if ok, _ := path.Match(g, base); ok {
			return true
		}
		if ok, _ := path.Match(g, rel); ok {
			return true
		}
	}
	for _, e := range m.exacts {
		if rel == e || base == e {
			return true
		}
	}
	return false
}
