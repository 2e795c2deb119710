package correlate

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/malscan/malscan/internal/semantic"
)

// Graph is the directed file-to-file dependency graph built from import and
// export syntax in the raw file snapshots. Edges point from the importing
// file to the imported one.
type Graph struct {
	// Edges maps a file to the files it imports, sorted.
	Edges map[string][]string
	// Imports keeps each file's raw import list for the suspicious-import
	// detector.
	Imports map[string][]semantic.Import
}

// BuildGraph resolves every file's import sources against the other files'
// basenames and exported names. Files the parser refuses are left out of the
// graph; their findings still flow through the correlator, just without edges.
func BuildGraph(files map[string][]byte) *Graph {
	g := &Graph{
		Edges:   map[string][]string{},
		Imports: map[string][]semantic.Import{},
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	analyses := map[string]*semantic.FileAnalysis{}
	byBase := map[string][]string{}
	byExport := map[string][]string{}
	for _, p := range paths {
		fa, err := semantic.Parse(p, files[p])
		if err != nil {
			continue
		}
		analyses[p] = fa
		g.Imports[p] = fa.Imports
		byBase[baseKey(p)] = append(byBase[baseKey(p)], p)
		for _, e := range fa.Exports {
			byExport[strings.ToLower(e)] = append(byExport[strings.ToLower(e)], p)
		}
	}

	for _, p := range paths {
		fa := analyses[p]
		if fa == nil {
			continue
		}
		seen := map[string]bool{}
		var edges []string
		add := func(target string) {
			if target != p && !seen[target] {
				seen[target] = true
				edges = append(edges, target)
			}
		}
		for _, imp := range fa.Imports {
			key := importKey(imp.Source)
			if key == "" {
				continue
			}
			if targets, ok := byBase[key]; ok {
				for _, t := range targets {
					add(t)
				}
				continue
			}
			for _, t := range byExport[key] {
				add(t)
			}
		}
		if len(edges) > 0 {
			sort.Strings(edges)
			g.Edges[p] = edges
		}
	}
	return g
}

// Outgoing returns the files imported by file, sorted.
func (g *Graph) Outgoing(file string) []string {
	return g.Edges[file]
}

// Connected reports whether a dependency edge exists between the two files in
// either direction.
func (g *Graph) Connected(a, b string) bool {
	for _, t := range g.Edges[a] {
		if t == b {
			return true
		}
	}
	for _, t := range g.Edges[b] {
		if t == a {
			return true
		}
	}
	return false
}

func baseKey(p string) string {
	b := filepath.Base(p)
	if i := strings.LastIndexByte(b, '.'); i > 0 {
		b = b[:i]
	}
	return strings.ToLower(b)
}

// importKey reduces an import source to the lowercased final path segment
// without extension, the unit resolution matches on.
func importKey(src string) string {
	src = strings.TrimSpace(src)
	src = strings.Trim(src, "/")
	if src == "" {
		return ""
	}
	seg := src
	if i := strings.LastIndexByte(seg, '/'); i >= 0 {
		seg = seg[i+1:]
	}
	if i := strings.LastIndexByte(seg, '.'); i > 0 {
		seg = seg[:i]
	}
	return strings.ToLower(seg)
}
