package main

import (
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	sqlKeywordPattern = regexp.MustCompile(`(?i)^\s*(select|insert|update|delete|with|create|alter|drop)\b`)
	uuidMarkerPattern = regexp.MustCompile(`^--sql ([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})$`)
)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

type markerUse struct {
	file string
	name string
	line int
}

type linter struct {
	found   []violation
	markers map[string][]markerUse
}

func newLinter() *linter {
	return &linter{markers: make(map[string][]markerUse)}
}

// lintFile inspects string constants of one file. A constant counts as SQL
// when its body (after an optional marker line) starts with a statement
// keyword or it already carries a marker.
func (l *linter) lintFile(path string) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
	if err != nil {
		return err
	}
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.CONST {
			continue
		}
		for _, spec := range gen.Specs {
			vs := spec.(*ast.ValueSpec)
			for i, value := range vs.Values {
				bl, ok := value.(*ast.BasicLit)
				if !ok || bl.Kind != token.STRING {
					continue
				}
				raw, err := unquote(bl.Value)
				if err != nil {
					continue
				}
				name := ""
				if i < len(vs.Names) {
					name = vs.Names[i].Name
				}
				l.check(path, name, fset.Position(bl.Pos()).Line, raw)
			}
		}
	}
	return nil
}

func (l *linter) check(path, name string, line int, raw string) {
	first, rest := splitFirstLine(raw)
	hasMarker := strings.HasPrefix(first, "--sql")
	if !hasMarker && !sqlKeywordPattern.MatchString(raw) {
		return
	}
	m := uuidMarkerPattern.FindStringSubmatch(first)
	if m == nil {
		l.found = append(l.found, violation{file: path, name: name, line: line, message: "missing or invalid --sql <uuid> marker"})
		return
	}
	if strings.TrimSpace(rest) == "" {
		l.found = append(l.found, violation{file: path, name: name, line: line, message: "marker without statement"})
	}
	l.markers[m[1]] = append(l.markers[m[1]], markerUse{file: path, name: name, line: line})
}

// violations returns every problem found so far, duplicates included.
func (l *linter) violations() []violation {
	out := append([]violation(nil), l.found...)
	for marker, uses := range l.markers {
		if len(uses) < 2 {
			continue
		}
		for _, u := range uses {
			out = append(out, violation{file: u.file, name: u.name, line: u.line, message: "duplicate marker " + marker})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].file != out[j].file {
			return out[i].file < out[j].file
		}
		return out[i].line < out[j].line
	})
	return out
}

func splitFirstLine(s string) (string, string) {
	s = strings.TrimLeft(s, "\n\r \t")
	if idx := strings.IndexAny(s, "\n\r"); idx >= 0 {
		return strings.TrimSpace(s[:idx]), s[idx+1:]
	}
	return strings.TrimSpace(s), ""
}

func unquote(v string) (string, error) {
	if len(v) == 0 {
		return v, nil
	}
	if v[0] == '`' {
		return v[1 : len(v)-1], nil
	}
	return strconv.Unquote(v)
}
