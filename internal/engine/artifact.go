package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Artifact is one uploaded file under annotation, described by the field/type
// metadata an upstream extractor produced. Immutable once accepted into a
// session.
type Artifact struct {
	ID     string
	Name   string
	Fields map[string]string // field name -> inferred data type
}

func (a *Artifact) clone() *Artifact {
	if a == nil {
		return nil
	}
	fields := make(map[string]string, len(a.Fields))
	for k, v := range a.Fields {
		fields[k] = v
	}
	return &Artifact{
		ID:     strings.TrimSpace(a.ID),
		Name:   strings.TrimSpace(a.Name),
		Fields: fields,
	}
}

// FieldList renders the artifact's fields as "name (type)" entries in a
// stable order.
func (a *Artifact) FieldList() []string {
	if a == nil {
		return nil
	}
	names := make([]string, 0, len(a.Fields))
	for name := range a.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, fmt.Sprintf("%s (%s)", name, a.Fields[name]))
	}
	return out
}
