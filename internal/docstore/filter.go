package docstore

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrInvalidPath = errors.New("invalid document field path")

var segmentPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type predicateKind int

const (
	predicateEq predicateKind = iota
	predicateContains
)

// Predicate is a single condition on a dotted field path.
type Predicate struct {
	kind  predicateKind
	path  string
	value any
}

// Eq matches documents whose field at path equals value.
func Eq(path string, value any) Predicate {
	return Predicate{kind: predicateEq, path: path, value: value}
}

// Contains matches documents whose array at path holds value.
func Contains(path string, value any) Predicate {
	return Predicate{kind: predicateContains, path: path, value: value}
}

// Filter is a conjunction of predicates. The zero Filter matches every document.
type Filter struct {
	predicates []Predicate
}

func Where(predicates ...Predicate) Filter {
	return Filter{predicates: append([]Predicate(nil), predicates...)}
}

func All() Filter {
	return Filter{}
}

func (f Filter) And(p Predicate) Filter {
	return Filter{predicates: append(append([]Predicate(nil), f.predicates...), p)}
}

func (f Filter) IsEmpty() bool {
	return len(f.predicates) == 0
}

func (f Filter) String() string {
	if f.IsEmpty() {
		return "{}"
	}
	parts := make([]string, 0, len(f.predicates))
	for _, p := range f.predicates {
		op := "="
		if p.kind == predicateContains {
			op = "contains"
		}
		parts = append(parts, fmt.Sprintf("%s %s %v", p.path, op, p.value))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	segments := strings.Split(path, ".")
	for _, s := range segments {
		if !segmentPattern.MatchString(s) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return segments, nil
}
