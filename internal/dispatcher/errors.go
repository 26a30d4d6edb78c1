package dispatcher

import (
	"errors"
	"fmt"
	"sort"

	"github.com/agnivade/levenshtein"
)

// ErrNotFound matches every *NotFoundError through errors.Is.
var ErrNotFound = errors.New("not found")

// ErrNotString is returned when a resource path ends on a dictionary node.
var ErrNotString = errors.New("resource is not a string")

// Level names the registry level a lookup failed at.
type Level string

const (
	LevelService    Level = "service"
	LevelDomain     Level = "domain"
	LevelController Level = "controller"
	LevelEmitter    Level = "emitter"
	LevelValidator  Level = "validator"
	LevelDictionary Level = "dictionary"
	LevelResource   Level = "resource"
	LevelView       Level = "view"
	LevelHelper     Level = "helper"
)

// NotFoundError reports a failed registry lookup.
type NotFoundError struct {
	Level      Level
	Name       string
	Parent     string
	Suggestion string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s %q not found", e.Level, e.Name)
	if e.Parent != "" {
		msg += " in " + e.Parent
	}
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

// Is makes errors.Is(err, ErrNotFound) succeed.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound[V any](level Level, name, parent string, candidates map[string]V) *NotFoundError {
	return &NotFoundError{Level: level, Name: name, Parent: parent, Suggestion: suggest(name, candidates)}
}

// suggest returns the closest candidate within a small edit distance.
func suggest[V any](name string, candidates map[string]V) string {
	keys := make([]string, 0, len(candidates))
	for k := range candidates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	limit := max(2, len(name)/3)
	best, bestDist := "", limit+1
	for _, k := range keys {
		if d := levenshtein.ComputeDistance(name, k); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}
