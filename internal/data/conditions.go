package data

import (
	"fmt"
	"sort"
	"strings"
)

// Condition requires an indicator column to be 1, or 0 when negated.
type Condition struct {
	Column  string
	Negated bool
}

func (c Condition) String() string {
	if c.Negated {
		return "!" + c.Column
	}
	return c.Column
}

// Expression is a conjunction of conditions parsed from "C-XANES,O-XANES,!N".
type Expression struct {
	conditions []Condition
}

// ParseExpression splits a comma-separated condition string. Duplicate tokens
// collapse into one. A spectral token must name a valid modality tag.
//
// A negated spectral token such as "!N-XANES" only filters on its own column;
// it implies nothing about the element presence flag and is not a modality.
func ParseExpression(s string) (Expression, error) {
	var conditions []Condition
	seen := make(map[Condition]bool)

	for _, token := range strings.Split(s, ",") {
		token = strings.TrimSpace(token)
		cond := Condition{Column: token}
		if strings.HasPrefix(token, "!") {
			cond = Condition{Column: token[1:], Negated: true}
		}
		if cond.Column == "" {
			return Expression{}, fmt.Errorf("%w: empty token in %q", ErrInvalidCondition, s)
		}
		if IsSpectralToken(cond.Column) {
			if _, err := ParseTag(cond.Column); err != nil {
				return Expression{}, err
			}
		}
		if seen[cond] {
			continue
		}
		seen[cond] = true
		conditions = append(conditions, cond)
	}

	return Expression{conditions: conditions}, nil
}

func (e Expression) Conditions() []Condition {
	return append([]Condition(nil), e.conditions...)
}

// Expand returns the conditions plus the presence flag implied by every
// positive spectral condition: having a C spectrum implies containing C. The
// result is deduplicated, so expanding twice changes nothing.
func (e Expression) Expand() Expression {
	expanded := make([]Condition, 0, len(e.conditions))
	seen := make(map[Condition]bool)
	add := func(c Condition) {
		if !seen[c] {
			seen[c] = true
			expanded = append(expanded, c)
		}
	}

	for _, c := range e.conditions {
		add(c)
	}
	for _, tag := range e.Modalities() {
		add(Condition{Column: tag.Presence().String()})
	}

	return Expression{conditions: expanded}
}

// Apply filters the table by every expanded condition, left to right. The
// input table is not modified. An empty result is not an error.
func (e Expression) Apply(table *IndexTable) (*IndexTable, error) {
	current := table
	for _, c := range e.Expand().conditions {
		values, err := current.Indicator(c.Column)
		if err != nil {
			return nil, fmt.Errorf("condition %q: %w", c, err)
		}

		want := 1
		if c.Negated {
			want = 0
		}

		keep := make([]int, 0, len(values))
		for i, v := range values {
			if v == want {
				keep = append(keep, i)
			}
		}
		current = current.Select(keep)
	}
	return current, nil
}

// Modalities returns the positive spectral tags in sorted order; this order
// fixes the layout of packed features and the naming of combinations.
func (e Expression) Modalities() []Tag {
	var tags []Tag
	for _, c := range e.conditions {
		if c.Negated || !IsSpectralToken(c.Column) {
			continue
		}
		tags = append(tags, MustParseTag(c.Column))
	}
	sort.Slice(tags, func(i, j int) bool {
		return tags[i].String() < tags[j].String()
	})
	return tags
}

// Canonical returns the tokens sorted and comma-joined.
func (e Expression) Canonical() string {
	tokens := make([]string, len(e.conditions))
	for i, c := range e.conditions {
		tokens[i] = c.String()
	}
	sort.Strings(tokens)
	return strings.Join(tokens, ",")
}

// BaseName is the canonical form with commas replaced, used as a file stem.
func (e Expression) BaseName() string {
	return strings.ReplaceAll(e.Canonical(), ",", "_")
}

func (e Expression) String() string {
	return e.Canonical()
}
