package data

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind distinguishes a spectral measurement column from the coarser element
// presence flag it implies.
type Kind int

const (
	KindPresence Kind = iota
	KindSpectrum
)

var kindSuffixes = map[Kind]string{
	KindPresence: "",
	KindSpectrum: "-XANES",
}

var elementPattern = regexp.MustCompile(`^[A-Z][a-z]?$`)

// Tag names one modality column of the index, e.g. "C-XANES" or "C".
type Tag struct {
	Element string
	Kind    Kind
}

// ParseTag parses a spectral ("C-XANES") or presence ("C") tag.
func ParseTag(s string) (Tag, error) {
	element, kind := s, KindPresence
	if suffix := kindSuffixes[KindSpectrum]; strings.HasSuffix(s, suffix) {
		element, kind = strings.TrimSuffix(s, suffix), KindSpectrum
	}
	if !elementPattern.MatchString(element) {
		return Tag{}, fmt.Errorf("%w: %q", ErrInvalidTag, s)
	}
	return Tag{Element: element, Kind: kind}, nil
}

// MustParseTag is ParseTag for literals known to be valid.
func MustParseTag(s string) Tag {
	tag, err := ParseTag(s)
	if err != nil {
		panic(err)
	}
	return tag
}

// IsSpectralToken reports whether a column name carries the spectral suffix.
func IsSpectralToken(name string) bool {
	return strings.HasSuffix(name, kindSuffixes[KindSpectrum])
}

func (t Tag) String() string {
	return t.Element + kindSuffixes[t.Kind]
}

// Presence returns the element presence flag implied by t.
func (t Tag) Presence() Tag {
	return Tag{Element: t.Element, Kind: KindPresence}
}

func (t Tag) IsSpectrum() bool {
	return t.Kind == KindSpectrum
}

// TagNames renders tags in order.
func TagNames(tags []Tag) []string {
	names := make([]string, len(tags))
	for i, tag := range tags {
		names[i] = tag.String()
	}
	return names
}
