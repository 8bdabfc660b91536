package filter

import (
	"errors"
	"fmt"

	"forum_search/internal/model"
)

var (
	// ErrNotEditable is returned when editing a filter whose parameter is fixed.
	ErrNotEditable = errors.New("filter is not editable")
	// ErrUnknownKind is returned when a persisted filter names a kind that
	// does not exist.
	ErrUnknownKind = errors.New("unknown filter kind")
)

// Filter is one search term: a kind plus its parameter.
// Filters are values; editing returns a new Filter.
type Filter struct {
	kind  *Kind
	param string
}

// New creates a filter. For a non-editable kind param is ignored and the
// kind's fixed value is used instead.
func New(kind *Kind, param string) Filter {
	if v, ok := kind.FixedValue(); ok {
		param = v
	}
	return Filter{kind: kind, param: param}
}

// Kind returns the filter's kind.
func (f Filter) Kind() *Kind { return f.kind }

// Param returns the parameter the filter was created with.
func (f Filter) Param() string { return f.param }

// String renders the filter into query syntax. Fixed values are read again
// here so a change of identity is picked up.
func (f Filter) String() string {
	param := f.param
	if v, ok := f.kind.FixedValue(); ok {
		param = v
	}
	return fmt.Sprintf(f.kind.Template, param)
}

// Edit returns a copy of f with a new parameter. Filters of a non-editable
// kind are returned unchanged together with ErrNotEditable.
func (f Filter) Edit(param string) (Filter, error) {
	if !f.kind.Editable() {
		return f, ErrNotEditable
	}
	return Filter{kind: f.kind, param: param}, nil
}

// Equal reports whether two filters have the same kind and parameter.
func (f Filter) Equal(other Filter) bool {
	if f.kind == nil || other.kind == nil {
		return f.kind == other.kind && f.param == other.param
	}
	return f.kind.ID == other.kind.ID && f.param == other.param
}

// Token returns the persisted form of the filter.
func (f Filter) Token() model.FilterToken {
	return model.FilterToken{Kind: string(f.kind.ID), Param: f.param}
}

// FromToken rebuilds a filter from its persisted form.
func (r *Registry) FromToken(t model.FilterToken) (Filter, error) {
	k, ok := r.ByID(KindID(t.Kind))
	if !ok {
		return Filter{}, fmt.Errorf("%w: %q", ErrUnknownKind, t.Kind)
	}
	return New(k, t.Param), nil
}

// Restore rebuilds a set from persisted tokens. Tokens that cannot be decoded
// are skipped and reported in the returned slice; the rest keep their order.
func (r *Registry) Restore(tokens []model.FilterToken) (*Set, []error) {
	set := &Set{}
	var dropped []error
	for _, t := range tokens {
		f, err := r.FromToken(t)
		if err != nil {
			dropped = append(dropped, err)
			continue
		}
		set.Append(f)
	}
	return set, dropped
}

// Tokens returns the persisted form of every filter in order.
func Tokens(filters []Filter) []model.FilterToken {
	out := make([]model.FilterToken, 0, len(filters))
	for _, f := range filters {
		out = append(out, f.Token())
	}
	return out
}
