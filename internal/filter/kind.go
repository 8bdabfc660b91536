// Package filter implements the structured search terms that can be added to
// a forum query, and the composition of those terms into a query string.
package filter

// KindID identifies a filter kind. It is the stable name used when a filter is
// persisted.
type KindID string

// Supported filter kinds, in menu order.
const (
	KindText       KindID = "text"
	KindUserID     KindID = "userid"
	KindUsername   KindID = "username"
	KindMyUsername KindID = "my_username"
	KindQuoting    KindID = "quoting"
	KindBefore     KindID = "before"
	KindSince      KindID = "since"
	KindThreadID   KindID = "threadid"
	KindInTitle    KindID = "intitle"
)

// Identity supplies the current user's forum username.
type Identity interface {
	Username() string
}

// Kind describes one type of search term.
//
// Template renders a parameter into query syntax and holds exactly one %s.
// Label is the short display name and Description an optional longer hint.
// A kind either takes its parameter from the user or from a fixed value
// source, never both.
type Kind struct {
	ID          KindID
	Template    string
	Label       string
	Description string

	fixed func() string
}

// Editable reports whether the user supplies the parameter for this kind.
func (k *Kind) Editable() bool {
	return k.fixed == nil
}

// Hint returns the text to show when asking the user for a parameter.
func (k *Kind) Hint() string {
	if k.Description != "" {
		return k.Description
	}
	return k.Label
}

// FixedValue returns the current fixed parameter of a non-editable kind.
func (k *Kind) FixedValue() (string, bool) {
	if k.fixed == nil {
		return "", false
	}
	return k.fixed(), true
}

type kindDef struct {
	id          KindID
	template    string
	label       string
	description string
	identity    bool
}

var catalog = []kindDef{
	{id: KindText, template: "%s", label: "Text in posts"},
	{id: KindUserID, template: "userid:%s", label: "User ID"},
	{id: KindUsername, template: `username:"%s"`, label: "Username"},
	{id: KindMyUsername, template: `username:"%s"`, label: "My username", identity: true},
	{id: KindQuoting, template: `quoting:"%s"`, label: "User being quoted"},
	{id: KindBefore, template: `before:"%s"`, label: "Earlier than"},
	{id: KindSince, template: `since:"%s"`, label: "Later than"},
	{id: KindThreadID, template: "threadid:%s", label: "Thread ID"},
	{id: KindInTitle, template: `intitle:"%s"`, label: "Thread title", description: "Text in thread title"},
}

// Registry is the catalog of filter kinds bound to an identity source.
// It is never modified after construction.
type Registry struct {
	kinds []*Kind
}

// NewRegistry builds the catalog. Kinds that search for the current user
// read id every time they are rendered.
func NewRegistry(id Identity) *Registry {
	r := &Registry{kinds: make([]*Kind, 0, len(catalog))}
	for _, d := range catalog {
		k := &Kind{
			ID:          d.id,
			Template:    d.template,
			Label:       d.label,
			Description: d.description,
		}
		if d.identity {
			k.fixed = id.Username
		}
		r.kinds = append(r.kinds, k)
	}
	return r
}

// Kinds returns all kinds in menu order.
func (r *Registry) Kinds() []*Kind {
	out := make([]*Kind, len(r.kinds))
	copy(out, r.kinds)
	return out
}

// ByLabel finds the kind whose display label is label.
func (r *Registry) ByLabel(label string) (*Kind, bool) {
	for _, k := range r.kinds {
		if k.Label == label {
			return k, true
		}
	}
	return nil, false
}

// ByID finds the kind with the given identifier.
func (r *Registry) ByID(id KindID) (*Kind, bool) {
	for _, k := range r.kinds {
		if k.ID == id {
			return k, true
		}
	}
	return nil, false
}
