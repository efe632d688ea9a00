// Package registry holds the per-client notification profiles. A Registry is
// built once at startup and is read-only afterwards, so it is safe for
// concurrent use without locking.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// Profile is one tenant's notification configuration.
type Profile struct {
	ID       string
	Name     string
	Sender   Sender
	Template string // renderer identifier, e.g. "client1"
}

// Sender is the outbound email configuration for a Profile.
type Sender struct {
	APIKey   string
	From     string
	To       []string
	Subject  string // may contain {{awb}} and {{courier_name}}
	OmitHTML bool   // send the body as text only
}

// HasCredentials reports whether the profile can authenticate with the
// email provider.
func (p Profile) HasCredentials() bool {
	return p.Sender.APIKey != ""
}

// Registry maps client ids to profiles.
type Registry struct {
	profiles map[string]Profile
	order    []string
}

// ValidID reports whether id has the shape of a client identifier: a
// non-empty string of ASCII digits.
func ValidID(id string) bool {
	if id == "" {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}

// New validates profiles and returns an immutable Registry. A profile
// without an API key is accepted; that is reported at send time.
func New(profiles ...Profile) (*Registry, error) {
	r := &Registry{profiles: make(map[string]Profile, len(profiles))}

	var errs []error
	for _, p := range profiles {
		switch {
		case !ValidID(p.ID):
			errs = append(errs, fmt.Errorf("client %q: id must be numeric", p.ID))
			continue
		case len(p.Sender.To) == 0:
			errs = append(errs, fmt.Errorf("client %s: at least one recipient is required", p.ID))
			continue
		}
		if _, dup := r.profiles[p.ID]; dup {
			errs = append(errs, fmt.Errorf("client %s: duplicate id", p.ID))
			continue
		}
		p.Sender.To = slices.Clone(p.Sender.To)
		r.profiles[p.ID] = p
		r.order = append(r.order, p.ID)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	sort.Slice(r.order, func(i, j int) bool {
		a, b := r.order[i], r.order[j]
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})
	return r, nil
}

// Lookup returns the profile for id. The returned value is a copy.
func (r *Registry) Lookup(id string) (Profile, bool) {
	p, ok := r.profiles[id]
	if !ok {
		return Profile{}, false
	}
	p.Sender.To = slices.Clone(p.Sender.To)
	return p, true
}

// Profiles returns every profile ordered by numeric id.
func (r *Registry) Profiles() []Profile {
	out := make([]Profile, 0, len(r.order))
	for _, id := range r.order {
		p, _ := r.Lookup(id)
		out = append(out, p)
	}
	return out
}

// Len returns the number of configured clients.
func (r *Registry) Len() int {
	return len(r.profiles)
}
