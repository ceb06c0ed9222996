package framework

import (
	"fmt"
	"strings"
)

// Registry is the immutable Domain -> Component -> Element taxonomy.
type Registry struct {
	domains      []Domain
	elements     []Element
	index        map[string]ElementRecord
	descriptions map[string]map[Level]string
}

// NewRegistry validates the taxonomy and indexes it. Element ids must be unique
// across the whole taxonomy; any violation is returned as ValidationErrors.
func NewRegistry(domains []Domain) (*Registry, error) {
	var errs ValidationErrors

	domainIDs := make(map[string]struct{})
	seen := make(map[string]string)

	r := &Registry{
		index:        make(map[string]ElementRecord),
		descriptions: make(map[string]map[Level]string),
	}

	for dIdx, d := range domains {
		dPath := fmt.Sprintf("domains[%d]", dIdx)
		d.ID = strings.TrimSpace(d.ID)
		d.Name = strings.TrimSpace(d.Name)
		if d.ID == "" {
			errs.add("", dPath+".id", "domain id is required")
		} else if _, ok := domainIDs[d.ID]; ok {
			errs.add("", dPath+".id", "duplicate domain id %q", d.ID)
		} else {
			domainIDs[d.ID] = struct{}{}
		}
		if d.Name == "" {
			errs.add("", dPath+".name", "domain name is required")
		}

		componentIDs := make(map[string]struct{})
		components := make([]Component, 0, len(d.Components))
		for cIdx, c := range d.Components {
			cPath := fmt.Sprintf("%s.components[%d]", dPath, cIdx)
			c.ID = strings.TrimSpace(c.ID)
			c.Name = strings.TrimSpace(c.Name)
			if c.ID == "" {
				errs.add("", cPath+".id", "component id is required")
			} else if _, ok := componentIDs[c.ID]; ok {
				errs.add("", cPath+".id", "duplicate component id %q within domain %s", c.ID, d.ID)
			} else {
				componentIDs[c.ID] = struct{}{}
			}
			if c.Name == "" {
				errs.add("", cPath+".name", "component name is required")
			}

			elements := make([]Element, 0, len(c.Elements))
			for eIdx, e := range c.Elements {
				ePath := fmt.Sprintf("%s.elements[%d]", cPath, eIdx)
				e.ID = strings.TrimSpace(e.ID)
				e.Name = strings.TrimSpace(e.Name)
				if e.Name == "" {
					errs.add("", ePath+".name", "element name is required")
				}
				if e.ID == "" {
					errs.add("", ePath+".id", "element id is required")
					continue
				}
				if prev, ok := seen[e.ID]; ok {
					errs.add("", ePath+".id", "element id %q already defined at %s", e.ID, prev)
					continue
				}
				seen[e.ID] = ePath

				r.index[e.ID] = ElementRecord{
					Element:       e,
					ComponentID:   c.ID,
					ComponentName: c.Name,
					DomainID:      d.ID,
					DomainName:    d.Name,
					Position:      len(r.elements),
				}
				r.elements = append(r.elements, e)
				elements = append(elements, e)
			}
			c.Elements = elements
			components = append(components, c)
		}
		d.Components = components
		r.domains = append(r.domains, d)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return r, nil
}

// Domains returns a copy of the taxonomy in configuration order.
func (r *Registry) Domains() []Domain {
	if r == nil {
		return nil
	}
	out := make([]Domain, len(r.domains))
	for i, d := range r.domains {
		comps := make([]Component, len(d.Components))
		for j, c := range d.Components {
			c.Elements = append([]Element(nil), c.Elements...)
			comps[j] = c
		}
		d.Components = comps
		out[i] = d
	}
	return out
}

// Elements returns every element in flattened taxonomy order.
func (r *Registry) Elements() []Element {
	if r == nil {
		return nil
	}
	return append([]Element(nil), r.elements...)
}

// Len returns the number of elements.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.elements)
}

// Lookup returns the record for the given element id, if present.
func (r *Registry) Lookup(id string) (ElementRecord, bool) {
	if r == nil {
		return ElementRecord{}, false
	}
	rec, ok := r.index[id]
	return rec, ok
}

// Has reports whether id names an element of the taxonomy.
func (r *Registry) Has(id string) bool {
	_, ok := r.Lookup(id)
	return ok
}

// Description returns the authored description of an element at a level.
func (r *Registry) Description(id string, level Level) (string, bool) {
	if r == nil {
		return "", false
	}
	byLevel, ok := r.descriptions[id]
	if !ok {
		return "", false
	}
	text, ok := byLevel[level]
	return text, ok
}
