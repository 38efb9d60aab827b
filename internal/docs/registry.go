package docs

import "iter"

// Registry holds descriptors in registration order. It is not safe for
// concurrent mutation; the build pipeline populates it from a single goroutine.
type Registry struct {
	order []Descriptor
	byID  map[string]int
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]int)}
}

// Register stores a copy of d. It fails with *DuplicateIDError when d.ID is
// already present and leaves the registry unchanged on any error.
func (r *Registry) Register(d Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if i, ok := r.byID[d.ID]; ok {
		return &DuplicateIDError{ID: d.ID, First: r.order[i].Source, Second: d.Source}
	}
	r.byID[d.ID] = len(r.order)
	r.order = append(r.order, d.Clone())
	return nil
}

// RegisterAll registers each descriptor in turn and stops at the first error.
func (r *Registry) RegisterAll(ds []Descriptor) error {
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// All yields copies of the registered descriptors in registration order.
// The sequence may be ranged over any number of times.
func (r *Registry) All() iter.Seq[Descriptor] {
	return func(yield func(Descriptor) bool) {
		for _, d := range r.order {
			if !yield(d.Clone()) {
				return
			}
		}
	}
}

// Get returns a copy of the descriptor registered under id.
func (r *Registry) Get(id string) (Descriptor, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Descriptor{}, false
	}
	return r.order[i].Clone(), true
}

func (r *Registry) Len() int { return len(r.order) }
