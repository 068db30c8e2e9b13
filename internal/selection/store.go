// Package selection tracks which discovered addresses the user wants to
// import and mirrors that choice into the host form.
package selection

import (
	"sync"

	"github.com/mrz1836/seedscout/internal/discovery"
	scouterr "github.com/mrz1836/seedscout/pkg/errors"
)

// FieldSelected is the form field the selection is mirrored into.
const FieldSelected = "selected"

// Errors returned by the selection store.
var (
	// ErrEmptySelection blocks advancing past the selection step.
	// It is a validation result for the host form, not a system failure.
	ErrEmptySelection = &scouterr.ScoutError{
		Code:       "EMPTY_SELECTION",
		Message:    "no address selected",
		Suggestion: "select at least one address to import",
		ExitCode:   scouterr.ExitInput,
	}

	// ErrNotDiscovered indicates a path that is not in the discovered set.
	ErrNotDiscovered = &scouterr.ScoutError{
		Code:     "NOT_DISCOVERED",
		Message:  "address has not been discovered",
		ExitCode: scouterr.ExitInput,
	}

	// ErrNotSelectable indicates a record whose derivation failed.
	ErrNotSelectable = &scouterr.ScoutError{
		Code:     "NOT_SELECTABLE",
		Message:  "address failed to derive and cannot be selected",
		ExitCode: scouterr.ExitInput,
	}
)

// FormBinding receives the selection after every change.
// Implementations must not call mutating Store methods.
type FormBinding interface {
	SetValue(field string, value any)
	SetValid(field string, valid bool)
}

// Entry is a selected address with the amount attached to it.
type Entry struct {
	Record discovery.AddressRecord `json:"record"`
	Amount float64                 `json:"amount"`
}

// Store is the set of selected addresses. It is always a subset of the
// discovered set it was last synced with.
type Store struct {
	form FormBinding

	// pushMu orders mutations with their form pushes.
	pushMu sync.Mutex

	mu         sync.RWMutex
	discovered []discovery.AddressRecord
	position   map[string]int     // path key -> index into discovered
	selected   map[string]float64 // path key -> amount
	prior      map[string]float64 // amounts remembered across deselection
}

// Compile-time interface check
var _ discovery.SelectionSink = (*Store)(nil)

// NewStore creates an empty store. form may be nil.
func NewStore(form FormBinding) *Store {
	return &Store{
		form:     form,
		position: make(map[string]int),
		selected: make(map[string]float64),
		prior:    make(map[string]float64),
	}
}

// Sync replaces the discovered set and drops selections that left it or
// can no longer be selected.
func (s *Store) Sync(discovered []discovery.AddressRecord) {
	s.mutate(func() {
		s.discovered = append([]discovery.AddressRecord(nil), discovered...)
		s.position = make(map[string]int, len(discovered))
		for i, r := range s.discovered {
			s.position[r.Path.Key()] = i
		}
		for key := range s.selected {
			pos, ok := s.position[key]
			if !ok || s.discovered[pos].Failed {
				delete(s.selected, key)
			}
		}
	})
}

// ToggleSelect removes path from the selection if present, otherwise adds
// it with its default amount. It returns whether path is now selected.
func (s *Store) ToggleSelect(path discovery.DerivationPath) (bool, error) {
	var (
		now bool
		err error
	)
	s.mutate(func() {
		key := path.Key()
		pos, ok := s.position[key]
		if !ok {
			err = scouterr.WithDetails(ErrNotDiscovered, map[string]string{"path": key})
			return
		}
		if amount, isSelected := s.selected[key]; isSelected {
			s.prior[key] = amount
			delete(s.selected, key)
			return
		}
		rec := s.discovered[pos]
		if rec.Failed {
			err = scouterr.WithDetails(ErrNotSelectable, map[string]string{"path": key})
			return
		}
		s.selected[key] = s.defaultAmountLocked(rec)
		now = true
	})
	return now, err
}

// ToggleSelectAll selects every selectable address when fewer are
// selected, and clears the selection when all of them already are.
// It returns whether everything is now selected.
func (s *Store) ToggleSelectAll() bool {
	var all bool
	s.mutate(func() {
		selectable := 0
		for _, r := range s.discovered {
			if !r.Failed {
				selectable++
			}
		}

		if len(s.selected) < selectable {
			for _, r := range s.discovered {
				key := r.Path.Key()
				if r.Failed {
					continue
				}
				if _, ok := s.selected[key]; !ok {
					s.selected[key] = s.defaultAmountLocked(r)
				}
			}
			all = true
			return
		}

		for key, amount := range s.selected {
			s.prior[key] = amount
		}
		clear(s.selected)
	})
	return all
}

// SetAmount changes the amount attached to a selected address.
func (s *Store) SetAmount(path discovery.DerivationPath, amount float64) error {
	var err error
	s.mutate(func() {
		key := path.Key()
		if _, ok := s.selected[key]; !ok {
			err = scouterr.WithDetails(ErrNotDiscovered, map[string]string{"path": key, "reason": "not selected"})
			return
		}
		s.selected[key] = amount
	})
	return err
}

// IsSelected reports whether path is selected.
func (s *Store) IsSelected(path discovery.DerivationPath) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.selected[path.Key()]
	return ok
}

// HasValidSelection is the signal the host uses to enable "continue".
func (s *Store) HasValidSelection() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.selected) > 0
}

// Validate returns ErrEmptySelection when nothing is selected.
func (s *Store) Validate() error {
	if !s.HasValidSelection() {
		return ErrEmptySelection
	}
	return nil
}

// Len returns the number of selected addresses.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.selected)
}

// Selected returns the selection in discovery order.
func (s *Store) Selected() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedLocked()
}

// Discovered returns the discovered set the store was last synced with.
func (s *Store) Discovered() []discovery.AddressRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]discovery.AddressRecord(nil), s.discovered...)
}

func (s *Store) selectedLocked() []Entry {
	out := make([]Entry, 0, len(s.selected))
	for _, r := range s.discovered {
		if amount, ok := s.selected[r.Path.Key()]; ok {
			out = append(out, Entry{Record: r, Amount: amount})
		}
	}
	return out
}

// defaultAmountLocked is the remembered amount, else the known balance, else zero.
func (s *Store) defaultAmountLocked(r discovery.AddressRecord) float64 {
	if amount, ok := s.prior[r.Path.Key()]; ok {
		return amount
	}
	if r.Balance != nil {
		return *r.Balance
	}
	return 0
}

// mutate runs fn under the write lock, then pushes the result to the form.
func (s *Store) mutate(fn func()) {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	s.mu.Lock()
	fn()
	entries := s.selectedLocked()
	s.mu.Unlock()

	if s.form != nil {
		s.form.SetValue(FieldSelected, entries)
		s.form.SetValid(FieldSelected, len(entries) > 0)
	}
}
