// Package importer runs the account import step: a discovery session, the
// user's selection from it, and the commit into the profile.
package importer

import (
	"context"

	"github.com/mrz1836/seedscout/internal/discovery"
	"github.com/mrz1836/seedscout/internal/profile"
	"github.com/mrz1836/seedscout/internal/selection"
)

// Flow wires a Controller to a selection Store and a profile.
type Flow struct {
	controller *discovery.Controller
	selection  *selection.Store
	profile    *profile.Store
}

// New creates a flow. The profile doubles as the index of already imported
// accounts, so discovery resumes after them. form may be nil.
func New(strategy discovery.ScanStrategy, balances discovery.BalanceSyncService, prof *profile.Store, opts *discovery.Options, form selection.FormBinding) (*Flow, error) {
	store := selection.NewStore(form)

	o := discovery.DefaultOptions()
	if opts != nil {
		copied := *opts
		o = &copied
	}
	o.Selection = store

	var existing discovery.ExistingAccountIndex
	if prof != nil {
		existing = prof
	}
	c, err := discovery.NewController(strategy, balances, existing, o)
	if err != nil {
		return nil, err
	}
	return &Flow{controller: c, selection: store, profile: prof}, nil
}

// Controller returns the discovery controller.
func (f *Flow) Controller() *discovery.Controller { return f.controller }

// Selection returns the selection store.
func (f *Flow) Selection() *selection.Store { return f.selection }

// Start begins discovery.
func (f *Flow) Start(ctx context.Context) error { return f.controller.Start(ctx) }

// ScanMore appends one batch.
func (f *Flow) ScanMore(ctx context.Context) error { return f.controller.ScanMore(ctx) }

// Accounts converts the current selection into profile accounts.
func (f *Flow) Accounts() []profile.Account {
	entries := f.selection.Selected()
	strategy := f.controller.Strategy().Name()

	out := make([]profile.Account, 0, len(entries))
	for _, e := range entries {
		out = append(out, profile.Account{
			Address:  e.Record.Address,
			Path:     e.Record.Path,
			Amount:   e.Amount,
			Strategy: strategy,
		})
	}
	return out
}

// Complete validates the selection and imports it into the profile.
// It fails with selection.ErrEmptySelection when nothing is selected and
// with discovery.ErrScanInProgress while a scan runs.
func (f *Flow) Complete() (profile.ImportResult, error) {
	if f.controller.Status().IsScanning() {
		return profile.ImportResult{}, discovery.ErrScanInProgress
	}
	if err := f.selection.Validate(); err != nil {
		return profile.ImportResult{}, err
	}
	if f.profile == nil {
		return profile.ImportResult{Added: f.Accounts()}, nil
	}
	return f.profile.Import(f.Accounts())
}
