package mux

import "github.com/mergerfs-go/mergerfs/internal/rename"

// Rename implements spec.md §4.G "Rename" by delegating to the rename
// engine (spec.md §4.I), configured from the live config snapshot on
// every call so an in-flight rename always sees the ignorepponrename
// flag and create policy that were in effect when it started.
func (m *Multiplexer) Rename(src, dst string) error {
	rec := m.Config.Get()
	eng := &rename.Engine{
		PolicyEngine:     m.engine(),
		IgnorePPOnRename: rec.IgnorePPOnRename,
	}
	return eng.Rename(m.Branches.All(), rec.CreatePolicy, src, dst)
}
