// Package symtab provides the bidirectional interning table used by the
// Tier C compiler (§4.3) to map state, event, action, and guard names to
// small integer indices (C3 "Symbol Table (Map)").
//
// The pattern is generalised from the teacher's MachineBuilder, which
// interned state names into sequential StateIDs via paired
// nameToID/idToName maps; here the same idea is reused for four
// independent namespaces (states, events, actions, guards) with an
// explicit small-int ceiling the Tier C compiler enforces.
package symtab

import "fmt"

// ID is a small integer index. MaxID is the largest value the Tier C
// compiler's dense arrays are sized for (§4.3 "small (<=255) integer id").
type ID uint8

const MaxID = 255

// Table interns a single namespace of names to IDs, assigned in first-seen
// (document) order starting at 0.
type Table struct {
	nameToID map[string]ID
	idToName []string
}

// New creates an empty Table.
func New() *Table {
	return &Table{nameToID: make(map[string]ID)}
}

// Intern returns the existing ID for name, or assigns and returns the next
// sequential one. Returns an error once the table would exceed MaxID+1
// entries (ids 0..MaxID) — the signal the compiler uses to fall back from Tier C to Tier B
// (§4.3 "The compiler rejects a Tier C request if any id would exceed the
// small-int ceiling and recommends Tier B").
func (t *Table) Intern(name string) (ID, error) {
	if id, ok := t.nameToID[name]; ok {
		return id, nil
	}
	if len(t.idToName) > MaxID {
		return 0, fmt.Errorf("symtab: interning %q would exceed the %d-entry Tier C ceiling", name, MaxID+1)
	}
	id := ID(len(t.idToName))
	t.nameToID[name] = id
	t.idToName = append(t.idToName, name)
	return id, nil
}

// Lookup returns the ID already assigned to name, if any.
func (t *Table) Lookup(name string) (ID, bool) {
	id, ok := t.nameToID[name]
	return id, ok
}

// Name returns the name interned at id. Panics on an out-of-range id, which
// indicates a compiler bug (ids are only ever handed out by Intern).
func (t *Table) Name(id ID) string {
	return t.idToName[id]
}

// Len returns the number of interned names.
func (t *Table) Len() int {
	return len(t.idToName)
}

// Names returns all interned names in assignment order.
func (t *Table) Names() []string {
	out := make([]string, len(t.idToName))
	copy(out, t.idToName)
	return out
}

// Symbols bundles the four independent namespaces a compiled Program needs
// (§4.3 "A bidirectional id<->name map" per namespace).
type Symbols struct {
	States  *Table
	Events  *Table
	Actions *Table
	Guards  *Table
}

// NewSymbols creates four empty namespace tables.
func NewSymbols() *Symbols {
	return &Symbols{States: New(), Events: New(), Actions: New(), Guards: New()}
}
