package esm

import (
	"strconv"

	"github.com/dlclark/regexp2"

	"github.com/Sumatoshi-tech/globalesm/pkg/jsast"
)

// Synthesized identifier bases.
const (
	handlePrefix      = "__"
	nameExportDefault = "__export_default"
	nameDefault       = "__default"
	nameReExport      = "__re_export"
	nameReExportAll   = "__re_export_all"
)

var nonAlphanumeric = regexp2.MustCompile(`[^a-zA-Z0-9]`, regexp2.None)

// Namer hands out identifiers that collide with nothing written in the
// module and nothing it handed out before.
type Namer struct {
	used map[string]struct{}
}

// NewNamer seeds a Namer with the identifiers already present.
func NewNamer(taken []string) *Namer {
	used := make(map[string]struct{}, len(taken))

	for _, name := range taken {
		used[name] = struct{}{}
	}

	return &Namer{used: used}
}

// Fresh returns base, or base followed by the smallest positive counter,
// whichever is free, and reserves it.
func (n *Namer) Fresh(base string) string {
	if !jsast.IsBindingIdentifier(base) {
		base = "_" + base
	}

	name := base

	for i := 1; n.Used(name); i++ {
		name = base + strconv.Itoa(i)
	}

	n.used[name] = struct{}{}

	return name
}

// Used reports whether name is taken.
func (n *Namer) Used(name string) bool {
	_, ok := n.used[name]

	return ok
}

// handleBase derives the handle identifier base for a source string.
func handleBase(source string) (string, error) {
	normalized, err := nonAlphanumeric.Replace(source, "_", -1, -1)
	if err != nil {
		return "", err
	}

	return handlePrefix + normalized, nil
}

// handleTable maps each source to its handle in first-reference order.
type handleTable struct {
	order []string
	names map[string]string
}

func newHandleTable() *handleTable {
	return &handleTable{names: make(map[string]string)}
}

func (t *handleTable) get(source string) (string, bool) {
	name, ok := t.names[source]

	return name, ok
}

func (t *handleTable) add(source, name string) {
	t.order = append(t.order, source)
	t.names[source] = name
}
