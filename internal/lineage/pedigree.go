package lineage

import "flockcore/pkg/domain"

// Ancestor is one slot in a pedigree generation. Unknown ancestors keep
// the raw reference text as label (or empty when no reference exists) so
// the chart can still render the slot.
type Ancestor struct {
	ID       string
	Label    string
	Relation string // "sire" or "dam"
	Known    bool
}

// Pedigree holds ancestor generations for one animal. Generation g has
// 2^(g+1) slots: sire-side lines first, each pair ordered sire before dam.
type Pedigree struct {
	Root        domain.Sheep
	Generations [][]Ancestor
}

// BuildPedigree walks parent references up to the requested number of
// generations. The walk is bounded by depth alone, so an animal that
// appears among its own ancestors still resolves at every level.
func (x *Index) BuildPedigree(root domain.Sheep, generations int) Pedigree {
	if generations < 1 {
		generations = 1
	}
	p := Pedigree{Root: root}

	type slot struct {
		rec domain.Sheep
		ok  bool
	}
	current := []slot{{rec: root, ok: true}}

	for g := 0; g < generations; g++ {
		level := make([]Ancestor, 0, len(current)*2)
		next := make([]slot, 0, len(current)*2)
		for _, cur := range current {
			for _, rel := range []string{"sire", "dam"} {
				ref := ""
				if cur.ok {
					if rel == "sire" {
						ref = cur.rec.Sire
					} else {
						ref = cur.rec.Dam
					}
				}
				anc := Ancestor{Relation: rel, Label: ref}
				child := slot{}
				if ref != "" {
					if parent, found := x.Resolve(ref); found {
						anc.ID = parent.ID
						anc.Label = parent.Label()
						anc.Known = true
						child = slot{rec: parent, ok: true}
					}
				}
				level = append(level, anc)
				next = append(next, child)
			}
		}
		p.Generations = append(p.Generations, level)
		current = next
	}
	return p
}
