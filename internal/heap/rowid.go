package heap

import "fmt"

// Placement is where a row id lives: page file index and slot within it.
type Placement struct {
	Page uint32
	Slot uint32
}

func (p Placement) String() string {
	return fmt.Sprintf("page.%d[%d]", p.Page, p.Slot)
}

func (t *Table) Placement(id uint32) Placement {
	page, slot := t.SM.Locate(id)
	return Placement{Page: page, Slot: slot}
}
