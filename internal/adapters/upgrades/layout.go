package upgrades

import (
	"fmt"

	"github.com/kikiverse/kiki-deploy/internal/domain"
	"github.com/kikiverse/kiki-deploy/internal/domain/models"
)

// CompareLayouts lists every way updated fails to be a compatible extension of original.
// Every original variable must keep its label, position and type; new variables may
// only be appended after the end of the original layout.
func CompareLayouts(original, updated *models.StorageLayout) []domain.LayoutChange {
	var changes []domain.LayoutChange

	originalKeys := occurrenceKeys(original.Storage)
	updatedKeys := occurrenceKeys(updated.Storage)

	updatedByKey := make(map[string]models.StorageItem, len(updated.Storage))
	updatedByPos := make(map[string]models.StorageItem, len(updated.Storage))
	for i, item := range updated.Storage {
		updatedByKey[updatedKeys[i]] = item
		updatedByPos[position(item)] = item
	}
	known := make(map[string]bool, len(original.Storage))
	for _, key := range originalKeys {
		known[key] = true
	}
	renamed := make(map[string]bool)

	for i, old := range original.Storage {
		if upd, ok := updatedByKey[originalKeys[i]]; ok {
			switch {
			case position(upd) != position(old):
				changes = append(changes, change(domain.LayoutMoved, old, fmt.Sprintf("now at slot %s, offset %d", upd.Slot, upd.Offset)))
			case !typesEqual(original, old.Type, updated, upd.Type, map[string]bool{}):
				changes = append(changes, change(domain.LayoutRetyped, old, fmt.Sprintf("%s became %s", typeLabel(original, old.Type), typeLabel(updated, upd.Type))))
			}
			continue
		}

		upd, ok := updatedByPos[position(old)]
		if ok && !hasLabel(original.Storage, upd.Label) && typesEqual(original, old.Type, updated, upd.Type, map[string]bool{}) {
			renamed[position(upd)] = true
			changes = append(changes, change(domain.LayoutRenamed, old, fmt.Sprintf("renamed to %s", upd.Label)))
			continue
		}
		changes = append(changes, change(domain.LayoutDeleted, old, ""))
	}

	end := original.End()
	for i, item := range updated.Storage {
		if known[updatedKeys[i]] || renamed[position(item)] {
			continue
		}
		if updated.Start(item).Cmp(end) < 0 {
			changes = append(changes, change(domain.LayoutInserted, item, "new variables must be appended after the existing ones"))
		}
	}

	return changes
}

// occurrenceKeys names each item by its label and how many items before it share that
// label, so inherited variables with the same name (every parent's __gap) pair up in order.
func occurrenceKeys(items []models.StorageItem) []string {
	seen := make(map[string]int, len(items))
	keys := make([]string, len(items))
	for i, item := range items {
		keys[i] = fmt.Sprintf("%s#%d", item.Label, seen[item.Label])
		seen[item.Label]++
	}
	return keys
}

func hasLabel(items []models.StorageItem, label string) bool {
	for _, item := range items {
		if item.Label == label {
			return true
		}
	}
	return false
}

func change(kind domain.LayoutChangeKind, item models.StorageItem, detail string) domain.LayoutChange {
	return domain.LayoutChange{
		Kind:     kind,
		Label:    item.Label,
		Slot:     item.Slot,
		Offset:   item.Offset,
		Contract: item.Contract,
		Detail:   detail,
	}
}

func position(item models.StorageItem) string {
	return fmt.Sprintf("%s:%d", item.SlotNumber().String(), item.Offset)
}

func typeLabel(l *models.StorageLayout, id string) string {
	if t, ok := l.Types[id]; ok && t.Label != "" {
		return t.Label
	}
	return id
}

// typesEqual compares two type ids structurally. Type ids embed AST ids, so equal
// types from different compilations may carry different ids.
func typesEqual(a *models.StorageLayout, aID string, b *models.StorageLayout, bID string, seen map[string]bool) bool {
	key := aID + "|" + bID
	if seen[key] {
		return true
	}
	seen[key] = true

	ta, okA := a.Types[aID]
	tb, okB := b.Types[bID]
	if !okA || !okB {
		return aID == bID
	}
	if ta.Label != tb.Label || ta.Encoding != tb.Encoding || ta.NumberOfBytes != tb.NumberOfBytes {
		return false
	}
	if (ta.Base == "") != (tb.Base == "") || (ta.Base != "" && !typesEqual(a, ta.Base, b, tb.Base, seen)) {
		return false
	}
	if (ta.Key == "") != (tb.Key == "") || (ta.Key != "" && !typesEqual(a, ta.Key, b, tb.Key, seen)) {
		return false
	}
	if (ta.Value == "") != (tb.Value == "") || (ta.Value != "" && !typesEqual(a, ta.Value, b, tb.Value, seen)) {
		return false
	}
	if len(ta.Members) != len(tb.Members) {
		return false
	}
	for i := range ta.Members {
		ma, mb := ta.Members[i], tb.Members[i]
		if ma.Label != mb.Label || ma.Offset != mb.Offset || ma.SlotNumber().Cmp(mb.SlotNumber()) != 0 {
			return false
		}
		if !typesEqual(a, ma.Type, b, mb.Type, seen) {
			return false
		}
	}
	return true
}
