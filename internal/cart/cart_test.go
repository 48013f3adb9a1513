package cart

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"svetafor/backend/internal/domain"
)

// mapPersister stores serialized sessions in a map, standing in for Redis.
type mapPersister struct {
	saves   int
	deletes int
	entries map[string][]byte
}

func newMapPersister() *mapPersister {
	return &mapPersister{entries: make(map[string][]byte)}
}

func (p *mapPersister) Load(_ context.Context, key string) (*Session, bool, error) {
	raw, ok := p.entries[key]
	if !ok {
		return nil, false, nil
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, false, err
	}
	return &session, true, nil
}

func (p *mapPersister) Save(_ context.Context, key string, session *Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	p.entries[key] = raw
	p.saves++
	return nil
}

func (p *mapPersister) Delete(_ context.Context, key string) error {
	delete(p.entries, key)
	p.deletes++
	return nil
}

func testLine(productID string, qty float64) domain.CartLine {
	return domain.CartLine{
		ProductID: productID,
		Snapshot: domain.ProductSnapshot{
			Name:           "Brake pad " + productID,
			Articul:        "BP-" + productID,
			OutPriceCents:  250000,
			Currency:       domain.CurrencyUZS,
			Count:          8,
			WarehouseCount: 20,
		},
		Currency:   domain.CurrencyUZS,
		PriceCents: 250000,
		Quantity:   qty,
	}
}

func TestAddThenRemoveRestoresPriorList(t *testing.T) {
	m := NewManager(nil)
	ctx := context.Background()

	m.AddLine(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p1", 1))
	before := m.Get(ctx, "store-1", "term-1", domain.CartKindOrder)

	m.AddLine(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p2", 2))
	after, err := m.RemoveLine(ctx, "store-1", "term-1", domain.CartKindOrder, 1)
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	if !reflect.DeepEqual(before.Lines, after.Lines) {
		t.Fatalf("expected add+remove at same position to restore the list, got %+v", after.Lines)
	}
}

func TestUpdateLineLocality(t *testing.T) {
	m := NewManager(nil)
	ctx := context.Background()

	m.AddLine(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p1", 1))
	m.AddLine(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p2", 2))
	m.AddLine(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p3", 3))

	updated := testLine("p1", 3)
	session, err := m.UpdateLine(ctx, "store-1", "term-1", domain.CartKindOrder, 0, updated)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if session.Lines[0].Quantity != 3 {
		t.Fatalf("expected updated quantity 3, got %v", session.Lines[0].Quantity)
	}
	if session.Lines[1].ProductID != "p2" || session.Lines[1].Quantity != 2 {
		t.Fatalf("index 1 was disturbed: %+v", session.Lines[1])
	}
	if session.Lines[2].ProductID != "p3" || session.Lines[2].Quantity != 3 {
		t.Fatalf("index 2 was disturbed: %+v", session.Lines[2])
	}
}

func TestOutOfRangeIndicesAreRejected(t *testing.T) {
	m := NewManager(nil)
	ctx := context.Background()

	m.AddLine(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p1", 1))

	if _, err := m.UpdateLine(ctx, "store-1", "term-1", domain.CartKindOrder, 5, testLine("p1", 2)); !errors.Is(err, ErrLineIndex) {
		t.Fatalf("expected ErrLineIndex for update, got %v", err)
	}
	if _, err := m.RemoveLine(ctx, "store-1", "term-1", domain.CartKindOrder, -1); !errors.Is(err, ErrLineIndex) {
		t.Fatalf("expected ErrLineIndex for remove, got %v", err)
	}

	session := m.Get(ctx, "store-1", "term-1", domain.CartKindOrder)
	if len(session.Lines) != 1 {
		t.Fatalf("rejected mutation must not alter the list, got %d lines", len(session.Lines))
	}
}

func TestEditLifecycleSaveReplacesInPlace(t *testing.T) {
	m := NewManager(nil)
	ctx := context.Background()

	m.AddLine(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p1", 1))
	m.AddLine(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p2", 1))

	session, err := m.BeginEdit(ctx, "store-1", "term-1", domain.CartKindOrder, 0)
	if err != nil {
		t.Fatalf("begin edit failed: %v", err)
	}
	if !session.Adding || session.EditingIndex != 0 || session.Editing == nil {
		t.Fatalf("unexpected editing state: %+v", session)
	}

	session, err = m.SaveEditing(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p1", 4))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if session.Adding || session.Editing != nil || session.EditingIndex != -1 {
		t.Fatalf("editing slot not cleared after save: %+v", session)
	}
	if len(session.Lines) != 2 || session.Lines[0].Quantity != 4 {
		t.Fatalf("expected in-place replacement, got %+v", session.Lines)
	}
}

func TestEditLifecycleSaveAppendsNewLine(t *testing.T) {
	m := NewManager(nil)
	ctx := context.Background()

	m.BeginAdd(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p1", 1))
	session, err := m.SaveEditing(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p1", 2))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if len(session.Lines) != 1 || session.Lines[0].Quantity != 2 {
		t.Fatalf("expected appended line, got %+v", session.Lines)
	}
}

func TestRemoveBelowEditedLineKeepsSlotOnSameLine(t *testing.T) {
	m := NewManager(nil)
	ctx := context.Background()

	m.AddLine(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p1", 1))
	m.AddLine(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p2", 2))
	m.AddLine(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p3", 3))

	if _, err := m.BeginEdit(ctx, "store-1", "term-1", domain.CartKindOrder, 1); err != nil {
		t.Fatalf("begin edit failed: %v", err)
	}
	session, err := m.RemoveLine(ctx, "store-1", "term-1", domain.CartKindOrder, 0)
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if session.EditingIndex != 0 {
		t.Fatalf("expected editing slot to follow the shifted line, got index %d", session.EditingIndex)
	}

	session, err = m.SaveEditing(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p2", 9))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if len(session.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %+v", session.Lines)
	}
	if session.Lines[0].ProductID != "p2" || session.Lines[0].Quantity != 9 {
		t.Fatalf("edited line not updated: %+v", session.Lines)
	}
	if session.Lines[1].ProductID != "p3" || session.Lines[1].Quantity != 3 {
		t.Fatalf("neighboring line disturbed: %+v", session.Lines)
	}
}

func TestRemoveAboveEditedLineLeavesSlotAlone(t *testing.T) {
	m := NewManager(nil)
	ctx := context.Background()

	m.AddLine(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p1", 1))
	m.AddLine(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p2", 2))
	m.AddLine(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p3", 3))

	if _, err := m.BeginEdit(ctx, "store-1", "term-1", domain.CartKindOrder, 0); err != nil {
		t.Fatalf("begin edit failed: %v", err)
	}
	session, err := m.RemoveLine(ctx, "store-1", "term-1", domain.CartKindOrder, 2)
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if session.EditingIndex != 0 || session.Editing == nil {
		t.Fatalf("expected editing slot untouched, got %+v", session)
	}
}

func TestRemoveEditedLineClearsSlot(t *testing.T) {
	m := NewManager(nil)
	ctx := context.Background()

	m.AddLine(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p1", 1))
	m.AddLine(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p2", 2))

	if _, err := m.BeginEdit(ctx, "store-1", "term-1", domain.CartKindOrder, 1); err != nil {
		t.Fatalf("begin edit failed: %v", err)
	}
	session, err := m.RemoveLine(ctx, "store-1", "term-1", domain.CartKindOrder, 1)
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if session.Adding || session.Editing != nil || session.EditingIndex != -1 {
		t.Fatalf("expected cleared editing slot, got %+v", session)
	}
}

func TestCancelEditingDiscardsWithoutMutatingList(t *testing.T) {
	m := NewManager(nil)
	ctx := context.Background()

	m.AddLine(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p1", 1))
	if _, err := m.BeginEdit(ctx, "store-1", "term-1", domain.CartKindOrder, 0); err != nil {
		t.Fatalf("begin edit failed: %v", err)
	}

	session := m.CancelEditing(ctx, "store-1", "term-1", domain.CartKindOrder)
	if session.Adding || session.Editing != nil {
		t.Fatalf("cancel left editing state: %+v", session)
	}
	if len(session.Lines) != 1 || session.Lines[0].Quantity != 1 {
		t.Fatalf("cancel mutated the list: %+v", session.Lines)
	}
}

func TestSaveWithoutBeginIsRejected(t *testing.T) {
	m := NewManager(nil)
	ctx := context.Background()

	if _, err := m.SaveEditing(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p1", 1)); !errors.Is(err, ErrNotEditing) {
		t.Fatalf("expected ErrNotEditing, got %v", err)
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	m := NewManager(nil)
	ctx := context.Background()

	m.AddLine(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p1", 1))
	m.BeginSubmit(ctx, "store-1", "term-1", domain.CartKindOrder)
	header := DefaultHeader()
	header.CustomerPhone = "+998901234567"
	header.Currency = domain.CurrencyUSD
	m.SetHeader(ctx, "store-1", "term-1", domain.CartKindOrder, header)

	session := m.Reset(ctx, "store-1", "term-1", domain.CartKindOrder)
	if len(session.Lines) != 0 {
		t.Fatalf("expected empty list after reset, got %d lines", len(session.Lines))
	}
	if !reflect.DeepEqual(session.Header, DefaultHeader()) {
		t.Fatalf("expected default header after reset, got %+v", session.Header)
	}
	if session.Adding || session.Submitting || session.Editing != nil || session.EditingIndex != -1 {
		t.Fatalf("expected cleared editing/submitting state, got %+v", session)
	}
}

func TestResetDeletesStoredSession(t *testing.T) {
	persister := newMapPersister()
	m := NewManager(persister)
	ctx := context.Background()

	m.AddLine(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p1", 1))
	if len(persister.entries) != 1 {
		t.Fatalf("expected stored session before reset, got %d entries", len(persister.entries))
	}

	m.Reset(ctx, "store-1", "term-1", domain.CartKindOrder)
	if persister.deletes != 1 {
		t.Fatalf("expected reset to delete the stored key, got %d deletes", persister.deletes)
	}
	if len(persister.entries) != 0 {
		t.Fatalf("expected no stored sessions after reset, got %d entries", len(persister.entries))
	}

	// A reload after reset must come up empty, not rehydrate stale lines.
	reloaded := NewManager(persister).Get(ctx, "store-1", "term-1", domain.CartKindOrder)
	if len(reloaded.Lines) != 0 {
		t.Fatalf("reset session rehydrated stale lines: %+v", reloaded.Lines)
	}
}

func TestSessionsAreIsolatedByKeyAndKind(t *testing.T) {
	m := NewManager(nil)
	ctx := context.Background()

	m.AddLine(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p1", 1))
	m.AddLine(ctx, "store-1", "term-1", domain.CartKindDebt, testLine("p2", 2))
	m.AddLine(ctx, "store-2", "term-1", domain.CartKindOrder, testLine("p3", 3))

	order := m.Get(ctx, "store-1", "term-1", domain.CartKindOrder)
	debt := m.Get(ctx, "store-1", "term-1", domain.CartKindDebt)
	if len(order.Lines) != 1 || order.Lines[0].ProductID != "p1" {
		t.Fatalf("order session polluted: %+v", order.Lines)
	}
	if len(debt.Lines) != 1 || debt.Lines[0].ProductID != "p2" {
		t.Fatalf("debt session polluted: %+v", debt.Lines)
	}
}

func TestEveryMutationPersistsAndReloadRehydrates(t *testing.T) {
	persister := newMapPersister()
	m := NewManager(persister)
	ctx := context.Background()

	m.AddLine(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p1", 1))
	if _, err := m.UpdateLine(ctx, "store-1", "term-1", domain.CartKindOrder, 0, testLine("p1", 2)); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	m.BeginSubmit(ctx, "store-1", "term-1", domain.CartKindOrder)
	if persister.saves != 3 {
		t.Fatalf("expected a persist per mutation, got %d", persister.saves)
	}

	// A fresh manager over the same persister simulates a reload.
	reloaded := NewManager(persister).Get(ctx, "store-1", "term-1", domain.CartKindOrder)
	if len(reloaded.Lines) != 1 || reloaded.Lines[0].Quantity != 2 {
		t.Fatalf("rehydrated session lost state: %+v", reloaded.Lines)
	}
	if !reloaded.Submitting {
		t.Fatalf("rehydrated session lost submitting flag")
	}
}

func TestSnapshotIsDetachedFromInternalState(t *testing.T) {
	m := NewManager(nil)
	ctx := context.Background()

	session := m.AddLine(ctx, "store-1", "term-1", domain.CartKindOrder, testLine("p1", 1))
	session.Lines[0].Quantity = 99

	fresh := m.Get(ctx, "store-1", "term-1", domain.CartKindOrder)
	if fresh.Lines[0].Quantity != 1 {
		t.Fatalf("returned snapshot aliases internal state")
	}
}
