// Package cart holds the working state of order and debt documents while a
// seller is building them: the line items, the document header, and the
// "line being edited" slot. Sessions are keyed by store, terminal and kind,
// survive a client reload through a Persister, and are only emptied by an
// explicit reset.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"svetafor/backend/internal/domain"
)

var (
	ErrLineIndex  = errors.New("cart line index out of range")
	ErrNotEditing = errors.New("no cart line is being edited")
)

// Session is the full serialized state of one working document. EditingIndex
// is -1 while a brand-new line is being composed and a valid index while an
// existing line is being edited.
type Session struct {
	StoreID      string                `json:"store_id"`
	TerminalID   string                `json:"terminal_id"`
	Kind         string                `json:"kind"`
	Lines        []domain.CartLine     `json:"items"`
	Header       domain.DocumentHeader `json:"current_document"`
	Editing      *domain.CartLine      `json:"editing_item,omitempty"`
	EditingIndex int                   `json:"editing_index"`
	Adding       bool                  `json:"adding"`
	Submitting   bool                  `json:"submitting"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// DefaultHeader is the reset target for a document header. Both order and
// debt documents start as a cash document in so'm.
func DefaultHeader() domain.DocumentHeader {
	return domain.DocumentHeader{
		PaymentMethod:  domain.PaymentCash,
		Currency:       domain.CurrencyUZS,
		ChangeCurrency: domain.CurrencyUZS,
	}
}

func newSession(storeID, terminalID, kind string) *Session {
	return &Session{
		StoreID:      storeID,
		TerminalID:   terminalID,
		Kind:         kind,
		Lines:        []domain.CartLine{},
		Header:       DefaultHeader(),
		EditingIndex: -1,
	}
}

// Persister stores serialized sessions so an in-progress document survives a
// reload. Persistence is a durability bonus, not a correctness requirement:
// mutations succeed even when the persister is down.
type Persister interface {
	Load(ctx context.Context, key string) (*Session, bool, error)
	Save(ctx context.Context, key string, session *Session) error
	Delete(ctx context.Context, key string) error
}

// NoopPersister keeps sessions purely in memory.
type NoopPersister struct{}

func (NoopPersister) Load(_ context.Context, _ string) (*Session, bool, error) { return nil, false, nil }
func (NoopPersister) Save(_ context.Context, _ string, _ *Session) error       { return nil }
func (NoopPersister) Delete(_ context.Context, _ string) error                 { return nil }

// Manager owns all live sessions. It is an injected component, not a
// process-wide singleton, so tests can run isolated managers side by side.
type Manager struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	persister Persister
}

func NewManager(persister Persister) *Manager {
	if persister == nil {
		persister = NoopPersister{}
	}
	return &Manager{
		sessions:  make(map[string]*Session),
		persister: persister,
	}
}

func sessionKey(storeID, terminalID, kind string) string {
	return fmt.Sprintf("cart:%s:%s:%s", storeID, terminalID, kind)
}

// sessionLocked returns the live session for the key, rehydrating from the
// persister on first access. Callers must hold m.mu.
func (m *Manager) sessionLocked(ctx context.Context, storeID, terminalID, kind string) *Session {
	key := sessionKey(storeID, terminalID, kind)
	if session, ok := m.sessions[key]; ok {
		return session
	}

	stored, found, err := m.persister.Load(ctx, key)
	if err != nil {
		log.Printf("[cart] WARN: failed to load session %s: %v", key, err)
	}
	if found && stored != nil {
		if stored.Lines == nil {
			stored.Lines = []domain.CartLine{}
		}
		m.sessions[key] = stored
		return stored
	}

	session := newSession(storeID, terminalID, kind)
	m.sessions[key] = session
	return session
}

// persistLocked serializes the session after a mutation. A persist failure
// is logged and swallowed; the in-memory state stays authoritative.
func (m *Manager) persistLocked(ctx context.Context, session *Session) {
	session.UpdatedAt = time.Now().UTC()
	key := sessionKey(session.StoreID, session.TerminalID, session.Kind)
	if err := m.persister.Save(ctx, key, session); err != nil {
		log.Printf("[cart] WARN: failed to persist session %s: %v", key, err)
	}
}

func snapshotOf(session *Session) Session {
	copied := *session
	copied.Lines = append([]domain.CartLine(nil), session.Lines...)
	if session.Editing != nil {
		editing := *session.Editing
		copied.Editing = &editing
	}
	return copied
}

// Get returns a copy of the current session state.
func (m *Manager) Get(ctx context.Context, storeID, terminalID, kind string) Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshotOf(m.sessionLocked(ctx, storeID, terminalID, kind))
}

// AddLine appends a line. The manager does not merge duplicates; whether
// re-adding the same product is allowed is the caller's policy.
func (m *Manager) AddLine(ctx context.Context, storeID, terminalID, kind string, line domain.CartLine) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.sessionLocked(ctx, storeID, terminalID, kind)
	session.Lines = append(session.Lines, line)
	m.persistLocked(ctx, session)
	return snapshotOf(session)
}

// UpdateLine replaces the line at index wholesale. Out-of-range indices are
// rejected rather than corrupting the list.
func (m *Manager) UpdateLine(ctx context.Context, storeID, terminalID, kind string, index int, line domain.CartLine) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.sessionLocked(ctx, storeID, terminalID, kind)
	if index < 0 || index >= len(session.Lines) {
		return snapshotOf(session), ErrLineIndex
	}
	session.Lines[index] = line
	m.persistLocked(ctx, session)
	return snapshotOf(session), nil
}

// RemoveLine deletes the line at index. Positions after it shift down, so
// callers must use fresh indices for subsequent operations.
func (m *Manager) RemoveLine(ctx context.Context, storeID, terminalID, kind string, index int) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.sessionLocked(ctx, storeID, terminalID, kind)
	if index < 0 || index >= len(session.Lines) {
		return snapshotOf(session), ErrLineIndex
	}
	session.Lines = append(session.Lines[:index], session.Lines[index+1:]...)
	switch {
	case session.EditingIndex == index:
		session.Editing = nil
		session.EditingIndex = -1
		session.Adding = false
	case session.EditingIndex > index:
		// The edited line shifted down with the removal; keep the slot
		// pointing at it.
		session.EditingIndex--
	}
	m.persistLocked(ctx, session)
	return snapshotOf(session), nil
}

// BeginAdd opens the editing slot with a fresh line; the list stays
// untouched until SaveEditing.
func (m *Manager) BeginAdd(ctx context.Context, storeID, terminalID, kind string, line domain.CartLine) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.sessionLocked(ctx, storeID, terminalID, kind)
	session.Editing = &line
	session.EditingIndex = -1
	session.Adding = true
	m.persistLocked(ctx, session)
	return snapshotOf(session)
}

// BeginEdit opens the editing slot with a copy of an existing line.
func (m *Manager) BeginEdit(ctx context.Context, storeID, terminalID, kind string, index int) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.sessionLocked(ctx, storeID, terminalID, kind)
	if index < 0 || index >= len(session.Lines) {
		return snapshotOf(session), ErrLineIndex
	}
	line := session.Lines[index]
	session.Editing = &line
	session.EditingIndex = index
	session.Adding = true
	m.persistLocked(ctx, session)
	return snapshotOf(session), nil
}

// SaveEditing commits the editing slot: replace in place when an existing
// line was being edited, append otherwise. The slot is cleared either way.
func (m *Manager) SaveEditing(ctx context.Context, storeID, terminalID, kind string, line domain.CartLine) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.sessionLocked(ctx, storeID, terminalID, kind)
	if !session.Adding {
		return snapshotOf(session), ErrNotEditing
	}
	if session.EditingIndex >= 0 {
		if session.EditingIndex >= len(session.Lines) {
			return snapshotOf(session), ErrLineIndex
		}
		session.Lines[session.EditingIndex] = line
	} else {
		session.Lines = append(session.Lines, line)
	}
	session.Editing = nil
	session.EditingIndex = -1
	session.Adding = false
	m.persistLocked(ctx, session)
	return snapshotOf(session), nil
}

// CancelEditing discards the editing slot without mutating the list.
func (m *Manager) CancelEditing(ctx context.Context, storeID, terminalID, kind string) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.sessionLocked(ctx, storeID, terminalID, kind)
	session.Editing = nil
	session.EditingIndex = -1
	session.Adding = false
	m.persistLocked(ctx, session)
	return snapshotOf(session)
}

// BeginSubmit marks the checkout panel open and the header editable.
func (m *Manager) BeginSubmit(ctx context.Context, storeID, terminalID, kind string) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.sessionLocked(ctx, storeID, terminalID, kind)
	session.Submitting = true
	m.persistLocked(ctx, session)
	return snapshotOf(session)
}

// CancelSubmit closes the checkout panel, keeping lines and header intact.
func (m *Manager) CancelSubmit(ctx context.Context, storeID, terminalID, kind string) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.sessionLocked(ctx, storeID, terminalID, kind)
	session.Submitting = false
	m.persistLocked(ctx, session)
	return snapshotOf(session)
}

// SetHeader replaces the document header.
func (m *Manager) SetHeader(ctx context.Context, storeID, terminalID, kind string, header domain.DocumentHeader) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.sessionLocked(ctx, storeID, terminalID, kind)
	session.Header = header
	m.persistLocked(ctx, session)
	return snapshotOf(session)
}

// Reset restores the session to its defaults. This is the only operation
// that clears state, and callers invoke it exactly once per successful
// submission; a failed submission must leave the session untouched.
func (m *Manager) Reset(ctx context.Context, storeID, terminalID, kind string) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(storeID, terminalID, kind)
	session := newSession(storeID, terminalID, kind)
	m.sessions[key] = session
	// Drop the stored copy rather than writing an empty one; abandoned keys
	// expire instead of lingering as empty documents.
	if err := m.persister.Delete(ctx, key); err != nil {
		log.Printf("[cart] WARN: failed to delete session %s: %v", key, err)
	}
	return snapshotOf(session)
}
