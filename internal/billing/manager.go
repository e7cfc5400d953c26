package billing

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultSeedDelay is how long after opening a session the default
// consultation line is inserted. The delay exists so the host can present
// the empty editor first; tests shrink it.
const DefaultSeedDelay = 200 * time.Millisecond

// DefaultConsultationPrice is the fixed price of the seeded consultation
// fee line.
var DefaultConsultationPrice = decimal.NewFromInt(150)

// Session is an explicit handle to one open editor. The manager owns the
// at-most-one-active invariant that the original page shell kept in a
// global slot.
type Session struct {
	ID    uuid.UUID
	Draft *Draft
}

// ManagerConfig tunes session behavior.
type ManagerConfig struct {
	// SeedDelay overrides DefaultSeedDelay when positive. Negative
	// disables seeding entirely.
	SeedDelay time.Duration

	// SeedName is the display name of the seeded consultation line,
	// already translated for the active locale.
	SeedName string
}

// Manager hands out editor sessions and guarantees that at most one is
// active process-wide: opening a new session closes the previous one.
type Manager struct {
	mu     sync.Mutex
	active *Session

	seedDelay time.Duration
	seedName  string
}

func NewManager(cfg ManagerConfig) *Manager {
	delay := cfg.SeedDelay
	if delay == 0 {
		delay = DefaultSeedDelay
	}
	name := cfg.SeedName
	if name == "" {
		name = "Consultation Fee"
	}
	return &Manager{seedDelay: delay, seedName: name}
}

// Open creates a new session around a fresh draft, superseding any session
// that is still active, and schedules insertion of the default consultation
// line after the seed delay. Seeding is silently skipped if the session is
// already closed by then.
func (m *Manager) Open(opts Options) *Session {
	sess := &Session{ID: uuid.New(), Draft: NewDraft(opts)}

	m.mu.Lock()
	prev := m.active
	m.active = sess
	m.mu.Unlock()

	if prev != nil {
		prev.Draft.Close()
	}

	if m.seedDelay >= 0 {
		draft := sess.Draft
		time.AfterFunc(m.seedDelay, func() {
			_, _ = draft.AddItem(LineItem{
				Name:     m.seedName,
				Type:     ItemConsultation,
				Quantity: 1,
				Price:    DefaultConsultationPrice,
			})
		})
	}

	return sess
}

// Get returns the active session when its id matches. Closed or superseded
// session ids report not found.
func (m *Manager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil && m.active.ID == id {
		return m.active, true
	}
	return nil, false
}

// Active returns the currently active session, if any.
func (m *Manager) Active() (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil, false
	}
	return m.active, true
}

// Release detaches the session with the given id and closes its draft.
// Unknown ids are a no-op, so releasing twice is safe.
func (m *Manager) Release(id uuid.UUID) {
	m.mu.Lock()
	var sess *Session
	if m.active != nil && m.active.ID == id {
		sess = m.active
		m.active = nil
	}
	m.mu.Unlock()

	if sess != nil {
		sess.Draft.Close()
	}
}
