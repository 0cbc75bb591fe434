package rotation

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultCooldown is how long a quota-exhausted credential stays out of
	// rotation before it becomes eligible again. Remote quotas reset daily.
	DefaultCooldown = 24 * time.Hour

	// DefaultTransientThreshold is the number of consecutive transient
	// failures after which a credential is temporarily pulled from rotation.
	DefaultTransientThreshold = 5
)

// Status is the lifecycle state of a credential.
type Status int

const (
	// StatusActive means the credential is usable.
	StatusActive Status = iota + 1
	// StatusQuotaExhausted means the credential hit its usage ceiling.
	// It auto-recovers after the cool-down window.
	StatusQuotaExhausted
	// StatusInvalid means authentication failed. Terminal, never recovered.
	StatusInvalid
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusQuotaExhausted:
		return "quota_exhausted"
	case StatusInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// FailureKind classifies a failed request for rotation purposes.
type FailureKind int

const (
	// FailureTransient is a temporary error (network, timeout, 5xx).
	// The credential stays active unless failures accumulate.
	FailureTransient FailureKind = iota + 1
	// FailureQuotaExhausted means the provider reported a usage ceiling (429).
	FailureQuotaExhausted
	// FailureInvalid means authentication or authorization failed (401/403).
	FailureInvalid
)

// credential tracks the rotation state of a single access key.
type credential struct {
	key            string
	status         Status
	errorCount     int
	transientRun   int // consecutive transient failures
	successCount   int
	lastErrorTime  time.Time
}

// Handle identifies an acquired credential. It is returned by Acquire and
// passed back to ReportSuccess/ReportFailure.
type Handle struct {
	Key   string
	index int
}

// Manager rotates between credentials for a remote provider, pulling
// exhausted or invalid ones out of the ring. All methods are safe for
// concurrent use.
type Manager struct {
	mu       sync.Mutex
	creds    []*credential
	current  int
	cooldown time.Duration
	maxRun   int
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager) error

// WithCooldown sets the cool-down window for quota-exhausted credentials.
// Default is DefaultCooldown.
func WithCooldown(d time.Duration) Option {
	return func(m *Manager) error {
		if d <= 0 {
			return ErrInvalidCooldown
		}
		m.cooldown = d
		return nil
	}
}

// WithTransientThreshold sets how many consecutive transient failures pull a
// credential from rotation. Default is DefaultTransientThreshold.
func WithTransientThreshold(n int) Option {
	return func(m *Manager) error {
		if n < 1 {
			n = 1
		}
		m.maxRun = n
		return nil
	}
}

// WithClock sets the time source. Used by tests to advance past the
// cool-down window.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) error {
		if now != nil {
			m.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
		return nil
	}
}

// NewManager creates a rotation manager over the given credential keys.
// The order of keys is the initial rotation order.
func NewManager(keys []string, opts ...Option) (*Manager, error) {
	if len(keys) == 0 {
		return nil, ErrNoCredentials
	}

	creds := make([]*credential, len(keys))
	for i, key := range keys {
		creds[i] = &credential{key: key, status: StatusActive}
	}

	m := &Manager{
		creds:    creds,
		cooldown: DefaultCooldown,
		maxRun:   DefaultTransientThreshold,
		now:      time.Now,
		logger:   slog.Default().With("component", "rotation"),
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Len returns the number of credentials in the ring.
func (m *Manager) Len() int {
	return len(m.creds)
}

// Acquire returns a handle to the next usable credential.
// Returns ErrUnavailable when the whole ring is exhausted or invalid.
//
// The cool-down check happens lazily here: a quota-exhausted credential
// whose last error is older than the cool-down window is reset to active
// during the scan. No background timers.
func (m *Manager) Acquire() (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for attempts := 0; attempts < len(m.creds); attempts++ {
		idx := (m.current + attempts) % len(m.creds)
		cred := m.creds[idx]

		if cred.status == StatusQuotaExhausted &&
			m.now().Sub(cred.lastErrorTime) > m.cooldown {
			cred.status = StatusActive
			cred.transientRun = 0
			m.logger.Info("credential cool-down elapsed, back in rotation",
				"credential", maskKey(cred.key))
		}

		if cred.status == StatusActive {
			m.current = idx
			return &Handle{Key: cred.key, index: idx}, nil
		}
	}

	return nil, ErrUnavailable
}

// ReportSuccess records a successful request through the credential.
func (m *Manager) ReportSuccess(h *Handle) {
	if h == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cred := m.creds[h.index]
	cred.successCount++
	cred.transientRun = 0
}

// ReportFailure records a failed request and updates the credential state.
//
// Quota exhaustion pulls the credential out until the cool-down elapses.
// Invalid is terminal. Transient failures keep the credential active until
// the consecutive-failure threshold is exceeded, at which point it is
// treated like quota exhaustion (temporary, cool-down recoverable).
func (m *Manager) ReportFailure(h *Handle, kind FailureKind) {
	if h == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cred := m.creds[h.index]
	cred.errorCount++
	cred.lastErrorTime = m.now()

	switch kind {
	case FailureQuotaExhausted:
		if cred.status == StatusActive {
			cred.status = StatusQuotaExhausted
			m.logger.Warn("credential quota exhausted",
				"credential", maskKey(cred.key))
		}
		m.advanceFrom(h.index)

	case FailureInvalid:
		if cred.status != StatusInvalid {
			cred.status = StatusInvalid
			m.logger.Error("credential authentication failed, removed from rotation",
				"credential", maskKey(cred.key))
		}
		m.advanceFrom(h.index)

	case FailureTransient:
		cred.transientRun++
		if cred.transientRun >= m.maxRun && cred.status == StatusActive {
			cred.status = StatusQuotaExhausted
			cred.transientRun = 0
			m.logger.Warn("credential pulled after repeated transient failures",
				"credential", maskKey(cred.key), "threshold", m.maxRun)
			m.advanceFrom(h.index)
		}
	}
}

// advanceFrom moves the ring pointer off a failed credential.
// Caller holds the lock.
func (m *Manager) advanceFrom(idx int) {
	if m.current == idx {
		m.current = (idx + 1) % len(m.creds)
	}
}

// CredentialStatus is the observable state of one credential.
type CredentialStatus struct {
	Identifier         string // masked key, safe for display
	Status             Status
	ErrorCount         int
	SuccessfulRequests int
	LastErrorTime      time.Time
}

// Report is a point-in-time snapshot of the whole ring.
type Report struct {
	Total          int
	Active         int
	QuotaExhausted int
	Invalid        int
	Credentials    []CredentialStatus
}

// Status returns a snapshot of every credential for the operational surface.
// Cool-down resets are applied lazily here too, so the report reflects
// what Acquire would see.
func (m *Manager) Status() Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	report := Report{
		Total:       len(m.creds),
		Credentials: make([]CredentialStatus, 0, len(m.creds)),
	}

	for _, cred := range m.creds {
		if cred.status == StatusQuotaExhausted &&
			m.now().Sub(cred.lastErrorTime) > m.cooldown {
			cred.status = StatusActive
			cred.transientRun = 0
		}

		switch cred.status {
		case StatusActive:
			report.Active++
		case StatusQuotaExhausted:
			report.QuotaExhausted++
		case StatusInvalid:
			report.Invalid++
		}

		report.Credentials = append(report.Credentials, CredentialStatus{
			Identifier:         maskKey(cred.key),
			Status:             cred.status,
			ErrorCount:         cred.errorCount,
			SuccessfulRequests: cred.successCount,
			LastErrorTime:      cred.lastErrorTime,
		})
	}

	return report
}

// maskKey hides all but the last 6 characters of a key for display.
func maskKey(key string) string {
	if len(key) <= 6 {
		return "******"
	}
	return "***" + key[len(key)-6:]
}
