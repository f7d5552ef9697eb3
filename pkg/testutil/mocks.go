// Package testutil provides thread-safe test doubles for the interfaces package.
package testutil

import (
	"fmt"
	"sync"
	"time"

	"github.com/Veraticus/awakeguard/pkg/types"
)

// MockNotifier is a thread-safe mock implementation of notification.Notifier for testing
type MockNotifier struct {
	mu            sync.Mutex
	notifications []types.Notification
	attempts      []types.Notification // Track all send attempts
	sendErr       error
	sendDelay     time.Duration
}

// NewMockNotifier creates a new mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{
		notifications: []types.Notification{},
		attempts:      []types.Notification{},
	}
}

// Send implements the Notifier interface
func (m *MockNotifier) Send(n types.Notification) error {
	m.mu.Lock()
	delay := m.sendDelay
	m.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts = append(m.attempts, n)

	if m.sendErr != nil {
		return m.sendErr
	}

	m.notifications = append(m.notifications, n)
	return nil
}

// GetNotifications returns a copy of successfully sent notifications
func (m *MockNotifier) GetNotifications() []types.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]types.Notification, len(m.notifications))
	copy(result, m.notifications)
	return result
}

// GetAttempts returns a copy of all attempted sends (including failures)
func (m *MockNotifier) GetAttempts() []types.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]types.Notification, len(m.attempts))
	copy(result, m.attempts)
	return result
}

// SetError sets the error to return on Send calls
func (m *MockNotifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// SetDelay sets a delay before each Send call
func (m *MockNotifier) SetDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendDelay = delay
}

// Clear resets the mock state
func (m *MockNotifier) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = []types.Notification{}
	m.attempts = []types.Notification{}
	m.sendErr = nil
	m.sendDelay = 0
}

// MockIdleSource is a mock implementation of interfaces.IdleSource for testing
type MockIdleSource struct {
	mu        sync.Mutex
	elapsed   time.Duration
	available bool
	callCount int
}

// NewMockIdleSource creates a new mock idle source
func NewMockIdleSource(elapsed time.Duration, available bool) *MockIdleSource {
	return &MockIdleSource{
		elapsed:   elapsed,
		available: available,
	}
}

// IdleElapsed implements the IdleSource interface
func (m *MockIdleSource) IdleElapsed() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	return m.elapsed, m.available
}

// SetElapsed sets the reported idle time
func (m *MockIdleSource) SetElapsed(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elapsed = d
}

// SetAvailable sets whether a reading is available
func (m *MockIdleSource) SetAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
}

// GetCallCount returns how many times IdleElapsed was called
func (m *MockIdleSource) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// MockOverlay records every call made to an interfaces.Overlay
type MockOverlay struct {
	mu          sync.Mutex
	calls       []string
	visible     bool
	opacity     float64
	monitor     string
	hint        string
	hintEnabled bool
	closed      bool
}

// NewMockOverlay creates a new mock overlay
func NewMockOverlay() *MockOverlay {
	return &MockOverlay{}
}

// Show implements the Overlay interface
func (m *MockOverlay) Show() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "show")
	m.visible = true
}

// Hide implements the Overlay interface
func (m *MockOverlay) Hide() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "hide")
	m.visible = false
}

// SetOpacity implements the Overlay interface
func (m *MockOverlay) SetOpacity(opacity float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("opacity:%.2f", opacity))
	m.opacity = opacity
}

// SetTargetMonitor implements the Overlay interface
func (m *MockOverlay) SetTargetMonitor(selector string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "monitor:"+selector)
	m.monitor = selector
}

// SetHint implements the Overlay interface
func (m *MockOverlay) SetHint(text string, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("hint:%v", enabled))
	m.hint = text
	m.hintEnabled = enabled
}

// Close records that the overlay was disposed
func (m *MockOverlay) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "close")
	m.closed = true
	return nil
}

// Calls returns a copy of the recorded calls
func (m *MockOverlay) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]string, len(m.calls))
	copy(result, m.calls)
	return result
}

// CountCalls returns how many recorded calls equal name
func (m *MockOverlay) CountCalls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == name {
			n++
		}
	}
	return n
}

// ResetCalls clears the recorded calls but keeps state
func (m *MockOverlay) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// IsVisible returns the state after the last Show or Hide
func (m *MockOverlay) IsVisible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible
}

// Opacity returns the last opacity set
func (m *MockOverlay) Opacity() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opacity
}

// Monitor returns the last monitor selector set
func (m *MockOverlay) Monitor() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.monitor
}

// Hint returns the last hint text and whether it was enabled
func (m *MockOverlay) Hint() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hint, m.hintEnabled
}

// IsClosed reports whether Close was called
func (m *MockOverlay) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockKeepAwake is a mock implementation of interfaces.KeepAwake for testing
type MockKeepAwake struct {
	mu           sync.Mutex
	enableCount  int
	refreshCount int
	disableCount int
	active       bool
	lastScope    types.SleepProtectionScope
	err          error
}

// NewMockKeepAwake creates a new mock keep-awake primitive
func NewMockKeepAwake() *MockKeepAwake {
	return &MockKeepAwake{}
}

// Enable implements the KeepAwake interface
func (m *MockKeepAwake) Enable(scope types.SleepProtectionScope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enableCount++
	if m.err != nil {
		return m.err
	}
	m.active = true
	m.lastScope = scope
	return nil
}

// Refresh implements the KeepAwake interface
func (m *MockKeepAwake) Refresh(scope types.SleepProtectionScope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshCount++
	if m.err != nil {
		return m.err
	}
	m.active = true
	m.lastScope = scope
	return nil
}

// Disable implements the KeepAwake interface
func (m *MockKeepAwake) Disable() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disableCount++
	m.active = false
	return nil
}

// SetError makes Enable and Refresh fail
func (m *MockKeepAwake) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// IsActive reports whether the directive is currently asserted
func (m *MockKeepAwake) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// LastScope returns the scope of the last successful assertion
func (m *MockKeepAwake) LastScope() types.SleepProtectionScope {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastScope
}

// GetEnableCount returns how many times Enable was called
func (m *MockKeepAwake) GetEnableCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enableCount
}

// GetRefreshCount returns how many times Refresh was called
func (m *MockKeepAwake) GetRefreshCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshCount
}

// GetDisableCount returns how many times Disable was called
func (m *MockKeepAwake) GetDisableCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disableCount
}

// MockPulser is a mock implementation of interfaces.InputPulser for testing
type MockPulser struct {
	mu    sync.Mutex
	count int
	err   error
}

// NewMockPulser creates a new mock pulser
func NewMockPulser() *MockPulser {
	return &MockPulser{}
}

// Pulse implements the InputPulser interface
func (m *MockPulser) Pulse() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count++
	return m.err
}

// SetError sets the error returned by Pulse
func (m *MockPulser) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// GetPulseCount returns how many times Pulse was called
func (m *MockPulser) GetPulseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// MockStatusSink records every published status
type MockStatusSink struct {
	mu       sync.Mutex
	statuses []types.RuntimeStatus
	err      error
}

// NewMockStatusSink creates a new mock status sink
func NewMockStatusSink() *MockStatusSink {
	return &MockStatusSink{}
}

// Write implements the StatusSink interface
func (m *MockStatusSink) Write(status types.RuntimeStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, status)
	return m.err
}

// SetError sets the error returned by Write
func (m *MockStatusSink) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Statuses returns a copy of the recorded statuses
func (m *MockStatusSink) Statuses() []types.RuntimeStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]types.RuntimeStatus, len(m.statuses))
	copy(result, m.statuses)
	return result
}

// Last returns the most recent status and whether there was one
func (m *MockStatusSink) Last() (types.RuntimeStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.statuses) == 0 {
		return types.RuntimeStatus{}, false
	}
	return m.statuses[len(m.statuses)-1], true
}

// Count returns how many statuses were recorded
func (m *MockStatusSink) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.statuses)
}

// MockSettingsStore is an in-memory interfaces.SettingsStore
type MockSettingsStore struct {
	mu        sync.Mutex
	settings  types.RuntimeSettings
	path      string
	saveCount int
	loadErr   error
	saveErr   error
}

// NewMockSettingsStore creates a store holding settings
func NewMockSettingsStore(settings types.RuntimeSettings) *MockSettingsStore {
	return &MockSettingsStore{settings: settings, path: "mock://settings"}
}

// Load implements the SettingsStore interface
func (m *MockSettingsStore) Load() (types.RuntimeSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings, m.loadErr
}

// Save implements the SettingsStore interface
func (m *MockSettingsStore) Save(settings types.RuntimeSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCount++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.settings = settings
	return nil
}

// Path implements the SettingsStore interface
func (m *MockSettingsStore) Path() string {
	return m.path
}

// SetErrors sets the errors returned by Load and Save
func (m *MockSettingsStore) SetErrors(loadErr, saveErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = loadErr
	m.saveErr = saveErr
}

// GetSaveCount returns how many times Save was called
func (m *MockSettingsStore) GetSaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCount
}

// MockRateLimiter is a mock implementation of interfaces.RateLimiter for testing
type MockRateLimiter struct {
	mu          sync.Mutex
	allowResult bool
	allowCount  int
	resetCount  int
}

// NewMockRateLimiter creates a new mock rate limiter
func NewMockRateLimiter(allowResult bool) *MockRateLimiter {
	return &MockRateLimiter{
		allowResult: allowResult,
	}
}

// Allow implements the RateLimiter interface
func (m *MockRateLimiter) Allow() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowCount++
	return m.allowResult
}

// Reset implements the RateLimiter interface
func (m *MockRateLimiter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCount++
}

// SetAllowResult sets the result that Allow() will return
func (m *MockRateLimiter) SetAllowResult(allow bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowResult = allow
}

// GetAllowCount returns how many times Allow was called
func (m *MockRateLimiter) GetAllowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allowCount
}

// GetResetCount returns how many times Reset was called
func (m *MockRateLimiter) GetResetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetCount
}

// MockStatusReporter counts notification delivery reports
type MockStatusReporter struct {
	mu       sync.Mutex
	sending  int
	success  int
	failures int
}

// NewMockStatusReporter creates a new mock status reporter
func NewMockStatusReporter() *MockStatusReporter {
	return &MockStatusReporter{}
}

// ReportSending implements the StatusReporter interface
func (m *MockStatusReporter) ReportSending() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sending++
}

// ReportSuccess implements the StatusReporter interface
func (m *MockStatusReporter) ReportSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.success++
}

// ReportFailure implements the StatusReporter interface
func (m *MockStatusReporter) ReportFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

// Counts returns the sending, success and failure counts
func (m *MockStatusReporter) Counts() (sending, success, failures int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sending, m.success, m.failures
}
