// Package workflow drives a document from capture through review to the
// committed collection, and serves that lifecycle over HTTP.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zombor/invoice-scanner/internal/capture"
	"github.com/zombor/invoice-scanner/internal/document"
	"github.com/zombor/invoice-scanner/internal/reconcile"
	"github.com/zombor/invoice-scanner/internal/scanning"
)

// DefaultExtractionTimeout bounds a single extraction call
const DefaultExtractionTimeout = 60 * time.Second

// Phase is the top-level state of the workflow
type Phase string

const (
	PhaseScanning  Phase = "SCANNING"
	PhaseReviewing Phase = "REVIEWING"
	PhaseDashboard Phase = "DASHBOARD"
)

// Collection is the committed-record store the machine writes to
type Collection interface {
	Variant() document.Variant
	Load() []document.Record
	Commit(draft document.Record) (document.Record, error)
	Records() []document.Record
	Len() int
	Clear() error
}

// State is a point-in-time view of the machine
type State struct {
	Phase      Phase             `json:"phase"`
	Processing bool              `json:"processing"`
	Message    string            `json:"message,omitempty"`
	Variant    document.Variant  `json:"variant"`
	Draft      document.Record   `json:"draft,omitempty"`
	Validation *reconcile.Result `json:"validation,omitempty"`
	Count      int               `json:"count"`
}

// Machine is the single workflow of a process. All methods are safe for
// concurrent use; at most one scan is processed at a time.
type Machine struct {
	mu         sync.Mutex
	phase      Phase
	processing bool
	message    string
	draft      document.Record
	validation reconcile.Result

	store     Collection
	extractor scanning.Extractor
	tariff    reconcile.Tariff
	timeout   time.Duration
}

// NewMachine creates a Machine in the SCANNING phase. Call Start to load the
// collection.
func NewMachine(store Collection, extractor scanning.Extractor, tariff reconcile.Tariff) *Machine {
	return NewMachineWithTimeout(store, extractor, tariff, DefaultExtractionTimeout)
}

// NewMachineWithTimeout creates a Machine with a custom extraction timeout
func NewMachineWithTimeout(store Collection, extractor scanning.Extractor, tariff reconcile.Tariff, timeout time.Duration) *Machine {
	if timeout <= 0 {
		timeout = DefaultExtractionTimeout
	}
	return &Machine{
		phase:     PhaseScanning,
		store:     store,
		extractor: extractor,
		tariff:    tariff,
		timeout:   timeout,
	}
}

// Start loads the collection and opens on the dashboard when it has records.
// A scan in flight keeps the current state.
func (m *Machine) Start() State {
	m.mu.Lock()
	busy := m.processing
	m.mu.Unlock()
	if busy {
		slog.Warn("Start ignored while a scan is in flight")
		return m.Snapshot()
	}

	records := m.store.Load()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.processing {
		return m.snapshot()
	}
	m.draft = nil
	m.message = ""
	m.phase = PhaseScanning
	if len(records) > 0 {
		m.phase = PhaseDashboard
	}
	return m.snapshot()
}

// Snapshot returns the current state
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

func (m *Machine) snapshot() State {
	s := State{
		Phase:      m.phase,
		Processing: m.processing,
		Message:    m.message,
		Variant:    m.store.Variant(),
		Count:      m.store.Len(),
	}
	if m.draft != nil {
		s.Draft = m.draft.Clone()
		v := m.validation
		s.Validation = &v
	}
	return s
}

type extraction struct {
	rec document.Record
	err error
}

// Scan extracts a draft from the image. Success moves to REVIEWING; failure
// or timeout stays in SCANNING with a message and the image is dropped.
func (m *Machine) Scan(ctx context.Context, img capture.Image) (State, error) {
	if s, err := m.begin("scan"); err != nil {
		return s, err
	}
	return m.extract(ctx, img)
}

// begin claims the machine for one capture or extraction
func (m *Machine) begin(action string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.processing {
		return m.snapshot(), ErrBusy
	}
	if m.phase != PhaseScanning {
		return m.snapshot(), fmt.Errorf("%w: cannot %s while %s", ErrWrongPhase, action, m.phase)
	}
	m.processing = true
	m.message = ""
	return State{}, nil
}

// extract runs the extractor for a claimed machine and releases it
func (m *Machine) extract(ctx context.Context, img capture.Image) (State, error) {
	slog.Info("Scanning document", "name", img.Name, "content_type", img.ContentType, "size", len(img.Data))

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	done := make(chan extraction, 1)
	go func() {
		rec, err := m.extractor.Extract(ctx, img.Data, img.ContentType)
		done <- extraction{rec: rec, err: err}
	}()

	var res extraction
	select {
	case res = <-done:
	case <-ctx.Done():
		res = extraction{err: ctx.Err()}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.processing = false

	if res.err == nil && res.rec == nil {
		res.err = scanning.ErrNoData
	}
	if res.err == nil && res.rec.Variant() != m.store.Variant() {
		res.err = fmt.Errorf("extractor returned a %s, expected %s", res.rec.Variant(), m.store.Variant())
	}
	if res.err != nil {
		slog.Error("Extraction failed", "name", img.Name, "error", res.err)
		m.message = msgExtractionFailed
		if errors.Is(res.err, context.DeadlineExceeded) {
			m.message = msgExtractionTimeout
		}
		return m.snapshot(), fmt.Errorf("%w: %w", ErrExtractionFailed, res.err)
	}

	m.draft = res.rec
	m.validation = reconcile.Check(m.draft, m.tariff)
	m.phase = PhaseReviewing
	slog.Info("Draft ready for review",
		"variant", m.draft.Variant(),
		"consistent", m.validation.IsConsistent,
		"deviation_percent", m.validation.DeviationPercent.StringFixed(2),
	)
	return m.snapshot(), nil
}

// Capture takes one image from the device, releasing it on every path, and
// scans it. The machine stays busy while the device is open. A missing or
// failing device leaves the phase unchanged.
func (m *Machine) Capture(ctx context.Context, dev capture.Device) (State, error) {
	if s, err := m.begin("capture"); err != nil {
		return s, err
	}

	var (
		img capture.Image
		err error
	)
	if dev == nil {
		err = errors.New("no capture device configured")
	} else {
		img, err = capture.CaptureOne(ctx, dev)
	}
	if err != nil {
		slog.Warn("Capture device unavailable", "error", err)
		m.mu.Lock()
		defer m.mu.Unlock()
		m.processing = false
		m.message = msgCaptureFailed
		return m.snapshot(), fmt.Errorf("%w: %w", ErrCaptureUnavailable, err)
	}

	return m.extract(ctx, img)
}

// Edit changes one draft field and returns the recomputed check. A rejected
// value leaves the draft unchanged.
func (m *Machine) Edit(field, value string) (reconcile.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseReviewing || m.draft == nil {
		return reconcile.Result{}, fmt.Errorf("%w: no draft under review", ErrWrongPhase)
	}
	if err := m.draft.Set(field, value); err != nil {
		return m.validation, err
	}
	m.validation = reconcile.Check(m.draft, m.tariff)
	return m.validation, nil
}

// Validation returns the check of the draft under review
func (m *Machine) Validation() (reconcile.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseReviewing || m.draft == nil {
		return reconcile.Result{}, fmt.Errorf("%w: no draft under review", ErrWrongPhase)
	}
	return m.validation, nil
}

// Discard drops the draft without saving and returns to SCANNING
func (m *Machine) Discard() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseReviewing {
		return m.snapshot(), fmt.Errorf("%w: no draft under review", ErrWrongPhase)
	}
	m.draft = nil
	m.message = ""
	m.phase = PhaseScanning
	return m.snapshot(), nil
}

// Confirm commits the draft and moves to DASHBOARD. A draft missing an
// identifying field or a failed save keeps the draft in REVIEWING.
func (m *Machine) Confirm(ctx context.Context) (document.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseReviewing || m.draft == nil {
		return nil, fmt.Errorf("%w: no draft under review", ErrWrongPhase)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.draft.Validate(); err != nil {
		m.message = err.Error()
		return nil, err
	}

	rec, err := m.store.Commit(m.draft)
	if err != nil {
		m.message = msgPersistFailed
		return nil, err
	}

	slog.Info("Document committed", "id", rec.Meta().ID, "variant", rec.Variant())
	m.draft = nil
	m.message = ""
	m.phase = PhaseDashboard
	return rec, nil
}

// NewScan leaves the dashboard for a new capture
func (m *Machine) NewScan() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseDashboard {
		return m.snapshot(), fmt.Errorf("%w: not on the dashboard", ErrWrongPhase)
	}
	m.message = ""
	m.phase = PhaseScanning
	return m.snapshot(), nil
}

// ShowDashboard navigates from an idle scanner to the dashboard
func (m *Machine) ShowDashboard() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseScanning || m.processing {
		return m.snapshot(), fmt.Errorf("%w: cannot leave %s", ErrWrongPhase, m.phase)
	}
	m.message = ""
	m.phase = PhaseDashboard
	return m.snapshot(), nil
}

// Records returns the committed collection, newest first
func (m *Machine) Records() []document.Record {
	return m.store.Records()
}

// Tariff returns the configured tariff
func (m *Machine) Tariff() reconcile.Tariff {
	return m.tariff
}

// Clear empties the collection. A dashboard with nothing left to show falls
// back to SCANNING; a draft under review is kept.
func (m *Machine) Clear() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		return m.snapshot(), err
	}
	slog.Info("Collection cleared", "variant", m.store.Variant())
	if m.phase == PhaseDashboard {
		m.phase = PhaseScanning
	}
	return m.snapshot(), nil
}
