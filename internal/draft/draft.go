// Package draft builds a new exam through the three-step authoring wizard
// (basic info, sections, questions) with per-step validation gates and
// best-effort snapshotting for crash recovery.
package draft

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nihongolab/jlptmock/internal/model"
)

// ValidationError is a user-correctable authoring problem. The refused
// operation leaves the draft unchanged.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

var (
	ErrTitleRequired    = ValidationError("exam title is required")
	ErrNoSections       = ValidationError("add at least one section")
	ErrEmptySection     = ValidationError("every section needs at least one question")
	ErrLastSection      = ValidationError("an exam must keep at least one section")
	ErrTooFewOptions    = ValidationError("a question needs at least two options")
	ErrBadCorrectOption = ValidationError("the correct option must be one of the question's options")

	// ErrNoSuchSection and ErrNoSuchQuestion indicate an index that does not
	// exist in the draft; these are caller bugs, not user input problems.
	ErrNoSuchSection  = errors.New("no such section in draft")
	ErrNoSuchQuestion = errors.New("no such question in section")
)

// Step identifies a wizard step.
type Step int

const (
	StepBasicInfo Step = 1
	StepSections  Step = 2
	StepQuestions Step = 3
)

// BasicInfo is the first wizard step.
type BasicInfo struct {
	Title       string      `json:"title"`
	Level       model.Level `json:"level"`
	Description string      `json:"description"`
}

// Snapshot is the serialized form of a draft, written to the recoverable
// store. It round-trips the draft losslessly.
type Snapshot struct {
	ID        string          `json:"id"`
	Step      Step            `json:"step"`
	BasicInfo BasicInfo       `json:"basic_info"`
	Sections  []model.Section `json:"sections"`
	Seq       int             `json:"seq"`
	LastSaved time.Time       `json:"last_saved"`
}

// Snapshotter persists draft snapshots keyed by draft ID. Implementations
// are best-effort; the draft never depends on a snapshot succeeding.
type Snapshotter interface {
	SaveDraft(id string, data []byte) error
	LoadDraft(id string) ([]byte, bool, error)
	ClearDraft(id string) error
}

const defaultDebounce = 5 * time.Second

// Draft is an exam under construction. Each draft is addressed by an
// explicit ID so several drafts can exist side by side.
type Draft struct {
	id string

	mu        sync.Mutex
	step      Step
	basic     BasicInfo
	sections  []model.Section
	seq       int
	lastSaved time.Time

	snap     Snapshotter
	debounce time.Duration
	now      func() time.Time

	edits     chan struct{}
	stop      chan struct{}
	closeOnce sync.Once
}

// Option configures a Draft.
type Option func(*Draft)

// WithSnapshotter enables auto-snapshotting to the given store.
func WithSnapshotter(s Snapshotter) Option {
	return func(d *Draft) { d.snap = s }
}

// WithDebounce overrides the auto-snapshot quiet period.
func WithDebounce(dur time.Duration) Option {
	return func(d *Draft) { d.debounce = dur }
}

// WithClock injects a time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(d *Draft) { d.now = now }
}

// New starts an empty draft at the basic-info step.
func New(id string, opts ...Option) *Draft {
	d := &Draft{
		id:       id,
		step:     StepBasicInfo,
		basic:    BasicInfo{Level: model.LevelN3},
		debounce: defaultDebounce,
		now:      time.Now,
		edits:    make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.snap != nil {
		go d.autosaveLoop()
	}
	return d
}

// Resume restores a draft from a previously loaded snapshot.
func Resume(snap Snapshot, opts ...Option) *Draft {
	d := New(snap.ID, opts...)
	d.mu.Lock()
	d.step = snap.Step
	d.basic = snap.BasicInfo
	d.sections = snap.Sections
	d.seq = snap.Seq
	d.lastSaved = snap.LastSaved
	d.mu.Unlock()
	return d
}

// Load fetches a snapshot for the given draft ID from the store.
func Load(s Snapshotter, id string) (Snapshot, bool, error) {
	data, ok, err := s.LoadDraft(id)
	if err != nil || !ok {
		return Snapshot{}, false, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode draft snapshot: %w", err)
	}
	return snap, true, nil
}

// ID returns the draft handle.
func (d *Draft) ID() string { return d.id }

// Step returns the current wizard step.
func (d *Draft) Step() Step {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.step
}

// BasicInfo returns the first-step fields.
func (d *Draft) BasicInfo() BasicInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.basic
}

// Sections returns a copy of the draft's sections.
func (d *Draft) Sections() []model.Section {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]model.Section, len(d.sections))
	copy(out, d.sections)
	return out
}

// LastSaved returns the time of the most recent successful snapshot.
func (d *Draft) LastSaved() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSaved
}

// SetBasicInfo updates the step-one fields. An invalid level is left as-is.
func (d *Draft) SetBasicInfo(info BasicInfo) {
	d.mu.Lock()
	if !info.Level.Valid() {
		info.Level = d.basic.Level
	}
	d.basic = info
	d.mu.Unlock()
	d.touch()
}

// NextStep advances the wizard, enforcing the per-step gate: step one needs a
// title, step two at least one section.
func (d *Draft) NextStep() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.step {
	case StepBasicInfo:
		if d.basic.Title == "" {
			return ErrTitleRequired
		}
		d.step = StepSections
	case StepSections:
		if len(d.sections) == 0 {
			return ErrNoSections
		}
		d.step = StepQuestions
	}
	d.touchLocked()
	return nil
}

// PrevStep moves back one step; backwards navigation is never gated. At the
// first step this is a no-op.
func (d *Draft) PrevStep() {
	d.mu.Lock()
	if d.step > StepBasicInfo {
		d.step--
	}
	d.mu.Unlock()
	d.touch()
}

// AddSection appends a new section and returns its index. Duration is
// clamped to the 5–180 minute range.
func (d *Draft) AddSection(title string, durationMinutes int) int {
	d.mu.Lock()
	if title == "" {
		title = fmt.Sprintf("Section %d", len(d.sections)+1)
	}
	d.seq++
	d.sections = append(d.sections, model.Section{
		ID:              fmt.Sprintf("%s-sec-%d", d.id, d.seq),
		Title:           title,
		DurationMinutes: clampDuration(durationMinutes),
	})
	idx := len(d.sections) - 1
	d.mu.Unlock()
	d.touch()
	return idx
}

// UpdateSection changes a section's title and duration.
func (d *Draft) UpdateSection(index int, title string, durationMinutes int) error {
	d.mu.Lock()
	if index < 0 || index >= len(d.sections) {
		d.mu.Unlock()
		return ErrNoSuchSection
	}
	if title != "" {
		d.sections[index].Title = title
	}
	d.sections[index].DurationMinutes = clampDuration(durationMinutes)
	d.mu.Unlock()
	d.touch()
	return nil
}

// DeleteSection removes a section. The last remaining section cannot be
// deleted.
func (d *Draft) DeleteSection(index int) error {
	d.mu.Lock()
	if index < 0 || index >= len(d.sections) {
		d.mu.Unlock()
		return ErrNoSuchSection
	}
	if len(d.sections) == 1 {
		d.mu.Unlock()
		return ErrLastSection
	}
	d.sections = append(d.sections[:index], d.sections[index+1:]...)
	d.mu.Unlock()
	d.touch()
	return nil
}

// AddQuestion appends a blank vocabulary question with four empty options to
// a section and returns its index within the section.
func (d *Draft) AddQuestion(sectionIndex int) (int, error) {
	d.mu.Lock()
	if sectionIndex < 0 || sectionIndex >= len(d.sections) {
		d.mu.Unlock()
		return 0, ErrNoSuchSection
	}
	sec := &d.sections[sectionIndex]
	d.seq++
	qid := fmt.Sprintf("%s-q-%d", d.id, d.seq)
	opts := make([]model.Option, 4)
	for i := range opts {
		opts[i] = model.Option{ID: fmt.Sprintf("%s-opt-%d", qid, i+1)}
	}
	sec.Questions = append(sec.Questions, model.Question{
		ID:              qid,
		Type:            model.QuestionVocabulary,
		Number:          len(sec.Questions) + 1,
		Options:         opts,
		CorrectOptionID: opts[0].ID,
	})
	idx := len(sec.Questions) - 1
	d.mu.Unlock()
	d.touch()
	return idx, nil
}

// UpdateQuestion replaces a question's content. The question keeps its ID and
// display number; the update is refused if it has fewer than two options or
// its correct-option reference is dangling.
func (d *Draft) UpdateQuestion(sectionIndex, questionIndex int, q model.Question) error {
	d.mu.Lock()
	if sectionIndex < 0 || sectionIndex >= len(d.sections) {
		d.mu.Unlock()
		return ErrNoSuchSection
	}
	sec := &d.sections[sectionIndex]
	if questionIndex < 0 || questionIndex >= len(sec.Questions) {
		d.mu.Unlock()
		return ErrNoSuchQuestion
	}
	if len(q.Options) < 2 {
		d.mu.Unlock()
		return ErrTooFewOptions
	}
	valid := false
	for _, opt := range q.Options {
		if opt.ID == q.CorrectOptionID {
			valid = true
			break
		}
	}
	if !valid {
		d.mu.Unlock()
		return ErrBadCorrectOption
	}
	q.ID = sec.Questions[questionIndex].ID
	q.Number = sec.Questions[questionIndex].Number
	sec.Questions[questionIndex] = q
	d.mu.Unlock()
	d.touch()
	return nil
}

// DeleteQuestion removes a question and renumbers the remainder so display
// numbers stay contiguous.
func (d *Draft) DeleteQuestion(sectionIndex, questionIndex int) error {
	d.mu.Lock()
	if sectionIndex < 0 || sectionIndex >= len(d.sections) {
		d.mu.Unlock()
		return ErrNoSuchSection
	}
	sec := &d.sections[sectionIndex]
	if questionIndex < 0 || questionIndex >= len(sec.Questions) {
		d.mu.Unlock()
		return ErrNoSuchQuestion
	}
	sec.Questions = append(sec.Questions[:questionIndex], sec.Questions[questionIndex+1:]...)
	for i := range sec.Questions {
		sec.Questions[i].Number = i + 1
	}
	d.mu.Unlock()
	d.touch()
	return nil
}

// Finalize validates the whole draft and emits the finished exam with
// aggregated totals, clearing the recoverable snapshot. With publish false
// the exam keeps draft status and can be reopened later.
func (d *Draft) Finalize(publish bool) (model.Exam, error) {
	d.mu.Lock()
	if d.basic.Title == "" {
		d.mu.Unlock()
		return model.Exam{}, ErrTitleRequired
	}
	if len(d.sections) == 0 {
		d.mu.Unlock()
		return model.Exam{}, ErrNoSections
	}
	for _, sec := range d.sections {
		if len(sec.Questions) == 0 {
			d.mu.Unlock()
			return model.Exam{}, ErrEmptySection
		}
	}

	totalQuestions := 0
	totalDuration := 0
	sections := make([]model.Section, len(d.sections))
	copy(sections, d.sections)
	for _, sec := range sections {
		totalQuestions += len(sec.Questions)
		totalDuration += sec.DurationMinutes
	}

	now := d.now()
	status := model.ExamDraft
	if publish {
		status = model.ExamPublished
	}
	exam := model.Exam{
		ID:             fmt.Sprintf("exam-%d", now.UnixMilli()),
		Title:          d.basic.Title,
		Level:          d.basic.Level,
		Description:    d.basic.Description,
		TotalQuestions: totalQuestions,
		TotalDuration:  totalDuration,
		Sections:       sections,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	d.mu.Unlock()

	if d.snap != nil {
		if err := d.snap.ClearDraft(d.id); err != nil {
			slog.Warn("failed to clear draft snapshot", "draft", d.id, "error", err)
		}
	}
	d.Close()
	return exam, nil
}

// Save writes a snapshot immediately, for the explicit "save draft" action.
func (d *Draft) Save() error {
	if d.snap == nil {
		return nil
	}
	data, err := d.marshalSnapshot()
	if err != nil {
		return err
	}
	if err := d.snap.SaveDraft(d.id, data); err != nil {
		return fmt.Errorf("save draft snapshot: %w", err)
	}
	d.mu.Lock()
	d.lastSaved = d.now()
	d.mu.Unlock()
	return nil
}

// Close stops the auto-snapshot goroutine. Safe to call more than once.
func (d *Draft) Close() {
	d.closeOnce.Do(func() { close(d.stop) })
}

func (d *Draft) marshalSnapshot() ([]byte, error) {
	d.mu.Lock()
	snap := Snapshot{
		ID:        d.id,
		Step:      d.step,
		BasicInfo: d.basic,
		Sections:  make([]model.Section, len(d.sections)),
		Seq:       d.seq,
		LastSaved: d.now(),
	}
	copy(snap.Sections, d.sections)
	d.mu.Unlock()
	return json.Marshal(snap)
}

// touch signals the autosave loop that the draft changed.
func (d *Draft) touch() {
	select {
	case d.edits <- struct{}{}:
	default:
	}
}

func (d *Draft) touchLocked() {
	// The edits channel is buffered, so signaling under the lock is fine.
	select {
	case d.edits <- struct{}{}:
	default:
	}
}

// autosaveLoop snapshots the draft after the debounce period of inactivity
// following an edit. Failures are logged and swallowed; editing never blocks
// on snapshot I/O.
func (d *Draft) autosaveLoop() {
	for {
		select {
		case <-d.stop:
			return
		case <-d.edits:
		}

		t := time.NewTimer(d.debounce)
	quiet:
		for {
			select {
			case <-d.stop:
				t.Stop()
				return
			case <-d.edits:
				if !t.Stop() {
					<-t.C
				}
				t.Reset(d.debounce)
			case <-t.C:
				if err := d.Save(); err != nil {
					slog.Warn("draft auto-save failed", "draft", d.id, "error", err)
				}
				break quiet
			}
		}
	}
}

func clampDuration(minutes int) int {
	const minDuration, maxDuration = 5, 180
	if minutes < minDuration {
		if minutes == 0 {
			return 30
		}
		return minDuration
	}
	if minutes > maxDuration {
		return maxDuration
	}
	return minutes
}
