package examtimer

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// ErrUnknownQuestion is returned when selecting an option for a question
// that is not part of the draft.
var ErrUnknownQuestion = errors.New("question is not part of this exam")

// Draft is the in-progress answer sheet of one attempt. Snapshots always
// contain every question in presented order, so an autosave replaces the
// stored draft wholesale without losing blanks.
type Draft struct {
	mu       sync.Mutex
	order    []uuid.UUID
	selected map[uuid.UUID]*string
	seq      int64
}

// NewDraft creates an empty draft over the presented question order.
func NewDraft(questionIDs []uuid.UUID) *Draft {
	d := &Draft{
		order:    make([]uuid.UUID, len(questionIDs)),
		selected: make(map[uuid.UUID]*string, len(questionIDs)),
	}
	copy(d.order, questionIDs)
	for _, id := range questionIDs {
		d.selected[id] = nil
	}
	return d
}

// Restore loads a previously saved draft, e.g. after a reload. Answers for
// questions no longer presented are ignored. The sequence never goes back.
func (d *Draft) Restore(items []model.AnswerItem, seq int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, it := range items {
		if _, ok := d.selected[it.QuestionID]; !ok {
			continue
		}
		if it.SelectedOption == nil {
			d.selected[it.QuestionID] = nil
			continue
		}
		opt := *it.SelectedOption
		d.selected[it.QuestionID] = &opt
	}
	if seq > d.seq {
		d.seq = seq
	}
}

// Select records option as the answer to questionID.
func (d *Draft) Select(questionID uuid.UUID, option string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.selected[questionID]; !ok {
		return ErrUnknownQuestion
	}
	d.selected[questionID] = &option
	return nil
}

// Clear blanks the answer to questionID.
func (d *Draft) Clear(questionID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.selected[questionID]; ok {
		d.selected[questionID] = nil
	}
}

// Selected returns the current answer to questionID, if any.
func (d *Draft) Selected(questionID uuid.UUID) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	opt := d.selected[questionID]
	if opt == nil {
		return "", false
	}
	return *opt, true
}

// Answered returns how many questions have an answer.
func (d *Draft) Answered() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, opt := range d.selected {
		if opt != nil {
			n++
		}
	}
	return n
}

// Answers returns the full answer list in presented order.
func (d *Draft) Answers() []model.SubmittedAnswer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.answersLocked()
}

// Snapshot returns the full answer list with a fresh, strictly increasing
// sequence number for autosave ordering.
func (d *Draft) Snapshot() ([]model.SubmittedAnswer, int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	return d.answersLocked(), d.seq
}

func (d *Draft) answersLocked() []model.SubmittedAnswer {
	out := make([]model.SubmittedAnswer, len(d.order))
	for i, id := range d.order {
		out[i] = model.SubmittedAnswer{QuestionID: id}
		if opt := d.selected[id]; opt != nil {
			v := *opt
			out[i].SelectedOption = &v
		}
	}
	return out
}
