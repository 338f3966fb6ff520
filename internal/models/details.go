package models

import "time"

type ActivityType string

const (
	ActivityCreated         ActivityType = "created"
	ActivityStatusChange    ActivityType = "status_change"
	ActivityNoteAdded       ActivityType = "note_added"
	ActivityTaskAdded       ActivityType = "task_added"
	ActivityInfoUpdate      ActivityType = "info_update"
	ActivityPartnerAssigned ActivityType = "partner_assigned"
)

type Activity struct {
	ID          string       `bson:"id" json:"id"`
	Type        ActivityType `bson:"type" json:"type"`
	Description string       `bson:"description" json:"description"`
	Date        time.Time    `bson:"date" json:"date"`
	User        string       `bson:"user" json:"user"`
}

type Note struct {
	ID      string    `bson:"id" json:"id"`
	Content string    `bson:"content" json:"content"`
	Date    time.Time `bson:"date" json:"date"`
	Author  string    `bson:"author" json:"author"`
}

type Task struct {
	ID        string    `bson:"id" json:"id"`
	Content   string    `bson:"content" json:"content"`
	DueDate   time.Time `bson:"due_date" json:"dueDate"`
	Completed bool      `bson:"completed" json:"completed"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

// WizardDetails is what the multi-step project wizard collects.
type WizardDetails struct {
	Goals             []string `bson:"goals,omitempty" json:"goals,omitempty"`
	Features          []string `bson:"features,omitempty" json:"features,omitempty"`
	DesignStyle       string   `bson:"design_style,omitempty" json:"designStyle,omitempty"`
	Deadline          string   `bson:"deadline,omitempty" json:"deadline,omitempty"`
	AdditionalDetails string   `bson:"additional_details,omitempty" json:"additional_details,omitempty"`
}

// ManualDetails carries the free-text context of contact-form and admin-created leads.
type ManualDetails struct {
	Context string `bson:"context,omitempty" json:"context,omitempty"`
}

// LeadDetails holds at most one of Wizard or Manual, chosen by the lead's source.
// Keys nobody models yet live in Extra.
type LeadDetails struct {
	Wizard  *WizardDetails `bson:"wizard,omitempty" json:"wizard,omitempty"`
	Manual  *ManualDetails `bson:"manual,omitempty" json:"manual,omitempty"`
	Notes   []Note         `bson:"notes,omitempty" json:"notes,omitempty"`
	Tasks   []Task         `bson:"tasks,omitempty" json:"tasks,omitempty"`
	History []Activity     `bson:"history,omitempty" json:"history,omitempty"`
	Extra   map[string]any `bson:"extra,omitempty" json:"extra,omitempty"`
}

func (d LeadDetails) Clone() LeadDetails {
	out := LeadDetails{
		Notes:   cloneSlice(d.Notes),
		Tasks:   cloneSlice(d.Tasks),
		History: cloneSlice(d.History),
		Extra:   cloneMap(d.Extra),
	}
	if d.Wizard != nil {
		w := *d.Wizard
		w.Goals = cloneSlice(d.Wizard.Goals)
		w.Features = cloneSlice(d.Wizard.Features)
		out.Wizard = &w
	}
	if d.Manual != nil {
		m := *d.Manual
		out.Manual = &m
	}
	return out
}

// OpenTasks counts tasks not yet completed.
func (d LeadDetails) OpenTasks() int {
	n := 0
	for _, t := range d.Tasks {
		if !t.Completed {
			n++
		}
	}
	return n
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
