// Package effects defines effect types as data structures representing I/O operations.
// This is the foundation of the Functional Core / Imperative Shell pattern.
// Effects are pure data - they describe what should happen, not how.
package effects

import "time"

// Effect is the base interface for all effects.
// Effects represent I/O operations as data that can be interpreted by the shell.
type Effect interface {
	// EffectType returns a string identifier for the effect type.
	EffectType() string
}

// LogEffect represents a logging operation.
type LogEffect struct {
	Level   string
	Message string
	Fields  map[string]any
}

func (e LogEffect) EffectType() string { return "log" }

// NotifyEffect represents a message to the operator channel.
type NotifyEffect struct {
	Message  string
	Severity string // "info", "warning", "critical"
}

func (e NotifyEffect) EffectType() string { return "notify" }

// MarkWarnedEffect records that a conditional pass entered its warning window
// and was announced on the given day.
type MarkWarnedEffect struct {
	RecordID string
	Day      string // YYYY-MM-DD
}

func (e MarkWarnedEffect) EffectType() string { return "mark_warned" }

// ExpirePassEffect moves a conditional pass to EXPIRED.
type ExpirePassEffect struct {
	RecordID string
	Category string
}

func (e ExpirePassEffect) EffectType() string { return "expire_pass" }

// ResolvePassEffect marks a conditional pass resolved. Status is the status the
// record keeps: RESOLVED, or EXPIRED when it had already expired.
type ResolvePassEffect struct {
	RecordID   string
	Status     string
	ResolvedAt time.Time
}

func (e ResolvePassEffect) EffectType() string { return "resolve_pass" }

// CreateBlockEffect blocks new admissions for a category.
type CreateBlockEffect struct {
	Category  string
	Reason    string
	BlockedAt time.Time
}

func (e CreateBlockEffect) EffectType() string { return "create_block" }

// RemoveBlockEffect lifts a category block.
type RemoveBlockEffect struct {
	Category string
}

func (e RemoveBlockEffect) EffectType() string { return "remove_block" }

// CompositeEffect holds multiple effects to be executed in sequence.
type CompositeEffect struct {
	Effects []Effect
}

func (e CompositeEffect) EffectType() string { return "composite" }

// NoEffect represents an operation that produces no side effects.
type NoEffect struct{}

func (e NoEffect) EffectType() string { return "none" }
