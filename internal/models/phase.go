package models

import (
	"fmt"
	"strings"
)

// Phase is the user-reported energy state for the day
type Phase string

const (
	PhaseActive Phase = "active"
	PhaseLow    Phase = "low"
	PhaseFog    Phase = "fog"
)

// Phases lists every valid phase in display order
var Phases = []Phase{PhaseActive, PhaseLow, PhaseFog}

var phaseLabels = map[Phase]string{
	PhaseActive: "⚡ Актива",
	PhaseLow:    "🌀 Спад",
	PhaseFog:    "😵 Подвис",
}

var phaseTips = map[Phase]string{
	PhaseActive: "Выбери 1 задачу из backlog и сделай её до конца 💪",
	PhaseLow:    "Напиши 1 мысль или идею, просто чтобы сохранить контакт с собой 🧘",
	PhaseFog:    "Открой Obsidian, запиши 1 строчку: 'Что я сейчас чувствую?'",
}

// ParsePhase converts user input into a Phase. Matching is case-insensitive.
func ParsePhase(s string) (Phase, error) {
	p := Phase(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("unknown phase %q (expected one of: active, low, fog)", s)
	}
	return p, nil
}

func (p Phase) IsValid() bool {
	_, ok := phaseLabels[p]
	return ok
}

// Label returns the chat label for the phase, or the upper-cased raw value for unknown phases
func (p Phase) Label() string {
	if label, ok := phaseLabels[p]; ok {
		return label
	}
	if p == "" {
		return "—"
	}
	return strings.ToUpper(string(p))
}

// Tip returns the suggested quest for the phase
func (p Phase) Tip() string {
	if tip, ok := phaseTips[p]; ok {
		return tip
	}
	return "Неопознанная фаза. Ты вне времени и пространства 👽"
}

// FitsTip reports whether quest text shares at least one word with the phase tip.
// Used to warn, never to reject.
func (p Phase) FitsTip(text string) bool {
	tip, ok := phaseTips[p]
	if !ok {
		return true
	}
	lower := strings.ToLower(text)
	for _, word := range strings.Fields(strings.ToLower(tip)) {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
