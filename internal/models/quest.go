package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/questbot/internal/constants"
)

type Quest struct {
	ID          int        `json:"id"`
	Text        string     `json:"text"`
	Status      string     `json:"status"`
	Phase       Phase      `json:"phase,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (q Quest) IsDone() bool {
	return q.Status == constants.QuestStatusDone
}

// ValidateQuestText trims the text and rejects it when nothing is left
func ValidateQuestText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("quest text cannot be empty")
	}
	return trimmed, nil
}

// NextQuestID returns the id for a new quest. Ids come from a per-user sequence:
// one past the larger of the recorded sequence and the highest live id, so an id
// is never handed out twice even after the newest quest is deleted.
func NextQuestID(quests []Quest, seq int) int {
	highest := seq
	for _, q := range quests {
		if q.ID > highest {
			highest = q.ID
		}
	}
	return highest + 1
}

// FilterQuests returns quests with the given status; an empty status returns all
func FilterQuests(quests []Quest, status string) []Quest {
	out := make([]Quest, 0, len(quests))
	for _, q := range quests {
		if status == "" || q.Status == status {
			out = append(out, q)
		}
	}
	return out
}

// ValidateQuestStatus accepts "", "todo" and "done"
func ValidateQuestStatus(status string) error {
	switch status {
	case "", constants.QuestStatusTodo, constants.QuestStatusDone:
		return nil
	default:
		return fmt.Errorf("invalid quest status %q (expected todo or done)", status)
	}
}
