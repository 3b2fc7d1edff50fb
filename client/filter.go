package client

import "strings"

// TaskFilter narrows a task list. Empty fields match everything.
type TaskFilter struct {
	Search   string
	Project  string
	Status   string
	Priority string
	Assignee string
}

// FilterTasks keeps the tasks matching every set field. Search is a
// case-insensitive substring match on title or description.
func FilterTasks(tasks []Task, f TaskFilter) []Task {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if search != "" &&
			!strings.Contains(strings.ToLower(t.Title), search) &&
			!strings.Contains(strings.ToLower(t.Description), search) {
			continue
		}
		if f.Project != "" && t.Project != f.Project {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		if f.Assignee != "" && (t.AssignedTo == nil || t.AssignedTo.ID != f.Assignee) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// CountByStatus tallies tasks per status.
func CountByStatus(tasks []Task) map[string]int {
	counts := make(map[string]int)
	for _, t := range tasks {
		counts[t.Status]++
	}
	return counts
}
