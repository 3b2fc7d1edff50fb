package client

import (
	"math"
	"slices"
	"time"
)

const (
	maxUpcomingDeadlines = 5
	maxRecentProjects    = 4
)

// ProgressBuckets counts projects by progress: 0-25, 26-50, 51-75 and 76-100.
type ProgressBuckets [4]int

type Summary struct {
	TotalProjects     int
	ActiveProjects    int
	CompletedProjects int
	TotalTasks        int
	CompletedTasks    int
	OverdueTasks      int
	ThisWeekTasks     int
	AverageProgress   int
	CompletionRate    int
	Progress          ProgressBuckets
	UpcomingDeadlines []Task
	RecentProjects    []Project
}

// Summarize computes dashboard figures. Weeks run Sunday to Saturday in now's location.
func Summarize(projects []Project, tasks []Task, now time.Time) Summary {
	s := Summary{
		TotalProjects: len(projects),
		TotalTasks:    len(tasks),
	}

	totalProgress := 0
	for _, p := range projects {
		switch p.Status {
		case "active":
			s.ActiveProjects++
		case "completed":
			s.CompletedProjects++
		}
		totalProgress += p.Progress
		s.Progress[progressBucket(p.Progress)]++
	}
	if len(projects) > 0 {
		s.AverageProgress = int(math.Round(float64(totalProgress) / float64(len(projects))))
	}

	weekStart, weekEnd := week(now)
	for _, t := range tasks {
		completed := t.Status == "completed"
		if completed {
			s.CompletedTasks++
		} else if now.After(t.DueDate) {
			s.OverdueTasks++
		}
		if !t.DueDate.Before(weekStart) && t.DueDate.Before(weekEnd) {
			s.ThisWeekTasks++
		}
		if !completed && t.DueDate.After(now) {
			s.UpcomingDeadlines = append(s.UpcomingDeadlines, t)
		}
	}
	if len(tasks) > 0 {
		s.CompletionRate = int(math.Round(float64(s.CompletedTasks) * 100 / float64(len(tasks))))
	}

	slices.SortStableFunc(s.UpcomingDeadlines, func(a, b Task) int {
		return a.DueDate.Compare(b.DueDate)
	})
	if len(s.UpcomingDeadlines) > maxUpcomingDeadlines {
		s.UpcomingDeadlines = s.UpcomingDeadlines[:maxUpcomingDeadlines]
	}

	s.RecentProjects = slices.Clone(projects)
	slices.SortStableFunc(s.RecentProjects, func(a, b Project) int {
		return lastChange(b).Compare(lastChange(a))
	})
	if len(s.RecentProjects) > maxRecentProjects {
		s.RecentProjects = s.RecentProjects[:maxRecentProjects]
	}

	return s
}

func progressBucket(progress int) int {
	switch {
	case progress <= 25:
		return 0
	case progress <= 50:
		return 1
	case progress <= 75:
		return 2
	}
	return 3
}

func week(now time.Time) (time.Time, time.Time) {
	y, m, d := now.Date()
	start := time.Date(y, m, d-int(now.Weekday()), 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, 7)
}

func lastChange(p Project) time.Time {
	if p.UpdatedAt.IsZero() {
		return p.CreatedAt
	}
	return p.UpdatedAt
}
