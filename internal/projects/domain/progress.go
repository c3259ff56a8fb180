// Package domain holds the progress aggregation rules for projects.
package domain

import (
	"math"

	"interior_portal_backend/internal/workflow"
)

// WeightedTask is the slice of a task that matters for aggregation.
type WeightedTask struct {
	Weight float64
	Status workflow.TaskStatus
}

// Progress is the outcome of a recomputation.
type Progress struct {
	Percent int
	Status  workflow.ProjectStatus
}

// ComputeProgress derives a project's progress and status from its tasks.
//
// Progress is the finished share of total task weight, rounded to the
// nearest percent; zero total weight yields 0. At 100 the project is
// Completed; an Active project with at least one task becomes In Progress;
// any other status is kept.
func ComputeProgress(tasks []WeightedTask, current workflow.ProjectStatus) Progress {
	var completed, total float64
	for _, t := range tasks {
		total += t.Weight
		if t.Status.Finished() {
			completed += t.Weight
		}
	}

	percent := 0
	if total > 0 {
		percent = int(math.Round(100 * completed / total))
	}

	status := current
	switch {
	case percent == 100:
		status = workflow.ProjectCompleted
	case current == workflow.ProjectActive && len(tasks) > 0:
		status = workflow.ProjectInProgress
	}
	return Progress{Percent: percent, Status: status}
}
