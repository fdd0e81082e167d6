package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Majulish/cookie/pkg/core/model"
	"github.com/Majulish/cookie/pkg/core/services"
)

// parseJobs turns "Title=Slots" flags into job slot inputs
func parseJobs(specs []string) ([]services.JobSlotInput, error) {
	jobs := make([]services.JobSlotInput, 0, len(specs))
	for _, spec := range specs {
		title, count, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("job %q must look like Title=Slots", spec)
		}
		slots, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil {
			return nil, fmt.Errorf("job %q: slots must be a number: %w", spec, err)
		}
		jobs = append(jobs, services.JobSlotInput{Title: strings.TrimSpace(title), Slots: slots})
	}
	return jobs, nil
}

// parseTime accepts RFC 3339 timestamps; an empty value is the zero time
func parseTime(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be an RFC 3339 time like 2026-09-12T19:00:00Z: %w", name, err)
	}
	return t.UTC(), nil
}

func parseAssignmentStatus(value string) (model.AssignmentStatus, error) {
	status := model.AssignmentStatus(strings.ToUpper(value))
	if !status.IsValid() {
		return "", fmt.Errorf("unknown status %q (want PENDING, APPROVED, BACKUP or DONE)", value)
	}
	return status, nil
}

func parseEventStatus(value string) (model.EventStatus, error) {
	status := model.EventStatus(strings.ToLower(value))
	if !status.IsValid() {
		return "", fmt.Errorf("unknown event status %q (want planned, started or finished)", value)
	}
	return status, nil
}
