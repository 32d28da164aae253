package phase

import (
	"testing"
	"time"

	"github.com/a1ctf/gamesync/go/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestDerive(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	before := start.Add(-time.Minute)
	during := start.Add(time.Hour)
	after := end.Add(time.Minute)

	tests := []struct {
		name     string
		in       Inputs
		expected models.Phase
	}{
		{"missing game", Inputs{Found: false, Now: during}, models.PhaseNoSuchGame},
		{"not logged in", Inputs{Found: true, Status: models.ParticipationUnLogin, Now: during}, models.PhaseUnknownLogin},
		{"unregistered", Inputs{Found: true, Status: models.ParticipationUnRegistered, Now: during}, models.PhaseUnregistered},
		{"rejected", Inputs{Found: true, Status: models.ParticipationRejected, Now: during}, models.PhaseUnregistered},
		{"pending before start", Inputs{Found: true, Status: models.ParticipationPending, Start: start, End: end, Now: before}, models.PhasePending},
		{"pending after end stays pending", Inputs{Found: true, Status: models.ParticipationPending, Start: start, End: end, Now: after}, models.PhasePending},
		{"unregistered after end", Inputs{Found: true, Status: models.ParticipationUnRegistered, Start: start, End: end, Now: after}, models.PhaseUnregistered},
		{"approved before start", Inputs{Found: true, Status: models.ParticipationApproved, Start: start, End: end, Now: before}, models.PhaseWaitingStart},
		{"approved at start", Inputs{Found: true, Status: models.ParticipationApproved, Start: start, End: end, Now: start}, models.PhaseRunning},
		{"approved during", Inputs{Found: true, Status: models.ParticipationApproved, Start: start, End: end, Now: during}, models.PhaseRunning},
		{"approved at end", Inputs{Found: true, Status: models.ParticipationApproved, Start: start, End: end, Now: end}, models.PhaseEnded},
		{"participated after end", Inputs{Found: true, Status: models.ParticipationParticipated, Start: start, End: end, Now: after}, models.PhaseEnded},
		{"practice after end", Inputs{Found: true, Status: models.ParticipationApproved, Start: start, End: end, PracticeMode: true, Now: after}, models.PhasePracticeMode},
		{"practice during", Inputs{Found: true, Status: models.ParticipationApproved, Start: start, End: end, PracticeMode: true, Now: during}, models.PhaseRunning},
		{"banned during", Inputs{Found: true, Status: models.ParticipationBanned, Start: start, End: end, Now: during}, models.PhaseBanned},
		{"banned after end", Inputs{Found: true, Status: models.ParticipationBanned, Start: start, End: end, Now: after}, models.PhaseBanned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Derive(tt.in)
			assert.Equal(t, tt.expected, got)
			// same inputs, same answer
			assert.Equal(t, got, Derive(tt.in))
		})
	}
}

func TestComputeCountdown(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	info := &models.GameInfo{StartTime: start, EndTime: start.Add(2 * time.Hour)}

	cd := ComputeCountdown(models.PhaseWaitingStart, info, start.Add(-time.Minute))
	assert.Equal(t, CountdownStart, cd.Target)
	assert.Equal(t, time.Minute, cd.Remaining)

	cd = ComputeCountdown(models.PhaseRunning, info, start.Add(time.Hour))
	assert.Equal(t, CountdownEnd, cd.Target)
	assert.Equal(t, time.Hour, cd.Remaining)

	cd = ComputeCountdown(models.PhaseBanned, info, start.Add(90*time.Minute))
	assert.Equal(t, CountdownEnd, cd.Target)
	assert.Equal(t, 30*time.Minute, cd.Remaining)

	assert.Equal(t, Countdown{}, ComputeCountdown(models.PhaseEnded, info, start))
	assert.Equal(t, Countdown{}, ComputeCountdown(models.PhaseRunning, nil, start))
}
