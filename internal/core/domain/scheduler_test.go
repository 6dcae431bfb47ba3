package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSchedulerConfig(t *testing.T) {
	config := DefaultSchedulerConfig()

	assert.True(t, config.Enabled)
	assert.Len(t, config.TaskConfigs, 2)

	snapCfg := config.GetTaskConfig(TaskIDSnapshotSave)
	assert.True(t, snapCfg.Enabled)
	assert.Equal(t, 5*time.Minute, snapCfg.Interval)

	retryCfg := config.GetTaskConfig(TaskIDRetryFailed)
	assert.False(t, retryCfg.Enabled)
	assert.Equal(t, 30*time.Minute, retryCfg.Interval)
}

func TestSchedulerConfig_GetTaskConfig_Unknown(t *testing.T) {
	config := DefaultSchedulerConfig()
	assert.Equal(t, TaskConfig{}, config.GetTaskConfig("unknown-task"))

	var empty SchedulerConfig
	assert.Equal(t, TaskConfig{}, empty.GetTaskConfig(TaskIDSnapshotSave))
}

func TestScheduledTask_Due(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		task ScheduledTask
		want bool
	}{
		{"never run", ScheduledTask{Enabled: true, Interval: time.Minute}, true},
		{"next run passed", ScheduledTask{Enabled: true, Interval: time.Minute, NextRun: now.Add(-time.Second)}, true},
		{"next run is now", ScheduledTask{Enabled: true, Interval: time.Minute, NextRun: now}, true},
		{"next run ahead", ScheduledTask{Enabled: true, Interval: time.Minute, NextRun: now.Add(time.Second)}, false},
		{"disabled", ScheduledTask{Interval: time.Minute}, false},
		{"zero interval", ScheduledTask{Enabled: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.task.Due(now))
		})
	}
}

func TestScheduledTask_NextRunAfter_BacksOff(t *testing.T) {
	ended := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	task := ScheduledTask{Interval: 10 * time.Minute}

	want := []time.Duration{10, 20, 40, 80, 80, 80}
	for failures, minutes := range want {
		task.Failures = failures
		assert.Equal(t, ended.Add(minutes*time.Minute), task.NextRunAfter(ended), "failures=%d", failures)
	}
}

func TestTaskResult_Duration(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	r := TaskResult{StartedAt: start, EndedAt: start.Add(1500 * time.Millisecond)}
	assert.Equal(t, 1500*time.Millisecond, r.Duration())

	r.EndedAt = start.Add(-time.Second)
	assert.Zero(t, r.Duration())
}
