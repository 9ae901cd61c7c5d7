package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCron_RegistersEnabledJobs(t *testing.T) {
	jobs := []scheduledJob{
		{Name: "ingest", Spec: "0 2 * * *", Run: func(context.Context) error { return nil }},
		{Name: "news", Spec: "", Run: func(context.Context) error { return nil }},
		{Name: "embed", Spec: "@every 1h", Run: func(context.Context) error { return nil }},
	}

	c, err := newCron(context.Background(), jobs)
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 2)
}

func TestNewCron_InvalidSpec(t *testing.T) {
	_, err := newCron(context.Background(), []scheduledJob{
		{Name: "briefing", Spec: "every morning", Run: func(context.Context) error { return nil }},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "briefing")
}

func TestScheduledJobs_FromConfig(t *testing.T) {
	env := newTestEnv(t, serviceClients{})
	env.cfg.Schedule.Ingest = "0 2 * * *"
	env.cfg.Schedule.Briefing = "0 6 * * *"

	jobs := env.scheduledJobs()
	require.Len(t, jobs, 5)

	c, err := newCron(context.Background(), jobs)
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 2)
}

func TestRunScheduled(t *testing.T) {
	calls := 0
	job := scheduledJob{Name: "classify", Run: func(context.Context) error {
		calls++
		return errors.New("boom")
	}}

	runScheduled(context.Background(), job)
	assert.Equal(t, 1, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runScheduled(ctx, job)
	assert.Equal(t, 1, calls)
}
