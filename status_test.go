package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tonimelisma/mythx-go/internal/jobstore"
	"github.com/tonimelisma/mythx-go/internal/mythx"
)

type stubJobStore struct {
	jobs    map[string]*jobstore.Job
	getErr  error
	updated []string
}

func (s *stubJobStore) Get(_ context.Context, uuid string) (*jobstore.Job, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}

	job, ok := s.jobs[uuid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", jobstore.ErrNotFound, uuid)
	}

	return job, nil
}

func (s *stubJobStore) UpdateStatus(_ context.Context, uuid, status string, _ *int, _ string) error {
	s.updated = append(s.updated, uuid+"="+status)
	return nil
}

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestRefreshJobs_UpdatesChangedAndSkipsUnknown(t *testing.T) {
	store := &stubJobStore{jobs: map[string]*jobstore.Job{
		testJobID:  {UUID: testJobID, Status: "In progress"},
		otherJobID: {UUID: otherJobID, Status: "Finished"},
	}}

	var logs bytes.Buffer

	refreshJobs(context.Background(), bufferLogger(&logs), store, []mythx.Analysis{
		{UUID: testJobID, Status: mythx.StatusFinished},
		{UUID: otherJobID, Status: mythx.StatusFinished},
		{UUID: "submitted-elsewhere", Status: mythx.StatusQueued},
	})

	assert.Equal(t, []string{testJobID + "=Finished"}, store.updated)
	assert.Empty(t, logs.String())
}

func TestRefreshJobs_LogsStoreErrors(t *testing.T) {
	store := &stubJobStore{getErr: errors.New("database is locked")}

	var logs bytes.Buffer

	refreshJobs(context.Background(), bufferLogger(&logs), store, []mythx.Analysis{
		{UUID: testJobID, Status: mythx.StatusFinished},
	})

	assert.Empty(t, store.updated)
	assert.Contains(t, logs.String(), "could not read job history")
	assert.Contains(t, logs.String(), "database is locked")
}
