package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

type sidekiqJob struct {
	Class string            `json:"class"`
	Args  []json.RawMessage `json:"args"`
	Queue string            `json:"queue"`
}

var errSkipJob = errors.New("job is not for this worker")

// parseJob decodes a Sidekiq payload and returns the test run it refers to.
// Jobs for other worker classes yield errSkipJob.
func parseJob(payload string) (sidekiqJob, int64, error) {
	var job sidekiqJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return job, 0, fmt.Errorf("invalid job json: %w", err)
	}
	if job.Class != "RubyWorker" && job.Class != "GoWorker" {
		return job, 0, fmt.Errorf("%w: class %s", errSkipJob, job.Class)
	}
	if len(job.Args) == 0 {
		return job, 0, errors.New("job has no arguments")
	}
	id, err := parseInt64(job.Args[0])
	if err != nil {
		return job, 0, fmt.Errorf("test_run_id argument: %w", err)
	}
	if id <= 0 {
		return job, 0, fmt.Errorf("test_run_id must be positive, got %d", id)
	}
	return job, id, nil
}

// parseInt64 extracts an int64 from a Sidekiq payload argument that may be encoded
// either as a JSON number or as a quoted string.
func parseInt64(raw json.RawMessage) (int64, error) {
	var asNumber int64
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return asNumber, nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "" {
			return 0, errors.New("empty string")
		}
		return strconv.ParseInt(asString, 10, 64)
	}

	return 0, fmt.Errorf("unsupported arg: %s", string(raw))
}
