/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package audit is the append-only JSONL audit trail every tool call
// writes to, on both the success and error path. Appends are serialized
// through a single writer goroutine so concurrent tool calls never
// interleave partial JSON lines.
//
// The teacher's audit store is backed by modernc.org/sqlite (WAL mode);
// this spec mandates a flat audit.jsonl file, so the persistence layer is
// reimplemented against os.File append rather than SQL, keeping only the
// "durable log of what happened" concern the teacher's store serves.
package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Entry is one audit record. Input/Result/Message should already be
// redacted (internal/redact) and summarized/truncated by the caller before
// being passed to Append — the audit package itself does not re-redact.
type Entry struct {
	Time     time.Time      `json:"time"`
	TraceID  string         `json:"trace_id"`
	SpanID   string         `json:"span_id"`
	Tool     string         `json:"tool"`
	Action   string         `json:"action"`
	Input    any            `json:"input,omitempty"`
	Status   string         `json:"status"` // "ok" | "error"
	Result   any            `json:"result,omitempty"`
	Error    *EntryError    `json:"error,omitempty"`
	DurationMs int64        `json:"duration_ms"`
}

// EntryError is the redacted error summary recorded on a failed call.
type EntryError struct {
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type appendRequest struct {
	line []byte
	done chan error
}

// Log is the append-only audit writer.
type Log struct {
	path string
	reqs chan appendRequest
	done chan struct{}
}

// Open starts the audit log's writer goroutine, appending to path.
func Open(path string) (*Log, error) {
	l := &Log{
		path: path,
		reqs: make(chan appendRequest, 64),
		done: make(chan struct{}),
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	go l.run(f)
	return l, nil
}

func (l *Log) run(f *os.File) {
	defer f.Close()
	w := bufio.NewWriter(f)
	for req := range l.reqs {
		_, err := w.Write(req.line)
		if err == nil {
			err = w.Flush()
		}
		if err == nil {
			err = f.Sync()
		}
		req.done <- err
	}
	close(l.done)
}

// Append writes one entry as a single JSON line.
func (l *Log) Append(e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	req := appendRequest{line: line, done: make(chan error, 1)}
	l.reqs <- req
	return <-req.done
}

// Close stops the writer goroutine, waiting for the queue to drain.
func (l *Log) Close() {
	close(l.reqs)
	<-l.done
}

// Filter narrows a Tail query.
type Filter struct {
	Tool   string
	Status string
	Since  time.Time
}

// Tail returns the last n entries matching filter, in chronological order.
// It reads the whole file — audit.jsonl is append-only and bounded by
// operator log rotation, not by this package.
func Tail(path string, n int, filter Filter) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var matched []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		if filter.Tool != "" && e.Tool != filter.Tool {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && e.Time.Before(filter.Since) {
			continue
		}
		matched = append(matched, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if n > 0 && len(matched) > n {
		matched = matched[len(matched)-n:]
	}
	return matched, nil
}
