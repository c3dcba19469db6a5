/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

package state

import (
	"fmt"
	"time"

	"github.com/sentryfrogg/sentryfrogg-mcp/internal/toolerr"
)

// lockKey builds the reserved persistent-store key a policy advisory lock
// lives under (spec.md §9: "policy.lock.<project>.<target>").
func lockKey(project, target string) string {
	return fmt.Sprintf("policy.lock.%s.%s", project, target)
}

// lockRecord is the value stored at a lock key.
type lockRecord struct {
	Holder    string    `json:"holder"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AcquireLock takes the advisory lock for (project, target), identified by
// holder (the trace_id of the acquiring call), for ttl. Acquisition is
// strict: a live, unexpired lock held by a different holder is denied.
func (s *Store) AcquireLock(project, target, holder string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := lockKey(project, target)
	now := time.Now()
	if e, ok := s.persistent[key]; ok && !e.expired(now) {
		rec, ok := asLockRecord(e.Value)
		if ok && rec.Holder != holder && now.Before(rec.ExpiresAt) {
			return toolerr.Newf(toolerr.KindConflict, toolerr.CodePolicyLockHeld, "lock held by %s until %s", rec.Holder, rec.ExpiresAt.Format(time.RFC3339))
		}
	}

	exp := now.Add(ttl)
	s.persistent[key] = entry{
		Value:     lockRecord{Holder: holder, ExpiresAt: exp},
		ExpiresAt: &exp,
	}
	return s.persistLocked()
}

// ReleaseLock releases the lock for (project, target) if held by holder.
// Releasing an already-released or foreign-held lock is not an error: this
// is always called from a deferred cleanup path and must never itself fail
// the caller's operation.
func (s *Store) ReleaseLock(project, target, holder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := lockKey(project, target)
	e, ok := s.persistent[key]
	if !ok {
		return nil
	}
	if rec, ok := asLockRecord(e.Value); ok && rec.Holder != holder {
		return nil
	}
	delete(s.persistent, key)
	return s.persistLocked()
}

func asLockRecord(v any) (lockRecord, bool) {
	switch t := v.(type) {
	case lockRecord:
		return t, true
	case map[string]any:
		holder, _ := t["holder"].(string)
		expStr, _ := t["expires_at"].(string)
		exp, err := time.Parse(time.RFC3339, expStr)
		if err != nil {
			return lockRecord{}, false
		}
		return lockRecord{Holder: holder, ExpiresAt: exp}, true
	default:
		return lockRecord{}, false
	}
}
