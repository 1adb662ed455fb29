package jobqueue

import "github.com/linegrid/linegrid/pkg/store/document"

func fromDoc(doc map[string]any) (*Job, error) {
	j := &Job{}

	if v, ok := document.AsString(doc["id"]); ok {
		j.ID = v
	}
	if v, ok := document.AsString(doc["file_id"]); ok {
		j.FileID = v
	}
	if v, ok := document.AsString(doc["state"]); ok {
		j.State = State(v)
	}
	if v, ok := document.AsInt(doc["attempts"]); ok {
		j.Attempts = v
	}
	if v, ok := document.AsInt(doc["lines_processed"]); ok {
		j.Progress.LinesProcessed = v
	}
	if v, ok := document.AsInt(doc["records_inserted"]); ok {
		j.Progress.RecordsInserted = v
	}
	if v, ok := document.AsInt(doc["records_failed"]); ok {
		j.Progress.RecordsFailed = v
	}
	if v, ok := doc["error_tail"].([]any); ok {
		tail := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := document.AsString(e); ok {
				tail = append(tail, s)
			}
		}
		j.ErrorTail = tail
	}
	if v, ok := document.AsString(doc["worker_id"]); ok {
		j.WorkerID = &v
	}

	if v, ok := document.AsTime(doc["queued_at"]); ok {
		j.QueuedAt = v
	}
	if v, ok := document.AsTime(doc["started_at"]); ok {
		j.StartedAt = &v
	}
	if v, ok := document.AsTime(doc["completed_at"]); ok {
		j.CompletedAt = &v
	}
	if v, ok := document.AsTime(doc["lock_until"]); ok {
		j.LockUntil = &v
	}

	return j, nil
}
