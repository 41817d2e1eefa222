package history

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/itchyny/gojq"

	"github.com/borzov/photo-validation-service/pkg/schema"
)

// summaryQuery projects a verdict into the compact per-record summary that
// history queries filter on: a check-to-status map plus the slowest check.
const summaryQuery = `{
  statuses: (.check_results | map({key: .check, value: .status}) | from_entries),
  slowest: (.check_results | map(select(.duration > 0)) | max_by(.duration) | .check)
}`

const defaultQueueSize = 256

// Recorder persists verdicts asynchronously. Record never blocks the
// caller: verdicts go into a bounded queue and a background worker writes
// them out. When the queue is full the verdict is dropped with a warning;
// history is an audit trail, not part of the validation result.
type Recorder struct {
	store Store
	log   *slog.Logger
	query *gojq.Code

	queue chan *schema.Verdict
	done  chan struct{}
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewRecorder starts the background writer.
func NewRecorder(store Store, log *slog.Logger) (*Recorder, error) {
	parsed, err := gojq.Parse(summaryQuery)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "invalid summary query").WithCause(err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "summary query compilation failed").WithCause(err)
	}

	r := &Recorder{
		store: store,
		log:   log,
		query: code,
		queue: make(chan *schema.Verdict, defaultQueueSize),
		done:  make(chan struct{}),
	}
	r.wg.Add(1)
	go r.loop()
	return r, nil
}

// Record enqueues a verdict for persistence. Non-blocking.
func (r *Recorder) Record(ctx context.Context, verdict *schema.Verdict) {
	select {
	case r.queue <- verdict:
	default:
		r.log.WarnContext(ctx, "history queue full, dropping record",
			"request_id", verdict.RequestID)
	}
}

// Close stops accepting new verdicts, drains the queue, and waits for the
// writer to finish.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()

	r.wg.Wait()
	return nil
}

func (r *Recorder) loop() {
	defer r.wg.Done()
	for {
		select {
		case verdict := <-r.queue:
			r.persist(verdict)
		case <-r.done:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case verdict := <-r.queue:
					r.persist(verdict)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) persist(verdict *schema.Verdict) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec := &Record{
		RequestID:      verdict.RequestID,
		Status:         verdict.Status,
		ChecksPassed:   verdict.ChecksPassed,
		TotalChecks:    verdict.TotalChecks,
		Issues:         verdict.Issues,
		Summary:        r.summarize(verdict),
		ProcessingTime: verdict.ProcessingTime,
		CompletedAt:    verdict.CompletedAt,
	}
	if err := r.store.Insert(ctx, rec); err != nil {
		r.log.Error("failed to persist validation record",
			"request_id", verdict.RequestID, "error", err)
	}
}

// summarize runs the projection query over the verdict. A projection
// failure degrades to a nil summary, never a lost record.
func (r *Recorder) summarize(verdict *schema.Verdict) map[string]any {
	raw, err := json.Marshal(verdict)
	if err != nil {
		return nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}

	iter := r.query.Run(doc)
	v, ok := iter.Next()
	if !ok {
		return nil
	}
	if _, isErr := v.(error); isErr {
		return nil
	}
	summary, _ := v.(map[string]any)
	return summary
}
