// Package research fires rapid-research tasks against the remote service and
// collects their results after a fixed wait.
package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maiiam/maiiam/internal/remote"
)

const goalFormat = "Find practical, evidence-based information about %s for mental health and wellness"

// placeholderResult is stored when retrieval after the wait fails, so the
// caller always has something to render for the topic.
const placeholderResult = "Research results are still loading. Please try again in a moment."

const defaultWait = 3 * time.Second

// Topics are the fixed suggestions surfaced on the learning surface.
var Topics = []string{"Mindfulness Techniques", "Stress Management", "Sleep Hygiene"}

// Remote is the subset of the remote client the runner needs.
type Remote interface {
	RapidResearch(ctx context.Context, objectName, goal string) error
	ReturnData(ctx context.Context, objectName, returnType string) (string, error)
}

// Tracker records created server-side object names for later cleanup.
type Tracker interface {
	Track(name string)
}

// Sink receives the eventual result text for a topic. A repeat request for
// the same topic overwrites the earlier result.
type Sink interface {
	SetResearchResult(topic, text string)
}

// Task is the handle for one in-flight research request.
type Task struct {
	Topic      string
	ObjectName string
	done       chan struct{}
}

// Done is closed once a result (or the loading placeholder) has been stored
// for the topic.
func (t *Task) Done() <-chan struct{} { return t.done }

// Runner starts research tasks and retrieves their results after a fixed
// wait. The flat wait stands in for real completion polling: the remote task
// has no push channel, so the runner assumes the result is ready once the
// delay elapses. Known limitation, kept until the service grows a completion
// signal.
type Runner struct {
	remote  Remote
	objects Tracker
	sink    Sink
	wait    time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewRunner creates a Runner. If wait <= 0, the default (3s) is used.
func NewRunner(svc Remote, objects Tracker, sink Sink, wait time.Duration) *Runner {
	if wait <= 0 {
		wait = defaultWait
	}
	return &Runner{
		remote:  svc,
		objects: objects,
		sink:    sink,
		wait:    wait,
		logger:  slog.Default(),
		now:     time.Now,
	}
}

// Research starts one research task. The returned Task completes after the
// fixed wait, once the result or the placeholder has been stored for the
// topic. Tasks are not cancellable once started.
func (r *Runner) Research(ctx context.Context, topic string) (*Task, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("empty research topic")
	}

	objectName := fmt.Sprintf("research_%s_%d", slug(topic), r.now().UnixMilli())
	r.objects.Track(objectName)

	if err := r.remote.RapidResearch(ctx, objectName, fmt.Sprintf(goalFormat, topic)); err != nil {
		return nil, fmt.Errorf("starting research for %q: %w", topic, err)
	}

	task := &Task{Topic: topic, ObjectName: objectName, done: make(chan struct{})}
	go r.collect(task)
	return task, nil
}

// collect is the single scheduled continuation: wait out the delay, then
// store the retrieved result, or the placeholder when retrieval fails.
func (r *Runner) collect(task *Task) {
	defer close(task.done)
	time.Sleep(r.wait)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	value, err := r.remote.ReturnData(ctx, task.ObjectName, remote.ReturnPrettyText)
	if err != nil {
		r.logger.Warn("research result not ready", "topic", task.Topic, "object", task.ObjectName, "error", err)
		r.sink.SetResearchResult(task.Topic, placeholderResult)
		return
	}
	r.sink.SetResearchResult(task.Topic, value)
}

func slug(topic string) string {
	return strings.Join(strings.Fields(topic), "_")
}
