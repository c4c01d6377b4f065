package a2a

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrTaskNotFound is returned when a task ID is unknown to the agent.
var ErrTaskNotFound = errors.New("a2a: task not found")

// Compile-time interface check.
var _ Handler = (*Agent)(nil)

// ProcessFunc does the agent's work for one incoming message and returns the
// artifacts to attach to the completed task.
type ProcessFunc func(ctx context.Context, msg Message) ([]Artifact, error)

// Agent turns a ProcessFunc into a Handler. Every message/send creates a task
// that moves submitted -> working -> completed or failed; tasks are kept in
// memory for tasks/get.
type Agent struct {
	process ProcessFunc

	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewAgent creates an Agent around process.
func NewAgent(process ProcessFunc) *Agent {
	return &Agent{process: process, tasks: make(map[string]*Task)}
}

// HandleSendMessage runs the process function synchronously and returns the
// finished task. A processing failure is recorded on the task, not returned as
// a protocol error.
func (a *Agent) HandleSendMessage(ctx context.Context, req SendMessageRequest) (*Task, error) {
	task := &Task{
		ID:        NewTaskID(),
		ContextID: req.Message.ContextID,
		Status:    TaskStatus{State: TaskStateSubmitted, Timestamp: time.Now()},
		History:   []Message{req.Message},
	}
	a.mu.Lock()
	a.tasks[task.ID] = task
	a.mu.Unlock()

	a.update(task.ID, func(t *Task) {
		t.Status = TaskStatus{State: TaskStateWorking, Timestamp: time.Now()}
	})

	artifacts, err := a.process(ctx, req.Message)
	if err != nil {
		a.update(task.ID, func(t *Task) {
			msg := NewMessage(RoleAgent, err.Error())
			t.Status = TaskStatus{State: TaskStateFailed, Timestamp: time.Now(), Message: &msg}
		})
	} else {
		a.update(task.ID, func(t *Task) {
			t.Status = TaskStatus{State: TaskStateCompleted, Timestamp: time.Now()}
			t.Artifacts = artifacts
		})
	}
	return a.get(task.ID)
}

// HandleGetTask returns a copy of a stored task.
func (a *Agent) HandleGetTask(_ context.Context, req GetTaskRequest) (*Task, error) {
	return a.get(req.ID)
}

func (a *Agent) update(id string, fn func(*Task)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.tasks[id]; ok {
		fn(t)
	}
}

func (a *Agent) get(id string) (*Task, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	t, ok := a.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}
	cp := *t
	cp.Artifacts = append([]Artifact(nil), t.Artifacts...)
	cp.History = append([]Message(nil), t.History...)
	return &cp, nil
}
