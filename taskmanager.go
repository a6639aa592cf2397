package main

import (
	"context"
	"sync"

	"github.com/aidarkhanov/nanoid/v2"
)

type TaskManager struct {
	tasks     map[string]*Task
	order     []string
	next      int
	Context   context.Context
	WaitGroup sync.WaitGroup
}

type Task struct {
	id        string
	index     int
	ctx       context.Context
	cancelCtx context.CancelFunc
	handler   func(ctx context.Context, wg *sync.WaitGroup, rest ...interface{})
	args      []interface{}
}

type TaskId struct{}

// TaskIndex is the 1-based position of the task; proxy binding keys off it.
type TaskIndex struct{}

func NewTaskManager() *TaskManager {
	tm := new(TaskManager)
	tm.Context = context.Background()
	tm.tasks = make(map[string]*Task)
	return tm
}

func (tm *TaskManager) AddTask(handler func(ctx context.Context, wg *sync.WaitGroup, rest ...interface{}), args ...interface{}) *Task {
	id, _ := nanoid.New()

	tm.next = tm.next + 1

	ctx, cancelCtx := context.WithCancel(tm.Context)
	ctx = context.WithValue(ctx, TaskId{}, id)
	ctx = context.WithValue(ctx, TaskIndex{}, tm.next)

	tm.tasks[id] = &Task{id: id, index: tm.next, handler: handler, ctx: ctx, cancelCtx: cancelCtx, args: args}
	tm.order = append(tm.order, id)
	return tm.tasks[id]
}

func (tm *TaskManager) StartTask(id string) *Task {
	task := tm.tasks[id]

	tm.WaitGroup.Add(1)
	go task.handler(task.ctx, &tm.WaitGroup, task.args...)
	return task
}

func (tm *TaskManager) StopTask(id string) *Task {
	task := tm.tasks[id]

	task.cancelCtx()

	return task
}

func (tm *TaskManager) StartTasks() {
	for _, taskId := range tm.order {
		tm.StartTask(taskId)
	}
}

func (tm *TaskManager) StopTasks() {
	for _, taskId := range tm.order {
		tm.StopTask(taskId)
	}
}

func (tm *TaskManager) Wait() {
	tm.WaitGroup.Wait()
}
