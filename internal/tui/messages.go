package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// taskMsg carries a posted task into Update, where it runs on the program's
// goroutine.
type taskMsg func()

// TaskQueue is a viewmodel.Poster feeding the Bubble Tea program. Tasks run
// inside Update in the order they were posted.
type TaskQueue struct {
	tasks chan func()
	done  chan struct{}
	once  sync.Once
}

// NewTaskQueue creates an open queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{
		tasks: make(chan func(), 16),
		done:  make(chan struct{}),
	}
}

// Post enqueues task. It blocks while the queue is full and drops the task,
// returning false, once the queue is closed.
func (q *TaskQueue) Post(task func()) bool {
	select {
	case <-q.done:
		return false
	default:
	}

	select {
	case q.tasks <- task:
		return true
	case <-q.done:
		return false
	}
}

// Wait returns a command that yields the next task as a message. Update
// issues it again after every task to keep the queue pumping.
func (q *TaskQueue) Wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case task := <-q.tasks:
			return taskMsg(task)
		case <-q.done:
			return nil
		}
	}
}

// Close stops delivery. Safe to call more than once.
func (q *TaskQueue) Close() {
	q.once.Do(func() { close(q.done) })
}

// Drain runs the tasks still queued on the calling goroutine. Call it after
// the program has exited so stopped results are released.
func (q *TaskQueue) Drain() {
	for {
		select {
		case task := <-q.tasks:
			task()
		default:
			return
		}
	}
}
