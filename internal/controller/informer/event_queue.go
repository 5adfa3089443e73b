package informer

import (
	"sync"

	"collectivewatch/internal/model"
)

// eventQueue 单个观察者的事件 FIFO，由一个按需启动的 goroutine 顺序处理
// 总线投递只入队，不会被观察者的异步解析阻塞
type eventQueue struct {
	lock    sync.Mutex
	items   []model.ChangeEvent
	process func(ev model.ChangeEvent)
	running bool
	held    bool
	closed  bool
	wg      sync.WaitGroup
}

func newEventQueue(process func(ev model.ChangeEvent)) *eventQueue {
	return &eventQueue{
		items:   make([]model.ChangeEvent, 0),
		process: process,
	}
}

// newHeldEventQueue 入队的事件在 Resume 之前不处理
func newHeldEventQueue(process func(ev model.ChangeEvent)) *eventQueue {
	q := newEventQueue(process)
	q.held = true
	return q
}

// Resume 开始处理暂存的事件
func (q *eventQueue) Resume() {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.held = false
	q.start()
}

// start 调用方持有 lock
func (q *eventQueue) start() {
	if q.held || q.closed || q.running || len(q.items) == 0 {
		return
	}
	q.running = true
	q.wg.Add(1)
	go q.drain()
}

// Add 已关闭时返回 false
func (q *eventQueue) Add(ev model.ChangeEvent) bool {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, ev)
	q.start()
	return true
}

func (q *eventQueue) drain() {
	defer q.wg.Done()
	for {
		q.lock.Lock()
		if q.closed || len(q.items) == 0 {
			q.running = false
			q.lock.Unlock()
			return
		}
		ev := q.items[0]
		q.items = q.items[1:]
		q.lock.Unlock()

		q.process(ev)
	}
}

// Close 丢弃尚未处理的事件，正在处理的事件不受影响
func (q *eventQueue) Close() {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.closed = true
	q.items = nil
}

// Wait 等待处理 goroutine 退出
func (q *eventQueue) Wait() {
	q.wg.Wait()
}

func (q *eventQueue) HasSynced() bool {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.items) == 0 && !q.running
}
