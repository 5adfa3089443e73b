package informer

import (
	"fmt"
	"sync"
	"sync/atomic"

	"collectivewatch/internal/model"
	"collectivewatch/pkg/log"

	"go.uber.org/zap"
)

// Subscription 订阅句柄，Unsubscribe 可重复调用
type Subscription struct {
	id      uint64
	topic   model.Topic
	handler Handler
	active  atomic.Bool
	bus     *Bus
}

func (s *Subscription) Topic() model.Topic {
	return s.topic
}

func (s *Subscription) Active() bool {
	return s.active.Load()
}

func (s *Subscription) Unsubscribe() {
	s.bus.Unsubscribe(s)
}

// Bus 按 topic 分发变化事件的同步发布/订阅总线
// 投递前对订阅者列表做快照，回调中订阅或退订不会影响本次投递的迭代
type Bus struct {
	lock        sync.RWMutex
	nextID      uint64
	subscribers map[model.Topic][]*Subscription
	logger      *log.Logger
}

func NewBus(logger *log.Logger) *Bus {
	return &Bus{
		subscribers: make(map[model.Topic][]*Subscription),
		logger:      logger,
	}
}

func (b *Bus) Subscribe(topic model.Topic, handler Handler) (*Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}

	b.lock.Lock()
	defer b.lock.Unlock()
	b.nextID++
	sub := &Subscription{
		id:      b.nextID,
		topic:   topic,
		handler: handler,
		bus:     b,
	}
	sub.active.Store(true)
	b.subscribers[topic] = append(b.subscribers[topic], sub)
	return sub, nil
}

func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil || !sub.active.CompareAndSwap(true, false) {
		return
	}

	b.lock.Lock()
	defer b.lock.Unlock()
	subs := b.subscribers[sub.topic]
	for i, s := range subs {
		if s.id == sub.id {
			// 复制而不是原地修改，正在投递的快照不受影响
			next := make([]*Subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(b.subscribers, sub.topic)
			} else {
				b.subscribers[sub.topic] = next
			}
			return
		}
	}
}

// Publish 依次投递到每个 topic，按订阅顺序同步调用；返回被调用的回调数
func (b *Bus) Publish(ev model.ChangeEvent, topics ...model.Topic) int {
	delivered := 0
	for _, topic := range topics {
		b.lock.RLock()
		subs := b.subscribers[topic]
		b.lock.RUnlock()

		for _, sub := range subs {
			// 本次投递过程中已退订的不再回调
			if !sub.active.Load() {
				continue
			}
			b.deliver(sub, ev)
			delivered++
		}
	}
	return delivered
}

func (b *Bus) deliver(sub *Subscription, ev model.ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus handler panicked",
				zap.String("topic", string(sub.topic)),
				zap.String("type", string(ev.Type)),
				zap.String("id", ev.ID),
				zap.Error(fmt.Errorf("%v", r)))
		}
	}()
	sub.handler(ev)
}

func (b *Bus) SubscriberCount(topic model.Topic) int {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return len(b.subscribers[topic])
}
