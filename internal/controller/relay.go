package controller

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"collectivewatch/internal/controller/informer"
	"collectivewatch/internal/model"
	"collectivewatch/pkg/log"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RelayMessage 转发给外部的变化事件
type RelayMessage struct {
	Topic model.Topic       `json:"topic"`
	Event model.ChangeEvent `json:"event"`
}

// CollectionTopics 全部资源类型和摘要的集合 topic
func CollectionTopics() []model.Topic {
	topics := make([]model.Topic, 0, len(model.ResourceTypes)+len(model.DigestTypes))
	for _, t := range model.ResourceTypes {
		topics = append(topics, model.CollectionTopic(t))
	}
	for _, t := range model.DigestTypes {
		topics = append(topics, model.CollectionTopic(t))
	}
	return topics
}

// relay 总线回调只入队，由单独的 goroutine 发送，不阻塞差异计算
type relay struct {
	name   string
	logger *log.Logger
	queue  chan RelayMessage
	subs   []*informer.Subscription
}

func newRelay(name string, buffer int, logger *log.Logger) *relay {
	if buffer <= 0 {
		buffer = 64
	}
	return &relay{
		name:   name,
		logger: logger,
		queue:  make(chan RelayMessage, buffer),
	}
}

func (r *relay) attach(bus *informer.Bus, topics []model.Topic) error {
	for _, topic := range topics {
		topic := topic
		sub, err := bus.Subscribe(topic, func(ev model.ChangeEvent) {
			r.offer(RelayMessage{Topic: topic, Event: ev})
		})
		if err != nil {
			r.detach()
			return err
		}
		r.subs = append(r.subs, sub)
	}
	return nil
}

// offer 队列满时丢弃
func (r *relay) offer(msg RelayMessage) bool {
	select {
	case r.queue <- msg:
		return true
	default:
		r.logger.Warn("relay queue full, change event dropped",
			zap.String("relay", r.name),
			zap.String("topic", string(msg.Topic)))
		return false
	}
}

func (r *relay) detach() {
	for _, sub := range r.subs {
		sub.Unsubscribe()
	}
	r.subs = nil
}

// RedisRelay 把变化事件发布到 redis channel，供其他实例订阅
type RedisRelay struct {
	*relay
	rdb     *redis.Client
	channel string
}

func NewRedisRelay(rdb *redis.Client, channel string, buffer int, logger *log.Logger) *RedisRelay {
	return &RedisRelay{
		relay:   newRelay("redis", buffer, logger),
		rdb:     rdb,
		channel: channel,
	}
}

// Run 订阅所有集合 topic 并持续发布，ctx 结束后退订
func (r *RedisRelay) Run(ctx context.Context, bus *informer.Bus) error {
	if err := r.attach(bus, CollectionTopics()); err != nil {
		return err
	}
	defer r.detach()

	r.logger.Info("redis relay started", zap.String("channel", r.channel))
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-r.queue:
			r.publish(ctx, msg)
		}
	}
}

func (r *RedisRelay) publish(ctx context.Context, msg RelayMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal relay message failed", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.logger.Warn("publish change event to redis failed",
			zap.String("channel", r.channel),
			zap.String("topic", string(msg.Topic)),
			zap.Error(err))
	}
}

// WebsocketRelay 每个 websocket 连接一个，连接关闭时退订
type WebsocketRelay struct {
	*relay
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func NewWebsocketRelay(conn *websocket.Conn, buffer int, logger *log.Logger) *WebsocketRelay {
	return &WebsocketRelay{
		relay: newRelay("websocket", buffer, logger),
		conn:  conn,
	}
}

// Serve 阻塞直到连接关闭或 ctx 结束
func (r *WebsocketRelay) Serve(ctx context.Context, bus *informer.Bus, topics []model.Topic) error {
	if len(topics) == 0 {
		topics = CollectionTopics()
	}
	if err := r.attach(bus, topics); err != nil {
		return err
	}
	defer r.detach()

	// 读循环只用于感知客户端关闭
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := r.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			r.writeClose(websocket.CloseGoingAway, "server shutting down")
			return nil
		case <-closed:
			return nil
		case msg := <-r.queue:
			if err := r.write(msg); err != nil {
				r.logger.Debug("websocket write failed", zap.Error(err))
				return err
			}
		}
	}
}

func (r *WebsocketRelay) write(msg RelayMessage) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	_ = r.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return r.conn.WriteJSON(msg)
}

func (r *WebsocketRelay) writeClose(code int, text string) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	_ = r.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
}
