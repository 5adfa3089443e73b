package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	v1 "collectivewatch/api/v1"
	"collectivewatch/internal/controller"
	"collectivewatch/internal/controller/informer"
	"collectivewatch/internal/model"
	"collectivewatch/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type EngineHandler struct {
	*Handler
	controller *controller.CollectiveController
	journal    repository.ChangeJournalRepository
	upgrader   websocket.Upgrader
	buffer     int
}

func NewEngineHandler(
	handler *Handler,
	conf *viper.Viper,
	ctrl *controller.CollectiveController,
	journal repository.ChangeJournalRepository,
) *EngineHandler {
	return &EngineHandler{
		Handler:    handler,
		controller: ctrl,
		journal:    journal,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有来源
			},
		},
		buffer: conf.GetInt("relay.websocket.buffer"),
	}
}

// GetState godoc
// @Summary 获取轮询引擎状态
// @Tags Engine模块
// @Accept json
// @Produce json
// @Success 200 {object} v1.EngineStateResponse
// @Router /api/v1/engine/state [get]
func (h *EngineHandler) GetState(ctx *gin.Context) {
	status := h.controller.Status()
	data := v1.EngineStateResponseData{
		State:       string(status.State),
		Cycle:       status.Cycle,
		LastVersion: status.LastVersion,
		LastError:   status.LastError,
		Order:       h.controller.Order(),
		Watching:    h.controller.Watching(),
	}
	if !status.LastCycleAt.IsZero() {
		data.LastCycleAt = &status.LastCycleAt
	}
	v1.HandleSuccess(ctx, data)
}

// Tick godoc
// @Summary 立即执行一轮轮询
// @Description 与正在进行的轮询重叠时本次请求被丢弃，diffed 为 false
// @Tags Engine模块
// @Accept json
// @Produce json
// @Success 200 {object} v1.Response
// @Router /api/v1/engine/tick [post]
func (h *EngineHandler) Tick(ctx *gin.Context) {
	diffed := h.controller.Tick(ctx.Request.Context())
	v1.HandleSuccess(ctx, v1.TickResponseData{
		Diffed: diffed,
		Cycle:  h.controller.Status().Cycle,
	})
}

// ListCache godoc
// @Summary 获取某类型已缓存的快照
// @Tags Engine模块
// @Accept json
// @Produce json
// @Param type path string true "资源类型，单数或复数，如 servers、summary"
// @Success 200 {object} v1.CacheListResponse
// @Router /api/v1/cache/{type} [get]
func (h *EngineHandler) ListCache(ctx *gin.Context) {
	t, ok := model.ParseResourceType(ctx.Param("type"))
	if !ok {
		v1.HandleError(ctx, http.StatusBadRequest, v1.ErrUnknownType, nil)
		return
	}

	var entries []*informer.CachedEntry
	if t.IsDigest() {
		if entry, ok := h.controller.Cached(t, ""); ok {
			entries = append(entries, entry)
		}
	} else {
		entries = h.controller.CachedList(t)
	}

	list := make([]v1.CacheEntry, 0, len(entries))
	for _, entry := range entries {
		list = append(list, toCacheEntry(entry))
	}
	v1.HandleSuccess(ctx, v1.CacheListResponseData{
		Type:  t,
		Total: len(list),
		List:  list,
	})
}

// GetCache godoc
// @Summary 获取单个资源已缓存的快照
// @Tags Engine模块
// @Accept json
// @Produce json
// @Param type path string true "资源类型"
// @Param id path string true "资源ID"
// @Success 200 {object} v1.CacheEntryResponse
// @Router /api/v1/cache/{type}/{id} [get]
func (h *EngineHandler) GetCache(ctx *gin.Context) {
	t, ok := model.ParseResourceType(ctx.Param("type"))
	if !ok || !t.IsResource() {
		v1.HandleError(ctx, http.StatusBadRequest, v1.ErrUnknownType, nil)
		return
	}
	entry, ok := h.controller.Cached(t, ctx.Param("id"))
	if !ok {
		v1.HandleError(ctx, http.StatusNotFound, v1.ErrNotCached, nil)
		return
	}
	v1.HandleSuccess(ctx, toCacheEntry(entry))
}

// GetMembers godoc
// @Summary 解析某个资源当前的成员
// @Description cluster/host/runtime 的成员为 server，server 的成员为应用，应用的成员为所在 server
// @Tags Engine模块
// @Accept json
// @Produce json
// @Param type path string true "父资源类型"
// @Param id path string true "父资源ID"
// @Success 200 {object} v1.MembersResponse
// @Router /api/v1/members/{type}/{id} [get]
func (h *EngineHandler) GetMembers(ctx *gin.Context) {
	coll, ok := h.watchMembers(ctx)
	if !ok {
		return
	}
	defer func() {
		_ = h.controller.Release(coll)
	}()

	parentType, parentID := coll.Parent()
	v1.HandleSuccess(ctx, v1.MembersResponseData{
		ParentType: parentType,
		ParentID:   parentID,
		MemberType: coll.MemberType(),
		Tallies:    coll.Tallies(),
		Members:    coll.Members(),
		Pending:    coll.Pending(),
	})
}

// WatchMembers godoc
// @Summary 通过 WebSocket 订阅某个资源成员的变化
// @Description 连接建立后先推送一条 snapshot 消息，之后推送 tally_changed、list_changed、resolve_failed、destroyed；客户端处理过慢导致积压时丢弃积压事件并重新推送 snapshot
// @Tags Engine模块
// @Param type path string true "父资源类型"
// @Param id path string true "父资源ID"
// @Router /api/v1/members/{type}/{id}/ws [get]
func (h *EngineHandler) WatchMembers(ctx *gin.Context) {
	coll, ok := h.watchMembers(ctx)
	if !ok {
		return
	}
	defer func() {
		_ = h.controller.Release(coll)
	}()

	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		h.logger.WithContext(ctx).Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	feed := newMemberFeed(h.buffer)
	removeListener := coll.AddListener(func(ev informer.CollectionEvent) {
		if !feed.push(ev) {
			h.logger.Warn("members watch too slow, resync with snapshot", zap.String("kind", string(ev.Kind)))
		}
	})
	defer removeListener()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeJSON(conn, snapshotMessage(coll)); err != nil {
		return
	}

	reqCtx := ctx.Request.Context()
	for {
		select {
		case <-reqCtx.Done():
			return
		case <-closed:
			return
		case <-feed.resync:
			// 溢出后丢弃积压的事件，改为推送当前完整状态
			feed.drain()
			if err := writeJSON(conn, snapshotMessage(coll)); err != nil {
				h.logger.WithContext(ctx).Debug("members watch write failed", zap.Error(err))
				return
			}
			if coll.IsDestroyed() {
				_ = writeJSON(conn, v1.MembersEventMessage{Kind: string(informer.Destroyed), Tallies: coll.Tallies(), MemberIDs: coll.MemberIDs()})
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "parent removed"))
				return
			}
		case ev := <-feed.events:
			if err := writeJSON(conn, toMembersEvent(ev, coll)); err != nil {
				h.logger.WithContext(ctx).Debug("members watch write failed", zap.Error(err))
				return
			}
			if ev.Kind == informer.Destroyed {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "parent removed"))
				return
			}
		}
	}
}

// WatchEvents godoc
// @Summary 通过 WebSocket 订阅通知总线上的变化事件
// @Description topic 可重复，格式为 "<type>" 或 "<type>/<id>"，不传时订阅所有集合 topic
// @Tags Engine模块
// @Param topic query []string false "订阅的 topic" collectionFormat(multi)
// @Router /api/v1/events/ws [get]
func (h *EngineHandler) WatchEvents(ctx *gin.Context) {
	topics, err := parseTopics(ctx.QueryArray("topic"))
	if err != nil {
		v1.HandleError(ctx, http.StatusBadRequest, v1.ErrInvalidTopic, nil)
		return
	}

	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		h.logger.WithContext(ctx).Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	relay := controller.NewWebsocketRelay(conn, h.buffer, h.logger)
	if err := relay.Serve(ctx.Request.Context(), h.controller.Bus(), topics); err != nil {
		h.logger.WithContext(ctx).Debug("event relay closed", zap.Error(err))
	}
}

// ListEvents godoc
// @Summary 查询变更日志
// @Description 需要开启 journal.enabled，按 cycle 升序返回
// @Tags Engine模块
// @Accept json
// @Produce json
// @Param type query string false "资源类型"
// @Param id query string false "资源ID，为空表示集合级事件"
// @Param since_cycle query int false "起始轮次（含）"
// @Param limit query int false "返回条数，默认100，最大1000"
// @Success 200 {object} v1.ListEventsResponse
// @Router /api/v1/events [get]
func (h *EngineHandler) ListEvents(ctx *gin.Context) {
	if h.journal == nil {
		v1.HandleError(ctx, http.StatusNotFound, v1.ErrJournalDisabled, nil)
		return
	}
	req := new(v1.ListEventsRequest)
	if err := ctx.ShouldBindQuery(req); err != nil {
		v1.HandleError(ctx, http.StatusBadRequest, v1.ErrBadRequest, nil)
		return
	}
	q := repository.JournalQuery{
		ResourceID: req.ID,
		SinceCycle: req.SinceCycle,
		Limit:      req.Limit,
	}
	if req.Type != "" {
		t, ok := model.ParseResourceType(req.Type)
		if !ok {
			v1.HandleError(ctx, http.StatusBadRequest, v1.ErrUnknownType, nil)
			return
		}
		q.Type = string(t)
	}

	records, err := h.journal.List(ctx, q)
	if err != nil {
		h.logger.WithContext(ctx).Error("journal.List error", zap.Error(err))
		v1.HandleError(ctx, http.StatusInternalServerError, v1.ErrInternalServerError, nil)
		return
	}
	list := make([]v1.JournalEvent, 0, len(records))
	for _, rec := range records {
		list = append(list, v1.JournalEvent{
			ID:         rec.Id,
			Cycle:      rec.Cycle,
			Type:       rec.Type,
			ResourceID: rec.ResourceID,
			Topic:      rec.Topic,
			Event:      json.RawMessage(rec.Payload),
			CreateTime: rec.CreateTime,
		})
	}
	v1.HandleSuccess(ctx, v1.ListEventsResponseData{
		Total: len(list),
		List:  list,
	})
}

// watchMembers 出错时已写入响应
func (h *EngineHandler) watchMembers(ctx *gin.Context) (*informer.DerivedCollection, bool) {
	t, ok := model.ParseResourceType(ctx.Param("type"))
	if !ok {
		v1.HandleError(ctx, http.StatusBadRequest, v1.ErrUnknownType, nil)
		return nil, false
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 30*time.Second)
	defer cancel()
	coll, err := h.controller.WatchMembers(reqCtx, t, ctx.Param("id"))
	switch {
	case err == nil:
		return coll, true
	case errors.Is(err, controller.ErrNoMembers):
		v1.HandleError(ctx, http.StatusBadRequest, v1.ErrNoMembers, nil)
	case errors.Is(err, informer.ErrNotFound):
		v1.HandleError(ctx, http.StatusNotFound, v1.ErrResourceNotFound, nil)
	default:
		h.logger.WithContext(ctx).Error("controller.WatchMembers error", zap.Error(err))
		v1.HandleError(ctx, http.StatusBadGateway, v1.ErrCollectiveUnavail, nil)
	}
	return nil, false
}

func parseTopics(raw []string) ([]model.Topic, error) {
	topics := make([]model.Topic, 0, len(raw))
	for _, s := range raw {
		typ, id, _ := strings.Cut(s, "/")
		t, ok := model.ParseResourceType(typ)
		if !ok {
			return nil, v1.ErrInvalidTopic
		}
		if id != "" && !t.IsResource() {
			return nil, v1.ErrInvalidTopic
		}
		topics = append(topics, model.ResourceTopic(t, id))
	}
	return topics, nil
}

func toCacheEntry(entry *informer.CachedEntry) v1.CacheEntry {
	out := v1.CacheEntry{
		Type:  entry.Type,
		ID:    entry.ID,
		Cycle: entry.LastUpdatedAtCycle,
	}
	if entry.Snapshot != nil {
		tallies := entry.Snapshot.Tallies
		out.Tallies = &tallies
		out.MemberIDs = entry.Snapshot.MemberIDs
	}
	if entry.Digest != nil {
		out.Counts = entry.Digest.Counts
		out.MemberIDs = entry.Digest.MemberIDs
	}
	if out.MemberIDs == nil {
		out.MemberIDs = []string{}
	}
	return out
}

// memberFeed 派生集合事件到 websocket 写循环的缓冲
// 缓冲满时不再排队，改为通知写循环重新推送 snapshot
type memberFeed struct {
	events chan informer.CollectionEvent
	resync chan struct{}
}

func newMemberFeed(buffer int) *memberFeed {
	if buffer <= 0 {
		buffer = 64
	}
	return &memberFeed{
		events: make(chan informer.CollectionEvent, buffer),
		resync: make(chan struct{}, 1),
	}
}

// push 缓冲已满时返回 false
func (f *memberFeed) push(ev informer.CollectionEvent) bool {
	select {
	case f.events <- ev:
		return true
	default:
	}
	select {
	case f.resync <- struct{}{}:
	default:
	}
	return false
}

func (f *memberFeed) drain() {
	for {
		select {
		case <-f.events:
		default:
			return
		}
	}
}

func snapshotMessage(coll *informer.DerivedCollection) v1.MembersEventMessage {
	return v1.MembersEventMessage{
		Kind:      "snapshot",
		Tallies:   coll.Tallies(),
		MemberIDs: coll.MemberIDs(),
		Added:     coll.Members(),
	}
}

func toMembersEvent(ev informer.CollectionEvent, coll *informer.DerivedCollection) v1.MembersEventMessage {
	msg := v1.MembersEventMessage{
		Kind:      string(ev.Kind),
		Tallies:   coll.Tallies(),
		MemberIDs: coll.MemberIDs(),
		Added:     ev.Added,
		Removed:   ev.Removed,
	}
	if ev.Kind == informer.TallyChanged {
		msg.Tallies = ev.NewTallies
	}
	if ev.NewList != nil {
		msg.MemberIDs = make([]string, 0, len(ev.NewList))
		for _, r := range ev.NewList {
			msg.MemberIDs = append(msg.MemberIDs, r.ID)
		}
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	return msg
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(v)
}
