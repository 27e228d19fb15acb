// Package schedule 调度编排：驱动准入与放置的多轮遍历并产出决议记录
package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/stevelan1995/sched-engine/pkg/core/types"
)

// EventType 调度事件类型
type EventType string

const (
	EventScheduleStarted   EventType = "schedule.started"   // 一轮调度开始
	EventScheduleCompleted EventType = "schedule.completed" // 一轮调度完成
	EventTaskScheduled     EventType = "task.scheduled"     // 任务放置成功
	EventTaskRejected      EventType = "task.rejected"      // 任务被拒绝
)

// EventTopic 所有调度事件发布到的单一主题
const EventTopic = "schedule.events"

// Event 调度事件（对外导出）
type Event struct {
	ID        string          `json:"id"`         // 事件ID（UUID）
	Type      EventType       `json:"type"`       // 事件类型
	RunID     string          `json:"run_id"`     // 调度轮次ID
	TaskID    string          `json:"task_id"`    // 关联任务ID（轮次级事件为空）
	Timestamp time.Time       `json:"timestamp"`  // 事件时间
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// TaskEventPayload 任务级事件负载
type TaskEventPayload struct {
	Machine string             `json:"machine,omitempty"`
	Start   int64              `json:"start,omitempty"`
	Finish  int64              `json:"finish,omitempty"`
	Reason  types.RejectReason `json:"reason,omitempty"`
}

// RunEventPayload 轮次级事件负载
type RunEventPayload struct {
	TaskCount      int   `json:"task_count"`
	ScheduledCount int   `json:"scheduled_count,omitempty"`
	RejectedCount  int   `json:"rejected_count,omitempty"`
	Makespan       int64 `json:"makespan,omitempty"`
}

// NewEvent 创建调度事件
func NewEvent(eventType EventType, runID, taskID string, payload interface{}) *Event {
	e := &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		RunID:     runID,
		TaskID:    taskID,
		Timestamp: time.Now(),
	}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			e.Payload = data
		}
	}
	return e
}

// EventBus 进程内调度事件总线（对外导出），基于watermill gochannel
type EventBus struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter
}

// NewEventBus 创建事件总线（对外导出）
func NewEventBus() *EventBus {
	logger := watermill.NewStdLogger(false, false)
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            256,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		logger,
	)
	return &EventBus{pubsub: pubsub, logger: logger}
}

// Publish 发布事件（对外导出）
func (b *EventBus) Publish(event *Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_type", string(event.Type))
	msg.Metadata.Set("run_id", event.RunID)
	msg.Metadata.Set("task_id", event.TaskID)

	if err := b.pubsub.Publish(EventTopic, msg); err != nil {
		return fmt.Errorf("发布事件失败: %w", err)
	}
	return nil
}

// Subscribe 订阅事件流（对外导出）
// ctx取消后通道关闭；解码失败的消息被跳过
func (b *EventBus) Subscribe(ctx context.Context) (<-chan *Event, error) {
	messages, err := b.pubsub.Subscribe(ctx, EventTopic)
	if err != nil {
		return nil, fmt.Errorf("订阅事件失败: %w", err)
	}

	// 缓冲避免慢消费者反压到调度主循环的Publish
	events := make(chan *Event, 256)
	go func() {
		defer close(events)
		for msg := range messages {
			var event Event
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case events <- &event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

// Close 关闭事件总线（对外导出）
func (b *EventBus) Close() error {
	return b.pubsub.Close()
}
