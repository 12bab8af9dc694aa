package consumer

import (
	"context"
	"log/slog"

	"github.com/wyfcoding/onlinemall/internal/order/domain"
	"github.com/wyfcoding/onlinemall/pkg/mq"
)

// NotificationHandler 消费订单事件并触发用户通知。
// 通知网关（短信/推送）是外部协作方，这里只做投递前的组装与记录。
type NotificationHandler struct {
	logger *slog.Logger
}

// NewNotificationHandler 创建通知处理器。
func NewNotificationHandler(logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{logger: logger}
}

// Handle 按主题分派订单事件。
func (h *NotificationHandler) Handle(ctx context.Context, msg *mq.Message) error {
	switch msg.Topic {
	case domain.TopicOrderCreated:
		var event domain.OrderCreatedEvent
		if err := msg.UnmarshalPayload(&event); err != nil {
			h.logger.ErrorContext(ctx, "failed to unmarshal order created event", "error", err)
			return err
		}
		h.logger.InfoContext(ctx, "notify user: order created",
			"order_no", event.OrderNo,
			"user_id", event.UserID,
			"total_amount", event.TotalAmount,
		)
		return nil
	case domain.TopicOrderPaid,
		domain.TopicOrderCancelled,
		domain.TopicOrderShipped,
		domain.TopicOrderCompleted:
		var event domain.OrderStatusChangedEvent
		if err := msg.UnmarshalPayload(&event); err != nil {
			h.logger.ErrorContext(ctx, "failed to unmarshal order status event", "error", err)
			return err
		}
		h.logger.InfoContext(ctx, "notify user: order status changed",
			"order_no", event.OrderNo,
			"user_id", event.UserID,
			"new_status", event.NewStatus,
		)
		return nil
	default:
		h.logger.WarnContext(ctx, "unknown order event topic", "topic", msg.Topic)
		return nil
	}
}

// Run 循环消费订单事件直到 ctx 取消。
func (h *NotificationHandler) Run(ctx context.Context, consumers []*mq.KafkaConsumer) {
	for _, c := range consumers {
		go func(c *mq.KafkaConsumer) {
			for {
				msg, err := c.ReadMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					h.logger.Error("failed to read order event", "error", err)
					continue
				}
				if err := h.Handle(ctx, msg); err != nil {
					h.logger.Error("failed to handle order event", "topic", msg.Topic, "error", err)
				}
			}
		}(c)
	}
}
