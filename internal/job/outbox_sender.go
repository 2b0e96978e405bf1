package job

import (
	"log"
	"time"

	"sportclub/internal/config"
	"sportclub/internal/infrastructure/mq"
	"sportclub/internal/repository"
)

// OutboxSender 领域事件发送
//
// 轮询外发表把待发送事件投递到 Kafka，投递成功才标记 SENT，
// 失败累计重试次数，超过上限标记 FAILED 等待人工介入。
type OutboxSender struct {
	outbox   *repository.OutboxRepository
	producer *mq.Producer
	maxRetry int
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewOutboxSender(cfg *config.Config, outbox *repository.OutboxRepository, producer *mq.Producer) *OutboxSender {
	maxRetry := cfg.Business.MaxRetryCount
	if maxRetry <= 0 {
		maxRetry = 5
	}
	return &OutboxSender{
		outbox:   outbox,
		producer: producer,
		maxRetry: maxRetry,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (s *OutboxSender) Start() {
	go s.loop()
	log.Println("[OutboxSender] 事件发送已启动")
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
	<-s.doneCh
	log.Println("[OutboxSender] 事件发送已停止")
}

func (s *OutboxSender) loop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sendPending()
		}
	}
}

func (s *OutboxSender) sendPending() {
	messages, err := s.outbox.FetchPending(100)
	if err != nil {
		log.Printf("[OutboxSender] 拉取待发送消息失败: %v", err)
		return
	}

	for _, msg := range messages {
		if err := s.producer.SendMessage(msg.Topic, msg.MessageKey, msg.Payload); err != nil {
			log.Printf("[OutboxSender] 发送消息失败: id=%d, topic=%s, err=%v", msg.ID, msg.Topic, err)
			if msg.RetryCount+1 >= s.maxRetry {
				if e := s.outbox.MarkAsFailed(msg.ID); e != nil {
					log.Printf("[OutboxSender] 标记消息失败出错: id=%d, err=%v", msg.ID, e)
				}
			} else if e := s.outbox.IncrRetry(msg.ID); e != nil {
				log.Printf("[OutboxSender] 累计重试次数失败: id=%d, err=%v", msg.ID, e)
			}
			continue
		}
		if err := s.outbox.MarkAsSent(msg.ID); err != nil {
			log.Printf("[OutboxSender] 标记消息已发送失败: id=%d, err=%v", msg.ID, err)
		}
	}
}
