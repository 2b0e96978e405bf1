package task

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"sportclub/internal/apperr"
	"sportclub/internal/model"
)

// store 任务存取，Queue 的最小接口，测试时可换内存实现
type store interface {
	fetchDue(now time.Time, limit int) ([]*model.TaskMessage, error)
	claim(id int64) error
	markSucceeded(id int64) error
	markRetry(id int64, lastError string, nextRunAt time.Time) error
	markFailed(id int64, lastError string) error
}

// Runner 任务执行器
//
// 定时拉取到期任务分发给 worker 池，临时失败按指数退避重试，
// 永久失败或重试耗尽后标记 FAILED 并留下错误供排查。
type Runner struct {
	store    store
	registry *Registry
	workers  int
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewRunner(queue *Queue, registry *Registry, workers int, interval time.Duration) *Runner {
	if workers <= 0 {
		workers = 4
	}
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Runner{
		store:    queue,
		registry: registry,
		workers:  workers,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (r *Runner) Start() {
	go r.loop()
	log.Printf("[TaskRunner] 任务执行器已启动, workers=%d", r.workers)
}

func (r *Runner) Stop() {
	close(r.stopCh)
	<-r.doneCh
	log.Println("[TaskRunner] 任务执行器已停止")
}

func (r *Runner) loop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.dispatch()
		}
	}
}

func (r *Runner) dispatch() {
	tasks, err := r.store.fetchDue(time.Now(), r.workers*4)
	if err != nil {
		log.Printf("[TaskRunner] 拉取任务失败: %v", err)
		return
	}
	if len(tasks) == 0 {
		return
	}

	sem := make(chan struct{}, r.workers)
	for _, t := range tasks {
		sem <- struct{}{}
		go func(t *model.TaskMessage) {
			defer func() { <-sem }()
			r.execute(t)
		}(t)
	}
	for i := 0; i < r.workers; i++ {
		sem <- struct{}{}
	}
}

func (r *Runner) execute(t *model.TaskMessage) {
	if err := r.store.claim(t.ID); err != nil {
		if !errors.Is(err, errClaimLost) {
			log.Printf("[TaskRunner] 认领任务失败: id=%d, err=%v", t.ID, err)
		}
		return
	}

	reg, ok := r.registry.lookup(t.Name)
	if !ok {
		log.Printf("[TaskRunner] 未注册的任务: name=%s, id=%d", t.Name, t.ID)
		r.finish(t.ID, fmt.Sprintf("未注册的任务: %s", t.Name))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	err := reg.handler(ctx, t.Payload)
	if err == nil {
		if e := r.store.markSucceeded(t.ID); e != nil {
			log.Printf("[TaskRunner] 标记任务成功失败: id=%d, err=%v", t.ID, e)
		}
		return
	}

	maxRetry := t.MaxRetry
	if maxRetry <= 0 {
		maxRetry = reg.policy.MaxRetry
	}

	if apperr.IsRetryable(err) && t.RetryCount < maxRetry {
		next := time.Now().Add(Backoff(reg.policy.BackoffBase, t.RetryCount))
		log.Printf("[TaskRunner] 任务重试: name=%s, id=%d, retry=%d/%d, next=%s, err=%v",
			t.Name, t.ID, t.RetryCount+1, maxRetry, next.Format(time.RFC3339), err)
		if e := r.store.markRetry(t.ID, err.Error(), next); e != nil {
			log.Printf("[TaskRunner] 标记任务重试失败: id=%d, err=%v", t.ID, e)
		}
		return
	}

	log.Printf("[TaskRunner] 任务失败: name=%s, id=%d, retry=%d, err=%v", t.Name, t.ID, t.RetryCount, err)
	r.finish(t.ID, err.Error())
}

func (r *Runner) finish(id int64, lastError string) {
	if e := r.store.markFailed(id, lastError); e != nil {
		log.Printf("[TaskRunner] 标记任务失败出错: id=%d, err=%v", id, e)
	}
}

// Backoff 第 retry 次重试的退避时长，base * 2^retry，上限 10 分钟
func Backoff(base time.Duration, retry int) time.Duration {
	if base <= 0 {
		base = 30 * time.Second
	}
	d := base
	for i := 0; i < retry; i++ {
		d *= 2
		if d >= 10*time.Minute {
			return 10 * time.Minute
		}
	}
	return d
}
