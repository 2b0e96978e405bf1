package job

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"sportclub/internal/config"
	"sportclub/internal/service"
)

// Scanner 周期扫描
//
// 到期活动入队结算任务，临近开赛的赛事发送提醒推送。
// 扫描只负责发现和入队，真正的副作用都在任务执行器里。
type Scanner struct {
	cron     *cron.Cron
	activity *service.ActivityService
	match    *service.MatchService
	interval int
}

func NewScanner(cfg *config.Config, activity *service.ActivityService, match *service.MatchService) *Scanner {
	interval := cfg.Business.ScanIntervalSecs
	if interval <= 0 {
		interval = 60
	}
	return &Scanner{
		cron:     cron.New(),
		activity: activity,
		match:    match,
		interval: interval,
	}
}

func (s *Scanner) Start() error {
	spec := fmt.Sprintf("@every %ds", s.interval)

	_, err := s.cron.AddFunc(spec, func() {
		if err := s.activity.ScanFinishable(context.Background()); err != nil {
			log.Printf("[Scanner] 扫描到期活动失败: %v", err)
		}
	})
	if err != nil {
		return err
	}

	_, err = s.cron.AddFunc(spec, func() {
		if err := s.match.ScanMatchStart(context.Background()); err != nil {
			log.Printf("[Scanner] 扫描开赛提醒失败: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("[Scanner] 周期扫描已启动, interval=%ds", s.interval)
	return nil
}

func (s *Scanner) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("[Scanner] 周期扫描已停止")
}
