package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sportclub/internal/config"
	"sportclub/internal/handler"
	"sportclub/internal/infrastructure/cache"
	"sportclub/internal/infrastructure/database"
	"sportclub/internal/infrastructure/lock"
	"sportclub/internal/infrastructure/mq"
	"sportclub/internal/job"
	"sportclub/internal/parteam"
	"sportclub/internal/repository"
	"sportclub/internal/service"
	"sportclub/internal/task"
	"sportclub/pkg/idgen"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	workerID := flag.Int64("worker", 1, "雪花算法机器ID")
	flag.Parse()

	cfg := config.LoadConfig(*configPath)
	idgen.Init(*workerID)

	db := database.InitMySQL(&cfg.MySQL)
	redisClient := cache.InitRedis(&cfg.Redis)
	producer := mq.InitKafka(&cfg.Kafka)
	defer producer.Close()

	// repository
	txm := repository.NewGormTxManager(db)
	activityRepo := repository.NewActivityRepository(db)
	activityMemberRepo := repository.NewActivityMemberRepository(db)
	matchRepo := repository.NewMatchRepository(db)
	matchMemberRepo := repository.NewMatchMemberRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	settlementRepo := repository.NewSettlementRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	// 派队网关
	gateway := parteam.NewClient(cfg.Parteam.APIURL,
		time.Duration(cfg.Parteam.TimeoutSeconds)*time.Second)

	// 任务队列
	queue := task.NewQueue(db)
	joinLocker := lock.NewJoinLocker(redisClient)

	// service
	activityService := service.NewActivityService(cfg, txm, joinLocker,
		activityRepo, activityMemberRepo, orderRepo, teamRepo, outboxRepo, gateway, queue)
	matchService := service.NewMatchService(cfg, txm, joinLocker,
		matchRepo, matchMemberRepo, orderRepo, teamRepo, settlementRepo, outboxRepo, gateway, queue)

	// 任务注册表：所有任务名在这里显式绑定处理函数
	registry := task.NewRegistry()
	refundPolicy := task.Policy{MaxRetry: cfg.Business.TaskMaxRetry, BackoffBase: 30 * time.Second}
	registry.Register(task.TaskActivityFinish, refundPolicy, activityService.HandleFinishTask)
	registry.Register(task.TaskActivityRefund, refundPolicy, activityService.HandleRefundTask)
	registry.Register(task.TaskMatchRefund, refundPolicy, matchService.HandleRefundTask)
	registry.Register(task.TaskMatchSettlement, refundPolicy, matchService.HandleSettlementTask)
	registry.Register(task.TaskPushSend, task.Policy{MaxRetry: 3, BackoffBase: 10 * time.Second},
		matchService.HandlePushTask)

	runner := task.NewRunner(queue, registry, cfg.Business.TaskWorkers, 3*time.Second)
	runner.Start()
	defer runner.Stop()

	// 周期扫描 + 事件外发
	scanner := job.NewScanner(cfg, activityService, matchService)
	if err := scanner.Start(); err != nil {
		log.Fatalf("启动周期扫描失败: %v", err)
	}
	defer scanner.Stop()

	sender := job.NewOutboxSender(cfg, outboxRepo, producer)
	sender.Start()
	defer sender.Stop()

	// HTTP
	callbackHandler := handler.NewCallbackHandler(cfg, activityService, matchService)
	h := handler.NewHandler(activityService, matchService, callbackHandler)
	router := handler.SetupRouter(h)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("HTTP 服务启动, port=%d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务异常退出: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("收到退出信号，开始优雅关闭")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("HTTP 服务关闭异常: %v", err)
	}
	log.Println("服务已退出")
}
