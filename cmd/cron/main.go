package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adtrack-service/internal/biz"
	"adtrack-service/internal/conf"
	"adtrack-service/internal/constants"

	"github.com/gaoyong06/go-pkg/logger"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
)

var (
	flagconf string
)

// CronApp Cron 应用结构
type CronApp struct {
	reconcileUsecase *biz.SpendReconcileUseCase
	syncUsecase      *biz.CountSyncUseCase
}

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()

	// 初始化配置
	c := config.New(
		config.WithSource(
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}

	// 初始化日志 (使用 go-pkg/logger)
	logConfig := &logger.Config{
		Level:         "info",
		Format:        "json",
		Output:        "stdout",
		FilePath:      "logs/adtrack-cron.log",
		MaxSize:       100,
		MaxAge:        30,
		MaxBackups:    10,
		Compress:      true,
		EnableConsole: true,
	}

	loggerInstance := logger.NewLogger(logConfig)

	// 添加基本字段
	loggerInstance = log.With(loggerInstance,
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.name", "adtrack-cron",
	)

	logHelper := log.NewHelper(loggerInstance)

	// 初始化应用
	app, cleanup, err := wireApp(&bc, loggerInstance)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// 创建定时任务调度器（支持秒级调度）
	cronScheduler := cron.New(cron.WithSeconds())

	// 前一天消耗对账兜底 - 每天 01:00 执行
	// 白天错过的快照（例如 MQ 堆积）在这里统一补对账
	_, err = cronScheduler.AddFunc("0 0 1 * * *", func() {
		date := time.Now().UTC().AddDate(0, 0, -1).Format(constants.TimeFormatDate)
		logHelper.Infof("[CRON] Starting daily reconcile sweep: date=%s", date)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		processed, failed, err := app.reconcileUsecase.ReconcileDay(ctx, date)
		if err != nil {
			logHelper.Errorf("[CRON] Daily reconcile sweep failed: date=%s, error=%v", date, err)
			return
		}
		logHelper.Infof("[CRON] Daily reconcile sweep completed: date=%s, processed=%d, failed=%d", date, processed, failed)
	})
	if err != nil {
		logHelper.Errorf("Failed to add reconcile sweep job: %v", err)
	}

	// 缓存计数全量重算 - 每天 02:00 执行
	// 同步路径漏掉的计数（进程崩溃、并发竞争）在这里收敛
	_, err = cronScheduler.AddFunc("0 0 2 * * *", func() {
		logHelper.Info("[CRON] Starting full counter resync...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		synced, err := app.syncUsecase.SyncAll(ctx)
		if err != nil {
			logHelper.Errorf("[CRON] Full counter resync failed: %v", err)
			return
		}
		logHelper.Infof("[CRON] Full counter resync completed: entities=%d", synced)
	})
	if err != nil {
		logHelper.Errorf("Failed to add counter resync job: %v", err)
	}

	// 启动定时任务
	cronScheduler.Start()
	logHelper.Info("========================================")
	logHelper.Info("Cron jobs started successfully")
	logHelper.Info("Scheduled jobs:")
	logHelper.Info("  - Daily reconcile sweep: Every day at 01:00")
	logHelper.Info("  - Full counter resync: Every day at 02:00")
	logHelper.Info("========================================")

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logHelper.Info("Shutting down gracefully...")

	// 停止定时任务
	ctx := cronScheduler.Stop()
	select {
	case <-ctx.Done():
		logHelper.Info("Cron jobs stopped gracefully")
	case <-time.After(5 * time.Second):
		logHelper.Info("Cron jobs forced to stop after timeout")
	}
}
