package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/stevelan1995/sched-engine/pkg/api"
	"github.com/stevelan1995/sched-engine/pkg/config"
	"github.com/stevelan1995/sched-engine/pkg/core/engine"
	"github.com/stevelan1995/sched-engine/pkg/storage/factory"
)

// 服务端入口：配置 -> 存储 -> 引擎 -> HTTP API
func main() {
	configPath := flag.String("config", "./configs/engine.yaml", "引擎配置文件路径")
	fleetPath := flag.String("fleet", "./configs/fleet.yaml", "机群配置文件路径")
	flag.Parse()

	cfg, err := config.LoadEngineConfig(*configPath)
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}

	fleetCfg, err := config.LoadFleetConfig(*fleetPath)
	if err != nil {
		log.Fatal("加载机群配置失败:", err)
	}
	if err := config.ValidateFleetConfig(fleetCfg); err != nil {
		log.Fatal("机群配置非法:", err)
	}

	db := cfg.SchedEngine.Storage.Database
	repo, err := factory.NewScheduleRunRepository(db.Type, db.DSN, factory.Options{
		MaxOpenConns:    db.MaxOpenConns,
		MaxIdleConns:    db.MaxIdleConns,
		ConnMaxLifetime: db.ConnMaxLifetime,
		ConnMaxIdleTime: db.ConnMaxIdleTime,
	})
	if err != nil {
		log.Fatal("创建存储失败:", err)
	}
	defer repo.Close()

	eng, err := engine.NewEngine(cfg, fleetCfg.ToFleet(), repo)
	if err != nil {
		log.Fatal("创建引擎失败:", err)
	}

	if err := eng.Start(context.Background()); err != nil {
		log.Fatal("启动引擎失败:", err)
	}
	defer eng.Stop()

	serverCfg := api.DefaultServerConfig()
	serverCfg.Port = cfg.SchedEngine.HTTP.Port
	apiServer := api.NewAPIServer(eng, serverCfg, "dev")

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Fatal("API服务器错误:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.WriteTimeout)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("关闭API服务器失败: %v", err)
	}
}
