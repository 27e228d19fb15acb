package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stevelan1995/sched-engine/pkg/api"
	"github.com/stevelan1995/sched-engine/pkg/cli/output"
	"github.com/stevelan1995/sched-engine/pkg/core/engine"
)

var (
	serverPort int
	serverHost string
)

// serverCmd server子命令
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "服务管理命令",
	Long:  `管理Sched Engine HTTP API服务。`,
}

// serverStartCmd 启动服务
var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "启动HTTP API服务",
	Long: `启动Sched Engine HTTP API服务。

示例：
  # 使用默认配置启动
  sched-engine server start

  # 指定端口与机群启动
  sched-engine server start --port 8080 --fleet ./fleet.yaml

  # 指定配置文件启动
  sched-engine server start --config ./configs/engine.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, cleanup, err := buildEngine(true)
		if err != nil {
			output.Error("创建Engine失败: %v", err)
			return err
		}
		defer cleanup()

		ctx := context.Background()
		if err := eng.Start(ctx); err != nil {
			output.Error("启动Engine失败: %v", err)
			return err
		}
		defer eng.Stop()

		// 周期调度（配置了cron_spec时）
		var cron *engine.CronScheduler
		if spec := engineCronSpec(eng); spec != nil {
			cron = engine.NewCronScheduler(eng)
			if err := cron.RegisterSource(spec); err != nil {
				output.Error("注册周期调度失败: %v", err)
				return err
			}
			cron.Start()
			defer cron.Stop()
		}

		config := api.ServerConfig{
			Host:         serverHost,
			Port:         serverPort,
			ReadTimeout:  api.DefaultServerConfig().ReadTimeout,
			WriteTimeout: api.DefaultServerConfig().WriteTimeout,
		}

		apiServer := api.NewAPIServer(eng, config, Version)

		go func() {
			if err := apiServer.Start(); err != nil {
				log.Printf("API服务器错误: %v", err)
			}
		}()

		output.Success("Sched Engine Server started on %s:%d", serverHost, serverPort)

		// 等待中断信号
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		output.Info("正在关闭服务...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), api.DefaultServerConfig().WriteTimeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			output.Error("关闭API服务器失败: %v", err)
		}

		output.Success("服务已停止")
		return nil
	},
}

// engineCronSpec 从引擎配置提取周期调度来源
func engineCronSpec(eng *engine.Engine) *engine.TraceSource {
	cfg := eng.Config().SchedEngine.Scheduler
	if cfg.CronSpec == "" {
		return nil
	}
	return &engine.TraceSource{
		Name:     "configured",
		Path:     cfg.TracePath,
		CronExpr: cfg.CronSpec,
	}
}

func init() {
	serverStartCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "监听端口")
	serverStartCmd.Flags().StringVarP(&serverHost, "host", "H", "0.0.0.0", "监听地址")
	serverStartCmd.Flags().StringVarP(&fleetPath, "fleet", "f", "", "机群配置YAML路径")

	serverCmd.AddCommand(serverStartCmd)
}
