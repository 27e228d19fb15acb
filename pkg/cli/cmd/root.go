// Package cmd CLI子命令定义
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// 全局变量
	configPath string
	outputJSON bool
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "sched-engine",
	Short: "Sched Engine CLI - 集群任务调度命令行工具",
	Long: `Sched Engine CLI 是一个用于集群任务调度的命令行工具。

支持的功能：
  - 从CSV轨迹执行一轮调度并输出决议轨迹
  - 查询历史调度轮次
  - 启动HTTP API服务

使用示例：
  # 从轨迹执行调度
  sched-engine schedule run --trace ./dag.csv --fleet ./fleet.yaml

  # 列出历史轮次
  sched-engine schedule list

  # 查看轮次详情
  sched-engine schedule show <run-id>

  # 启动HTTP服务
  sched-engine server start --port 8080`,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "引擎配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&outputJSON, "json", "j", false, "使用JSON格式输出")

	// 添加子命令
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(versionCmd)
}
