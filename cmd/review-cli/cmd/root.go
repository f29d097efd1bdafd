package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/web3nomad/Rabby/pkg/config"
	"github.com/web3nomad/Rabby/pkg/logger"
)

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "review-cli",
	Short: "交易评审命令行工具",
	Long: `对一笔待签名交易做 gas / nonce 推荐和风险评估, 或查询推荐 nonce、订阅评审事件。
配置与 review-server 相同 (config.yaml 或环境变量)。`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.Init()
		logger.Init(config.Global.App.Env)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
