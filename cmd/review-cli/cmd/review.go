package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/web3nomad/Rabby/internal/model"
	"github.com/web3nomad/Rabby/internal/service/approval"
	"github.com/web3nomad/Rabby/internal/service/chain"
	"github.com/web3nomad/Rabby/internal/service/gasselect"
	"github.com/web3nomad/Rabby/internal/service/nonce"
	"github.com/web3nomad/Rabby/internal/service/normalize"
	"github.com/web3nomad/Rabby/internal/service/openapi"
	"github.com/web3nomad/Rabby/internal/service/pending"
	"github.com/web3nomad/Rabby/internal/service/reporter"
	"github.com/web3nomad/Rabby/pkg/cache"
	"github.com/web3nomad/Rabby/pkg/config"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "评审一笔交易 (gas / nonce 推荐, 风险提示, 安全检查)",
	Long: `读取 dapp 发来的交易 JSON 文件, 跑一遍完整的评审流程并输出结果快照。
不连接 Redis/Postgres: pending 队列与 gas 选择只保存在内存中。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		from, _ := cmd.Flags().GetString("from")
		accountType, _ := cmd.Flags().GetString("type")
		origin, _ := cmd.Flags().GetString("origin")
		wait, _ := cmd.Flags().GetDuration("wait")

		// 1. 读取交易
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("读取交易文件失败: %w", err)
		}
		var raw normalize.RawTx
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("解析交易文件失败: %w", err)
		}
		if from != "" {
			raw["from"] = from
		}
		addr, _ := raw["from"].(string)
		if addr == "" {
			return fmt.Errorf("交易缺少 from, 请用 --from 指定")
		}

		// 2. 组装协作方
		cfg := config.Global
		chainClient := chain.NewClient(cfg.Chains)
		defer chainClient.Close()
		queue := pending.NewMemoryStore()
		api := openapi.NewClient(cfg.OpenAPI, cfg.Chains)

		svc := approval.NewService(approval.Deps{
			Chain:      chainClient,
			Nonce:      nonce.NewResolver(chainClient, queue, chainClient),
			Pending:    queue,
			Simulator:  api,
			History:    api,
			L1:         chainClient,
			Market:     api,
			Security:   api,
			Selections: gasselect.NewRepository(nil, cache.NewMemoryCache(time.Hour, 10*time.Minute), time.Hour),
			Reporter:   reporter.New(nil, ""),
		}, approval.OptionsFromConfig(cfg))

		// 3. 评审并等待安全检查结束
		ctx, cancel := context.WithTimeout(cmd.Context(), wait)
		defer cancel()
		s := svc.Open(ctx, approval.Request{
			Tx:      raw,
			Origin:  origin,
			Account: model.Account{Address: addr, Type: model.AccountType(accountType)},
		})
		defer s.Close()
		if err := s.WaitSecurity(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "安全检查未完成: %v\n", err)
		}
		return printJSON(s.Snapshot())
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.Flags().StringP("file", "f", "tx.json", "交易 JSON 文件")
	reviewCmd.Flags().String("from", "", "发送地址, 覆盖文件中的 from")
	reviewCmd.Flags().String("type", string(model.AccountMnemonic), "账户类型 (HD Key Tree, Simple Key Pair, Hardware, Watch Address, Gnosis)")
	reviewCmd.Flags().String("origin", "", "发起请求的 dapp origin")
	reviewCmd.Flags().Duration("wait", 30*time.Second, "等待评审与安全检查的最长时间")
}
