package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/web3nomad/Rabby/internal/service/chain"
	"github.com/web3nomad/Rabby/internal/service/nonce"
	"github.com/web3nomad/Rabby/internal/service/pending"
	"github.com/web3nomad/Rabby/pkg/config"
	"github.com/web3nomad/Rabby/pkg/database"
)

var nonceCmd = &cobra.Command{
	Use:   "nonce",
	Short: "查询推荐 nonce (链上 nonce 与本地 pending 队列取大)",
	RunE: func(cmd *cobra.Command, args []string) error {
		chainID, _ := cmd.Flags().GetInt64("chain")
		addr, _ := cmd.Flags().GetString("address")
		safe, _ := cmd.Flags().GetBool("safe")

		cfg := config.Global
		chainClient := chain.NewClient(cfg.Chains)
		defer chainClient.Close()

		var local nonce.LocalNonceSource = pending.NewMemoryStore()
		// Redis 可用时读取 review-server 写入的 pending 队列
		if rdb, err := database.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err == nil {
			defer rdb.Close()
			local = pending.NewRedisStore(rdb, cfg.Pending.KeyPrefix)
		} else {
			fmt.Printf("Redis 不可用, 忽略本地 pending 队列: %v\n", err)
		}

		resolver := nonce.NewResolver(chainClient, local, chainClient)
		if safe {
			n, err := resolver.SafeNonce(cmd.Context(), chainID, addr)
			if err != nil {
				return err
			}
			fmt.Printf("Safe nonce: %d\n", n)
			return nil
		}
		n, err := resolver.Recommend(cmd.Context(), chainID, addr)
		if err != nil {
			return err
		}
		fmt.Printf("Recommended nonce: %d\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(nonceCmd)
	nonceCmd.Flags().Int64("chain", 1, "链 ID")
	nonceCmd.Flags().String("address", "", "账户地址")
	nonceCmd.Flags().Bool("safe", false, "读取 Safe 合约的 nonce")
	_ = nonceCmd.MarkFlagRequired("address")
}
