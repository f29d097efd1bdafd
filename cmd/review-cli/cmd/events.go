package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/web3nomad/Rabby/internal/service/mq"
	"github.com/web3nomad/Rabby/pkg/config"
	"github.com/web3nomad/Rabby/pkg/database"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "订阅评审事件流 (安全检查失败, 降级读取, 提交)",
	RunE: func(cmd *cobra.Command, args []string) error {
		group, _ := cmd.Flags().GetString("group")
		name, _ := cmd.Flags().GetString("name")

		cfg := config.Global
		rdb, err := database.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil && cfg.Redis.MQType != "kafka" {
			return fmt.Errorf("redis 连接失败: %w", err)
		}
		consumer := mq.NewConsumer(cfg, rdb, group, name)
		defer consumer.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("正在订阅 %s (Ctrl+C 退出)...\n", cfg.Kafka.Topic)
		return consumer.Subscribe(ctx, cfg.Kafka.Topic, func(msg *mq.Message) error {
			fmt.Printf("[%s] %s key=%s %s\n", msg.ID, msg.Type, msg.Key, string(msg.Payload))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().String("group", "review-cli", "消费组")
	eventsCmd.Flags().String("name", "review-cli-0", "消费者名称 (Redis Streams)")
}
