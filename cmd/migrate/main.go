package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"tradestream/internal/config"
	"tradestream/internal/database"
	"tradestream/internal/logger"
)

func main() {
	var (
		configPath = flag.String("config", "", "配置文件路径")
		dbURL      = flag.String("url", "", "数据库URL (覆盖配置)")
		up         = flag.Bool("up", false, "运行数据库迁移")
		down       = flag.Bool("down", false, "回滚数据库迁移")
		steps      = flag.Int("steps", 0, "执行N步迁移, 负数回滚")
		version    = flag.Bool("version", false, "显示当前迁移版本")
		force      = flag.Int("force", -1, "强制设置迁移版本（用于修复脏状态）")
	)
	flag.Usage = usage
	flag.Parse()

	url := *dbURL
	if url == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		url = cfg.Database.URL
	}
	if url == "" {
		log.Fatal("No database URL: pass -url or set database.url")
	}

	migrator, err := database.NewMigrator(url, logger.NewLogger(logger.Config{
		Level:  logger.LevelInfo,
		Format: logger.FormatText,
		Output: "stderr",
	}))
	if err != nil {
		log.Fatalf("Failed to create migrator: %v", err)
	}
	defer migrator.Close()

	switch {
	case *down:
		err = migrator.Down()
	case *steps != 0:
		err = migrator.Steps(*steps)
	case *version:
		var v uint
		v, err = migrator.Version()
		fmt.Printf("version: %d\n", v)
	case *force >= 0:
		err = migrator.Force(*force)
	case *up:
		err = migrator.Up()
	default:
		err = migrator.Up()
	}
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "TradeStream 数据库迁移工具")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "用法:")
	fmt.Fprintln(os.Stderr, "  migrate [选项]")
	fmt.Fprintln(os.Stderr)
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "示例:")
	fmt.Fprintln(os.Stderr, "  migrate -up")
	fmt.Fprintln(os.Stderr, "  migrate -steps -1")
	fmt.Fprintln(os.Stderr, "  migrate -force 1    # 修复脏状态，强制设置为版本1")
}
