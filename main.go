// @title Quiz Portal API
// @version 1.0
// @description 测验门户的后端服务：浏览、作答、组卷与审核。

// @contact.name API支持

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"log"
	"os"
	"quiz_portal/internal/app"
	"quiz_portal/internal/config"
	"quiz_portal/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	// 命令行参数
	configDir := pflag.String("config-dir", "configs", "config.yaml 所在目录")
	migrateOnly := pflag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	migrate := pflag.Bool("migrate", false, "启动时强制执行数据库迁移（即使是 release 模式）")
	pflag.String("port", "", "监听端口，覆盖 server.port")
	pflag.String("backend", "", "测验后端：local 或 remote，覆盖 backend.mode")
	pflag.Parse()

	// .env 只用于本地开发，缺失不是错误
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env: %v", err)
	}

	v := viper.New()
	if f := pflag.Lookup("port"); f != nil && f.Changed {
		v.Set("server.port", f.Value.String())
	}
	if f := pflag.Lookup("backend"); f != nil && f.Changed {
		v.Set("backend.mode", f.Value.String())
	}

	cfg, err := config.LoadConfig(*configDir, v)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 设置迁移标志
	cfg.ForceMigrate = *migrate || *migrateOnly
	cfg.MigrateOnly = *migrateOnly

	application := app.NewApp(cfg, *configDir)
	defer logger.Log.Sync()

	// 迁移完成后直接退出
	if *migrateOnly {
		log.Println("数据库迁移完成，退出程序")
		return
	}

	application.Run()
}
