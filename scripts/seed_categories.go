// 导入分类树种子数据（本地后端）
//
// 整树替换 category_nodes 表，已有分类会被清空。
//
// 用法: go run scripts/seed_categories.go [-config-dir configs] [-file scripts/categories.yaml]

package main

import (
	"context"
	"log"
	"os"
	"quiz_portal/internal/category"
	"quiz_portal/internal/config"
	"quiz_portal/internal/model"
	"quiz_portal/internal/service"
	"quiz_portal/pkg/database"
	"quiz_portal/pkg/logger"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type seedNode struct {
	Name     string     `yaml:"name"`
	Children []seedNode `yaml:"children"`
}

func toNodes(seed []seedNode) []model.CategoryNode {
	out := make([]model.CategoryNode, 0, len(seed))
	for _, s := range seed {
		out = append(out, model.CategoryNode{Name: s.Name, Children: toNodes(s.Children)})
	}
	return out
}

func main() {
	configDir := pflag.String("config-dir", "configs", "config.yaml 所在目录")
	file := pflag.String("file", "scripts/categories.yaml", "分类种子文件")
	pflag.Parse()

	cfg, err := config.LoadConfig(*configDir, nil)
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}
	logger.InitLogger(cfg)

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("无法读取种子文件: %v", err)
	}
	var seed []seedNode
	if err := yaml.Unmarshal(data, &seed); err != nil {
		log.Fatalf("解析种子文件失败: %v", err)
	}

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == "debug")
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	categories := service.NewCategoryService(service.NewLocalBackend(db, nil, nil))
	tree, err := categories.Replace(context.Background(), toNodes(seed))
	if err != nil {
		log.Fatalf("导入分类失败: %v", err)
	}

	total := 0
	for _, n := range tree {
		total += category.Count(n)
	}
	log.Printf("完成！共导入 %d 个地区，%d 个节点", len(tree), total)
}
