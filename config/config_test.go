package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("指定的配置文件不存在时应报错, got %+v", cfg)
	}

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("无配置文件时应使用默认值: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("默认端口应为 8080, got %d", cfg.Server.Port)
	}
	if cfg.Scheduler.RecalcCron != "0 2 * * *" {
		t.Errorf("默认重算时间应为 0 2 * * *, got %q", cfg.Scheduler.RecalcCron)
	}
	if cfg.Consolidation.LockTTL != 30*time.Second {
		t.Errorf("默认合并锁 TTL 应为 30s, got %v", cfg.Consolidation.LockTTL)
	}
	if cfg.RateLimit.RecalcWindow != time.Minute {
		t.Errorf("默认限流窗口应为 1m, got %v", cfg.RateLimit.RecalcWindow)
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 9000\nlog:\n  level: debug\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JORNADA_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("配置文件中的端口应生效, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("环境变量应覆盖配置文件, got %q", cfg.Log.Level)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:        ServerConfig{Port: 8080},
			Database:      DatabaseConfig{Host: "localhost"},
			Scheduler:     SchedulerConfig{Enabled: true, RecalcCron: "0 2 * * *", Timezone: "UTC"},
			Consolidation: ConsolidationConfig{LockTTL: time.Second},
		}
	}

	cfg := valid()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("合法配置不应报错: %v", err)
	}

	cfg = valid()
	cfg.Server.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("非法端口应报错")
	}

	cfg = valid()
	cfg.Database.Host = ""
	if err := cfg.Validate(); err == nil {
		t.Error("db.host 为空应报错")
	}

	cfg = valid()
	cfg.Scheduler.RecalcCron = "every night"
	if err := cfg.Validate(); err == nil {
		t.Error("非法 cron 表达式应报错")
	}

	cfg = valid()
	cfg.Scheduler.Enabled = false
	cfg.Scheduler.RecalcCron = "every night"
	if err := cfg.Validate(); err != nil {
		t.Errorf("定时任务关闭时不校验 cron: %v", err)
	}
}
