package main

import (
	"errors"
	"flag"
	"net/url"

	"blog_engine/internal/pkg/config"
	"blog_engine/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// 用法: migrate [-dir migrations] [-down] [-steps n]
func main() {
	dir := flag.String("dir", "migrations", "migration files directory")
	down := flag.Bool("down", false, "roll back instead of applying")
	steps := flag.Int("steps", 0, "number of steps, 0 means all")
	flag.Parse()

	config.LoadConfig()
	cfg := config.GlobalConfig
	if err := logger.Init(cfg.App.Env, cfg.App.Debug); err != nil {
		panic(err)
	}
	defer logger.Sync()

	m, err := migrate.New("file://"+*dir, databaseURL(cfg.Database))
	if err != nil {
		logger.L().Fatal("open migrations failed", zap.Error(err))
	}
	defer m.Close()

	if err := run(m, *down, *steps); err != nil {
		// 上次迁移中断留下 dirty 版本时，回退到前一版本后重试一次
		var dirty migrate.ErrDirty
		if !errors.As(err, &dirty) {
			logger.L().Fatal("migration failed", zap.Error(err))
		}
		logger.L().Warn("database is dirty, forcing previous version", zap.Int("version", dirty.Version))
		if err := m.Force(dirty.Version - 1); err != nil {
			logger.L().Fatal("force version failed", zap.Error(err))
		}
		if err := run(m, *down, *steps); err != nil {
			logger.L().Fatal("migration failed", zap.Error(err))
		}
	}

	version, dirty, _ := m.Version()
	logger.L().Info("migration successful", zap.Uint("version", version), zap.Bool("dirty", dirty))
}

func run(m *migrate.Migrate, down bool, steps int) error {
	var err error
	switch {
	case steps > 0 && down:
		err = m.Steps(-steps)
	case steps > 0:
		err = m.Steps(steps)
	case down:
		err = m.Down()
	default:
		err = m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

func databaseURL(cfg config.DatabaseConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + cfg.Port,
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": {cfg.SSLMode}}.Encode(),
	}
	return u.String()
}
