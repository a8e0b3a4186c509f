package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/damoang/angple-messenger/internal/config"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/damoang/angple-messenger/internal/tree"
	pkges "github.com/damoang/angple-messenger/pkg/elasticsearch"
	pkglogger "github.com/damoang/angple-messenger/pkg/logger"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// messenger 스키마 마이그레이션 + 검색 인덱스 재구축
//
//	go run ./cmd/migrate                          # tree_nodes 테이블 생성/갱신
//	go run ./cmd/migrate -reindex -company c1,c2  # ES 인덱스 재구축
func main() {
	configPath := flag.String("config", "", "config file path (default configs/config.<APP_ENV>.yaml)")
	reindex := flag.Bool("reindex", false, "rebuild the elasticsearch message index")
	companies := flag.String("company", "", "comma separated company IDs to reindex")
	dryRun := flag.Bool("dry-run", false, "count messages without writing to the index")
	verbose := flag.Bool("verbose", false, "verbose SQL logging")
	flag.Parse()

	config.LoadDotEnv(".")
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	pkglogger.InitStructured(env)
	log := pkglogger.GetLogger()

	if *configPath == "" {
		*configPath = fmt.Sprintf("configs/config.%s.yaml", env)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("failed to load config")
	}

	db, err := openDB(cfg, *verbose)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to connect to database")
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	if err := tree.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("tree migration failed")
	}
	log.Info().Str("driver", cfg.Database.Driver).Msg("schema up to date")

	if !*reindex {
		return
	}

	ids := splitIDs(*companies)
	if len(ids) == 0 {
		log.Fatal().Msg("-reindex needs -company")
	}

	store := tree.New(db)
	defer store.Notifier().Close()
	chats := repository.NewChatRepository(store)
	messages := repository.NewMessageRepository(store)

	var idx service.SearchIndex = countingIndex{}
	if !*dryRun {
		if len(cfg.Elasticsearch.Addresses) == 0 {
			log.Fatal().Msg("elasticsearch addresses are not configured")
		}
		esClient, err := pkges.NewClient(cfg.Elasticsearch.Addresses, cfg.Elasticsearch.Username, cfg.Elasticsearch.Password)
		if err != nil {
			log.Fatal().Err(err).Msg("elasticsearch connection failed")
		}
		es := service.NewESSearchIndex(esClient)
		if err := es.EnsureIndex(context.Background()); err != nil {
			log.Warn().Err(err).Msg("index setup failed (may already exist)")
		}
		idx = es
	}

	total := 0
	for _, id := range ids {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		n, err := service.Reindex(ctx, domain.Scope{CompanyID: id}, chats, messages, idx)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("company_id", id).Int("indexed", n).Msg("reindex failed")
			os.Exit(1)
		}
		log.Info().Str("company_id", id).Int("indexed", n).Bool("dry_run", *dryRun).Msg("company reindexed")
		total += n
	}
	log.Info().Int("total", total).Msg("reindex complete")
}

func openDB(cfg *config.Config, verbose bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.Database.GetDSN())
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.GetDSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	logLevel := gormlogger.Warn
	if verbose {
		logLevel = gormlogger.Info
	}
	return gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(logLevel)})
}

func splitIDs(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// countingIndex accepts everything; used for -dry-run
type countingIndex struct{}

func (countingIndex) Index(context.Context, domain.Scope, *domain.Message) error { return nil }
func (countingIndex) Remove(context.Context, domain.Scope, string) error         { return nil }
func (countingIndex) Search(context.Context, domain.Scope, string, []string, int) ([]*domain.Message, error) {
	return nil, nil
}
