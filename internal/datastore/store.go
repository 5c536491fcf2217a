package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"giftcode/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver   string
	DSN      string
	Password string
	File     string
}

// Open connects to postgres through pgdriver or to a local sqlite file.
func Open(cfg *Config) (*bun.DB, error) {
	switch cfg.Driver {
	case DriverSQLite:
		if dir := filepath.Dir(cfg.File); dir != "." && !strings.HasPrefix(cfg.File, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		sqldb, err := sql.Open("sqlite3", cfg.File)
		if err != nil {
			return nil, err
		}
		// sqlite serializes writers anyway
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case DriverPostgres, "":
		sqldb := sql.OpenDB(pgdriver.NewConnector(
			pgdriver.WithDSN(cfg.DSN),
			pgdriver.WithPassword(cfg.Password),
		))
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
}

func Migrate(ctx context.Context, db *bun.DB) error {
	steps := []func(context.Context, *bun.DB) error{
		CreateTablePlayer,
		CreateTableGiftCode,
		CreateTableRedemption,
		CreateTableCaptcha,
	}
	for _, step := range steps {
		if err := step(ctx, db); err != nil {
			return err
		}
	}
	return nil
}

// Store exposes the durable storage operations the redemption engine and the staging replay need.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *bun.DB {
	return s.db
}

func (s *Store) ListPlayers(ctx context.Context) ([]models.Player, error) {
	return GetPlayers(ctx, s.db)
}

func (s *Store) AddGiftCode(ctx context.Context, code string) (bool, error) {
	return InsertGiftCode(ctx, s.db, code)
}

func (s *Store) ListActiveGiftCodes(ctx context.Context) ([]string, error) {
	return GetActiveGiftCodes(ctx, s.db)
}

func (s *Store) ListUnredeemed(ctx context.Context) ([]models.WorkUnit, error) {
	return GetUnredeemedWorkUnits(ctx, s.db)
}

func (s *Store) ListRedeemedCodes(ctx context.Context, fid string) ([]string, error) {
	return GetRedeemedCodes(ctx, s.db, fid)
}

func (s *Store) RecordRedemption(ctx context.Context, fid string, code string) error {
	return InsertRedemption(ctx, s.db, fid, code)
}

// DeactivateGiftCode ignores codes that were never stored, a staged deactivation may outlive its code.
func (s *Store) DeactivateGiftCode(ctx context.Context, code string) error {
	_, err := DeactivateGiftCode(ctx, s.db, code)
	if errors.Is(err, ErrGiftCodeNotFound) {
		return nil
	}
	return err
}

func (s *Store) SetCaptchaFeedback(ctx context.Context, solveID int64, success bool) error {
	return SetCaptchaFeedback(ctx, s.db, solveID, success)
}

func (s *Store) UpdatePlayerProfile(ctx context.Context, profile *models.PlayerProfile) error {
	return UpdatePlayerProfile(ctx, s.db, profile)
}

func (s *Store) RecordCaptcha(ctx context.Context, name string, img []byte) (int64, error) {
	return InsertCaptcha(ctx, s.db, name, img)
}
