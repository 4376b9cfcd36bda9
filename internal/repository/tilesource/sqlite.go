package tilesource

import (
	"context"
	"database/sql"
	"embed"
	"errors"

	"github.com/jaennil/guide_helper/backend/demultiplexer/pkg/logger"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

type SQLiteSource struct {
	db     *sql.DB
	path   string
	logger logger.Logger
}

func NewSQLiteSource(path string, l logger.Logger) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteSource{
		db:     db,
		path:   path,
		logger: l,
	}

	err = s.runMigrations()
	if err != nil {
		db.Close()
		return nil, err
	}

	l.Info("sqlite tile source initialized", "path", path)

	return s, nil
}

func (s *SQLiteSource) runMigrations() error {
	goose.SetBaseFS(migrations)

	err := goose.SetDialect("sqlite3")
	if err != nil {
		return err
	}

	return goose.Up(s.db, "migrations")
}

var _ Source = (*SQLiteSource)(nil)

func (s *SQLiteSource) GetTile(ctx context.Context, z, x, y int) ([]byte, error) {
	s.logger.Debug("sqlite tile get", "z", z, "x", x, "y", y)

	query := `SELECT tile_data
	FROM tiles
	WHERE z = ? AND x = ? AND y = ?`

	var tileData []byte
	err := s.db.QueryRowContext(ctx, query, z, x, y).Scan(&tileData)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTileNotFound
		}
		s.logger.Error("sqlite tile get failed", "z", z, "x", x, "y", y, "error", err)
		return nil, err
	}

	return tileData, nil
}

func (s *SQLiteSource) PutTile(ctx context.Context, z, x, y int, data []byte) error {
	s.logger.Debug("sqlite tile put", "z", z, "x", x, "y", y, "size", len(data))

	query := `INSERT INTO tiles (z, x, y, tile_data)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(z, x, y) DO UPDATE SET tile_data = excluded.tile_data`

	_, err := s.db.ExecContext(ctx, query, z, x, y, data)
	if err != nil {
		s.logger.Error("sqlite tile put failed", "z", z, "x", x, "y", y, "error", err)
		return err
	}

	return nil
}

func (s *SQLiteSource) GetInfo(_ context.Context) (Info, error) {
	return defaultInfo(s.path, "sqlite"), nil
}

func (s *SQLiteSource) Close() error {
	return s.db.Close()
}
