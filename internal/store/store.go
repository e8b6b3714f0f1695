// Package store keeps the group/article shim: which newsgroups are
// watched, their watermarks, and the subjects indexed from them.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/segmentio/ksuid"
	"github.com/tahirrasheed89/newsreap/internal/yenc"
)

type GroupStore struct {
	db *sql.DB
}

type Group struct {
	Name  string
	Low   int64
	High  int64
	Count int64
}

type Article struct {
	ID        string
	Group     string
	MessageID string
	Subject   string

	// Parsed subject fields, zero when the subject is not a yEnc post.
	Filename string
	YIndex   int
	YCount   int
	Size     int64
}

const schema = `
CREATE TABLE IF NOT EXISTS groups (
	name  TEXT PRIMARY KEY,
	low   INTEGER NOT NULL DEFAULT 0,
	high  INTEGER NOT NULL DEFAULT 0,
	count INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS articles (
	id         TEXT PRIMARY KEY,
	group_name TEXT NOT NULL REFERENCES groups(name) ON DELETE CASCADE,
	message_id TEXT NOT NULL,
	subject    TEXT NOT NULL,
	filename   TEXT NOT NULL DEFAULT '',
	yindex     INTEGER NOT NULL DEFAULT 0,
	ycount     INTEGER NOT NULL DEFAULT 0,
	size       INTEGER NOT NULL DEFAULT 0,
	UNIQUE (group_name, message_id)
);
CREATE INDEX IF NOT EXISTS idx_articles_filename ON articles (group_name, filename);
`

func NewGroupStore(dbPath string) (*GroupStore, error) {
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Ping makes sure the file is actually accessible and the DSN is valid
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create schema: %w", err)
	}

	return &GroupStore{db: db}, nil
}

// AddGroup starts watching a newsgroup; re-adding is a no-op.
func (s *GroupStore) AddGroup(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO groups (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name)
	return err
}

// SetWatermarks records the low/high article numbers reported by the
// server for a watched group.
func (s *GroupStore) SetWatermarks(ctx context.Context, name string, low, high, count int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE groups SET low = ?, high = ?, count = ? WHERE name = ?`,
		low, high, count, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("group %s is not watched", name)
	}
	return nil
}

func (s *GroupStore) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, low, high, count FROM groups ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.Name, &g.Low, &g.High, &g.Count); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// RecordArticle indexes one article subject under a group. The subject
// is parsed for yEnc posting fields; non-yEnc subjects are stored with
// the parsed fields left empty.
func (s *GroupStore) RecordArticle(ctx context.Context, group, messageID, subject string) error {
	a := Article{
		ID:        ksuid.New().String(),
		Group:     group,
		MessageID: messageID,
		Subject:   subject,
	}
	if parsed := yenc.ParseSubject(subject); parsed != nil {
		a.Filename = parsed.Filename
		a.YIndex = parsed.YIndex
		a.YCount = parsed.YCount
		a.Size = parsed.Size
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO articles (id, group_name, message_id, subject, filename, yindex, ycount, size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(group_name, message_id) DO UPDATE SET
			subject = excluded.subject,
			filename = excluded.filename,
			yindex = excluded.yindex,
			ycount = excluded.ycount,
			size = excluded.size`,
		a.ID, a.Group, a.MessageID, a.Subject, a.Filename, a.YIndex, a.YCount, a.Size)
	return err
}

// ArticlesByFile lists the indexed parts of one logical file in a
// group, ordered by their yEnc part index. This is the grouping the
// part assembler consumes.
func (s *GroupStore) ArticlesByFile(ctx context.Context, group, filename string) ([]Article, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, group_name, message_id, subject, filename, yindex, ycount, size
		FROM articles
		WHERE group_name = ? AND filename = ?
		ORDER BY yindex`, group, filename)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanArticles(rows)
}

// ListArticles lists every indexed article in a group.
func (s *GroupStore) ListArticles(ctx context.Context, group string) ([]Article, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, group_name, message_id, subject, filename, yindex, ycount, size
		FROM articles
		WHERE group_name = ?
		ORDER BY filename, yindex`, group)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanArticles(rows)
}

func scanArticles(rows *sql.Rows) ([]Article, error) {
	var articles []Article
	for rows.Next() {
		var a Article
		if err := rows.Scan(&a.ID, &a.Group, &a.MessageID, &a.Subject,
			&a.Filename, &a.YIndex, &a.YCount, &a.Size); err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func (s *GroupStore) Close() error {
	return s.db.Close()
}
