package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"schola/model"
	"schola/types"
)

type DBStorer interface {
	CreateDatasource(ctx context.Context, name string, sections types.SectionSeq) error
	SearchDatasource(ctx context.Context, datasource string, vector []float32, limit int) ([]types.RetrievalHit, error)
	ListDatasources(ctx context.Context) ([]string, error)

	CreateSubject(ctx context.Context, s types.Subject) (*types.Subject, error)
	GetSubjectByName(ctx context.Context, name string) (*types.Subject, error)
	ListSubjects(ctx context.Context) ([]types.Subject, error)
	UpdateSubject(ctx context.Context, s types.Subject) error
	DeleteSubject(ctx context.Context, name string) error

	GetUserState(ctx context.Context, userID string) (*types.UserState, error)
	SetPipeline(ctx context.Context, userID string, p types.Pipeline) error
	SetCurrentSubject(ctx context.Context, userID, subject string) error

	SaveInteraction(ctx context.Context, in types.Interaction) error
	GetChatHistory(ctx context.Context, userID string, limit int) ([]types.Message, error)
}

type PostgresStore struct {
	pool     *pgxpool.Pool
	embedder model.EmbedderInterface
}

func NewPostgresStore(ctx context.Context, connStr string, embedder model.EmbedderInterface) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool:     pool,
		embedder: embedder,
	}, nil
}

// CreateDatasource replaces the named datasource with the given section
// stream. The old sections are deleted and the new ones inserted inside
// one transaction, so a failing stream leaves the previous index intact.
func (p *PostgresStore) CreateDatasource(ctx context.Context, name string, sections types.SectionSeq) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM sections WHERE datasource = $1", name); err != nil {
		return fmt.Errorf("error deleting old sections: %w", err)
	}

	count := 0
	for sec, err := range sections {
		if err != nil {
			return fmt.Errorf("section stream failed: %w", err)
		}
		embedding, err := p.embedder.Embed(ctx, sec.SearchKey)
		if err != nil {
			return fmt.Errorf("embedding error for section %s: %w", sec.ID, err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO sections (datasource, id, content, file_url, embedding)
			 VALUES ($1, $2, $3, $4, $5)`,
			name, sec.ID, sec.Content, sec.FileURL, pgvector.NewVector(embedding),
		)
		if err != nil {
			return fmt.Errorf("error inserting section %s: %w", sec.ID, err)
		}
		count++
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	slog.Info("datasource indexed", "datasource", name, "sections", count)
	return nil
}

// SearchDatasource returns the sections of one datasource closest to the
// query vector by cosine distance. An unknown datasource yields an empty
// result, not an error.
func (p *PostgresStore) SearchDatasource(ctx context.Context, datasource string, vector []float32, limit int) ([]types.RetrievalHit, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("empty query vector")
	}

	query := `
		SELECT id, content, file_url, 1 - (embedding <=> $1) AS score
		FROM sections
		WHERE datasource = $2 AND embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $3
	`
	rows, err := p.pool.Query(ctx, query, pgvector.NewVector(vector), datasource, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []types.RetrievalHit
	for rows.Next() {
		var hit types.RetrievalHit
		if err := rows.Scan(&hit.ID, &hit.Content, &hit.FileURL, &hit.Score); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (p *PostgresStore) ListDatasources(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, "SELECT DISTINCT datasource FROM sections ORDER BY datasource")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (p *PostgresStore) CreateSubject(ctx context.Context, s types.Subject) (*types.Subject, error) {
	s.SubjectKey = uuid.New()
	err := p.pool.QueryRow(ctx,
		`INSERT INTO subject_info (subject_name, subject_description, use_datasource, tags, subject_key)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		s.Name, s.Description, s.UseDatasource, joinTags(s.Tags), s.SubjectKey,
	).Scan(&s.ID)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *PostgresStore) GetSubjectByName(ctx context.Context, name string) (*types.Subject, error) {
	var s types.Subject
	var tags string
	err := p.pool.QueryRow(ctx,
		`SELECT id, subject_name, subject_description, use_datasource, tags, subject_key
		 FROM subject_info WHERE subject_name = $1`,
		name,
	).Scan(&s.ID, &s.Name, &s.Description, &s.UseDatasource, &tags, &s.SubjectKey)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Tags = splitTags(tags)
	return &s, nil
}

func (p *PostgresStore) ListSubjects(ctx context.Context) ([]types.Subject, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, subject_name, subject_description, use_datasource, tags, subject_key
		 FROM subject_info ORDER BY subject_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subjects []types.Subject
	for rows.Next() {
		var s types.Subject
		var tags string
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.UseDatasource, &tags, &s.SubjectKey); err != nil {
			return nil, err
		}
		s.Tags = splitTags(tags)
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}

func (p *PostgresStore) UpdateSubject(ctx context.Context, s types.Subject) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE subject_info
		 SET subject_description = $2, use_datasource = $3, tags = $4
		 WHERE subject_name = $1`,
		s.Name, s.Description, s.UseDatasource, joinTags(s.Tags),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("subject %q not found", s.Name)
	}
	return nil
}

func (p *PostgresStore) DeleteSubject(ctx context.Context, name string) error {
	tag, err := p.pool.Exec(ctx, "DELETE FROM subject_info WHERE subject_name = $1", name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("subject %q not found", name)
	}
	return nil
}

// GetUserState loads a user's conversation state, creating the default
// state on first contact.
func (p *PostgresStore) GetUserState(ctx context.Context, userID string) (*types.UserState, error) {
	state := &types.UserState{UserID: userID}
	var pipeline string
	err := p.pool.QueryRow(ctx,
		"SELECT pipeline, current_subject FROM users WHERE user_id = $1", userID,
	).Scan(&pipeline, &state.CurrentSubject)
	if err == pgx.ErrNoRows {
		state.Pipeline = types.PipelineDefault
		_, err = p.pool.Exec(ctx,
			`INSERT INTO users (user_id, pipeline, current_subject) VALUES ($1, $2, '')
			 ON CONFLICT (user_id) DO NOTHING`,
			userID, state.Pipeline.String(),
		)
		if err != nil {
			return nil, err
		}
		return state, nil
	}
	if err != nil {
		return nil, err
	}
	state.Pipeline, err = types.ParsePipeline(pipeline)
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (p *PostgresStore) SetPipeline(ctx context.Context, userID string, pl types.Pipeline) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO users (user_id, pipeline, current_subject) VALUES ($1, $2, '')
		 ON CONFLICT (user_id) DO UPDATE SET pipeline = EXCLUDED.pipeline`,
		userID, pl.String(),
	)
	return err
}

func (p *PostgresStore) SetCurrentSubject(ctx context.Context, userID, subject string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO users (user_id, pipeline, current_subject) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET current_subject = EXCLUDED.current_subject`,
		userID, types.PipelineDefault.String(), subject,
	)
	return err
}

func (p *PostgresStore) SaveInteraction(ctx context.Context, in types.Interaction) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO interactions (user_id, user_message, bot_response) VALUES ($1, $2, $3)`,
		in.UserID, in.UserMessage, in.BotResponse,
	)
	return err
}

// GetChatHistory returns the user's latest exchanges as alternating
// user/assistant messages, oldest first.
func (p *PostgresStore) GetChatHistory(ctx context.Context, userID string, limit int) ([]types.Message, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT user_message, bot_response FROM interactions
		 WHERE user_id = $1 ORDER BY ts DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs [][2]string
	for rows.Next() {
		var pair [2]string
		if err := rows.Scan(&pair[0], &pair[1]); err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	messages := make([]types.Message, 0, len(pairs)*2)
	for i := len(pairs) - 1; i >= 0; i-- {
		messages = append(messages,
			types.Message{Role: "user", Content: pairs[i][0]},
			types.Message{Role: "assistant", Content: pairs[i][1]},
		)
	}
	return messages, nil
}

func (p *PostgresStore) createTables(ctx context.Context) error {
	query := `
    CREATE EXTENSION IF NOT EXISTS vector;

    CREATE TABLE IF NOT EXISTS sections (
        datasource TEXT NOT NULL,
        id TEXT NOT NULL,
        content TEXT NOT NULL,
        file_url TEXT,
        embedding vector(768),
        PRIMARY KEY (datasource, id)
    );

	CREATE INDEX IF NOT EXISTS idx_sections_embedding ON sections USING ivfflat (embedding vector_cosine_ops)
	WITH (lists = 100);

	CREATE INDEX IF NOT EXISTS idx_sections_datasource ON sections(datasource);

	CREATE TABLE IF NOT EXISTS subject_info (
		id BIGSERIAL PRIMARY KEY,
		subject_name TEXT NOT NULL UNIQUE,
		subject_description TEXT NOT NULL DEFAULT '',
		use_datasource BOOLEAN NOT NULL DEFAULT FALSE,
		tags TEXT NOT NULL DEFAULT '',
		subject_key UUID NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		pipeline TEXT NOT NULL,
		current_subject TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS interactions (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		user_message TEXT NOT NULL,
		bot_response TEXT NOT NULL,
		ts TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_interactions_user ON interactions(user_id, ts);
    `
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Init(ctx context.Context) error {
	return p.createTables(ctx)
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		slog.Info("postgres connection pool is closed")
	}
	return nil
}

func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
