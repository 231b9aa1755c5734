// Package memory implements a lightweight, file-backed Memory
// provider: a per-device SQLite database of past turns plus a small
// YAML "last seen speaker" marker, grounded on
// xiaozhi-server/core/providers/memory/lightweight.py (one on-disk
// store per device, substring-queryable, no embeddings/vector search).
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/voxloop-ai/voxloop-orchestrator/pkg/orchestrator"
	"gopkg.in/yaml.v3"
)

// Provider is a per-device SQLite-backed Memory implementation. Init
// opens (creating if needed) one database file per device under dir.
type Provider struct {
	dir        string
	maxResults int

	db       *sql.DB
	deviceID string
}

// New builds a Provider rooted at dir (created on first Init).
func New(dir string, maxResults int) *Provider {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Provider{dir: dir, maxResults: maxResults}
}

type lastSeen struct {
	SpeakerID string `yaml:"speaker_id"`
}

func (p *Provider) dbPath(deviceID string) string {
	return filepath.Join(p.dir, deviceID+".sqlite")
}

func (p *Provider) speakerPath(deviceID string) string {
	return filepath.Join(p.dir, deviceID+".speaker.yaml")
}

// Init implements orchestrator.Memory: opens the device's database and
// ensures its schema exists. The llm argument is unused by this
// lightweight provider (no summarization pass); it is accepted to
// satisfy the interface so richer providers can use it.
func (p *Provider) Init(ctx context.Context, deviceID, roleID string, llm orchestrator.LLM) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("memory: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", p.dbPath(deviceID))
	if err != nil {
		return fmt.Errorf("memory: open db: %w", err)
	}
	const schema = `CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		speaker_id TEXT,
		created_at TEXT NOT NULL
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return fmt.Errorf("memory: create schema: %w", err)
	}
	p.db = db
	p.deviceID = deviceID
	return nil
}

// QueryMemory implements orchestrator.Memory: a case-insensitive
// substring search over stored turn content, most recent first,
// joined into one context string (lightweight.py has no embeddings —
// it is itself a flat JSON scan).
func (p *Provider) QueryMemory(ctx context.Context, query string, speakerID string) (string, error) {
	if p.db == nil {
		return "", nil
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT role, content FROM turns WHERE content LIKE ? ORDER BY id DESC LIMIT ?`,
		"%"+query+"%", p.maxResults)
	if err != nil {
		return "", fmt.Errorf("memory: query: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return "", fmt.Errorf("memory: scan: %w", err)
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, content))
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("memory: rows: %w", err)
	}
	return strings.Join(lines, "\n"), nil
}

// AddMemory implements orchestrator.Memory: appends each user and
// assistant message as a turn (other roles are skipped), tagging user
// turns with speakerID.
func (p *Provider) AddMemory(ctx context.Context, messages []orchestrator.Message, metadata map[string]any, speakerID string) error {
	if p.db == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("memory: begin tx: %w", err)
	}
	for _, m := range messages {
		if m.Role != orchestrator.RoleUser && m.Role != orchestrator.RoleAssistant {
			continue
		}
		sp := ""
		if m.Role == orchestrator.RoleUser {
			sp = speakerID
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO turns (role, content, speaker_id, created_at) VALUES (?, ?, ?, ?)`,
			string(m.Role), m.Content, sp, now,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("memory: insert turn: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("memory: commit: %w", err)
	}

	if speakerID != "" {
		data, err := yaml.Marshal(lastSeen{SpeakerID: speakerID})
		if err == nil {
			_ = os.WriteFile(p.speakerPath(p.deviceID), data, 0o644)
		}
	}
	return nil
}

// SaveMemory implements orchestrator.Memory. The lightweight provider
// persists incrementally in AddMemory, so this is a best-effort no-op
// flush point for callers that expect one (Session.Close).
func (p *Provider) SaveMemory(ctx context.Context, messages []orchestrator.Message) error {
	return nil
}

// GetLastSeenSpeakerID implements orchestrator.Memory by reading the
// device's small YAML marker file.
func (p *Provider) GetLastSeenSpeakerID(ctx context.Context) (string, error) {
	data, err := os.ReadFile(p.speakerPath(p.deviceID))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("memory: read last seen speaker: %w", err)
	}
	var ls lastSeen
	if err := yaml.Unmarshal(data, &ls); err != nil {
		return "", fmt.Errorf("memory: parse last seen speaker: %w", err)
	}
	return ls.SpeakerID, nil
}
