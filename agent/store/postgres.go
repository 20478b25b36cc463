// Package store persists customer profiles and session history rows in
// Postgres (Supabase-compatible) through bun.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/mechanigo/chatbot/agent/schema"
	"github.com/mechanigo/chatbot/agent/session"
)

var ErrInvalidIdentifier = errors.New("unsupported identifier field")

type Config struct {
	DSN     string        `envconfig:"DSN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// UserRow mirrors the persisted profile, one row per uid. RawJSON keeps the
// full serialized record alongside the queryable columns.
type UserRow struct {
	bun.BaseModel `bun:"table:chatbot_users,alias:u"`

	UID          string    `bun:"uid,pk"`
	Name         string    `bun:"name,nullzero"`
	Email        string    `bun:"email,nullzero"`
	Address      string    `bun:"address,nullzero"`
	ContactNum   string    `bun:"contact_num,nullzero"`
	ServiceType  string    `bun:"service_type,nullzero"`
	ScheduleDate string    `bun:"schedule_date,nullzero"`
	ScheduleTime string    `bun:"schedule_time,nullzero"`
	Payment      string    `bun:"payment,nullzero"`
	Car          string    `bun:"car,nullzero"`
	RawJSON      string    `bun:"raw_json,nullzero"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// HistoryRow models one (session, role) row with the role's messages
// collapsed into a single ordered JSON field.
type HistoryRow struct {
	bun.BaseModel `bun:"table:session_history,alias:h"`

	ID        int64     `bun:"id,pk,autoincrement"`
	SessionID string    `bun:"session_id,notnull"`
	Role      string    `bun:"role,notnull"`
	Content   []string  `bun:"content,type:jsonb"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// NewDB opens a bun handle over the Postgres driver.
func NewDB(cfg Config) (*bun.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	opts := []pgdriver.Option{pgdriver.WithDSN(dsn)}
	if cfg.Timeout > 0 {
		opts = append(opts, pgdriver.WithTimeout(cfg.Timeout))
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(opts...))
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// Postgres implements the durable store capabilities: profile upsert/lookup
// for the identity linker and persistence gate, and the per-role history
// rows behind the session history store.
type Postgres struct {
	db bun.IDB
}

func NewPostgres(db bun.IDB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the tables when absent. Matches the original
// deployment's lazily provisioned dataset.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.NewCreateTable().
		Model((*UserRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("ensure users table: %w", err)
	}
	if _, err := p.db.NewCreateTable().
		Model((*HistoryRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("ensure history table: %w", err)
	}
	return nil
}

func (p *Postgres) UpsertUser(ctx context.Context, user *schema.User) error {
	if user == nil || strings.TrimSpace(user.UID) == "" {
		return errors.New("user uid is required")
	}

	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user record: %w", err)
	}

	row := &UserRow{
		UID:          user.UID,
		Name:         user.Name,
		Email:        user.Email,
		Address:      user.Address,
		ContactNum:   user.ContactNum,
		ServiceType:  user.ServiceType,
		ScheduleDate: user.ScheduleDate,
		ScheduleTime: user.ScheduleTime,
		Payment:      user.Payment,
		Car:          user.Car,
		RawJSON:      string(raw),
		UpdatedAt:    time.Now().UTC(),
	}

	_, err = p.db.NewInsert().
		Model(row).
		On("CONFLICT (uid) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("email = EXCLUDED.email").
		Set("address = EXCLUDED.address").
		Set("contact_num = EXCLUDED.contact_num").
		Set("service_type = EXCLUDED.service_type").
		Set("schedule_date = EXCLUDED.schedule_date").
		Set("schedule_time = EXCLUDED.schedule_time").
		Set("payment = EXCLUDED.payment").
		Set("car = EXCLUDED.car").
		Set("raw_json = EXCLUDED.raw_json").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", user.UID, err)
	}
	return nil
}

// FindUserBy looks a profile up by an identifier column. Only email and
// contact_num are queryable; anything else is a programmer error.
func (p *Postgres) FindUserBy(ctx context.Context, field, value string) (*schema.User, error) {
	switch field {
	case "email", "contact_num":
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, field)
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	row := new(UserRow)
	err := p.db.NewSelect().
		Model(row).
		Where("? = ?", bun.Ident(field), value).
		Order("updated_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by %s: %w", field, err)
	}
	return row.toUser(), nil
}

func (r *UserRow) toUser() *schema.User {
	return &schema.User{
		UID:          r.UID,
		Name:         r.Name,
		Email:        r.Email,
		Address:      r.Address,
		ContactNum:   r.ContactNum,
		ServiceType:  r.ServiceType,
		ScheduleDate: r.ScheduleDate,
		ScheduleTime: r.ScheduleTime,
		Payment:      r.Payment,
		Car:          r.Car,
	}
}

// LoadRole returns the persisted message list for (session, role), nil when
// no row exists yet.
func (p *Postgres) LoadRole(ctx context.Context, sessionID, role string) ([]string, error) {
	row := new(HistoryRow)
	err := p.db.NewSelect().
		Model(row).
		Where("session_id = ?", sessionID).
		Where("role = ?", role).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load history role %s/%s: %w", sessionID, role, err)
	}
	return row.Content, nil
}

// SaveRole writes the full combined message list for (session, role),
// inserting the row on first write.
func (p *Postgres) SaveRole(ctx context.Context, sessionID, role string, messages []string) error {
	row := &HistoryRow{
		SessionID: sessionID,
		Role:      role,
		Content:   messages,
	}

	existing := new(HistoryRow)
	err := p.db.NewSelect().
		Model(existing).
		Column("id").
		Where("session_id = ?", sessionID).
		Where("role = ?", role).
		Limit(1).
		Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := p.db.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("insert history role %s/%s: %w", sessionID, role, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("locate history role %s/%s: %w", sessionID, role, err)
	default:
		if _, err := p.db.NewUpdate().
			Model(row).
			Column("content").
			Where("id = ?", existing.ID).
			Exec(ctx); err != nil {
			return fmt.Errorf("update history role %s/%s: %w", sessionID, role, err)
		}
		return nil
	}
}

// LoadAll returns all role rows for the session, oldest row first.
func (p *Postgres) LoadAll(ctx context.Context, sessionID string) ([]session.RoleMessages, error) {
	var rows []HistoryRow
	err := p.db.NewSelect().
		Model(&rows).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load history %s: %w", sessionID, err)
	}

	out := make([]session.RoleMessages, 0, len(rows))
	for _, row := range rows {
		out = append(out, session.RoleMessages{
			Role:     row.Role,
			Messages: append([]string(nil), row.Content...),
		})
	}
	return out, nil
}

func (p *Postgres) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := p.db.NewDelete().
		Model((*HistoryRow)(nil)).
		Where("session_id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete history %s: %w", sessionID, err)
	}
	return nil
}
