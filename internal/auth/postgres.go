package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"clubapi.org/internal/ids"
)

var (
	_ UserStore   = (*PGUserStore)(nil)
	_ TokenLedger = (*PGTokenLedger)(nil)
)

// PGUserStore implements UserStore using PostgreSQL.
type PGUserStore struct {
	db *sql.DB
}

func NewPGUserStore(db *sql.DB) *PGUserStore {
	return &PGUserStore{db: db}
}

const userColumns = `id, username, email, first_name, last_name, display_name,
	 password_hash, role, age_category_id, club_branch_id, player_level_id,
	 created_at, updated_at`

func (s *PGUserStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, username, email, first_name, last_name, display_name,
		 password_hash, role, age_category_id, club_branch_id, player_level_id)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		u.ID, u.Username, u.Email, u.FirstName, u.LastName, u.DisplayName,
		u.PasswordHash, string(u.Role), u.AgeCategoryID, u.ClubBranchID, u.PlayerLevelID,
	)
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicateIdentity
	}
	return err
}

func (s *PGUserStore) Find(ctx context.Context, id string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id))
}

func (s *PGUserStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where username=$1`, username))
}

func (s *PGUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, email))
}

func (s *PGUserStore) scanUser(row *sql.Row) (*User, error) {
	var (
		u    User
		role string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName,
		&u.DisplayName, &u.PasswordHash, &role, &u.AgeCategoryID,
		&u.ClubBranchID, &u.PlayerLevelID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	parsed, err := ParseRole(role)
	if err != nil {
		return nil, err
	}
	u.Role = parsed
	return &u, nil
}

// PGTokenLedger implements TokenLedger using PostgreSQL. Rows are flagged
// rather than deleted so the table stays an append-only audit trail.
type PGTokenLedger struct {
	db *sql.DB
}

func NewPGTokenLedger(db *sql.DB) *PGTokenLedger {
	return &PGTokenLedger{db: db}
}

const tokenColumns = `id, user_id, token, kind, revoked, expired, created_at`

func (l *PGTokenLedger) Record(ctx context.Context, userID, token string) (*IssuedToken, error) {
	rec := &IssuedToken{
		ID:     ids.New(),
		UserID: userID,
		Token:  token,
		Kind:   KindBearer,
	}
	_, err := l.db.ExecContext(ctx,
		`insert into issued_tokens(id, user_id, token, kind, revoked, expired)
		 values($1,$2,$3,$4,false,false)`,
		rec.ID, rec.UserID, rec.Token, string(rec.Kind),
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (l *PGTokenLedger) FindUsable(ctx context.Context, token string) (*IssuedToken, error) {
	return l.scanToken(l.db.QueryRowContext(ctx,
		`select `+tokenColumns+` from issued_tokens
		 where token=$1 and revoked=false and expired=false`, token))
}

func (l *PGTokenLedger) FindByToken(ctx context.Context, token string) (*IssuedToken, error) {
	return l.scanToken(l.db.QueryRowContext(ctx,
		`select `+tokenColumns+` from issued_tokens where token=$1`, token))
}

func (l *PGTokenLedger) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := l.db.ExecContext(ctx,
		`update issued_tokens set revoked=true, expired=true
		 where user_id=$1 and revoked=false and expired=false`, userID)
	return err
}

func (l *PGTokenLedger) Revoke(ctx context.Context, id string) error {
	_, err := l.db.ExecContext(ctx,
		`update issued_tokens set revoked=true, expired=true where id=$1`, id)
	return err
}

func (l *PGTokenLedger) scanToken(row *sql.Row) (*IssuedToken, error) {
	var (
		t    IssuedToken
		kind string
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Token, &kind, &t.Revoked, &t.Expired, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	t.Kind = TokenKind(kind)
	return &t, nil
}

// isUniqueViolation matches the PostgreSQL unique_violation SQLSTATE.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
