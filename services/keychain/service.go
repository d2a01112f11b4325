package keychain

import (
	"context"
	"database/sql"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("keychain")

// Service stores portal credentials keyed by (namespace, id) so they
// are typed once and reused across sessions. Session cookies are
// deliberately not persisted, they live on the in-memory user record
// for the process lifetime only.
type Service struct {
	db *sql.DB
}

func NewService(database *sql.DB) Service {
	return Service{db: database}
}

type UsernamePassword struct {
	Username string
	Password string
}

func (s Service) SetUsernamePassword(ctx context.Context, namespace, id string, key UsernamePassword) error {
	ctx, span := tracer.Start(ctx, "keychain:SetUsernamePassword")
	defer span.End()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO username_password (namespace, id, username, password)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, id) DO UPDATE
		SET username = excluded.username, password = excluded.password`,
		namespace, id, key.Username, key.Password,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write credentials")
		return err
	}
	return nil
}

// GetUsernamePassword returns (zero, false, nil) when no credentials
// exist under the given key.
func (s Service) GetUsernamePassword(ctx context.Context, namespace, id string) (UsernamePassword, bool, error) {
	ctx, span := tracer.Start(ctx, "keychain:GetUsernamePassword")
	defer span.End()

	row := s.db.QueryRowContext(
		ctx,
		`SELECT username, password FROM username_password
		WHERE namespace = ? AND id = ?`,
		namespace, id,
	)

	var key UsernamePassword
	err := row.Scan(&key.Username, &key.Password)
	if err == sql.ErrNoRows {
		return UsernamePassword{}, false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read credentials")
		return UsernamePassword{}, false, err
	}
	return key, true, nil
}

// ListUsernamePassword returns the ids stored under a namespace.
func (s Service) ListUsernamePassword(ctx context.Context, namespace string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "keychain:ListUsernamePassword")
	defer span.End()

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id FROM username_password WHERE namespace = ? ORDER BY id`,
		namespace,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list credentials")
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		err := rows.Scan(&id)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to list credentials")
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s Service) DeleteUsernamePassword(ctx context.Context, namespace, id string) error {
	ctx, span := tracer.Start(ctx, "keychain:DeleteUsernamePassword")
	defer span.End()

	_, err := s.db.ExecContext(
		ctx,
		`DELETE FROM username_password WHERE namespace = ? AND id = ?`,
		namespace, id,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete credentials")
		return err
	}
	return nil
}
