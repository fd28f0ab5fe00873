package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PersistentLogins stores remember-me token hashes. Records are keyed by the
// token HMAC; the raw token never reaches the database.
type PersistentLogins interface {
	Insert(ctx context.Context, record *PersistentLogin) error
	Find(ctx context.Context, tokenHash string, now time.Time) (*PersistentLogin, error)
	Delete(ctx context.Context, userID uuid.UUID, tokenHash string) (bool, error)
	DeleteForUser(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	Rotate(ctx context.Context, userID uuid.UUID, oldHash string, next *PersistentLogin) error
	CountForUser(ctx context.Context, userID uuid.UUID) (int, error)
}

type persistentLogins struct {
	db *bun.DB
}

var _ PersistentLogins = (*persistentLogins)(nil)

func NewPersistentLoginsRepository(db *bun.DB) PersistentLogins {
	return &persistentLogins{db: db}
}

func (p *persistentLogins) Insert(ctx context.Context, record *PersistentLogin) error {
	return p.insertTx(ctx, p.db, record)
}

func (p *persistentLogins) insertTx(ctx context.Context, tx bun.IDB, record *PersistentLogin) error {
	_, err := tx.NewInsert().Model(record).Exec(ctx)
	return storageError(err, "failed to insert persistent login")
}

// Find returns the live record for tokenHash. Expired rows are treated as
// missing even before a sweep removes them.
func (p *persistentLogins) Find(ctx context.Context, tokenHash string, now time.Time) (*PersistentLogin, error) {
	record := &PersistentLogin{}
	err := p.db.NewSelect().
		Model(record).
		Where("?TableAlias.token_hash = ?", tokenHash).
		Where("?TableAlias.expiry > ?", now.Unix()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"token_hash": "<redacted>"})
		}
		return nil, storageError(err, "failed to load persistent login")
	}
	return record, nil
}

// Delete removes the record for tokenHash. A nil userID matches any owner.
func (p *persistentLogins) Delete(ctx context.Context, userID uuid.UUID, tokenHash string) (bool, error) {
	return p.deleteTx(ctx, p.db, tokenHash, userID)
}

// deleteTx removes the record for tokenHash, scoped to userID unless it is nil
func (p *persistentLogins) deleteTx(ctx context.Context, tx bun.IDB, tokenHash string, userID uuid.UUID) (bool, error) {
	q := tx.NewDelete().
		Model((*PersistentLogin)(nil)).
		Where("token_hash = ?", tokenHash)
	if userID != uuid.Nil {
		q = q.Where("user_id = ?", userID)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return false, storageError(err, "failed to delete persistent login")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageError(err, "failed to delete persistent login")
	}
	return n > 0, nil
}

func (p *persistentLogins) DeleteForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := p.db.NewDelete().
		Model((*PersistentLogin)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return 0, storageError(err, "failed to delete user persistent logins")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteExpired removes every record with expiry <= now and reports how many
// were removed.
func (p *persistentLogins) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := p.db.NewDelete().
		Model((*PersistentLogin)(nil)).
		Where("expiry <= ?", now.Unix()).
		Exec(ctx)
	if err != nil {
		return 0, storageError(err, "failed to sweep persistent logins")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Rotate replaces the (userID, oldHash) record with next in one
// transaction. When the old record is already gone, another request won the
// race and nothing is inserted.
func (p *persistentLogins) Rotate(ctx context.Context, userID uuid.UUID, oldHash string, next *PersistentLogin) error {
	err := p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		removed, err := p.deleteTx(ctx, tx, oldHash, userID)
		if err != nil {
			return err
		}
		if !removed {
			return ErrTokenExpiredOrUnknown
		}
		return p.insertTx(ctx, tx, next)
	})

	if err == nil || errors.Is(err, ErrTokenExpiredOrUnknown) || IsStorageError(err) {
		return err
	}
	return storageError(err, "persistent login rotation failed")
}

func (p *persistentLogins) CountForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := p.db.NewSelect().
		Model((*PersistentLogin)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Count(ctx)
	return n, storageError(err, "failed to count persistent logins")
}
