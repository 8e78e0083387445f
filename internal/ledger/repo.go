package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mianhamzaathar/AIFORGE/pkg/db/models"
	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
)

// EntryFilter narrows a descending history scan.
type EntryFilter struct {
	// BeforeSequence excludes entries at or after this sequence when > 0.
	BeforeSequence int64
	Since          *time.Time
	// Limit of 0 returns every matching entry.
	Limit int
}

// KindTotal is the summed absolute debit amount for one kind.
type KindTotal struct {
	Kind  enums.LedgerKind
	Total int64
}

// Repository manages persistence for accounts balances and ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
	LockAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
	CompareAndSwapBalance(ctx context.Context, accountID uuid.UUID, expectedVersion, balance int64) (bool, error)
	CreateEntry(ctx context.Context, entry *models.LedgerEntry) error
	FindEntryByReference(ctx context.Context, reference string) (*models.LedgerEntry, error)
	ListEntries(ctx context.Context, accountID uuid.UUID, filter EntryFilter) ([]models.LedgerEntry, error)
	ListEntriesAscending(ctx context.Context, accountID uuid.UUID, afterSequence, throughSequence int64, limit int) ([]models.LedgerEntry, error)
	SumDebitsByKind(ctx context.Context, accountID uuid.UUID, since *time.Time) ([]KindTotal, error)
	ListAccountIDs(ctx context.Context, afterID uuid.UUID, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindAccount returns nil, nil when the account does not exist.
func (r *repository) FindAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("id = ?", accountID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// LockAccount reads the account with SELECT ... FOR UPDATE. It must run
// inside a transaction to hold the row lock.
func (r *repository) LockAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", accountID).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// CompareAndSwapBalance writes balance and bumps the version only when the
// stored version still equals expectedVersion.
func (r *repository) CompareAndSwapBalance(ctx context.Context, accountID uuid.UUID, expectedVersion, balance int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ? AND version = ?", accountID, expectedVersion).
		Updates(map[string]any{
			"balance":    balance,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CreateEntry(ctx context.Context, entry *models.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindEntryByReference(ctx context.Context, reference string) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) ListEntries(ctx context.Context, accountID uuid.UUID, filter EntryFilter) ([]models.LedgerEntry, error) {
	query := r.db.WithContext(ctx).Where("account_id = ?", accountID)
	if filter.BeforeSequence > 0 {
		query = query.Where("sequence < ?", filter.BeforeSequence)
	}
	if filter.Since != nil {
		query = query.Where("created_at >= ?", filter.Since.UTC())
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var entries []models.LedgerEntry
	if err := query.Order("sequence DESC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) ListEntriesAscending(ctx context.Context, accountID uuid.UUID, afterSequence, throughSequence int64, limit int) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND sequence > ? AND sequence <= ?", accountID, afterSequence, throughSequence).
		Order("sequence ASC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) SumDebitsByKind(ctx context.Context, accountID uuid.UUID, since *time.Time) ([]KindTotal, error) {
	query := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("kind, CAST(SUM(-amount) AS BIGINT) AS total").
		Where("account_id = ? AND amount < 0", accountID)
	if since != nil {
		query = query.Where("created_at >= ?", since.UTC())
	}

	var totals []KindTotal
	if err := query.Group("kind").Scan(&totals).Error; err != nil {
		return nil, err
	}
	return totals, nil
}

// ListAccountIDs pages account ids in ascending order for batch jobs.
func (r *repository) ListAccountIDs(ctx context.Context, afterID uuid.UUID, limit int) ([]uuid.UUID, error) {
	query := r.db.WithContext(ctx).Model(&models.Account{})
	if afterID != uuid.Nil {
		query = query.Where("id > ?", afterID)
	}

	var ids []uuid.UUID
	if err := query.Order("id ASC").Limit(limit).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
