package session

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// credentialRecordID pins the persisted session to a single row; the store
// never holds more than one session per device.
var credentialRecordID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

var _ CredentialStore = (*BunStore)(nil)

// BunStore persists the session credential in a local SQLite database via
// Bun, surviving process restarts.
type BunStore struct {
	db     *bun.DB
	repo   repository.Repository[*Credential]
	logger Logger
}

// NewBunStore creates a credential store backed by the given database.
func NewBunStore(db *bun.DB) *BunStore {
	repo := repository.NewRepository[*Credential](db, repository.ModelHandlers[*Credential]{
		NewRecord: func() *Credential { return &Credential{} },
		GetID: func(c *Credential) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *Credential, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &BunStore{
		db:     db,
		repo:   repo,
		logger: defLogger{},
	}
}

// WithLogger overrides the store logger.
func (s *BunStore) WithLogger(logger Logger) *BunStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// CreateTables bootstraps the credential schema. Safe to call on every
// start.
func CreateTables(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().
		Model((*Credential)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create session credential table")
	}
	return nil
}

// Load returns the stored credential, or (nil, nil) when nothing is
// stored.
func (s *BunStore) Load(ctx context.Context) (*Credential, error) {
	cred, err := s.repo.GetByID(ctx, credentialRecordID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load session credential")
	}
	return cred, nil
}

// Save upserts the singleton credential row.
func (s *BunStore) Save(ctx context.Context, cred *Credential) error {
	if cred == nil {
		return s.Clear(ctx)
	}

	record := cred.Clone()
	record.ID = credentialRecordID

	if _, err := s.repo.Upsert(ctx, record); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist session credential")
	}
	return nil
}

// Clear removes any stored credential.
func (s *BunStore) Clear(ctx context.Context) error {
	if _, err := s.db.NewDelete().
		Model((*Credential)(nil)).
		Where("1 = 1").
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear session credential")
	}
	return nil
}
