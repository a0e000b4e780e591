package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tuannm99/novaorm"
)

// DefaultUser is inserted by Seed.
var DefaultUser = User{
	ID:       1,
	Name:     "John Doe",
	Email:    "john.doe@example.com",
	Password: "password",
}

type Service struct {
	db     *novaorm.DB
	logger *slog.Logger
}

func NewService(db *novaorm.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, logger: logger}
}

// Seed registers the users table and inserts DefaultUser. A store that
// already holds the row is accepted.
func (s *Service) Seed(ctx context.Context) error {
	if err := s.db.RegisterTable(ctx, Users); err != nil {
		return err
	}
	_, err := novaorm.Insert(s.db, DefaultUser).Execute(ctx)
	if errors.Is(err, novaorm.ErrConstraintViolation) {
		s.logger.Info("seed user already present", "id", DefaultUser.ID)
		return nil
	}
	return err
}

// UserNames returns the name of every user, fetching only that column.
func (s *Service) UserNames(ctx context.Context) ([]string, error) {
	recs, err := novaorm.Query[User](s.db).
		Select(SelectedUsers().Name().Projection()).
		Execute(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(recs))
	for _, r := range recs {
		name, _ := UserName.Get(r)
		names = append(names, name)
	}
	return names, nil
}
