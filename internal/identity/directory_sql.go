package identity

import (
	"context"
	"errors"
	"fmt"

	sqldb "tutorhub/pkg/db/sql"
	"tutorhub/pkg/model"

	"gorm.io/gorm"
)

type sqlDirectory struct {
	db *gorm.DB
}

func NewSQLDirectory(db *gorm.DB) Directory {
	return &sqlDirectory{db: db}
}

func (d *sqlDirectory) GetUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := sqldb.Conn(ctx, d.db).Where("id = ?", id).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}
