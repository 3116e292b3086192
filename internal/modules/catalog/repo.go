package catalog

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	ErrTourNotFound = errors.New("tour not found")
	ErrUserNotFound = errors.New("user not found")
)

type Repo struct{ db *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{db: db} }

func (r *Repo) GetTour(ctx context.Context, id string) (Tour, error) {
	var t Tour
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Tour{}, ErrTourNotFound
		}
		return Tour{}, err
	}
	return t, nil
}

func (r *Repo) GetUser(ctx context.Context, id string) (User, error) {
	var u User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return u, nil
}

// TourVendorID resolves a tour to its owning vendor.
func (r *Repo) TourVendorID(ctx context.Context, tourID string) (string, error) {
	t, err := r.GetTour(ctx, tourID)
	if err != nil {
		return "", err
	}
	return t.VendorID, nil
}
