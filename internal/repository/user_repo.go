package repository

import (
	"context"
	"strings"
	"time"

	"docshare/internal/domain"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

type userModel struct {
	ID              int64      `gorm:"column:id;primaryKey"`
	FirstName       string     `gorm:"column:first_name"`
	LastName        string     `gorm:"column:last_name"`
	Email           string     `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash    string     `gorm:"column:password_hash;not null"`
	Role            string     `gorm:"column:role;not null"`
	Phone           *string    `gorm:"column:phone"`
	Affiliation     *string    `gorm:"column:affiliation"`
	Department      *string    `gorm:"column:department"`
	EmailVerified   bool       `gorm:"column:email_verified;not null;default:false"`
	EmailVerifiedAt *time.Time `gorm:"column:email_verified_at"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

func (userModel) TableName() string { return "users" }

// Models lists the tables owned by this package, in migration order.
func Models() []any {
	return []any{&userModel{}, &domain.RefreshToken{}}
}

func toDomainUser(m userModel) *domain.User {
	return &domain.User{
		ID:              m.ID,
		FirstName:       m.FirstName,
		LastName:        m.LastName,
		Email:           m.Email,
		PasswordHash:    m.PasswordHash,
		Role:            domain.UserRole(m.Role),
		Phone:           deref(m.Phone),
		Affiliation:     deref(m.Affiliation),
		Department:      deref(m.Department),
		EmailVerified:   m.EmailVerified,
		EmailVerifiedAt: m.EmailVerifiedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func toUserModel(u *domain.User) userModel {
	return userModel{
		ID:              u.ID,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Email:           NormalizeEmail(u.Email),
		PasswordHash:    u.PasswordHash,
		Role:            string(u.Role),
		Phone:           nullable(u.Phone),
		Affiliation:     nullable(u.Affiliation),
		Department:      nullable(u.Department),
		EmailVerified:   u.EmailVerified,
		EmailVerifiedAt: u.EmailVerifiedAt,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// NormalizeEmail trims and lowercases an address the way it is stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts u and fills in generated fields. A second account with the same
// email fails with ErrDuplicateEmail.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	m := toUserModel(u)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	*u = *toDomainUser(m)
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var m userModel
	tx := r.db.WithContext(ctx).
		Where("email = ?", NormalizeEmail(email)).
		First(&m)
	if tx.Error != nil {
		return nil, tx.Error
	}
	return toDomainUser(m), nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var m userModel
	tx := r.db.WithContext(ctx).First(&m, id)
	if tx.Error != nil {
		return nil, tx.Error
	}
	return toDomainUser(m), nil
}

// Update persists the mutable fields of u.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	m := toUserModel(u)
	m.UpdatedAt = time.Now().UTC()
	tx := r.db.WithContext(ctx).
		Model(&userModel{ID: u.ID}).
		Select("first_name", "last_name", "password_hash", "role", "phone", "affiliation",
			"department", "email_verified", "email_verified_at", "updated_at").
		Updates(&m)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	u.UpdatedAt = m.UpdatedAt
	return nil
}

func nullable(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
