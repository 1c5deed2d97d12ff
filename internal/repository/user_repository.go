package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sjperalta/fintera-matching-api/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateEmail is returned when the email is already registered
	ErrDuplicateEmail = errors.New("a member with this email already exists")
	// ErrPositionTaken is returned when the placement slot under a parent is occupied
	ErrPositionTaken = errors.New("placement position is already taken")
)

// maxTreeDepth bounds recursive walks of the placement tree
const maxTreeDepth = 1000

// UserRepository defines the interface for member data access
type UserRepository interface {
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	List(ctx context.Context, query *ListQuery) ([]models.User, int64, error)
	FindAdmins(ctx context.Context) ([]models.User, error)

	// Placement tree
	FindChild(ctx context.Context, parentID uint, leg models.Leg) (*models.User, error)
	FindChildren(ctx context.Context, parentIDs []uint) ([]models.User, error)
	FindPlacementPath(ctx context.Context, memberID uint) ([]models.User, error)
	DownlineIDs(ctx context.Context, memberID uint) ([]uint, error)
	CountDownline(ctx context.Context, memberID uint) (total int64, active int64, err error)
	ListDownline(ctx context.Context, memberID uint, query *ListQuery) ([]models.User, int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

const downlineCTE = `WITH RECURSIVE downline AS (
	SELECT id, 1 AS depth FROM users WHERE parent_id = ?
	UNION ALL
	SELECT u.id, d.depth + 1 FROM users u JOIN downline d ON u.parent_id = d.id WHERE d.depth < ?
) SELECT id FROM downline`

const placementPathCTE = `WITH RECURSIVE chain AS (
	SELECT id, parent_id, 0 AS depth FROM users WHERE id = ?
	UNION ALL
	SELECT u.id, u.parent_id, c.depth + 1 FROM users u JOIN chain c ON u.id = c.parent_id WHERE c.depth < ?
)
SELECT users.* FROM users JOIN chain ON users.id = chain.id ORDER BY chain.depth ASC`

func (r *userRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("discarded_at IS NULL").
		First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = LOWER(?) AND discarded_at IS NULL", email).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicateKeyError(err, "idx_users_parent_position") {
			return ErrPositionTaken
		}
		if isDuplicateKeyError(err, "idx_users_email") {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func isDuplicateKeyError(err error, constraintName string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraintName
	}
	return false
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepository) List(ctx context.Context, query *ListQuery) ([]models.User, int64, error) {
	db := r.db.WithContext(ctx).Model(&models.User{}).Where("discarded_at IS NULL")
	return r.paginate(r.filter(db, query), query)
}

func (r *userRepository) filter(db *gorm.DB, query *ListQuery) *gorm.DB {
	if query.Search != "" {
		search := "%" + query.Search + "%"
		db = db.Where("full_name ILIKE ? OR email ILIKE ? OR phone ILIKE ?", search, search, search)
	}
	if query.Filters["role"] != "" {
		db = db.Where("role = ?", query.Filters["role"])
	}
	if query.Filters["status"] != "" {
		db = db.Where("status = ?", query.Filters["status"])
	}
	return db
}

func (r *userRepository) paginate(db *gorm.DB, query *ListQuery) ([]models.User, int64, error) {
	var users []models.User
	var total int64

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	switch query.SortBy {
	case "full_name", "email", "created_at", "status":
		order := query.SortBy
		if query.SortDir == "desc" {
			order += " DESC"
		}
		db = db.Order(order)
	default:
		db = db.Order("created_at DESC")
	}

	if query.PerPage > 0 {
		db = db.Offset(query.Offset()).Limit(query.PerPage)
	}

	err := db.Find(&users).Error
	return users, total, err
}

func (r *userRepository) FindAdmins(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("role = ? AND status = ? AND discarded_at IS NULL", models.RoleAdmin, models.StatusActive).
		Find(&users).Error
	return users, err
}

// FindChild returns the member placed directly under parentID on leg
func (r *userRepository) FindChild(ctx context.Context, parentID uint, leg models.Leg) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("parent_id = ? AND position = ?", parentID, leg).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindChildren(ctx context.Context, parentIDs []uint) ([]models.User, error) {
	var users []models.User
	if len(parentIDs) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).
		Where("parent_id IN ?", parentIDs).
		Find(&users).Error
	return users, err
}

// FindPlacementPath returns memberID followed by its placement ancestors up to the root
func (r *userRepository) FindPlacementPath(ctx context.Context, memberID uint) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Raw(placementPathCTE, memberID, maxTreeDepth).Scan(&users).Error
	return users, err
}

func (r *userRepository) DownlineIDs(ctx context.Context, memberID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Raw(downlineCTE, memberID, maxTreeDepth).Scan(&ids).Error
	return ids, err
}

func (r *userRepository) CountDownline(ctx context.Context, memberID uint) (int64, int64, error) {
	var result struct {
		Total  int64
		Active int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("COUNT(*) AS total, COUNT(*) FILTER (WHERE status = ? AND discarded_at IS NULL) AS active", models.StatusActive).
		Where("id IN (?)", gorm.Expr(downlineCTE, memberID, maxTreeDepth)).
		Scan(&result).Error
	return result.Total, result.Active, err
}

func (r *userRepository) ListDownline(ctx context.Context, memberID uint, query *ListQuery) ([]models.User, int64, error) {
	db := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id IN (?)", gorm.Expr(downlineCTE, memberID, maxTreeDepth))
	return r.paginate(r.filter(db, query), query)
}
