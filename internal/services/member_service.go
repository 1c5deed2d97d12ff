package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sjperalta/fintera-matching-api/internal/models"
	"github.com/sjperalta/fintera-matching-api/internal/repository"
	"github.com/sjperalta/fintera-matching-api/pkg/logger"
)

const (
	// DefaultTreeDepth is the genealogy depth returned when none is requested
	DefaultTreeDepth = 3
	// MaxTreeDepth caps the genealogy depth of one request
	MaxTreeDepth = 10

	maxPlacementRetries = 5
	maxSpilloverDepth   = 1000
)

// RegisterInput is a new member signing up under a sponsor
type RegisterInput struct {
	Email     string
	Password  string
	FullName  string
	Phone     string
	SponsorID *uint
	Leg       models.Leg
}

// MemberService manages members and their placement in the binary tree
type MemberService struct {
	userRepo        repository.UserRepository
	notificationSvc *NotificationService
	emailSvc        *EmailService
	auditSvc        *AuditService
	dispatcher      Dispatcher
}

func NewMemberService(userRepo repository.UserRepository, notificationSvc *NotificationService, emailSvc *EmailService, auditSvc *AuditService, dispatcher Dispatcher) *MemberService {
	return &MemberService{
		userRepo:        userRepo,
		notificationSvc: notificationSvc,
		emailSvc:        emailSvc,
		auditSvc:        auditSvc,
		dispatcher:      dispatcher,
	}
}

// FindByID returns a member
func (s *MemberService) FindByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

// Register creates a member and places them on the requested leg of the
// sponsor, spilling over to the outermost free slot of that leg. A member
// without sponsor becomes a tree root.
func (s *MemberService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Email == "" || input.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	if existing, err := s.userRepo.FindByEmail(ctx, input.Email); err == nil && existing != nil {
		return nil, ErrDuplicateEmail
	} else if err != nil && !isNotFound(err) {
		return nil, err
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:             input.Email,
		EncryptedPassword: hash,
		FullName:          strings.TrimSpace(input.FullName),
		Phone:             strings.TrimSpace(input.Phone),
		Role:              models.RoleUser,
		Status:            models.StatusActive,
	}

	var parent *models.User
	if input.SponsorID == nil {
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, err
		}
	} else {
		if !input.Leg.IsBinary() {
			return nil, ErrInvalidLeg
		}
		sponsor, err := s.userRepo.FindByID(ctx, *input.SponsorID)
		if err != nil {
			return nil, fmt.Errorf("sponsor %d: %w", *input.SponsorID, notFound(err))
		}
		if !sponsor.IsActive() {
			return nil, fmt.Errorf("%w: sponsor is not active", ErrInvalidInput)
		}
		user.SponsorID = &sponsor.ID

		parent, err = s.place(ctx, user, sponsor, input.Leg)
		if err != nil {
			return nil, err
		}
	}

	logger.Info("member registered", "user_id", user.ID, "sponsor_id", user.SponsorID, "parent_id", user.ParentID, "leg", user.PlacementLeg())
	s.afterRegister(ctx, user, parent)
	return user, nil
}

// place inserts user under the outermost free slot of leg below sponsor,
// retrying when a concurrent registration takes the slot first.
func (s *MemberService) place(ctx context.Context, user *models.User, sponsor *models.User, leg models.Leg) (*models.User, error) {
	for attempt := 0; attempt < maxPlacementRetries; attempt++ {
		parent, err := s.outermost(ctx, sponsor, leg)
		if err != nil {
			return nil, err
		}
		position := leg
		user.ParentID = &parent.ID
		user.Position = &position

		err = s.userRepo.Create(ctx, user)
		if err == nil {
			return parent, nil
		}
		if !errors.Is(err, ErrPositionTaken) {
			return nil, err
		}
		user.ID = 0
		logger.Debug("placement slot taken, retrying", "parent_id", parent.ID, "leg", leg, "attempt", attempt+1)
	}
	return nil, ErrPositionTaken
}

// outermost follows leg down from root until a member with a free slot on leg
func (s *MemberService) outermost(ctx context.Context, root *models.User, leg models.Leg) (*models.User, error) {
	current := root
	for depth := 0; depth < maxSpilloverDepth; depth++ {
		child, err := s.userRepo.FindChild(ctx, current.ID, leg)
		if err != nil {
			if isNotFound(err) {
				return current, nil
			}
			return nil, err
		}
		current = child
	}
	return nil, fmt.Errorf("spillover exceeded %d levels under member %d", maxSpilloverDepth, root.ID)
}

func (s *MemberService) afterRegister(ctx context.Context, user, parent *models.User) {
	s.auditSvc.Record(ctx, Actor{ID: user.ID}, models.AuditActionCreate, models.AuditEntityMember, user.ID,
		fmt.Sprintf("Member %s registered, sponsor %v, leg %s", user.Email, derefID(user.SponsorID), user.PlacementLeg()))

	if parent == nil {
		return
	}

	newMember := *user
	placedUnder := *parent
	s.dispatcher.EnqueueAsync(func(ctx context.Context) error {
		message := fmt.Sprintf("%s joined your %s leg.", newMember.FullName, newMember.PlacementLeg())
		if err := s.notificationSvc.NotifyUser(ctx, placedUnder.ID, "New team member", message, models.NotificationTypeNewMember); err != nil {
			return err
		}
		if newMember.SponsorID != nil && *newMember.SponsorID != placedUnder.ID {
			if err := s.notificationSvc.NotifyUser(ctx, *newMember.SponsorID, "New team member", message, models.NotificationTypeNewMember); err != nil {
				return err
			}
		}
		return s.emailSvc.SendWelcome(ctx, &newMember, &placedUnder)
	})
}

func derefID(id *uint) uint {
	if id == nil {
		return 0
	}
	return *id
}

// Tree returns the binary genealogy below rootID, depth levels deep
func (s *MemberService) Tree(ctx context.Context, rootID uint, depth int) (*models.TreeNode, error) {
	if depth <= 0 {
		depth = DefaultTreeDepth
	}
	if depth > MaxTreeDepth {
		depth = MaxTreeDepth
	}

	root, err := s.FindByID(ctx, rootID)
	if err != nil {
		return nil, err
	}

	rootNode := treeNode(root)
	level := map[uint]*models.TreeNode{root.ID: rootNode}

	for d := 0; d < depth && len(level) > 0; d++ {
		parentIDs := make([]uint, 0, len(level))
		for id := range level {
			parentIDs = append(parentIDs, id)
		}

		children, err := s.userRepo.FindChildren(ctx, parentIDs)
		if err != nil {
			return nil, err
		}

		next := make(map[uint]*models.TreeNode, len(children))
		for i := range children {
			child := &children[i]
			if child.ParentID == nil {
				continue
			}
			parentNode, ok := level[*child.ParentID]
			if !ok {
				continue
			}
			node := treeNode(child)
			switch child.PlacementLeg() {
			case models.LegLeft:
				parentNode.Left = node
			case models.LegRight:
				parentNode.Right = node
			default:
				continue
			}
			next[child.ID] = node
		}
		level = next
	}

	return rootNode, nil
}

func treeNode(u *models.User) *models.TreeNode {
	return &models.TreeNode{
		ID:       u.ID,
		FullName: u.FullName,
		Status:   u.Status,
		Position: u.PlacementLeg(),
	}
}

// Downline lists every member below memberID
func (s *MemberService) Downline(ctx context.Context, memberID uint, query *repository.ListQuery) ([]models.User, int64, error) {
	if _, err := s.FindByID(ctx, memberID); err != nil {
		return nil, 0, err
	}
	return s.userRepo.ListDownline(ctx, memberID, query)
}

// IsInDownline reports whether memberID sits anywhere below uplineID
func (s *MemberService) IsInDownline(ctx context.Context, uplineID, memberID uint) (bool, error) {
	path, err := s.userRepo.FindPlacementPath(ctx, memberID)
	if err != nil {
		return false, err
	}
	for i := 1; i < len(path); i++ {
		if path[i].ID == uplineID {
			return true, nil
		}
	}
	return false, nil
}
