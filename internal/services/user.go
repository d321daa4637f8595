package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/chronochess/progress/internal/database"
	"github.com/chronochess/progress/internal/models"
)

type UserService struct {
	db *database.DB
}

func NewUserService(db *database.DB) *UserService {
	return &UserService{db: db}
}

// CreateUser creates a new player account.
func (s *UserService) CreateUser(req *models.CreateUserRequest) (*models.User, error) {
	if exists, err := s.UsernameExists(req.Username); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("username already exists")
	}

	if exists, err := s.EmailExists(req.Email); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("email already exists")
	}

	user := &models.User{
		Username:    req.Username,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		IsActive:    true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := user.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO users (username, email, password_hash, display_name, created_at, updated_at, is_active)
		VALUES (:username, :email, :password_hash, :display_name, :created_at, :updated_at, :is_active)
	`

	result, err := s.db.NamedExec(query, user)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get user ID: %w", err)
	}
	user.ID = int(id)

	return user, nil
}

// AuthenticateUser validates login credentials and returns the user.
func (s *UserService) AuthenticateUser(req *models.LoginRequest) (*models.User, error) {
	user, err := s.GetUserByUsername(req.Username)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	if !user.CheckPassword(req.Password) {
		return nil, fmt.Errorf("invalid credentials")
	}

	if !user.IsActive {
		return nil, fmt.Errorf("account is disabled")
	}

	if err := s.UpdateLastLogin(user.ID); err != nil {
		// Non-fatal, the login still counts.
		fmt.Printf("Warning: failed to update last login for user %d: %v\n", user.ID, err)
	}

	return user, nil
}

func (s *UserService) GetUserByID(id int) (*models.User, error) {
	var user models.User
	query := `SELECT id, username, email, display_name, created_at, updated_at, last_login_at, is_active
			  FROM users WHERE id = ?`

	err := s.db.Get(&user, query, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	} else if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

func (s *UserService) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	query := `SELECT id, username, email, password_hash, display_name, created_at, updated_at, last_login_at, is_active
			  FROM users WHERE username = ?`

	err := s.db.Get(&user, query, username)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found")
	} else if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

func (s *UserService) UsernameExists(username string) (bool, error) {
	var count int
	err := s.db.Get(&count, `SELECT COUNT(*) FROM users WHERE username = ?`, username)
	return count > 0, err
}

func (s *UserService) EmailExists(email string) (bool, error) {
	var count int
	err := s.db.Get(&count, `SELECT COUNT(*) FROM users WHERE email = ?`, email)
	return count > 0, err
}

func (s *UserService) UpdateLastLogin(userID int) error {
	_, err := s.db.Exec(`UPDATE users SET last_login_at = ? WHERE id = ?`, time.Now(), userID)
	return err
}
