package auth

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/chronochess/progress/internal/models"
	"github.com/chronochess/progress/internal/services"
)

const sessionName = "chronochess-session"

var (
	store       *sessions.CookieStore
	userService *services.UserService
)

func Init(secret string, users *services.UserService) {
	store = sessions.NewCookieStore([]byte(secret))
	userService = users
}

// RegisterHandler creates a new account and logs it in.
func RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := userService.CreateUser(&req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	startSession(w, r, user)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

func LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := userService.AuthenticateUser(&req)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	startSession(w, r, user)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

func LogoutHandler(w http.ResponseWriter, r *http.Request) {
	session, _ := store.Get(r, sessionName)
	session.Values["authenticated"] = false
	delete(session.Values, "user_id")
	session.Save(r, w)
	w.WriteHeader(http.StatusNoContent)
}

func startSession(w http.ResponseWriter, r *http.Request, user *models.User) {
	session, _ := store.Get(r, sessionName)
	session.Values["authenticated"] = true
	session.Values["user_id"] = user.ID
	session.Values["session_id"] = uuid.NewString()
	session.Save(r, w)
}

// GetUserIDFromSession returns 0 for anonymous requests.
func GetUserIDFromSession(r *http.Request) int {
	session, err := store.Get(r, sessionName)
	if err != nil {
		return 0
	}
	if auth, ok := session.Values["authenticated"].(bool); !ok || !auth {
		return 0
	}
	id, _ := session.Values["user_id"].(int)
	return id
}

func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserIDFromSession(r) == 0 {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
