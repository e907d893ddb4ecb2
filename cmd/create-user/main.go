package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/database"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
	"github.com/stemsi/exstem-quiz/internal/service"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Initialize Service ────────────────────────────────────────────
	userRepo := repository.NewUserRepository(pool)
	classRepo := repository.NewClassRepository(pool)
	authService := service.NewAuthService(cfg, userRepo)
	userService := service.NewUserService(userRepo, classRepo, authService, log)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New User ===")

	// Role
	fmt.Print("Enter Role (admin/teacher/student, default admin): ")
	roleStr, _ := reader.ReadString('\n')
	role := model.Role(strings.ToLower(strings.TrimSpace(roleStr)))
	if role == "" {
		role = model.RoleAdmin
	}
	if !role.Valid() {
		fmt.Println("Error: Role must be admin, teacher or student")
		return
	}

	// Username
	fmt.Print("Enter Username: ")
	username, _ := reader.ReadString('\n')
	username = strings.TrimSpace(username)
	if username == "" {
		fmt.Println("Error: Username is required")
		return
	}

	// Name
	fmt.Print("Enter Name: ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("Error: Name is required")
		return
	}

	// Password
	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println() // Newline after password input
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	// Class ID (students only)
	var classID *int
	if role == model.RoleStudent {
		fmt.Print("Enter Class ID: ")
		classIDStr, _ := reader.ReadString('\n')
		id, err := strconv.Atoi(strings.TrimSpace(classIDStr))
		if err != nil {
			fmt.Println("Error: Class ID must be a number")
			return
		}
		classID = &id
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	user, err := userService.Register(ctx, model.CreateUserRequest{
		Username: username,
		Name:     name,
		Password: password,
		Role:     role,
		ClassID:  classID,
	})
	switch {
	case errors.Is(err, service.ErrDuplicate):
		fmt.Printf("Error: Username '%s' is already taken\n", username)
		return
	case errors.Is(err, service.ErrNotFound):
		fmt.Printf("Error: Class %d does not exist\n", *classID)
		return
	case err != nil:
		log.Fatal().Err(err).Msg("Failed to create user")
	}

	fmt.Printf("\nSuccess! %s '%s' (%s) created with ID: %d\n", user.Role, user.Name, user.Username, user.ID)
}
