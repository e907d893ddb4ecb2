package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/examclient"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	baseURL := flag.String("api", cfg.APIBaseURL, "API base URL")
	examIDStr := flag.String("exam", "", "Exam ID to attempt")
	username := flag.String("user", "", "Student username")
	flag.Parse()

	// Logs go to stderr so they do not interleave with the exam console.
	log := logger.Component(logger.New(os.Stderr, cfg.LogFormat), "exam_client").Level(zerolog.WarnLevel)

	examID, err := uuid.Parse(*examIDStr)
	if err != nil {
		fmt.Println("Error: -exam must be a valid exam ID")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Login ─────────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)
	if *username == "" {
		fmt.Print("Username: ")
		line, _ := reader.ReadString('\n')
		*username = strings.TrimSpace(line)
	}

	fmt.Print("Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Println("Error reading password")
		os.Exit(1)
	}

	client := examclient.New(*baseURL, 15*time.Second)
	login, err := client.Login(ctx, *username, string(bytePassword))
	if err != nil {
		fmt.Printf("Login failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Logged in as %s\n\n", login.User.Name)

	// ─── Start Attempt ─────────────────────────────────────────────────
	attempt, err := examclient.StartAttempt(ctx, client, examID, cfg.AutosaveInterval, log)
	if errors.Is(err, examclient.ErrAlreadySubmitted) {
		fmt.Println("You have already submitted this exam.")
		return
	}
	if err != nil {
		fmt.Printf("Cannot start exam: %v\n", err)
		os.Exit(1)
	}

	type outcome struct {
		score float64
		err   error
	}
	finished := make(chan outcome, 1)
	go func() {
		res, err := attempt.Run(ctx)
		if err != nil {
			finished <- outcome{err: err}
			return
		}
		finished <- outcome{score: res.Score}
	}()

	// The console reads from the same buffered stdin used for the username.
	if err := examclient.NewConsole(attempt, reader, os.Stdout).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Printf("Console stopped: %v\n", err)
	}
	select {
	case <-attempt.Done():
	case <-ctx.Done():
	default:
		fmt.Println("Input closed. The exam will be submitted when the time runs out.")
	}

	// ─── Result ────────────────────────────────────────────────────────
	select {
	case res := <-finished:
		switch {
		case errors.Is(res.err, context.Canceled):
			fmt.Println("\nInterrupted. Your last autosave is kept and will be graded when the exam ends.")
		case res.err != nil:
			fmt.Printf("\nSubmit failed: %v\nYour last autosave will be graded when the exam ends.\n", res.err)
			os.Exit(1)
		default:
			fmt.Printf("\nSubmitted. Score: %.2f\n", res.score)
		}
	case <-ctx.Done():
		fmt.Println("\nInterrupted. Your last autosave is kept and will be graded when the exam ends.")
	}
}
