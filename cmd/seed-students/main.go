package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/database"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
	"github.com/stemsi/exstem-quiz/internal/service"
)

var names = []string{
	"Budi Santoso", "Siti Aminah", "Andi Pratama", "Rina Wati", "Joko Susilo",
	"Ayu Lestari", "Dodi Kusuma", "Eka Putri", "Fahri Hamzah", "Gita Savitri",
	"Hendra Gunawan", "Ika Sari", "Jamal Mirdad", "Kiki Fatmala", "Lukman Hakim",
	"Maya Septiana", "Nanda Pratama", "Oki Setiana", "Putri Dian", "Qori Maharani",
	"Rafi Ahmad", "Siska Saraswati", "Toni Setiawan", "Umi Kalsum", "Vina Panduwinata",
	"Wahyu Hidayat", "Xena Maharani", "Yudi Pratama", "Zaki Anwar", "Alifia Zahra",
	"Bagas Saputra", "Citra Kirana", "Dimas Anggara", "Elisa Novita", "Fikri Maulana",
	"Gali Rakasiwi", "Hani Hanifah", "Iqbal Ramadhan", "Jasmine Azzahra", "Kevin Sanjaya",
	"Larasati Dewi", "Miko Pambudi", "Nia Ramadhani", "Oscar Lawalata", "Puput Melati",
	"Reza Rahadian", "Sari Nila", "Tigor Siahaan", "Utari Maharani", "Vicky Prasetyo",
}

func main() {
	className := flag.String("class", "XII TKJ 2", "Class name to seed")
	gradeLevel := flag.Int("grade", 12, "Grade level when the class is created")
	major := flag.String("major", "TKJ", "Major when the class is created")
	count := flag.Int("count", len(names), "Number of students")
	password := flag.String("password", "stemsijaya", "Password for every seeded student")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	classRepo := repository.NewClassRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	authService := service.NewAuthService(cfg, userRepo)
	classService := service.NewClassService(classRepo, userRepo)
	userService := service.NewUserService(userRepo, classRepo, authService, log)

	// The seeder acts as an admin.
	system := model.CallerIdentity{Role: model.RoleAdmin}

	fmt.Printf("=== Seeding %d Students into %s ===\n", *count, *className)

	classID, err := findOrCreateClass(ctx, classService, system, model.CreateClassRequest{
		Name: *className, GradeLevel: *gradeLevel, Major: *major,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare class")
	}

	successCount := 0
	for i := 0; i < *count; i++ {
		name := names[i%len(names)]
		if i >= len(names) {
			name = fmt.Sprintf("%s %d", name, i/len(names)+1)
		}
		req := model.CreateUserRequest{
			Username: fmt.Sprintf("user%d", i+1),
			Name:     name,
			Password: *password,
			Role:     model.RoleStudent,
			ClassID:  &classID,
		}

		if _, err := userService.Register(ctx, req); err != nil {
			fmt.Printf("Error creating student %s (%s): %v\n", req.Name, req.Username, err)
			continue
		}
		successCount++
		if (i+1)%10 == 0 {
			fmt.Printf("Created %d students...\n", i+1)
		}
	}

	fmt.Printf("\nSeed completed! Successfully added %d/%d students.\n", successCount, *count)
}

func findOrCreateClass(ctx context.Context, classes *service.ClassService, caller model.CallerIdentity, req model.CreateClassRequest) (int, error) {
	existing, err := classes.List(ctx)
	if err != nil {
		return 0, err
	}
	for _, c := range existing {
		if c.Name == req.Name {
			fmt.Printf("Found existing class with ID: %d\n", c.ID)
			return c.ID, nil
		}
	}

	fmt.Printf("Class %s not found. Creating it...\n", req.Name)
	class, err := classes.Create(ctx, caller, req)
	if errors.Is(err, service.ErrDuplicate) {
		return 0, fmt.Errorf("class %q appeared concurrently, rerun the seeder: %w", req.Name, err)
	}
	if err != nil {
		return 0, err
	}
	fmt.Printf("Created class with ID: %d\n", class.ID)
	return class.ID, nil
}
