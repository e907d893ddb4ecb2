package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
)

// ClassService handles class business logic.
type ClassService struct {
	classes ClassStore
	users   UserStore
}

// NewClassService creates a new ClassService.
func NewClassService(classes ClassStore, users UserStore) *ClassService {
	return &ClassService{classes: classes, users: users}
}

// List retrieves all classes.
func (s *ClassService) List(ctx context.Context) ([]model.Class, error) {
	classes, err := s.classes.List(ctx)
	if err != nil {
		return nil, err
	}
	if classes == nil {
		classes = []model.Class{}
	}
	return classes, nil
}

// Create creates a new class. Admin only.
func (s *ClassService) Create(ctx context.Context, caller model.CallerIdentity, req model.CreateClassRequest) (*model.Class, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}
	class := &model.Class{Name: req.Name, GradeLevel: req.GradeLevel, Major: req.Major}
	if err := s.classes.Create(ctx, class); err != nil {
		if errors.Is(err, repository.ErrDuplicateClass) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("create class: %w", err)
	}
	return class, nil
}

// ListStudents lists the students of a class. Staff only.
func (s *ClassService) ListStudents(ctx context.Context, classID int, caller model.CallerIdentity) ([]model.User, error) {
	if !caller.IsStaff() {
		return nil, ErrForbidden
	}
	if _, err := s.classes.GetByID(ctx, classID); err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get class: %w", err)
	}
	students, err := s.users.ListStudentsByClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	if students == nil {
		students = []model.User{}
	}
	return students, nil
}
