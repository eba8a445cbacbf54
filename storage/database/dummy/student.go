package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/gavasques/aluno-adm-portal-crm-sub009/core"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/student"
)

type studentRepository struct {
	db *studentTable
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db.student}
}

func (repo *studentRepository) query() []student.Student {
	students := make([]student.Student, 0, len(repo.db.students))
	for _, st := range repo.db.students {
		students = append(students, *st)
	}
	return students
}

func (repo *studentRepository) CreateStudent(_ context.Context, st student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.students[st.ID] = &st
	return st, nil
}

func (repo *studentRepository) GetStudentByID(_ context.Context, id string) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if st, ok := repo.db.students[id]; ok {
		return *st, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) GetStudentByEmail(_ context.Context, email string) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, st := range repo.query() {
		if st.Email == email {
			return st, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) FilterStudents(_ context.Context, filter student.QueryFilter, orderings ...core.DBOrdering) ([]student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := repo.query()

	if filter.Search != "" {
		var filtered []student.Student
		search := strings.ToLower(filter.Search)
		for _, st := range students {
			if strings.Contains(strings.ToLower(st.Name), search) ||
				strings.Contains(strings.ToLower(st.Email), search) {
				filtered = append(filtered, st)
			}
		}
		students = filtered
	}
	if students != nil && filter.Status != "" {
		var filtered []student.Student
		for _, st := range students {
			if st.Status == filter.Status {
				filtered = append(filtered, st)
			}
		}
		students = filtered
	}
	if students != nil && !filter.CreatedFrom.IsZero() {
		var filtered []student.Student
		timeUTC := filter.CreatedFrom.UTC()
		for _, st := range students {
			if st.CreatedAt.Equal(timeUTC) || st.CreatedAt.After(timeUTC) {
				filtered = append(filtered, st)
			}
		}
		students = filtered
	}
	if students != nil && !filter.CreatedTo.IsZero() {
		var filtered []student.Student
		timeUTC := filter.CreatedTo.UTC()
		for _, st := range students {
			if st.CreatedAt.Before(timeUTC) || st.CreatedAt.Equal(timeUTC) {
				filtered = append(filtered, st)
			}
		}
		students = filtered
	}

	sort.Slice(students, func(i, j int) bool { return students[i].Name < students[j].Name })
	return students, nil
}

func (repo *studentRepository) UpdateStudent(_ context.Context, st student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.students[st.ID]; !ok {
		return student.Student{}, student.ErrNotFound
	}
	repo.db.students[st.ID] = &st
	return st, nil
}

func (repo *studentRepository) CreateEnrollment(_ context.Context, enr student.Enrollment) (student.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.enrollments[enr.ID] = &enr
	return enr, nil
}

func (repo *studentRepository) QueryEnrollmentsByStudent(_ context.Context, studentID string) ([]student.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	enrollments := make([]student.Enrollment, 0)
	for _, enr := range repo.db.enrollments {
		if enr.StudentID == studentID {
			enrollments = append(enrollments, *enr)
		}
	}
	sort.Slice(enrollments, func(i, j int) bool { return enrollments[i].CreatedAt.After(enrollments[j].CreatedAt) })
	return enrollments, nil
}

func (repo *studentRepository) UpdateEnrollment(_ context.Context, enr student.Enrollment) (student.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.enrollments[enr.ID]; !ok {
		return student.Enrollment{}, student.ErrEnrollmentNotFound
	}
	repo.db.enrollments[enr.ID] = &enr
	return enr, nil
}
