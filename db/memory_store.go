package db

import (
	"context"
	"io/fs"
	"slices"
	"sync"

	"college-roster-go/logger"
	"college-roster-go/models"
)

// MemoryStore keeps the roster in memory, loaded once from a source
// directory. Added students live until the process exits.
type MemoryStore struct {
	source fs.FS
	log    logger.Logger

	mu          sync.RWMutex
	initialized bool
	students    []models.Student
	courses     []models.Course
	courseIDs   map[int]struct{}
	studentNums map[int]struct{}
}

// NewMemoryStore creates a store that loads its roster from source.
func NewMemoryStore(source fs.FS, opts ...Option) *MemoryStore {
	o := applyOptions(opts)
	return &MemoryStore{source: source, log: o.log}
}

// Initialize loads the roster from the source.
func (s *MemoryStore) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return initErr(errAlreadyInitialized)
	}

	r, err := LoadRoster(s.source)
	if err != nil {
		return err
	}

	s.students = r.Students
	s.courses = r.Courses
	s.studentNums = make(map[int]struct{}, len(r.Students))
	for _, st := range r.Students {
		s.studentNums[st.StudentNum] = struct{}{}
	}
	s.courseIDs = make(map[int]struct{}, len(r.Courses))
	for _, c := range r.Courses {
		s.courseIDs[c.CourseID] = struct{}{}
	}
	s.initialized = true

	s.log.Info(ctx, "roster loaded", logger.Int("students", len(s.students)), logger.Int("courses", len(s.courses)))
	return nil
}

// GetAllStudents returns every student ordered by student number.
func (s *MemoryStore) GetAllStudents(_ context.Context) ([]models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	return slices.Clone(s.students), nil
}

// GetStudentsByCourse returns the students enrolled in courseID.
func (s *MemoryStore) GetStudentsByCourse(_ context.Context, courseID string) ([]models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	return filterByCourse(s.students, courseID), nil
}

// GetStudentByNum returns the student numbered num.
func (s *MemoryStore) GetStudentByNum(_ context.Context, num string) (models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return models.Student{}, ErrNotInitialized
	}
	n, ok := parseKey(num)
	if !ok {
		return models.Student{}, notFound(num)
	}
	i, found := slices.BinarySearchFunc(s.students, n, func(st models.Student, n int) int {
		return st.StudentNum - n
	})
	if !found {
		return models.Student{}, notFound(num)
	}
	return s.students[i], nil
}

// GetTAs returns the students flagged as teaching assistants.
func (s *MemoryStore) GetTAs(_ context.Context) ([]models.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	return filterTAs(s.students), nil
}

// GetCourses returns every course ordered by id.
func (s *MemoryStore) GetCourses(_ context.Context) ([]models.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	return slices.Clone(s.courses), nil
}

// AddStudent validates record and appends the resulting student.
func (s *MemoryStore) AddStudent(ctx context.Context, record Record) (models.Student, error) {
	st, err := record.ToStudent()
	if err != nil {
		return models.Student{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return models.Student{}, ErrNotInitialized
	}
	if _, ok := s.courseIDs[st.Course]; !ok {
		return models.Student{}, unknownCourse(st.Course)
	}
	taken := func(n int) (bool, error) {
		_, ok := s.studentNums[n]
		return ok, nil
	}
	if err := resolveNumber(&st, s.maxNum(), taken); err != nil {
		return models.Student{}, err
	}

	// keep the slice sorted; explicit numbers may land anywhere
	i, _ := slices.BinarySearchFunc(s.students, st.StudentNum, func(e models.Student, n int) int {
		return e.StudentNum - n
	})
	s.students = slices.Insert(s.students, i, st)
	s.studentNums[st.StudentNum] = struct{}{}

	s.log.Info(ctx, "student added", logger.Int("studentNum", st.StudentNum), logger.Int("course", st.Course))
	return st, nil
}

// Counts reports the roster size.
func (s *MemoryStore) Counts(_ context.Context) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return 0, 0, ErrNotInitialized
	}
	return len(s.students), len(s.courses), nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) maxNum() int {
	if len(s.students) == 0 {
		return 0
	}
	return s.students[len(s.students)-1].StudentNum
}
