package db

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"college-roster-go/logger"
	"college-roster-go/models"
	"go.etcd.io/bbolt"
)

var (
	studentsBucket = []byte("Students")
	coursesBucket  = []byte("Courses")
)

const boltOpenTimeout = 2 * time.Second

// BoltStore persists the roster in a bbolt file. An empty file is seeded
// from the source directory on first Initialize; afterwards the file is
// authoritative and the source is not read again.
type BoltStore struct {
	path   string
	source fs.FS
	log    logger.Logger

	mu          sync.RWMutex
	initialized bool
	db          *bbolt.DB
}

// NewBoltStore creates a store backed by the bbolt file at path.
func NewBoltStore(path string, source fs.FS, opts ...Option) *BoltStore {
	o := applyOptions(opts)
	return &BoltStore{path: path, source: source, log: o.log}
}

// keys are zero padded so cursor order is numeric order up to MaxStudentNum
func boltKey(n int) []byte {
	return []byte(fmt.Sprintf("%010d", n))
}

// Initialize opens the database, creating buckets and seeding if needed.
func (s *BoltStore) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return initErr(errAlreadyInitialized)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return initErr(err)
	}
	bdb, err := bbolt.Open(s.path, 0o600, &bbolt.Options{Timeout: boltOpenTimeout})
	if err != nil {
		return initErr(fmt.Errorf("open %s: %w", s.path, err))
	}

	var empty bool
	err = bdb.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{studentsBucket, coursesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		empty = tx.Bucket(studentsBucket).Stats().KeyN == 0 && tx.Bucket(coursesBucket).Stats().KeyN == 0
		return nil
	})
	if err != nil {
		bdb.Close()
		return initErr(err)
	}

	if empty {
		s.log.Info(ctx, "bolt roster empty, seeding from source", logger.String("path", s.path))
		if err := seedBolt(bdb, s.source); err != nil {
			bdb.Close()
			return err
		}
	} else {
		s.log.Info(ctx, "using existing bolt roster", logger.String("path", s.path))
	}

	s.db = bdb
	s.initialized = true
	return nil
}

func seedBolt(bdb *bbolt.DB, source fs.FS) error {
	r, err := LoadRoster(source)
	if err != nil {
		return err
	}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		for _, st := range r.Students {
			if err := put(tx, studentsBucket, boltKey(st.StudentNum), st); err != nil {
				return err
			}
		}
		for _, c := range r.Courses {
			if err := put(tx, coursesBucket, boltKey(c.CourseID), c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return initErr(err)
	}
	return nil
}

func put[T any](tx *bbolt.Tx, bucket, key []byte, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put(key, data)
}

func list[T any](tx *bbolt.Tx, bucket []byte) ([]T, error) {
	out := []T{}
	err := tx.Bucket(bucket).ForEach(func(_, v []byte) error {
		var item T
		if err := json.Unmarshal(v, &item); err != nil {
			return err
		}
		out = append(out, item)
		return nil
	})
	return out, err
}

// view runs fn in a read transaction once the store is initialized.
func (s *BoltStore) view(fn func(tx *bbolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	return s.db.View(fn)
}

func (s *BoltStore) students() ([]models.Student, error) {
	var out []models.Student
	err := s.view(func(tx *bbolt.Tx) error {
		var err error
		out, err = list[models.Student](tx, studentsBucket)
		return err
	})
	return out, err
}

// GetAllStudents returns every student ordered by student number.
func (s *BoltStore) GetAllStudents(_ context.Context) ([]models.Student, error) {
	return s.students()
}

// GetStudentsByCourse returns the students enrolled in courseID.
func (s *BoltStore) GetStudentsByCourse(_ context.Context, courseID string) ([]models.Student, error) {
	all, err := s.students()
	if err != nil {
		return nil, err
	}
	return filterByCourse(all, courseID), nil
}

// GetStudentByNum returns the student numbered num.
func (s *BoltStore) GetStudentByNum(_ context.Context, num string) (models.Student, error) {
	n, ok := parseKey(num)
	var st models.Student
	err := s.view(func(tx *bbolt.Tx) error {
		if !ok {
			return notFound(num)
		}
		v := tx.Bucket(studentsBucket).Get(boltKey(n))
		if v == nil {
			return notFound(num)
		}
		return json.Unmarshal(v, &st)
	})
	return st, err
}

// GetTAs returns the students flagged as teaching assistants.
func (s *BoltStore) GetTAs(_ context.Context) ([]models.Student, error) {
	all, err := s.students()
	if err != nil {
		return nil, err
	}
	return filterTAs(all), nil
}

// GetCourses returns every course ordered by id.
func (s *BoltStore) GetCourses(_ context.Context) ([]models.Course, error) {
	var out []models.Course
	err := s.view(func(tx *bbolt.Tx) error {
		var err error
		out, err = list[models.Course](tx, coursesBucket)
		return err
	})
	return out, err
}

// AddStudent validates record and stores the student in a single write
// transaction; bbolt serializes writers.
func (s *BoltStore) AddStudent(ctx context.Context, record Record) (models.Student, error) {
	st, err := record.ToStudent()
	if err != nil {
		return models.Student{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return models.Student{}, ErrNotInitialized
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(coursesBucket).Get(boltKey(st.Course)) == nil {
			return unknownCourse(st.Course)
		}
		b := tx.Bucket(studentsBucket)
		last := 0
		if k, _ := b.Cursor().Last(); k != nil {
			n, err := strconv.Atoi(string(k))
			if err != nil {
				return fmt.Errorf("corrupt student key %q: %w", k, err)
			}
			last = n
		}
		taken := func(n int) (bool, error) {
			return b.Get(boltKey(n)) != nil, nil
		}
		if err := resolveNumber(&st, last, taken); err != nil {
			return err
		}
		return put(tx, studentsBucket, boltKey(st.StudentNum), st)
	})
	if err != nil {
		return models.Student{}, err
	}

	s.log.Info(ctx, "student added", logger.Int("studentNum", st.StudentNum), logger.Int("course", st.Course))
	return st, nil
}

// Counts reports the roster size.
func (s *BoltStore) Counts(_ context.Context) (students, courses int, err error) {
	err = s.view(func(tx *bbolt.Tx) error {
		students = tx.Bucket(studentsBucket).Stats().KeyN
		courses = tx.Bucket(coursesBucket).Stats().KeyN
		return nil
	})
	return students, courses, err
}

// Close releases the database file.
func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.initialized = false
	return err
}
