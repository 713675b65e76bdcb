package db

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"sync"

	"college-roster-go/logger"
	"college-roster-go/models"
	"github.com/go-redis/redis/v8"
)

const (
	studentsKey          = "students" // Sorted set: student numbers scored by number
	coursesKey           = "courses"  // Sorted set: course ids scored by id
	studentInfoPrefix    = "student:" // Hash prefix: student:{num} -> student details
	courseInfoPrefix     = "course:"  // Hash prefix: course:{id} -> course details
	courseStudentsSuffix = ":students"

	maxTxRetries = 16
)

// RedisService stores the roster in Redis. Empty roster keys are seeded
// from the source directory on Initialize.
type RedisService struct {
	Client *redis.Client
	source fs.FS
	log    logger.Logger

	mu          sync.RWMutex
	initialized bool
}

// NewRedisClient creates a client; connectivity is checked by Initialize.
func NewRedisClient(addr, password string, dbIndex int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       dbIndex,
	})
}

// NewRedisService creates a new RedisService instance
func NewRedisService(client *redis.Client, source fs.FS, opts ...Option) *RedisService {
	o := applyOptions(opts)
	return &RedisService{Client: client, source: source, log: o.log}
}

func getStudentInfoKey(num int) string {
	return studentInfoPrefix + strconv.Itoa(num)
}

func getCourseInfoKey(id int) string {
	return courseInfoPrefix + strconv.Itoa(id)
}

// course:{id}:students -> set of student numbers enrolled in the course
func getCourseStudentsKey(courseID string) string {
	return courseInfoPrefix + courseID + courseStudentsSuffix
}

func studentToHash(s models.Student) map[string]interface{} {
	return map[string]interface{}{
		"studentNum":      strconv.Itoa(s.StudentNum),
		"firstName":       s.FirstName,
		"lastName":        s.LastName,
		"email":           s.Email,
		"addressStreet":   s.AddressStreet,
		"addressCity":     s.AddressCity,
		"addressProvince": s.AddressProvince,
		"TA":              strconv.FormatBool(s.TA),
		"status":          s.Status,
		"course":          strconv.Itoa(s.Course),
	}
}

func studentFromHash(data map[string]string) (models.Student, error) {
	num, err := strconv.Atoi(data["studentNum"])
	if err != nil {
		return models.Student{}, fmt.Errorf("bad studentNum %q: %w", data["studentNum"], err)
	}
	course, err := strconv.Atoi(data["course"])
	if err != nil {
		return models.Student{}, fmt.Errorf("bad course %q: %w", data["course"], err)
	}
	ta, _ := strconv.ParseBool(data["TA"])
	return models.Student{
		StudentNum:      num,
		FirstName:       data["firstName"],
		LastName:        data["lastName"],
		Email:           data["email"],
		AddressStreet:   data["addressStreet"],
		AddressCity:     data["addressCity"],
		AddressProvince: data["addressProvince"],
		TA:              ta,
		Status:          data["status"],
		Course:          course,
	}, nil
}

func courseToHash(c models.Course) map[string]interface{} {
	return map[string]interface{}{
		"courseId":          strconv.Itoa(c.CourseID),
		"courseCode":        c.CourseCode,
		"courseDescription": c.CourseDescription,
	}
}

func courseFromHash(data map[string]string) (models.Course, error) {
	id, err := strconv.Atoi(data["courseId"])
	if err != nil {
		return models.Course{}, fmt.Errorf("bad courseId %q: %w", data["courseId"], err)
	}
	return models.Course{
		CourseID:          id,
		CourseCode:        data["courseCode"],
		CourseDescription: data["courseDescription"],
	}, nil
}

// Initialize pings Redis and seeds the roster if no data exists yet.
func (s *RedisService) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return initErr(errAlreadyInitialized)
	}

	if err := s.Client.Ping(ctx).Err(); err != nil {
		return initErr(fmt.Errorf("could not connect to Redis: %w", err))
	}

	students, err := s.Client.ZCard(ctx, studentsKey).Result()
	if err != nil {
		return initErr(err)
	}
	courses, err := s.Client.ZCard(ctx, coursesKey).Result()
	if err != nil {
		return initErr(err)
	}

	if students == 0 && courses == 0 {
		s.log.Info(ctx, "no roster found in Redis, seeding from source")
		if err := s.seed(ctx); err != nil {
			return err
		}
	} else {
		s.log.Info(ctx, "found existing roster in Redis",
			logger.Int("students", int(students)), logger.Int("courses", int(courses)))
	}

	s.initialized = true
	return nil
}

func (s *RedisService) seed(ctx context.Context) error {
	r, err := LoadRoster(s.source)
	if err != nil {
		return err
	}
	_, err = s.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, c := range r.Courses {
			pipe.ZAdd(ctx, coursesKey, &redis.Z{Score: float64(c.CourseID), Member: strconv.Itoa(c.CourseID)})
			pipe.HSet(ctx, getCourseInfoKey(c.CourseID), courseToHash(c))
		}
		for _, st := range r.Students {
			queueStudent(ctx, pipe, st)
		}
		return nil
	})
	if err != nil {
		return initErr(fmt.Errorf("seed Redis: %w", err))
	}
	s.log.Info(ctx, "seeded Redis roster",
		logger.Int("students", len(r.Students)), logger.Int("courses", len(r.Courses)))
	return nil
}

func queueStudent(ctx context.Context, pipe redis.Pipeliner, st models.Student) {
	pipe.ZAdd(ctx, studentsKey, &redis.Z{Score: float64(st.StudentNum), Member: strconv.Itoa(st.StudentNum)})
	pipe.HSet(ctx, getStudentInfoKey(st.StudentNum), studentToHash(st))
	pipe.SAdd(ctx, getCourseStudentsKey(strconv.Itoa(st.Course)), st.StudentNum)
}

func (s *RedisService) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	return nil
}

// fetchStudents loads the hashes for nums in one pipeline, preserving order.
func (s *RedisService) fetchStudents(ctx context.Context, nums []string) ([]models.Student, error) {
	students := make([]models.Student, 0, len(nums))
	if len(nums) == 0 {
		return students, nil
	}
	cmds := make([]*redis.StringStringMapCmd, len(nums))
	_, err := s.Client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, num := range nums {
			cmds[i] = pipe.HGetAll(ctx, studentInfoPrefix+num)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get students from Redis: %w", err)
	}
	for i, cmd := range cmds {
		data := cmd.Val()
		if len(data) == 0 {
			s.log.Warn(ctx, "student indexed without details", logger.String("studentNum", nums[i]))
			continue
		}
		st, err := studentFromHash(data)
		if err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, nil
}

// GetAllStudents returns every student ordered by student number.
func (s *RedisService) GetAllStudents(ctx context.Context) ([]models.Student, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	nums, err := s.Client.ZRange(ctx, studentsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get student numbers from Redis: %w", err)
	}
	return s.fetchStudents(ctx, nums)
}

// GetStudentsByCourse returns the students enrolled in courseID.
func (s *RedisService) GetStudentsByCourse(ctx context.Context, courseID string) ([]models.Student, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	nums, err := s.Client.SMembers(ctx, getCourseStudentsKey(courseID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get students for course %s: %w", courseID, err)
	}
	sort.Slice(nums, func(i, j int) bool {
		a, _ := strconv.Atoi(nums[i])
		b, _ := strconv.Atoi(nums[j])
		return a < b
	})
	return s.fetchStudents(ctx, nums)
}

// GetStudentByNum returns the student numbered num.
func (s *RedisService) GetStudentByNum(ctx context.Context, num string) (models.Student, error) {
	if err := s.ready(); err != nil {
		return models.Student{}, err
	}
	n, ok := parseKey(num)
	if !ok {
		return models.Student{}, notFound(num)
	}
	data, err := s.Client.HGetAll(ctx, getStudentInfoKey(n)).Result()
	if err != nil {
		return models.Student{}, fmt.Errorf("failed to get student from Redis: %w", err)
	}
	if len(data) == 0 {
		return models.Student{}, notFound(num)
	}
	return studentFromHash(data)
}

// GetTAs returns the students flagged as teaching assistants.
func (s *RedisService) GetTAs(ctx context.Context) ([]models.Student, error) {
	all, err := s.GetAllStudents(ctx)
	if err != nil {
		return nil, err
	}
	return filterTAs(all), nil
}

// GetCourses returns every course ordered by id.
func (s *RedisService) GetCourses(ctx context.Context) ([]models.Course, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ids, err := s.Client.ZRange(ctx, coursesKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get course ids from Redis: %w", err)
	}
	courses := make([]models.Course, 0, len(ids))
	if len(ids) == 0 {
		return courses, nil
	}
	cmds := make([]*redis.StringStringMapCmd, len(ids))
	_, err = s.Client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, courseInfoPrefix+id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get courses from Redis: %w", err)
	}
	for _, cmd := range cmds {
		if len(cmd.Val()) == 0 {
			continue
		}
		c, err := courseFromHash(cmd.Val())
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, nil
}

// AddStudent validates record and adds the student inside a WATCH/MULTI
// transaction on the students key, retrying when another writer wins.
func (s *RedisService) AddStudent(ctx context.Context, record Record) (models.Student, error) {
	input, err := record.ToStudent()
	if err != nil {
		return models.Student{}, err
	}
	if err := s.ready(); err != nil {
		return models.Student{}, err
	}

	var added models.Student
	txf := func(tx *redis.Tx) error {
		st := input

		err := tx.ZScore(ctx, coursesKey, strconv.Itoa(st.Course)).Err()
		if errors.Is(err, redis.Nil) {
			return unknownCourse(st.Course)
		}
		if err != nil {
			return err
		}

		last := 0
		top, err := tx.ZRevRangeWithScores(ctx, studentsKey, 0, 0).Result()
		if err != nil {
			return err
		}
		if len(top) > 0 {
			last = int(top[0].Score)
		}
		taken := func(n int) (bool, error) {
			err := tx.ZScore(ctx, studentsKey, strconv.Itoa(n)).Err()
			switch {
			case err == nil:
				return true, nil
			case errors.Is(err, redis.Nil):
				return false, nil
			}
			return false, err
		}
		if err := resolveNumber(&st, last, taken); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			queueStudent(ctx, pipe, st)
			return nil
		})
		if err == nil {
			added = st
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err = s.Client.Watch(ctx, txf, studentsKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return models.Student{}, err
		}
		s.log.Info(ctx, "student added", logger.Int("studentNum", added.StudentNum), logger.Int("course", added.Course))
		return added, nil
	}
	return models.Student{}, fmt.Errorf("add student: too much contention: %w", err)
}

// Counts reports the roster size.
func (s *RedisService) Counts(ctx context.Context) (int, int, error) {
	if err := s.ready(); err != nil {
		return 0, 0, err
	}
	var students, courses *redis.IntCmd
	_, err := s.Client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		students = pipe.ZCard(ctx, studentsKey)
		courses = pipe.ZCard(ctx, coursesKey)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return int(students.Val()), int(courses.Val()), nil
}

// Close closes the Redis client.
func (s *RedisService) Close() error {
	return s.Client.Close()
}
