package db

import (
	"context"
	"errors"
	"math"
	"strconv"
	"sync"
	"testing"

	"college-roster-go/models"
	. "github.com/smartystreets/goconvey/convey"
)

func studentNums(students []models.Student) []int {
	out := make([]int, 0, len(students))
	for _, s := range students {
		out = append(out, s.StudentNum)
	}
	return out
}

// storeContract checks the behavior every backend shares. newStore must
// return an uninitialized store over jsonSource().
func storeContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	Convey("Given an uninitialized store", t, func() {
		s := newStore(t)
		defer s.Close()

		Convey("Queries fail with ErrNotInitialized", func() {
			_, err := s.GetAllStudents(ctx)
			So(errors.Is(err, ErrNotInitialized), ShouldBeTrue)
			_, err = s.AddStudent(ctx, validRecord())
			So(errors.Is(err, ErrNotInitialized), ShouldBeTrue)
		})
	})

	Convey("Given an initialized store", t, func() {
		s := newStore(t)
		defer s.Close()
		So(s.Initialize(ctx), ShouldBeNil)

		Convey("A second Initialize fails", func() {
			So(errors.Is(s.Initialize(ctx), ErrInitialization), ShouldBeTrue)
		})

		Convey("GetAllStudents returns the roster ordered by number", func() {
			all, err := s.GetAllStudents(ctx)
			So(err, ShouldBeNil)
			So(studentNums(all), ShouldResemble, []int{1, 2, 3, 4})
			So(all[0].FirstName, ShouldEqual, "Joshua")
			So(all[0].Status, ShouldEqual, models.StatusPartTime)
		})

		Convey("GetStudentsByCourse returns a matching subset", func() {
			all, _ := s.GetAllStudents(ctx)
			byCourse, err := s.GetStudentsByCourse(ctx, "1")
			So(err, ShouldBeNil)
			So(studentNums(byCourse), ShouldResemble, []int{3, 4})
			for _, st := range byCourse {
				So(st.Course, ShouldEqual, 1)
				So(all, ShouldContain, st)
			}
		})

		Convey("GetStudentsByCourse with no match is empty, not an error", func() {
			for _, id := range []string{"3", "CS101", "01", ""} {
				out, err := s.GetStudentsByCourse(ctx, id)
				So(err, ShouldBeNil)
				So(out, ShouldNotBeNil)
				So(out, ShouldBeEmpty)
			}
		})

		Convey("GetStudentByNum finds existing students", func() {
			st, err := s.GetStudentByNum(ctx, "2")
			So(err, ShouldBeNil)
			So(st.Email, ShouldEqual, "mia@example.com")
			So(st.TA, ShouldBeTrue)
		})

		Convey("GetStudentByNum fails with ErrNotFound otherwise", func() {
			for _, num := range []string{"99", "0", "-1", "02", "abc", ""} {
				_, err := s.GetStudentByNum(ctx, num)
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			}
		})

		Convey("GetTAs returns only flagged students", func() {
			tas, err := s.GetTAs(ctx)
			So(err, ShouldBeNil)
			So(studentNums(tas), ShouldResemble, []int{2, 3})
		})

		Convey("GetCourses returns courses ordered by id", func() {
			courses, err := s.GetCourses(ctx)
			So(err, ShouldBeNil)
			So(len(courses), ShouldEqual, 3)
			So(courses[0], ShouldResemble, models.Course{CourseID: 1, CourseCode: "WEB700", CourseDescription: "Web Programming Foundations"})
			So(courses[2].CourseCode, ShouldEqual, "DBS311")
		})

		Convey("AddStudent assigns the next number and makes the student visible", func() {
			added, err := s.AddStudent(ctx, validRecord())
			So(err, ShouldBeNil)
			So(added.StudentNum, ShouldEqual, 5)
			So(added.TA, ShouldBeFalse)

			all, _ := s.GetAllStudents(ctx)
			matches := 0
			for _, st := range all {
				if st.Email == "noah@example.com" {
					matches++
					So(st, ShouldResemble, added)
				}
			}
			So(matches, ShouldEqual, 1)

			got, err := s.GetStudentByNum(ctx, "5")
			So(err, ShouldBeNil)
			So(got, ShouldResemble, added)

			byCourse, _ := s.GetStudentsByCourse(ctx, "3")
			So(studentNums(byCourse), ShouldResemble, []int{5})
		})

		Convey("AddStudent honors an explicit free number", func() {
			rec := validRecord()
			rec["studentNum"] = "42"
			rec["TA"] = "on"
			added, err := s.AddStudent(ctx, rec)
			So(err, ShouldBeNil)
			So(added.StudentNum, ShouldEqual, 42)

			tas, _ := s.GetTAs(ctx)
			So(studentNums(tas), ShouldResemble, []int{2, 3, 42})

			next, err := s.AddStudent(ctx, validRecord())
			So(err, ShouldBeNil)
			So(next.StudentNum, ShouldEqual, 43)
		})

		Convey("AddStudent rejects an existing number and leaves the record alone", func() {
			before, _ := s.GetStudentByNum(ctx, "1")
			rec := validRecord()
			rec["studentNum"] = "1"

			_, err := s.AddStudent(ctx, rec)
			So(errors.Is(err, ErrConflict), ShouldBeTrue)

			after, _ := s.GetStudentByNum(ctx, "1")
			So(after, ShouldResemble, before)
			all, _ := s.GetAllStudents(ctx)
			So(len(all), ShouldEqual, 4)
		})

		Convey("AddStudent continues after an explicit next number", func() {
			rec := validRecord()
			rec["studentNum"] = "5"
			_, err := s.AddStudent(ctx, rec)
			So(err, ShouldBeNil)

			next, err := s.AddStudent(ctx, validRecord())
			So(err, ShouldBeNil)
			So(next.StudentNum, ShouldEqual, 6)
			got, err := s.GetStudentByNum(ctx, "6")
			So(err, ShouldBeNil)
			So(got, ShouldResemble, next)
		})

		Convey("AddStudent rejects numbers past the bound", func() {
			for _, num := range []string{"10000000000", strconv.Itoa(MaxStudentNum + 1), strconv.Itoa(math.MaxInt)} {
				rec := validRecord()
				rec["studentNum"] = num
				_, err := s.AddStudent(ctx, rec)
				So(errors.Is(err, ErrValidation), ShouldBeTrue)
			}
			all, _ := s.GetAllStudents(ctx)
			So(studentNums(all), ShouldResemble, []int{1, 2, 3, 4})
		})

		Convey("AddStudent at the bound keeps order and stops assigning", func() {
			top := validRecord()
			top["studentNum"] = strconv.Itoa(MaxStudentNum)
			top["firstName"] = "Last"
			_, err := s.AddStudent(ctx, top)
			So(err, ShouldBeNil)

			mid := validRecord()
			mid["studentNum"] = "10"
			_, err = s.AddStudent(ctx, mid)
			So(err, ShouldBeNil)

			all, _ := s.GetAllStudents(ctx)
			So(studentNums(all), ShouldResemble, []int{1, 2, 3, 4, 10, MaxStudentNum})

			_, err = s.AddStudent(ctx, validRecord())
			So(errors.Is(err, ErrConflict), ShouldBeTrue)

			got, err := s.GetStudentByNum(ctx, strconv.Itoa(MaxStudentNum))
			So(err, ShouldBeNil)
			So(got.FirstName, ShouldEqual, "Last")
			all, _ = s.GetAllStudents(ctx)
			So(len(all), ShouldEqual, 6)
		})

		Convey("AddStudent rejects unknown courses", func() {
			rec := validRecord()
			rec["course"] = "9"
			_, err := s.AddStudent(ctx, rec)
			So(errors.Is(err, ErrValidation), ShouldBeTrue)
			var verr *ValidationError
			So(errors.As(err, &verr), ShouldBeTrue)
			So(verr.Fields, ShouldContainKey, "course")
		})

		Convey("AddStudent rejects malformed records", func() {
			rec := validRecord()
			delete(rec, "firstName")
			_, err := s.AddStudent(ctx, rec)
			So(errors.Is(err, ErrValidation), ShouldBeTrue)

			all, _ := s.GetAllStudents(ctx)
			So(len(all), ShouldEqual, 4)
		})

		Convey("Concurrent AddStudent calls never share a number", func() {
			const writers = 20
			var wg sync.WaitGroup
			nums := make(chan int, writers)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					rec := validRecord()
					rec["email"] = "student" + strconv.Itoa(i) + "@example.com"
					st, err := s.AddStudent(ctx, rec)
					if err == nil {
						nums <- st.StudentNum
					}
				}(i)
			}
			wg.Wait()
			close(nums)

			seen := map[int]bool{}
			for n := range nums {
				So(seen[n], ShouldBeFalse)
				seen[n] = true
			}
			So(len(seen), ShouldEqual, writers)

			all, _ := s.GetAllStudents(ctx)
			So(len(all), ShouldEqual, 4+writers)
		})
	})
}
