package db

import (
	"context"
	"os"
	"testing"

	"college-roster-go/models"
	. "github.com/smartystreets/goconvey/convey"
)

// The Redis contract runs against a real server, selected with
// ROSTER_TEST_REDIS_ADDR. The database is flushed before every case.
func TestRedisService(t *testing.T) {
	addr := os.Getenv("ROSTER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ROSTER_TEST_REDIS_ADDR not set")
	}
	storeContract(t, func(t *testing.T) Store {
		client := NewRedisClient(addr, "", 15)
		if err := client.FlushDB(context.Background()).Err(); err != nil {
			t.Fatalf("flush redis: %v", err)
		}
		return NewRedisService(client, jsonSource())
	})
}

func TestRedisHashes(t *testing.T) {
	Convey("Given a student stored as a Redis hash", t, func() {
		st := models.Student{
			StudentNum: 7, FirstName: "Ada", LastName: "King", Email: "ada@example.com",
			TA: true, Status: models.StatusFullTime, Course: 2,
		}
		hash := map[string]string{}
		for k, v := range studentToHash(st) {
			hash[k] = v.(string)
		}

		Convey("It reads back unchanged", func() {
			got, err := studentFromHash(hash)
			So(err, ShouldBeNil)
			So(got, ShouldResemble, st)
		})

		Convey("A corrupt number is reported", func() {
			hash["studentNum"] = "seven"
			_, err := studentFromHash(hash)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Course keys follow the class key layout", t, func() {
		So(getCourseInfoKey(3), ShouldEqual, "course:3")
		So(getCourseStudentsKey("3"), ShouldEqual, "course:3:students")
		So(getStudentInfoKey(12), ShouldEqual, "student:12")
	})
}
