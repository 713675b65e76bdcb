package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given a logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithOutput(&buf)), ShouldBeNil)
		ctx := context.Background()

		Convey("Info lines carry the message, fields and source", func() {
			Get().Info(ctx, "roster loaded", Int("students", 3), String("store", "memory"))
			out := buf.String()
			So(out, ShouldContainSubstring, "roster loaded")
			So(out, ShouldContainSubstring, "students=3")
			So(out, ShouldContainSubstring, "store=memory")
			So(out, ShouldContainSubstring, "logger_test.go")
		})

		Convey("Debug is suppressed at the default level", func() {
			Get().Debug(ctx, "hidden")
			So(buf.String(), ShouldNotContainSubstring, "hidden")
		})

		Convey("Debug is written once the level is lowered", func() {
			So(SetLevelString("DEBUG"), ShouldBeNil)
			Get().Debug(ctx, "visible")
			So(buf.String(), ShouldContainSubstring, "visible")
		})

		Convey("Request ids from the context are attached", func() {
			Get().Warn(WithRequestID(ctx, "abc-123"), "slow lookup")
			So(buf.String(), ShouldContainSubstring, "request_id=abc-123")
		})

		Convey("Named loggers tag their component", func() {
			Named("db").Error(ctx, "boom", Error(errors.New("disk gone")))
			out := buf.String()
			So(out, ShouldContainSubstring, "component=db")
			So(out, ShouldContainSubstring, "disk gone")
		})

		Convey("Unknown levels are rejected", func() {
			So(SetLevelString("loud"), ShouldNotBeNil)
		})

		Convey("JSON output can be selected", func() {
			var jbuf bytes.Buffer
			So(Init(WithOutput(&jbuf), WithJSON(true)), ShouldBeNil)
			Get().Info(ctx, "json line")
			So(jbuf.String(), ShouldStartWith, "{")
			So(jbuf.String(), ShouldContainSubstring, `"msg":"json line"`)
		})
	})
}
