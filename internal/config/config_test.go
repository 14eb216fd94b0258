package config_test

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/smartystreets/goconvey/convey"

	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.APIBaseURL, convey.ShouldEqual, "https://api.jolpi.ca/ergast")
			convey.So(cfg.MaxAttempts, convey.ShouldEqual, 3)
			convey.So(cfg.BackoffBase(), convey.ShouldEqual, time.Second)
			convey.So(cfg.EmptyRetries, convey.ShouldEqual, 1)
			convey.So(cfg.CacheTTL(), convey.ShouldEqual, time.Hour)
			convey.So(cfg.PageLimit, convey.ShouldEqual, 100)
			convey.So(cfg.RemoteParsingEnabled(), convey.ShouldBeFalse)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a config with broken fields", t, func() {
		cfg := config.New()
		cfg.MaxAttempts = 0
		cfg.APIBaseURL = "not a url"

		convey.Convey("Then Validate reports an invalid config", func() {
			err := cfg.Validate()
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}
