package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/legalize2/location-tracker-app/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDefaults(t *testing.T) {
	Convey("Given no file or env overrides", t, func() {
		os.Unsetenv("TRACKLINK_CONFIG")

		Convey("When loading", func() {
			cfg, err := config.Load(context.Background())

			Convey("Then the defaults apply", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":8090")
				So(cfg.LogLevel, ShouldEqual, "info")
				So(cfg.StopGapMinutes, ShouldEqual, 5)
				So(cfg.DispatchWorkers, ShouldBeGreaterThan, 0)
				So(cfg.MQTTBrokerURL, ShouldBeEmpty)
			})
		})
	})
}

func TestEnvOverrides(t *testing.T) {
	Convey("Given TRACKLINK_ env overrides", t, func() {
		os.Unsetenv("TRACKLINK_CONFIG")
		t.Setenv("TRACKLINK_ADDR", ":9999")
		t.Setenv("TRACKLINK_QUEUE_SIZE", "123")
		t.Setenv("TRACKLINK_LOG_LEVEL", "debug")

		Convey("When loading", func() {
			cfg, err := config.Load(context.Background())

			Convey("Then env values win over defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":9999")
				So(cfg.QueueSize, ShouldEqual, 123)
				So(cfg.LogLevel, ShouldEqual, "debug")
			})
		})
	})
}

func TestFileLayer(t *testing.T) {
	Convey("Given a YAML config file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		body := "addr: \":7070\"\nstop_gap_minutes: 10\n"
		So(os.WriteFile(path, []byte(body), 0o600), ShouldBeNil)
		t.Setenv("TRACKLINK_CONFIG", path)

		Convey("When loading", func() {
			cfg, err := config.Load(context.Background())

			Convey("Then file values apply", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":7070")
				So(cfg.StopGapMinutes, ShouldEqual, 10)
			})
		})

		Convey("When env overrides the file", func() {
			t.Setenv("TRACKLINK_ADDR", ":6060")
			cfg, err := config.Load(context.Background())

			Convey("Then env wins", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":6060")
			})
		})
	})
}

func TestValidation(t *testing.T) {
	Convey("Given invalid configuration values", t, func() {
		os.Unsetenv("TRACKLINK_CONFIG")

		Convey("When the log level is unknown", func() {
			t.Setenv("TRACKLINK_LOG_LEVEL", "verbose")
			_, err := config.Load(context.Background())

			Convey("Then loading fails with ErrInvalidConfig", func() {
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			})
		})

		Convey("When the queue size is zero", func() {
			t.Setenv("TRACKLINK_QUEUE_SIZE", "0")
			_, err := config.Load(context.Background())

			Convey("Then loading fails with ErrInvalidConfig", func() {
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			})
		})
	})
}
