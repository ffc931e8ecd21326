package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/apexgp/apex-scoring/internal/config"
)

func TestLoad(t *testing.T) {
	Convey("Given a clean environment", t, func() {
		ctx := context.Background()
		for _, key := range []string{
			"APEX_CONFIG", "APEX_ADDR", "APEX_LOG_LEVEL", "APEX_QUEUE_SIZE",
			"APEX_RANK_CEILING", "APEX_DEFAULT_SEASON", "APEX_MAX_LEADERBOARD_LIMIT",
		} {
			So(os.Unsetenv(key), ShouldBeNil)
		}

		Convey("When loading without overrides", func() {
			cfg, err := config.Load(ctx)

			Convey("Then defaults apply", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":9080")
				So(cfg.LogLevel, ShouldEqual, "info")
				So(cfg.QueueSize, ShouldEqual, 10_000)
				So(cfg.RankCeiling, ShouldEqual, 9_999_999)
				So(cfg.MaxLeaderboardLimit, ShouldEqual, 100)
				So(cfg.DefaultSeason, ShouldEqual, "2026")
				So(cfg.WorkerCount, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When environment variables override defaults", func() {
			So(os.Setenv("APEX_ADDR", ":7070"), ShouldBeNil)
			So(os.Setenv("APEX_LOG_LEVEL", "debug"), ShouldBeNil)
			So(os.Setenv("APEX_QUEUE_SIZE", "500"), ShouldBeNil)
			defer func() {
				_ = os.Unsetenv("APEX_ADDR")
				_ = os.Unsetenv("APEX_LOG_LEVEL")
				_ = os.Unsetenv("APEX_QUEUE_SIZE")
			}()

			cfg, err := config.Load(ctx)

			Convey("Then the env values win", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":7070")
				So(cfg.LogLevel, ShouldEqual, "debug")
				So(cfg.QueueSize, ShouldEqual, 500)
			})

			Convey("And untouched fields keep their defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.DefaultSeason, ShouldEqual, "2026")
				So(cfg.RankCeiling, ShouldEqual, 9_999_999)
			})
		})

		Convey("When a YAML file is layered under env", func() {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")
			yaml := "addr: \":6060\"\ndefault_season: \"2027\"\n"
			So(os.WriteFile(path, []byte(yaml), 0o600), ShouldBeNil)
			So(os.Setenv("APEX_CONFIG", path), ShouldBeNil)
			So(os.Setenv("APEX_ADDR", ":5050"), ShouldBeNil)
			defer func() {
				_ = os.Unsetenv("APEX_CONFIG")
				_ = os.Unsetenv("APEX_ADDR")
			}()

			cfg, err := config.Load(ctx)

			Convey("Then env beats file beats defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":5050")
				So(cfg.DefaultSeason, ShouldEqual, "2027")
				So(cfg.LogLevel, ShouldEqual, "info")
			})
		})

		Convey("When the config file is missing", func() {
			So(os.Setenv("APEX_CONFIG", "/nonexistent/config.yaml"), ShouldBeNil)
			defer func() { _ = os.Unsetenv("APEX_CONFIG") }()

			_, err := config.Load(ctx)

			Convey("Then loading fails with the load sentinel", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, config.ErrLoadConfig), ShouldBeTrue)
			})
		})

		Convey("When an override is invalid", func() {
			So(os.Setenv("APEX_RANK_CEILING", "3"), ShouldBeNil)
			defer func() { _ = os.Unsetenv("APEX_RANK_CEILING") }()

			_, err := config.Load(ctx)

			Convey("Then validation rejects it", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			})
		})
	})
}
