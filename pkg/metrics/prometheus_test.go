package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/apexgp/apex-scoring/pkg/metrics"
)

func TestManager(t *testing.T) {
	Convey("Given a manager on a private registry", t, func() {
		reg := prometheus.NewRegistry()
		m := metrics.NewManager(metrics.WithRegistry(reg))

		Convey("When counters and gauges are exercised", func() {
			So(func() {
				m.RecordRaceProcessed()
				m.RecordPredictionScored()
				m.RecordPredictionSkipped()
				m.RecordDuplicateApply()
				m.RecordReconciliation()
				m.RecordLeaderboardUpdate()
				m.RecordScoringError()
				m.RecordStoreConflict()
				m.RecordStoreRetry()
				m.RecordScoringLatency(1.2)
				m.RecordStoreUpdateLatency(0.4)
				m.RecordStoreQueryLatency(0.2)
				m.UpdateQueueSize(5)
				m.UpdateQueueCapacity(100)
				m.UpdateWorkerCount(8)
				m.UpdateLeaderboardUsers(42)
				m.RecordHTTPRequest("results", "POST", "200")
				m.RecordHTTPRequestDuration("results", "POST", "200", 3.5)
			}, ShouldNotPanic)

			Convey("Then the registry gathers the families", func() {
				families, err := reg.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)

				names := make(map[string]struct{}, len(families))
				for _, f := range families {
					names[f.GetName()] = struct{}{}
				}
				So(names, ShouldContainKey, "apex_scoring_races_processed_total")
				So(names, ShouldContainKey, "apex_scoring_queue_size")
				So(names, ShouldContainKey, "apex_scoring_http_requests_total")
			})
		})
	})
}

func TestPackageHelpers(t *testing.T) {
	Convey("Given the package-level default manager", t, func() {
		Convey("When the helpers are called", func() {
			So(func() {
				metrics.RecordRaceProcessed()
				metrics.RecordPredictionScored()
				metrics.UpdateQueueSize(1)
				metrics.RecordHTTPRequest("stats", "GET", "200")
			}, ShouldNotPanic)
		})

		Convey("When the shared registry is gathered", func() {
			families, err := metrics.GetRegistry().Gather()
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
		})
	})
}
