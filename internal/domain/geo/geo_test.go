package geo_test

import (
	"testing"

	"github.com/legalize2/location-tracker-app/internal/domain/geo"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDistance(t *testing.T) {
	Convey("Given the Haversine distance function", t, func() {
		Convey("When both points are identical", func() {
			Convey("Then the distance is zero", func() {
				So(geo.Distance(41.0082, 28.9784, 41.0082, 28.9784), ShouldEqual, 0)
				So(geo.Distance(0, 0, 0, 0), ShouldEqual, 0)
				So(geo.Distance(-90, 180, -90, 180), ShouldEqual, 0)
			})
		})

		Convey("When the arguments are swapped", func() {
			Convey("Then the distance is symmetric", func() {
				d1 := geo.Distance(41.0082, 28.9784, 40.7128, -74.0060)
				d2 := geo.Distance(40.7128, -74.0060, 41.0082, 28.9784)
				So(d1, ShouldAlmostEqual, d2, 1e-9)
			})
		})

		Convey("When measuring two nearby points in Istanbul", func() {
			d := geo.Distance(41.0082, 28.9784, 41.0122, 28.9844)

			Convey("Then the distance is roughly 0.67 km", func() {
				So(d, ShouldBeBetween, 0.6, 0.7)
			})
		})

		Convey("When measuring a known long haul", func() {
			// Istanbul to New York, roughly 8000 km.
			d := geo.Distance(41.0082, 28.9784, 40.7128, -74.0060)

			Convey("Then the distance is in the expected band", func() {
				So(d, ShouldBeBetween, 7900, 8150)
			})
		})

		Convey("When converting to meters", func() {
			km := geo.Distance(41.0082, 28.9784, 41.0122, 28.9844)
			m := geo.DistanceMeters(41.0082, 28.9784, 41.0122, 28.9844)

			Convey("Then the meter value is the kilometer value times 1000", func() {
				So(m, ShouldAlmostEqual, km*1000, 1e-9)
			})
		})
	})
}
