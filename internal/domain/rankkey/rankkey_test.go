package rankkey_test

import (
	"sort"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/apexgp/apex-scoring/internal/domain/rankkey"
)

func TestCodec_Encode(t *testing.T) {
	Convey("Given a codec with the default ceiling", t, func() {
		codec := rankkey.New()

		Convey("Then width matches the ceiling's digit count", func() {
			So(codec.Ceiling(), ShouldEqual, 9_999_999)
			So(codec.Width(), ShouldEqual, 7)
		})

		Convey("When encoding zero points", func() {
			key, err := codec.Encode(0)

			Convey("Then the key is the lexicographic maximum", func() {
				So(err, ShouldBeNil)
				So(key, ShouldEqual, "9999999")
			})
		})

		Convey("When encoding the ceiling", func() {
			key, err := codec.Encode(9_999_999)

			Convey("Then the key is the lexicographic minimum", func() {
				So(err, ShouldBeNil)
				So(key, ShouldEqual, "0000000")
			})
		})

		Convey("When encoding a mid-range total", func() {
			key, err := codec.Encode(1234)

			Convey("Then the key is zero-padded to full width", func() {
				So(err, ShouldBeNil)
				So(key, ShouldEqual, "9998765")
				So(len(key), ShouldEqual, codec.Width())
			})
		})

		Convey("When encoding negative points", func() {
			_, err := codec.Encode(-1)

			Convey("Then it rejects with the negative sentinel", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, rankkey.ErrNegativePoints.Error())
			})
		})

		Convey("When encoding above the ceiling", func() {
			_, err := codec.Encode(10_000_000)

			Convey("Then it rejects instead of truncating", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, rankkey.ErrAboveCeiling.Error())
			})
		})
	})
}

func TestCodec_Decode(t *testing.T) {
	Convey("Given a codec with the default ceiling", t, func() {
		codec := rankkey.New()

		Convey("When decoding keys produced by Encode", func() {
			for _, points := range []int{0, 1, 9, 50, 300, 1234, 99_999, 9_999_999} {
				key, err := codec.Encode(points)
				So(err, ShouldBeNil)

				got, err := codec.Decode(key)
				So(err, ShouldBeNil)
				So(got, ShouldEqual, points)
			}
		})

		Convey("When decoding a key of the wrong width", func() {
			_, err := codec.Decode("123")

			Convey("Then it rejects as malformed", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, rankkey.ErrMalformedKey.Error())
			})
		})

		Convey("When decoding a non-numeric key", func() {
			_, err := codec.Decode("99x9999")

			Convey("Then it rejects as malformed", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When decoding a signed key of correct width", func() {
			_, err := codec.Decode("-123456")

			Convey("Then it rejects as malformed", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestCodec_Ordering(t *testing.T) {
	Convey("Given totals in descending point order", t, func() {
		codec := rankkey.New()
		totals := []int{5000, 1234, 300, 299, 50, 20, 1, 0}

		Convey("When each total is encoded", func() {
			keys := make([]string, len(totals))
			for i, p := range totals {
				key, err := codec.Encode(p)
				So(err, ShouldBeNil)
				keys[i] = key
			}

			Convey("Then the keys come out in ascending string order", func() {
				So(sort.StringsAreSorted(keys), ShouldBeTrue)
			})

			Convey("And higher points always yield a strictly smaller key", func() {
				for i := 1; i < len(keys); i++ {
					So(keys[i-1], ShouldBeLessThan, keys[i])
				}
			})
		})
	})
}

func TestCodec_WithCeiling(t *testing.T) {
	Convey("Given a codec with a custom ceiling", t, func() {
		codec := rankkey.New(rankkey.WithCeiling(999))

		Convey("Then the width follows the ceiling", func() {
			So(codec.Width(), ShouldEqual, 3)
		})

		Convey("When encoding within the smaller range", func() {
			key, err := codec.Encode(999)
			So(err, ShouldBeNil)
			So(key, ShouldEqual, "000")

			key, err = codec.Encode(0)
			So(err, ShouldBeNil)
			So(key, ShouldEqual, "999")
		})

		Convey("When the requested ceiling is below the minimum", func() {
			tiny := rankkey.New(rankkey.WithCeiling(3))

			Convey("Then the default is kept", func() {
				So(tiny.Ceiling(), ShouldEqual, rankkey.DefaultCeiling)
			})
		})
	})
}
