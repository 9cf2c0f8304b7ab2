package geo

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodePolyline_KnownVector(t *testing.T) {
	pts := DecodePolyline("_p~iF~ps|U_ulLnnqC_mqNvxq`@")
	require.Len(t, pts, 3)
	require.InDelta(t, 38.5, pts[0].Lat, 1e-9)
	require.InDelta(t, -120.2, pts[0].Lng, 1e-9)
	require.InDelta(t, 40.7, pts[1].Lat, 1e-9)
	require.InDelta(t, -120.95, pts[1].Lng, 1e-9)
	require.InDelta(t, 43.252, pts[2].Lat, 1e-9)
	require.InDelta(t, -126.453, pts[2].Lng, 1e-9)
}

func TestEncodePolyline_KnownVector(t *testing.T) {
	enc := EncodePolyline([]Point{{38.5, -120.2}, {40.7, -120.95}, {43.252, -126.453}})
	require.Equal(t, "_p~iF~ps|U_ulLnnqC_mqNvxq`@", enc)
}

func TestPolyline_Empty(t *testing.T) {
	require.Empty(t, DecodePolyline(""))
	require.Equal(t, "", EncodePolyline(nil))
}

func TestDecodePolyline_MalformedTerminates(t *testing.T) {
	// обрезанный поток: последний varint не закончен
	pts := DecodePolyline("_p~iF~ps|U_ulL")
	require.Len(t, pts, 1)

	// символы ниже '?' не входят в алфавит
	require.Empty(t, DecodePolyline("   "))

	// бесконечная "продолжающаяся" последовательность обрывается концом строки
	require.Empty(t, DecodePolyline("~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~"))
}

func TestPolyline_RoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for iter := 0; iter < 200; iter++ {
		n := 1 + r.Intn(50)
		pts := make([]Point, n)
		for i := range pts {
			pts[i] = Point{
				Lat: math.Round((r.Float64()*180-90)*1e5) / 1e5,
				Lng: math.Round((r.Float64()*360-180)*1e5) / 1e5,
			}
		}
		got := DecodePolyline(EncodePolyline(pts))
		require.Len(t, got, n)
		for i := range pts {
			require.InDelta(t, pts[i].Lat, got[i].Lat, 1e-5)
			require.InDelta(t, pts[i].Lng, got[i].Lng, 1e-5)
		}
	}
}
