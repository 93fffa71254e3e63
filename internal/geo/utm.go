package geo

import "math"

// WGS84 ellipsoid and transverse Mercator constants.
const (
	wgs84A = 6378137.0
	wgs84F = 1.0 / 298.257223563
	utmK0  = 0.9996

	falseEasting        = 500000.0
	falseNorthingSouth  = 10000000.0
)

// utmProjection is a forward-only transverse Mercator projection fixed to a
// single UTM zone. Inverse projection is not needed; all outputs stay in
// geographic coordinates.
type utmProjection struct {
	lon0  float64 // central meridian, radians
	south bool
}

// utmFor picks the UTM zone containing (lon, lat).
func utmFor(lon, lat float64) utmProjection {
	zone := int(math.Floor((lon+180)/6)) + 1
	if zone < 1 {
		zone = 1
	}
	if zone > 60 {
		zone = 60
	}
	lon0 := float64((zone-1)*6-180+3) * math.Pi / 180
	return utmProjection{lon0: lon0, south: lat < 0}
}

// forward projects geographic (lon, lat) degrees to UTM easting/northing
// meters using the standard series expansion.
func (p utmProjection) forward(lon, lat float64) (x, y float64) {
	e2 := wgs84F * (2 - wgs84F)
	ep2 := e2 / (1 - e2)

	phi := lat * math.Pi / 180
	lam := lon * math.Pi / 180

	sinPhi := math.Sin(phi)
	cosPhi := math.Cos(phi)
	tanPhi := math.Tan(phi)

	n := wgs84A / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := tanPhi * tanPhi
	c := ep2 * cosPhi * cosPhi
	a := cosPhi * (lam - p.lon0)

	// Meridional arc length.
	m := wgs84A * ((1-e2/4-3*e2*e2/64-5*e2*e2*e2/256)*phi -
		(3*e2/8+3*e2*e2/32+45*e2*e2*e2/1024)*math.Sin(2*phi) +
		(15*e2*e2/256+45*e2*e2*e2/1024)*math.Sin(4*phi) -
		(35*e2*e2*e2/3072)*math.Sin(6*phi))

	x = utmK0*n*(a+(1-t+c)*a*a*a/6+
		(5-18*t+t*t+72*c-58*ep2)*a*a*a*a*a/120) + falseEasting

	y = utmK0 * (m + n*tanPhi*(a*a/2+
		(5-t+9*c+4*c*c)*a*a*a*a/24+
		(61-58*t+t*t+600*c-330*ep2)*a*a*a*a*a*a/720))
	if p.south {
		y += falseNorthingSouth
	}
	return x, y
}
