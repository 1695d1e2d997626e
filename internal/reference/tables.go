// Package reference holds the published weight-trajectory tables used as a
// comparison baseline. Weights are given for a 150 kg starting weight and are
// scaled linearly to the user's own starting weight.
package reference

import "math"

// BaselineWeight is the starting weight (kg) the tables are expressed for
const BaselineWeight = 150.0

// Point is one row of a reference table
type Point struct {
	Week   int     `json:"week"`
	Weight float64 `json:"weight"` // kg at a 150 kg baseline
}

// Table is an ordered, monotonically non-increasing weight trajectory
type Table struct {
	Name   string
	Points []Point
}

// Horizon returns the last week covered by the table
func (t Table) Horizon() int {
	if len(t.Points) == 0 {
		return 0
	}
	return t.Points[len(t.Points)-1].Week
}

// Scaled returns the weight at row i scaled from the baseline to startWeight
func (t Table) Scaled(i int, startWeight float64) float64 {
	return t.Points[i].Weight * (startWeight / BaselineWeight)
}

// Nearest returns the row whose week is closest to week.
// On an exact tie the earlier row wins, so lookups are deterministic.
func (t Table) Nearest(week int) (Point, bool) {
	if len(t.Points) == 0 {
		return Point{}, false
	}
	best := t.Points[0]
	bestDist := math.Abs(float64(best.Week - week))
	for _, p := range t.Points[1:] {
		if d := math.Abs(float64(p.Week - week)); d < bestDist {
			best, bestDist = p, d
		}
	}
	return best, true
}

// ByName returns the table registered under name, defaulting to Weekly
func ByName(name string) Table {
	if name == Monthly.Name {
		return Monthly
	}
	return Weekly
}

// Weekly is the weekly-resolution trajectory covering weeks 0-72
var Weekly = Table{
	Name: "weekly",
	Points: []Point{
		{Week: 0, Weight: 150},
		{Week: 1, Weight: 148.8180298},
		{Week: 2, Weight: 147.6360595},
		{Week: 3, Weight: 146.4793556},
		{Week: 4, Weight: 145.3226516},
		{Week: 5, Weight: 144.3494539},
		{Week: 6, Weight: 143.3762561},
		{Week: 7, Weight: 142.4382032},
		{Week: 8, Weight: 141.5001503},
		{Week: 9, Weight: 140.634345},
		{Week: 10, Weight: 139.7685397},
		{Week: 11, Weight: 138.9325887},
		{Week: 12, Weight: 138.0966377},
		{Week: 13, Weight: 137.3478884},
		{Week: 14, Weight: 136.5991391},
		{Week: 15, Weight: 135.9258211},
		{Week: 16, Weight: 135.2525031},
		{Week: 17, Weight: 134.6229612},
		{Week: 18, Weight: 133.9934193},
		{Week: 19, Weight: 133.3969097},
		{Week: 20, Weight: 132.8004},
		{Week: 21, Weight: 132.2669293},
		{Week: 22, Weight: 131.7334586},
		{Week: 23, Weight: 131.2437163},
		{Week: 24, Weight: 130.7539739},
		{Week: 25, Weight: 130.3580553},
		{Week: 26, Weight: 129.9621366},
		{Week: 27, Weight: 129.5835799},
		{Week: 28, Weight: 129.2050232},
		{Week: 29, Weight: 128.8471359},
		{Week: 30, Weight: 128.4892487},
		{Week: 31, Weight: 128.1683409},
		{Week: 32, Weight: 127.8474331},
		{Week: 33, Weight: 127.5285283},
		{Week: 34, Weight: 127.2096235},
		{Week: 35, Weight: 126.9068896},
		{Week: 36, Weight: 126.6041556},
		{Week: 37, Weight: 126.3244091},
		{Week: 38, Weight: 126.0446626},
		{Week: 39, Weight: 125.7861233},
		{Week: 40, Weight: 125.527584},
		{Week: 41, Weight: 125.2886122},
		{Week: 42, Weight: 125.0496405},
		{Week: 43, Weight: 124.8287261},
		{Week: 44, Weight: 124.6078116},
		{Week: 45, Weight: 124.4035631},
		{Week: 46, Weight: 124.1993146},
		{Week: 47, Weight: 124.01045},
		{Week: 48, Weight: 123.8215855},
		{Week: 49, Weight: 123.6469234},
		{Week: 50, Weight: 123.4722614},
		{Week: 51, Weight: 123.3107131},
		{Week: 52, Weight: 123.1491647},
		{Week: 53, Weight: 122.9997264},
		{Week: 54, Weight: 122.850288},
		{Week: 55, Weight: 122.7120344},
		{Week: 56, Weight: 122.5737807},
		{Week: 57, Weight: 122.4458585},
		{Week: 58, Weight: 122.3179363},
		{Week: 59, Weight: 122.1995588},
		{Week: 60, Weight: 122.0811813},
		{Week: 61, Weight: 121.9716227},
		{Week: 62, Weight: 121.8620641},
		{Week: 63, Weight: 121.7606551},
		{Week: 64, Weight: 121.6592461},
		{Week: 65, Weight: 121.5653691},
		{Week: 66, Weight: 121.471492},
		{Week: 67, Weight: 121.384577},
		{Week: 68, Weight: 121.2976621},
		{Week: 69, Weight: 121.2171833},
		{Week: 70, Weight: 121.1367045},
		{Week: 71, Weight: 121.0621766},
		{Week: 72, Weight: 120.9876486},
	},
}

// Monthly is the coarser trajectory covering weeks 0-52 in 4-week steps
var Monthly = Table{
	Name: "monthly",
	Points: []Point{
		{Week: 0, Weight: 150},
		{Week: 4, Weight: 145.3226516},
		{Week: 8, Weight: 141.5001503},
		{Week: 12, Weight: 138.0966377},
		{Week: 16, Weight: 135.2525031},
		{Week: 20, Weight: 132.8004},
		{Week: 24, Weight: 130.7539739},
		{Week: 28, Weight: 129.2050232},
		{Week: 32, Weight: 127.8474331},
		{Week: 36, Weight: 126.6041556},
		{Week: 40, Weight: 125.527584},
		{Week: 44, Weight: 124.6078116},
		{Week: 48, Weight: 123.8215855},
		{Week: 52, Weight: 123.1491647},
	},
}
