package board

import (
	"math"

	"github.com/kilianp07/fieldboard/core/model"
	"gonum.org/v1/gonum/stat"
)

// Utilization summarizes how evenly capacity-bound lanes are filled.
type Utilization struct {
	Lanes      int     `json:"lanes"`
	MeanFill   float64 `json:"mean_fill"`
	StdDevFill float64 `json:"stddev_fill"`
	Assigned   int     `json:"assigned"`
	Unassigned int     `json:"unassigned"`
}

// Utilize computes fill statistics over the lanes of v that have a
// capacity. Unlimited lanes only contribute to the job counts.
func Utilize(v View) Utilization {
	var u Utilization
	fills := make([]float64, 0, len(v.Lanes))
	for _, l := range v.Lanes {
		if l.VehicleID == model.Unassigned {
			u.Unassigned += len(l.Jobs)
			continue
		}
		u.Assigned += len(l.Jobs)
		if !l.Capacity.IsUnlimited() {
			fills = append(fills, l.Fill)
		}
	}
	u.Lanes = len(fills)
	switch len(fills) {
	case 0:
	case 1:
		u.MeanFill = fills[0]
	default:
		u.MeanFill, u.StdDevFill = stat.MeanStdDev(fills, nil)
		if math.IsNaN(u.StdDevFill) {
			u.StdDevFill = 0
		}
	}
	return u
}
