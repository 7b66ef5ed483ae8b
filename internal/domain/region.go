package domain

// Region is a tag from the closed set of body regions the body map can show.
type Region string

const (
	RegionNone           Region = ""
	RegionHead           Region = "head"
	RegionNeck           Region = "neck"
	RegionLeftShoulder   Region = "left_shoulder"
	RegionRightShoulder  Region = "right_shoulder"
	RegionLowerBack      Region = "lower_back"
	RegionGroin          Region = "groin"
	RegionLeftHamstring  Region = "left_hamstring"
	RegionRightHamstring Region = "right_hamstring"
	RegionLeftKnee       Region = "left_knee"
	RegionRightKnee      Region = "right_knee"
	RegionLeftAnkle      Region = "left_ankle"
	RegionRightAnkle     Region = "right_ankle"
)

// BodyMapSize is the extent of the body map coordinate space on both axes.
const BodyMapSize = 1000

// RegionSpot places a region on the body map illustration.
type RegionSpot struct {
	Region Region
	Label  string
	X, Y   int
}

// regionSpots is ordered head to feet so markers render in a stable order.
var regionSpots = []RegionSpot{
	{RegionHead, "Head", 500, 930},
	{RegionNeck, "Neck", 500, 850},
	{RegionLeftShoulder, "Left Shoulder", 380, 800},
	{RegionRightShoulder, "Right Shoulder", 620, 800},
	{RegionLowerBack, "Lower Back", 500, 600},
	{RegionGroin, "Groin", 500, 500},
	{RegionLeftHamstring, "Left Hamstring", 440, 400},
	{RegionRightHamstring, "Right Hamstring", 560, 400},
	{RegionLeftKnee, "Left Knee", 440, 290},
	{RegionRightKnee, "Right Knee", 560, 290},
	{RegionLeftAnkle, "Left Ankle", 440, 90},
	{RegionRightAnkle, "Right Ankle", 560, 90},
}

// RegionSpots returns the body map placement of every known region.
func RegionSpots() []RegionSpot {
	out := make([]RegionSpot, len(regionSpots))
	copy(out, regionSpots)
	return out
}

// LookupRegion returns the placement for r.
func LookupRegion(r Region) (RegionSpot, bool) {
	for _, s := range regionSpots {
		if s.Region == r {
			return s, true
		}
	}
	return RegionSpot{}, false
}

// ParseRegion accepts a region tag ("left_knee") or its label ("Left Knee").
// The empty string and "none" map to RegionNone.
func ParseRegion(s string) (Region, bool) {
	if s == "" || s == "none" {
		return RegionNone, true
	}
	for _, spot := range regionSpots {
		if string(spot.Region) == s || spot.Label == s {
			return spot.Region, true
		}
	}
	return RegionNone, false
}

// RegionTags lists the valid tags, used to constrain model output.
func RegionTags() []string {
	out := make([]string, 0, len(regionSpots))
	for _, s := range regionSpots {
		out = append(out, string(s.Region))
	}
	return out
}
