package airquality

// Category is the display band derived from an AQI index.
type Category struct {
	Label    string `json:"label"`
	Color    string `json:"color"`
	Advisory string `json:"advisory"`
}

// Band is a Category with its inclusive index range. Max is nil for the
// open-ended top band.
type Band struct {
	Min      int      `json:"min"`
	Max      *int     `json:"max"`
	Category Category `json:"category"`
}

func upTo(n int) *int { return &n }

var bands = [...]Band{
	{0, upTo(50), Category{
		Label:    "Good",
		Color:    "#22c55e",
		Advisory: "Air quality is considered satisfactory, and air pollution poses little or no risk.",
	}},
	{51, upTo(100), Category{
		Label:    "Moderate",
		Color:    "#facc15",
		Advisory: "Air quality is acceptable; however, for some pollutants there may be a moderate health concern for a very small number of people.",
	}},
	{101, upTo(150), Category{
		Label:    "Unhealthy for Sensitive Groups",
		Color:    "#f97316",
		Advisory: "Members of sensitive groups may experience health effects. The general public is not likely to be affected.",
	}},
	{151, upTo(200), Category{
		Label:    "Unhealthy",
		Color:    "#ef4444",
		Advisory: "Everyone may begin to experience health effects; members of sensitive groups may experience more serious health effects.",
	}},
	{201, upTo(300), Category{
		Label:    "Very Unhealthy",
		Color:    "#b91c1c",
		Advisory: "Health warnings of emergency conditions. The entire population is more likely to be affected.",
	}},
	{301, nil, Category{
		Label:    "Hazardous",
		Color:    "#7f1d1d",
		Advisory: "Health alert: everyone may experience more serious health effects.",
	}},
}

// Categorize maps an index to its band. Upper bounds are inclusive.
// Negative input is clamped into the first band.
func Categorize(index int) Category {
	for _, b := range bands {
		if b.Max == nil || index <= *b.Max {
			return b.Category
		}
	}
	return bands[len(bands)-1].Category
}

// Legend returns every band in ascending order.
func Legend() []Band {
	out := make([]Band, len(bands))
	for i, b := range bands {
		if b.Max != nil {
			b.Max = upTo(*b.Max)
		}
		out[i] = b
	}
	return out
}
