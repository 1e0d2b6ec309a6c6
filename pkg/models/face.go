package models

// Point is a 2D coordinate in image pixel space
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is a face bounding box in image pixel space
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Landmarks is the anatomical landmark set a detector reports for one
// face. LeftEye and RightEye are the outer eye corners and serve as
// the rotation/scale reference axis; Points carries the full set.
type Landmarks struct {
	Points   []Point `json:"points"`
	LeftEye  Point   `json:"left_eye"`
	RightEye Point   `json:"right_eye"`
}

// Detection is a single face detection result
type Detection struct {
	Score     float64   `json:"score"`
	Box       Box       `json:"box"`
	Landmarks Landmarks `json:"landmarks"`
}
