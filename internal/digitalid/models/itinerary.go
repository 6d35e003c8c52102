package models

// LocationData is a single device location sample.
// Altitude, Speed and Bearing are optional and round-trip as JSON null.
type LocationData struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  float32  `json:"accuracy"`
	Altitude  *float64 `json:"altitude"`
	Speed     *float32 `json:"speed"`
	Bearing   *float32 `json:"bearing"`
	Provider  string   `json:"provider"`
}

// Destination is one planned stop of an itinerary.
type Destination struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Coordinates LocationData `json:"coordinates"`
	PlannedDate string       `json:"plannedDate"`
}

// TravelItinerary is the declared trip. Destinations keep their submitted order.
type TravelItinerary struct {
	EntryDate    string        `json:"entryDate"`
	ExitDate     string        `json:"exitDate"`
	Destinations []Destination `json:"destinations"`
}
