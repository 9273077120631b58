package output

import (
	"encoding/xml"

	"github.com/cxd309/roadsim/internal/engine"
)

type meanDataXML struct {
	XMLName  xml.Name `xml:"meandata"`
	Interval struct {
		Begin float64           `xml:"begin,attr"`
		End   float64           `xml:"end,attr"`
		Edges []edgeMeanDataXML `xml:"edge"`
	} `xml:"interval"`
}

type edgeMeanDataXML struct {
	ID            string  `xml:"id,attr"`
	Arrived       float64 `xml:"arrived,attr"`
	Density       float64 `xml:"density,attr"`
	Speed         float64 `xml:"speed,attr"`
	TravelTime    float64 `xml:"traveltime,attr"`
	TrafficVolume float64 `xml:"trafficVolume,attr"`
}

// EdgeDataWriter writes the mean statistics of every edge over the run to
// edgeData.edd.xml. The simulation must accumulate edge statistics.
type EdgeDataWriter struct {
	Target
}

// NewEdgeDataWriter writes per-edge means when the run ends.
func NewEdgeDataWriter(t Target) *EdgeDataWriter { return &EdgeDataWriter{Target: t} }

// RecordStep is a no-op.
func (w *EdgeDataWriter) RecordStep(engine.StepReport) error { return nil }

// Finish writes edgeData.edd.xml over the whole run.
func (w *EdgeDataWriter) Finish(s engine.Summary) error {
	var doc meanDataXML
	doc.Interval.Begin = s.BeginTime
	doc.Interval.End = s.FinalTimeSlot
	for _, st := range s.EdgeStatistics() {
		doc.Interval.Edges = append(doc.Interval.Edges, edgeMeanDataXML{
			ID:            st.EdgeID,
			Arrived:       st.Arrived,
			Density:       st.Density,
			Speed:         st.Speed,
			TravelTime:    st.TravelTime,
			TrafficVolume: st.TrafficVolume,
		})
	}
	path, err := w.path("", "edgeData", "edd.xml")
	if err != nil {
		return err
	}
	if err := w.write(path, doc); err != nil {
		return err
	}
	w.Overwrite = true // a later Finish replaces this file
	return nil
}

type tripInfosXML struct {
	XMLName xml.Name      `xml:"tripinfos"`
	Trips   []tripInfoXML `xml:"tripinfo"`
}

type tripInfoXML struct {
	ID          string  `xml:"id,attr"`
	Depart      float64 `xml:"depart,attr"`
	DepartEdge  string  `xml:"departEdge,attr"`
	Arrival     float64 `xml:"arrival,attr"`
	ArrivalEdge string  `xml:"arrivalEdge,attr"`
	RouteLength float64 `xml:"routeLength,attr"`
	Duration    float64 `xml:"duration,attr"`
	WaitSteps   int     `xml:"waitSteps,attr"`
	VType       string  `xml:"vType,attr"`
}

// TripInfosWriter writes the trip record of every arrived vehicle, in arrival
// order, to tripinfos.ti.xml.
type TripInfosWriter struct {
	Target
}

// NewTripInfosWriter writes one record per arrived vehicle when the run ends.
func NewTripInfosWriter(t Target) *TripInfosWriter { return &TripInfosWriter{Target: t} }

// RecordStep is a no-op.
func (w *TripInfosWriter) RecordStep(engine.StepReport) error { return nil }

// Finish writes tripinfos.ti.xml ordered by arrival.
func (w *TripInfosWriter) Finish(s engine.Summary) error {
	var doc tripInfosXML
	for _, ti := range s.TripInfos() {
		doc.Trips = append(doc.Trips, tripInfoXML{
			ID:          ti.VehicleID,
			Depart:      ti.Depart,
			DepartEdge:  ti.DepartEdge,
			Arrival:     ti.Arrival,
			ArrivalEdge: ti.ArrivalEdge,
			RouteLength: ti.RouteLength,
			Duration:    ti.Duration,
			WaitSteps:   ti.WaitSteps,
			VType:       ti.TypeID,
		})
	}
	path, err := w.path("", "tripinfos", "ti.xml")
	if err != nil {
		return err
	}
	if err := w.write(path, doc); err != nil {
		return err
	}
	w.Overwrite = true
	return nil
}
