package loader

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cxd309/roadsim/internal/engine"
	"github.com/cxd309/roadsim/internal/graph"
	"github.com/cxd309/roadsim/internal/logger"
	"github.com/cxd309/roadsim/internal/vehicle"
)

// SumoConfig is the part of a .sumocfg file used by the simulator. File
// paths are resolved against the directory of the configuration file.
type SumoConfig struct {
	NetFile    string
	RouteFiles []string
	BeginTime  float64 // seconds
	EndTime    float64 // seconds, -1 when absent
	StepLength float64 // seconds
	RemotePort int     // 0 when absent
}

type valueAttr struct {
	Value string `xml:"value,attr"`
}

type sumoCfgXML struct {
	NetFile    valueAttr `xml:"input>net-file"`
	RouteFiles valueAttr `xml:"input>route-files"`
	Begin      valueAttr `xml:"time>begin"`
	End        valueAttr `xml:"time>end"`
	StepLength valueAttr `xml:"time>step-length"`
	RemotePort valueAttr `xml:"traci_server>remote-port"`
}

type sumoNetXML struct {
	Junctions []struct {
		ID string  `xml:"id,attr"`
		X  float64 `xml:"x,attr"`
		Y  float64 `xml:"y,attr"`
	} `xml:"junction"`
	Edges []struct {
		ID       string `xml:"id,attr"`
		From     string `xml:"from,attr"`
		To       string `xml:"to,attr"`
		Priority int    `xml:"priority,attr"`
		Lanes    []struct {
			Length float64 `xml:"length,attr"`
			Speed  float64 `xml:"speed,attr"`
		} `xml:"lane"`
	} `xml:"edge"`
}

type sumoRouteXML struct {
	Edges string `xml:"edges,attr"`
}

type sumoRoutesXML struct {
	VTypes []struct {
		ID       string  `xml:"id,attr"`
		Length   float64 `xml:"length,attr"`
		MaxSpeed float64 `xml:"maxSpeed,attr"`
	} `xml:"vType"`
	Routes []struct {
		ID    string `xml:"id,attr"`
		Edges string `xml:"edges,attr"`
	} `xml:"route"`
	Vehicles []struct {
		ID     string        `xml:"id,attr"`
		Type   string        `xml:"type,attr"`
		Depart string        `xml:"depart,attr"`
		Route  string        `xml:"route,attr"`
		Inline *sumoRouteXML `xml:"route"`
	} `xml:"vehicle"`
}

func decodeXML(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := xml.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("parsing %q: %w", path, err)
	}
	return nil
}

func parseFloatAttr(name string, a valueAttr, def float64) (float64, error) {
	if a.Value == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(a.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, a.Value)
	}
	return f, nil
}

// ReadSumoConfig reads the input files, time window and remote-control port
// of a .sumocfg file. Begin defaults to 0, end to -1 and step length to 1.
func ReadSumoConfig(path string) (*SumoConfig, error) {
	var raw sumoCfgXML
	if err := decodeXML(path, &raw); err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	cfg := &SumoConfig{}
	if raw.NetFile.Value != "" {
		cfg.NetFile = filepath.Join(dir, raw.NetFile.Value)
	}
	for _, f := range strings.FieldsFunc(raw.RouteFiles.Value, func(r rune) bool { return r == ',' || r == ' ' }) {
		cfg.RouteFiles = append(cfg.RouteFiles, filepath.Join(dir, f))
	}

	var err error
	if cfg.BeginTime, err = parseFloatAttr("begin time", raw.Begin, 0); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.EndTime, err = parseFloatAttr("end time", raw.End, -1); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.StepLength, err = parseFloatAttr("step length", raw.StepLength, 1); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if raw.RemotePort.Value != "" {
		if cfg.RemotePort, err = strconv.Atoi(raw.RemotePort.Value); err != nil {
			return nil, fmt.Errorf("%s: invalid remote port %q", path, raw.RemotePort.Value)
		}
	}
	return cfg, nil
}

// ReadSumoNet converts a SUMO net file into graph data. Junctions become
// nodes. Internal edges (ids starting with ':') are skipped. Length and speed
// of an edge come from its first lane and its capacity from the lane count.
func ReadSumoNet(path string) (engine.GraphData, error) {
	var raw sumoNetXML
	var gd engine.GraphData
	if err := decodeXML(path, &raw); err != nil {
		return gd, err
	}
	for _, j := range raw.Junctions {
		if j.ID == "" {
			return gd, fmt.Errorf("%s: junction without id", path)
		}
		gd.Nodes = append(gd.Nodes, graph.NodeData{ID: j.ID, Loc: graph.Coordinate{X: j.X, Y: j.Y}})
	}
	for _, e := range raw.Edges {
		switch {
		case e.ID == "":
			return gd, fmt.Errorf("%s: edge without id", path)
		case strings.HasPrefix(e.ID, ":"):
			continue
		case e.From == "" || e.To == "":
			return gd, fmt.Errorf("%s: edge %q has no start or end junction", path, e.ID)
		case len(e.Lanes) == 0:
			return gd, fmt.Errorf("%s: edge %q has no lane", path, e.ID)
		}
		first := e.Lanes[0]
		capacity := graph.CapacityFromLanes(len(e.Lanes), first.Length)
		gd.Edges = append(gd.Edges, engine.EdgeInput{EdgeData: graph.EdgeData{
			ID:         e.ID,
			From:       e.From,
			To:         e.To,
			Length:     first.Length,
			SpeedLimit: first.Speed,
			Priority:   e.Priority,
			Capacity:   &capacity,
			Lanes:      len(e.Lanes),
		}})
	}
	return gd, nil
}

// ReadSumoVehicleTypes returns the vType definitions of a SUMO routes file.
func ReadSumoVehicleTypes(path string) ([]vehicle.TypeData, error) {
	var raw sumoRoutesXML
	if err := decodeXML(path, &raw); err != nil {
		return nil, err
	}
	return vehicleTypes(path, raw)
}

func vehicleTypes(path string, raw sumoRoutesXML) ([]vehicle.TypeData, error) {
	types := make([]vehicle.TypeData, 0, len(raw.VTypes))
	for _, t := range raw.VTypes {
		if t.ID == "" {
			return nil, fmt.Errorf("%s: vType without id", path)
		}
		types = append(types, vehicle.TypeData{ID: t.ID, Length: t.Length, MaxSpeed: t.MaxSpeed})
	}
	return types, nil
}

// ReadSumoRoutes returns the vehicle types and vehicles of a SUMO routes
// file. A vehicle route is either an inline <route edges="..."/> child or a
// reference to a top-level route by id.
func ReadSumoRoutes(path string) ([]vehicle.TypeData, []engine.VehicleInput, error) {
	var raw sumoRoutesXML
	if err := decodeXML(path, &raw); err != nil {
		return nil, nil, err
	}
	types, err := vehicleTypes(path, raw)
	if err != nil {
		return nil, nil, err
	}

	named := make(map[string]string, len(raw.Routes))
	for _, r := range raw.Routes {
		named[r.ID] = r.Edges
	}
	vehicles := make([]engine.VehicleInput, 0, len(raw.Vehicles))
	for _, v := range raw.Vehicles {
		if v.ID == "" {
			return nil, nil, fmt.Errorf("%s: vehicle without id", path)
		}
		if v.Type == "" {
			return nil, nil, fmt.Errorf("%s: vehicle %q has no type", path, v.ID)
		}
		depart, err := strconv.ParseFloat(v.Depart, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: vehicle %q has an invalid departure time %q", path, v.ID, v.Depart)
		}
		var edges string
		switch {
		case v.Inline != nil:
			edges = v.Inline.Edges
		case v.Route != "":
			var ok bool
			if edges, ok = named[v.Route]; !ok {
				return nil, nil, fmt.Errorf("%s: vehicle %q references unknown route %q", path, v.ID, v.Route)
			}
		default:
			return nil, nil, fmt.Errorf("%s: vehicle %q has no route", path, v.ID)
		}
		vehicles = append(vehicles, engine.VehicleInput{
			VehicleID: v.ID,
			TypeID:    v.Type,
			Depart:    depart,
			Route:     strings.Fields(edges),
		})
	}
	return types, vehicles, nil
}

// ReadSumo builds a SimulationInput from a .sumocfg file. When typesPath is
// set, vehicle types are read from it instead of from the route files.
func ReadSumo(cfgPath, typesPath string) (engine.SimulationInput, *SumoConfig, error) {
	var input engine.SimulationInput
	cfg, err := ReadSumoConfig(cfgPath)
	if err != nil {
		return input, nil, err
	}
	if cfg.NetFile == "" {
		return input, nil, fmt.Errorf("%s: no net-file", cfgPath)
	}

	input.Meta = engine.SimulationMeta{
		SimulationID: uuid.NewString(),
		BeginTime:    cfg.BeginTime,
		StepLength:   cfg.StepLength,
	}
	if cfg.EndTime >= 0 {
		end := cfg.EndTime
		input.Meta.EndTime = &end
	}

	if input.GraphData, err = ReadSumoNet(cfg.NetFile); err != nil {
		return input, nil, err
	}
	if typesPath != "" {
		if input.VehicleTypes, err = ReadSumoVehicleTypes(typesPath); err != nil {
			return input, nil, err
		}
	}
	for _, rf := range cfg.RouteFiles {
		types, vehicles, err := ReadSumoRoutes(rf)
		if err != nil {
			return input, nil, err
		}
		if typesPath == "" {
			input.VehicleTypes = append(input.VehicleTypes, types...)
		}
		input.VehicleList = append(input.VehicleList, vehicles...)
	}

	logger.WithTag("LOAD").WithFields(logrus.Fields{
		"nodes":    len(input.GraphData.Nodes),
		"edges":    len(input.GraphData.Edges),
		"vehicles": len(input.VehicleList),
	}).Info("sumo network read")
	return input, cfg, nil
}
