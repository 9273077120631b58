// Package output writes simulation results as XML files.
//
// Every writer is an engine.Recorder. Per-step writers produce one file per
// step in their own sub-directory, end-of-run writers a single file in the
// output directory. File names follow <base>[_<name>].<ext>.
package output

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/cxd309/roadsim/internal/engine"
	"github.com/cxd309/roadsim/internal/graph"
	"github.com/cxd309/roadsim/internal/network"
)

// Target is where and how a writer creates its files.
type Target struct {
	Dir       string
	Name      string // appended to every file name when set
	Overwrite bool   // replace existing files instead of failing
}

// Resolve returns a copy of t writing into its own run directory Dir/Name.
// When that directory exists and Overwrite is off, the first free Name(i),
// i >= 1, is claimed instead, so earlier runs are never touched.
func (t Target) Resolve() (Target, error) {
	if err := os.MkdirAll(t.Dir, 0o755); err != nil {
		return t, fmt.Errorf("creating output directory: %w", err)
	}
	dir := filepath.Join(t.Dir, t.Name)
	if t.Overwrite {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return t, fmt.Errorf("creating output directory: %w", err)
		}
		t.Dir = dir
		return t, nil
	}

	candidate := dir
	for i := 1; ; i++ {
		err := os.Mkdir(candidate, 0o755)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return t, fmt.Errorf("creating output directory: %w", err)
		}
		candidate = fmt.Sprintf("%s(%d)", dir, i)
	}
	t.Dir = candidate
	return t, nil
}

func (t Target) path(sub, base, ext string) (string, error) {
	dir := filepath.Join(t.Dir, sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	if t.Name != "" {
		base += "_" + t.Name
	}
	return filepath.Join(dir, base+"."+ext), nil
}

func (t Target) write(path string, v any) (err error) {
	flag := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !t.Overwrite {
		flag = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("output %q already exists", path)
	}
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return encode(f, v)
}

func encode(w io.Writer, v any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding xml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// sortedLoads returns the non-empty loads ordered by edge id.
func sortedLoads(loads network.Loads) []graph.EdgeID {
	ids := make([]graph.EdgeID, 0, len(loads))
	for id, vs := range loads {
		if len(vs) > 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

type stepXML struct {
	XMLName  xml.Name  `xml:"step"`
	ID       int       `xml:"id,attr"`
	TimeSlot float64   `xml:"timeSlot,attr"`
	Edges    []edgeXML `xml:"edge"`
}

type edgeXML struct {
	ID       string       `xml:"id,attr"`
	Load     int          `xml:"load,attr"`
	Vehicles []vehicleXML `xml:"vehicle,omitempty"`
}

type vehicleXML struct {
	ID string `xml:"id,attr"`
}

// LightLoadsWriter writes, for every step, the number of vehicles on each
// non-empty edge to lightLoadsMatrix/step_<n>.llm.xml.
type LightLoadsWriter struct {
	Target
}

// NewLightLoadsWriter writes edge loads of every step under lightLoadsMatrix/.
func NewLightLoadsWriter(t Target) *LightLoadsWriter { return &LightLoadsWriter{Target: t} }

// RecordStep writes step_<n>.llm.xml.
func (w *LightLoadsWriter) RecordStep(rep engine.StepReport) error {
	doc := stepXML{ID: rep.Step, TimeSlot: rep.TimeSlot}
	for _, id := range sortedLoads(rep.FinalLoads) {
		doc.Edges = append(doc.Edges, edgeXML{ID: id, Load: len(rep.FinalLoads[id])})
	}
	path, err := w.path("lightLoadsMatrix", fmt.Sprintf("step_%d", rep.Step), "llm.xml")
	if err != nil {
		return err
	}
	return w.write(path, doc)
}

// Finish is a no-op.
func (w *LightLoadsWriter) Finish(engine.Summary) error { return nil }

// LoadsWriter writes, for every step, the ids of the vehicles on each
// non-empty edge to loadsMatrix/step_<n>.lm.xml.
type LoadsWriter struct {
	Target
}

// NewLoadsWriter writes edge loads with vehicle ids under loadsMatrix/.
func NewLoadsWriter(t Target) *LoadsWriter { return &LoadsWriter{Target: t} }

// RecordStep writes step_<n>.lm.xml.
func (w *LoadsWriter) RecordStep(rep engine.StepReport) error {
	doc := stepXML{ID: rep.Step, TimeSlot: rep.TimeSlot}
	for _, id := range sortedLoads(rep.FinalLoads) {
		vs := rep.FinalLoads[id]
		e := edgeXML{ID: id, Load: len(vs), Vehicles: make([]vehicleXML, len(vs))}
		for i, v := range vs {
			e.Vehicles[i] = vehicleXML{ID: v.ID()}
		}
		doc.Edges = append(doc.Edges, e)
	}
	path, err := w.path("loadsMatrix", fmt.Sprintf("step_%d", rep.Step), "lm.xml")
	if err != nil {
		return err
	}
	return w.write(path, doc)
}

// Finish is a no-op.
func (w *LoadsWriter) Finish(engine.Summary) error { return nil }
