//go:build js && wasm

// Command wasm exposes the road simulator to the browser via WebAssembly.
// After loading, it registers two global JavaScript functions:
//
//	runSimulation(jsonString) -> jsonString
//	validateScenario(jsonString) -> {edges, nodes, vehicles} | {error}
//
// Inputs are JSON-encoded SimulationInput; runSimulation answers with the
// SimulationLog JSON, the same contract as the CLI pipe mode.
package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/cxd309/roadsim/internal/engine"
)

func main() {
	js.Global().Set("runSimulation", js.FuncOf(runSimulation))
	js.Global().Set("validateScenario", js.FuncOf(validateScenario))
	select {} // keep the WASM module alive until the page is closed
}

func runSimulation(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return map[string]any{"error": "no input provided"}
	}

	result, err := engine.RunJSON(args[0].String())
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return result
}

// validateScenario builds the network without running it.
func validateScenario(_ js.Value, args []js.Value) any {
	if len(args) < 1 {
		return map[string]any{"error": "no input provided"}
	}

	var input engine.SimulationInput
	if err := json.Unmarshal([]byte(args[0].String()), &input); err != nil {
		return map[string]any{"error": "invalid input: " + err.Error()}
	}
	net, err := engine.BuildNetwork(input)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return map[string]any{
		"nodes":    len(input.GraphData.Nodes),
		"edges":    len(input.GraphData.Edges),
		"vehicles": net.VehicleCount(),
	}
}
