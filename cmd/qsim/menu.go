package main

import (
	"fmt"
	"strings"
)

// menuItem represents a single operation choice in the menu. id is the
// engine name (gate registry name, channel name, or a placement keyword);
// wires is how many distinct wires the operation spans; params is how many
// parameter slots it exposes.
type menuItem struct {
	name   string
	id     string
	symbol string
	kind   cellKind
	wires  int
	params int
	hint   string
}

// menuCategory groups related menu items under a tab.
type menuCategory struct {
	name  string
	items []menuItem
}

// opMenu defines the picker categories and items. Every gate id resolves
// through the gate registry; noise ids resolve through buildChannel.
var opMenu = []menuCategory{
	{
		name: "Single Qubit",
		items: []menuItem{
			{name: "Hadamard", id: "h", symbol: "H", wires: 1},
			{name: "Pauli-X (NOT)", id: "x", symbol: "X", wires: 1},
			{name: "Pauli-Y", id: "y", symbol: "Y", wires: 1},
			{name: "Pauli-Z", id: "z", symbol: "Z", wires: 1},
			{name: "Identity", id: "i", symbol: "I", wires: 1},
			{name: "Phase (S)", id: "s", symbol: "S", wires: 1},
			{name: "S Dagger", id: "sd", symbol: "S'", wires: 1},
			{name: "T Gate", id: "t", symbol: "T", wires: 1},
			{name: "T Dagger", id: "td", symbol: "T'", wires: 1},
			{name: "Root of X (W)", id: "wroot", symbol: "W", wires: 1},
		},
	},
	{
		name: "Rotation",
		items: []menuItem{
			{name: "Rotate X", id: "rx", symbol: "RX", wires: 1, params: 1, hint: "pi/2"},
			{name: "Rotate Y", id: "ry", symbol: "RY", wires: 1, params: 1, hint: "pi/2"},
			{name: "Rotate Z", id: "rz", symbol: "RZ", wires: 1, params: 1, hint: "pi/2"},
			{name: "Phase Shift", id: "phase", symbol: "P", wires: 1, params: 1, hint: "pi/4"},
			{name: "Rotation (R)", id: "r", symbol: "R", wires: 1, params: 3, hint: "theta,phi,lambda"},
			{name: "Universal (U)", id: "u", symbol: "U", wires: 1, params: 3, hint: "theta,phi,lambda"},
		},
	},
	{
		name: "Two Qubit",
		items: []menuItem{
			{name: "CNOT", id: "cnot", symbol: "●─⊕", wires: 2},
			{name: "Controlled-Y", id: "cy", symbol: "●─Y", wires: 2},
			{name: "Controlled-Z", id: "cz", symbol: "●─●", wires: 2},
			{name: "SWAP", id: "swap", symbol: "×─×", wires: 2},
			{name: "iSWAP Power", id: "iswap", symbol: "iSW", wires: 2, params: 1, hint: "1"},
			{name: "C-Rotate X", id: "crx", symbol: "●─RX", wires: 2, params: 1, hint: "pi/2"},
			{name: "C-Rotate Y", id: "cry", symbol: "●─RY", wires: 2, params: 1, hint: "pi/2"},
			{name: "C-Rotate Z", id: "crz", symbol: "●─RZ", wires: 2, params: 1, hint: "pi/2"},
			{name: "C-Phase", id: "cphase", symbol: "●─P", wires: 2, params: 1, hint: "pi/4"},
			{name: "C-Universal", id: "cu", symbol: "●─U", wires: 2, params: 3, hint: "theta,phi,lambda"},
		},
	},
	{
		name: "More Gates",
		items: []menuItem{
			{name: "Toffoli (CCX)", id: "toffoli", symbol: "●─●─⊕", wires: 3},
			{name: "Fredkin (CSWAP)", id: "fredkin", symbol: "●─×─×", wires: 3},
			{name: "Ising XX", id: "rxx", symbol: "XX", wires: 2, params: 1, hint: "pi/2"},
			{name: "Ising YY", id: "ryy", symbol: "YY", wires: 2, params: 1, hint: "pi/2"},
			{name: "Ising ZZ", id: "rzz", symbol: "ZZ", wires: 2, params: 1, hint: "pi/2"},
			{name: "0-Ctrl X", id: "ox", symbol: "○─⊕", wires: 2},
			{name: "0-Ctrl Y", id: "oy", symbol: "○─Y", wires: 2},
			{name: "0-Ctrl Z", id: "oz", symbol: "○─Z", wires: 2},
			{name: "0-Ctrl RX", id: "orx", symbol: "○─RX", wires: 2, params: 1, hint: "pi/2"},
			{name: "0-Ctrl RY", id: "ory", symbol: "○─RY", wires: 2, params: 1, hint: "pi/2"},
			{name: "0-Ctrl RZ", id: "orz", symbol: "○─RZ", wires: 2, params: 1, hint: "pi/2"},
		},
	},
	{
		name: "Measure",
		items: []menuItem{
			{name: "Measure", id: "measure", symbol: "M", kind: cellCollapse, wires: 1},
			{name: "Project to 0", id: "post0", symbol: "P0", kind: cellProject, wires: 1},
			{name: "Project to 1", id: "post1", symbol: "P1", kind: cellProject, wires: 1},
		},
	},
	{
		name: "Noise",
		items: []menuItem{
			{name: "Depolarizing", id: "depolarizing", symbol: "DEP", kind: cellNoise, wires: 1, params: 3, hint: "0.01,0.01,0.01"},
			{name: "Amp Damping", id: "amplitudedamping", symbol: "AD", kind: cellNoise, wires: 1, params: 1, hint: "0.05"},
			{name: "Gen Amp Damping", id: "generalizedamplitudedamping", symbol: "GAD", kind: cellNoise, wires: 1, params: 2, hint: "0.05,0.5"},
			{name: "Phase Damping", id: "phasedamping", symbol: "PD", kind: cellNoise, wires: 1, params: 1, hint: "0.05"},
			{name: "Reset", id: "reset", symbol: "RST", kind: cellNoise, wires: 1},
			{name: "Barrier", id: "barrier", symbol: "┃", kind: cellBarrier, wires: 0},
		},
	},
}

// renderMenu renders the floating operation-picker popup.
func (m Model) renderMenu() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Add Operation"))
	sb.WriteString("\n")

	// Category tabs
	for i, cat := range opMenu {
		name := " " + cat.name + " "
		if i == m.menuCat {
			sb.WriteString(activeGateStyle.Render(name))
		} else {
			sb.WriteString(dimStyle.Render(name))
		}
		if i < len(opMenu)-1 {
			sb.WriteString(dimStyle.Render("│"))
		}
	}
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render(strings.Repeat("─", 58)))
	sb.WriteString("\n")

	// Items in the selected category
	cat := opMenu[m.menuCat]
	for i, item := range cat.items {
		if i == m.menuItem {
			sb.WriteString(menuSelectedStyle.Render(" ▸ "))
			sb.WriteString(menuSelectedStyle.Render(fmt.Sprintf("%-18s", item.name)))
			sb.WriteString(gateStyle.Render(item.symbol))
		} else {
			sb.WriteString("   ")
			sb.WriteString(menuNormalStyle.Render(fmt.Sprintf("%-18s", item.name)))
			sb.WriteString(dimStyle.Render(item.symbol))
		}
		if item.wires > 1 {
			sb.WriteString(dimStyle.Render(" →target"))
		}
		if item.params > 0 {
			sb.WriteString(dimStyle.Render(fmt.Sprintf(" (%s)", item.hint)))
		}
		sb.WriteString("\n")
	}
	sb.WriteString(dimStyle.Render(" ↑↓ Select  ←→ Cat  ⏎ Ok  Esc ✕"))

	return menuBorderStyle.Render(sb.String())
}
