package main

import (
	"fmt"
	"math/cmplx"
	"sort"
	"strings"

	"tensorq/results"
)

// ──────────────────────────── Rendering helpers ────────────────────────────

// padCenter centres a string within the given width.
func padCenter(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	total := width - len(s)
	left := total / 2
	right := total - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}

// ctrlWires reports how many leading wires of a gate are controls, and
// whether they test for |0>.
func ctrlWires(name string) (int, bool) {
	switch name {
	case "cnot", "cy", "cz", "crx", "cry", "crz", "cphase", "cr", "cu", "fredkin":
		return 1, false
	case "toffoli":
		return 2, false
	case "ox", "oy", "oz", "orx", "ory", "orz":
		return 1, true
	}
	return 0, false
}

// gateDisplayName returns a short display name for a cell. Display names stay
// ASCII so the fixed-width cell math holds.
func gateDisplayName(p *placed) string {
	switch p.Kind {
	case cellProject:
		if p.keep() == 1 {
			return "P1"
		}
		return "P0"
	case cellCollapse:
		return "M"
	case cellNoise:
		switch p.Name {
		case "depolarizing":
			return "DEP"
		case "amplitudedamping":
			return "AD"
		case "generalizedamplitudedamping":
			return "GAD"
		case "phasedamping":
			return "PD"
		case "reset":
			return "RST"
		}
		return "N"
	}
	name := strings.ToUpper(p.Name)
	if len(name) > gateNameW {
		name = name[:gateNameW]
	}
	return name
}

// controlSymbol returns the wire symbol for a control wire.
func controlSymbol(zero bool) string {
	if zero {
		return "○"
	}
	return "●"
}

// targetSymbol returns the wire symbol for the non-control wires of a
// multi-wire gate.
func targetSymbol(name string) string {
	switch name {
	case "cz", "oz", "cphase":
		return "●"
	case "swap", "iswap", "fredkin":
		return "×"
	case "cy":
		return "Y"
	case "rxx":
		return "X"
	case "ryy":
		return "Y"
	case "rzz":
		return "Z"
	default:
		return "⊕"
	}
}

// cellInfo describes what one (step, qubit) slot displays.
type cellInfo struct {
	cell        *placed
	isControl   bool
	zeroCtrl    bool
	isTarget    bool
	boxed       bool // render a name box instead of a wire symbol
	vertAbove   bool
	vertBelow   bool
	passThrough bool
	isBarrier   bool
}

// cellInfoAt resolves the display role of a wire slot from the grid.
func (m Model) cellInfoAt(step, qubit int) cellInfo {
	var info cellInfo

	p := m.grid.at(step, qubit)
	if p == nil {
		for i := range m.grid.cells {
			q := &m.grid.cells[i]
			if q.Step != step {
				continue
			}
			if q.Kind == cellBarrier {
				info.isBarrier = true
				continue
			}
			lo, hi := wireSpan(q)
			if lo < qubit && qubit < hi {
				info.passThrough = true
				info.vertAbove = true
				info.vertBelow = true
				info.isBarrier = false
				return info
			}
		}
		return info
	}

	info.cell = p
	wires := p.wires()
	if len(wires) > 1 {
		lo, hi := wireSpan(p)
		info.vertAbove = qubit > lo
		info.vertBelow = qubit < hi
	}

	for _, cq := range p.Controls {
		if cq == qubit {
			info.isControl = true
			return info
		}
	}

	nc, zero := ctrlWires(p.Name)
	for i, q := range p.Qubits {
		if q != qubit {
			continue
		}
		if p.Kind == cellGate && len(p.Qubits) > 1 {
			if i < nc {
				info.isControl = true
				info.zeroCtrl = zero
			} else {
				info.isTarget = true
			}
			return info
		}
		// Single-wire cell: a name box, threaded by any extra controls.
		info.boxed = true
		return info
	}
	return info
}

func wireSpan(p *placed) (int, int) {
	wires := p.wires()
	lo, hi := wires[0], wires[0]
	for _, w := range wires[1:] {
		lo = min(lo, w)
		hi = max(hi, w)
	}
	return lo, hi
}

// ──────────────────────────── Cell rendering ────────────────────────────

type cellHighlight int

const (
	hlNone cellHighlight = iota
	hlCursor
	hlTargetSelect
)

// renderCell returns 3 lines (top, mid, bot) for a single cell.
// Each line is exactly cellW (11) visual characters wide.
func renderCell(info cellInfo, hl cellHighlight) (top, mid, bot string) {
	emptyRow := strings.Repeat(" ", cellW)
	halfW := cellW / 2
	vertRow := strings.Repeat(" ", halfW) + "│" + strings.Repeat(" ", cellW-halfW-1)

	style := gateStyle
	if info.cell != nil && info.cell.Kind == cellNoise {
		style = noiseStyle
	}

	// ── Highlighted cell (cursor or target selection) ──
	if hl == hlCursor || hl == hlTargetSelect {
		bdr := cursorBoxStyle
		if hl == hlTargetSelect {
			bdr = targetSelectStyle
		}
		innerW := cellW - 2
		dashL := (innerW - 1) / 2
		dashR := innerW - dashL - 1

		if info.isBarrier {
			top = vertRow
			mid = bdr.Render("║") + strings.Repeat("─", dashL) + "│" + strings.Repeat("─", dashR) + bdr.Render("║")
			bot = vertRow
			return
		}

		top = bdr.Render("╔" + strings.Repeat("═", innerW) + "╗")
		bot = bdr.Render("╚" + strings.Repeat("═", innerW) + "╝")

		switch {
		case info.cell != nil && info.isControl:
			sym := controlSymbol(info.zeroCtrl)
			mid = bdr.Render("║") + strings.Repeat("─", dashL) + style.Render(sym) + strings.Repeat("─", dashR) + bdr.Render("║")
		case info.cell != nil && info.isTarget:
			sym := targetSymbol(info.cell.Name)
			mid = bdr.Render("║") + strings.Repeat("─", dashL) + style.Render(sym) + strings.Repeat("─", dashR) + bdr.Render("║")
		case info.cell != nil:
			name := padCenter(gateDisplayName(info.cell), gateNameW)
			mid = bdr.Render("║") + "─┤" + style.Render(name) + "├─" + bdr.Render("║")
		case info.passThrough:
			mid = bdr.Render("║") + strings.Repeat("─", dashL) + "┼" + strings.Repeat("─", dashR) + bdr.Render("║")
		default:
			mid = bdr.Render("║") + strings.Repeat("─", innerW) + bdr.Render("║")
		}

		return
	}

	// ── Normal (non-highlighted) cells ──
	dashL := (cellW - 1) / 2
	dashR := cellW - dashL - 1

	switch {
	case info.isBarrier:
		top = vertRow
		mid = strings.Repeat("─", dashL) + "│" + strings.Repeat("─", dashR)
		bot = vertRow

	case info.cell != nil && (info.isControl || info.isTarget):
		top = emptyRow
		if info.vertAbove {
			top = vertRow
		}
		sym := targetSymbol(info.cell.Name)
		if info.isControl {
			sym = controlSymbol(info.zeroCtrl)
		}
		mid = strings.Repeat("─", dashL) + style.Render(sym) + strings.Repeat("─", dashR)
		bot = emptyRow
		if info.vertBelow {
			bot = vertRow
		}

	case info.cell != nil:
		margin := (cellW - gateBoxW) / 2
		rightMargin := cellW - margin - gateBoxW
		name := padCenter(gateDisplayName(info.cell), gateNameW)

		boxTop := "┌" + strings.Repeat("─", gateNameW) + "┐"
		boxBot := "└" + strings.Repeat("─", gateNameW) + "┘"
		if info.vertAbove {
			lidL := (gateNameW - 1) / 2
			boxTop = "┌" + strings.Repeat("─", lidL) + "┴" + strings.Repeat("─", gateNameW-lidL-1) + "┐"
		}
		if info.vertBelow {
			lidL := (gateNameW - 1) / 2
			boxBot = "└" + strings.Repeat("─", lidL) + "┬" + strings.Repeat("─", gateNameW-lidL-1) + "┘"
		}

		top = strings.Repeat(" ", margin) + style.Render(boxTop) + strings.Repeat(" ", rightMargin)
		mid = strings.Repeat("─", margin) + style.Render("┤"+name+"├") + strings.Repeat("─", rightMargin)
		bot = strings.Repeat(" ", margin) + style.Render(boxBot) + strings.Repeat(" ", rightMargin)

	case info.passThrough:
		top = vertRow
		mid = strings.Repeat("─", dashL) + "┼" + strings.Repeat("─", dashR)
		bot = vertRow

	default:
		// Empty wire
		top = emptyRow
		if info.vertAbove {
			top = vertRow
		}
		mid = strings.Repeat("─", cellW)
		bot = emptyRow
		if info.vertBelow {
			bot = vertRow
		}
	}

	return
}

// ──────────────────────────── Panel rendering ────────────────────────────

// renderCircuitPanel renders the circuit grid panel.
func (m Model) renderCircuitPanel(width, height int) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Quantum Circuit"))
	sb.WriteString("\n\n")

	// How many steps fit
	availWidth := width - labelVisualW - 4
	maxSteps := max(availWidth/cellW, 1)

	startStep := 0
	if m.cursorStep >= maxSteps {
		startStep = m.cursorStep - maxSteps + 1
	}

	displaySteps := maxSteps

	if startStep > 0 {
		fmt.Fprintf(&sb, "  ◀ showing steps %d–%d\n", startStep, startStep+displaySteps-1)
	}

	// Step number header
	header := strings.Repeat(" ", labelVisualW)
	for step := startStep; step < startStep+displaySteps; step++ {
		header += dimStyle.Render(padCenter(fmt.Sprintf("%d", step), cellW))
	}
	sb.WriteString(header + "\n")

	selecting := m.focus == focusSelectTarget || m.focus == focusSelectControls ||
		m.focus == focusEditWire || m.focus == focusEditControl

	// Render each qubit as 3 lines
	for qubit := 0; qubit < m.grid.qubits; qubit++ {
		topLine := strings.Repeat(" ", labelVisualW)
		label := fmt.Sprintf("q[%d]", qubit)
		midLine := qubitLabelStyle.Render(fmt.Sprintf("%-5s", label)) + "──"
		botLine := strings.Repeat(" ", labelVisualW)

		for step := startStep; step < startStep+displaySteps; step++ {
			info := m.cellInfoAt(step, qubit)

			hl := hlNone
			if step == m.cursorStep && qubit == m.cursorQubit && (m.focus == focusCircuit || m.focus == focusMenu || selecting) {
				hl = hlCursor
			} else if step == m.cursorStep && qubit == m.targetQubit && selecting {
				hl = hlTargetSelect
			}

			top, mid, bot := renderCell(info, hl)
			topLine += top
			midLine += mid
			botLine += bot
		}

		sb.WriteString(topLine + "\n")
		sb.WriteString(midLine + "\n")
		sb.WriteString(botLine + "\n")
	}

	// Status line
	switch m.focus {
	case focusSelectTarget, focusSelectControls:
		pendingName := ""
		if m.pending != nil {
			pendingName = m.pending.name
		}
		what := "target"
		if m.focus == focusSelectControls {
			what = "control"
		}
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "  %s", activeGateStyle.Render(pendingName))
		fmt.Fprintf(&sb, "  Select %s qubit: ", what)
		fmt.Fprintf(&sb, "%s", targetSelectStyle.Render(fmt.Sprintf("q[%d]", m.targetQubit)))
		sb.WriteString(dimStyle.Render("   ↑↓ Move  Enter Confirm  Esc Cancel"))
	case focusEditWire, focusEditControl:
		sb.WriteString("\n")
		sb.WriteString("  Move wire to: ")
		fmt.Fprintf(&sb, "%s", targetSelectStyle.Render(fmt.Sprintf("q[%d]", m.targetQubit)))
		sb.WriteString(dimStyle.Render("   ↑↓ Move  Enter Confirm  Esc Cancel"))
	default:
		fmt.Fprintf(&sb, "\n  Position: Step %d, Qubit %d", m.cursorStep, m.cursorQubit)
		if m.statusMsg != "" {
			fmt.Fprintf(&sb, "  │  %s", activeGateStyle.Render(m.statusMsg))
		}
	}

	return circuitStyle.Width(width).Height(height).Render(sb.String())
}

// renderEditorPanel renders the circuit JSON editor, or the contraction plan
// inspector when toggled.
func (m Model) renderEditorPanel(width, height int) string {
	var sb strings.Builder

	if m.showInspector {
		sb.WriteString(titleStyle.Render("Plan Inspector"))
		sb.WriteString("\n\n")
		sb.WriteString(m.inspectorDump(width-6, height-5))
		return editorStyle.Width(width).Height(height).Render(sb.String())
	}

	title := "Circuit JSON"
	if m.focus == focusEditor {
		title += " [ACTIVE]"
	}
	sb.WriteString(titleStyle.Render(title))
	sb.WriteString("\n\n")
	sb.WriteString(m.irEditor.View())
	if m.jsonErr != "" {
		sb.WriteString("\n")
		sb.WriteString(errStyle.Render("parse: " + m.jsonErr))
	}

	return editorStyle.Width(width).Height(height).Render(sb.String())
}

// inspectorDump compiles the skeleton and clips its network dump to the pane.
func (m Model) inspectorDump(width, height int) string {
	c, err := m.grid.skeleton()
	if err != nil {
		return errStyle.Render(err.Error())
	}
	lines := strings.Split(c.DebugDump(), "\n")
	if height < 1 {
		height = 1
	}
	if len(lines) > height {
		lines = append(lines[:height], "…")
	}
	for i, ln := range lines {
		if len(ln) > width && width > 0 {
			lines[i] = ln[:width]
		}
	}
	return dimStyle.Render(strings.Join(lines, "\n"))
}

// renderResultsPanel renders the live readout and the last sampling run.
func (m Model) renderResultsPanel(width, height int) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Results"))
	sb.WriteString("\n\n")

	mode := "trajectory"
	if m.useDensity {
		mode = "density"
	}
	ro := "off"
	if m.readout {
		ro = "on"
	}
	fmt.Fprintf(&sb, "%s  shots %d  readout %s\n", activeGateStyle.Render(mode), m.shots, ro)

	if m.sim.err != "" {
		sb.WriteString(errStyle.Render(m.sim.err))
		return resultsStyle.Width(width).Height(height).Render(sb.String())
	}

	var total float64
	for _, p := range m.sim.probs {
		total += p
	}
	if m.useDensity {
		fmt.Fprintf(&sb, "purity %.4f", m.sim.purity)
		if total < 1-1e-9 {
			fmt.Fprintf(&sb, "  Σp %.4f", total)
		}
		sb.WriteString("\n")
	} else if total < 1-1e-9 {
		fmt.Fprintf(&sb, "Σp %.4f\n", total)
	}

	sb.WriteString(m.renderProbBars())
	sb.WriteString(m.renderZLine(width - 8))

	if m.run != nil {
		sb.WriteString("\n")
		if m.run.err != "" {
			sb.WriteString(errStyle.Render("run: " + m.run.err))
		} else {
			sb.WriteString(m.renderCountTable())
		}
	}

	return resultsStyle.Width(width).Height(height).Render(sb.String())
}

const topOutcomes = 8

// renderProbBars shows the most likely basis states with bars, and the
// amplitudes when a pure state is available.
func (m Model) renderProbBars() string {
	n := m.grid.qubits
	type entry struct {
		idx  int
		prob float64
	}
	entries := make([]entry, 0, len(m.sim.probs))
	for i, p := range m.sim.probs {
		if p > 1e-9 {
			entries = append(entries, entry{i, p})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].prob != entries[j].prob {
			return entries[i].prob > entries[j].prob
		}
		return entries[i].idx < entries[j].idx
	})
	more := 0
	if len(entries) > topOutcomes {
		more = len(entries) - topOutcomes
		entries = entries[:topOutcomes]
	}

	var sb strings.Builder
	for _, e := range entries {
		bar := strings.Repeat("█", int(e.prob*12+0.5))
		fmt.Fprintf(&sb, "|%s⟩ %6.4f %s", results.Bitstring(uint64(e.idx), n), e.prob, barStyle.Render(bar))
		if m.sim.amps != nil && e.idx < len(m.sim.amps) {
			a := m.sim.amps[e.idx]
			if cmplx.Abs(a) > 1e-9 {
				fmt.Fprintf(&sb, "  %s", dimStyle.Render(fmt.Sprintf("%.3f%+.3fi", real(a), imag(a))))
			}
		}
		sb.WriteString("\n")
	}
	if more > 0 {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("… %d more\n", more)))
	}
	return sb.String()
}

// renderZLine shows the per-qubit Z expectations on one clipped line.
func (m Model) renderZLine(width int) string {
	if len(m.sim.zexp) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("⟨Z⟩")
	for _, z := range m.sim.zexp {
		fmt.Fprintf(&sb, " %+.3f", z)
	}
	line := sb.String()
	if width > 3 && len(line) > width {
		line = line[:width] + "…"
	}
	return line + "\n"
}

// renderCountTable shows the top sampled bitstrings, with the mitigated
// column when readout correction ran.
func (m Model) renderCountTable() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "samples (%s, %d shots)\n", m.run.mode, m.run.shots)

	type kv struct {
		bits  string
		count int
	}
	rows := make([]kv, 0, len(m.run.counts))
	for k, v := range m.run.counts {
		rows = append(rows, kv{k, v})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].bits < rows[j].bits
	})
	more := 0
	if len(rows) > topOutcomes {
		more = len(rows) - topOutcomes
		rows = rows[:topOutcomes]
	}

	for _, r := range rows {
		fmt.Fprintf(&sb, "|%s⟩ %6d", r.bits, r.count)
		if m.run.mitigated != nil {
			fmt.Fprintf(&sb, "  %s", dimStyle.Render(fmt.Sprintf("→ %8.1f", m.run.mitigated[r.bits])))
		}
		sb.WriteString("\n")
	}
	if more > 0 {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("… %d more\n", more)))
	}
	return sb.String()
}

// renderControlsPanel renders the bottom help/controls bar.
func (m Model) renderControlsPanel(width, height int) string {
	var sb strings.Builder

	sb.WriteString(activeGateStyle.Render("Navigate: "))
	sb.WriteString("↑↓/jk Move qubit  ←→/hl Move step  +/- Qubits    ")
	sb.WriteString(activeGateStyle.Render("a"))
	sb.WriteString(" Add  ")
	sb.WriteString(activeGateStyle.Render("e"))
	sb.WriteString(" Edit  Bksp Delete\n")

	sb.WriteString(activeGateStyle.Render("Simulate: "))
	sb.WriteString("r Run shots  [/] Shot count  m Engine  x Readout error  i Inspector\n")

	sb.WriteString(activeGateStyle.Render("Actions:  "))
	sb.WriteString("Tab Switch focus  ^S Save  ^O Load  ^R Reset  q/^C Quit")

	return controlsStyle.Width(width).Height(height).Render(sb.String())
}

// renderParamInput renders parameter input overlay.
func (m Model) renderParamInput() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Enter Parameters"))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Value: %s_", m.paramInput)
	sb.WriteString("\n\n")
	hint := "Examples: pi/2, 3*pi/4, 1.57"
	if m.focus == focusInputParam && m.pending != nil && m.pending.hint != "" {
		hint = "Expected: " + m.pending.hint
	}
	sb.WriteString(dimStyle.Render(hint))
	return menuBorderStyle.Render(sb.String())
}

// renderEditMenu renders the edit cell menu overlay.
func (m Model) renderEditMenu() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Edit Cell"))
	sb.WriteString("\n\n")
	opts := m.getEditOptions()
	for i, opt := range opts {
		if i == m.editMenuIdx {
			sb.WriteString(menuSelectedStyle.Render(fmt.Sprintf("▸ %s", opt.label)))
		} else {
			sb.WriteString(fmt.Sprintf("  %s", opt.label))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("↑↓ Select  ⏎ Ok  Esc ✕"))
	return menuBorderStyle.Render(sb.String())
}

// ──────────────────────────── Overlay helpers ────────────────────────────

// overlayAt composites the overlay string on top of the background at position (x, y).
// It handles ANSI escape sequences by tracking visible column positions.
func overlayAt(bg, overlay string, x, y int) string {
	bgLines := strings.Split(bg, "\n")
	ovLines := strings.Split(overlay, "\n")

	for i, ovLine := range ovLines {
		bgIdx := y + i
		if bgIdx < 0 || bgIdx >= len(bgLines) {
			continue
		}
		bgLines[bgIdx] = spliceLineAt(bgLines[bgIdx], ovLine, x)
	}
	return strings.Join(bgLines, "\n")
}

// spliceLineAt replaces visible columns starting at position x in bgLine with overlay content.
// It properly handles ANSI escape sequences in the background line.
func spliceLineAt(bgLine, overlay string, x int) string {
	runes := []rune(bgLine)
	ovWidth := visibleLen(overlay)

	var prefix strings.Builder
	var suffix strings.Builder

	col := 0
	i := 0
	inEsc := false

	// Collect prefix: everything up to visible column x
	for i < len(runes) && col < x {
		if runes[i] == '\x1b' {
			inEsc = true
			for i < len(runes) {
				prefix.WriteRune(runes[i])
				if inEsc && runes[i] != '\x1b' && runes[i] != '[' && ((runes[i] >= 'A' && runes[i] <= 'Z') || (runes[i] >= 'a' && runes[i] <= 'z')) {
					inEsc = false
					i++
					break
				}
				i++
			}
		} else {
			prefix.WriteRune(runes[i])
			col++
			i++
		}
	}

	// Pad prefix if bg line is shorter than x
	for col < x {
		prefix.WriteRune(' ')
		col++
	}

	// Skip over ovWidth visible columns in the background
	skipped := 0
	for i < len(runes) && skipped < ovWidth {
		if runes[i] == '\x1b' {
			for i < len(runes) {
				i++
				if i > 0 && runes[i-1] != '\x1b' && runes[i-1] != '[' && ((runes[i-1] >= 'A' && runes[i-1] <= 'Z') || (runes[i-1] >= 'a' && runes[i-1] <= 'z')) {
					break
				}
			}
		} else {
			skipped++
			i++
		}
	}

	// Collect suffix: rest of the background line
	for i < len(runes) {
		suffix.WriteRune(runes[i])
		i++
	}

	return prefix.String() + overlay + suffix.String()
}

// visibleLen returns the number of visible (non-ANSI-escape) characters in a string.
func visibleLen(s string) int {
	n := 0
	inEsc := false
	for _, r := range s {
		if r == '\x1b' {
			inEsc = true
			continue
		}
		if inEsc {
			if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
				inEsc = false
			}
			continue
		}
		n++
	}
	return n
}
