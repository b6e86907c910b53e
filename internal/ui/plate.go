package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/smarteating/tray/internal/app"
	"github.com/smarteating/tray/internal/imagecache"
	"github.com/smarteating/tray/internal/meal"
	"github.com/smarteating/tray/internal/qr"
)

// renderPlate renders the content area for the controller's phase.
func (m Model) renderPlate() string {
	switch m.view.Phase {
	case app.ViewScanning:
		return m.place(m.renderScanning())
	case app.ViewProcessing:
		return m.place(m.renderProcessing())
	case app.ViewDisplay:
		return m.renderDisplay()
	default:
		return m.place(m.renderLoading())
	}
}

func (m Model) place(content string) string {
	return lipgloss.Place(m.width, max(m.height-2, 0), lipgloss.Center, lipgloss.Center, content,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceBackground(lipgloss.Color(m.theme.Background)),
	)
}

func (m Model) renderLoading() string {
	styles := m.theme.Styles()
	lines := []string{
		m.spinner.View() + " " + styles.Text.Render("Carregando refeição..."),
	}
	if m.view.Error != "" {
		lines = append(lines, "", styles.WarningText.Render(m.view.Error))
	}
	return lipgloss.JoinVertical(lipgloss.Center, lines...)
}

func (m Model) renderScanning() string {
	styles := m.theme.Styles()
	v := m.view

	lines := []string{
		styles.Figure.Render("Aproxime o prato do leitor"),
		styles.MutedText.Render("QR code na câmera ou tag NFC no leitor"),
		"",
		m.cameraLine(styles),
	}
	if nfc := m.nfcLine(styles); nfc != "" {
		lines = append(lines, nfc)
	}

	if v.InitError != "" {
		lines = append(lines, "", styles.DangerText.Render(v.InitError))
	}
	if v.Error != "" {
		lines = append(lines, "", styles.WarningText.Render(v.Error))
	}
	if v.LastScan != nil {
		lines = append(lines, "", styles.FaintText.Render(fmt.Sprintf("Última leitura: %s via %s às %s",
			v.LastScan.Value, strings.ToUpper(string(v.LastScan.Method)), v.LastScan.At.Local().Format("15:04:05"))))
	}
	return lipgloss.JoinVertical(lipgloss.Center, lines...)
}

func (m Model) cameraLine(styles Styles) string {
	if m.camera == nil {
		return styles.FaintText.Render("Câmera: não configurada")
	}
	switch m.view.Scanner.QR {
	case qr.StatusScanning:
		return styles.SuccessText.Render("● Câmera lendo QR codes")
	case qr.StatusPermissionDenied:
		return styles.DangerText.Render("Câmera: permissão negada") + styles.MutedText.Render("  (p para tentar novamente)")
	case qr.StatusCheckingPermission:
		return styles.MutedText.Render("Verificando permissão da câmera...")
	default:
		return styles.MutedText.Render("Câmera desligada  (s para ligar)")
	}
}

func (m Model) nfcLine(styles Styles) string {
	nfc := m.view.Scanner.NFC
	switch {
	case m.view.Scanner.Approach:
		return styles.Badge("nfc").Render("Aproxime a tag NFC")
	case nfc.Error != "":
		return styles.DangerText.Render(nfc.Error)
	case m.view.Scanner.CanUseNFC:
		return styles.MutedText.Render("NFC: reiniciando leitor...")
	case nfc.UnsupportedReason != "":
		return styles.FaintText.Render(nfc.UnsupportedReason)
	default:
		return ""
	}
}

func (m Model) renderProcessing() string {
	styles := m.theme.Styles()
	title := "Processando prato..."
	if scan := m.view.LastScan; scan != nil {
		title = fmt.Sprintf("Processando prato %s...", scan.Value)
	}
	return lipgloss.JoinVertical(lipgloss.Center,
		m.spinner.View()+" "+styles.Figure.Render(title),
		"",
		styles.MutedText.Render("Aguarde enquanto registramos sua refeição"),
	)
}

// renderDisplay renders the active meal: summary cards, chart slices and
// the macro panel.
func (m Model) renderDisplay() string {
	styles := m.theme.Styles()
	v := m.view

	summary := lipgloss.JoinHorizontal(lipgloss.Top,
		m.summaryCard(styles, "Preço", formatBRL(v.Price)),
		m.summaryCard(styles, "Peso", formatKg(v.WeightKg)),
		m.summaryCard(styles, "Calorias", fmt.Sprintf("%d kcal", m.calories.Value(m.now))),
	)

	var header []string
	header = append(header, summary)
	if v.Meal.Finished {
		header = append(header, styles.Badge("display").Render("Refeição finalizada"))
	}
	if v.Error != "" {
		header = append(header, styles.WarningText.Render(v.Error))
	}

	sideBySide := m.width >= LayoutSideBySideWidth && m.showMacros
	panelWidth := max(m.width-4, 20)
	if sideBySide {
		panelWidth = max((m.width-6)/2, 20)
	}

	slices := m.renderSlices(styles, panelWidth)
	var body string
	switch {
	case !m.showMacros:
		body = slices
	case sideBySide:
		body = lipgloss.JoinHorizontal(lipgloss.Top, slices, "  ", m.renderMacros(styles, panelWidth))
	default:
		body = lipgloss.JoinVertical(lipgloss.Left, slices, m.renderMacros(styles, panelWidth))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, append(header, "", body)...)
	return lipgloss.NewStyle().
		Width(m.width).
		Height(max(m.height-2, 0)).
		Padding(1, 2).
		Render(content)
}

func (m Model) summaryCard(styles Styles, label, value string) string {
	return styles.Card.Width(22).Render(
		styles.MutedText.Render(label) + "\n" + styles.Figure.Render(value),
	)
}

// renderSlices draws one horizontal bar per food, its length proportional
// to the food's share of the plate weight.
func (m Model) renderSlices(styles Styles, width int) string {
	slices := m.view.Meal.ChartSlices
	title := "Prato (" + countLabel(len(slices), "alimento", "alimentos") + ")"
	if len(slices) == 0 {
		return m.renderTitledBox(title, styles.MutedText.Render("Nenhum alimento pesado ainda"), width, 4, false)
	}

	imageStatus := make(map[string]imagecache.Status, len(m.view.Images))
	for _, img := range m.view.Images {
		imageStatus[img.Src] = img.Status
	}

	labelWidth := min(18, max(width/4, 8))
	barWidth := max(width-labelWidth-22, 4)

	lines := make([]string, 0, len(slices))
	for i, slice := range slices {
		color := lipgloss.Color(m.theme.SliceColor(i))
		filled := sliceBarWidth(slice.Percentage, barWidth)
		bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled)) +
			styles.FaintText.Render(strings.Repeat("░", barWidth-filled))

		lines = append(lines, fmt.Sprintf("%s %s %s %s %s",
			imageMark(styles, imageStatus, slice),
			styles.Text.Render(padRight(truncate(slice.Label, labelWidth), labelWidth)),
			bar,
			styles.Figure.Render(fmt.Sprintf("%3d%%", slice.Percentage)),
			styles.MutedText.Render(slice.Details),
		))
	}
	return m.renderTitledBox(title, strings.Join(lines, "\n"), width, len(lines)+2, false)
}

// sliceBarWidth scales a 0-100 percentage onto width cells. Any non-zero
// share gets at least one cell.
func sliceBarWidth(percentage, width int) int {
	if percentage <= 0 || width <= 0 {
		return 0
	}
	cells := percentage * width / 100
	return min(max(cells, 1), width)
}

func imageMark(styles Styles, status map[string]imagecache.Status, slice meal.ChartSlice) string {
	if slice.ImageSrc == "" {
		return styles.FaintText.Render("·")
	}
	switch status[slice.ImageSrc] {
	case imagecache.StatusLoaded:
		return styles.SuccessText.Render("✓")
	case imagecache.StatusError:
		return styles.DangerText.Render("✗")
	default:
		return styles.FaintText.Render("…")
	}
}

// renderMacros draws the protein, carbs and fat bars with animated grams.
func (m Model) renderMacros(styles Styles, width int) string {
	colors := []string{m.theme.Info, m.theme.Warning, m.theme.Danger}
	barWidth := max(width-40, 8)

	macros := m.view.Macros.All()
	lines := make([]string, 0, len(macros))
	for i, macro := range macros {
		bar := progress.New(
			progress.WithSolidFill(colors[i%len(colors)]),
			progress.WithoutPercentage(),
			progress.WithWidth(barWidth),
		)
		lines = append(lines, fmt.Sprintf("%s %s %s %s %s",
			styles.Text.Render(padRight(macro.Label, 13)),
			bar.ViewAs(float64(macro.Percentage)/100),
			styles.Figure.Render(fmt.Sprintf("%4dg", m.macros[i].Value(m.now))),
			styles.MutedText.Render(fmt.Sprintf("%3d%%", macro.Percentage)),
			styles.FaintText.Render(fmt.Sprintf("%d kcal", macro.Calories)),
		))
	}
	return m.renderTitledBox("Macronutrientes", strings.Join(lines, "\n"), width, len(lines)+2, false)
}
