package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/smarteating/tray/internal/app"
	"github.com/smarteating/tray/internal/qr"
)

// renderHeader renders the status bar: logo, phase, polling and scanner
// badges, last update.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	compact := m.width < LayoutCompactWidth
	v := m.view

	parts := []string{
		bg.Render("tray", styles.Logo),
		styles.Badge(v.Phase.String()).Render(phaseLabel(v.Phase)),
	}

	switch {
	case v.Offline:
		parts = append(parts, styles.Badge("offline").Render("OFFLINE"))
	case v.Polling:
		parts = append(parts, bg.Render("● LIVE", styles.SuccessText))
	default:
		parts = append(parts, bg.Render("○ PAUSED", styles.MutedText))
	}

	parts = append(parts, m.scannerBadges(styles, bg, compact)...)

	if !v.UpdatedAt.IsZero() && !compact {
		parts = append(parts,
			bg.Render("Atualizado", styles.FaintText)+bg.Spaces(1)+
				bg.Render(v.UpdatedAt.Local().Format("15:04:05"), styles.MutedText))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

func (m Model) scannerBadges(styles Styles, bg BgStyle, compact bool) []string {
	sc := m.view.Scanner
	var parts []string

	label := "QR"
	if !compact {
		label = "Câmera"
	}
	switch sc.QR {
	case qr.StatusScanning:
		parts = append(parts, bg.Render(label+" ●", styles.SuccessText))
	case qr.StatusPermissionDenied:
		parts = append(parts, styles.Badge("permission_denied").Render(label+" negada"))
	case qr.StatusCheckingPermission:
		parts = append(parts, bg.Render(label+" …", styles.MutedText))
	default:
		parts = append(parts, bg.Render(label+" ○", styles.MutedText))
	}

	switch {
	case sc.Approach:
		parts = append(parts, styles.Badge("nfc").Render("NFC"))
	case sc.CanUseNFC:
		parts = append(parts, bg.Render("NFC ○", styles.MutedText))
	case !compact && sc.NFC.UnsupportedReason != "":
		parts = append(parts, bg.Render("NFC indisponível", styles.FaintText))
	}
	return parts
}

func phaseLabel(p app.ViewPhase) string {
	switch p {
	case app.ViewScanning:
		return "AGUARDANDO PRATO"
	case app.ViewProcessing:
		return "PROCESSANDO"
	case app.ViewDisplay:
		return "REFEIÇÃO"
	default:
		return "CARREGANDO"
	}
}

// renderCommandBar renders the key hints line.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	bindings := m.keys.ShortHelp()
	if m.showLogs {
		bindings = []key.Binding{m.keys.Down, m.keys.Up, m.keys.Bottom, m.keys.ToggleLogs, m.keys.Quit}
	}

	segments := make([]string, 0, len(bindings)+2)
	for _, b := range bindings {
		h := b.Help()
		segments = append(segments,
			bg.Render(h.Key, styles.AccentText)+bg.Render(":", styles.FaintText)+bg.Render(h.Desc, styles.MutedText))
	}
	segments = append(segments,
		bg.Render("T", styles.AccentText)+bg.Render(":", styles.FaintText)+bg.Render(m.theme.Name, styles.FaintText))

	if m.notice != "" {
		segments = append(segments, bg.Render(truncate(m.notice, 40), styles.WarningText))
	}

	line := strings.Join(segments, bg.Spaces(2))
	return styles.Header.Width(m.width).MaxHeight(1).Render(line)
}

// renderTitledBox draws content in a rounded box with the title in the top
// border.
func (m Model) renderTitledBox(title, content string, width, height int, focused bool) string {
	borderColor := m.theme.Border
	if focused {
		borderColor = m.theme.BorderFocus
	}
	border := lipgloss.NewStyle().Foreground(lipgloss.Color(borderColor))
	titleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Text)).Bold(true)

	inner := max(width-2, 0)
	label := " " + truncate(title, max(inner-2, 0)) + " "
	fill := max(inner-lipgloss.Width(label)-1, 0)
	top := border.Render("╭─") + titleStyle.Render(label) + border.Render(strings.Repeat("─", fill)+"╮")

	body := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder(), false, true, true, true).
		BorderForeground(lipgloss.Color(borderColor)).
		Width(inner).
		Height(max(height-2, 0)).
		Render(content)
	return top + "\n" + body
}

func countLabel(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
