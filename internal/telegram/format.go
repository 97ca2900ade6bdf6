package telegram

import (
	"fmt"
	"strings"
	"time"

	"nutriplan/internal/catalogue"
	"nutriplan/internal/metrics"
	"nutriplan/internal/plan"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxMessageLen stays under Telegram's 4096 character limit.
const maxMessageLen = 4000

var weekdays = [...]string{"Dom", "Lun", "Mar", "Mié", "Jue", "Vie", "Sáb"}

func esc(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func dayLabel(date string) string {
	t, err := time.Parse(plan.DateLayout, date)
	if err != nil {
		return esc(date)
	}
	return fmt.Sprintf("%s %s", weekdays[t.Weekday()], t.Format("02/01"))
}

func formatMenu(days []plan.DayAssignment, fellBack bool) string {
	var sb strings.Builder
	sb.WriteString("📅 *Menú*\n\n")
	for _, d := range days {
		sb.WriteString(fmt.Sprintf("*%s*\n", dayLabel(d.Date)))
		sb.WriteString(fmt.Sprintf("🍽 Comida: %s\n", esc(d.Lunch.Name)))
		sb.WriteString(fmt.Sprintf("🌙 Cena: %s\n\n", esc(d.Dinner.Name)))
	}
	if fellBack {
		sb.WriteString("_Generado por rotación: la IA no estaba disponible._\n")
	}
	sb.WriteString("Usa /guardar [nombre] para guardarlo.")
	return truncate(sb.String())
}

func formatDishes(dishes []catalogue.Dish) string {
	if len(dishes) == 0 {
		return "No hay platos. Usa /sync para cargarlos."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🥘 *Platos* (%d)\n\n", len(dishes)))
	for _, d := range dishes {
		var tags []string
		if d.CanBeLunch {
			tags = append(tags, "comida")
		}
		if d.CanBeDinner {
			tags = append(tags, "cena")
		}
		if d.IsSaturdayOnly {
			tags = append(tags, "sábado")
		}
		if d.IsSundayOnly {
			tags = append(tags, "domingo")
		}
		sb.WriteString(fmt.Sprintf("• %s _(%s)_\n", esc(d.Name), strings.Join(tags, ", ")))
	}
	return truncate(sb.String())
}

func formatHistory(plans []plan.Plan, limit int) string {
	if len(plans) == 0 {
		return "No hay planes guardados."
	}

	var sb strings.Builder
	sb.WriteString("🗂 *Historial*\n\n")
	for i, p := range plans {
		if i == limit {
			sb.WriteString(fmt.Sprintf("… y %d más\n", len(plans)-limit))
			break
		}
		icon := "💾"
		if p.Origin == plan.OriginCloud {
			icon = "☁️"
		}
		sb.WriteString(fmt.Sprintf("%d. %s *%s* (%s, %d días)\n", i+1, icon, esc(p.Name), esc(p.StartDate), p.Days))
	}
	return truncate(sb.String())
}

func formatStats(stats []plan.MealStat, limit int) string {
	if len(stats) == 0 {
		return "Aún no hay estadísticas."
	}

	var sb strings.Builder
	sb.WriteString("📊 *Platos más usados*\n\n")
	for i, s := range stats {
		if i == limit {
			break
		}
		sb.WriteString(fmt.Sprintf("%d. %s: %d\n", i+1, esc(s.Name), s.Count))
	}
	return sb.String()
}

func formatUsage(usage []metrics.DailyUsage, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Uso y estado*\n\n")

	sb.WriteString("🗓 *Actividad IA reciente*\n")
	if len(usage) == 0 {
		sb.WriteString("_Sin datos_\n")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("• *%s*: %d tokens (%d llamadas)\n", d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution))
	}

	sb.WriteString("\n🧠 *Sistema*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("• Datos: %s\n", health.DataDiskSize))
	return sb.String()
}

func truncate(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	cut := strings.LastIndex(s[:maxMessageLen], "\n")
	if cut < 0 {
		cut = maxMessageLen
	}
	return s[:cut] + "\n…"
}
