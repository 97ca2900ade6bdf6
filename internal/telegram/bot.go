package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"nutriplan/internal/catalogue"
	"nutriplan/internal/config"
	"nutriplan/internal/metrics"
	"nutriplan/internal/plan"
	"nutriplan/internal/planner"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	historyLimit = 10
	statsLimit   = 10
	// Bounds one command, generation included.
	commandTimeout = 2 * time.Minute
)

// SessionSweepInterval is how often expired pending menus are dropped.
const SessionSweepInterval = time.Hour

const helpText = `🥗 *NutriPlan*

/platos [búsqueda] - lista el catálogo
/sync - recarga los platos de la hoja
/menu [días] [AAAA-MM-DD] - genera un menú
/guardar [nombre] - guarda el último menú
/historial - planes guardados
/borrar <n> - borra el plan n del historial
/stats - platos más usados
/uso - consumo de IA y estado`

// Service is the application surface the bot drives.
type Service interface {
	Catalogue() []catalogue.Dish
	SyncCatalogue(ctx context.Context) ([]catalogue.Dish, error)
	Plans() []plan.Plan
	RefreshHistory(ctx context.Context) ([]plan.Plan, error)
	Generate(ctx context.Context, start time.Time, days int) (planner.Result, error)
	SavePlan(ctx context.Context, name, startDate string, days []plan.DayAssignment) (plan.Plan, bool, error)
	DeletePlan(ctx context.Context, id string) error
	Stats() []plan.MealStat
}

// UsageReader reports generation token usage.
type UsageReader interface {
	GetDailyUsage(ctx context.Context, days int) ([]metrics.DailyUsage, error)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot wraps the Telegram API around the planner.
type Bot struct {
	api         *tgbotapi.BotAPI
	sender      sender
	svc         Service
	usage       UsageReader
	health      func() metrics.SysHealth
	sessions    *SessionStore
	allowed     map[int64]struct{}
	defaultDays int
	logger      *zap.Logger
	now         func() time.Time
	wg          sync.WaitGroup
}

// NewBot connects to Telegram. With a webhook URL configured the webhook is
// registered; otherwise any webhook is removed so Poll can receive updates.
func NewBot(cfg *config.Config, svc Service, usage UsageReader, health func() metrics.SysHealth, logger *zap.Logger) (*Bot, error) {
	if err := cfg.RequireTelegram(); err != nil {
		return nil, err
	}

	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	b := newBot(api, svc, usage, health, cfg.TelegramAllowedUserIDs, cfg.DefaultDays, logger)
	b.api = api
	b.logger.Info("Authorized on Telegram", zap.String("account", api.Self.UserName))

	if cfg.TelegramWebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
		if err != nil {
			return nil, fmt.Errorf("invalid webhook url: %w", err)
		}
		if _, err := api.Request(wh); err != nil {
			return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
		}
		b.logger.Info("Webhook set", zap.String("url", cfg.TelegramWebhookURL))
	} else if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return nil, fmt.Errorf("failed to delete webhook: %w", err)
	}

	return b, nil
}

func newBot(s sender, svc Service, usage UsageReader, health func() metrics.SysHealth, allowedIDs []int64, defaultDays int, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultDays <= 0 {
		defaultDays = 7
	}
	allowed := make(map[int64]struct{}, len(allowedIDs))
	for _, id := range allowedIDs {
		allowed[id] = struct{}{}
	}
	return &Bot{
		sender:      s,
		svc:         svc,
		usage:       usage,
		health:      health,
		sessions:    NewSessionStore(DefaultSessionTTL),
		allowed:     allowed,
		defaultDays: defaultDays,
		logger:      logger,
		now:         time.Now,
	}
}

// RegisterHandlers mounts the webhook and health endpoints on mux.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", b.handleWebhook)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		b.logger.Warn("Error parsing update", zap.Error(err))
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		b.HandleUpdate(ctx, *update)
	}()
}

// Poll receives updates by long polling until ctx is done.
func (b *Bot) Poll(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	go b.SweepSessions(ctx, SessionSweepInterval)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.Wait()
			return
		case update, ok := <-updates:
			if !ok {
				b.Wait()
				return
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
				defer cancel()
				b.HandleUpdate(cmdCtx, update)
			}()
		}
	}
}

// SweepSessions drops expired pending menus every interval until ctx is done.
func (b *Bot) SweepSessions(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := b.sessions.CleanupExpired(); n > 0 {
				b.logger.Debug("Expired menus dropped", zap.Int("count", n))
			}
		}
	}
}

// Wait blocks until in-flight updates are handled.
func (b *Bot) Wait() {
	b.wg.Wait()
}

// HandleUpdate runs the command carried by update for allowed users.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}

	if _, ok := b.allowed[msg.From.ID]; !ok {
		b.logger.Warn("Unauthorized access attempt",
			zap.Int64("user_id", msg.From.ID),
			zap.String("username", msg.From.UserName))
		return
	}

	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "platos":
		b.reply(chatID, formatDishes(catalogue.Search(b.svc.Catalogue(), args)))
	case "sync":
		b.handleSync(ctx, chatID)
	case "menu":
		b.handleMenu(ctx, chatID, args)
	case "guardar":
		b.handleSave(ctx, chatID, args)
	case "historial":
		b.handleHistory(ctx, chatID)
	case "borrar":
		b.handleDelete(ctx, chatID, args)
	case "stats":
		b.reply(chatID, formatStats(b.svc.Stats(), statsLimit))
	case "uso":
		b.handleUsage(ctx, chatID)
	default:
		b.reply(chatID, helpText)
	}
}

func (b *Bot) handleSync(ctx context.Context, chatID int64) {
	status := b.reply(chatID, "🔄 *Sincronizando platos...*")

	dishes, err := b.svc.SyncCatalogue(ctx)
	if err != nil {
		b.logger.Warn("Catalogue sync failed", zap.Error(err))
		b.edit(chatID, status, errorText("Error de sincronización con la hoja", err))
		return
	}
	if len(dishes) == 0 {
		b.edit(chatID, status, "⚠️ No se encontraron platos en la hoja.")
		return
	}
	b.edit(chatID, status, fmt.Sprintf("✅ %d platos cargados.", len(dishes)))
}

func (b *Bot) handleMenu(ctx context.Context, chatID int64, args string) {
	days, start, err := parseMenuArgs(args, b.defaultDays, b.now())
	if err != nil {
		b.reply(chatID, "❌ "+esc(err.Error()))
		return
	}

	status := b.reply(chatID, "🧑‍🍳 *Pensando...*\n(eligiendo platos para tu menú)")

	res, err := b.svc.Generate(ctx, start, days)
	if errors.Is(err, planner.ErrInsufficientCatalogue) {
		b.edit(chatID, status, "⚠️ Faltan platos. Asegúrate de tener platos para comida y cena (/sync).")
		return
	}
	if err != nil {
		b.logger.Error("Menu generation failed", zap.Error(err))
		b.edit(chatID, status, errorText("Error generando el menú", err))
		return
	}

	startDate := start.Format(plan.DateLayout)
	b.sessions.Put(chatID, startDate, res.Days, res.FellBack)
	b.edit(chatID, status, formatMenu(res.Days, res.FellBack))
}

func (b *Bot) handleSave(ctx context.Context, chatID int64, name string) {
	sess, ok := b.sessions.GetActive(chatID)
	if !ok {
		b.reply(chatID, "No hay ningún menú pendiente. Genera uno con /menu.")
		return
	}

	p, remoteOK, err := b.svc.SavePlan(ctx, name, sess.StartDate, sess.Days)
	if err != nil {
		b.logger.Error("Failed to save plan", zap.Error(err))
		b.reply(chatID, errorText("Error guardando el plan", err))
		return
	}
	b.sessions.Delete(chatID)

	text := fmt.Sprintf("✅ *%s* guardado.", esc(p.Name))
	if remoteOK {
		text += "\n☁️ Enviado a la hoja compartida."
	} else {
		text += "\n💾 Guardado solo en local."
	}
	b.reply(chatID, text)
}

func (b *Bot) handleHistory(ctx context.Context, chatID int64) {
	plans, err := b.svc.RefreshHistory(ctx)
	text := formatHistory(plans, historyLimit)
	if err != nil {
		text += "\n_No se pudo cargar el historial compartido._"
	}
	b.reply(chatID, text)
}

func (b *Bot) handleDelete(ctx context.Context, chatID int64, args string) {
	plans := b.svc.Plans()
	if len(plans) == 0 {
		b.reply(chatID, "No hay planes guardados.")
		return
	}

	n, err := strconv.Atoi(args)
	if err != nil || n < 1 || n > len(plans) {
		b.reply(chatID, fmt.Sprintf("Indica el número del plan en /historial (1 a %d).", len(plans)))
		return
	}

	p := plans[n-1]
	if err := b.svc.DeletePlan(ctx, p.ID); err != nil {
		b.logger.Error("Failed to delete plan", zap.Error(err))
		b.reply(chatID, errorText("Error borrando el plan", err))
		return
	}

	text := fmt.Sprintf("🗑 *%s* borrado.", esc(p.Name))
	if p.Origin == plan.OriginCloud {
		text += "\n_Sigue en la hoja compartida y volverá al recargar el historial._"
	}
	b.reply(chatID, text)
}

func (b *Bot) handleUsage(ctx context.Context, chatID int64) {
	if b.usage == nil || b.health == nil {
		b.reply(chatID, "Métricas no disponibles.")
		return
	}
	usage, err := b.usage.GetDailyUsage(ctx, 7)
	if err != nil {
		b.reply(chatID, "❌ Error obteniendo métricas.")
		return
	}
	b.reply(chatID, formatUsage(usage, b.health()))
}

func (b *Bot) reply(chatID int64, text string) tgbotapi.Message {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	sent, err := b.sender.Send(msg)
	if err != nil {
		b.logger.Warn("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return sent
}

// edit replaces a status message, or sends a new one if none was sent.
func (b *Bot) edit(chatID int64, status tgbotapi.Message, text string) {
	if status.MessageID == 0 {
		b.reply(chatID, text)
		return
	}
	edit := tgbotapi.NewEditMessageText(chatID, status.MessageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.sender.Send(edit); err != nil {
		b.logger.Warn("Failed to edit message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func errorText(title string, err error) string {
	safeErr := strings.ReplaceAll(err.Error(), "`", "'")
	return fmt.Sprintf("❌ *%s:*\n```\n%v\n```", title, safeErr)
}

// parseMenuArgs reads an optional day count and start date in any order.
func parseMenuArgs(args string, defaultDays int, now time.Time) (int, time.Time, error) {
	days := defaultDays
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	for _, field := range strings.Fields(args) {
		if n, err := strconv.Atoi(field); err == nil {
			if n < 1 || n > planner.MaxDays {
				return 0, time.Time{}, fmt.Errorf("los días deben estar entre 1 y %d", planner.MaxDays)
			}
			days = n
			continue
		}
		t, err := planner.ParseStartDate(field)
		if err != nil {
			return 0, time.Time{}, fmt.Errorf("no entiendo %q: usa /menu [días] [AAAA-MM-DD]", field)
		}
		start = t
	}
	return days, start, nil
}
