package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"nutriplan/internal/catalogue"
	"nutriplan/internal/metrics"
	"nutriplan/internal/plan"
	"nutriplan/internal/planner"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	texts  []string
	nextID int
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		s.texts = append(s.texts, m.Text)
	case tgbotapi.EditMessageTextConfig:
		s.texts = append(s.texts, m.Text)
	}
	s.nextID++
	return tgbotapi.Message{MessageID: s.nextID}, nil
}

func (s *fakeSender) last() string {
	if len(s.texts) == 0 {
		return ""
	}
	return s.texts[len(s.texts)-1]
}

type fakeService struct {
	dishes    []catalogue.Dish
	plans     []plan.Plan
	genErr    error
	genStart  time.Time
	genDays   int
	savedName string
	saved     []plan.DayAssignment
	remoteOK  bool
	deleted   []string
}

func (f *fakeService) Catalogue() []catalogue.Dish { return f.dishes }
func (f *fakeService) SyncCatalogue(ctx context.Context) ([]catalogue.Dish, error) {
	return f.dishes, nil
}
func (f *fakeService) RefreshHistory(ctx context.Context) ([]plan.Plan, error) {
	return f.plans, errors.New("offline")
}
func (f *fakeService) Generate(ctx context.Context, start time.Time, days int) (planner.Result, error) {
	f.genStart, f.genDays = start, days
	if f.genErr != nil {
		return planner.Result{}, f.genErr
	}
	return planner.Result{Days: []plan.DayAssignment{{
		Date:   start.Format(plan.DateLayout),
		Lunch:  catalogue.Dish{Name: "Paella"},
		Dinner: catalogue.Dish{Name: "Tortilla_de_patatas"},
	}}}, nil
}
func (f *fakeService) SavePlan(ctx context.Context, name, startDate string, days []plan.DayAssignment) (plan.Plan, bool, error) {
	f.savedName, f.saved = name, days
	return plan.Plan{Name: name, StartDate: startDate}, f.remoteOK, nil
}
func (f *fakeService) Plans() []plan.Plan { return f.plans }
func (f *fakeService) DeletePlan(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}
func (f *fakeService) Stats() []plan.MealStat {
	return []plan.MealStat{{Name: "Tortilla", Count: 3}}
}

const allowedUser = int64(42)

func command(text string, from int64) tgbotapi.Update {
	cmdLen := len(text)
	if i := strings.Index(text, " "); i >= 0 {
		cmdLen = i
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: 7},
		From:     &tgbotapi.User{ID: from, UserName: "tester"},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}}
}

func newTestBot(svc *fakeService) (*Bot, *fakeSender) {
	s := &fakeSender{}
	b := newBot(s, svc, nil, nil, []int64{allowedUser}, 7, nil)
	b.now = func() time.Time { return time.Date(2024, 6, 3, 20, 0, 0, 0, time.UTC) }
	return b, s
}

func TestBot_AllowList(t *testing.T) {
	b, s := newTestBot(&fakeService{})
	b.HandleUpdate(context.Background(), command("/stats", 99))
	assert.Empty(t, s.texts)
}

func TestBot_MenuThenSave(t *testing.T) {
	ctx := context.Background()
	svc := &fakeService{remoteOK: true}
	b, s := newTestBot(svc)

	b.HandleUpdate(ctx, command("/guardar", allowedUser))
	assert.Contains(t, s.last(), "No hay ningún menú pendiente")

	b.HandleUpdate(ctx, command("/menu 3 2024-06-10", allowedUser))
	assert.Equal(t, 3, svc.genDays)
	assert.Equal(t, "2024-06-10", svc.genStart.Format(plan.DateLayout))
	out := s.last()
	assert.Contains(t, out, "*Lun 10/06*")
	assert.Contains(t, out, `Tortilla\_de\_patatas`)

	b.HandleUpdate(ctx, command("/guardar Semana 24", allowedUser))
	assert.Equal(t, "Semana 24", svc.savedName)
	require.Len(t, svc.saved, 1)
	assert.Contains(t, s.last(), "Enviado a la hoja compartida")

	_, pending := b.sessions.GetActive(7)
	assert.False(t, pending)
}

func TestBot_MenuInsufficientCatalogue(t *testing.T) {
	svc := &fakeService{genErr: planner.ErrInsufficientCatalogue}
	b, s := newTestBot(svc)

	b.HandleUpdate(context.Background(), command("/menu", allowedUser))
	assert.Equal(t, 7, svc.genDays)
	assert.Contains(t, s.last(), "Faltan platos")
}

func TestBot_HistoryOffline(t *testing.T) {
	svc := &fakeService{plans: []plan.Plan{{Name: "Plan 03/06/2024", StartDate: "2024-06-03", Days: 7, Origin: plan.OriginLocal}}}
	b, s := newTestBot(svc)

	b.HandleUpdate(context.Background(), command("/historial", allowedUser))
	assert.Contains(t, s.last(), "1. 💾 *Plan 03/06/2024* (2024-06-03, 7 días)")
	assert.Contains(t, s.last(), "No se pudo cargar el historial compartido")
}

func TestBot_DeletePlan(t *testing.T) {
	ctx := context.Background()

	t.Run("ByHistoryPosition", func(t *testing.T) {
		svc := &fakeService{plans: []plan.Plan{
			{ID: "c1", Name: "Compartido", Origin: plan.OriginCloud},
			{ID: "l1", Name: "Local", Origin: plan.OriginLocal},
		}}
		b, s := newTestBot(svc)

		b.HandleUpdate(ctx, command("/borrar 2", allowedUser))
		assert.Equal(t, []string{"l1"}, svc.deleted)
		assert.Contains(t, s.last(), "*Local* borrado")
		assert.NotContains(t, s.last(), "hoja compartida")

		b.HandleUpdate(ctx, command("/borrar 1", allowedUser))
		assert.Equal(t, []string{"l1", "c1"}, svc.deleted)
		assert.Contains(t, s.last(), "volverá al recargar")
	})

	t.Run("BadPosition", func(t *testing.T) {
		svc := &fakeService{plans: []plan.Plan{{ID: "l1", Name: "Local"}}}
		b, s := newTestBot(svc)

		for _, arg := range []string{"", "0", "2", "uno"} {
			b.HandleUpdate(ctx, command(strings.TrimSpace("/borrar "+arg), allowedUser))
			assert.Contains(t, s.last(), "1 a 1", arg)
		}
		assert.Empty(t, svc.deleted)
	})

	t.Run("NoPlans", func(t *testing.T) {
		b, s := newTestBot(&fakeService{})
		b.HandleUpdate(ctx, command("/borrar 1", allowedUser))
		assert.Equal(t, "No hay planes guardados.", s.last())
	})
}

func TestBot_SweepSessions(t *testing.T) {
	b, _ := newTestBot(&fakeService{})
	now := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	b.sessions.now = func() time.Time { return now }
	b.sessions.Put(1, "2024-06-03", nil, false)
	b.sessions.Put(2, "2024-06-03", nil, false)

	later := now.Add(DefaultSessionTTL + time.Minute)
	b.sessions.now = func() time.Time { return later }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.SweepSessions(ctx, time.Millisecond)
	}()

	assert.Eventually(t, func() bool {
		b.sessions.mu.Lock()
		defer b.sessions.mu.Unlock()
		return len(b.sessions.sessions) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestBot_Help(t *testing.T) {
	b, s := newTestBot(&fakeService{})
	b.HandleUpdate(context.Background(), command("/start", allowedUser))
	assert.Equal(t, helpText, s.last())
}

func TestParseMenuArgs(t *testing.T) {
	now := time.Date(2024, 6, 3, 20, 15, 0, 0, time.UTC)

	days, start, err := parseMenuArgs("", 7, now)
	require.NoError(t, err)
	assert.Equal(t, 7, days)
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), start)

	days, start, err = parseMenuArgs("2024-07-01 5", 7, now)
	require.NoError(t, err)
	assert.Equal(t, 5, days)
	assert.Equal(t, "2024-07-01", start.Format(plan.DateLayout))

	_, _, err = parseMenuArgs("40", 7, now)
	assert.Error(t, err)
	_, _, err = parseMenuArgs("mañana", 7, now)
	assert.Error(t, err)
}

func TestFormatMenu(t *testing.T) {
	days := []plan.DayAssignment{
		{Date: "2024-06-08", Lunch: catalogue.Dish{Name: "Paella"}, Dinner: catalogue.Dish{Name: "Pizza *casera*"}},
		{Date: "2024-06-09", Lunch: catalogue.Dish{Name: "Cocido"}, Dinner: catalogue.Dish{Name: "Sopa"}},
	}

	out := formatMenu(days, true)
	assert.Contains(t, out, "*Sáb 08/06*")
	assert.Contains(t, out, "*Dom 09/06*")
	assert.Contains(t, out, "🍽 Comida: Paella")
	assert.Contains(t, out, `🌙 Cena: Pizza \*casera\*`)
	assert.Contains(t, out, "rotación")
}

func TestFormatDishes(t *testing.T) {
	out := formatDishes([]catalogue.Dish{
		{Name: "Tortilla", CanBeLunch: true, CanBeDinner: true},
		{Name: "Cocido", CanBeLunch: true, IsSundayOnly: true},
	})
	assert.Contains(t, out, "(2)")
	assert.Contains(t, out, "• Tortilla _(comida, cena)_")
	assert.Contains(t, out, "• Cocido _(comida, domingo)_")

	assert.Contains(t, formatDishes(nil), "/sync")
}

func TestFormatUsage(t *testing.T) {
	out := formatUsage(
		[]metrics.DailyUsage{{Date: "2024-06-03", TotalPrompt: 100, TotalCompletion: 20, TotalExecution: 2}},
		metrics.SysHealth{AllocMB: 5, SysMB: 20, Goroutines: 8, DataDiskSize: "1.0 KB"},
	)
	assert.Contains(t, out, "• *2024-06-03*: 120 tokens (2 llamadas)")
	assert.Contains(t, out, "• Goroutines: 8")
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("línea\n", 1000)
	out := truncate(long)
	assert.LessOrEqual(t, len(out), maxMessageLen+len("\n…"))
	assert.True(t, strings.HasSuffix(out, "…"))
}

func TestSessionStore_Expiry(t *testing.T) {
	s := NewSessionStore(time.Hour)
	now := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.Put(1, "2024-06-03", nil, false)
	s.Put(2, "2024-06-03", nil, false)
	_, ok := s.GetActive(1)
	assert.True(t, ok)

	now = now.Add(2 * time.Hour)
	_, ok = s.GetActive(1)
	assert.False(t, ok)
	assert.Equal(t, 1, s.CleanupExpired())
}
