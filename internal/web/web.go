package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"calgrid/internal/calendar"
	"calgrid/internal/config"
	"calgrid/internal/date"
	"calgrid/internal/events"
	"calgrid/internal/ics"
	"calgrid/internal/layout"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

const (
	wsPingInterval = 30 * time.Second
	wsReadTimeout  = 60 * time.Second
	maxBodyBytes   = 1 << 20
)

// Server exposes the navigation controller, the event store and the layout
// engine as a JSON API, and pushes state changes over websockets.
type Server struct {
	cfg   *config.Config
	loc   *time.Location
	mux   *http.ServeMux
	store *events.Store
	hub   *Hub
	now   func() time.Time

	// The controller is not safe for concurrent use; every access holds ctrlMu.
	ctrlMu sync.Mutex
	ctrl   *calendar.Controller

	// Month layouts are cached until the store changes.
	layoutMu    sync.RWMutex
	layoutCache map[monthKey]layout.MonthPlan
	layoutGen   uint64 // bumped on every invalidation

	upgrader websocket.Upgrader
}

type monthKey struct {
	year, monthIndex int
}

// NewServer builds a server over store. now defaults to time.Now.
func NewServer(cfg *config.Config, store *events.Store, now func() time.Time) (*Server, error) {
	if now == nil {
		now = time.Now
	}
	loc := resolveLocationOrLocal(cfg.Timezone)

	ctrl, err := calendar.New(now().In(loc), calendar.Options{
		Locale:        cfg.Locale,
		FirstWeekDay:  cfg.FirstWeekDay,
		Mode:          calendar.Mode(cfg.DefaultMode),
		Location:      loc,
		WheelThrottle: time.Duration(cfg.WheelThrottleMS) * time.Millisecond,
		Now:           func() time.Time { return now().In(loc) },
	})
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:         cfg,
		loc:         loc,
		mux:         http.NewServeMux(),
		store:       store,
		hub:         NewHub(),
		now:         now,
		ctrl:        ctrl,
		layoutCache: make(map[monthKey]layout.MonthPlan),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	store.OnChange(func() {
		s.invalidateLayouts()
		s.broadcastState()
	})
	s.registerRoutes()
	return s, nil
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// StartServer serves s on cfg.Listen until ctx is canceled, then shuts
// down gracefully.
func StartServer(ctx context.Context, s *Server) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ws", s.handleWS)

	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("POST /api/navigate", s.handleNavigate)
	s.mux.HandleFunc("POST /api/wheel", s.handleWheel)
	s.mux.HandleFunc("POST /api/mode", s.handleMode)
	s.mux.HandleFunc("POST /api/select", s.handleSelect)

	s.mux.HandleFunc("GET /api/layout/month", s.handleLayoutMonth)
	s.mux.HandleFunc("GET /api/layout/week", s.handleLayoutWeek)
	s.mux.HandleFunc("GET /api/day", s.handleDay)

	s.mux.HandleFunc("GET /api/events", s.handleListEvents)
	s.mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	s.mux.HandleFunc("PUT /api/events/{id}", s.handleUpdateEvent)
	s.mux.HandleFunc("DELETE /api/events/{id}", s.handleDeleteEvent)
	s.mux.HandleFunc("POST /api/reload", s.handleReload)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// stateResponse is the JSON shape of /api/state and of websocket pushes.
type stateResponse struct {
	calendar.State
	DisplayedDate string             `json:"displayed_date"`
	Today         date.Day           `json:"today"`
	MonthNames    []date.MonthName   `json:"month_names"`
	WeekDayNames  []date.WeekDayName `json:"week_day_names"`
	WeekDays      []date.Day         `json:"week_days"`
	MonthGrid     []date.Cell        `json:"month_grid"`
	YearGrids     [][]date.Cell      `json:"year_grids"`
}

// snapshot must be called with ctrlMu held.
func (s *Server) snapshot() stateResponse {
	today, _ := date.NewDay(s.now().In(s.loc), s.cfg.Locale)
	return stateResponse{
		State:         s.ctrl.State(),
		DisplayedDate: s.ctrl.DisplayedDate(),
		Today:         today,
		MonthNames:    s.ctrl.MonthNames(),
		WeekDayNames:  s.ctrl.WeekDayNames(),
		WeekDays:      s.ctrl.WeekDays(),
		MonthGrid:     s.ctrl.CalendarDaysOfMonth(),
		YearGrids:     s.ctrl.CalendarDaysOfYear(),
	}
}

func (s *Server) currentState() stateResponse {
	s.ctrlMu.Lock()
	defer s.ctrlMu.Unlock()
	return s.snapshot()
}

func (s *Server) broadcastState() {
	s.hub.Broadcast(map[string]any{
		"type":  "state",
		"state": s.currentState(),
	})
}

// mutate runs fn against the controller and, on success, answers with the
// new state and pushes it to websocket clients.
func (s *Server) mutate(w http.ResponseWriter, fn func(c *calendar.Controller) error) {
	s.ctrlMu.Lock()
	err := fn(s.ctrl)
	var st stateResponse
	if err == nil {
		st = s.snapshot()
	}
	s.ctrlMu.Unlock()

	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.hub.Broadcast(map[string]any{"type": "state", "state": st})
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.currentState())
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Direction string `json:"direction"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	dir, err := calendar.ParseDirection(req.Direction)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	appLog.Debug("api navigate", "direction", dir)
	s.mutate(w, func(c *calendar.Controller) error { return c.OnClickArrow(dir) })
}

func (s *Server) handleWheel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeltaY float64 `json:"delta_y"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	s.ctrlMu.Lock()
	accepted, err := s.ctrl.OnWheel(req.DeltaY, s.now())
	st := s.snapshot()
	s.ctrlMu.Unlock()

	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if accepted {
		s.hub.Broadcast(map[string]any{"type": "state", "state": st})
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": accepted, "state": st})
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	mode, err := calendar.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mutate(w, func(c *calendar.Controller) error { return c.SetMode(mode) })
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := date.ParseDate(req.Date, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mutate(w, func(c *calendar.Controller) error { return c.ChangeState(t) })
}

// handleLayoutMonth lays out a month grid.
//
// GET /api/layout/month?year=2024&month=6
//   - year:  defaults to the selected month's year
//   - month: 1-12, defaults to the selected month
func (s *Server) handleLayoutMonth(w http.ResponseWriter, r *http.Request) {
	s.ctrlMu.Lock()
	selected := s.ctrl.State().SelectedMonth
	fwd := s.ctrl.Options().FirstWeekDay
	s.ctrlMu.Unlock()

	q := r.URL.Query()
	year := parseIntDefault(q.Get("year"), selected.Year)
	month := parseIntDefault(q.Get("month"), selected.MonthNumber)
	if month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "month must be between 1 and 12")
		return
	}
	key := monthKey{year: year, monthIndex: month - 1}

	s.layoutMu.RLock()
	plan, ok := s.layoutCache[key]
	gen := s.layoutGen
	s.layoutMu.RUnlock()
	if ok {
		writeJSON(w, http.StatusOK, plan)
		return
	}

	cells := date.CalendarDaysOfMonth(year, month-1, fwd, s.loc)
	plan = layout.LayoutMonth(cells, s.store.All())
	s.cacheLayout(key, gen, plan)

	writeJSON(w, http.StatusOK, plan)
}

// handleLayoutWeek lays out the week containing ?date= (default: the
// selected week) with the capacity of a five-row grid unless ?capacity= is
// given.
func (s *Server) handleLayoutWeek(w http.ResponseWriter, r *http.Request) {
	s.ctrlMu.Lock()
	anchor := s.ctrl.State().SelectedWeek.Date
	fwd := s.ctrl.Options().FirstWeekDay
	s.ctrlMu.Unlock()

	q := r.URL.Query()
	if v := q.Get("date"); v != "" {
		t, err := date.ParseDate(v, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		anchor = t
	}
	capacity := parseIntDefault(q.Get("capacity"), layout.Capacity(5))
	if capacity < 1 {
		writeError(w, http.StatusBadRequest, "capacity must be positive")
		return
	}

	week := date.WeekCells(anchor, fwd)
	short, long := events.Split(events.InInterval(week, s.store.All()))
	writeJSON(w, http.StatusOK, layout.LayoutWeek(week, short, long, capacity))
}

type dayResponse struct {
	Day     date.Day      `json:"day"`
	IsToday bool          `json:"is_today"`
	Events  []model.Event `json:"events"`
	Draft   model.Draft   `json:"draft"`
}

// handleDay lists everything on one day, the content behind "+N more",
// plus a prefilled draft for creating an event there.
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	t, err := date.ParseDate(r.URL.Query().Get("date"), s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, err := date.NewDay(t, s.cfg.Locale)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	now := s.now().In(s.loc)
	writeJSON(w, http.StatusOK, dayResponse{
		Day:     d,
		IsToday: date.IsToday(t, now),
		Events:  events.OnDay(t, s.store.All()),
		Draft:   events.DraftForDay(t, now),
	})
}

// handleListEvents returns the store, optionally filtered to ?from=&to=.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	all := s.store.All()
	q := r.URL.Query()
	if q.Get("from") == "" && q.Get("to") == "" {
		writeJSON(w, http.StatusOK, all)
		return
	}

	from, err := date.ParseDate(q.Get("from"), s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := date.ParseDate(q.Get("to"), s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, events.Between(date.StartOfDay(from), date.EndOfDay(to), all))
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var d model.Draft
	if !decodeJSON(w, r, &d) {
		return
	}
	ev, err := s.store.Add(s.localDraft(d))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var d model.Draft
	if !decodeJSON(w, r, &d) {
		return
	}
	ev, err := s.store.Update(r.PathValue("id"), s.localDraft(d))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// localDraft moves client times into the server's zone, the zone every grid
// and long-event day boundary is computed in.
func (s *Server) localDraft(d model.Draft) model.Draft {
	d.Start = d.Start.In(s.loc)
	d.End = d.End.In(s.loc)
	return d
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	loaded, errs := s.ReloadSources(r.Context())
	resp := map[string]any{"loaded": loaded}
	if len(errs) > 0 {
		resp["error"] = errorsAggregate(errs).Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ReloadSources imports every configured ICS file and replaces its events
// in the store. It returns the number of sources loaded.
func (s *Server) ReloadSources(ctx context.Context) (int, []error) {
	sources := ics.SourcesFromConfig(s.cfg.Sources)
	if len(sources) == 0 {
		return 0, nil
	}

	rangeStart, rangeEnd := ics.DefaultWindow(s.now().In(s.loc))
	results, errs := ics.LoadAll(ctx, sources, ics.ExpandConfig{
		DisplayLocation: s.loc,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
	})
	if len(errs) > 0 {
		appLog.Error("one or more ICS sources failed", errorsAggregate(errs), "error_count", len(errs))
	}
	for _, res := range results {
		s.store.Replace(res.Source.ID, res.Events)
	}
	return len(results), errs
}

// BroadcastToday tells clients that the current date changed.
func (s *Server) BroadcastToday() {
	today, err := date.NewDay(s.now().In(s.loc), s.cfg.Locale)
	if err != nil {
		return
	}
	appLog.Debug("broadcasting today", "date", today.Date.Format("2006-01-02"))
	s.hub.Broadcast(map[string]any{"type": "today", "today": today})
}

func (s *Server) invalidateLayouts() {
	s.layoutMu.Lock()
	s.layoutGen++
	clear(s.layoutCache)
	s.layoutMu.Unlock()
}

// cacheLayout stores plan unless the store changed since generation gen
// was read. It reports whether plan was stored.
func (s *Server) cacheLayout(key monthKey, gen uint64, plan layout.MonthPlan) bool {
	s.layoutMu.Lock()
	defer s.layoutMu.Unlock()
	if s.layoutGen != gen {
		return false
	}
	s.layoutCache[key] = plan
	return true
}

// handleWS pushes the current state on connect and on every change. The
// read loop only services control frames and detects disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		appLog.Warn("websocket upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()

	s.hub.Add(conn)
	defer s.hub.Remove(conn)
	appLog.Debug("websocket client connected", "remote", r.RemoteAddr)

	if err := s.hub.Send(conn, map[string]any{"type": "state", "state": s.currentState()}); err != nil {
		return
	}

	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					appLog.Warn("websocket read failed", "error", err.Error())
				}
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			if err := s.hub.Send(conn, map[string]string{"type": "ping"}); err != nil {
				return
			}
		}
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, events.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, events.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

func errorsAggregate(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	var b strings.Builder
	for i, e := range errs {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.Error())
	}
	return errors.New(b.String())
}
